package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/idtoken"

	"filemart/internal/common"
	"filemart/internal/models"
	"filemart/internal/repository"
)

const ProviderGoogle = "google"

// Profile is an identity verified by an external provider. It is only ever
// built from verified token claims, never from request input.
type Profile struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityProvider verifies a credential issued by an external provider and
// maps the resulting profile onto a local user, creating one when needed.
type IdentityProvider interface {
	Verify(ctx context.Context, credential string) (Profile, error)
	ResolveOrCreateUser(ctx context.Context, profile Profile) (*models.User, error)
}

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// validateIDToken checks the signature, expiry and audience of a Google ID
// token. Replaced in tests.
var validateIDToken = idtoken.Validate

// GoogleProvider accepts Google ID tokens minted for clientID. It resolves
// by Google id first, then by a Google-verified email (linking the id), and
// finally creates a user without a password.
type GoogleProvider struct {
	users    repository.UserRepository
	clientID string
	now      func() time.Time
}

func NewGoogleProvider(users repository.UserRepository, clientID string) *GoogleProvider {
	return &GoogleProvider{users: users, clientID: clientID, now: time.Now}
}

func (p *GoogleProvider) Verify(ctx context.Context, credential string) (Profile, error) {
	if credential == "" || p.clientID == "" {
		return Profile{}, common.ErrInvalidIDToken
	}
	payload, err := validateIDToken(ctx, credential, p.clientID)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", common.ErrInvalidIDToken, err)
	}
	if !googleIssuers[payload.Issuer] || payload.Subject == "" {
		return Profile{}, common.ErrInvalidIDToken
	}

	profile := Profile{ID: payload.Subject}
	profile.Email, _ = payload.Claims["email"].(string)
	profile.Name, _ = payload.Claims["name"].(string)
	switch v := payload.Claims["email_verified"].(type) {
	case bool:
		profile.EmailVerified = v
	case string:
		profile.EmailVerified = v == "true"
	}
	return profile, nil
}

func (p *GoogleProvider) ResolveOrCreateUser(ctx context.Context, profile Profile) (*models.User, error) {
	email := normalizeEmail(profile.Email)
	if profile.ID == "" || email == "" {
		return nil, common.ErrInvalidProfile
	}

	user, err := p.users.FindByGoogleID(ctx, profile.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("find user by google id: %w", err)
	}

	user, err = p.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !profile.EmailVerified {
			return nil, common.ErrEmailExists
		}
		if err := p.users.LinkGoogleID(ctx, user.ID, profile.ID); err != nil {
			return nil, fmt.Errorf("link google id: %w", err)
		}
		user.GoogleID = profile.ID
		user.IsVerified = true
		return user, nil
	case !errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = email
	}
	now := p.now()
	user = &models.User{
		Email:      email,
		Name:       name,
		Role:       models.RoleUser,
		GoogleID:   profile.ID,
		IsVerified: profile.EmailVerified,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create oauth user: %w", err)
	}
	return user, nil
}
