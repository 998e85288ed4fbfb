// Package accounts implements registration, login and the password and
// profile flows around a user account.
package accounts

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"filemart/internal/common"
	"filemart/internal/logging"
	"filemart/internal/models"
	"filemart/internal/repository"
	"filemart/internal/tokens"
)

const resetTokenTTL = time.Hour

type Config struct {
	// ResetURL is the page that receives ?token=... from the reset mail.
	ResetURL   string
	BcryptCost int
}

// Session is a signed-in user and their fresh token pair.
type Session struct {
	User   *models.User
	Tokens *tokens.Pair
}

type Service struct {
	users     repository.UserRepository
	tokens    *tokens.Service
	mailer    Mailer
	providers map[string]IdentityProvider
	cfg       Config
	log       logging.Logger
	now       func() time.Time
}

func NewService(users repository.UserRepository, tokenSvc *tokens.Service, mailer Mailer, cfg Config, log logging.Logger) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:     users,
		tokens:    tokenSvc,
		mailer:    mailer,
		providers: make(map[string]IdentityProvider),
		cfg:       cfg,
		log:       log.With("component", "AUTH"),
		now:       time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) RegisterProvider(name string, p IdentityProvider) *Service {
	s.providers[name] = p
	return s
}

func (s *Service) Register(ctx context.Context, name, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, common.ErrEmailExists
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &models.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         models.RoleUser,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrEmailExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info(ctx, "user registered", "userId", user.ID.Hex())
	return s.startSession(ctx, user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, common.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, common.ErrInvalidCredentials
	}

	s.log.Info(ctx, "user login succeeded", "userId", user.ID.Hex())
	return s.startSession(ctx, user)
}

// OAuthLogin verifies credential with the named provider and starts a
// session for the user behind it.
func (s *Service) OAuthLogin(ctx context.Context, provider, credential string) (*Session, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, common.ErrUnknownProvider
	}
	profile, err := p.Verify(ctx, credential)
	if err != nil {
		s.log.Warn(ctx, "oauth credential rejected", "provider", provider, "err", err)
		return nil, err
	}
	user, err := p.ResolveOrCreateUser(ctx, profile)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "oauth login succeeded", "provider", provider, "userId", user.ID.Hex())
	return s.startSession(ctx, user)
}

func (s *Service) startSession(ctx context.Context, user *models.User) (*Session, error) {
	pair, err := s.tokens.IssueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair}, nil
}

func (s *Service) Logout(ctx context.Context, claims *tokens.Claims) error {
	return s.tokens.Logout(ctx, claims)
}

func (s *Service) GetMe(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id primitive.ObjectID, name string) (*models.User, error) {
	return s.users.UpdateProfile(ctx, id, strings.TrimSpace(name))
}

// ChangePassword also ends every other session of the user.
func (s *Service) ChangePassword(ctx context.Context, id primitive.ObjectID, current, next string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return common.ErrInvalidCredentials
	}
	hash, err := s.hash(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, id, hash)
}

// ForgotPassword mails a reset link when email belongs to an account. The
// outcome is never reported to the caller.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.log.Error(ctx, "password reset lookup failed", "err", err)
		} else {
			s.log.Info(ctx, "password reset requested for unknown email")
		}
		return nil
	}

	token, err := randomHex(32)
	if err != nil {
		s.log.Error(ctx, "password reset token generation failed", "err", err)
		return nil
	}
	if err := s.users.SetResetToken(ctx, user.ID, hashToken(token), s.now().Add(resetTokenTTL)); err != nil {
		s.log.Error(ctx, "password reset token store failed", "userId", user.ID.Hex(), "err", err)
		return nil
	}

	msg := Message{
		To:      user.Email,
		Subject: "Reset your password",
		Body:    fmt.Sprintf("Hello %s,\n\nReset your password within one hour: %s?token=%s\n", user.Name, s.cfg.ResetURL, token),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error(ctx, "password reset mail failed", "userId", user.ID.Hex(), "err", err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return common.ErrInvalidResetToken
	}
	user, err := s.users.FindByResetToken(ctx, hashToken(token), s.now())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidResetToken
		}
		return fmt.Errorf("find reset token: %w", err)
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.log.Info(ctx, "password reset", "userId", user.ID.Hex())
	return nil
}

// DeleteAccount revokes the presented access token and removes the user.
func (s *Service) DeleteAccount(ctx context.Context, claims *tokens.Claims) error {
	if err := s.tokens.Logout(ctx, claims); err != nil {
		return err
	}
	id, err := claims.UserID()
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info(ctx, "account deleted", "userId", id.Hex())
	return nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
