// Package memory implements the repository contracts in process memory.
// Every operation holds the store's mutex, so conditional updates keep the
// same atomicity as their MongoDB counterparts. Used by tests and by the
// "memory" store driver.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"filemart/internal/common"
	"filemart/internal/models"
)

type Users struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
	now   func() time.Time
}

func NewUsers() *Users {
	return &Users{users: make(map[primitive.ObjectID]models.User), now: time.Now}
}

func (s *Users) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return common.ErrEmailExists
		}
		if user.GoogleID != "" && existing.GoogleID == user.GoogleID {
			return common.ErrEmailExists
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &user, nil
}

func (s *Users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return s.findFirst(func(u models.User) bool { return u.Email == email })
}

func (s *Users) FindByGoogleID(_ context.Context, googleID string) (*models.User, error) {
	return s.findFirst(func(u models.User) bool { return googleID != "" && u.GoogleID == googleID })
}

func (s *Users) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return s.findFirst(func(u models.User) bool {
		return tokenHash != "" &&
			u.ResetPasswordTokenHash == tokenHash &&
			u.ResetPasswordExpiresAt != nil &&
			u.ResetPasswordExpiresAt.After(now)
	})
}

func (s *Users) findFirst(match func(models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if match(user) {
			found := user
			return &found, nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *Users) SetRefreshToken(_ context.Context, id primitive.ObjectID, token string) error {
	return s.update(id, func(u *models.User) { u.RefreshToken = token })
}

func (s *Users) SwapRefreshToken(_ context.Context, id primitive.ObjectID, current, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok || user.RefreshToken == "" || user.RefreshToken != current {
		return false, nil
	}
	user.RefreshToken = next
	user.UpdatedAt = s.now()
	s.users[id] = user
	return true, nil
}

func (s *Users) ClearRefreshToken(_ context.Context, id primitive.ObjectID) error {
	err := s.update(id, func(u *models.User) { u.RefreshToken = "" })
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Users) UpdateProfile(ctx context.Context, id primitive.ObjectID, name string) (*models.User, error) {
	if err := s.update(id, func(u *models.User) { u.Name = name }); err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

func (s *Users) UpdatePassword(_ context.Context, id primitive.ObjectID, passwordHash string) error {
	return s.update(id, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.RefreshToken = ""
		u.ResetPasswordTokenHash = ""
		u.ResetPasswordExpiresAt = nil
	})
}

func (s *Users) SetResetToken(_ context.Context, id primitive.ObjectID, tokenHash string, expiresAt time.Time) error {
	return s.update(id, func(u *models.User) {
		u.ResetPasswordTokenHash = tokenHash
		u.ResetPasswordExpiresAt = &expiresAt
	})
}

func (s *Users) LinkGoogleID(_ context.Context, id primitive.ObjectID, googleID string) error {
	return s.update(id, func(u *models.User) {
		u.GoogleID = googleID
		u.IsVerified = true
	})
}

func (s *Users) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return common.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Users) update(id primitive.ObjectID, mutate func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return common.ErrNotFound
	}
	mutate(&user)
	user.UpdatedAt = s.now()
	s.users[id] = user
	return nil
}
