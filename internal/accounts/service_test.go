package accounts

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"filemart/internal/common"
	"filemart/internal/logging"
	"filemart/internal/models"
	"filemart/internal/repository/memory"
	"filemart/internal/tokens"
)

type fixture struct {
	svc    *Service
	users  *memory.Users
	tokens *tokens.Service
	mailer *MockMailer
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:  memory.NewUsers(),
		mailer: NewMockMailer(gomock.NewController(t)),
		now:    time.Now(),
	}
	clock := func() time.Time { return f.now }
	f.tokens = tokens.NewService(f.users, memory.NewRevocations().WithClock(clock), tokens.Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
	}, logging.Nop()).WithClock(clock)
	f.svc = NewService(f.users, f.tokens, f.mailer, Config{
		ResetURL:   "https://shop.example.com/reset-password",
		BcryptCost: bcrypt.MinCost,
	}, logging.Nop()).WithClock(clock).
		RegisterProvider(ProviderGoogle, NewGoogleProvider(f.users, testClientID))
	return f
}

func TestRegister_CreatesUserAndSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Register(ctx, " Ada ", " Ada@Example.com ", "secret1")
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.Equal(t, "Ada", sess.User.Name)
	assert.Equal(t, models.RoleUser, sess.User.Role)
	assert.True(t, sess.User.IsVerified)
	assert.NotEqual(t, "secret1", sess.User.PasswordHash)

	claims, err := f.tokens.VerifyAccess(sess.Tokens.AccessToken)
	require.NoError(t, err)
	id, _ := claims.UserID()
	assert.Equal(t, sess.User.ID, id)

	_, err = f.svc.Register(ctx, "Other", "ada@example.com", "secret2")
	assert.ErrorIs(t, err, common.ErrEmailExists)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "Ada", "ada@example.com", "secret1")
	require.NoError(t, err)

	sess, err := f.svc.Login(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Tokens.RefreshToken)

	_, err = f.svc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestChangePassword_EndsOtherSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Register(ctx, "Ada", "ada@example.com", "secret1")
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, sess.User.ID, "wrong", "secret2")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)

	require.NoError(t, f.svc.ChangePassword(ctx, sess.User.ID, "secret1", "secret2"))

	_, err = f.tokens.Rotate(ctx, sess.Tokens.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenReused)

	_, err = f.svc.Login(ctx, "ada@example.com", "secret2")
	assert.NoError(t, err)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Register(ctx, "Ada", "ada@example.com", "secret1")
	require.NoError(t, err)

	var sent Message
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg Message) error {
		sent = msg
		return nil
	})

	require.NoError(t, f.svc.ForgotPassword(ctx, "ada@example.com"))
	assert.Equal(t, "ada@example.com", sent.To)

	token := resetTokenFrom(t, sent.Body)
	assert.Len(t, token, 64)

	stored, err := f.users.FindByID(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, hashToken(token), stored.ResetPasswordTokenHash, "only the hash is stored")

	require.NoError(t, f.svc.ResetPassword(ctx, token, "secret2"))
	_, err = f.svc.Login(ctx, "ada@example.com", "secret2")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "secret3"), common.ErrInvalidResetToken, "token is single use")
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "Ada", "ada@example.com", "secret1")
	require.NoError(t, err)

	var body string
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg Message) error {
		body = msg.Body
		return nil
	})
	require.NoError(t, f.svc.ForgotPassword(ctx, "ada@example.com"))

	f.now = f.now.Add(resetTokenTTL + time.Second)
	err = f.svc.ResetPassword(ctx, resetTokenFrom(t, body), "secret2")
	assert.ErrorIs(t, err, common.ErrInvalidResetToken)
}

func TestForgotPassword_NeverReveals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.svc.ForgotPassword(ctx, "nobody@example.com"))

	_, err := f.svc.Register(ctx, "Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	f.mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))
	assert.NoError(t, f.svc.ForgotPassword(ctx, "ada@example.com"))
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Register(ctx, "Ada", "ada@example.com", "secret1")
	require.NoError(t, err)
	claims, err := f.tokens.VerifyAccess(sess.Tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteAccount(ctx, claims))

	_, err = f.svc.GetMe(ctx, sess.User.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	revoked, err := f.tokens.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Register(ctx, "Ada", "ada@example.com", "secret1")
	require.NoError(t, err)

	u, err := f.svc.UpdateProfile(ctx, sess.User.ID, "  Ada Lovelace ")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", u.Name)
}

func resetTokenFrom(t *testing.T, body string) string {
	t.Helper()
	idx := strings.Index(body, "https://")
	require.GreaterOrEqual(t, idx, 0)
	link := strings.Fields(body[idx:])[0]
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}
