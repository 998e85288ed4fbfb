package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filemart/internal/logging"
	"filemart/internal/models"
	"filemart/internal/repository/memory"
	"filemart/internal/tokens"
)

type gateFixture struct {
	tokens *tokens.Service
	users  *memory.Users
	now    time.Time
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &gateFixture{users: memory.NewUsers(), now: time.Now()}
	clock := func() time.Time { return f.now }
	f.tokens = tokens.NewService(f.users, memory.NewRevocations().WithClock(clock), tokens.Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
	}, logging.Nop()).WithClock(clock)
	return f
}

func (f *gateFixture) login(t *testing.T, role string) (*tokens.Pair, *tokens.Claims) {
	t.Helper()
	u := &models.User{Email: role + "@example.com", Role: role}
	require.NoError(t, f.users.Create(context.Background(), u))
	pair, err := f.tokens.IssueTokenPair(context.Background(), u)
	require.NoError(t, err)
	claims, err := f.tokens.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	return pair, claims
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func codeOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["code"]
}

func gatedRouter(verifier TokenVerifier, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthGate(verifier, logging.Nop())}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		id, _ := UserIDFrom(c)
		c.JSON(http.StatusOK, gin.H{"userId": id.Hex(), "role": c.GetString(RoleKey)})
	})
	r.GET("/protected", handlers...)
	return r
}

func TestAuthGate_AcceptsValidToken(t *testing.T) {
	f := newGateFixture(t)
	pair, claims := f.login(t, models.RoleUser)

	rec := serve(gatedRouter(f.tokens), "Bearer "+pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), claims.Subject)
}

func TestAuthGate_Rejections(t *testing.T) {
	f := newGateFixture(t)
	pair, claims := f.login(t, models.RoleUser)
	r := gatedRouter(f.tokens)

	cases := []struct {
		name   string
		header string
		code   string
		setup  func()
	}{
		{"missing header", "", "unauthenticated", nil},
		{"wrong scheme", "Basic " + pair.AccessToken, "unauthenticated", nil},
		{"garbage", "Bearer nope", "invalid_token", nil},
		{"refresh token", "Bearer " + pair.RefreshToken, "invalid_token", nil},
		{"revoked", "Bearer " + pair.AccessToken, "token_revoked", func() {
			require.NoError(t, f.tokens.RevokeAccessToken(context.Background(), claims.ID, claims.ExpiresAtTime()))
		}},
		{"expired", "Bearer " + pair.AccessToken, "token_expired", func() {
			f.now = f.now.Add(time.Hour)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setup != nil {
				tc.setup()
			}
			rec := serve(r, tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tc.code, codeOf(t, rec))
		})
	}
}

type brokenLedger struct {
	*tokens.Service
}

func (brokenLedger) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("ledger offline")
}

func TestAuthGate_LedgerFailureIs500(t *testing.T) {
	f := newGateFixture(t)
	pair, _ := f.login(t, models.RoleUser)

	rec := serve(gatedRouter(brokenLedger{f.tokens}), "Bearer "+pair.AccessToken)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireRole(t *testing.T) {
	f := newGateFixture(t)
	userPair, _ := f.login(t, models.RoleUser)
	adminPair, _ := f.login(t, models.RoleAdmin)
	r := gatedRouter(f.tokens, AdminOnly())

	rec := serve(r, "Bearer "+userPair.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", codeOf(t, rec))

	rec = serve(r, "Bearer "+adminPair.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_WithoutGate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
