package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"filemart/internal/accounts"
	"filemart/internal/common"
	"filemart/internal/logging"
	"filemart/internal/middleware"
	"filemart/internal/tokens"
)

const refreshCookieName = "refreshToken"

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// OAuthLoginRequest carries the ID token the client received from the provider.
type OAuthLoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

type UpdateProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

// CookieConfig controls the refresh token cookie.
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

func setRefreshCookie(c *gin.Context, cfg CookieConfig, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, int(cfg.MaxAge.Seconds()), "/", "", cfg.Secure, true)
}

func clearRefreshCookie(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, "/", "", cfg.Secure, true)
}

func respondSession(c *gin.Context, cookies CookieConfig, status int, sess *accounts.Session) {
	setRefreshCookie(c, cookies, sess.Tokens.RefreshToken)
	c.JSON(status, gin.H{
		"accessToken": sess.Tokens.AccessToken,
		"expiresAt":   sess.Tokens.AccessExpiresAt,
		"user":        sess.User,
	})
}

func Register(svc *accounts.Service, cookies CookieConfig, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/register"
		defer handlePanic(c, log, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		sess, err := svc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		respondSession(c, cookies, http.StatusCreated, sess)
	}
}

func Login(svc *accounts.Service, cookies CookieConfig, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/login"
		defer handlePanic(c, log, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		sess, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		respondSession(c, cookies, http.StatusOK, sess)
	}
}

// RefreshToken rotates the pair carried by the refresh cookie. Any rejected
// token also clears the cookie.
func RefreshToken(svc *tokens.Service, cookies CookieConfig, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/refresh-token"
		defer handlePanic(c, log, route)

		presented, _ := c.Cookie(refreshCookieName)
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "refresh token missing", "code": "unauthenticated"})
			return
		}

		pair, err := svc.Rotate(c.Request.Context(), presented)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenReused), errors.Is(err, common.ErrNotFound):
				clearRefreshCookie(c, cookies)
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid refresh token", "code": "invalid_refresh_token"})
			default:
				respondError(c, log, route, err)
			}
			return
		}

		setRefreshCookie(c, cookies, pair.RefreshToken)
		c.JSON(http.StatusOK, gin.H{
			"accessToken": pair.AccessToken,
			"expiresAt":   pair.AccessExpiresAt,
		})
	}
}

func Logout(svc *accounts.Service, cookies CookieConfig, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/logout"
		defer handlePanic(c, log, route)

		claims, ok := middleware.ClaimsFrom(c)
		if !ok {
			respondError(c, log, route, common.ErrUnauthenticated)
			return
		}
		if err := svc.Logout(c.Request.Context(), claims); err != nil {
			respondError(c, log, route, err)
			return
		}
		clearRefreshCookie(c, cookies)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

func GetMe(svc *accounts.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /auth/me"
		defer handlePanic(c, log, route)

		userID, ok := currentUserID(c)
		if !ok {
			respondError(c, log, route, common.ErrUnauthenticated)
			return
		}
		user, err := svc.GetMe(c.Request.Context(), userID)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func UpdateMe(svc *accounts.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /auth/me"
		defer handlePanic(c, log, route)

		userID, ok := currentUserID(c)
		if !ok {
			respondError(c, log, route, common.ErrUnauthenticated)
			return
		}
		var req UpdateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		user, err := svc.UpdateProfile(c.Request.Context(), userID, req.Name)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func DeleteMe(svc *accounts.Service, cookies CookieConfig, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /auth/me"
		defer handlePanic(c, log, route)

		claims, ok := middleware.ClaimsFrom(c)
		if !ok {
			respondError(c, log, route, common.ErrUnauthenticated)
			return
		}
		if err := svc.DeleteAccount(c.Request.Context(), claims); err != nil {
			respondError(c, log, route, err)
			return
		}
		clearRefreshCookie(c, cookies)
		c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
	}
}

func ChangePassword(svc *accounts.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/change-password"
		defer handlePanic(c, log, route)

		userID, ok := currentUserID(c)
		if !ok {
			respondError(c, log, route, common.ErrUnauthenticated)
			return
		}
		var req ChangePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if err := svc.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password changed"})
	}
}

func ForgotPassword(svc *accounts.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/forgot-password"
		defer handlePanic(c, log, route)

		var req ForgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		_ = svc.ForgotPassword(c.Request.Context(), req.Email)
		c.JSON(http.StatusOK, gin.H{"message": "if an account with this email exists, a reset link has been sent"})
	}
}

func ResetPassword(svc *accounts.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/reset-password/:token"
		defer handlePanic(c, log, route)

		var req ResetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if err := svc.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password reset, you can now log in"})
	}
}

func OAuthLogin(svc *accounts.Service, cookies CookieConfig, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/oauth/:provider"
		defer handlePanic(c, log, route)

		var req OAuthLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		sess, err := svc.OAuthLogin(c.Request.Context(), c.Param("provider"), req.IDToken)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		respondSession(c, cookies, http.StatusOK, sess)
	}
}
