package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"filemart/internal/common"
	"filemart/internal/logging"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{common.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "authentication required"},
	{common.ErrTokenExpired, http.StatusUnauthorized, "token_expired", "token expired"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "invalid_token", "invalid token"},
	{common.ErrTokenRevoked, http.StatusUnauthorized, "token_revoked", "token revoked"},
	{common.ErrTokenReused, http.StatusForbidden, "token_reused", "refresh token is no longer valid"},
	{common.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "invalid credentials"},
	{common.ErrForbidden, http.StatusForbidden, "forbidden", "forbidden"},
	{common.ErrEmailExists, http.StatusConflict, "email_exists", "email already registered"},
	{common.ErrInvalidResetToken, http.StatusBadRequest, "invalid_reset_token", "invalid or expired reset token"},
	{common.ErrUnknownProvider, http.StatusBadRequest, "unknown_provider", "unknown identity provider"},
	{common.ErrInvalidProfile, http.StatusBadRequest, "invalid_profile", "incomplete identity profile"},
	{common.ErrInvalidIDToken, http.StatusUnauthorized, "invalid_id_token", "invalid identity token"},
	{common.ErrGrantNotFound, http.StatusNotFound, "link_not_found", "download link not found"},
	{common.ErrGrantRevoked, http.StatusForbidden, "link_revoked", "download link revoked"},
	{common.ErrGrantExpired, http.StatusGone, "link_expired", "download link expired"},
	{common.ErrQuotaExhausted, http.StatusTooManyRequests, "download_limit_reached", "download limit reached"},
	{common.ErrInvalidGrantOptions, http.StatusBadRequest, "invalid_options", "invalid download link options"},
	{common.ErrOrderNotPaid, http.StatusBadRequest, "order_not_paid", "order is not paid"},
	{common.ErrOrderNotPending, http.StatusBadRequest, "order_not_pending", "order is not pending"},
	{common.ErrInvalidOrder, http.StatusBadRequest, "invalid_order", ""},
	{common.ErrInvalidProduct, http.StatusBadRequest, "invalid_product", ""},
	{common.ErrNotFound, http.StatusNotFound, "not_found", "not found"},
}

// respondError maps a service error onto its HTTP status. Unknown errors
// become a 500 and are logged with their cause.
func respondError(c *gin.Context, log logging.Logger, route string, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			message := m.message
			if message == "" {
				message = err.Error()
			}
			c.AbortWithStatusJSON(m.status, gin.H{"error": message, "code": m.code})
			return
		}
	}
	log.Error(c.Request.Context(), "request failed", "route", route, "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
