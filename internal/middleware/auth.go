package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"filemart/internal/common"
	"filemart/internal/logging"
	"filemart/internal/models"
	"filemart/internal/tokens"
)

const (
	ClaimsKey = "claims"
	UserIDKey = "userId"
	RoleKey   = "role"
)

type TokenVerifier interface {
	VerifyAccess(token string) (*tokens.Claims, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthGate rejects the request unless it carries a valid, unexpired and
// non-revoked bearer access token. On success the claims, user id and role
// are stored on the context.
func AuthGate(verifier TokenVerifier, log logging.Logger) gin.HandlerFunc {
	log = log.With("component", "AUTH")
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token", "code": "unauthenticated"})
			return
		}

		claims, err := verifier.VerifyAccess(raw)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token expired", "code": "token_expired"})
				return
			}
			log.Info(ctx, "access token rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "invalid_token"})
			return
		}

		if claims.ID != "" {
			revoked, err := verifier.IsRevoked(ctx, claims.ID)
			if err != nil {
				log.Error(ctx, "revocation lookup failed", "err", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked", "code": "token_revoked"})
				return
			}
		}

		userID, _ := claims.UserID()
		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, userID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole must run after AuthGate.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthenticated"})
			return
		}
		for _, r := range allowedRoles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "code": "forbidden"})
	}
}

func AdminOnly() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}

func ClaimsFrom(c *gin.Context) (*tokens.Claims, bool) {
	value, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*tokens.Claims)
	return claims, ok
}

func UserIDFrom(c *gin.Context) (primitive.ObjectID, bool) {
	value, ok := c.Get(UserIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := value.(primitive.ObjectID)
	return id, ok && !id.IsZero()
}

func bearerToken(header string) (string, bool) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return "", false
	}
	parts := strings.Fields(raw)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
