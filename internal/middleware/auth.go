package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"finreview/internal/config"
)

const (
	ContextKeyReviewer = "reviewer"

	// AnonymousReviewer is recorded as the actor when reviewer tokens are
	// not configured.
	AnonymousReviewer = "anonymous"
)

// Reviewer returns middleware that identifies the reviewer from a bearer
// JWT signed with HS256. The token subject is the reviewer id. With no
// secret configured every request is attributed to AnonymousReviewer.
func Reviewer(cfg config.AuthConfig) gin.HandlerFunc {
	if cfg.JWTSecret == "" {
		return func(c *gin.Context) {
			c.Set(ContextKeyReviewer, AnonymousReviewer)
			c.Next()
		}
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)
	secret := []byte(cfg.JWTSecret)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "missing or invalid authorization header")
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := parser.ParseWithClaims(strings.TrimPrefix(authHeader, "Bearer "), claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			requestID, _ := c.Get(ContextKeyRequestID)
			zap.L().Debug("rejected reviewer token", zap.Any("request_id", requestID), zap.Error(err))
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextKeyReviewer, claims.Subject)
		c.Next()
	}
}

// GetReviewer returns the reviewer id for the request.
func GetReviewer(c *gin.Context) string {
	val, exists := c.Get(ContextKeyReviewer)
	if !exists {
		return AnonymousReviewer
	}
	s, _ := val.(string)
	if s == "" {
		return AnonymousReviewer
	}
	return s
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": "UNAUTHORIZED", "message": msg},
	})
}
