package middleware

import (
	"strings"

	"github.com/coaltail/rhythmlink-backend/internal/auth"
	"github.com/coaltail/rhythmlink-backend/internal/httpx"
	"github.com/gofiber/fiber/v2"
)

// AuthRequired accepts "Authorization: Bearer <token>" and stores the caller's
// id under the "userID" local.
func AuthRequired(signer *auth.TokenSigner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return httpx.Unauthorized(c, "missing_access_token", "Missing access token")
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenString) == "" {
			return httpx.Unauthorized(c, "invalid_authorization", "Invalid authorization format")
		}

		claims, err := signer.Parse(strings.TrimSpace(tokenString))
		if err != nil {
			return httpx.Unauthorized(c, "invalid_access_token", "Invalid or expired token")
		}

		c.Locals("userID", claims.UserID)
		c.Locals("username", claims.Username)

		return c.Next()
	}
}
