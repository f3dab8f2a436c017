package middleware

import (
	"strings"

	"github.com/coaltail/rhythmlink-backend/internal/httpx"
	"github.com/gofiber/fiber/v2"
)

// OriginAllowed rejects browser requests from origins outside the comma-separated
// allow-list. Requests without an Origin header, or an empty list, pass.
func OriginAllowed(allowList string) fiber.Handler {
	allowedOrigins := splitCSV(strings.TrimSpace(allowList))
	return func(c *fiber.Ctx) error {
		origin := strings.TrimSpace(c.Get("Origin"))
		if origin == "" || len(allowedOrigins) == 0 {
			return c.Next()
		}
		if !originAllowed(origin, allowedOrigins) {
			return httpx.Forbidden(c, "forbidden_origin", "Origin not allowed")
		}
		return c.Next()
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.TrimRight(p, "/"))
		}
	}
	return out
}

func originAllowed(origin string, allowed []string) bool {
	origin = strings.TrimRight(origin, "/")
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
