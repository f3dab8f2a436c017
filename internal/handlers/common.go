package handlers

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/coaltail/rhythmlink-backend/internal/apperr"
	"github.com/coaltail/rhythmlink-backend/internal/httpx"
	"github.com/gofiber/fiber/v2"
)

// currentUser returns the id AuthRequired stored for the request.
func currentUser(c *fiber.Ctx) (uint, error) {
	id, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return 0, &apperr.Error{Kind: apperr.KindUnauthorized, Message: "Unauthorized"}
	}
	return id, nil
}

func invalidBody(field string) error {
	return apperr.Validation("invalid request body", apperr.FieldError{Field: field, Message: "must be valid JSON"})
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return invalidBody("body")
	}
	return nil
}

// multipartJSON decodes the JSON document carried in a multipart form field.
// An absent field leaves out untouched.
func multipartJSON(c *fiber.Ctx, field string, out any) error {
	raw := c.FormValue(field)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return invalidBody(field)
	}
	return nil
}

// optionalFile opens the named upload. The returned closer is never nil.
func optionalFile(c *fiber.Ctx, field string) (io.Reader, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, func() {}, nil
	}
	f, err := header.Open()
	if err != nil {
		return nil, func() {}, apperr.Validation("invalid upload", apperr.FieldError{Field: field, Message: "could not read file"})
	}
	return f, func() { _ = f.Close() }, nil
}

// listParam accepts either a JSON array (["Rock","Jazz"]) or a comma-separated list.
func listParam(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out
		}
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
