package validation

import (
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/coaltail/rhythmlink-backend/internal/apperr"
	"github.com/coaltail/rhythmlink-backend/internal/models"
)

const (
	UsernameMinLength  = 6
	UsernameMaxLength  = 64
	AddressMinLength   = 10
	AddressMaxLength   = 255
	GroupNameMaxLength = 100
)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	// Reject display-name forms like "Bob <bob@example.com>".
	return err == nil && addr.Address == email
}

func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func ValidateUsername(username string) bool {
	n := utf8.RuneCountInString(NormalizeUsername(username))
	return n >= UsernameMinLength && n <= UsernameMaxLength
}

func ValidateAddress(address string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(address))
	return n >= AddressMinLength && n <= AddressMaxLength
}

func PasswordMinLength() int {
	minStr := os.Getenv("PASSWORD_MIN_LENGTH")
	if minStr == "" {
		return 10
	}
	min, err := strconv.Atoi(minStr)
	if err != nil || min < 8 {
		return 10
	}
	return min
}

func ValidatePassword(password string) bool {
	return len(password) >= PasswordMinLength()
}

func MaxMessageLength() int {
	maxStr := os.Getenv("MAX_MESSAGE_LENGTH")
	if maxStr == "" {
		return 4000
	}
	max, err := strconv.Atoi(maxStr)
	if err != nil || max < 1 {
		return 4000
	}
	return max
}

// Errors collects field failures so a request reports every bad field at once.
type Errors struct {
	fields []apperr.FieldError
}

func (e *Errors) Add(field, message string) {
	e.fields = append(e.fields, apperr.FieldError{Field: field, Message: message})
}

func (e *Errors) Empty() bool {
	return len(e.fields) == 0
}

// Err returns nil when nothing was added, otherwise a validation error carrying every field.
func (e *Errors) Err() error {
	if e.Empty() {
		return nil
	}
	return apperr.Validation("validation failed", e.fields...)
}

// MessageContent trims content and checks it against MAX_MESSAGE_LENGTH.
func MessageContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.Validation("validation failed", apperr.FieldError{Field: "content", Message: "content is required"})
	}
	if max := MaxMessageLength(); utf8.RuneCountInString(content) > max {
		return "", apperr.Validation("validation failed", apperr.FieldError{
			Field:   "content",
			Message: fmt.Sprintf("content must be at most %d characters", max),
		})
	}
	return content, nil
}

// Instrument parses an instrument into errs under field.
func Instrument(errs *Errors, field, value string) models.Instrument {
	if strings.TrimSpace(value) == "" {
		errs.Add(field, "main instrument is required")
		return ""
	}
	inst, err := models.ParseInstrument(value)
	if err != nil {
		errs.Add(field, "invalid main instrument, must be one of the predefined values")
		return ""
	}
	return inst
}

// Genres parses a non-empty genre set into errs under field.
func Genres(errs *Errors, field string, values []string) []models.Genre {
	if len(values) == 0 {
		errs.Add(field, "at least one genre is required")
		return nil
	}
	genres, err := models.ParseGenres(values)
	if err != nil {
		errs.Add(field, "invalid genre, must be one of the predefined values")
		return nil
	}
	return genres
}

// GroupName trims a group name and records a failure if it is empty or too long.
func GroupName(errs *Errors, field, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		errs.Add(field, "name is required")
	case utf8.RuneCountInString(name) > GroupNameMaxLength:
		errs.Add(field, fmt.Sprintf("name must be at most %d characters", GroupNameMaxLength))
	}
	return name
}
