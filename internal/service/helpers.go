package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coaltail/rhythmlink-backend/internal/apperr"
	"github.com/coaltail/rhythmlink-backend/internal/events"
	"github.com/coaltail/rhythmlink-backend/internal/telemetry"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrStorageNotConfigured is returned when an operation needs blob storage and
// the process started without it.
var ErrStorageNotConfigured = errors.New("storage not configured")

var tracer = telemetry.Tracer("service")

// lookupErr turns a failed single-row load into NotFound or Internal.
func lookupErr(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %d not found", what, id)
	}
	return apperr.Internal(fmt.Sprintf("load %s %d", what, id), err)
}

// publish hands the event to the broker after the owning write committed. A
// failed publish is logged and never fails the request.
func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(context.WithoutCancel(ctx), e); err != nil {
		slog.Warn("events: publish failed", "type", e.Type, "key", e.Key, "error", err)
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Internal("hash password", err)
	}
	return string(hash), nil
}
