package repository

import (
	"errors"
	"fmt"

	"github.com/coaltail/rhythmlink-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

var (
	// ErrDuplicate means a unique key already holds a row.
	ErrDuplicate = errors.New("duplicate record")
	// ErrAlreadyResolved means a join request was accepted or denied before.
	ErrAlreadyResolved = errors.New("join request already resolved")
)

// InitDB opens PostgreSQL, attaches the tracing plugin and migrates the schema.
func InitDB(dsn string, traced bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if traced {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("attach tracing: %w", err)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupGenre{},
		&models.GroupMember{},
		&models.GroupJoinRequest{},
		&models.Thread{},
		&models.Message{},
		&models.ThreadReadState{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
