package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coaltail/rhythmlink-backend/internal/apperr"
	"github.com/coaltail/rhythmlink-backend/internal/auth"
	"github.com/coaltail/rhythmlink-backend/internal/models"
	"github.com/coaltail/rhythmlink-backend/internal/repository"
	"github.com/coaltail/rhythmlink-backend/internal/validation"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	userRepo repository.UserRepositoryInterface
	signer   *auth.TokenSigner
}

func NewAuthService(userRepo repository.UserRepositoryInterface, signer *auth.TokenSigner) *AuthService {
	return &AuthService{userRepo: userRepo, signer: signer}
}

type RegisterInput struct {
	Username         string   `json:"username"`
	Email            string   `json:"email"`
	Password         string   `json:"password"`
	Address          string   `json:"address"`
	MainInstrument   string   `json:"main_instrument"`
	GenresOfInterest []string `json:"genres_of_interest"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*auth.Token, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Register")
	defer span.End()

	var errs validation.Errors
	email := validation.NormalizeEmail(input.Email)
	if !validation.ValidateEmail(email) {
		errs.Add("email", "email must be a valid address")
	}
	username := validation.NormalizeUsername(input.Username)
	if !validation.ValidateUsername(username) {
		errs.Add("username", fmt.Sprintf("username must be between %d and %d characters", validation.UsernameMinLength, validation.UsernameMaxLength))
	}
	if !validation.ValidatePassword(input.Password) {
		errs.Add("password", fmt.Sprintf("password must be at least %d characters", validation.PasswordMinLength()))
	}
	if !validation.ValidateAddress(input.Address) {
		errs.Add("address", fmt.Sprintf("address must be between %d and %d characters", validation.AddressMinLength, validation.AddressMaxLength))
	}
	instrument := validation.Instrument(&errs, "main_instrument", input.MainInstrument)
	genres := validation.Genres(&errs, "genres_of_interest", input.GenresOfInterest)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:         username,
		Email:            email,
		PasswordHash:     hash,
		Address:          strings.TrimSpace(input.Address),
		MainInstrument:   instrument,
		GenresOfInterest: genres,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.AlreadyExists("email %s is already registered", email)
		}
		return nil, apperr.Internal("create user", err)
	}

	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*auth.Token, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.userRepo.FindByEmail(ctx, validation.NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.InvalidCredentials("invalid email or password")
		}
		return nil, apperr.Internal("load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, apperr.InvalidCredentials("invalid email or password")
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*auth.Token, error) {
	token, err := s.signer.Sign(auth.ClaimsFor(user))
	if err != nil {
		return nil, apperr.Internal("sign token", err)
	}
	return &token, nil
}
