package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/coaltail/rhythmlink-backend/internal/apperr"
	"github.com/coaltail/rhythmlink-backend/internal/auth"
	"github.com/coaltail/rhythmlink-backend/internal/cache"
	"github.com/coaltail/rhythmlink-backend/internal/models"
	"github.com/coaltail/rhythmlink-backend/internal/repository"
	"github.com/coaltail/rhythmlink-backend/internal/storage"
	"github.com/coaltail/rhythmlink-backend/internal/validation"
	"github.com/google/uuid"
)

type UserService struct {
	userRepo repository.UserRepositoryInterface
	signer   *auth.TokenSigner
	blobs    storage.BlobStore
	cache    *cache.UserCache
}

func NewUserService(userRepo repository.UserRepositoryInterface, signer *auth.TokenSigner, blobs storage.BlobStore, userCache *cache.UserCache) *UserService {
	return &UserService{userRepo: userRepo, signer: signer, blobs: blobs, cache: userCache}
}

// EditProfileInput carries optional changes. Nil pointers and a nil genre
// slice leave the stored value untouched.
type EditProfileInput struct {
	Username         *string
	Password         *string
	Address          *string
	MainInstrument   *string
	GenresOfInterest []string
	Image            io.Reader
}

func (s *UserService) GetUser(ctx context.Context, userID uint) (*models.UserResponse, error) {
	if profile, ok := s.cache.GetProfile(ctx, userID); ok {
		return profile, nil
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, "user", userID)
	}

	resp := user.ToResponse()
	if err := s.cache.SetProfile(ctx, resp); err != nil {
		slog.Debug("cache: failed to store profile", "user_id", userID, "error", err)
	}
	return &resp, nil
}

// EditProfile applies the given changes and returns a token carrying the
// updated claims. A newly uploaded image is removed again if the update fails.
func (s *UserService) EditProfile(ctx context.Context, userID uint, input EditProfileInput) (*auth.Token, error) {
	ctx, span := tracer.Start(ctx, "UserService.EditProfile")
	defer span.End()

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, "user", userID)
	}

	var errs validation.Errors
	if input.Username != nil {
		username := validation.NormalizeUsername(*input.Username)
		if !validation.ValidateUsername(username) {
			errs.Add("username", fmt.Sprintf("username must be between %d and %d characters", validation.UsernameMinLength, validation.UsernameMaxLength))
		}
		user.Username = username
	}
	if input.Password != nil && !validation.ValidatePassword(*input.Password) {
		errs.Add("password", fmt.Sprintf("password must be at least %d characters", validation.PasswordMinLength()))
	}
	if input.Address != nil {
		if !validation.ValidateAddress(*input.Address) {
			errs.Add("address", fmt.Sprintf("address must be between %d and %d characters", validation.AddressMinLength, validation.AddressMaxLength))
		}
		user.Address = strings.TrimSpace(*input.Address)
	}
	if input.MainInstrument != nil {
		user.MainInstrument = validation.Instrument(&errs, "main_instrument", *input.MainInstrument)
	}
	if input.GenresOfInterest != nil {
		user.GenresOfInterest = validation.Genres(&errs, "genres_of_interest", input.GenresOfInterest)
	}

	var img *storage.ProcessedImage
	if input.Image != nil {
		img, err = storage.ProcessImage(input.Image, storage.DefaultImageOptions())
		if err != nil {
			errs.Add("main_image", err.Error())
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if input.Password != nil {
		hash, err := hashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	var uploadedKey string
	if img != nil {
		if s.blobs == nil {
			return nil, apperr.Internal("upload profile image", ErrStorageNotConfigured)
		}
		uploadedKey = fmt.Sprintf("users/%d/%s.jpg", user.ID, uuid.NewString())
		url, err := s.blobs.Upload(ctx, uploadedKey, img.Data, img.ContentType)
		if err != nil {
			return nil, apperr.Internal("upload profile image", err)
		}
		user.MainImageURL = url
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if uploadedKey != "" {
			if derr := s.blobs.Delete(ctx, uploadedKey); derr != nil {
				slog.Warn("storage: failed to remove orphaned upload", "key", uploadedKey, "error", derr)
			}
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.AlreadyExists("profile conflicts with an existing user")
		}
		return nil, apperr.Internal("update user", err)
	}

	if err := s.cache.InvalidateProfile(ctx, user.ID); err != nil {
		slog.Warn("cache: failed to invalidate profile", "user_id", user.ID, "error", err)
	}

	token, err := s.signer.Sign(auth.ClaimsFor(user))
	if err != nil {
		return nil, apperr.Internal("sign token", err)
	}
	return &token, nil
}
