package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/coaltail/rhythmlink-backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

const UserProfileTTL = 5 * time.Minute

// UserCache caches the profile returned by GET /users/me.
type UserCache struct {
	redis *RedisCache
}

// NewUserCache creates a new user cache
func NewUserCache(redis *RedisCache) *UserCache {
	return &UserCache{redis: redis}
}

func userProfileKey(userID uint) string {
	return fmt.Sprintf("user:%d:profile", userID)
}

func (uc *UserCache) GetProfile(ctx context.Context, userID uint) (*models.UserResponse, bool) {
	if uc == nil || uc.redis == nil {
		return nil, false
	}
	data, err := uc.redis.Get(ctx, userProfileKey(userID))
	if err != nil || data == nil {
		return nil, false
	}

	var profile models.UserResponse
	if err := msgpack.Unmarshal(data, &profile); err != nil {
		return nil, false
	}
	return &profile, true
}

func (uc *UserCache) SetProfile(ctx context.Context, profile models.UserResponse) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(profile)
	if err != nil {
		return err
	}
	return uc.redis.Set(ctx, userProfileKey(profile.ID), data, UserProfileTTL)
}

func (uc *UserCache) InvalidateProfile(ctx context.Context, userID uint) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	return uc.redis.Delete(ctx, userProfileKey(userID))
}
