package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/coaltail/rhythmlink-backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// TTL constants for different cache types
const (
	ThreadMessagesTTL = 5 * time.Minute
	ThreadListTTL     = 2 * time.Minute
)

// ThreadCache handles thread and message listing caches. A nil *ThreadCache,
// or one without Redis, is a valid always-miss cache.
type ThreadCache struct {
	redis *RedisCache
}

// NewThreadCache creates a new thread cache
func NewThreadCache(redis *RedisCache) *ThreadCache {
	return &ThreadCache{redis: redis}
}

func ThreadMessagesKey(threadID uint) string {
	return fmt.Sprintf("thread:%d:messages", threadID)
}

func UserThreadsKey(userID uint) string {
	return fmt.Sprintf("threads:user:%d", userID)
}

// GroupThreadsKey is per reader because unread counts differ between members.
func GroupThreadsKey(groupID, readerID uint) string {
	return fmt.Sprintf("threads:group:%d:%d", groupID, readerID)
}

func groupThreadsPattern(groupID uint) string {
	return fmt.Sprintf("threads:group:%d:*", groupID)
}

func (tc *ThreadCache) enabled() bool {
	return tc != nil && tc.redis != nil
}

func (tc *ThreadCache) GetMessages(ctx context.Context, threadID uint) ([]models.MessageResponse, bool) {
	var messages []models.MessageResponse
	ok := tc.get(ctx, ThreadMessagesKey(threadID), &messages)
	return messages, ok
}

func (tc *ThreadCache) SetMessages(ctx context.Context, threadID uint, messages []models.MessageResponse) error {
	return tc.set(ctx, ThreadMessagesKey(threadID), messages, ThreadMessagesTTL)
}

func (tc *ThreadCache) GetUserThreads(ctx context.Context, userID uint) ([]models.ThreadSummary, bool) {
	var threads []models.ThreadSummary
	ok := tc.get(ctx, UserThreadsKey(userID), &threads)
	return threads, ok
}

func (tc *ThreadCache) SetUserThreads(ctx context.Context, userID uint, threads []models.ThreadSummary) error {
	return tc.set(ctx, UserThreadsKey(userID), threads, ThreadListTTL)
}

func (tc *ThreadCache) GetGroupThreads(ctx context.Context, groupID, readerID uint) ([]models.ThreadSummary, bool) {
	var threads []models.ThreadSummary
	ok := tc.get(ctx, GroupThreadsKey(groupID, readerID), &threads)
	return threads, ok
}

func (tc *ThreadCache) SetGroupThreads(ctx context.Context, groupID, readerID uint, threads []models.ThreadSummary) error {
	return tc.set(ctx, GroupThreadsKey(groupID, readerID), threads, ThreadListTTL)
}

// InvalidateThread drops everything a new message in the thread makes stale: its
// message list, the participant's thread list and every member's view of the group.
func (tc *ThreadCache) InvalidateThread(ctx context.Context, thread *models.Thread) error {
	if !tc.enabled() {
		return nil
	}
	if err := tc.redis.Delete(ctx, ThreadMessagesKey(thread.ID), UserThreadsKey(thread.UserID)); err != nil {
		return err
	}
	return tc.redis.DeletePattern(ctx, groupThreadsPattern(thread.GroupID))
}

// InvalidateReader drops the reader's listings that show unread counts for the thread.
func (tc *ThreadCache) InvalidateReader(ctx context.Context, thread *models.Thread, readerID uint) error {
	if !tc.enabled() {
		return nil
	}
	keys := []string{GroupThreadsKey(thread.GroupID, readerID)}
	if readerID == thread.UserID {
		keys = append(keys, UserThreadsKey(readerID))
	}
	return tc.redis.Delete(ctx, keys...)
}

func (tc *ThreadCache) get(ctx context.Context, key string, out interface{}) bool {
	if !tc.enabled() {
		return false
	}
	data, err := tc.redis.Get(ctx, key)
	if err != nil || data == nil {
		return false
	}
	return msgpack.Unmarshal(data, out) == nil
}

func (tc *ThreadCache) set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !tc.enabled() {
		return nil
	}
	data, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}
	return tc.redis.Set(ctx, key, data, ttl)
}
