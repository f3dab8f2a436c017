package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/coaltail/rhythmlink-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append stores the message and bumps its thread's updated_at in one transaction.
func (r *MessageRepository) Append(ctx context.Context, message *models.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(message).Error; err != nil {
			return fmt.Errorf("insert message: %w", translate(err))
		}
		res := tx.Model(&models.Thread{}).
			Where("id = ?", message.ThreadID).
			UpdateColumn("updated_at", message.CreatedAt)
		if res.Error != nil {
			return fmt.Errorf("touch thread: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ListByThread returns the thread's messages oldest first, ties broken by id.
func (r *MessageRepository) ListByThread(ctx context.Context, threadID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("SenderUser").
		Preload("SenderGroup").
		Preload("SentBy").
		Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// LatestByThreads returns the newest message of each thread that has one.
func (r *MessageRepository) LatestByThreads(ctx context.Context, threadIDs []uint) (map[uint]models.Message, error) {
	latest := make(map[uint]models.Message, len(threadIDs))
	if len(threadIDs) == 0 {
		return latest, nil
	}

	db := r.db.WithContext(ctx)
	newest := db.Model(&models.Message{}).
		Select("MAX(id)").
		Where("thread_id IN ?", threadIDs).
		Group("thread_id")

	var messages []models.Message
	if err := db.Where("id IN (?)", newest).Find(&messages).Error; err != nil {
		return nil, err
	}
	for _, m := range messages {
		latest[m.ThreadID] = m
	}
	return latest, nil
}

func (r *MessageRepository) LatestID(ctx context.Context, threadID uint) (uint, error) {
	var id uint
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("COALESCE(MAX(id), 0)").
		Where("thread_id = ?", threadID).
		Scan(&id).Error
	return id, err
}

type unreadRow struct {
	ThreadID uint
	Unread   int64
}

// UnreadCounts counts, per thread, messages sent by the given side after the
// reader's read pointer. Threads with nothing unread are absent from the map.
func (r *MessageRepository) UnreadCounts(ctx context.Context, threadIDs []uint, readerID uint, from models.SenderType) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(threadIDs))
	if len(threadIDs) == 0 {
		return counts, nil
	}

	q := r.db.WithContext(ctx).
		Table("messages AS m").
		Select("m.thread_id AS thread_id, COUNT(*) AS unread").
		Joins("LEFT JOIN thread_read_states rs ON rs.thread_id = m.thread_id AND rs.user_id = ?", readerID).
		Where("m.thread_id IN ?", threadIDs).
		Where("m.id > COALESCE(rs.last_read_message_id, 0)")
	switch from {
	case models.SenderGroup:
		q = q.Where("m.sender_group_id IS NOT NULL")
	case models.SenderUser:
		q = q.Where("m.sender_user_id IS NOT NULL")
	}

	var rows []unreadRow
	if err := q.Group("m.thread_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ThreadID] = row.Unread
	}
	return counts, nil
}
