package repository

import (
	"context"
	"time"

	"github.com/coaltail/rhythmlink-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReadStateRepository struct {
	db *gorm.DB
}

func NewReadStateRepository(db *gorm.DB) *ReadStateRepository {
	return &ReadStateRepository{db: db}
}

// MarkRead advances the reader's pointer to messageID. The pointer never moves backwards.
func (r *ReadStateRepository) MarkRead(ctx context.Context, threadID, userID, messageID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state := models.ThreadReadState{ThreadID: threadID, UserID: userID, LastReadMessageID: messageID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&state)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return nil
		}
		return tx.Model(&models.ThreadReadState{}).
			Where("thread_id = ? AND user_id = ? AND last_read_message_id < ?", threadID, userID, messageID).
			Updates(map[string]any{
				"last_read_message_id": messageID,
				"updated_at":           time.Now().UTC(),
			}).Error
	})
}

func (r *ReadStateRepository) Get(ctx context.Context, threadID, userID uint) (*models.ThreadReadState, error) {
	var state models.ThreadReadState
	if err := r.db.WithContext(ctx).Where("thread_id = ? AND user_id = ?", threadID, userID).First(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}
