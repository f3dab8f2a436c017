package repository

import (
	"context"
	"fmt"

	"github.com/coaltail/rhythmlink-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ThreadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

// Resolve returns the thread for (user, group), inserting it if absent. The insert
// is ON CONFLICT DO NOTHING against the unique pair, so racing callers converge on
// one row. The bool reports whether this call created it.
func (r *ThreadRepository) Resolve(ctx context.Context, userID, groupID uint) (*models.Thread, bool, error) {
	db := r.db.WithContext(ctx)

	candidate := models.Thread{UserID: userID, GroupID: groupID}
	res := db.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "group_id"}},
			DoNothing: true,
		}).
		Create(&candidate)
	if res.Error != nil {
		return nil, false, fmt.Errorf("insert thread: %w", translate(res.Error))
	}

	var thread models.Thread
	if err := db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&thread).Error; err != nil {
		return nil, false, fmt.Errorf("load thread: %w", err)
	}
	return &thread, res.RowsAffected == 1, nil
}

func (r *ThreadRepository) FindByID(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	if err := r.db.WithContext(ctx).First(&thread, id).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

// ListByUser returns the user's threads with their group loaded, most recently active first.
func (r *ThreadRepository) ListByUser(ctx context.Context, userID uint) ([]models.Thread, error) {
	var threads []models.Thread
	err := r.db.WithContext(ctx).
		Preload("Group").
		Preload("Group.Genres").
		Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		Find(&threads).Error
	return threads, err
}

// ListByGroup returns the group's threads with the participating user loaded,
// most recently active first.
func (r *ThreadRepository) ListByGroup(ctx context.Context, groupID uint) ([]models.Thread, error) {
	var threads []models.Thread
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("group_id = ?", groupID).
		Order("updated_at DESC, id DESC").
		Find(&threads).Error
	return threads, err
}
