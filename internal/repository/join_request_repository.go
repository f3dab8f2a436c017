package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/coaltail/rhythmlink-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JoinRequestRepository struct {
	db *gorm.DB
}

func NewJoinRequestRepository(db *gorm.DB) *JoinRequestRepository {
	return &JoinRequestRepository{db: db}
}

// CreatePending opens a request for (group, user). A DENIED request is reopened in
// place; a PENDING or ACCEPTED one yields ErrDuplicate. Both paths are single
// conditional statements, so concurrent callers cannot both succeed.
func (r *JoinRequestRepository) CreatePending(ctx context.Context, groupID, userID uint) (*models.GroupJoinRequest, error) {
	now := time.Now().UTC()
	req := models.GroupJoinRequest{
		UserID:  userID,
		GroupID: groupID,
		Status:  models.JoinRequestPending,
		SentAt:  now,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&req)
		if res.Error != nil {
			return fmt.Errorf("insert join request: %w", translate(res.Error))
		}
		if res.RowsAffected == 1 {
			return nil
		}

		res = tx.Model(&models.GroupJoinRequest{}).
			Where("user_id = ? AND group_id = ? AND status = ?", userID, groupID, models.JoinRequestDenied).
			Updates(map[string]any{
				"status":       models.JoinRequestPending,
				"sent_at":      now,
				"responded_at": nil,
			})
		if res.Error != nil {
			return fmt.Errorf("reopen join request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDuplicate
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *JoinRequestRepository) Find(ctx context.Context, groupID, userID uint) (*models.GroupJoinRequest, error) {
	var req models.GroupJoinRequest
	if err := r.db.WithContext(ctx).Where("user_id = ? AND group_id = ?", userID, groupID).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// ListByGroup returns the group's requests newest first, with the requesting user loaded.
func (r *JoinRequestRepository) ListByGroup(ctx context.Context, groupID uint) ([]models.GroupJoinRequest, error) {
	var reqs []models.GroupJoinRequest
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("group_id = ?", groupID).
		Order("sent_at DESC, user_id ASC").
		Find(&reqs).Error
	return reqs, err
}

// Accept moves a PENDING request to ACCEPTED and adds the MEMBER row in the same
// transaction. Returns gorm.ErrRecordNotFound if there is no request and
// ErrAlreadyResolved if it is not pending.
func (r *JoinRequestRepository) Accept(ctx context.Context, groupID, userID uint) (*models.GroupJoinRequest, error) {
	var req models.GroupJoinRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := resolvePending(tx, groupID, userID, models.JoinRequestAccepted); err != nil {
			return err
		}

		member := models.GroupMember{GroupID: groupID, UserID: userID, Role: models.RoleMember}
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
			return fmt.Errorf("insert membership: %w", translate(err))
		}

		return tx.Where("user_id = ? AND group_id = ?", userID, groupID).First(&req).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Deny moves a PENDING request to DENIED. Membership is untouched.
func (r *JoinRequestRepository) Deny(ctx context.Context, groupID, userID uint) (*models.GroupJoinRequest, error) {
	var req models.GroupJoinRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := resolvePending(tx, groupID, userID, models.JoinRequestDenied); err != nil {
			return err
		}
		return tx.Where("user_id = ? AND group_id = ?", userID, groupID).First(&req).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func resolvePending(tx *gorm.DB, groupID, userID uint, status models.JoinRequestStatus) error {
	res := tx.Model(&models.GroupJoinRequest{}).
		Where("user_id = ? AND group_id = ? AND status = ?", userID, groupID, models.JoinRequestPending).
		Updates(map[string]any{
			"status":       status,
			"responded_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("update join request: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := tx.Model(&models.GroupJoinRequest{}).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrAlreadyResolved
}
