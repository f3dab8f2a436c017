package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/coaltail/rhythmlink-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// CreateWithOwner inserts the group, its genre rows and the OWNER membership as one unit.
func (r *GroupRepository) CreateWithOwner(ctx context.Context, group *models.Group, genres []models.Genre) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(group).Error; err != nil {
			return fmt.Errorf("insert group: %w", translate(err))
		}

		rows := make([]models.GroupGenre, 0, len(genres))
		for _, g := range genres {
			rows = append(rows, models.GroupGenre{GroupID: group.ID, Genre: g})
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert group genres: %w", translate(err))
			}
		}

		owner := models.GroupMember{GroupID: group.ID, UserID: group.OwnerID, Role: models.RoleOwner}
		if err := tx.Omit(clause.Associations).Create(&owner).Error; err != nil {
			return fmt.Errorf("insert owner membership: %w", translate(err))
		}

		group.Genres = rows
		return nil
	})
}

func (r *GroupRepository) FindByID(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).Preload("Genres").First(&group, id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// Search matches name as a case-insensitive substring and keeps groups sharing at
// least one genre with filter.Genres. Results are ordered by id.
func (r *GroupRepository) Search(ctx context.Context, filter GroupFilter) ([]models.Group, error) {
	q := r.db.WithContext(ctx).Model(&models.Group{})

	if name := strings.TrimSpace(filter.Name); name != "" {
		q = q.Where(`LOWER(groups.name) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(name))+"%")
	}
	if len(filter.Genres) > 0 {
		q = q.Where("EXISTS (SELECT 1 FROM group_genres gg WHERE gg.group_id = groups.id AND gg.genre IN ?)", genreStrings(filter.Genres))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var groups []models.Group
	err := q.Preload("Genres").Order("groups.id ASC").Find(&groups).Error
	return groups, err
}

// ListWithGenres loads every group with its genre set.
func (r *GroupRepository) ListWithGenres(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).Preload("Genres").Order("id ASC").Find(&groups).Error
	return groups, err
}

func (r *GroupRepository) GetMembers(ctx context.Context, groupID uint) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("group_id = ?", groupID).
		Order("joined_at ASC, user_id ASC").
		Find(&members).Error
	return members, err
}

func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *GroupRepository) GetMemberRole(ctx context.Context, groupID, userID uint) (models.GroupRole, error) {
	var member models.GroupMember
	if err := r.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).First(&member).Error; err != nil {
		return "", err
	}
	return member.Role, nil
}

func (r *GroupRepository) GetUserGroups(ctx context.Context, userID uint) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Preload("Genres").
		Order("groups.id ASC").
		Find(&groups).Error
	return groups, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func genreStrings(genres []models.Genre) []string {
	out := make([]string, len(genres))
	for i, g := range genres {
		out[i] = string(g)
	}
	return out
}
