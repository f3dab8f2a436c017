package repository

import (
	"context"

	"github.com/coaltail/rhythmlink-backend/internal/models"
)

// UserRepositoryInterface defines the contract for user repository operations
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// GroupFilter narrows a group search. Empty fields do not filter.
type GroupFilter struct {
	Name   string
	Genres []models.Genre
	Limit  int
	Offset int
}

// GroupRepositoryInterface defines the contract for group repository operations
type GroupRepositoryInterface interface {
	CreateWithOwner(ctx context.Context, group *models.Group, genres []models.Genre) error
	FindByID(ctx context.Context, id uint) (*models.Group, error)
	Search(ctx context.Context, filter GroupFilter) ([]models.Group, error)
	ListWithGenres(ctx context.Context) ([]models.Group, error)
	IsMember(ctx context.Context, groupID, userID uint) (bool, error)
	GetMemberRole(ctx context.Context, groupID, userID uint) (models.GroupRole, error)
	GetMembers(ctx context.Context, groupID uint) ([]models.GroupMember, error)
	GetUserGroups(ctx context.Context, userID uint) ([]models.Group, error)
}

// JoinRequestRepositoryInterface defines the contract for group join request operations
type JoinRequestRepositoryInterface interface {
	CreatePending(ctx context.Context, groupID, userID uint) (*models.GroupJoinRequest, error)
	Find(ctx context.Context, groupID, userID uint) (*models.GroupJoinRequest, error)
	ListByGroup(ctx context.Context, groupID uint) ([]models.GroupJoinRequest, error)
	Accept(ctx context.Context, groupID, userID uint) (*models.GroupJoinRequest, error)
	Deny(ctx context.Context, groupID, userID uint) (*models.GroupJoinRequest, error)
}

// ThreadRepositoryInterface defines the contract for thread operations
type ThreadRepositoryInterface interface {
	Resolve(ctx context.Context, userID, groupID uint) (*models.Thread, bool, error)
	FindByID(ctx context.Context, id uint) (*models.Thread, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Thread, error)
	ListByGroup(ctx context.Context, groupID uint) ([]models.Thread, error)
}

// MessageRepositoryInterface defines the contract for message repository operations
type MessageRepositoryInterface interface {
	Append(ctx context.Context, message *models.Message) error
	ListByThread(ctx context.Context, threadID uint) ([]models.Message, error)
	LatestByThreads(ctx context.Context, threadIDs []uint) (map[uint]models.Message, error)
	LatestID(ctx context.Context, threadID uint) (uint, error)
	UnreadCounts(ctx context.Context, threadIDs []uint, readerID uint, from models.SenderType) (map[uint]int64, error)
}

// ReadStateRepositoryInterface defines the contract for thread read state operations
type ReadStateRepositoryInterface interface {
	MarkRead(ctx context.Context, threadID, userID, messageID uint) error
	Get(ctx context.Context, threadID, userID uint) (*models.ThreadReadState, error)
}
