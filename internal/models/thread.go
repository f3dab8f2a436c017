package models

import "time"

// Thread is the single conversation channel between one user and one group.
type Thread struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`

	UserID  uint `gorm:"not null;uniqueIndex:idx_threads_user_group" json:"user_id"`
	GroupID uint `gorm:"not null;uniqueIndex:idx_threads_user_group;index" json:"group_id"`

	User  User  `gorm:"foreignKey:UserID" json:"-"`
	Group Group `gorm:"foreignKey:GroupID" json:"-"`
}

// ThreadReadState tracks how far a reader got in a thread.
// last_read_message_id is monotonic and represents the highest message ID the user has read.
type ThreadReadState struct {
	ThreadID          uint      `gorm:"primaryKey" json:"thread_id"`
	UserID            uint      `gorm:"primaryKey" json:"user_id"`
	LastReadMessageID uint      `gorm:"not null;default:0" json:"last_read_message_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ThreadSummary is one row of a thread listing. Group is set when a user lists
// their threads, Participant when a group member lists the group's threads.
type ThreadSummary struct {
	ID                   uint                `json:"id"`
	UserID               uint                `json:"user_id"`
	GroupID              uint                `json:"group_id"`
	Group                *GroupResponse      `json:"group,omitempty"`
	Participant          *PublicUserResponse `json:"participant,omitempty"`
	LastMessage          *string             `json:"last_message"`
	LastMessageTimestamp *time.Time          `json:"last_message_timestamp"`
	UnreadCount          int64               `json:"unread_count"`
	UpdatedAt            time.Time           `json:"updated_at"`
}
