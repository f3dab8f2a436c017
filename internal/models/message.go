package models

import "time"

// Message belongs to exactly one side of its thread: either SenderUserID or
// SenderGroupID is set, never both. SentByUserID is the account that wrote it,
// which for group-side replies is the member speaking for the group.
type Message struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index:idx_messages_thread_created,priority:2" json:"created_at"`

	ThreadID      uint   `gorm:"not null;index:idx_messages_thread_created,priority:1" json:"thread_id"`
	Content       string `gorm:"type:text;not null" json:"content"`
	SenderUserID  *uint  `gorm:"index;check:chk_messages_single_sender,(sender_user_id IS NULL) <> (sender_group_id IS NULL)" json:"sender_user_id"`
	SenderGroupID *uint  `gorm:"index" json:"sender_group_id"`
	SentByUserID  uint   `gorm:"not null" json:"sent_by_user_id"`

	Thread      Thread `gorm:"foreignKey:ThreadID" json:"-"`
	SenderUser  *User  `gorm:"foreignKey:SenderUserID" json:"-"`
	SenderGroup *Group `gorm:"foreignKey:SenderGroupID" json:"-"`
	SentBy      User   `gorm:"foreignKey:SentByUserID" json:"-"`
}

func (m *Message) SenderType() SenderType {
	if m.SenderGroupID != nil {
		return SenderGroup
	}
	return SenderUser
}

// ParticipantResponse is either side of a thread, reduced to what a message
// listing needs to render it.
type ParticipantResponse struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

type MessageResponse struct {
	ID         uint                `json:"id"`
	ThreadID   uint                `json:"thread_id"`
	Content    string              `json:"content"`
	SenderType SenderType          `json:"sender_type"`
	Sender     ParticipantResponse `json:"sender"`
	SentBy     ParticipantResponse `json:"sent_by"`
	SentAt     time.Time           `json:"sent_at"`
}

// ToResponse expects SenderUser or SenderGroup and SentBy to be loaded.
func (m *Message) ToResponse() MessageResponse {
	resp := MessageResponse{
		ID:         m.ID,
		ThreadID:   m.ThreadID,
		Content:    m.Content,
		SenderType: m.SenderType(),
		SentBy:     userParticipant(&m.SentBy),
		SentAt:     m.CreatedAt,
	}
	switch {
	case m.SenderGroup != nil:
		resp.Sender = ParticipantResponse{ID: m.SenderGroup.ID, Name: m.SenderGroup.Name, ImageURL: m.SenderGroup.MainImageURL}
	case m.SenderUser != nil:
		resp.Sender = userParticipant(m.SenderUser)
	case m.SenderGroupID != nil:
		resp.Sender = ParticipantResponse{ID: *m.SenderGroupID}
	case m.SenderUserID != nil:
		resp.Sender = ParticipantResponse{ID: *m.SenderUserID}
	}
	if resp.SentBy.ID == 0 {
		resp.SentBy = ParticipantResponse{ID: m.SentByUserID}
	}
	return resp
}

func userParticipant(u *User) ParticipantResponse {
	return ParticipantResponse{ID: u.ID, Name: u.Username, ImageURL: u.MainImageURL}
}
