package models

import (
	"sort"
	"time"

	"gorm.io/gorm"
)

type Group struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name         string `gorm:"size:100;not null;index" json:"name"`
	OwnerID      uint   `gorm:"not null;index" json:"owner_id"`
	MainImageURL string `json:"main_image_url"`

	// Associations
	Owner   User          `gorm:"foreignKey:OwnerID" json:"-"`
	Genres  []GroupGenre  `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	Members []GroupMember `gorm:"foreignKey:GroupID" json:"-"`
}

// GroupGenre is one element of a group's genre set. Kept as rows rather than a
// JSON column so genre intersection stays a plain SQL filter.
type GroupGenre struct {
	GroupID uint  `gorm:"primaryKey" json:"group_id"`
	Genre   Genre `gorm:"primaryKey;type:varchar(20);index" json:"genre"`
}

// GenreList returns the group's genres in canonical order.
func (g *Group) GenreList() []Genre {
	out := make([]Genre, 0, len(g.Genres))
	for _, gg := range g.Genres {
		out = append(out, gg.Genre)
	}
	sort.Slice(out, func(i, j int) bool { return genreIndex(out[i]) < genreIndex(out[j]) })
	return out
}

func genreIndex(g Genre) int {
	for i, v := range AllGenres {
		if v == g {
			return i
		}
	}
	return len(AllGenres)
}

type GroupResponse struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	OwnerID      uint      `json:"owner_id"`
	Genres       []Genre   `json:"genres"`
	MainImageURL string    `json:"main_image_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (g *Group) ToResponse() GroupResponse {
	return GroupResponse{
		ID:           g.ID,
		Name:         g.Name,
		OwnerID:      g.OwnerID,
		Genres:       g.GenreList(),
		MainImageURL: g.MainImageURL,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

type GroupMember struct {
	GroupID  uint      `gorm:"primaryKey" json:"group_id"`
	UserID   uint      `gorm:"primaryKey;index" json:"user_id"`
	Role     GroupRole `gorm:"type:varchar(20);not null;default:'MEMBER'" json:"role"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`

	User  User  `gorm:"foreignKey:UserID" json:"-"`
	Group Group `gorm:"foreignKey:GroupID" json:"-"`
}

type GroupMemberResponse struct {
	User     PublicUserResponse `json:"user"`
	Role     GroupRole          `json:"role"`
	JoinedAt time.Time          `json:"joined_at"`
}

func (m *GroupMember) ToResponse() GroupMemberResponse {
	return GroupMemberResponse{
		User:     m.User.ToPublicResponse(),
		Role:     m.Role,
		JoinedAt: m.JoinedAt,
	}
}

// GroupJoinRequest is keyed by (user, group); a denied request is reused when the
// user asks again.
type GroupJoinRequest struct {
	UserID      uint              `gorm:"primaryKey" json:"user_id"`
	GroupID     uint              `gorm:"primaryKey;index" json:"group_id"`
	Status      JoinRequestStatus `gorm:"type:varchar(20);not null;default:'Received';index" json:"status"`
	SentAt      time.Time         `gorm:"not null" json:"sent_at"`
	RespondedAt *time.Time        `json:"responded_at"`

	User  User  `gorm:"foreignKey:UserID" json:"-"`
	Group Group `gorm:"foreignKey:GroupID" json:"-"`
}

type JoinRequestResponse struct {
	UserID      uint                `json:"user_id"`
	GroupID     uint                `json:"group_id"`
	Status      JoinRequestStatus   `json:"status"`
	SentAt      time.Time           `json:"sent_at"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`
	User        *PublicUserResponse `json:"user,omitempty"`
}

func (r *GroupJoinRequest) ToResponse() JoinRequestResponse {
	resp := JoinRequestResponse{
		UserID:      r.UserID,
		GroupID:     r.GroupID,
		Status:      r.Status,
		SentAt:      r.SentAt,
		RespondedAt: r.RespondedAt,
	}
	if r.User.ID != 0 {
		u := r.User.ToPublicResponse()
		resp.User = &u
	}
	return resp
}
