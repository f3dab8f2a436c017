package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Username         string                     `gorm:"size:64;not null" json:"username"`
	Email            string                     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash     string                     `gorm:"not null" json:"-"`
	Address          string                     `gorm:"size:255;not null" json:"address"`
	MainInstrument   Instrument                 `gorm:"type:varchar(20);not null" json:"main_instrument"`
	GenresOfInterest datatypes.JSONSlice[Genre] `gorm:"not null" json:"genres_of_interest"`
	MainImageURL     string                     `json:"main_image_url"`
}

type UserResponse struct {
	ID               uint       `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	Address          string     `json:"address"`
	MainInstrument   Instrument `json:"main_instrument"`
	GenresOfInterest []Genre    `json:"genres_of_interest"`
	MainImageURL     string     `json:"main_image_url,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (u *User) ToResponse() UserResponse {
	genres := make([]Genre, len(u.GenresOfInterest))
	copy(genres, u.GenresOfInterest)
	return UserResponse{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		Address:          u.Address,
		MainInstrument:   u.MainInstrument,
		GenresOfInterest: genres,
		MainImageURL:     u.MainImageURL,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

// PublicUserResponse is what other people see: no email, no address.
type PublicUserResponse struct {
	ID             uint       `json:"id"`
	Username       string     `json:"username"`
	MainInstrument Instrument `json:"main_instrument"`
	MainImageURL   string     `json:"main_image_url,omitempty"`
}

func (u *User) ToPublicResponse() PublicUserResponse {
	return PublicUserResponse{
		ID:             u.ID,
		Username:       u.Username,
		MainInstrument: u.MainInstrument,
		MainImageURL:   u.MainImageURL,
	}
}
