package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleFreelancer
}

type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string    `gorm:"type:varchar(100);not null" json:"name"`
	Email    string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password string    `gorm:"not null" json:"-"`
	Role     Role      `gorm:"type:varchar(20);not null;index" json:"role"`

	Bio            string                     `gorm:"type:text" json:"bio"`
	Skills         datatypes.JSONSlice[string] `json:"skills"`
	HourlyRate     float64                    `json:"hourly_rate"`
	Location       string                     `gorm:"type:varchar(120)" json:"location"`
	ProfilePicture string                     `gorm:"type:text" json:"profile_picture"`

	RatingAverage float64 `gorm:"not null;default:0" json:"rating_average"`
	RatingCount   int     `gorm:"not null;default:0" json:"rating_count"`

	IsActive        bool `gorm:"not null;default:true" json:"is_active"`
	IsEmailVerified bool `gorm:"not null;default:false" json:"is_email_verified"`
	IsVerified      bool `gorm:"not null;default:false" json:"is_verified"`

	RefreshToken         *string    `gorm:"type:text" json:"-"`
	PasswordResetToken   *string    `gorm:"type:varchar(64);index" json:"-"`
	PasswordResetExpires *time.Time `json:"-"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

// SetResetToken sets or clears the reset hash and its expiry together.
func (u *User) SetResetToken(hash string, expires time.Time) {
	u.PasswordResetToken = &hash
	u.PasswordResetExpires = &expires
}

func (u *User) ClearResetToken() {
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
}

// PublicUser is the sanitized view of a User. It never carries the password
// hash, the refresh token or the reset fields.
type PublicUser struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Role            Role       `json:"role"`
	Bio             string     `json:"bio"`
	Skills          []string   `json:"skills"`
	HourlyRate      float64    `json:"hourly_rate"`
	Location        string     `json:"location"`
	ProfilePicture  string     `json:"profile_picture"`
	RatingAverage   float64    `json:"rating_average"`
	RatingCount     int        `json:"rating_count"`
	IsActive        bool       `json:"is_active"`
	IsEmailVerified bool       `json:"is_email_verified"`
	IsVerified      bool       `json:"is_verified"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (u User) Public() PublicUser {
	skills := []string(u.Skills)
	if skills == nil {
		skills = []string{}
	}
	return PublicUser{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.Role,
		Bio:             u.Bio,
		Skills:          skills,
		HourlyRate:      u.HourlyRate,
		Location:        u.Location,
		ProfilePicture:  u.ProfilePicture,
		RatingAverage:   u.RatingAverage,
		RatingCount:     u.RatingCount,
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		IsVerified:      u.IsVerified,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
	}
}
