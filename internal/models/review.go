package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is a client's rating of the freelancer whose bid they accepted.
type Review struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BidID        uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"bid_id"`
	GigID        uuid.UUID `gorm:"type:uuid;index;not null" json:"gig_id"`
	ClientID     uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	FreelancerID uuid.UUID `gorm:"type:uuid;index;not null" json:"freelancer_id"`

	Rating  int    `gorm:"not null" json:"rating"` // 1-5
	Comment string `gorm:"type:text" json:"comment"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
