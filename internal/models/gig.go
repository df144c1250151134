package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PricingType string

const (
	PricingFixed  PricingType = "fixed"
	PricingHourly PricingType = "hourly"
)

// Gig is a service listing. It is never hard-deleted so bid history keeps
// pointing at it; owners deactivate it instead.
type Gig struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FreelancerID uuid.UUID `gorm:"type:uuid;not null;index" json:"freelancer_id"`

	Title       string `gorm:"type:varchar(100);not null" json:"title"`
	Description string `gorm:"type:text;not null" json:"description"`
	Category    string `gorm:"type:varchar(60);not null;index" json:"category"`
	Subcategory string `gorm:"type:varchar(60)" json:"subcategory"`

	PricingType  PricingType                `gorm:"type:varchar(10);not null" json:"pricing_type"`
	Amount       float64                    `gorm:"not null" json:"amount"`
	DeliveryDays int                        `gorm:"not null" json:"delivery_days"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`

	IsActive bool `gorm:"not null;default:true;index" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Freelancer *User `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
}

func (g *Gig) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return
}
