package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BidStatus string

const (
	BidPending   BidStatus = "pending"
	BidAccepted  BidStatus = "accepted"
	BidRejected  BidStatus = "rejected"
	BidWithdrawn BidStatus = "withdrawn"
)

func (s BidStatus) Valid() bool {
	switch s {
	case BidPending, BidAccepted, BidRejected, BidWithdrawn:
		return true
	}
	return false
}

// Terminal statuses never change again.
func (s BidStatus) Terminal() bool {
	return s == BidAccepted || s == BidRejected || s == BidWithdrawn
}

// Bid is a freelancer's proposal on a gig. ClientID is copied from the gig
// owner when the bid is created and is not re-derived afterwards.
type Bid struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GigID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bids_gig_freelancer,priority:1;index" json:"gig_id"`
	FreelancerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bids_gig_freelancer,priority:2;index" json:"freelancer_id"`
	ClientID     uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`

	Amount       float64 `gorm:"not null" json:"amount"`
	DeliveryTime int     `gorm:"not null" json:"delivery_time"`
	Proposal     string  `gorm:"type:varchar(1000);not null" json:"proposal"`

	Status BidStatus `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Gig *Gig `gorm:"foreignKey:GigID" json:"gig,omitempty"`
}

func (b *Bid) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}

// VisibleTo reports whether userID is one of the two parties of the bid.
func (b Bid) VisibleTo(userID uuid.UUID) bool {
	return b.FreelancerID == userID || b.ClientID == userID
}
