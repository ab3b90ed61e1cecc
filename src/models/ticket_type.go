package models

import (
	"time"

	"tikiti/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TicketType is a priced tier of an Event with a bounded inventory. The sold
// counter never exceeds Quantity and is only mutated under a row lock inside a
// reservation or reconciliation transaction.
type TicketType struct {
	ID             uuid.UUID       `gorm:"type:uuid;primarykey" json:"id"`
	EventID        uuid.UUID       `gorm:"type:uuid;index" json:"event_id"`
	Name           string          `json:"name"`
	Description    *string         `json:"description,omitempty"`
	Price          decimal.Decimal `gorm:"type:numeric(10,2)" json:"price"`
	Currency       string          `gorm:"default:'KES'" json:"currency"`
	Quantity       int             `json:"quantity"`
	Sold           int             `gorm:"default:0" json:"sold"`
	ValidFrom      *time.Time      `json:"valid_from,omitempty"`
	ValidTo        *time.Time      `json:"valid_to,omitempty"`
	PerPersonLimit int             `json:"per_person_limit,omitempty"`
	Active         bool            `gorm:"default:true" json:"active"`

	Event Event `gorm:"foreignKey:event_id" json:"-"`

	types.Timestamps
}

func (t *TicketType) Available() int {
	return t.Quantity - t.Sold
}

// WithinWindow reports whether the type is on sale at the given instant. A nil
// bound is open-ended.
func (t *TicketType) WithinWindow(now time.Time) bool {
	if t.ValidFrom != nil && now.Before(*t.ValidFrom) {
		return false
	}
	if t.ValidTo != nil && now.After(*t.ValidTo) {
		return false
	}
	return true
}
