package models

import (
	"tikiti/src/types"

	"github.com/google/uuid"
)

type Attendee struct {
	ID     uuid.UUID `gorm:"type:uuid;primarykey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`

	User    User     `gorm:"foreignKey:user_id" json:"-"`
	Tickets []Ticket `gorm:"foreignKey:attendee_id" json:"tickets,omitempty"`

	types.Timestamps
}
