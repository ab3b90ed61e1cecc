package models

import (
	"time"

	"tikiti/src/types"

	"github.com/google/uuid"
)

type Event struct {
	ID            uuid.UUID  `gorm:"type:uuid;primarykey" json:"id"`
	OrganizerID   uuid.UUID  `gorm:"type:uuid" json:"organizer_id"`
	Title         string     `json:"title"`
	Slug          string     `gorm:"uniqueIndex" json:"slug"`
	Description   *string    `json:"description,omitempty"`
	Location      string     `json:"location"`
	StartDatetime time.Time  `json:"start_datetime"`
	EndDatetime   *time.Time `json:"end_datetime,omitempty"`
	Currency      string     `gorm:"default:'KES'" json:"currency"`
	Featured      bool       `json:"featured"`

	Organizer     Organizer       `gorm:"foreignKey:organizer_id" json:"-"`
	TicketTypes   []TicketType    `gorm:"foreignKey:event_id" json:"ticket_types,omitempty"`
	Tickets       []Ticket        `gorm:"foreignKey:event_id" json:"-"`
	Categories    []*Category     `gorm:"many2many:event_categories;" json:"categories,omitempty"`
	DiscountCodes []*DiscountCode `gorm:"many2many:event_discount_codes;" json:"discount_codes,omitempty"`

	types.Timestamps
}
