package models

import (
	"tikiti/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ticket is created in pending status at reservation time. Price is a snapshot
// of unit price times quantity and is never recomputed from the TicketType.
type Ticket struct {
	ID           uuid.UUID          `gorm:"type:uuid;primarykey" json:"id"`
	EventID      uuid.UUID          `gorm:"type:uuid;index" json:"event_id"`
	AttendeeID   uuid.UUID          `gorm:"type:uuid;index" json:"attendee_id"`
	TicketTypeID uuid.UUID          `gorm:"type:uuid;index" json:"ticket_type_id"`
	PaymentID    uuid.UUID          `gorm:"type:uuid;index" json:"payment_id"`
	Quantity     int                `json:"quantity"`
	Price        decimal.Decimal    `gorm:"type:numeric(10,2)" json:"price"`
	Currency     string             `json:"currency"`
	Status       types.TicketStatus `gorm:"index" json:"status"`
	QRCode       string             `gorm:"uniqueIndex" json:"qr_code"`

	Event      Event      `gorm:"foreignKey:event_id" json:"event,omitempty"`
	Attendee   Attendee   `gorm:"foreignKey:attendee_id" json:"-"`
	TicketType TicketType `gorm:"foreignKey:ticket_type_id" json:"ticket_type,omitempty"`

	types.Timestamps
}
