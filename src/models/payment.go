package models

import (
	"time"

	"tikiti/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment covers one checkout. Several Ticket rows may share it when a single
// STK push pays for multiple line items. ProviderRef is the CheckoutRequestID
// issued by the gateway at initiation time and is the lock and idempotency key
// for reconciliation.
type Payment struct {
	ID            uuid.UUID           `gorm:"type:uuid;primarykey" json:"id"`
	Method        string              `json:"payment_method"`
	Status        types.PaymentStatus `gorm:"index" json:"payment_status"`
	ProviderRef   string              `gorm:"uniqueIndex" json:"provider_ref"`
	ReceiptNumber *string             `json:"receipt_number,omitempty"`
	Amount        decimal.Decimal     `gorm:"type:numeric(10,2)" json:"amount"`
	Currency      string              `json:"currency"`
	FailureReason *string             `json:"failure_reason,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`

	Tickets []Ticket `gorm:"foreignKey:payment_id;constraint:OnDelete:CASCADE" json:"tickets,omitempty"`

	types.Timestamps
}
