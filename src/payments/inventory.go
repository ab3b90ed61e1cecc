package payments

import (
	"fmt"
	"log"

	"tikiti/src/models"
	"tikiti/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger moves the sold counter on ticket types. Seats are reserved when a
// purchase is initiated and released when the payment reaches a terminal
// non-success status, so a successful payment never touches the counter again.
type Ledger struct{}

// Lock loads the type under a row lock so the caller's validations and the
// reservation all see the same stable row.
func (Ledger) Lock(tx *gorm.DB, ticketTypeID uuid.UUID) (*models.TicketType, error) {
	var tt models.TicketType
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", ticketTypeID).
		First(&tt).Error; err != nil {
		return nil, err
	}
	return &tt, nil
}

// Reserve claims quantity seats on a row already held by Lock. Two concurrent
// purchases cannot both claim the last seat because the second one blocks on
// the lock and re-reads the counter.
func (Ledger) Reserve(tx *gorm.DB, tt *models.TicketType, quantity int) error {
	if tt.Sold+quantity > tt.Quantity {
		return &SoldOutError{TicketType: tt.Name, Available: tt.Available()}
	}
	if err := tx.Model(&models.TicketType{}).
		Where("id = ?", tt.ID).
		Update("sold", gorm.Expr("sold + ?", quantity)).Error; err != nil {
		return err
	}
	tt.Sold += quantity
	return nil
}

// Release returns the seats held by every pending ticket of the payment.
// Tickets already in a terminal status keep their reservation accounting.
func (Ledger) Release(tx *gorm.DB, paymentID uuid.UUID) error {
	var tickets []models.Ticket
	if err := tx.Where("payment_id = ? AND status = ?", paymentID, types.TICKET_PENDING).Find(&tickets).Error; err != nil {
		return err
	}
	for _, t := range tickets {
		if err := tx.Model(&models.TicketType{}).
			Where("id = ?", t.TicketTypeID).
			Update("sold", gorm.Expr("GREATEST(sold - ?, 0)", t.Quantity)).Error; err != nil {
			return err
		}
		log.Printf("[inventory] Released %d seat(s) on ticket type %s\n", t.Quantity, t.TicketTypeID)
	}
	return nil
}

// SoldOutError reports a reservation that asked for more seats than remain.
type SoldOutError struct {
	TicketType string
	Available  int
}

func (e *SoldOutError) Error() string {
	return fmt.Sprintf("not enough tickets available for %s: only %d available", e.TicketType, e.Available)
}
