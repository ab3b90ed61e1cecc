package payments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tikiti/src/models"
	"tikiti/src/mpesa"
	"tikiti/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ValidationError is a purchase rejected for a reason the caller can fix.
// Handlers map it to a 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// PurchaseResult is returned to the buyer after a successful initiation.
type PurchaseResult struct {
	CheckoutRequestID string
	PaymentID         uuid.UUID
	TicketIDs         []uuid.UUID
	Amount            decimal.Decimal
}

// Orchestrator owns the synchronous half of a purchase: validate, reserve
// seats, create the pending payment and tickets, fire the STK push, then hand
// the reference to the reconciliation engine. Everything up to the push runs
// in one transaction so a gateway rejection leaves no residue.
type Orchestrator struct {
	DB      *gorm.DB
	Gateway mpesa.Gateway
	Ledger  Ledger
	Engine  *Engine
}

func (o *Orchestrator) Reserve(ctx context.Context, user *models.User, event *models.Event, body *types.PurchaseRequestBody) (*PurchaseResult, error) {
	phone := body.Phone
	if phone == "" {
		phone = user.Phone
	}
	if phone == "" {
		return nil, invalid("no phone number on file; supply one with the purchase")
	}

	var result PurchaseResult
	err := o.DB.Transaction(func(tx *gorm.DB) error {
		attendee, err := o.ensureAttendee(tx, user)
		if err != nil {
			return err
		}

		var discount *models.DiscountCode
		if body.DiscountCode != "" {
			discount, err = o.loadDiscount(tx, event, body.DiscountCode)
			if err != nil {
				return err
			}
		}

		payment := models.Payment{
			ID:       uuid.New(),
			Method:   "mpesa",
			Status:   types.PAYMENT_PENDING,
			Currency: event.Currency,
			// Placeholder until the gateway hands back its reference;
			// keeps the unique index on provider_ref satisfied.
			ProviderRef: "init-" + uuid.NewString(),
		}

		now := time.Now()
		total := decimal.Zero
		var tickets []models.Ticket
		for _, item := range body.Items {
			ttID, err := uuid.Parse(item.TicketTypeID)
			if err != nil {
				return invalid("invalid ticket type id %q", item.TicketTypeID)
			}
			tt, err := o.Ledger.Lock(tx, ttID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return invalid("unknown ticket type %s", item.TicketTypeID)
				}
				return err
			}
			if tt.EventID != event.ID {
				return invalid("ticket type %s does not belong to this event", tt.Name)
			}
			if !tt.Active || !tt.WithinWindow(now) {
				return invalid("ticket type %s is not on sale", tt.Name)
			}
			if tt.PerPersonLimit > 0 {
				held, err := o.heldQuantity(tx, attendee.ID, tt.ID)
				if err != nil {
					return err
				}
				if held+item.Quantity > tt.PerPersonLimit {
					return invalid("limit of %d per person for %s", tt.PerPersonLimit, tt.Name)
				}
			}
			if err := o.Ledger.Reserve(tx, tt, item.Quantity); err != nil {
				return err
			}
			linePrice := tt.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			total = total.Add(linePrice)
			tickets = append(tickets, models.Ticket{
				ID:           uuid.New(),
				EventID:      event.ID,
				AttendeeID:   attendee.ID,
				TicketTypeID: tt.ID,
				PaymentID:    payment.ID,
				Quantity:     item.Quantity,
				Price:        linePrice,
				Currency:     tt.Currency,
				Status:       types.TICKET_PENDING,
				QRCode:       uuid.NewString(),
			})
		}

		if discount != nil {
			pct := decimal.NewFromInt(int64(discount.DiscountPercentage)).Div(decimal.NewFromInt(100))
			total = total.Sub(total.Mul(pct)).Round(2)
			if err := tx.Model(discount).Update("uses", gorm.Expr("uses + 1")).Error; err != nil {
				return err
			}
		}
		if !total.Equal(body.TotalAmount) {
			return invalid("total mismatch: expected %s, got %s", total.StringFixed(2), body.TotalAmount.StringFixed(2))
		}

		payment.Amount = total
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		if err := tx.Create(&tickets).Error; err != nil {
			return err
		}

		checkout, err := o.Gateway.InitiateSTKPush(ctx, total, phone)
		if err != nil {
			log.Printf("[purchase] STK push failed for payment %s: %s\n", payment.ID, err.Error())
			return err
		}
		if err := tx.Model(&payment).Update("provider_ref", checkout).Error; err != nil {
			return err
		}

		result = PurchaseResult{
			CheckoutRequestID: checkout,
			PaymentID:         payment.ID,
			Amount:            total,
		}
		for _, t := range tickets {
			result.TicketIDs = append(result.TicketIDs, t.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.Engine.SchedulePoll(result.CheckoutRequestID, 1)
	log.Printf("[purchase] Initiated payment %s (%s) for user %s\n", result.PaymentID, result.CheckoutRequestID, user.ID)
	return &result, nil
}

func (o *Orchestrator) ensureAttendee(tx *gorm.DB, user *models.User) (*models.Attendee, error) {
	var attendee models.Attendee
	err := tx.Where(models.Attendee{UserID: user.ID}).
		Attrs(models.Attendee{ID: uuid.New()}).
		FirstOrCreate(&attendee).Error
	if err != nil {
		return nil, err
	}
	return &attendee, nil
}

func (o *Orchestrator) loadDiscount(tx *gorm.DB, event *models.Event, code string) (*models.DiscountCode, error) {
	var discount models.DiscountCode
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Joins("JOIN event_discount_codes edc ON edc.discount_code_id = discount_codes.id").
		Where("edc.event_id = ? AND discount_codes.code = ?", event.ID, code).
		First(&discount).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, invalid("discount code %q is not valid for this event", code)
		}
		return nil, err
	}
	if !discount.Valid(time.Now()) {
		return nil, invalid("discount code %q has expired or is used up", code)
	}
	return &discount, nil
}

// heldQuantity counts seats this attendee already holds on a type, pending or
// purchased, for per-person limit enforcement.
func (o *Orchestrator) heldQuantity(tx *gorm.DB, attendeeID, ticketTypeID uuid.UUID) (int, error) {
	var held int64
	err := tx.Model(&models.Ticket{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("attendee_id = ? AND ticket_type_id = ? AND status IN ?",
			attendeeID, ticketTypeID,
			[]types.TicketStatus{types.TICKET_PENDING, types.TICKET_PURCHASED, types.TICKET_USED}).
		Scan(&held).Error
	return int(held), err
}
