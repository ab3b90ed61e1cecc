package payments

import (
	"context"
	"errors"
	"log"
	"time"

	"tikiti/src/lib"
	"tikiti/src/models"
	"tikiti/src/mpesa"
	"tikiti/src/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Trigger identifies which path delivered a gateway outcome. Both paths feed
// the same Apply so the ordering between a callback and a poll never matters.
type Trigger string

const (
	TriggerCallback Trigger = "callback"
	TriggerPoll     Trigger = "poll"
	TriggerSweep    Trigger = "sweep"
)

const (
	maxPollAttempts = 3
	basePollDelay   = 5 * time.Second
	lockTimeout     = 30 * time.Second
)

var ErrUnknownTransaction = errors.New("no payment found for transaction")

// Runner schedules deferred work. lib.GocronRunner is the production
// implementation.
type Runner interface {
	RunAt(at time.Time, name string, fn func()) error
}

// Engine drives every pending payment to exactly one terminal status. All
// status transitions go through Apply under the per-reference lock, inside a
// single database transaction, so each payment settles exactly once no matter
// how many callbacks and polls race for it.
type Engine struct {
	DB       *gorm.DB
	Gateway  mpesa.Gateway
	Locks    *LockManager
	Ledger   Ledger
	Notifier Dispatcher
	Runner   Runner
}

func NewEngine(db *gorm.DB, gw mpesa.Gateway, notifier Dispatcher, runner Runner) *Engine {
	return &Engine{
		DB:       db,
		Gateway:  gw,
		Locks:    NewLockManager(),
		Notifier: notifier,
		Runner:   runner,
	}
}

// Apply settles the outcome for one checkout reference. Terminal payments are
// left untouched, which makes redelivered callbacks and late polls harmless.
// Pending and transient outcomes are ignored here; the poll loop owns retry
// decisions.
func (e *Engine) Apply(checkoutID string, res *mpesa.Result, trigger Trigger) error {
	if res.Kind == mpesa.KindPending || res.Kind == mpesa.KindTransient {
		return nil
	}
	var settled bool
	var completed *models.Payment
	var completedTickets []models.Ticket
	var notifyEmail string
	err := e.Locks.WithLock(checkoutID, lockTimeout, func() error {
		return e.DB.Transaction(func(tx *gorm.DB) error {
			var payment models.Payment
			if err := tx.
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("provider_ref = ?", checkoutID).
				First(&payment).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrUnknownTransaction
				}
				return err
			}
			if payment.Status.Terminal() {
				log.Printf("[payments] %s already %s, ignoring %s\n", checkoutID, payment.Status, trigger)
				return nil
			}
			settled = true
			switch res.Kind {
			case mpesa.KindSuccess:
				now := time.Now()
				paidAt := res.PaidAt
				if paidAt == nil {
					paidAt = &now
				}
				updates := map[string]any{
					"status":  types.PAYMENT_COMPLETED,
					"paid_at": paidAt,
				}
				if res.Receipt != "" {
					updates["receipt_number"] = res.Receipt
				}
				if err := tx.Model(&payment).Updates(updates).Error; err != nil {
					return err
				}
				if err := tx.Model(&models.Ticket{}).
					Where("payment_id = ? AND status = ?", payment.ID, types.TICKET_PENDING).
					Update("status", types.TICKET_PURCHASED).Error; err != nil {
					return err
				}
				var tickets []models.Ticket
				if err := tx.
					Preload("TicketType").
					Preload("Attendee.User").
					Where("payment_id = ?", payment.ID).
					Find(&tickets).Error; err != nil {
					return err
				}
				if len(tickets) > 0 {
					notifyEmail = tickets[0].Attendee.User.Email
				}
				completed = &payment
				completedTickets = tickets
				return nil
			case mpesa.KindCanceled:
				return e.failPayment(tx, &payment, types.PAYMENT_CANCELED, types.TICKET_CANCELED, res.Reason)
			default:
				// A sweep fails the payment because the reservation timed
				// out, not because the charge was declined; the tickets
				// record that distinction.
				ts := types.TICKET_PAYMENT_FAILED
				if trigger == TriggerSweep {
					ts = types.TICKET_EXPIRED
				}
				return e.failPayment(tx, &payment, types.PAYMENT_FAILED, ts, res.Reason)
			}
		})
	})
	if err != nil {
		return err
	}
	if !settled {
		return nil
	}
	lib.PaymentsReconciled.WithLabelValues(string(res.Kind), string(trigger)).Inc()
	log.Printf("[payments] %s settled as %s via %s\n", checkoutID, res.Kind, trigger)
	if completed != nil && e.Notifier != nil && notifyEmail != "" {
		e.Notifier.PaymentCompleted(completed, completedTickets, notifyEmail)
	}
	return nil
}

// failPayment records a non-success terminal status and releases the seats the
// reservation was holding, all inside the caller's transaction.
func (e *Engine) failPayment(tx *gorm.DB, payment *models.Payment, ps types.PaymentStatus, ts types.TicketStatus, reason string) error {
	if err := e.Ledger.Release(tx, payment.ID); err != nil {
		return err
	}
	if err := tx.Model(payment).Updates(map[string]any{
		"status":         ps,
		"failure_reason": reason,
	}).Error; err != nil {
		return err
	}
	return tx.Model(&models.Ticket{}).
		Where("payment_id = ? AND status = ?", payment.ID, types.TICKET_PENDING).
		Update("status", ts).Error
}

// Poll queries the gateway for an unsettled payment. The status check runs
// before taking the reference lock so a slow gateway round trip never blocks
// an incoming callback.
func (e *Engine) Poll(checkoutID string, attempt int) {
	var payment models.Payment
	if err := e.DB.Where("provider_ref = ?", checkoutID).First(&payment).Error; err != nil {
		log.Printf("[payments] Poll %d for %s: %s\n", attempt, checkoutID, err.Error())
		return
	}
	if payment.Status.Terminal() {
		return
	}
	res, err := e.Gateway.QueryStatus(context.Background(), checkoutID)
	if err != nil {
		log.Printf("[payments] Poll %d for %s failed: %s\n", attempt, checkoutID, err.Error())
		if attempt < maxPollAttempts {
			e.SchedulePoll(checkoutID, attempt+1)
			return
		}
		e.giveUp(checkoutID, "Payment verification failed after retries")
		return
	}
	switch res.Kind {
	case mpesa.KindPending, mpesa.KindTransient:
		if attempt < maxPollAttempts {
			e.SchedulePoll(checkoutID, attempt+1)
			return
		}
		e.giveUp(checkoutID, "Payment pending but max retries reached")
	default:
		if err := e.Apply(checkoutID, res, TriggerPoll); err != nil && !errors.Is(err, ErrUnknownTransaction) {
			log.Printf("[payments] Could not settle %s from poll: %s\n", checkoutID, err.Error())
		}
	}
}

func (e *Engine) giveUp(checkoutID, reason string) {
	res := &mpesa.Result{Kind: mpesa.KindFailed, Reason: reason, Checkout: checkoutID}
	if err := e.Apply(checkoutID, res, TriggerPoll); err != nil {
		log.Printf("[payments] Could not fail %s after retries: %s\n", checkoutID, err.Error())
	}
}

// SchedulePoll queues the attempt-th status check with exponential backoff:
// 5s, 10s, 20s from the previous step.
func (e *Engine) SchedulePoll(checkoutID string, attempt int) {
	delay := basePollDelay * time.Duration(1<<(attempt-1))
	at := time.Now().Add(delay)
	name := "verify-payment-" + checkoutID
	err := e.Runner.RunAt(at, name, func() {
		e.Poll(checkoutID, attempt)
	})
	if err != nil {
		log.Printf("[payments] Could not schedule poll %d for %s: %s\n", attempt, checkoutID, err.Error())
	}
}
