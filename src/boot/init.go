package boot

import (
	"context"
	"log"
	"time"

	"tikiti/src/db"
	"tikiti/src/lib"
	"tikiti/src/models"
	"tikiti/src/mpesa"
	"tikiti/src/payments"
	"tikiti/src/types"

	"gorm.io/gorm"
)

const (
	reservationTTL  = 30 * time.Minute
	cleanupInterval = 15 * time.Minute
	cleanupGuardKey = "jobs:cleanup-reservations"
	cleanupGuardTTL = 10 * time.Minute
	expiredReason   = "Reservation expired"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Organizer{},
		&models.Attendee{},
		&models.Category{},
		&models.Event{},
		&models.TicketType{},
		&models.DiscountCode{},
		&models.Payment{},
		&models.Ticket{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

func InitScheduler(engine *payments.Engine) {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	_, err = lib.CreateCronJob(func() {
		CleanupExpiredReservations(engine)
	}, cleanupInterval)
	if err != nil {
		log.Printf("Error scheduling cleanup job: %s\n", err.Error())
	}
	jobsWaitingInQueue := len(sched.Jobs())
	log.Println("Jobs in queue:", jobsWaitingInQueue)
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	if err := sched.Shutdown(); err != nil {
		log.Printf("Error shutting down Scheduler: %s\n", err.Error())
	}
}

// CleanupExpiredReservations fails payments that have sat pending past the
// reservation window, which releases their seats back to inventory. A redis
// guard keeps multiple instances from sweeping at once.
func CleanupExpiredReservations(engine *payments.Engine) {
	ctx := context.Background()
	if !lib.AcquireGuard(ctx, cleanupGuardKey, cleanupGuardTTL) {
		return
	}
	defer lib.ReleaseGuard(ctx, cleanupGuardKey)

	d := db.GetDb()
	cutoff := time.Now().Add(-reservationTTL)
	var stale []models.Payment
	err := d.
		Where("status = ? AND created_at < ?", types.PAYMENT_PENDING, cutoff).
		Limit(100).
		Find(&stale).Error
	if err != nil {
		log.Printf("[cleanup] Query failed: %s\n", err.Error())
		return
	}
	for _, p := range stale {
		res := &mpesa.Result{Kind: mpesa.KindFailed, Reason: expiredReason, Checkout: p.ProviderRef}
		if err := engine.Apply(p.ProviderRef, res, payments.TriggerSweep); err != nil {
			log.Printf("[cleanup] Could not expire payment %s: %s\n", p.ID, err.Error())
			continue
		}
		lib.ReservationsExpired.Inc()
	}
	if len(stale) > 0 {
		log.Printf("[cleanup] Expired %d stale reservation(s)\n", len(stale))
	}
}
