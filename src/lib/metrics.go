package lib

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StkPushesInitiated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stk_pushes_initiated_total",
		Help: "Number of STK push requests sent to the payment gateway",
	})
	PaymentsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_reconciled_total",
		Help: "Payments driven to a terminal status, by outcome and trigger",
	}, []string{"status", "trigger"})
	ReservationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_expired_total",
		Help: "Pending reservations released by the cleanup job",
	})
)
