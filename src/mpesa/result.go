package mpesa

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Kind is the normalized outcome of a gateway status check or callback.
type Kind string

const (
	KindSuccess   Kind = "success"
	KindPending   Kind = "pending"
	KindCanceled  Kind = "canceled"
	KindFailed    Kind = "failed"
	KindTransient Kind = "transient"
)

// Result carries everything reconciliation needs to settle a payment. Receipt,
// Amount and PaidAt are only set on success, Reason only on non-success.
type Result struct {
	Kind     Kind
	Receipt  string
	Amount   decimal.Decimal
	PaidAt   *time.Time
	Reason   string
	Checkout string
}

var ErrMalformedCallback = errors.New("malformed callback payload")

// GatewayError marks failures talking to the gateway itself, as opposed to
// the gateway reporting a failed transaction. Callers treat these as
// transient and retry.
type GatewayError struct {
	Op   string
	Code string
	Err  error
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("mpesa %s: code %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("mpesa %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// classify maps Daraja result codes onto outcome kinds. Codes "1032" and "1"
// both mean the customer dismissed the prompt, "2001" means the push is still
// waiting on the handset, and "1037" means the handset could not be reached
// yet (DS timeout), which a later query can still resolve. Anything else is a
// hard failure.
func classify(resultCode, resultDesc string) Result {
	switch resultCode {
	case "0":
		return Result{Kind: KindSuccess}
	case "1032", "1":
		reason := resultDesc
		if reason == "" {
			reason = "Payment canceled by user"
		}
		return Result{Kind: KindCanceled, Reason: reason}
	case "2001":
		return Result{Kind: KindPending, Reason: "Transaction pending processing"}
	case "1037":
		reason := resultDesc
		if reason == "" {
			reason = "Timeout reaching the customer handset"
		}
		return Result{Kind: KindTransient, Reason: reason}
	default:
		reason := resultDesc
		if reason == "" {
			reason = "Payment failed"
		}
		return Result{Kind: KindFailed, Reason: reason}
	}
}

// ParseCallback decodes the Body.stkCallback envelope Daraja posts to the
// webhook. A payload without a CheckoutRequestID is rejected outright; a
// success payload missing its receipt metadata is still a success, just
// without a receipt number.
func ParseCallback(payload []byte) (*Result, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrMalformedCallback
	}
	cb := gjson.GetBytes(payload, "Body.stkCallback")
	if !cb.Exists() {
		return nil, ErrMalformedCallback
	}
	checkout := cb.Get("CheckoutRequestID").String()
	if checkout == "" {
		return nil, ErrMalformedCallback
	}
	if !cb.Get("ResultCode").Exists() {
		return nil, ErrMalformedCallback
	}
	res := classify(cb.Get("ResultCode").String(), cb.Get("ResultDesc").String())
	res.Checkout = checkout
	if res.Kind != KindSuccess {
		return &res, nil
	}
	cb.Get("CallbackMetadata.Item").ForEach(func(_, item gjson.Result) bool {
		name := item.Get("Name").String()
		value := item.Get("Value")
		switch name {
		case "MpesaReceiptNumber":
			res.Receipt = value.String()
		case "Amount":
			res.Amount = decimal.NewFromFloat(value.Float())
		case "TransactionDate":
			if t, err := time.ParseInLocation("20060102150405", value.String(), time.Local); err == nil {
				res.PaidAt = &t
			}
		}
		return true
	})
	if res.PaidAt == nil {
		now := time.Now()
		res.PaidAt = &now
	}
	return &res, nil
}
