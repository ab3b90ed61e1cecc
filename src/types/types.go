package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type PaymentStatus string

const (
	PAYMENT_PENDING   PaymentStatus = "pending"
	PAYMENT_COMPLETED PaymentStatus = "completed"
	PAYMENT_FAILED    PaymentStatus = "failed"
	PAYMENT_CANCELED  PaymentStatus = "canceled"
)

// Terminal reports whether a later reconciliation attempt may still change the status.
func (s PaymentStatus) Terminal() bool {
	return s == PAYMENT_COMPLETED || s == PAYMENT_FAILED || s == PAYMENT_CANCELED
}

type TicketStatus string

const (
	TICKET_PENDING        TicketStatus = "pending"
	TICKET_PURCHASED      TicketStatus = "purchased"
	TICKET_PAYMENT_FAILED TicketStatus = "payment_failed"
	TICKET_CANCELED       TicketStatus = "canceled"
	TICKET_EXPIRED        TicketStatus = "expired"
	TICKET_USED           TicketStatus = "used"
)

type Role string

const (
	ROLE_ATTENDEE  Role = "attendee"
	ROLE_ORGANIZER Role = "organizer"
	ROLE_ADMIN     Role = "admin"
)

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type RegisterUserRequestBody struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Phone     string `json:"phone,omitempty"`
}

type LoginRequestBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateEventRequestBody struct {
	Title         string   `json:"title" binding:"required"`
	Description   string   `json:"description,omitempty"`
	Location      string   `json:"location" binding:"required"`
	StartDatetime string   `json:"start_datetime" binding:"required,futuredate" time_format:"2006-01-02 15:04:05 -07:00"`
	EndDatetime   *string  `json:"end_datetime,omitempty" binding:"omitempty,futuredate,gtdate=StartDatetime" time_format:"2006-01-02 15:04:05 -07:00"`
	Currency      string   `json:"currency,omitempty"`
	Featured      bool     `json:"featured,omitempty"`
	Categories    []string `json:"categories,omitempty"`
}

type CreateTicketTypeRequestBody struct {
	Name           string          `json:"name" binding:"required"`
	Description    string          `json:"description,omitempty"`
	Price          decimal.Decimal `json:"price" binding:"required"`
	Currency       string          `json:"currency,omitempty"`
	Quantity       int             `json:"quantity" binding:"required,gt=0"`
	ValidFrom      *string         `json:"valid_from,omitempty" time_format:"2006-01-02 15:04:05 -07:00"`
	ValidTo        *string         `json:"valid_to,omitempty" time_format:"2006-01-02 15:04:05 -07:00"`
	PerPersonLimit int             `json:"per_person_limit,omitempty"`
}

type PurchaseLineItem struct {
	TicketTypeID string `json:"ticket_type_id" binding:"required,uuid"`
	Quantity     int    `json:"quantity" binding:"required,gt=0"`
}

type PurchaseRequestBody struct {
	Items        []PurchaseLineItem `json:"ticket_details" binding:"required,min=1,dive"`
	TotalAmount  decimal.Decimal    `json:"total_amount" binding:"required"`
	Phone        string             `json:"phone,omitempty"`
	DiscountCode string             `json:"discount_code,omitempty"`
}

type CheckinRequestBody struct {
	QRCode string `json:"qr_code" binding:"required"`
}

type CreateCategoryRequestBody struct {
	Name string `json:"name" binding:"required"`
}

type CreateOrganizerRequestBody struct {
	CompanyName  string `json:"company_name" binding:"required"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

type CreateDiscountCodeRequestBody struct {
	Code               string `json:"code" binding:"required"`
	Description        string `json:"description,omitempty"`
	DiscountPercentage int    `json:"discount_percentage" binding:"required,gt=0,lte=100"`
	MaxUses            int    `json:"max_uses" binding:"required,gt=0"`
	ValidFrom          string `json:"valid_from" binding:"required" time_format:"2006-01-02 15:04:05 -07:00"`
	ValidTo            string `json:"valid_to" binding:"required" time_format:"2006-01-02 15:04:05 -07:00"`
}

type SimpleRequestParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}
