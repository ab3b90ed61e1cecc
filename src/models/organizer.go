package models

import (
	"tikiti/src/types"

	"github.com/google/uuid"
)

type Organizer struct {
	ID           uuid.UUID `gorm:"type:uuid;primarykey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	CompanyName  string    `json:"company_name"`
	ContactEmail string    `json:"contact_email,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`

	User   User    `gorm:"foreignKey:user_id" json:"-"`
	Events []Event `gorm:"foreignKey:organizer_id" json:"events,omitempty"`

	types.Timestamps
}
