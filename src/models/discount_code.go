package models

import (
	"time"

	"tikiti/src/types"

	"github.com/google/uuid"
)

type DiscountCode struct {
	ID                 uuid.UUID `gorm:"type:uuid;primarykey" json:"id"`
	Code               string    `gorm:"uniqueIndex" json:"code"`
	Description        *string   `json:"description,omitempty"`
	DiscountPercentage int       `json:"discount_percentage"`
	MaxUses            int       `json:"max_uses"`
	Uses               int       `gorm:"default:0" json:"uses"`
	ValidFrom          time.Time `json:"valid_from"`
	ValidTo            time.Time `json:"valid_to"`

	Events []*Event `gorm:"many2many:event_discount_codes;" json:"-"`

	types.Timestamps
}

func (d *DiscountCode) Valid(now time.Time) bool {
	if now.Before(d.ValidFrom) || now.After(d.ValidTo) {
		return false
	}
	return d.Uses < d.MaxUses
}
