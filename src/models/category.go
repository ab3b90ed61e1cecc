package models

import (
	"tikiti/src/types"

	"github.com/google/uuid"
)

type Category struct {
	ID   uuid.UUID `gorm:"type:uuid;primarykey" json:"id"`
	Name string    `gorm:"uniqueIndex" json:"name"`

	Events []*Event `gorm:"many2many:event_categories;" json:"-"`

	types.Timestamps
}
