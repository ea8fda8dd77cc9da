package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Briefing is a row of the briefings table. Content holds the serialized
// briefing document (see briefing.EncodeContent).
type Briefing struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	UserID    uint           `gorm:"not null;index"`
	User      User           `gorm:"constraint:OnDelete:CASCADE;"`
	Title     string         `gorm:"not null;default:''"`
	Content   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null;index"`
	UpdatedAt time.Time
}

// BeforeCreate assigns the row id when the database did not.
func (b *Briefing) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
