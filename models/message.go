package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message represents a reusable mail template. Subject and body are
// editable by the owner; identity is immutable once created.
type Message struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	UUID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_messages_uuid" json:"uuid"`
	OwnerID uint      `gorm:"not null;index:idx_messages_owner_id" json:"owner_id"`
	Subject string    `gorm:"size:250;not null" json:"subject"`
	Body    string    `gorm:"type:text;not null" json:"body"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_messages_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations; deleting a message detaches it from mailings (SET NULL)
	Owner    *User     `gorm:"foreignKey:OwnerID;references:ID" json:"owner,omitempty"`
	Mailings []Mailing `gorm:"foreignKey:MessageID;constraint:OnDelete:SET NULL" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

// BeforeCreate is called before creating a new record
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	return nil
}

// MessageFilter represents filter criteria for message queries
type MessageFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	OwnerID       *uint
	Subject       *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
