package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MailingStatus represents the lifecycle status of a mailing
type MailingStatus string

const (
	MailingStatusCreated  MailingStatus = "created"
	MailingStatusRunning  MailingStatus = "running"
	MailingStatusFinished MailingStatus = "finished"
)

// String returns the string representation of the status
func (s MailingStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s MailingStatus) Valid() bool {
	switch s {
	case MailingStatusCreated, MailingStatusRunning, MailingStatusFinished:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for MailingStatus
func (s *MailingStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = MailingStatus(v)
	case []byte:
		*s = MailingStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into MailingStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for MailingStatus
func (s MailingStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid MailingStatus: %s", s)
	}
	return string(s), nil
}

// Mailing pairs one message template with a set of recipients. The
// recipient set is materialized at creation time; later changes to a
// recipient's active flag do not alter it.
type Mailing struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uk_mailings_uuid" json:"uuid"`
	OwnerID   uint          `gorm:"not null;index:idx_mailings_owner_id" json:"owner_id"`
	Name      *string       `gorm:"size:150" json:"name,omitempty"`
	MessageID *uint         `gorm:"index:idx_mailings_message_id" json:"message_id,omitempty"`
	Status    MailingStatus `gorm:"size:16;not null;default:'created';index:idx_mailings_status" json:"status"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_mailings_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Owner      *User       `gorm:"foreignKey:OwnerID;references:ID" json:"owner,omitempty"`
	Message    *Message    `gorm:"foreignKey:MessageID;references:ID" json:"message,omitempty"`
	Recipients []Recipient `gorm:"many2many:mailing_recipients" json:"recipients,omitempty"`
	Attempt    *Attempt    `gorm:"foreignKey:MailingID;constraint:OnDelete:CASCADE" json:"attempt,omitempty"`
}

func (Mailing) TableName() string {
	return "mailings"
}

// BeforeCreate is called before creating a new record
func (m *Mailing) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	if m.Status == "" {
		m.Status = MailingStatusCreated
	}
	return nil
}

// CanTransitionTo checks if the mailing can transition to the given status.
// The lifecycle only ever moves forward: created -> running -> finished.
func (m *Mailing) CanTransitionTo(newStatus MailingStatus) bool {
	switch m.Status {
	case MailingStatusCreated:
		return newStatus == MailingStatusRunning || newStatus == MailingStatusFinished
	case MailingStatusRunning:
		return newStatus == MailingStatusFinished
	default:
		return false
	}
}

// IsFinished reports whether the mailing reached its terminal status
func (m *Mailing) IsFinished() bool {
	return m.Status == MailingStatusFinished
}

// MailingFilter represents filter criteria for mailing queries
type MailingFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	OwnerID       *uint
	MessageID     *uint
	Status        *MailingStatus
	Name          *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
