package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AttemptStatus represents the outcome of the most recent dispatch
type AttemptStatus string

const (
	AttemptStatusSuccess AttemptStatus = "success"
	AttemptStatusFailure AttemptStatus = "failure"
)

// String returns the string representation of the status
func (s AttemptStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s AttemptStatus) Valid() bool {
	switch s {
	case AttemptStatusSuccess, AttemptStatusFailure:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AttemptStatus
func (s *AttemptStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = AttemptStatus(v)
	case []byte:
		*s = AttemptStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AttemptStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AttemptStatus
func (s AttemptStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AttemptStatus: %s", s)
	}
	return string(s), nil
}

// Attempt is the running dispatch tally for one mailing: a single row per
// mailing whose counters accumulate across repeated sends. Status and
// transport response reflect the most recent dispatch only. The owner is
// the caller of the last send, which is not necessarily the mailing's owner.
type Attempt struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_attempts_uuid" json:"uuid"`
	MailingID uint      `gorm:"not null;uniqueIndex:uk_attempts_mailing_id" json:"mailing_id"`
	OwnerID   uint      `gorm:"not null;index:idx_attempts_owner_id" json:"owner_id"`

	AttemptedAt       time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_attempts_attempted_at" json:"attempted_at"`
	Status            AttemptStatus `gorm:"size:16;not null" json:"status"`
	TransportResponse string        `gorm:"type:text" json:"transport_response"`

	OkCount           uint `gorm:"not null;default:0" json:"ok_count"`
	ErrorCount        uint `gorm:"not null;default:0" json:"error_count"`
	MessagesSentCount uint `gorm:"not null;default:0" json:"messages_sent_count"`

	// Relations
	Mailing *Mailing `gorm:"foreignKey:MailingID;references:ID" json:"mailing,omitempty"`
	Owner   *User    `gorm:"foreignKey:OwnerID;references:ID" json:"owner,omitempty"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// BeforeCreate is called before creating a new record
func (a *Attempt) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now().UTC()
	}
	return nil
}

// AttemptFilter represents filter criteria for attempt queries
type AttemptFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	MailingID       *uint
	OwnerID         *uint
	Status          *AttemptStatus
	AttemptedAfter  *time.Time
	AttemptedBefore *time.Time
}
