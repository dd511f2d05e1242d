package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Recipient represents a mailing recipient owned by a single user.
// Email uniqueness is scoped per owner, not global: two users may both
// hold the same address in their directories.
type Recipient struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	UUID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_recipients_uuid" json:"uuid"`
	OwnerID  uint      `gorm:"not null;index:idx_recipients_owner_id;uniqueIndex:uk_recipients_owner_email" json:"owner_id"`
	Email    string    `gorm:"size:255;not null;uniqueIndex:uk_recipients_owner_email" json:"email"`
	FullName *string   `gorm:"size:300" json:"full_name,omitempty"`
	Comment  *string   `gorm:"type:text" json:"comment,omitempty"`
	Active   *bool     `gorm:"default:true;index:idx_recipients_active" json:"active"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_recipients_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Owner    *User     `gorm:"foreignKey:OwnerID;references:ID" json:"owner,omitempty"`
	Mailings []Mailing `gorm:"many2many:mailing_recipients" json:"-"`
}

func (Recipient) TableName() string {
	return "recipients"
}

// BeforeCreate is called before creating a new record
func (r *Recipient) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.Active == nil {
		active := true
		r.Active = &active
	}
	return nil
}

// IsActive reports whether the recipient participates in new mailings
func (r *Recipient) IsActive() bool {
	return r.Active != nil && *r.Active
}

// RecipientFilter represents filter criteria for recipient queries
type RecipientFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	OwnerID       *uint
	Email         *string
	Active        *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
