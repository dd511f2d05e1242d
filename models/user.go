// Package models contains domain entities and business models for the mailing system
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Capability names gating cross-owner list access
const (
	CapabilityViewAllRecipients = "can_view_all_recipients"
	CapabilityViewAllMessages   = "can_view_all_messages"
	CapabilityViewAllMailings   = "can_view_all_mailings"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`
	Email     string    `gorm:"size:255;not null;uniqueIndex:uk_users_email" json:"email"`
	FirstName string    `gorm:"size:150" json:"first_name"`
	LastName  string    `gorm:"size:150" json:"last_name"`

	PasswordHash string `gorm:"size:255;not null" json:"-"` // Never serialize password hash

	IsActive *bool `gorm:"default:true;index:idx_users_is_active" json:"is_active"`

	// Capability flags replacing the original dynamic permission checks
	CanViewAllRecipients *bool `gorm:"default:false" json:"can_view_all_recipients"`
	CanViewAllMessages   *bool `gorm:"default:false" json:"can_view_all_messages"`
	CanViewAllMailings   *bool `gorm:"default:false" json:"can_view_all_mailings"`

	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_users_created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// Relations; owner deletion cascades through these
	Recipients []Recipient `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Messages   []Message   `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Mailings   []Mailing   `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	Attempts   []Attempt   `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	AuditLogs  []AuditLog  `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate is called before creating a new record
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UUID == uuid.Nil {
		u.UUID = uuid.New()
	}
	return nil
}

// HasCapability reports whether the user holds the named capability flag
func (u *User) HasCapability(capability string) bool {
	switch capability {
	case CapabilityViewAllRecipients:
		return u.CanViewAllRecipients != nil && *u.CanViewAllRecipients
	case CapabilityViewAllMessages:
		return u.CanViewAllMessages != nil && *u.CanViewAllMessages
	case CapabilityViewAllMailings:
		return u.CanViewAllMailings != nil && *u.CanViewAllMailings
	default:
		return false
	}
}

// FullName returns the display name of the user
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Email         *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
