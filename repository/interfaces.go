// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/svetlov/mailboard/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for user accounts
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByUUID(ctx context.Context, uuid string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uint) error
}

// RecipientRepository defines operations for the recipient directory
type RecipientRepository interface {
	Repository[models.Recipient, models.RecipientFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Recipient, error)
	ByOwnerAndEmail(ctx context.Context, ownerID uint, email string) (*models.Recipient, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]*models.Recipient, error)
	ListActiveByOwner(ctx context.Context, ownerID uint) ([]*models.Recipient, error)
	Update(ctx context.Context, recipient models.Recipient) error
	Delete(ctx context.Context, id uint) error
}

// MessageRepository defines operations for the message catalog
type MessageRepository interface {
	Repository[models.Message, models.MessageFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Message, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]*models.Message, error)
	Update(ctx context.Context, message models.Message) error
	Delete(ctx context.Context, id uint) error
}

// MailingRepository defines operations for mailings and their recipient sets
type MailingRepository interface {
	Repository[models.Mailing, models.MailingFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Mailing, error)
	ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Mailing, error)
	ReplaceRecipients(ctx context.Context, mailing *models.Mailing, recipients []*models.Recipient) error
	Update(ctx context.Context, mailing models.Mailing) error
	UpdateStatus(ctx context.Context, id uint, status models.MailingStatus) error
	Delete(ctx context.Context, id uint) error
}

// AttemptRepository defines operations for the attempt ledger
type AttemptRepository interface {
	Repository[models.Attempt, models.AttemptFilter]
	ByMailingID(ctx context.Context, mailingID uint) (*models.Attempt, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]*models.Attempt, error)
	// RecordOutcome upserts the single attempt row for a mailing and bumps
	// its counters in one conditional write.
	RecordOutcome(ctx context.Context, mailingID, ownerID uint, status models.AttemptStatus, transportResponse string, sentCount uint) (*models.Attempt, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
