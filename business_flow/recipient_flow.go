// Package businessflow contains the core business logic and use cases for recipient directory workflows
package businessflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/svetlov/mailboard/app/dto"
	"github.com/svetlov/mailboard/config"
	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/repository"
	"github.com/svetlov/mailboard/utils"
	"gorm.io/gorm"
)

// emailPattern accepts local@domain.tld shapes; stricter validation is left
// to the receiving mail servers.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// RecipientFlow handles the recipient directory business logic
type RecipientFlow interface {
	CreateRecipient(ctx context.Context, req *dto.CreateRecipientRequest, metadata *ClientMetadata) (*dto.CreateRecipientResponse, error)
	BulkCreateRecipients(ctx context.Context, req *dto.BulkCreateRecipientsRequest, metadata *ClientMetadata) (*dto.BulkCreateRecipientsResponse, error)
	ListRecipients(ctx context.Context, callerID uint) (*dto.ListRecipientsResponse, error)
	UpdateRecipient(ctx context.Context, req *dto.UpdateRecipientRequest, metadata *ClientMetadata) (*dto.RecipientResponse, error)
	DeleteRecipient(ctx context.Context, uuid string, callerID uint, metadata *ClientMetadata) error
}

// RecipientFlowImpl implements the recipient business flow
type RecipientFlowImpl struct {
	recipientRepo repository.RecipientRepository
	userRepo      repository.UserRepository
	auditRepo     repository.AuditLogRepository
	cacheConfig   *config.CacheConfig
	rc            *redis.Client
	db            *gorm.DB
}

// NewRecipientFlow creates a new recipient flow instance
func NewRecipientFlow(
	recipientRepo repository.RecipientRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) RecipientFlow {
	return &RecipientFlowImpl{
		recipientRepo: recipientRepo,
		userRepo:      userRepo,
		auditRepo:     auditRepo,
		cacheConfig:   cacheConfig,
		rc:            rc,
		db:            db,
	}
}

func (rf *RecipientFlowImpl) listCacheKey(ownerID uint) string {
	return redisKey(*rf.cacheConfig, fmt.Sprintf(utils.RecipientListCacheKey, ownerID))
}

// CreateRecipient adds a single recipient to the caller's directory
func (rf *RecipientFlowImpl) CreateRecipient(ctx context.Context, req *dto.CreateRecipientRequest, metadata *ClientMetadata) (*dto.CreateRecipientResponse, error) {
	owner, err := getUser(ctx, rf.userRepo, req.OwnerID)
	if err != nil {
		return nil, NewBusinessError("OWNER_LOOKUP_FAILED", "Failed to lookup owner", err)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var recipient *models.Recipient

	err = repository.WithTransaction(ctx, rf.db, func(txCtx context.Context) error {
		existing, err := rf.recipientRepo.ByOwnerAndEmail(txCtx, owner.ID, email)
		if err != nil {
			return fmt.Errorf("failed to check existing recipient: %w", err)
		}
		if existing != nil {
			return ErrDuplicateRecipient
		}

		recipient = &models.Recipient{
			OwnerID:  owner.ID,
			Email:    email,
			FullName: req.FullName,
			Comment:  req.Comment,
			Active:   req.Active,
		}

		return rf.recipientRepo.Save(txCtx, recipient)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Recipient creation failed: %s", err.Error())
		_ = createAuditLog(ctx, rf.auditRepo, &owner, models.AuditActionRecipientCreated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("RECIPIENT_CREATION_FAILED", "Recipient creation failed", err)
	}

	dropListCache(ctx, rf.rc, rf.listCacheKey(owner.ID))

	msg := fmt.Sprintf("Recipient created: %s", recipient.UUID.String())
	_ = createAuditLog(ctx, rf.auditRepo, &owner, models.AuditActionRecipientCreated, msg, true, nil, metadata)

	return &dto.CreateRecipientResponse{
		Message:   "Recipient created successfully",
		UUID:      recipient.UUID.String(),
		Email:     recipient.Email,
		CreatedAt: recipient.CreatedAt.Format(time.RFC3339),
	}, nil
}

// BulkCreateRecipients imports a free-form blob of addresses. Malformed
// entries and addresses already in the caller's directory are reported as
// skipped rather than failing the import.
func (rf *RecipientFlowImpl) BulkCreateRecipients(ctx context.Context, req *dto.BulkCreateRecipientsRequest, metadata *ClientMetadata) (*dto.BulkCreateRecipientsResponse, error) {
	owner, err := getUser(ctx, rf.userRepo, req.OwnerID)
	if err != nil {
		return nil, NewBusinessError("OWNER_LOOKUP_FAILED", "Failed to lookup owner", err)
	}

	candidates, malformed := ParseEmailBlob(req.Emails)
	if len(candidates) == 0 {
		return nil, NewBusinessError("NO_VALID_EMAILS", "No valid email addresses found", ErrNoValidEmails)
	}

	created := make([]string, 0, len(candidates))
	skipped := append([]string{}, malformed...)

	err = repository.WithTransaction(ctx, rf.db, func(txCtx context.Context) error {
		var batch []*models.Recipient
		for _, email := range candidates {
			existing, err := rf.recipientRepo.ByOwnerAndEmail(txCtx, owner.ID, email)
			if err != nil {
				return fmt.Errorf("failed to check existing recipient: %w", err)
			}
			if existing != nil {
				skipped = append(skipped, email)
				continue
			}
			batch = append(batch, &models.Recipient{
				OwnerID: owner.ID,
				Email:   email,
			})
			created = append(created, email)
		}

		if len(batch) == 0 {
			return nil
		}

		return rf.recipientRepo.SaveBatch(txCtx, batch)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Bulk recipient import failed: %s", err.Error())
		_ = createAuditLog(ctx, rf.auditRepo, &owner, models.AuditActionRecipientsBulk, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("BULK_IMPORT_FAILED", "Bulk recipient import failed", err)
	}

	dropListCache(ctx, rf.rc, rf.listCacheKey(owner.ID))

	msg := fmt.Sprintf("Bulk import: %d created, %d skipped", len(created), len(skipped))
	_ = createAuditLog(ctx, rf.auditRepo, &owner, models.AuditActionRecipientsBulk, msg, true, nil, metadata)

	return &dto.BulkCreateRecipientsResponse{
		Message: msg,
		Created: created,
		Skipped: skipped,
	}, nil
}

// ListRecipients lists the caller's directory. Callers holding the
// view-all capability see every user's recipients instead.
func (rf *RecipientFlowImpl) ListRecipients(ctx context.Context, callerID uint) (*dto.ListRecipientsResponse, error) {
	caller, err := getUser(ctx, rf.userRepo, callerID)
	if err != nil {
		return nil, NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	if caller.HasCapability(models.CapabilityViewAllRecipients) {
		recipients, err := rf.recipientRepo.ByFilter(ctx, models.RecipientFilter{}, "id ASC", 0, 0)
		if err != nil {
			return nil, NewBusinessError("RECIPIENT_LIST_FAILED", "Failed to list recipients", err)
		}
		return buildRecipientList("All recipients retrieved", recipients), nil
	}

	cacheKey := rf.listCacheKey(caller.ID)

	var cached []dto.RecipientResponse
	if readListCache(ctx, rf.rc, cacheKey, &cached) {
		return &dto.ListRecipientsResponse{
			Message:    "Recipients retrieved from cache",
			Recipients: cached,
		}, nil
	}

	recipients, err := rf.recipientRepo.ListByOwner(ctx, caller.ID)
	if err != nil {
		return nil, NewBusinessError("RECIPIENT_LIST_FAILED", "Failed to list recipients", err)
	}

	resp := buildRecipientList("Recipients retrieved", recipients)
	writeListCache(ctx, rf.rc, cacheKey, resp.Recipients, rf.cacheConfig.DefaultTTL)

	return resp, nil
}

// UpdateRecipient edits a recipient owned by the caller
func (rf *RecipientFlowImpl) UpdateRecipient(ctx context.Context, req *dto.UpdateRecipientRequest, metadata *ClientMetadata) (*dto.RecipientResponse, error) {
	caller, err := getUser(ctx, rf.userRepo, req.CallerID)
	if err != nil {
		return nil, NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	recipient, err := rf.recipientRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("RECIPIENT_LOOKUP_FAILED", "Failed to lookup recipient", err)
	}
	if recipient == nil {
		return nil, NewBusinessError("RECIPIENT_NOT_FOUND", "Recipient not found", ErrRecipientNotFound)
	}
	if recipient.OwnerID != caller.ID {
		_ = createAuditLog(ctx, rf.auditRepo, &caller, models.AuditActionAccessDenied, "Recipient update denied: not the owner", false, nil, metadata)

		return nil, NewBusinessError("ACCESS_DENIED", "Access denied", ErrAccessDenied)
	}

	err = repository.WithTransaction(ctx, rf.db, func(txCtx context.Context) error {
		if req.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*req.Email))
			if email != recipient.Email {
				existing, err := rf.recipientRepo.ByOwnerAndEmail(txCtx, caller.ID, email)
				if err != nil {
					return fmt.Errorf("failed to check existing recipient: %w", err)
				}
				if existing != nil {
					return ErrDuplicateRecipient
				}
				recipient.Email = email
			}
		}
		if req.FullName != nil {
			recipient.FullName = req.FullName
		}
		if req.Comment != nil {
			recipient.Comment = req.Comment
		}
		if req.Active != nil {
			recipient.Active = req.Active
		}
		recipient.UpdatedAt = utils.UTCNowPtr()

		return rf.recipientRepo.Update(txCtx, *recipient)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Recipient update failed: %s", err.Error())
		_ = createAuditLog(ctx, rf.auditRepo, &caller, models.AuditActionRecipientUpdated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("RECIPIENT_UPDATE_FAILED", "Recipient update failed", err)
	}

	dropListCache(ctx, rf.rc, rf.listCacheKey(caller.ID))

	msg := fmt.Sprintf("Recipient updated: %s", recipient.UUID.String())
	_ = createAuditLog(ctx, rf.auditRepo, &caller, models.AuditActionRecipientUpdated, msg, true, nil, metadata)

	resp := ToRecipientResponse(*recipient)
	return &resp, nil
}

// DeleteRecipient removes a recipient owned by the caller. Mailings that
// already snapshotted the recipient keep their stored sets.
func (rf *RecipientFlowImpl) DeleteRecipient(ctx context.Context, uuid string, callerID uint, metadata *ClientMetadata) error {
	caller, err := getUser(ctx, rf.userRepo, callerID)
	if err != nil {
		return NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	recipient, err := rf.recipientRepo.ByUUID(ctx, uuid)
	if err != nil {
		return NewBusinessError("RECIPIENT_LOOKUP_FAILED", "Failed to lookup recipient", err)
	}
	if recipient == nil {
		return NewBusinessError("RECIPIENT_NOT_FOUND", "Recipient not found", ErrRecipientNotFound)
	}
	if recipient.OwnerID != caller.ID {
		_ = createAuditLog(ctx, rf.auditRepo, &caller, models.AuditActionAccessDenied, "Recipient deletion denied: not the owner", false, nil, metadata)

		return NewBusinessError("ACCESS_DENIED", "Access denied", ErrAccessDenied)
	}

	err = repository.WithTransaction(ctx, rf.db, func(txCtx context.Context) error {
		return rf.recipientRepo.Delete(txCtx, recipient.ID)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Recipient deletion failed: %s", err.Error())
		_ = createAuditLog(ctx, rf.auditRepo, &caller, models.AuditActionRecipientDeleted, errMsg, false, &errMsg, metadata)

		return NewBusinessError("RECIPIENT_DELETION_FAILED", "Recipient deletion failed", err)
	}

	dropListCache(ctx, rf.rc, rf.listCacheKey(caller.ID))

	msg := fmt.Sprintf("Recipient deleted: %s", recipient.UUID.String())
	_ = createAuditLog(ctx, rf.auditRepo, &caller, models.AuditActionRecipientDeleted, msg, true, nil, metadata)

	return nil
}

// ParseEmailBlob splits a free-form blob on commas, semicolons, and
// whitespace, lowercases the pieces, and separates well-formed addresses
// from rejects. Duplicates within the blob collapse to one entry.
func ParseEmailBlob(blob string) (valid []string, malformed []string) {
	fields := strings.FieldsFunc(blob, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		email := strings.ToLower(strings.TrimSpace(field))
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}

		if emailPattern.MatchString(email) {
			valid = append(valid, email)
		} else {
			malformed = append(malformed, email)
		}
	}

	return valid, malformed
}

func buildRecipientList(message string, recipients []*models.Recipient) *dto.ListRecipientsResponse {
	resp := &dto.ListRecipientsResponse{
		Message:    message,
		Recipients: make([]dto.RecipientResponse, 0, len(recipients)),
	}
	for _, recipient := range recipients {
		resp.Recipients = append(resp.Recipients, ToRecipientResponse(*recipient))
	}
	return resp
}
