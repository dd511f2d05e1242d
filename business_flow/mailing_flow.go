// Package businessflow contains the core business logic and use cases for mailing workflows
package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/svetlov/mailboard/app/dto"
	"github.com/svetlov/mailboard/config"
	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/repository"
	"github.com/svetlov/mailboard/utils"
	"gorm.io/gorm"
)

// MailingFlow handles the mailing record business logic
type MailingFlow interface {
	CreateMailing(ctx context.Context, req *dto.CreateMailingRequest, metadata *ClientMetadata) (*dto.CreateMailingResponse, error)
	ListMailings(ctx context.Context, callerID uint) (*dto.ListMailingsResponse, error)
	GetMailing(ctx context.Context, uuid string, callerID uint) (*dto.MailingResponse, error)
	UpdateMailing(ctx context.Context, req *dto.UpdateMailingRequest, metadata *ClientMetadata) (*dto.MailingResponse, error)
	DeleteMailing(ctx context.Context, uuid string, callerID uint, metadata *ClientMetadata) error
}

// MailingFlowImpl implements the mailing business flow
type MailingFlowImpl struct {
	mailingRepo   repository.MailingRepository
	messageRepo   repository.MessageRepository
	recipientRepo repository.RecipientRepository
	userRepo      repository.UserRepository
	auditRepo     repository.AuditLogRepository
	cacheConfig   *config.CacheConfig
	rc            *redis.Client
	db            *gorm.DB
}

// NewMailingFlow creates a new mailing flow instance
func NewMailingFlow(
	mailingRepo repository.MailingRepository,
	messageRepo repository.MessageRepository,
	recipientRepo repository.RecipientRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) MailingFlow {
	return &MailingFlowImpl{
		mailingRepo:   mailingRepo,
		messageRepo:   messageRepo,
		recipientRepo: recipientRepo,
		userRepo:      userRepo,
		auditRepo:     auditRepo,
		cacheConfig:   cacheConfig,
		rc:            rc,
		db:            db,
	}
}

func (mf *MailingFlowImpl) listCacheKey(ownerID uint) string {
	return redisKey(*mf.cacheConfig, fmt.Sprintf(utils.MailingListCacheKey, ownerID))
}

// CreateMailing creates a mailing and materializes its recipient set. An
// explicit recipient UUID list wins; otherwise the owner's active
// recipients are snapshotted as the audience.
func (mf *MailingFlowImpl) CreateMailing(ctx context.Context, req *dto.CreateMailingRequest, metadata *ClientMetadata) (*dto.CreateMailingResponse, error) {
	owner, err := getUser(ctx, mf.userRepo, req.OwnerID)
	if err != nil {
		return nil, NewBusinessError("OWNER_LOOKUP_FAILED", "Failed to lookup owner", err)
	}

	var mailing *models.Mailing
	var recipientCount int

	err = repository.WithTransaction(ctx, mf.db, func(txCtx context.Context) error {
		mailing = &models.Mailing{
			OwnerID: owner.ID,
			Name:    req.Name,
			Status:  models.MailingStatusCreated,
		}

		if req.MessageUUID != nil {
			message, err := mf.resolveOwnMessage(txCtx, owner.ID, *req.MessageUUID)
			if err != nil {
				return err
			}
			mailing.MessageID = &message.ID
		}

		recipients, err := mf.resolveRecipientSet(txCtx, owner.ID, req.RecipientUUIDs)
		if err != nil {
			return err
		}
		recipientCount = len(recipients)

		if err := mf.mailingRepo.Save(txCtx, mailing); err != nil {
			return err
		}

		return mf.mailingRepo.ReplaceRecipients(txCtx, mailing, recipients)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Mailing creation failed: %s", err.Error())
		_ = createAuditLog(ctx, mf.auditRepo, &owner, models.AuditActionMailingCreated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("MAILING_CREATION_FAILED", "Mailing creation failed", err)
	}

	dropListCache(ctx, mf.rc, mf.listCacheKey(owner.ID))

	msg := fmt.Sprintf("Mailing created: %s with %d recipients", mailing.UUID.String(), recipientCount)
	_ = createAuditLog(ctx, mf.auditRepo, &owner, models.AuditActionMailingCreated, msg, true, nil, metadata)

	return &dto.CreateMailingResponse{
		Message:        "Mailing created successfully",
		UUID:           mailing.UUID.String(),
		Status:         mailing.Status.String(),
		RecipientCount: recipientCount,
		CreatedAt:      mailing.CreatedAt.Format(time.RFC3339),
	}, nil
}

// ListMailings lists the caller's mailings. Callers holding the view-all
// capability see every user's mailings instead.
func (mf *MailingFlowImpl) ListMailings(ctx context.Context, callerID uint) (*dto.ListMailingsResponse, error) {
	caller, err := getUser(ctx, mf.userRepo, callerID)
	if err != nil {
		return nil, NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	if caller.HasCapability(models.CapabilityViewAllMailings) {
		mailings, err := mf.mailingRepo.ByFilter(ctx, models.MailingFilter{}, "id ASC", 0, 0)
		if err != nil {
			return nil, NewBusinessError("MAILING_LIST_FAILED", "Failed to list mailings", err)
		}
		return buildMailingList("All mailings retrieved", mailings), nil
	}

	cacheKey := mf.listCacheKey(caller.ID)

	var cached []dto.MailingResponse
	if readListCache(ctx, mf.rc, cacheKey, &cached) {
		return &dto.ListMailingsResponse{
			Message:  "Mailings retrieved from cache",
			Mailings: cached,
		}, nil
	}

	mailings, err := mf.mailingRepo.ListByOwner(ctx, caller.ID, 0, 0)
	if err != nil {
		return nil, NewBusinessError("MAILING_LIST_FAILED", "Failed to list mailings", err)
	}

	resp := buildMailingList("Mailings retrieved", mailings)
	writeListCache(ctx, mf.rc, cacheKey, resp.Mailings, mf.cacheConfig.DefaultTTL)

	return resp, nil
}

// GetMailing returns one mailing with its message and recipient set
func (mf *MailingFlowImpl) GetMailing(ctx context.Context, uuid string, callerID uint) (*dto.MailingResponse, error) {
	caller, err := getUser(ctx, mf.userRepo, callerID)
	if err != nil {
		return nil, NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	mailing, err := mf.mailingRepo.ByUUID(ctx, uuid)
	if err != nil {
		return nil, NewBusinessError("MAILING_LOOKUP_FAILED", "Failed to lookup mailing", err)
	}
	if mailing == nil {
		return nil, NewBusinessError("MAILING_NOT_FOUND", "Mailing not found", ErrMailingNotFound)
	}
	if mailing.OwnerID != caller.ID && !caller.HasCapability(models.CapabilityViewAllMailings) {
		return nil, NewBusinessError("ACCESS_DENIED", "Access denied", ErrAccessDenied)
	}

	resp := ToMailingResponse(*mailing)
	return &resp, nil
}

// UpdateMailing edits a mailing owned by the caller. Status changes only
// ever move the lifecycle forward.
func (mf *MailingFlowImpl) UpdateMailing(ctx context.Context, req *dto.UpdateMailingRequest, metadata *ClientMetadata) (*dto.MailingResponse, error) {
	caller, err := getUser(ctx, mf.userRepo, req.CallerID)
	if err != nil {
		return nil, NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	mailing, err := mf.mailingRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("MAILING_LOOKUP_FAILED", "Failed to lookup mailing", err)
	}
	if mailing == nil {
		return nil, NewBusinessError("MAILING_NOT_FOUND", "Mailing not found", ErrMailingNotFound)
	}
	if mailing.OwnerID != caller.ID {
		_ = createAuditLog(ctx, mf.auditRepo, &caller, models.AuditActionAccessDenied, "Mailing update denied: not the owner", false, nil, metadata)

		return nil, NewBusinessError("ACCESS_DENIED", "Access denied", ErrAccessDenied)
	}

	err = repository.WithTransaction(ctx, mf.db, func(txCtx context.Context) error {
		if req.Name != nil {
			mailing.Name = req.Name
		}
		if req.MessageUUID != nil {
			message, err := mf.resolveOwnMessage(txCtx, caller.ID, *req.MessageUUID)
			if err != nil {
				return err
			}
			mailing.MessageID = &message.ID
			mailing.Message = message
		}
		if req.Status != nil {
			newStatus := models.MailingStatus(*req.Status)
			if newStatus != mailing.Status {
				if !mailing.CanTransitionTo(newStatus) {
					return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusChange, mailing.Status, newStatus)
				}
				mailing.Status = newStatus
			}
		}
		mailing.UpdatedAt = utils.UTCNowPtr()

		return mf.mailingRepo.Update(txCtx, *mailing)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Mailing update failed: %s", err.Error())
		_ = createAuditLog(ctx, mf.auditRepo, &caller, models.AuditActionMailingUpdated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("MAILING_UPDATE_FAILED", "Mailing update failed", err)
	}

	dropListCache(ctx, mf.rc, mf.listCacheKey(caller.ID))

	msg := fmt.Sprintf("Mailing updated: %s", mailing.UUID.String())
	_ = createAuditLog(ctx, mf.auditRepo, &caller, models.AuditActionMailingUpdated, msg, true, nil, metadata)

	resp := ToMailingResponse(*mailing)
	return &resp, nil
}

// DeleteMailing removes a mailing owned by the caller together with its
// recipient links and attempt row
func (mf *MailingFlowImpl) DeleteMailing(ctx context.Context, uuid string, callerID uint, metadata *ClientMetadata) error {
	caller, err := getUser(ctx, mf.userRepo, callerID)
	if err != nil {
		return NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	mailing, err := mf.mailingRepo.ByUUID(ctx, uuid)
	if err != nil {
		return NewBusinessError("MAILING_LOOKUP_FAILED", "Failed to lookup mailing", err)
	}
	if mailing == nil {
		return NewBusinessError("MAILING_NOT_FOUND", "Mailing not found", ErrMailingNotFound)
	}
	if mailing.OwnerID != caller.ID {
		_ = createAuditLog(ctx, mf.auditRepo, &caller, models.AuditActionAccessDenied, "Mailing deletion denied: not the owner", false, nil, metadata)

		return NewBusinessError("ACCESS_DENIED", "Access denied", ErrAccessDenied)
	}

	err = repository.WithTransaction(ctx, mf.db, func(txCtx context.Context) error {
		return mf.mailingRepo.Delete(txCtx, mailing.ID)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Mailing deletion failed: %s", err.Error())
		_ = createAuditLog(ctx, mf.auditRepo, &caller, models.AuditActionMailingDeleted, errMsg, false, &errMsg, metadata)

		return NewBusinessError("MAILING_DELETION_FAILED", "Mailing deletion failed", err)
	}

	dropListCache(ctx, mf.rc, mf.listCacheKey(caller.ID))

	msg := fmt.Sprintf("Mailing deleted: %s", mailing.UUID.String())
	_ = createAuditLog(ctx, mf.auditRepo, &caller, models.AuditActionMailingDeleted, msg, true, nil, metadata)

	return nil
}

// resolveOwnMessage loads a message by UUID and checks it belongs to ownerID
func (mf *MailingFlowImpl) resolveOwnMessage(ctx context.Context, ownerID uint, uuid string) (*models.Message, error) {
	message, err := mf.messageRepo.ByUUID(ctx, uuid)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup message: %w", err)
	}
	if message == nil {
		return nil, ErrMessageNotFound
	}
	if message.OwnerID != ownerID {
		return nil, ErrAccessDenied
	}
	return message, nil
}

// resolveRecipientSet resolves the explicit UUID list when given, or falls
// back to the owner's active recipients
func (mf *MailingFlowImpl) resolveRecipientSet(ctx context.Context, ownerID uint, recipientUUIDs []string) ([]*models.Recipient, error) {
	if len(recipientUUIDs) == 0 {
		return mf.recipientRepo.ListActiveByOwner(ctx, ownerID)
	}

	recipients := make([]*models.Recipient, 0, len(recipientUUIDs))
	for _, id := range recipientUUIDs {
		recipient, err := mf.recipientRepo.ByUUID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to lookup recipient: %w", err)
		}
		if recipient == nil {
			return nil, ErrRecipientNotFound
		}
		if recipient.OwnerID != ownerID {
			return nil, ErrRecipientSetConflict
		}
		recipients = append(recipients, recipient)
	}

	return recipients, nil
}

func buildMailingList(message string, mailings []*models.Mailing) *dto.ListMailingsResponse {
	resp := &dto.ListMailingsResponse{
		Message:  message,
		Mailings: make([]dto.MailingResponse, 0, len(mailings)),
	}
	for _, m := range mailings {
		resp.Mailings = append(resp.Mailings, ToMailingResponse(*m))
	}
	return resp
}
