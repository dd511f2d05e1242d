// Package businessflow contains the core business logic and use cases for message catalog workflows
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

// MessageFlow handles the message catalog business logic
type MessageFlow interface {
	CreateMessage(ctx context.Context, req *dto.CreateMessageRequest, metadata *ClientMetadata) (*dto.CreateMessageResponse, error)
	ListMessages(ctx context.Context, callerID uint) (*dto.ListMessagesResponse, error)
	UpdateMessage(ctx context.Context, req *dto.UpdateMessageRequest, metadata *ClientMetadata) (*dto.MessageResponse, error)
	DeleteMessage(ctx context.Context, uuid string, callerID uint, metadata *ClientMetadata) error
}

// MessageFlowImpl implements the message business flow
type MessageFlowImpl struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	auditRepo   repository.AuditLogRepository
	cacheConfig *config.CacheConfig
	rc          *redis.Client
	db          *gorm.DB
}

// NewMessageFlow creates a new message flow instance
func NewMessageFlow(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) MessageFlow {
	return &MessageFlowImpl{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		cacheConfig: cacheConfig,
		rc:          rc,
		db:          db,
	}
}

func (mf *MessageFlowImpl) listCacheKey(ownerID uint) string {
	return redisKey(*mf.cacheConfig, fmt.Sprintf(utils.MessageListCacheKey, ownerID))
}

// CreateMessage adds a message template to the caller's catalog
func (mf *MessageFlowImpl) CreateMessage(ctx context.Context, req *dto.CreateMessageRequest, metadata *ClientMetadata) (*dto.CreateMessageResponse, error) {
	owner, err := getUser(ctx, mf.userRepo, req.OwnerID)
	if err != nil {
		return nil, NewBusinessError("OWNER_LOOKUP_FAILED", "Failed to lookup owner", err)
	}

	message := &models.Message{
		OwnerID: owner.ID,
		Subject: req.Subject,
		Body:    req.Body,
	}

	err = repository.WithTransaction(ctx, mf.db, func(txCtx context.Context) error {
		return mf.messageRepo.Save(txCtx, message)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Message creation failed: %s", err.Error())
		_ = createAuditLog(ctx, mf.auditRepo, &owner, models.AuditActionMessageCreated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("MESSAGE_CREATION_FAILED", "Message creation failed", err)
	}

	dropListCache(ctx, mf.rc, mf.listCacheKey(owner.ID))

	msg := fmt.Sprintf("Message created: %s", message.UUID.String())
	_ = createAuditLog(ctx, mf.auditRepo, &owner, models.AuditActionMessageCreated, msg, true, nil, metadata)

	return &dto.CreateMessageResponse{
		Message:   "Message created successfully",
		UUID:      message.UUID.String(),
		CreatedAt: message.CreatedAt.Format(time.RFC3339),
	}, nil
}

// ListMessages lists the caller's catalog. Callers holding the view-all
// capability see every user's messages instead.
func (mf *MessageFlowImpl) ListMessages(ctx context.Context, callerID uint) (*dto.ListMessagesResponse, error) {
	caller, err := getUser(ctx, mf.userRepo, callerID)
	if err != nil {
		return nil, NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	if caller.HasCapability(models.CapabilityViewAllMessages) {
		messages, err := mf.messageRepo.ByFilter(ctx, models.MessageFilter{}, "id ASC", 0, 0)
		if err != nil {
			return nil, NewBusinessError("MESSAGE_LIST_FAILED", "Failed to list messages", err)
		}
		return buildMessageList("All messages retrieved", messages), nil
	}

	cacheKey := mf.listCacheKey(caller.ID)

	var cached []dto.MessageResponse
	if readListCache(ctx, mf.rc, cacheKey, &cached) {
		return &dto.ListMessagesResponse{
			Message:  "Messages retrieved from cache",
			Messages: cached,
		}, nil
	}

	messages, err := mf.messageRepo.ListByOwner(ctx, caller.ID)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LIST_FAILED", "Failed to list messages", err)
	}

	resp := buildMessageList("Messages retrieved", messages)
	writeListCache(ctx, mf.rc, cacheKey, resp.Messages, mf.cacheConfig.DefaultTTL)

	return resp, nil
}

// UpdateMessage edits a message template owned by the caller
func (mf *MessageFlowImpl) UpdateMessage(ctx context.Context, req *dto.UpdateMessageRequest, metadata *ClientMetadata) (*dto.MessageResponse, error) {
	caller, err := getUser(ctx, mf.userRepo, req.CallerID)
	if err != nil {
		return nil, NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	message, err := mf.messageRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LOOKUP_FAILED", "Failed to lookup message", err)
	}
	if message == nil {
		return nil, NewBusinessError("MESSAGE_NOT_FOUND", "Message not found", ErrMessageNotFound)
	}
	if message.OwnerID != caller.ID {
		_ = createAuditLog(ctx, mf.auditRepo, &caller, models.AuditActionAccessDenied, "Message update denied: not the owner", false, nil, metadata)

		return nil, NewBusinessError("ACCESS_DENIED", "Access denied", ErrAccessDenied)
	}

	if req.Subject != nil {
		message.Subject = *req.Subject
	}
	if req.Body != nil {
		message.Body = *req.Body
	}
	message.UpdatedAt = utils.UTCNowPtr()

	err = repository.WithTransaction(ctx, mf.db, func(txCtx context.Context) error {
		return mf.messageRepo.Update(txCtx, *message)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Message update failed: %s", err.Error())
		_ = createAuditLog(ctx, mf.auditRepo, &caller, models.AuditActionMessageUpdated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("MESSAGE_UPDATE_FAILED", "Message update failed", err)
	}

	dropListCache(ctx, mf.rc, mf.listCacheKey(caller.ID))

	msg := fmt.Sprintf("Message updated: %s", message.UUID.String())
	_ = createAuditLog(ctx, mf.auditRepo, &caller, models.AuditActionMessageUpdated, msg, true, nil, metadata)

	resp := ToMessageResponse(*message)
	return &resp, nil
}

// DeleteMessage removes a message template owned by the caller. Mailings
// still pointing at it are detached, not deleted.
func (mf *MessageFlowImpl) DeleteMessage(ctx context.Context, uuid string, callerID uint, metadata *ClientMetadata) error {
	caller, err := getUser(ctx, mf.userRepo, callerID)
	if err != nil {
		return NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	message, err := mf.messageRepo.ByUUID(ctx, uuid)
	if err != nil {
		return NewBusinessError("MESSAGE_LOOKUP_FAILED", "Failed to lookup message", err)
	}
	if message == nil {
		return NewBusinessError("MESSAGE_NOT_FOUND", "Message not found", ErrMessageNotFound)
	}
	if message.OwnerID != caller.ID {
		_ = createAuditLog(ctx, mf.auditRepo, &caller, models.AuditActionAccessDenied, "Message deletion denied: not the owner", false, nil, metadata)

		return NewBusinessError("ACCESS_DENIED", "Access denied", ErrAccessDenied)
	}

	err = repository.WithTransaction(ctx, mf.db, func(txCtx context.Context) error {
		return mf.messageRepo.Delete(txCtx, message.ID)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Message deletion failed: %s", err.Error())
		_ = createAuditLog(ctx, mf.auditRepo, &caller, models.AuditActionMessageDeleted, errMsg, false, &errMsg, metadata)

		return NewBusinessError("MESSAGE_DELETION_FAILED", "Message deletion failed", err)
	}

	dropListCache(ctx, mf.rc, mf.listCacheKey(caller.ID))

	msg := fmt.Sprintf("Message deleted: %s", message.UUID.String())
	_ = createAuditLog(ctx, mf.auditRepo, &caller, models.AuditActionMessageDeleted, msg, true, nil, metadata)

	return nil
}

func buildMessageList(message string, messages []*models.Message) *dto.ListMessagesResponse {
	resp := &dto.ListMessagesResponse{
		Message:  message,
		Messages: make([]dto.MessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, ToMessageResponse(*m))
	}
	return resp
}
