// Package businessflow contains the core business logic and use cases for dispatch workflows
package businessflow

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/svetlov/mailboard/app/dto"
	"github.com/svetlov/mailboard/app/services"
	"github.com/svetlov/mailboard/config"
	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/repository"
	"github.com/svetlov/mailboard/utils"
	"gorm.io/gorm"
)

// DispatchFlow handles sending mailings and recording attempt outcomes
type DispatchFlow interface {
	// SendMailing dispatches an existing mailing using its stored
	// recipient set.
	SendMailing(ctx context.Context, req *dto.SendMailingRequest, metadata *ClientMetadata) (*dto.SendMailingResponse, error)
	// CreateAndSendMailing creates a mailing and dispatches it in one
	// step. Recipients are resolved from the owner's active set at send
	// time, not from any stored audience.
	CreateAndSendMailing(ctx context.Context, req *dto.CreateAndSendMailingRequest, metadata *ClientMetadata) (*dto.SendMailingResponse, error)
}

// DispatchFlowImpl implements the dispatch business flow
type DispatchFlowImpl struct {
	mailingRepo   repository.MailingRepository
	messageRepo   repository.MessageRepository
	recipientRepo repository.RecipientRepository
	attemptRepo   repository.AttemptRepository
	userRepo      repository.UserRepository
	auditRepo     repository.AuditLogRepository
	transport     services.MailTransport
	smtpConfig    config.SMTPConfig
	cacheConfig   *config.CacheConfig
	rc            *redis.Client
	db            *gorm.DB
}

// NewDispatchFlow creates a new dispatch flow instance
func NewDispatchFlow(
	mailingRepo repository.MailingRepository,
	messageRepo repository.MessageRepository,
	recipientRepo repository.RecipientRepository,
	attemptRepo repository.AttemptRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	transport services.MailTransport,
	smtpConfig config.SMTPConfig,
	db *gorm.DB,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) DispatchFlow {
	return &DispatchFlowImpl{
		mailingRepo:   mailingRepo,
		messageRepo:   messageRepo,
		recipientRepo: recipientRepo,
		attemptRepo:   attemptRepo,
		userRepo:      userRepo,
		auditRepo:     auditRepo,
		transport:     transport,
		smtpConfig:    smtpConfig,
		cacheConfig:   cacheConfig,
		rc:            rc,
		db:            db,
	}
}

// SendMailing dispatches an existing mailing against its stored recipient
// set and folds the outcome into the mailing's attempt row
func (df *DispatchFlowImpl) SendMailing(ctx context.Context, req *dto.SendMailingRequest, metadata *ClientMetadata) (*dto.SendMailingResponse, error) {
	caller, err := getUser(ctx, df.userRepo, req.CallerID)
	if err != nil {
		return nil, NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	mailing, err := df.mailingRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("MAILING_LOOKUP_FAILED", "Failed to lookup mailing", err)
	}
	if mailing == nil {
		return nil, NewBusinessError("MAILING_NOT_FOUND", "Mailing not found", ErrMailingNotFound)
	}
	if mailing.OwnerID != caller.ID && !caller.HasCapability(models.CapabilityViewAllMailings) {
		_ = createAuditLog(ctx, df.auditRepo, &caller, models.AuditActionAccessDenied, "Mailing dispatch denied: not the owner", false, nil, metadata)

		return nil, NewBusinessError("ACCESS_DENIED", "Access denied", ErrAccessDenied)
	}

	if mailing.Message == nil {
		errMsg := fmt.Sprintf("Dispatch refused for %s: no message attached", mailing.UUID.String())
		_ = createAuditLog(ctx, df.auditRepo, &caller, models.AuditActionDispatchFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("MAILING_NO_MESSAGE", "Mailing has no message attached", ErrMailingNoMessage)
	}

	recipients := make([]*models.Recipient, 0, len(mailing.Recipients))
	for i := range mailing.Recipients {
		recipients = append(recipients, &mailing.Recipients[i])
	}

	return df.dispatch(ctx, &caller, mailing, recipients, metadata)
}

// CreateAndSendMailing creates a mailing attached to the given message and
// dispatches it immediately to the owner's currently active recipients
func (df *DispatchFlowImpl) CreateAndSendMailing(ctx context.Context, req *dto.CreateAndSendMailingRequest, metadata *ClientMetadata) (*dto.SendMailingResponse, error) {
	owner, err := getUser(ctx, df.userRepo, req.OwnerID)
	if err != nil {
		return nil, NewBusinessError("OWNER_LOOKUP_FAILED", "Failed to lookup owner", err)
	}

	message, err := df.messageRepo.ByUUID(ctx, req.MessageUUID)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LOOKUP_FAILED", "Failed to lookup message", err)
	}
	if message == nil {
		return nil, NewBusinessError("MESSAGE_NOT_FOUND", "Message not found", ErrMessageNotFound)
	}
	if message.OwnerID != owner.ID {
		return nil, NewBusinessError("ACCESS_DENIED", "Access denied", ErrAccessDenied)
	}

	var mailing *models.Mailing
	var recipients []*models.Recipient

	err = repository.WithTransaction(ctx, df.db, func(txCtx context.Context) error {
		recipients, err = df.recipientRepo.ListActiveByOwner(txCtx, owner.ID)
		if err != nil {
			return fmt.Errorf("failed to resolve active recipients: %w", err)
		}

		mailing = &models.Mailing{
			OwnerID:   owner.ID,
			Name:      req.Name,
			MessageID: &message.ID,
			Status:    models.MailingStatusCreated,
		}

		if err := df.mailingRepo.Save(txCtx, mailing); err != nil {
			return err
		}

		return df.mailingRepo.ReplaceRecipients(txCtx, mailing, recipients)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Mailing creation failed: %s", err.Error())
		_ = createAuditLog(ctx, df.auditRepo, &owner, models.AuditActionMailingCreated, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("MAILING_CREATION_FAILED", "Mailing creation failed", err)
	}

	mailing.Message = message

	dropListCache(ctx, df.rc, redisKey(*df.cacheConfig, fmt.Sprintf(utils.MailingListCacheKey, owner.ID)))

	return df.dispatch(ctx, &owner, mailing, recipients, metadata)
}

// dispatch runs one send against the transport and records the outcome on
// the mailing's attempt row. Transport failures are captured there and do
// not surface as errors; the attempt owner is the caller of this send.
func (df *DispatchFlowImpl) dispatch(ctx context.Context, caller *models.User, mailing *models.Mailing, recipients []*models.Recipient, metadata *ClientMetadata) (*dto.SendMailingResponse, error) {
	df.markRunning(ctx, mailing)

	emails := make([]string, 0, len(recipients))
	for _, r := range recipients {
		emails = append(emails, r.Email)
	}

	status := models.AttemptStatusSuccess
	transportResponse := utils.TransportResponseDelivered
	sentCount := uint(len(emails))

	if len(emails) > 0 {
		sendCtx := ctx
		if df.smtpConfig.SendTimeout > 0 {
			var cancel context.CancelFunc
			sendCtx, cancel = context.WithTimeout(ctx, df.smtpConfig.SendTimeout)
			defer cancel()
		}

		if err := df.transport.Send(sendCtx, mailing.Message.Subject, mailing.Message.Body, df.smtpConfig.FromAddress, emails); err != nil {
			status = models.AttemptStatusFailure
			transportResponse = err.Error()
			sentCount = 0
		}
	}

	attempt, err := df.attemptRepo.RecordOutcome(ctx, mailing.ID, caller.ID, status, transportResponse, sentCount)
	if err != nil {
		errMsg := fmt.Sprintf("Failed to record dispatch outcome for %s: %s", mailing.UUID.String(), err.Error())
		_ = createAuditLog(ctx, df.auditRepo, caller, models.AuditActionDispatchFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("ATTEMPT_RECORDING_FAILED", "Failed to record dispatch outcome", err)
	}
	attempt.Mailing = mailing

	df.markFinished(ctx, mailing)

	dropListCache(ctx, df.rc,
		redisKey(*df.cacheConfig, fmt.Sprintf(utils.MailingListCacheKey, mailing.OwnerID)),
		redisKey(*df.cacheConfig, fmt.Sprintf(utils.AttemptListCacheKey, caller.ID)),
	)

	if status == models.AttemptStatusSuccess {
		msg := fmt.Sprintf("Mailing dispatched: %s to %d recipients", mailing.UUID.String(), len(emails))
		_ = createAuditLog(ctx, df.auditRepo, caller, models.AuditActionMailingDispatched, msg, true, nil, metadata)
	} else {
		errMsg := fmt.Sprintf("Mailing dispatch failed: %s: %s", mailing.UUID.String(), transportResponse)
		_ = createAuditLog(ctx, df.auditRepo, caller, models.AuditActionDispatchFailed, errMsg, false, &errMsg, metadata)
	}

	responseMsg := "Mailing dispatched successfully"
	if status == models.AttemptStatusFailure {
		responseMsg = "Mailing dispatch failed; outcome recorded"
	}

	return &dto.SendMailingResponse{
		Message:        responseMsg,
		MailingUUID:    mailing.UUID.String(),
		RecipientCount: len(emails),
		Attempt:        ToAttemptResponse(*attempt),
	}, nil
}

// markRunning moves a created mailing to running. Finished mailings stay
// finished; the lifecycle never moves backward.
func (df *DispatchFlowImpl) markRunning(ctx context.Context, mailing *models.Mailing) {
	if !mailing.CanTransitionTo(models.MailingStatusRunning) {
		return
	}
	if err := df.mailingRepo.UpdateStatus(ctx, mailing.ID, models.MailingStatusRunning); err == nil {
		mailing.Status = models.MailingStatusRunning
	}
}

// markFinished closes out the mailing after outcome recording
func (df *DispatchFlowImpl) markFinished(ctx context.Context, mailing *models.Mailing) {
	if !mailing.CanTransitionTo(models.MailingStatusFinished) {
		return
	}
	if err := df.mailingRepo.UpdateStatus(ctx, mailing.ID, models.MailingStatusFinished); err == nil {
		mailing.Status = models.MailingStatusFinished
	}
}
