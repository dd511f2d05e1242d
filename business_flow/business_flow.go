// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/svetlov/mailboard/app/dto"
	"github.com/svetlov/mailboard/config"
	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/repository"
	"github.com/svetlov/mailboard/utils"
)

// ClientMetadata holds all client-related information for audit logging and session tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetSessionID sets the session ID
func (cm *ClientMetadata) SetSessionID(sessionID string) {
	cm.SessionID = sessionID
}

// getUser loads a user by ID and ensures the account is usable
func getUser(ctx context.Context, userRepo repository.UserRepository, userID uint) (models.User, error) {
	user, err := userRepo.ByID(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return models.User{}, ErrUserNotFound
	}
	if user.IsActive == nil || !*user.IsActive {
		return models.User{}, ErrAccountInactive
	}
	return *user, nil
}

// redisKey prefixes a cache key with the configured namespace
func redisKey(cfg config.CacheConfig, key string) string {
	if cfg.RedisPrefix == "" {
		return key
	}
	return cfg.RedisPrefix + ":" + key
}

// readListCache fills out from the cached JSON list under key. Returns false
// on a miss, a disabled cache, or stale unmarshalable content.
func readListCache(ctx context.Context, rc *redis.Client, key string, out any) bool {
	if rc == nil {
		return false
	}
	bs, err := rc.Get(ctx, key).Bytes()
	if err != nil || len(bs) == 0 {
		return false
	}
	if err := json.Unmarshal(bs, out); err != nil {
		return false
	}
	return true
}

// writeListCache stores val as JSON under key. Failures are ignored, the
// database remains the source of truth.
func writeListCache(ctx context.Context, rc *redis.Client, key string, val any, ttl time.Duration) {
	if rc == nil {
		return
	}
	if ttl <= 0 {
		ttl = utils.ListCacheTTL
	}
	if bs, err := json.Marshal(val); err == nil {
		_ = rc.Set(ctx, key, bs, ttl).Err()
	}
}

// dropListCache invalidates cached owner-scoped lists after a write
func dropListCache(ctx context.Context, rc *redis.Client, keys ...string) {
	if rc == nil || len(keys) == 0 {
		return
	}
	_ = rc.Del(ctx, keys...).Err()
}

// createAuditLog records one audit entry. Errors are returned so callers can
// decide whether to ignore them; most do.
func createAuditLog(ctx context.Context, auditRepo repository.AuditLogRepository, user *models.User, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	var userID *uint
	if user != nil {
		userID = &user.ID
	}

	ipAddress := ""
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	// Extract request ID from context if available
	requestID := ctx.Value(utils.RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return auditRepo.Save(ctx, audit)
}

// ToUserInfo converts a user model to UserInfo for authentication responses
func ToUserInfo(user models.User) dto.UserInfo {
	return dto.UserInfo{
		ID:        user.ID,
		UUID:      user.UUID.String(),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

// ToRecipientResponse converts a recipient model to its response DTO
func ToRecipientResponse(recipient models.Recipient) dto.RecipientResponse {
	return dto.RecipientResponse{
		UUID:      recipient.UUID.String(),
		Email:     recipient.Email,
		FullName:  recipient.FullName,
		Comment:   recipient.Comment,
		Active:    recipient.Active,
		OwnerID:   recipient.OwnerID,
		CreatedAt: recipient.CreatedAt.Format(time.RFC3339),
	}
}

// ToMessageResponse converts a message model to its response DTO
func ToMessageResponse(message models.Message) dto.MessageResponse {
	return dto.MessageResponse{
		UUID:      message.UUID.String(),
		Subject:   message.Subject,
		Body:      message.Body,
		OwnerID:   message.OwnerID,
		CreatedAt: message.CreatedAt.Format(time.RFC3339),
	}
}

// ToMailingResponse converts a mailing model to its response DTO, including
// the recipient set and the attached message when preloaded
func ToMailingResponse(mailing models.Mailing) dto.MailingResponse {
	resp := dto.MailingResponse{
		UUID:      mailing.UUID.String(),
		Name:      mailing.Name,
		Status:    mailing.Status.String(),
		OwnerID:   mailing.OwnerID,
		CreatedAt: mailing.CreatedAt.Format(time.RFC3339),
	}

	if mailing.Message != nil {
		resp.MessageUUID = utils.ToPtr(mailing.Message.UUID.String())
		resp.MessageSubject = utils.ToPtr(mailing.Message.Subject)
	}

	for _, recipient := range mailing.Recipients {
		resp.Recipients = append(resp.Recipients, ToRecipientResponse(recipient))
	}

	return resp
}

// ToAttemptResponse converts an attempt model to its response DTO
func ToAttemptResponse(attempt models.Attempt) dto.AttemptResponse {
	resp := dto.AttemptResponse{
		UUID:              attempt.UUID.String(),
		Status:            attempt.Status.String(),
		TransportResponse: attempt.TransportResponse,
		OkCount:           attempt.OkCount,
		ErrorCount:        attempt.ErrorCount,
		MessagesSentCount: attempt.MessagesSentCount,
		AttemptedAt:       attempt.AttemptedAt.Format(time.RFC3339),
	}

	if attempt.Mailing != nil {
		resp.MailingUUID = attempt.Mailing.UUID.String()
		if attempt.Mailing.Name != nil {
			resp.MailingName = *attempt.Mailing.Name
		}
	}

	return resp
}
