package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttemptRepositoryImpl implements the AttemptRepository interface
type AttemptRepositoryImpl struct {
	*BaseRepository[models.Attempt, models.AttemptFilter]
}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &AttemptRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Attempt, models.AttemptFilter](db),
	}
}

// ByMailingID retrieves the single attempt row of a mailing
func (r *AttemptRepositoryImpl) ByMailingID(ctx context.Context, mailingID uint) (*models.Attempt, error) {
	db := r.getDB(ctx)

	var attempt models.Attempt
	err := db.Where("mailing_id = ?", mailingID).Last(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &attempt, nil
}

// ListByOwner retrieves the attempts recorded by the given owner, newest first
func (r *AttemptRepositoryImpl) ListByOwner(ctx context.Context, ownerID uint) ([]*models.Attempt, error) {
	filter := models.AttemptFilter{OwnerID: &ownerID}
	return r.ByFilter(ctx, filter, "attempted_at DESC", 0, 0)
}

// RecordOutcome upserts the attempt row keyed by mailing and bumps its
// counters. The increment happens inside the ON CONFLICT update expression,
// so concurrent sends against the same mailing cannot lose updates.
func (r *AttemptRepositoryImpl) RecordOutcome(ctx context.Context, mailingID, ownerID uint, status models.AttemptStatus, transportResponse string, sentCount uint) (*models.Attempt, error) {
	db := r.getDB(ctx)

	now := utils.UTCNow()
	attempt := models.Attempt{
		UUID:              uuid.New(),
		MailingID:         mailingID,
		OwnerID:           ownerID,
		AttemptedAt:       now,
		Status:            status,
		TransportResponse: transportResponse,
	}

	assignments := map[string]any{
		"owner_id":           ownerID,
		"attempted_at":       now,
		"status":             status,
		"transport_response": transportResponse,
	}
	switch status {
	case models.AttemptStatusSuccess:
		attempt.OkCount = 1
		attempt.MessagesSentCount = sentCount
		assignments["ok_count"] = gorm.Expr("attempts.ok_count + 1")
		assignments["messages_sent_count"] = gorm.Expr("attempts.messages_sent_count + ?", sentCount)
	case models.AttemptStatusFailure:
		attempt.ErrorCount = 1
		assignments["error_count"] = gorm.Expr("attempts.error_count + 1")
	default:
		return nil, fmt.Errorf("invalid attempt status: %s", status)
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mailing_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&attempt).Error
	if err != nil {
		return nil, fmt.Errorf("failed to record outcome for mailing %d: %w", mailingID, err)
	}

	// Re-read: on conflict the in-memory struct does not carry the
	// accumulated counters
	return r.ByMailingID(ctx, mailingID)
}

// ByFilter retrieves attempts based on filter criteria
func (r *AttemptRepositoryImpl) ByFilter(ctx context.Context, filter models.AttemptFilter, orderBy string, limit, offset int) ([]*models.Attempt, error) {
	db := r.getDB(ctx)

	var attempts []*models.Attempt
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	query = query.Preload("Mailing")

	err := query.Find(&attempts).Error
	if err != nil {
		return nil, err
	}

	return attempts, nil
}

// Count returns the number of attempts matching the filter
func (r *AttemptRepositoryImpl) Count(ctx context.Context, filter models.AttemptFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Attempt{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any attempt matching the filter exists
func (r *AttemptRepositoryImpl) Exists(ctx context.Context, filter models.AttemptFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *AttemptRepositoryImpl) applyFilter(db *gorm.DB, filter models.AttemptFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.MailingID != nil {
		db = db.Where("mailing_id = ?", *filter.MailingID)
	}
	if filter.OwnerID != nil {
		db = db.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.AttemptedAfter != nil {
		db = db.Where("attempted_at >= ?", *filter.AttemptedAfter)
	}
	if filter.AttemptedBefore != nil {
		db = db.Where("attempted_at <= ?", *filter.AttemptedBefore)
	}
	return db
}
