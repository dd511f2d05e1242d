package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/utils"
	"gorm.io/gorm"
)

// MailingRepositoryImpl implements the MailingRepository interface
type MailingRepositoryImpl struct {
	*BaseRepository[models.Mailing, models.MailingFilter]
}

// NewMailingRepository creates a new mailing repository
func NewMailingRepository(db *gorm.DB) MailingRepository {
	return &MailingRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Mailing, models.MailingFilter](db),
	}
}

// ByID retrieves a mailing by ID with its message and recipient set
func (r *MailingRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Mailing, error) {
	db := r.getDB(ctx)

	var mailing models.Mailing
	err := db.Preload("Message").
		Preload("Recipients").
		Last(&mailing, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &mailing, nil
}

// ByUUID retrieves a mailing by UUID with its message and recipient set
func (r *MailingRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Mailing, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.MailingFilter{UUID: &parsedUUID}
	mailings, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(mailings) == 0 {
		return nil, nil
	}

	return mailings[0], nil
}

// ListByOwner retrieves mailings of the given owner with pagination
func (r *MailingRepositoryImpl) ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Mailing, error) {
	filter := models.MailingFilter{OwnerID: &ownerID}
	return r.ByFilter(ctx, filter, "created_at DESC", limit, offset)
}

// ReplaceRecipients overwrites the mailing's materialized recipient set
func (r *MailingRepositoryImpl) ReplaceRecipients(ctx context.Context, mailing *models.Mailing, recipients []*models.Recipient) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(mailing).Association("Recipients").Replace(recipients)
	if err != nil {
		return fmt.Errorf("failed to replace recipients of mailing %d: %w", mailing.ID, err)
	}

	return nil
}

// Update updates a mailing
func (r *MailingRepositoryImpl) Update(ctx context.Context, mailing models.Mailing) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	now := utils.UTCNow()
	mailing.UpdatedAt = &now

	// Omit associations so recipient membership only changes through
	// ReplaceRecipients
	err = db.Omit("Recipients", "Message", "Owner", "Attempt").Save(&mailing).Error
	if err != nil {
		return fmt.Errorf("failed to update mailing %d: %w", mailing.ID, err)
	}

	return nil
}

// UpdateStatus updates only the status of a mailing
func (r *MailingRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.MailingStatus) error {
	db := r.getDB(ctx)
	err := db.Model(&models.Mailing{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update status of mailing %d: %w", id, err)
	}
	return nil
}

// Delete removes a mailing; its attempt row and join-table rows cascade
func (r *MailingRepositoryImpl) Delete(ctx context.Context, id uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	mailing := models.Mailing{ID: id}
	if err = db.Model(&mailing).Association("Recipients").Clear(); err != nil {
		return fmt.Errorf("failed to detach recipients of mailing %d: %w", id, err)
	}

	if err = db.Where("mailing_id = ?", id).Delete(&models.Attempt{}).Error; err != nil {
		return fmt.Errorf("failed to delete attempt of mailing %d: %w", id, err)
	}

	err = db.Delete(&models.Mailing{}, id).Error
	if err != nil {
		return fmt.Errorf("failed to delete mailing %d: %w", id, err)
	}

	return nil
}

// ByFilter retrieves mailings based on filter criteria
func (r *MailingRepositoryImpl) ByFilter(ctx context.Context, filter models.MailingFilter, orderBy string, limit, offset int) ([]*models.Mailing, error) {
	db := r.getDB(ctx)

	var mailings []*models.Mailing
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

	query = query.Preload("Message").
		Preload("Recipients")

	err := query.Find(&mailings).Error
	if err != nil {
		return nil, err
	}

	return mailings, nil
}

// Count returns the number of mailings matching the filter
func (r *MailingRepositoryImpl) Count(ctx context.Context, filter models.MailingFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Mailing{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any mailing matching the filter exists
func (r *MailingRepositoryImpl) Exists(ctx context.Context, filter models.MailingFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *MailingRepositoryImpl) applyFilter(db *gorm.DB, filter models.MailingFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.OwnerID != nil {
		db = db.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.MessageID != nil {
		db = db.Where("message_id = ?", *filter.MessageID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.Name != nil {
		db = db.Where("name = ?", *filter.Name)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
