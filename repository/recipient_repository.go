package repository

import (
	"context"
	"fmt"

	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/utils"
	"gorm.io/gorm"
)

// RecipientRepositoryImpl implements the RecipientRepository interface
type RecipientRepositoryImpl struct {
	*BaseRepository[models.Recipient, models.RecipientFilter]
}

// NewRecipientRepository creates a new recipient repository
func NewRecipientRepository(db *gorm.DB) RecipientRepository {
	return &RecipientRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Recipient, models.RecipientFilter](db),
	}
}

// ByUUID retrieves a recipient by UUID
func (r *RecipientRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Recipient, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.RecipientFilter{UUID: &parsedUUID}
	recipients, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(recipients) == 0 {
		return nil, nil
	}

	return recipients[0], nil
}

// ByOwnerAndEmail retrieves the owner's recipient with the given address.
// Uniqueness is scoped per owner, so the pair identifies at most one row.
func (r *RecipientRepositoryImpl) ByOwnerAndEmail(ctx context.Context, ownerID uint, email string) (*models.Recipient, error) {
	filter := models.RecipientFilter{OwnerID: &ownerID, Email: &email}
	recipients, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(recipients) == 0 {
		return nil, nil
	}

	return recipients[0], nil
}

// ListByOwner retrieves all recipients of the given owner
func (r *RecipientRepositoryImpl) ListByOwner(ctx context.Context, ownerID uint) ([]*models.Recipient, error) {
	filter := models.RecipientFilter{OwnerID: &ownerID}
	return r.ByFilter(ctx, filter, "full_name ASC, email ASC", 0, 0)
}

// ListActiveByOwner retrieves the owner's active recipients, the default
// audience for a new mailing
func (r *RecipientRepositoryImpl) ListActiveByOwner(ctx context.Context, ownerID uint) ([]*models.Recipient, error) {
	active := true
	filter := models.RecipientFilter{OwnerID: &ownerID, Active: &active}
	return r.ByFilter(ctx, filter, "full_name ASC, email ASC", 0, 0)
}

// Update updates a recipient
func (r *RecipientRepositoryImpl) Update(ctx context.Context, recipient models.Recipient) error {
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
	recipient.UpdatedAt = &now

	err = db.Save(&recipient).Error
	if err != nil {
		return fmt.Errorf("failed to update recipient %d: %w", recipient.ID, err)
	}

	return nil
}

// Delete removes a recipient; join-table rows cascade with it
func (r *RecipientRepositoryImpl) Delete(ctx context.Context, id uint) error {
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

	recipient := models.Recipient{ID: id}
	if err = db.Model(&recipient).Association("Mailings").Clear(); err != nil {
		return fmt.Errorf("failed to detach recipient %d from mailings: %w", id, err)
	}

	err = db.Delete(&models.Recipient{}, id).Error
	if err != nil {
		return fmt.Errorf("failed to delete recipient %d: %w", id, err)
	}

	return nil
}

// ByFilter retrieves recipients based on filter criteria
func (r *RecipientRepositoryImpl) ByFilter(ctx context.Context, filter models.RecipientFilter, orderBy string, limit, offset int) ([]*models.Recipient, error) {
	db := r.getDB(ctx)

	var recipients []*models.Recipient
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

	err := query.Find(&recipients).Error
	if err != nil {
		return nil, err
	}

	return recipients, nil
}

// Count returns the number of recipients matching the filter
func (r *RecipientRepositoryImpl) Count(ctx context.Context, filter models.RecipientFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Recipient{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any recipient matching the filter exists
func (r *RecipientRepositoryImpl) Exists(ctx context.Context, filter models.RecipientFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *RecipientRepositoryImpl) applyFilter(db *gorm.DB, filter models.RecipientFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.OwnerID != nil {
		db = db.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Email != nil {
		db = db.Where("email = ?", *filter.Email)
	}
	if filter.Active != nil {
		db = db.Where("active = ?", *filter.Active)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
