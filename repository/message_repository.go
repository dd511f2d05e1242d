package repository

import (
	"context"
	"fmt"

	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/utils"
	"gorm.io/gorm"
)

// MessageRepositoryImpl implements the MessageRepository interface
type MessageRepositoryImpl struct {
	*BaseRepository[models.Message, models.MessageFilter]
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &MessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Message, models.MessageFilter](db),
	}
}

// ByUUID retrieves a message by UUID
func (r *MessageRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Message, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.MessageFilter{UUID: &parsedUUID}
	messages, err := r.ByFilter(ctx, filter, "", 1, 0)
	if err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		return nil, nil
	}

	return messages[0], nil
}

// ListByOwner retrieves all messages of the given owner
func (r *MessageRepositoryImpl) ListByOwner(ctx context.Context, ownerID uint) ([]*models.Message, error) {
	filter := models.MessageFilter{OwnerID: &ownerID}
	return r.ByFilter(ctx, filter, "created_at DESC", 0, 0)
}

// Update updates a message
func (r *MessageRepositoryImpl) Update(ctx context.Context, message models.Message) error {
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
	message.UpdatedAt = &now

	err = db.Save(&message).Error
	if err != nil {
		return fmt.Errorf("failed to update message %d: %w", message.ID, err)
	}

	return nil
}

// Delete removes a message; dependent mailings keep running with a null
// message reference (SET NULL)
func (r *MessageRepositoryImpl) Delete(ctx context.Context, id uint) error {
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

	err = db.Model(&models.Mailing{}).
		Where("message_id = ?", id).
		Update("message_id", nil).Error
	if err != nil {
		return fmt.Errorf("failed to detach message %d from mailings: %w", id, err)
	}

	err = db.Delete(&models.Message{}, id).Error
	if err != nil {
		return fmt.Errorf("failed to delete message %d: %w", id, err)
	}

	return nil
}

// ByFilter retrieves messages based on filter criteria
func (r *MessageRepositoryImpl) ByFilter(ctx context.Context, filter models.MessageFilter, orderBy string, limit, offset int) ([]*models.Message, error) {
	db := r.getDB(ctx)

	var messages []*models.Message
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

	err := query.Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// Count returns the number of messages matching the filter
func (r *MessageRepositoryImpl) Count(ctx context.Context, filter models.MessageFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Message{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any message matching the filter exists
func (r *MessageRepositoryImpl) Exists(ctx context.Context, filter models.MessageFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *MessageRepositoryImpl) applyFilter(db *gorm.DB, filter models.MessageFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.OwnerID != nil {
		db = db.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Subject != nil {
		db = db.Where("subject = ?", *filter.Subject)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
