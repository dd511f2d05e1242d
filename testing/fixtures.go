// Package testing provides test utilities and database setup for testing the mailing system
package testing

import (
	"fmt"
	"math/rand"

	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates an active user with a known password ("TestPass123!")
func (tf *TestFixtures) CreateTestUser() (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	user := &models.User{
		Email:        fmt.Sprintf("jane.doe.%s@example.com", randomDigits),
		FirstName:    "Jane",
		LastName:     "Doe",
		PasswordHash: string(hashedPassword),
		IsActive:     utils.ToPtr(true),
	}

	err = tf.DB.DB.Create(user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	return user, nil
}

// CreateTestRecipient creates a recipient owned by the given user
func (tf *TestFixtures) CreateTestRecipient(ownerID uint, email string, active bool) (*models.Recipient, error) {
	fullName := "Test Recipient"
	recipient := &models.Recipient{
		OwnerID:  ownerID,
		Email:    email,
		FullName: &fullName,
		Active:   utils.ToPtr(active),
	}

	err := tf.DB.DB.Create(recipient).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test recipient: %w", err)
	}

	return recipient, nil
}

// CreateTestMessage creates a message template owned by the given user
func (tf *TestFixtures) CreateTestMessage(ownerID uint) (*models.Message, error) {
	message := &models.Message{
		OwnerID: ownerID,
		Subject: fmt.Sprintf("Test subject %d", rand.Intn(100000)),
		Body:    "Hello,\n\nthis is a test message body.\n",
	}

	err := tf.DB.DB.Create(message).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test message: %w", err)
	}

	return message, nil
}

// CreateTestMailing creates a mailing with an optional message and recipient set
func (tf *TestFixtures) CreateTestMailing(ownerID uint, messageID *uint, recipients []models.Recipient) (*models.Mailing, error) {
	name := fmt.Sprintf("Test mailing %d", rand.Intn(100000))
	mailing := &models.Mailing{
		OwnerID:   ownerID,
		Name:      &name,
		MessageID: messageID,
		Status:    models.MailingStatusCreated,
	}

	err := tf.DB.DB.Create(mailing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test mailing: %w", err)
	}

	if len(recipients) > 0 {
		if err := tf.DB.DB.Model(mailing).Association("Recipients").Replace(recipients); err != nil {
			return nil, fmt.Errorf("failed to attach recipients to test mailing: %w", err)
		}
	}

	return mailing, nil
}
