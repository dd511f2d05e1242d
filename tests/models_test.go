// Package tests contains test cases for models, repository, and business flow packages to avoid circular imports
package tests

import (
	"testing"

	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/utils"
	"github.com/stretchr/testify/assert"
)

func TestMailingStatus(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.True(t, models.MailingStatusCreated.Valid())
		assert.True(t, models.MailingStatusRunning.Valid())
		assert.True(t, models.MailingStatusFinished.Valid())
		assert.False(t, models.MailingStatus("archived").Valid())
		assert.False(t, models.MailingStatus("").Valid())
	})

	t.Run("ScanAndValue", func(t *testing.T) {
		var status models.MailingStatus
		err := status.Scan("running")
		assert.NoError(t, err)
		assert.Equal(t, models.MailingStatusRunning, status)

		err = status.Scan([]byte("finished"))
		assert.NoError(t, err)
		assert.Equal(t, models.MailingStatusFinished, status)

		value, err := models.MailingStatusCreated.Value()
		assert.NoError(t, err)
		assert.Equal(t, "created", value)

		_, err = models.MailingStatus("bogus").Value()
		assert.Error(t, err)
	})
}

func TestMailingTransitions(t *testing.T) {
	t.Run("ForwardOnly", func(t *testing.T) {
		created := &models.Mailing{Status: models.MailingStatusCreated}
		assert.True(t, created.CanTransitionTo(models.MailingStatusRunning))
		assert.True(t, created.CanTransitionTo(models.MailingStatusFinished))
		assert.False(t, created.CanTransitionTo(models.MailingStatusCreated))

		running := &models.Mailing{Status: models.MailingStatusRunning}
		assert.True(t, running.CanTransitionTo(models.MailingStatusFinished))
		assert.False(t, running.CanTransitionTo(models.MailingStatusCreated))
		assert.False(t, running.CanTransitionTo(models.MailingStatusRunning))
	})

	t.Run("FinishedIsTerminal", func(t *testing.T) {
		finished := &models.Mailing{Status: models.MailingStatusFinished}
		assert.False(t, finished.CanTransitionTo(models.MailingStatusCreated))
		assert.False(t, finished.CanTransitionTo(models.MailingStatusRunning))
		assert.False(t, finished.CanTransitionTo(models.MailingStatusFinished))
		assert.True(t, finished.IsFinished())
	})
}

func TestAttemptStatus(t *testing.T) {
	assert.True(t, models.AttemptStatusSuccess.Valid())
	assert.True(t, models.AttemptStatusFailure.Valid())
	assert.False(t, models.AttemptStatus("pending").Valid())

	var status models.AttemptStatus
	err := status.Scan("failure")
	assert.NoError(t, err)
	assert.Equal(t, models.AttemptStatusFailure, status)

	value, err := models.AttemptStatusSuccess.Value()
	assert.NoError(t, err)
	assert.Equal(t, "success", value)
}

func TestUserCapabilities(t *testing.T) {
	user := &models.User{}
	assert.False(t, user.HasCapability(models.CapabilityViewAllRecipients))
	assert.False(t, user.HasCapability(models.CapabilityViewAllMessages))
	assert.False(t, user.HasCapability(models.CapabilityViewAllMailings))
	assert.False(t, user.HasCapability("unknown_capability"))

	user.CanViewAllRecipients = utils.ToPtr(true)
	user.CanViewAllMailings = utils.ToPtr(true)
	assert.True(t, user.HasCapability(models.CapabilityViewAllRecipients))
	assert.False(t, user.HasCapability(models.CapabilityViewAllMessages))
	assert.True(t, user.HasCapability(models.CapabilityViewAllMailings))
}
