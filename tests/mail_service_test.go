package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/svetlov/mailboard/app/services"
	"github.com/stretchr/testify/assert"
)

func TestMockMailTransport(t *testing.T) {
	transport := services.NewMockMailTransport()
	ctx := context.Background()

	// Sending records the batch
	err := transport.Send(ctx, "Hello", "Body text", "noreply@mailboard.test", []string{"a@example.com", "b@example.com"})
	assert.NoError(t, err)

	sent := transport.SentMails()
	assert.Len(t, sent, 1)
	assert.Equal(t, "Hello", sent[0].Subject)
	assert.Equal(t, "Body text", sent[0].Body)
	assert.Equal(t, "noreply@mailboard.test", sent[0].FromAddress)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, sent[0].Recipients)

	// Injected failures surface on Send and record nothing
	transport.FailWith(errors.New("connection refused"))
	err = transport.Send(ctx, "Again", "More text", "noreply@mailboard.test", []string{"c@example.com"})
	assert.Error(t, err)
	assert.Len(t, transport.SentMails(), 1)

	// Clearing the failure restores delivery
	transport.FailWith(nil)
	err = transport.Send(ctx, "Again", "More text", "noreply@mailboard.test", []string{"c@example.com"})
	assert.NoError(t, err)
	assert.Len(t, transport.SentMails(), 2)

	transport.ClearSentMails()
	assert.Len(t, transport.SentMails(), 0)
}
