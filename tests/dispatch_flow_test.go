package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/svetlov/mailboard/app/dto"
	"github.com/svetlov/mailboard/app/services"
	businessflow "github.com/svetlov/mailboard/business_flow"
	"github.com/svetlov/mailboard/config"
	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/repository"
	testingutil "github.com/svetlov/mailboard/testing"
	"github.com/svetlov/mailboard/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatchFlow(testDB *testingutil.TestDB, transport services.MailTransport) businessflow.DispatchFlow {
	return businessflow.NewDispatchFlow(
		repository.NewMailingRepository(testDB.DB),
		repository.NewMessageRepository(testDB.DB),
		repository.NewRecipientRepository(testDB.DB),
		repository.NewAttemptRepository(testDB.DB),
		repository.NewUserRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		transport,
		config.SMTPConfig{FromAddress: "noreply@mailboard.test", SendTimeout: 5 * time.Second},
		testDB.DB,
		nil,
		testCacheConfig(),
	)
}

func TestSendMailing(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		mailingRepo := repository.NewMailingRepository(testDB.DB)
		attemptRepo := repository.NewAttemptRepository(testDB.DB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("SuccessfulDispatch", func(t *testing.T) {
			transport := services.NewMockMailTransport()
			flow := newDispatchFlow(testDB, transport)

			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)
			r1, err := fixtures.CreateTestRecipient(owner.ID, "one@example.com", true)
			require.NoError(t, err)
			r2, err := fixtures.CreateTestRecipient(owner.ID, "two@example.com", true)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, &message.ID, []models.Recipient{*r1, *r2})
			require.NoError(t, err)

			result, err := flow.SendMailing(context.Background(), &dto.SendMailingRequest{
				UUID:     mailing.UUID.String(),
				CallerID: owner.ID,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, 2, result.RecipientCount)
			assert.Equal(t, "success", result.Attempt.Status)
			assert.Equal(t, utils.TransportResponseDelivered, result.Attempt.TransportResponse)
			assert.Equal(t, uint(1), result.Attempt.OkCount)
			assert.Equal(t, uint(2), result.Attempt.MessagesSentCount)

			// Transport got exactly one batch with both addresses
			sent := transport.SentMails()
			require.Len(t, sent, 1)
			assert.Equal(t, message.Subject, sent[0].Subject)
			assert.ElementsMatch(t, []string{"one@example.com", "two@example.com"}, sent[0].Recipients)

			// Mailing ran through its lifecycle to finished
			stored, err := mailingRepo.ByUUID(context.Background(), mailing.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, models.MailingStatusFinished, stored.Status)
		})

		t.Run("TransportFailureAbsorbed", func(t *testing.T) {
			transport := services.NewMockMailTransport()
			transport.FailWith(errors.New("smtp send failed: connection refused"))
			flow := newDispatchFlow(testDB, transport)

			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)
			r, err := fixtures.CreateTestRecipient(owner.ID, "unlucky@example.com", true)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, &message.ID, []models.Recipient{*r})
			require.NoError(t, err)

			// The failure lands in the attempt, not in the returned error
			result, err := flow.SendMailing(context.Background(), &dto.SendMailingRequest{
				UUID:     mailing.UUID.String(),
				CallerID: owner.ID,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "failure", result.Attempt.Status)
			assert.Equal(t, "smtp send failed: connection refused", result.Attempt.TransportResponse)
			assert.Equal(t, uint(1), result.Attempt.ErrorCount)
			assert.Equal(t, uint(0), result.Attempt.MessagesSentCount)

			// The mailing still finishes
			stored, err := mailingRepo.ByUUID(context.Background(), mailing.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, models.MailingStatusFinished, stored.Status)
		})

		t.Run("RepeatedSendsAccumulate", func(t *testing.T) {
			transport := services.NewMockMailTransport()
			flow := newDispatchFlow(testDB, transport)

			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)
			r, err := fixtures.CreateTestRecipient(owner.ID, "repeat@example.com", true)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, &message.ID, []models.Recipient{*r})
			require.NoError(t, err)

			req := &dto.SendMailingRequest{UUID: mailing.UUID.String(), CallerID: owner.ID}

			_, err = flow.SendMailing(context.Background(), req, metadata)
			require.NoError(t, err)

			// Re-sending a finished mailing works and bumps the same row
			result, err := flow.SendMailing(context.Background(), req, metadata)
			require.NoError(t, err)
			assert.Equal(t, uint(2), result.Attempt.OkCount)
			assert.Equal(t, uint(2), result.Attempt.MessagesSentCount)

			attempt, err := attemptRepo.ByMailingID(context.Background(), mailing.ID)
			require.NoError(t, err)
			require.NotNil(t, attempt)
			assert.Equal(t, uint(2), attempt.OkCount)

			// Finished stays finished across re-sends
			stored, err := mailingRepo.ByUUID(context.Background(), mailing.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, models.MailingStatusFinished, stored.Status)
		})

		t.Run("AttemptOwnerIsCaller", func(t *testing.T) {
			transport := services.NewMockMailTransport()
			flow := newDispatchFlow(testDB, transport)

			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			operator, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			operator.CanViewAllMailings = utils.ToPtr(true)
			require.NoError(t, testDB.DB.Save(operator).Error)

			message, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)
			r, err := fixtures.CreateTestRecipient(owner.ID, "operated@example.com", true)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, &message.ID, []models.Recipient{*r})
			require.NoError(t, err)

			_, err = flow.SendMailing(context.Background(), &dto.SendMailingRequest{
				UUID:     mailing.UUID.String(),
				CallerID: operator.ID,
			}, metadata)
			require.NoError(t, err)

			attempt, err := attemptRepo.ByMailingID(context.Background(), mailing.ID)
			require.NoError(t, err)
			require.NotNil(t, attempt)
			assert.Equal(t, operator.ID, attempt.OwnerID)
		})

		t.Run("NoMessageAttached", func(t *testing.T) {
			transport := services.NewMockMailTransport()
			flow := newDispatchFlow(testDB, transport)

			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			_, err = flow.SendMailing(context.Background(), &dto.SendMailingRequest{
				UUID:     mailing.UUID.String(),
				CallerID: owner.ID,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsMailingNoMessage(err))
		})

		t.Run("NonOwnerWithoutCapabilityDenied", func(t *testing.T) {
			transport := services.NewMockMailTransport()
			flow := newDispatchFlow(testDB, transport)

			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			stranger, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, &message.ID, nil)
			require.NoError(t, err)

			_, err = flow.SendMailing(context.Background(), &dto.SendMailingRequest{
				UUID:     mailing.UUID.String(),
				CallerID: stranger.ID,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAccessDenied(err))
		})

		t.Run("EmptyRecipientSet", func(t *testing.T) {
			transport := services.NewMockMailTransport()
			flow := newDispatchFlow(testDB, transport)

			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, &message.ID, nil)
			require.NoError(t, err)

			// Nothing to send still counts as a successful dispatch
			result, err := flow.SendMailing(context.Background(), &dto.SendMailingRequest{
				UUID:     mailing.UUID.String(),
				CallerID: owner.ID,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, 0, result.RecipientCount)
			assert.Equal(t, "success", result.Attempt.Status)
			assert.Equal(t, uint(0), result.Attempt.MessagesSentCount)
			assert.Empty(t, transport.SentMails())
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCreateAndSendMailing(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		mailingRepo := repository.NewMailingRepository(testDB.DB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("ResolvesActiveRecipientsAtSendTime", func(t *testing.T) {
			transport := services.NewMockMailTransport()
			flow := newDispatchFlow(testDB, transport)

			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)

			_, err = fixtures.CreateTestRecipient(owner.ID, "live1@example.com", true)
			require.NoError(t, err)
			_, err = fixtures.CreateTestRecipient(owner.ID, "live2@example.com", true)
			require.NoError(t, err)
			_, err = fixtures.CreateTestRecipient(owner.ID, "paused@example.com", false)
			require.NoError(t, err)

			result, err := flow.CreateAndSendMailing(context.Background(), &dto.CreateAndSendMailingRequest{
				OwnerID:     owner.ID,
				Name:        utils.ToPtr("One-shot"),
				MessageUUID: message.UUID.String(),
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, 2, result.RecipientCount)
			assert.Equal(t, "success", result.Attempt.Status)

			sent := transport.SentMails()
			require.Len(t, sent, 1)
			assert.ElementsMatch(t, []string{"live1@example.com", "live2@example.com"}, sent[0].Recipients)

			// The created mailing is persisted finished with the resolved set
			stored, err := mailingRepo.ByUUID(context.Background(), result.MailingUUID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, models.MailingStatusFinished, stored.Status)
			assert.Len(t, stored.Recipients, 2)
		})

		t.Run("ForeignMessageDenied", func(t *testing.T) {
			transport := services.NewMockMailTransport()
			flow := newDispatchFlow(testDB, transport)

			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			other, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(other.ID)
			require.NoError(t, err)

			_, err = flow.CreateAndSendMailing(context.Background(), &dto.CreateAndSendMailingRequest{
				OwnerID:     owner.ID,
				MessageUUID: message.UUID.String(),
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAccessDenied(err))
		})

		t.Run("UnknownMessage", func(t *testing.T) {
			transport := services.NewMockMailTransport()
			flow := newDispatchFlow(testDB, transport)

			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			_, err = flow.CreateAndSendMailing(context.Background(), &dto.CreateAndSendMailingRequest{
				OwnerID:     owner.ID,
				MessageUUID: "00000000-0000-0000-0000-000000000000",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}
