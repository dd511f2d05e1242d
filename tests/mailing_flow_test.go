package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/svetlov/mailboard/app/dto"
	businessflow "github.com/svetlov/mailboard/business_flow"
	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/repository"
	testingutil "github.com/svetlov/mailboard/testing"
	"github.com/svetlov/mailboard/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMailingFlow(testDB *testingutil.TestDB) businessflow.MailingFlow {
	return businessflow.NewMailingFlow(
		repository.NewMailingRepository(testDB.DB),
		repository.NewMessageRepository(testDB.DB),
		repository.NewRecipientRepository(testDB.DB),
		repository.NewUserRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		testDB.DB,
		nil,
		testCacheConfig(),
	)
}

func TestCreateMailing(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		mailingRepo := repository.NewMailingRepository(testDB.DB)
		flow := newMailingFlow(testDB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("SnapshotsActiveRecipients", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			_, err = fixtures.CreateTestRecipient(owner.ID, "snap1@example.com", true)
			require.NoError(t, err)
			_, err = fixtures.CreateTestRecipient(owner.ID, "snap2@example.com", true)
			require.NoError(t, err)
			_, err = fixtures.CreateTestRecipient(owner.ID, "sleeping@example.com", false)
			require.NoError(t, err)

			result, err := flow.CreateMailing(context.Background(), &dto.CreateMailingRequest{
				OwnerID: owner.ID,
				Name:    utils.ToPtr("September launch"),
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "created", result.Status)
			assert.Equal(t, 2, result.RecipientCount)

			stored, err := mailingRepo.ByUUID(context.Background(), result.UUID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Len(t, stored.Recipients, 2)
		})

		t.Run("ExplicitRecipientSet", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			chosen, err := fixtures.CreateTestRecipient(owner.ID, "chosen@example.com", true)
			require.NoError(t, err)
			_, err = fixtures.CreateTestRecipient(owner.ID, "ignored@example.com", true)
			require.NoError(t, err)

			result, err := flow.CreateMailing(context.Background(), &dto.CreateMailingRequest{
				OwnerID:        owner.ID,
				RecipientUUIDs: []string{chosen.UUID.String()},
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, 1, result.RecipientCount)
		})

		t.Run("ForeignRecipientRejected", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			other, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			foreign, err := fixtures.CreateTestRecipient(other.ID, "foreign@example.com", true)
			require.NoError(t, err)

			_, err = flow.CreateMailing(context.Background(), &dto.CreateMailingRequest{
				OwnerID:        owner.ID,
				RecipientUUIDs: []string{foreign.UUID.String()},
			}, metadata)
			require.Error(t, err)
			assert.True(t, errors.Is(err, businessflow.ErrRecipientSetConflict))
		})

		t.Run("WithMessage", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)

			result, err := flow.CreateMailing(context.Background(), &dto.CreateMailingRequest{
				OwnerID:     owner.ID,
				MessageUUID: utils.ToPtr(message.UUID.String()),
			}, metadata)
			require.NoError(t, err)

			stored, err := mailingRepo.ByUUID(context.Background(), result.UUID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			require.NotNil(t, stored.Message)
			assert.Equal(t, message.ID, stored.Message.ID)
		})

		t.Run("ForeignMessageRejected", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			other, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(other.ID)
			require.NoError(t, err)

			_, err = flow.CreateMailing(context.Background(), &dto.CreateMailingRequest{
				OwnerID:     owner.ID,
				MessageUUID: utils.ToPtr(message.UUID.String()),
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAccessDenied(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestSnapshotIsolation(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		mailingRepo := repository.NewMailingRepository(testDB.DB)
		recipientRepo := repository.NewRecipientRepository(testDB.DB)
		flow := newMailingFlow(testDB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		owner, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		recipient, err := fixtures.CreateTestRecipient(owner.ID, "volatile@example.com", true)
		require.NoError(t, err)

		result, err := flow.CreateMailing(context.Background(), &dto.CreateMailingRequest{OwnerID: owner.ID}, metadata)
		require.NoError(t, err)
		require.Equal(t, 1, result.RecipientCount)

		// Deactivating the recipient afterwards leaves the stored set intact
		recipient.Active = utils.ToPtr(false)
		require.NoError(t, recipientRepo.Update(context.Background(), *recipient))

		stored, err := mailingRepo.ByUUID(context.Background(), result.UUID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Len(t, stored.Recipients, 1)

		return nil
	})
	require.NoError(t, err)
}

func TestUpdateMailing(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newMailingFlow(testDB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("RenameAndAttachMessage", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			result, err := flow.UpdateMailing(context.Background(), &dto.UpdateMailingRequest{
				UUID:        mailing.UUID.String(),
				CallerID:    owner.ID,
				Name:        utils.ToPtr("Renamed"),
				MessageUUID: utils.ToPtr(message.UUID.String()),
			}, metadata)
			require.NoError(t, err)
			require.NotNil(t, result.Name)
			assert.Equal(t, "Renamed", *result.Name)
			require.NotNil(t, result.MessageUUID)
			assert.Equal(t, message.UUID.String(), *result.MessageUUID)
		})

		t.Run("ForwardStatusChange", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			result, err := flow.UpdateMailing(context.Background(), &dto.UpdateMailingRequest{
				UUID:     mailing.UUID.String(),
				CallerID: owner.ID,
				Status:   utils.ToPtr("running"),
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "running", result.Status)
		})

		t.Run("BackwardStatusChangeRejected", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(&models.Mailing{}).Where("id = ?", mailing.ID).Update("status", models.MailingStatusFinished).Error)

			_, err = flow.UpdateMailing(context.Background(), &dto.UpdateMailingRequest{
				UUID:     mailing.UUID.String(),
				CallerID: owner.ID,
				Status:   utils.ToPtr("created"),
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidStatusChange(err))
		})

		t.Run("NonOwnerDenied", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			stranger, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			_, err = flow.UpdateMailing(context.Background(), &dto.UpdateMailingRequest{
				UUID:     mailing.UUID.String(),
				CallerID: stranger.ID,
				Name:     utils.ToPtr("Hijacked"),
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAccessDenied(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGetAndDeleteMailing(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		mailingRepo := repository.NewMailingRepository(testDB.DB)
		flow := newMailingFlow(testDB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("GetOwnMailing", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			result, err := flow.GetMailing(context.Background(), mailing.UUID.String(), owner.ID)
			require.NoError(t, err)
			assert.Equal(t, mailing.UUID.String(), result.UUID)
		})

		t.Run("GetDeniedForNonOwner", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			stranger, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			_, err = flow.GetMailing(context.Background(), mailing.UUID.String(), stranger.ID)
			require.Error(t, err)
			assert.True(t, businessflow.IsAccessDenied(err))
		})

		t.Run("GetAllowedWithCapability", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			viewer, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			viewer.CanViewAllMailings = utils.ToPtr(true)
			require.NoError(t, testDB.DB.Save(viewer).Error)

			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			result, err := flow.GetMailing(context.Background(), mailing.UUID.String(), viewer.ID)
			require.NoError(t, err)
			assert.Equal(t, mailing.UUID.String(), result.UUID)
		})

		t.Run("DeleteOwnMailing", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			err = flow.DeleteMailing(context.Background(), mailing.UUID.String(), owner.ID, metadata)
			require.NoError(t, err)

			found, err := mailingRepo.ByID(context.Background(), mailing.ID)
			require.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("NotFound", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			_, err = flow.GetMailing(context.Background(), "00000000-0000-0000-0000-000000000000", owner.ID)
			require.Error(t, err)
			assert.True(t, businessflow.IsNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}
