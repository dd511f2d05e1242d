package tests

import (
	"context"
	"testing"

	"github.com/svetlov/mailboard/app/dto"
	businessflow "github.com/svetlov/mailboard/business_flow"
	"github.com/svetlov/mailboard/repository"
	testingutil "github.com/svetlov/mailboard/testing"
	"github.com/svetlov/mailboard/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessageFlow(testDB *testingutil.TestDB) businessflow.MessageFlow {
	return businessflow.NewMessageFlow(
		repository.NewMessageRepository(testDB.DB),
		repository.NewUserRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		testDB.DB,
		nil,
		testCacheConfig(),
	)
}

func TestMessageFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		messageRepo := repository.NewMessageRepository(testDB.DB)
		mailingRepo := repository.NewMailingRepository(testDB.DB)
		flow := newMessageFlow(testDB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("Create", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			result, err := flow.CreateMessage(context.Background(), &dto.CreateMessageRequest{
				OwnerID: owner.ID,
				Subject: "Welcome aboard",
				Body:    "Hello and welcome!",
			}, metadata)
			require.NoError(t, err)
			assert.NotEmpty(t, result.UUID)

			stored, err := messageRepo.ByUUID(context.Background(), result.UUID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, "Welcome aboard", stored.Subject)
			assert.Equal(t, owner.ID, stored.OwnerID)
		})

		t.Run("ListOwnerScoped", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			other, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			mine, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)
			_, err = fixtures.CreateTestMessage(other.ID)
			require.NoError(t, err)

			result, err := flow.ListMessages(context.Background(), owner.ID)
			require.NoError(t, err)
			require.Len(t, result.Messages, 1)
			assert.Equal(t, mine.UUID.String(), result.Messages[0].UUID)
		})

		t.Run("ListWidensWithCapability", func(t *testing.T) {
			viewer, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			viewer.CanViewAllMessages = utils.ToPtr(true)
			require.NoError(t, testDB.DB.Save(viewer).Error)

			other, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			foreign, err := fixtures.CreateTestMessage(other.ID)
			require.NoError(t, err)

			result, err := flow.ListMessages(context.Background(), viewer.ID)
			require.NoError(t, err)

			uuids := make([]string, 0, len(result.Messages))
			for _, m := range result.Messages {
				uuids = append(uuids, m.UUID)
			}
			assert.Contains(t, uuids, foreign.UUID.String())
		})

		t.Run("Update", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)

			result, err := flow.UpdateMessage(context.Background(), &dto.UpdateMessageRequest{
				UUID:     message.UUID.String(),
				CallerID: owner.ID,
				Subject:  utils.ToPtr("Edited subject"),
				Body:     utils.ToPtr("Edited body"),
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "Edited subject", result.Subject)
			assert.Equal(t, "Edited body", result.Body)
		})

		t.Run("UpdateDeniedForNonOwner", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			stranger, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)

			_, err = flow.UpdateMessage(context.Background(), &dto.UpdateMessageRequest{
				UUID:     message.UUID.String(),
				CallerID: stranger.ID,
				Subject:  utils.ToPtr("Hijacked"),
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAccessDenied(err))
		})

		t.Run("DeleteDetachesFromMailings", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, &message.ID, nil)
			require.NoError(t, err)

			err = flow.DeleteMessage(context.Background(), message.UUID.String(), owner.ID, metadata)
			require.NoError(t, err)

			found, err := messageRepo.ByID(context.Background(), message.ID)
			require.NoError(t, err)
			assert.Nil(t, found)

			// The mailing survives without a message
			stored, err := mailingRepo.ByID(context.Background(), mailing.ID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Nil(t, stored.MessageID)
		})

		t.Run("DeleteNotFound", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			err = flow.DeleteMessage(context.Background(), "00000000-0000-0000-0000-000000000000", owner.ID, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}
