package tests

import (
	"testing"

	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/repository"
	testingutil "github.com/svetlov/mailboard/testing"
	"github.com/svetlov/mailboard/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewUserRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("SaveAndByID", func(t *testing.T) {
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			assert.NotZero(t, user.ID)
			assert.NotEmpty(t, user.UUID)

			found, err := repo.ByID(ctx, user.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, user.Email, found.Email)
		})

		t.Run("ByEmail", func(t *testing.T) {
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			found, err := repo.ByEmail(ctx, user.Email)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, user.ID, found.ID)
		})

		t.Run("ByEmailNotFound", func(t *testing.T) {
			found, err := repo.ByEmail(ctx, "nobody@example.com")
			assert.NoError(t, err)
			assert.Nil(t, found)
		})

		t.Run("UpdateLastLogin", func(t *testing.T) {
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			assert.Nil(t, user.LastLoginAt)

			err = repo.UpdateLastLogin(ctx, user.ID)
			require.NoError(t, err)

			found, err := repo.ByID(ctx, user.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.NotNil(t, found.LastLoginAt)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestRecipientRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewRecipientRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("ByOwnerAndEmail", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			recipient, err := fixtures.CreateTestRecipient(owner.ID, "alice@example.com", true)
			require.NoError(t, err)

			found, err := repo.ByOwnerAndEmail(ctx, owner.ID, "alice@example.com")
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, recipient.ID, found.ID)

			missing, err := repo.ByOwnerAndEmail(ctx, owner.ID, "bob@example.com")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("EmailUniquePerOwnerNotGlobally", func(t *testing.T) {
			first, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			second, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			_, err = fixtures.CreateTestRecipient(first.ID, "shared@example.com", true)
			require.NoError(t, err)

			// Same address under a different owner is allowed
			_, err = fixtures.CreateTestRecipient(second.ID, "shared@example.com", true)
			require.NoError(t, err)

			// Same address under the same owner violates the unique index
			_, err = fixtures.CreateTestRecipient(first.ID, "shared@example.com", true)
			assert.Error(t, err)
		})

		t.Run("ListActiveByOwner", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			_, err = fixtures.CreateTestRecipient(owner.ID, "active1@example.com", true)
			require.NoError(t, err)
			_, err = fixtures.CreateTestRecipient(owner.ID, "active2@example.com", true)
			require.NoError(t, err)
			_, err = fixtures.CreateTestRecipient(owner.ID, "inactive@example.com", false)
			require.NoError(t, err)

			active, err := repo.ListActiveByOwner(ctx, owner.ID)
			require.NoError(t, err)
			assert.Len(t, active, 2)
			for _, r := range active {
				assert.True(t, utils.IsTrue(r.Active))
			}

			all, err := repo.ListByOwner(ctx, owner.ID)
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})

		t.Run("Update", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			recipient, err := fixtures.CreateTestRecipient(owner.ID, "update.me@example.com", true)
			require.NoError(t, err)

			recipient.Active = utils.ToPtr(false)
			recipient.UpdatedAt = utils.UTCNowPtr()
			err = repo.Update(ctx, *recipient)
			require.NoError(t, err)

			found, err := repo.ByID(ctx, recipient.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.False(t, utils.IsTrue(found.Active))
			assert.NotNil(t, found.UpdatedAt)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestMailingRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewMailingRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("ByUUIDPreloadsMessageAndRecipients", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			message, err := fixtures.CreateTestMessage(owner.ID)
			require.NoError(t, err)

			r1, err := fixtures.CreateTestRecipient(owner.ID, "m1@example.com", true)
			require.NoError(t, err)
			r2, err := fixtures.CreateTestRecipient(owner.ID, "m2@example.com", true)
			require.NoError(t, err)

			mailing, err := fixtures.CreateTestMailing(owner.ID, &message.ID, []models.Recipient{*r1, *r2})
			require.NoError(t, err)

			found, err := repo.ByUUID(ctx, mailing.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, found)
			require.NotNil(t, found.Message)
			assert.Equal(t, message.Subject, found.Message.Subject)
			assert.Len(t, found.Recipients, 2)
			assert.Equal(t, models.MailingStatusCreated, found.Status)
		})

		t.Run("ReplaceRecipients", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			r1, err := fixtures.CreateTestRecipient(owner.ID, "old@example.com", true)
			require.NoError(t, err)
			r2, err := fixtures.CreateTestRecipient(owner.ID, "new@example.com", true)
			require.NoError(t, err)

			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, []models.Recipient{*r1})
			require.NoError(t, err)

			err = repo.ReplaceRecipients(ctx, mailing, []*models.Recipient{r2})
			require.NoError(t, err)

			found, err := repo.ByUUID(ctx, mailing.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, found)
			require.Len(t, found.Recipients, 1)
			assert.Equal(t, "new@example.com", found.Recipients[0].Email)
		})

		t.Run("UpdateStatus", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			err = repo.UpdateStatus(ctx, mailing.ID, models.MailingStatusRunning)
			require.NoError(t, err)

			found, err := repo.ByID(ctx, mailing.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, models.MailingStatusRunning, found.Status)
		})

		t.Run("CountByFilter", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			_, err = fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)
			_, err = fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			count, err := repo.Count(ctx, models.MailingFilter{OwnerID: &owner.ID})
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAttemptRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewAttemptRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("RecordOutcomeCreatesSingleRow", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			attempt, err := repo.RecordOutcome(ctx, mailing.ID, owner.ID, models.AttemptStatusSuccess, utils.TransportResponseDelivered, 3)
			require.NoError(t, err)
			require.NotNil(t, attempt)
			assert.Equal(t, models.AttemptStatusSuccess, attempt.Status)
			assert.Equal(t, uint(1), attempt.OkCount)
			assert.Equal(t, uint(0), attempt.ErrorCount)
			assert.Equal(t, uint(3), attempt.MessagesSentCount)
		})

		t.Run("RecordOutcomeAccumulates", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			_, err = repo.RecordOutcome(ctx, mailing.ID, owner.ID, models.AttemptStatusSuccess, utils.TransportResponseDelivered, 2)
			require.NoError(t, err)

			attempt, err := repo.RecordOutcome(ctx, mailing.ID, owner.ID, models.AttemptStatusSuccess, utils.TransportResponseDelivered, 2)
			require.NoError(t, err)
			require.NotNil(t, attempt)
			assert.Equal(t, uint(2), attempt.OkCount)
			assert.Equal(t, uint(0), attempt.ErrorCount)
			assert.Equal(t, uint(4), attempt.MessagesSentCount)

			// Still one row for the mailing
			mailingID := mailing.ID
			count, err := repo.Count(ctx, models.AttemptFilter{MailingID: &mailingID})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("RecordOutcomeCapturesLastFailure", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			_, err = repo.RecordOutcome(ctx, mailing.ID, owner.ID, models.AttemptStatusSuccess, utils.TransportResponseDelivered, 5)
			require.NoError(t, err)

			attempt, err := repo.RecordOutcome(ctx, mailing.ID, owner.ID, models.AttemptStatusFailure, "smtp send failed: connection refused", 0)
			require.NoError(t, err)
			require.NotNil(t, attempt)
			assert.Equal(t, models.AttemptStatusFailure, attempt.Status)
			assert.Equal(t, "smtp send failed: connection refused", attempt.TransportResponse)
			assert.Equal(t, uint(1), attempt.OkCount)
			assert.Equal(t, uint(1), attempt.ErrorCount)
			assert.Equal(t, uint(5), attempt.MessagesSentCount)
		})

		t.Run("RecordOutcomeTracksLastCaller", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			operator, err := fixtures.CreateTestUser()
			require.NoError(t, err)
			mailing, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			_, err = repo.RecordOutcome(ctx, mailing.ID, owner.ID, models.AttemptStatusSuccess, utils.TransportResponseDelivered, 1)
			require.NoError(t, err)

			attempt, err := repo.RecordOutcome(ctx, mailing.ID, operator.ID, models.AttemptStatusSuccess, utils.TransportResponseDelivered, 1)
			require.NoError(t, err)
			require.NotNil(t, attempt)
			assert.Equal(t, operator.ID, attempt.OwnerID)
		})

		t.Run("ListByOwner", func(t *testing.T) {
			owner, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			first, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)
			second, err := fixtures.CreateTestMailing(owner.ID, nil, nil)
			require.NoError(t, err)

			_, err = repo.RecordOutcome(ctx, first.ID, owner.ID, models.AttemptStatusSuccess, utils.TransportResponseDelivered, 1)
			require.NoError(t, err)
			_, err = repo.RecordOutcome(ctx, second.ID, owner.ID, models.AttemptStatusFailure, "timeout", 0)
			require.NoError(t, err)

			attempts, err := repo.ListByOwner(ctx, owner.ID)
			require.NoError(t, err)
			assert.Len(t, attempts, 2)
		})

		return nil
	})
	require.NoError(t, err)
}
