package tests

import (
	"context"
	"testing"

	"github.com/svetlov/mailboard/app/dto"
	"github.com/svetlov/mailboard/app/services"
	businessflow "github.com/svetlov/mailboard/business_flow"
	"github.com/svetlov/mailboard/repository"
	testingutil "github.com/svetlov/mailboard/testing"
	"github.com/svetlov/mailboard/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestTokenService(t *testing.T) services.TokenService {
	t.Helper()

	tokenService, err := services.NewTokenService(utils.AccessTokenTTL, "mailboard-test", "mailboard-test", "test-secret-key-0123456789abcdef")
	require.NoError(t, err)
	return tokenService
}

func TestSignup(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		userRepo := repository.NewUserRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)
		tokenService := newTestTokenService(t)

		userFlow := businessflow.NewUserFlow(userRepo, auditRepo, tokenService, testDB.DB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("SuccessfulSignup", func(t *testing.T) {
			req := &dto.SignupRequest{
				Email:     "New.User@Example.com",
				Password:  "SecurePass123!",
				FirstName: "New",
				LastName:  "User",
			}

			result, err := userFlow.Signup(context.Background(), req, metadata)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.NotZero(t, result.UserID)
			assert.NotEmpty(t, result.AccessToken)
			assert.Equal(t, "Bearer", result.TokenType)
			assert.Equal(t, int(utils.AccessTokenTTL.Seconds()), result.ExpiresIn)

			// Email is stored lowercased
			user, err := userRepo.ByEmail(context.Background(), "new.user@example.com")
			require.NoError(t, err)
			require.NotNil(t, user)
			assert.Equal(t, "new.user@example.com", user.Email)
			assert.True(t, utils.IsTrue(user.IsActive))

			// Password is stored hashed, not in the clear
			assert.NotEqual(t, "SecurePass123!", user.PasswordHash)
			err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("SecurePass123!"))
			assert.NoError(t, err)
		})

		t.Run("DuplicateEmail", func(t *testing.T) {
			req := &dto.SignupRequest{
				Email:    "taken@example.com",
				Password: "SecurePass123!",
			}

			_, err := userFlow.Signup(context.Background(), req, metadata)
			require.NoError(t, err)

			_, err = userFlow.Signup(context.Background(), req, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsEmailTaken(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestLogin(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		userRepo := repository.NewUserRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)
		tokenService := newTestTokenService(t)

		userFlow := businessflow.NewUserFlow(userRepo, auditRepo, tokenService, testDB.DB)
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("SuccessfulLogin", func(t *testing.T) {
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			result, err := userFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: "TestPass123!",
			}, metadata)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.NotEmpty(t, result.AccessToken)
			assert.Equal(t, user.ID, result.User.ID)
			assert.Equal(t, user.Email, result.User.Email)

			// Login timestamp is recorded
			found, err := userRepo.ByID(context.Background(), user.ID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.NotNil(t, found.LastLoginAt)
		})

		t.Run("WrongPassword", func(t *testing.T) {
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			_, err = userFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: "WrongPass123!",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidCredentials(err))
		})

		t.Run("UnknownEmail", func(t *testing.T) {
			_, err := userFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    "ghost@example.com",
				Password: "TestPass123!",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidCredentials(err))
		})

		t.Run("InactiveAccount", func(t *testing.T) {
			user, err := fixtures.CreateTestUser()
			require.NoError(t, err)

			user.IsActive = utils.ToPtr(false)
			require.NoError(t, testDB.DB.Save(user).Error)

			_, err = userFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    user.Email,
				Password: "TestPass123!",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAccountInactive(err))
		})

		return nil
	})
	require.NoError(t, err)
}
