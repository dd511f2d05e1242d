// Package businessflow contains the core business logic and use cases for authentication workflows
package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/svetlov/mailboard/app/dto"
	"github.com/svetlov/mailboard/app/services"
	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/repository"
	"github.com/svetlov/mailboard/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserFlow handles account registration and authentication
type UserFlow interface {
	Signup(ctx context.Context, request *dto.SignupRequest, metadata *ClientMetadata) (*dto.SignupResponse, error)
	Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
}

// UserFlowImpl implements the user business flow
type UserFlowImpl struct {
	userRepo     repository.UserRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
	db           *gorm.DB
}

// NewUserFlow creates a new user flow instance
func NewUserFlow(
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	db *gorm.DB,
) UserFlow {
	return &UserFlowImpl{
		userRepo:     userRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
		db:           db,
	}
}

// Signup registers a new account and returns an access token
func (uf *UserFlowImpl) Signup(ctx context.Context, request *dto.SignupRequest, metadata *ClientMetadata) (*dto.SignupResponse, error) {
	email := strings.ToLower(strings.TrimSpace(request.Email))

	var user *models.User

	err := repository.WithTransaction(ctx, uf.db, func(txCtx context.Context) error {
		existing, err := uf.userRepo.ByEmail(txCtx, email)
		if err != nil {
			return fmt.Errorf("failed to check existing email: %w", err)
		}
		if existing != nil {
			return ErrEmailTaken
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(request.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		user = &models.User{
			Email:        email,
			FirstName:    strings.TrimSpace(request.FirstName),
			LastName:     strings.TrimSpace(request.LastName),
			PasswordHash: string(hash),
			IsActive:     utils.ToPtr(true),
		}

		return uf.userRepo.Save(txCtx, user)
	})

	if err != nil {
		errMsg := fmt.Sprintf("Signup failed: %s", err.Error())
		_ = createAuditLog(ctx, uf.auditRepo, nil, models.AuditActionSignupCompleted, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("SIGNUP_FAILED", "Signup failed", err)
	}

	token, err := uf.tokenService.GenerateToken(user.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate access token", err)
	}

	msg := fmt.Sprintf("Account created: %s", user.UUID.String())
	_ = createAuditLog(ctx, uf.auditRepo, user, models.AuditActionSignupCompleted, msg, true, nil, metadata)

	return &dto.SignupResponse{
		Message:     "Account created successfully",
		UserID:      user.ID,
		UUID:        user.UUID.String(),
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(utils.AccessTokenTTL.Seconds()),
	}, nil
}

// Login authenticates a user with email and password
func (uf *UserFlowImpl) Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(request.Email))

	user, err := uf.userRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}
	if user == nil {
		// Burn a bcrypt comparison so missing accounts take as long as wrong passwords
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinval"), []byte(request.Password))

		errMsg := fmt.Sprintf("Login failed for %s: unknown email", email)
		_ = createAuditLog(ctx, uf.auditRepo, nil, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", ErrInvalidCredentials)
	}

	if !utils.IsTrue(user.IsActive) {
		errMsg := "Login failed: account is inactive"
		_ = createAuditLog(ctx, uf.auditRepo, user, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("ACCOUNT_INACTIVE", "Account is inactive", ErrAccountInactive)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(request.Password)); err != nil {
		errMsg := "Login failed: incorrect password"
		_ = createAuditLog(ctx, uf.auditRepo, user, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", ErrInvalidCredentials)
	}

	token, err := uf.tokenService.GenerateToken(user.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate access token", err)
	}

	if err := uf.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, NewBusinessError("LOGIN_FAILED", "Failed to record login", err)
	}

	msg := fmt.Sprintf("Login successful: %s", user.UUID.String())
	_ = createAuditLog(ctx, uf.auditRepo, user, models.AuditActionLoginSuccessful, msg, true, nil, metadata)

	return &dto.LoginResponse{
		Message:     "Login successful",
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(utils.AccessTokenTTL.Seconds()),
		User:        ToUserInfo(*user),
	}, nil
}
