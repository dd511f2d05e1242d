// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/svetlov/mailboard/app/dto"
	businessflow "github.com/svetlov/mailboard/business_flow"
)

// RecipientHandlerInterface defines the contract for recipient handlers
type RecipientHandlerInterface interface {
	CreateRecipient(c fiber.Ctx) error
	BulkCreateRecipients(c fiber.Ctx) error
	ListRecipients(c fiber.Ctx) error
	UpdateRecipient(c fiber.Ctx) error
	DeleteRecipient(c fiber.Ctx) error
}

// RecipientHandler handles recipient-related HTTP requests
type RecipientHandler struct {
	recipientFlow businessflow.RecipientFlow
	validator     *validator.Validate
}

// NewRecipientHandler creates a new recipient handler
func NewRecipientHandler(recipientFlow businessflow.RecipientFlow) *RecipientHandler {
	return &RecipientHandler{
		recipientFlow: recipientFlow,
		validator:     validator.New(),
	}
}

func (h *RecipientHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *RecipientHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateRecipient handles adding a single recipient
func (h *RecipientHandler) CreateRecipient(c fiber.Ctx) error {
	var req dto.CreateRecipientRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.OwnerID = userID

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.recipientFlow.CreateRecipient(h.createRequestContext(c, "/api/v1/recipients"), &req, metadata)
	if err != nil {
		if businessflow.IsDuplicateRecipient(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Recipient with this email already exists", "DUPLICATE_RECIPIENT", nil)
		}

		log.Println("Recipient creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Recipient creation failed", "RECIPIENT_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Recipient created successfully", result)
}

// BulkCreateRecipients handles importing a blob of addresses at once
func (h *RecipientHandler) BulkCreateRecipients(c fiber.Ctx) error {
	var req dto.BulkCreateRecipientsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.OwnerID = userID

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.recipientFlow.BulkCreateRecipients(h.createRequestContext(c, "/api/v1/recipients/bulk"), &req, metadata)
	if err != nil {
		if businessflow.IsNoValidEmails(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "No valid email addresses found", "NO_VALID_EMAILS", nil)
		}

		log.Println("Bulk recipient import failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Bulk recipient import failed", "BULK_IMPORT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Recipients imported", result)
}

// ListRecipients handles listing the caller's directory
func (h *RecipientHandler) ListRecipients(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.recipientFlow.ListRecipients(h.createRequestContext(c, "/api/v1/recipients"), userID)
	if err != nil {
		log.Println("Recipient listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list recipients", "RECIPIENT_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Recipients retrieved", result)
}

// UpdateRecipient handles editing a recipient
func (h *RecipientHandler) UpdateRecipient(c fiber.Ctx) error {
	recipientUUID := c.Params("uuid")
	if recipientUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Recipient UUID is required", "MISSING_RECIPIENT_UUID", nil)
	}

	var req dto.UpdateRecipientRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UUID = recipientUUID
	req.CallerID = userID

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.recipientFlow.UpdateRecipient(h.createRequestContext(c, "/api/v1/recipients/"+recipientUUID), &req, metadata)
	if err != nil {
		return h.mutationError(c, err, "Recipient update failed", "RECIPIENT_UPDATE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Recipient updated successfully", result)
}

// DeleteRecipient handles removing a recipient
func (h *RecipientHandler) DeleteRecipient(c fiber.Ctx) error {
	recipientUUID := c.Params("uuid")
	if recipientUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Recipient UUID is required", "MISSING_RECIPIENT_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	err := h.recipientFlow.DeleteRecipient(h.createRequestContext(c, "/api/v1/recipients/"+recipientUUID), recipientUUID, userID, metadata)
	if err != nil {
		return h.mutationError(c, err, "Recipient deletion failed", "RECIPIENT_DELETION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Recipient deleted successfully", nil)
}

// mutationError maps the shared business error cases of recipient mutations
func (h *RecipientHandler) mutationError(c fiber.Ctx, err error, message, code string) error {
	if businessflow.IsNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Recipient not found", "RECIPIENT_NOT_FOUND", nil)
	}
	if businessflow.IsAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied", "ACCESS_DENIED", nil)
	}
	if businessflow.IsDuplicateRecipient(err) {
		return h.ErrorResponse(c, fiber.StatusConflict, "Recipient with this email already exists", "DUPLICATE_RECIPIENT", nil)
	}

	log.Println(message, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}

// createRequestContext creates a context with timeout and request-scoped values
func (h *RecipientHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return requestContext(c, endpoint, 30*time.Second)
}
