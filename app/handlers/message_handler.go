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

// MessageHandlerInterface defines the contract for message handlers
type MessageHandlerInterface interface {
	CreateMessage(c fiber.Ctx) error
	ListMessages(c fiber.Ctx) error
	UpdateMessage(c fiber.Ctx) error
	DeleteMessage(c fiber.Ctx) error
}

// MessageHandler handles message-template HTTP requests
type MessageHandler struct {
	messageFlow businessflow.MessageFlow
	validator   *validator.Validate
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageFlow businessflow.MessageFlow) *MessageHandler {
	return &MessageHandler{
		messageFlow: messageFlow,
		validator:   validator.New(),
	}
}

func (h *MessageHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *MessageHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateMessage handles adding a message template
func (h *MessageHandler) CreateMessage(c fiber.Ctx) error {
	var req dto.CreateMessageRequest
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

	result, err := h.messageFlow.CreateMessage(h.createRequestContext(c, "/api/v1/messages"), &req, metadata)
	if err != nil {
		log.Println("Message creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Message creation failed", "MESSAGE_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Message created successfully", result)
}

// ListMessages handles listing the caller's catalog
func (h *MessageHandler) ListMessages(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.messageFlow.ListMessages(h.createRequestContext(c, "/api/v1/messages"), userID)
	if err != nil {
		log.Println("Message listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list messages", "MESSAGE_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Messages retrieved", result)
}

// UpdateMessage handles editing a message template
func (h *MessageHandler) UpdateMessage(c fiber.Ctx) error {
	messageUUID := c.Params("uuid")
	if messageUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Message UUID is required", "MISSING_MESSAGE_UUID", nil)
	}

	var req dto.UpdateMessageRequest
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
	req.UUID = messageUUID
	req.CallerID = userID

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.messageFlow.UpdateMessage(h.createRequestContext(c, "/api/v1/messages/"+messageUUID), &req, metadata)
	if err != nil {
		return h.mutationError(c, err, "Message update failed", "MESSAGE_UPDATE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Message updated successfully", result)
}

// DeleteMessage handles removing a message template
func (h *MessageHandler) DeleteMessage(c fiber.Ctx) error {
	messageUUID := c.Params("uuid")
	if messageUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Message UUID is required", "MISSING_MESSAGE_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	err := h.messageFlow.DeleteMessage(h.createRequestContext(c, "/api/v1/messages/"+messageUUID), messageUUID, userID, metadata)
	if err != nil {
		return h.mutationError(c, err, "Message deletion failed", "MESSAGE_DELETION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Message deleted successfully", nil)
}

// mutationError maps the shared business error cases of message mutations
func (h *MessageHandler) mutationError(c fiber.Ctx, err error, message, code string) error {
	if businessflow.IsNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Message not found", "MESSAGE_NOT_FOUND", nil)
	}
	if businessflow.IsAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied", "ACCESS_DENIED", nil)
	}

	log.Println(message, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}

// createRequestContext creates a context with timeout and request-scoped values
func (h *MessageHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return requestContext(c, endpoint, 30*time.Second)
}
