// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/svetlov/mailboard/app/dto"
	"github.com/svetlov/mailboard/app/middleware"
	businessflow "github.com/svetlov/mailboard/business_flow"
)

// MailingHandlerInterface defines the contract for mailing handlers
type MailingHandlerInterface interface {
	CreateMailing(c fiber.Ctx) error
	ListMailings(c fiber.Ctx) error
	GetMailing(c fiber.Ctx) error
	UpdateMailing(c fiber.Ctx) error
	DeleteMailing(c fiber.Ctx) error
	SendMailing(c fiber.Ctx) error
	CreateAndSendMailing(c fiber.Ctx) error
}

// MailingHandler handles mailing-related HTTP requests, including dispatch
type MailingHandler struct {
	mailingFlow  businessflow.MailingFlow
	dispatchFlow businessflow.DispatchFlow
	validator    *validator.Validate
}

// NewMailingHandler creates a new mailing handler
func NewMailingHandler(mailingFlow businessflow.MailingFlow, dispatchFlow businessflow.DispatchFlow) *MailingHandler {
	return &MailingHandler{
		mailingFlow:  mailingFlow,
		dispatchFlow: dispatchFlow,
		validator:    validator.New(),
	}
}

func (h *MailingHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *MailingHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateMailing handles creating a mailing record
func (h *MailingHandler) CreateMailing(c fiber.Ctx) error {
	var req dto.CreateMailingRequest
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

	result, err := h.mailingFlow.CreateMailing(h.createRequestContext(c, "/api/v1/mailings"), &req, metadata)
	if err != nil {
		return h.mutationError(c, err, "Mailing creation failed", "MAILING_CREATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Mailing created successfully", result)
}

// ListMailings handles listing the caller's mailings
func (h *MailingHandler) ListMailings(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.mailingFlow.ListMailings(h.createRequestContext(c, "/api/v1/mailings"), userID)
	if err != nil {
		log.Println("Mailing listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list mailings", "MAILING_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Mailings retrieved", result)
}

// GetMailing handles fetching one mailing with its recipient set
func (h *MailingHandler) GetMailing(c fiber.Ctx) error {
	mailingUUID := c.Params("uuid")
	if mailingUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Mailing UUID is required", "MISSING_MAILING_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.mailingFlow.GetMailing(h.createRequestContext(c, "/api/v1/mailings/"+mailingUUID), mailingUUID, userID)
	if err != nil {
		return h.mutationError(c, err, "Mailing retrieval failed", "MAILING_RETRIEVAL_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Mailing retrieved", result)
}

// UpdateMailing handles editing a mailing
func (h *MailingHandler) UpdateMailing(c fiber.Ctx) error {
	mailingUUID := c.Params("uuid")
	if mailingUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Mailing UUID is required", "MISSING_MAILING_UUID", nil)
	}

	var req dto.UpdateMailingRequest
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
	req.UUID = mailingUUID
	req.CallerID = userID

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.mailingFlow.UpdateMailing(h.createRequestContext(c, "/api/v1/mailings/"+mailingUUID), &req, metadata)
	if err != nil {
		if businessflow.IsInvalidStatusChange(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid mailing status transition", "INVALID_STATUS_CHANGE", nil)
		}
		return h.mutationError(c, err, "Mailing update failed", "MAILING_UPDATE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Mailing updated successfully", result)
}

// DeleteMailing handles removing a mailing
func (h *MailingHandler) DeleteMailing(c fiber.Ctx) error {
	mailingUUID := c.Params("uuid")
	if mailingUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Mailing UUID is required", "MISSING_MAILING_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	err := h.mailingFlow.DeleteMailing(h.createRequestContext(c, "/api/v1/mailings/"+mailingUUID), mailingUUID, userID, metadata)
	if err != nil {
		return h.mutationError(c, err, "Mailing deletion failed", "MAILING_DELETION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Mailing deleted successfully", nil)
}

// SendMailing dispatches an existing mailing. The response is 200 even when
// the transport failed; the outcome lives in the attempt payload.
func (h *MailingHandler) SendMailing(c fiber.Ctx) error {
	mailingUUID := c.Params("uuid")
	if mailingUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Mailing UUID is required", "MISSING_MAILING_UUID", nil)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.SendMailingRequest{UUID: mailingUUID, CallerID: userID}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.dispatchFlow.SendMailing(h.createRequestContext(c, "/api/v1/mailings/"+mailingUUID+"/send"), &req, metadata)
	if err != nil {
		if businessflow.IsMailingNoMessage(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Mailing has no message attached", "MAILING_NO_MESSAGE", nil)
		}
		return h.mutationError(c, err, "Mailing dispatch failed", "MAILING_DISPATCH_FAILED")
	}

	middleware.RecordDispatch(result.Attempt.Status)

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// CreateAndSendMailing creates a mailing and dispatches it in one step
func (h *MailingHandler) CreateAndSendMailing(c fiber.Ctx) error {
	var req dto.CreateAndSendMailingRequest
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

	result, err := h.dispatchFlow.CreateAndSendMailing(h.createRequestContext(c, "/api/v1/mailings/send"), &req, metadata)
	if err != nil {
		return h.mutationError(c, err, "Mailing dispatch failed", "MAILING_DISPATCH_FAILED")
	}

	middleware.RecordDispatch(result.Attempt.Status)

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// mutationError maps the shared business error cases of mailing operations
func (h *MailingHandler) mutationError(c fiber.Ctx, err error, message, code string) error {
	if businessflow.IsNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Not found", "NOT_FOUND", nil)
	}
	if businessflow.IsAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied", "ACCESS_DENIED", nil)
	}
	if businessflow.IsRecipientSetConflict(err) {
		return h.ErrorResponse(c, fiber.StatusConflict, "Recipient set contains entries not owned by the caller", "RECIPIENT_SET_CONFLICT", nil)
	}

	log.Println(message, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, code, nil)
}

// createRequestContext creates a context with timeout and request-scoped values
func (h *MailingHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return requestContext(c, endpoint, 60*time.Second)
}
