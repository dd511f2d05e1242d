// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/svetlov/mailboard/app/dto"
	businessflow "github.com/svetlov/mailboard/business_flow"
)

// StatsHandlerInterface defines the contract for stats handlers
type StatsHandlerInterface interface {
	Dashboard(c fiber.Ctx) error
	ListAttempts(c fiber.Ctx) error
	ExportAttempts(c fiber.Ctx) error
}

// StatsHandler handles dashboard and attempt ledger HTTP requests
type StatsHandler struct {
	statsFlow businessflow.StatsFlow
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsFlow businessflow.StatsFlow) *StatsHandler {
	return &StatsHandler{statsFlow: statsFlow}
}

func (h *StatsHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *StatsHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Dashboard returns the caller's record counts and dispatch counters
func (h *StatsHandler) Dashboard(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.statsFlow.Dashboard(h.createRequestContext(c, "/api/v1/stats/dashboard"), userID)
	if err != nil {
		log.Println("Dashboard retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve dashboard", "DASHBOARD_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Dashboard retrieved", result)
}

// ListAttempts returns the caller's attempt ledger
func (h *StatsHandler) ListAttempts(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	result, err := h.statsFlow.ListAttempts(h.createRequestContext(c, "/api/v1/attempts"), userID)
	if err != nil {
		log.Println("Attempt listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list attempts", "ATTEMPT_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Attempts retrieved", result)
}

// ExportAttempts streams the caller's attempt ledger as an XLSX attachment
func (h *StatsHandler) ExportAttempts(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	filename, data, err := h.statsFlow.ExportAttemptsXLSX(h.createRequestContext(c, "/api/v1/attempts/export"), userID)
	if err != nil {
		log.Println("Attempt export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export attempts", "ATTEMPT_EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// createRequestContext creates a context with timeout and request-scoped values
func (h *StatsHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return requestContext(c, endpoint, 30*time.Second)
}
