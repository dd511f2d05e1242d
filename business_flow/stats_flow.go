// Package businessflow contains the core business logic and use cases for dashboard and export workflows
package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/svetlov/mailboard/app/dto"
	"github.com/svetlov/mailboard/config"
	"github.com/svetlov/mailboard/models"
	"github.com/svetlov/mailboard/repository"
	"github.com/svetlov/mailboard/utils"
	"github.com/xuri/excelize/v2"
)

// StatsFlow aggregates per-owner counters and exports the attempt ledger
type StatsFlow interface {
	Dashboard(ctx context.Context, callerID uint) (*dto.DashboardResponse, error)
	ListAttempts(ctx context.Context, callerID uint) (*dto.ListAttemptsResponse, error)
	// ExportAttemptsXLSX renders the caller's attempt ledger as a
	// spreadsheet and returns the filename with the file bytes.
	ExportAttemptsXLSX(ctx context.Context, callerID uint) (string, []byte, error)
}

// StatsFlowImpl implements the stats business flow
type StatsFlowImpl struct {
	mailingRepo   repository.MailingRepository
	recipientRepo repository.RecipientRepository
	messageRepo   repository.MessageRepository
	attemptRepo   repository.AttemptRepository
	userRepo      repository.UserRepository
	cacheConfig   *config.CacheConfig
	rc            *redis.Client
}

// NewStatsFlow creates a new stats flow instance
func NewStatsFlow(
	mailingRepo repository.MailingRepository,
	recipientRepo repository.RecipientRepository,
	messageRepo repository.MessageRepository,
	attemptRepo repository.AttemptRepository,
	userRepo repository.UserRepository,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) StatsFlow {
	return &StatsFlowImpl{
		mailingRepo:   mailingRepo,
		recipientRepo: recipientRepo,
		messageRepo:   messageRepo,
		attemptRepo:   attemptRepo,
		userRepo:      userRepo,
		cacheConfig:   cacheConfig,
		rc:            rc,
	}
}

// Dashboard returns the caller's record counts and accumulated dispatch
// counters for the home screen
func (sf *StatsFlowImpl) Dashboard(ctx context.Context, callerID uint) (*dto.DashboardResponse, error) {
	caller, err := getUser(ctx, sf.userRepo, callerID)
	if err != nil {
		return nil, NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	ownerID := caller.ID
	statusRunning := models.MailingStatusRunning

	mailings, err := sf.mailingRepo.Count(ctx, models.MailingFilter{OwnerID: &ownerID})
	if err != nil {
		return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to count mailings", err)
	}

	running, err := sf.mailingRepo.Count(ctx, models.MailingFilter{OwnerID: &ownerID, Status: &statusRunning})
	if err != nil {
		return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to count running mailings", err)
	}

	recipients, err := sf.recipientRepo.Count(ctx, models.RecipientFilter{OwnerID: &ownerID})
	if err != nil {
		return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to count recipients", err)
	}

	messages, err := sf.messageRepo.Count(ctx, models.MessageFilter{OwnerID: &ownerID})
	if err != nil {
		return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to count messages", err)
	}

	attempts, err := sf.attemptRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to load attempts", err)
	}

	var okCount, errorCount, sentCount uint64
	for _, a := range attempts {
		okCount += uint64(a.OkCount)
		errorCount += uint64(a.ErrorCount)
		sentCount += uint64(a.MessagesSentCount)
	}

	return &dto.DashboardResponse{
		Message:           "Dashboard retrieved",
		Mailings:          mailings,
		RunningMailings:   running,
		Recipients:        recipients,
		Messages:          messages,
		OkCount:           okCount,
		ErrorCount:        errorCount,
		MessagesSentCount: sentCount,
	}, nil
}

// ListAttempts lists the caller's attempt ledger, newest first
func (sf *StatsFlowImpl) ListAttempts(ctx context.Context, callerID uint) (*dto.ListAttemptsResponse, error) {
	caller, err := getUser(ctx, sf.userRepo, callerID)
	if err != nil {
		return nil, NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	cacheKey := redisKey(*sf.cacheConfig, fmt.Sprintf(utils.AttemptListCacheKey, caller.ID))

	var cached []dto.AttemptResponse
	if readListCache(ctx, sf.rc, cacheKey, &cached) {
		return &dto.ListAttemptsResponse{
			Message:  "Attempts retrieved from cache",
			Attempts: cached,
		}, nil
	}

	attempts, err := sf.attemptRepo.ListByOwner(ctx, caller.ID)
	if err != nil {
		return nil, NewBusinessError("ATTEMPT_LIST_FAILED", "Failed to list attempts", err)
	}

	resp := &dto.ListAttemptsResponse{
		Message:  "Attempts retrieved",
		Attempts: make([]dto.AttemptResponse, 0, len(attempts)),
	}
	for _, a := range attempts {
		resp.Attempts = append(resp.Attempts, ToAttemptResponse(*a))
	}

	writeListCache(ctx, sf.rc, cacheKey, resp.Attempts, sf.cacheConfig.DefaultTTL)

	return resp, nil
}

// ExportAttemptsXLSX renders one sheet with a header row and one row per
// attempt in the caller's ledger
func (sf *StatsFlowImpl) ExportAttemptsXLSX(ctx context.Context, callerID uint) (string, []byte, error) {
	caller, err := getUser(ctx, sf.userRepo, callerID)
	if err != nil {
		return "", nil, NewBusinessError("CALLER_LOOKUP_FAILED", "Failed to lookup caller", err)
	}

	attempts, err := sf.attemptRepo.ListByOwner(ctx, caller.ID)
	if err != nil {
		return "", nil, NewBusinessError("ATTEMPT_LIST_FAILED", "Failed to list attempts", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "attempts"
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []string{"mailing", "status", "ok_count", "error_count", "messages_sent_count", "transport_response", "attempted_at"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for i, a := range attempts {
		mailingName := ""
		if a.Mailing != nil {
			if a.Mailing.Name != nil && *a.Mailing.Name != "" {
				mailingName = *a.Mailing.Name
			} else {
				mailingName = a.Mailing.UUID.String()
			}
		}

		record := []string{
			mailingName,
			a.Status.String(),
			strconv.FormatUint(uint64(a.OkCount), 10),
			strconv.FormatUint(uint64(a.ErrorCount), 10),
			strconv.FormatUint(uint64(a.MessagesSentCount), 10),
			a.TransportResponse,
			a.AttemptedAt.UTC().Format(time.RFC3339),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("attempts_%s.xlsx", utils.UTCNow().Format("20060102"))
	return filename, buf.Bytes(), nil
}
