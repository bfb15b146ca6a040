package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/osei-dev/pastq-api/internal/dto"
	"github.com/osei-dev/pastq-api/internal/models"
	appErrors "github.com/osei-dev/pastq-api/pkg/errors"
	"github.com/osei-dev/pastq-api/pkg/export"
)

type reportSource interface {
	ListDownloadHistory(ctx context.Context, filter models.DownloadHistoryFilter) ([]models.DownloadHistory, int, error)
	CountByStatus(ctx context.Context) (map[models.SubmissionStatus]int, error)
}

type reportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (io.ReadCloser, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type reportURLSigner interface {
	Generate(reportID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (reportID, relPath string, expiresAt time.Time, err error)
}

// ReportService renders download-history and moderation exports and hands out
// short-lived signed URLs for fetching them.
type ReportService struct {
	source  reportSource
	storage reportFileStorage
	signer  reportURLSigner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	audit   auditLogger
	logger  *zap.Logger
	keep    time.Duration
}

// NewReportService constructs the service.
func NewReportService(source reportSource, storage reportFileStorage, signer reportURLSigner, audit auditLogger, keep time.Duration, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keep <= 0 {
		keep = 24 * time.Hour
	}
	return &ReportService{
		source:  source,
		storage: storage,
		signer:  signer,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		audit:   audit,
		logger:  logger,
		keep:    keep,
	}
}

// Generate builds the requested export and returns its signed download URL.
func (s *ReportService) Generate(ctx context.Context, req dto.GenerateReportRequest, actor *models.JWTClaims) (*dto.ReportResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.CanModerate() {
		return nil, appErrors.ErrForbidden
	}

	var (
		dataset export.Dataset
		title   string
		err     error
	)
	switch req.Type {
	case dto.ReportTypeDownloadHistory:
		dataset, err = s.downloadHistoryDataset(ctx, req.From, req.To)
		title = "Download History"
	case dto.ReportTypeModerationSummary:
		dataset, err = s.moderationSummaryDataset(ctx)
		title = "Moderation Summary"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report type")
	}
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch req.Format {
	case dto.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case dto.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	reportID := uuid.NewString()
	now := time.Now().UTC()
	fileName := fmt.Sprintf("%s_%s.%s", req.Type, now.Format("20060102_150405"), req.Format)
	relPath := fmt.Sprintf("reports/%s/%s", reportID, fileName)
	if _, err := s.storage.Save(relPath, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(reportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign report url")
	}

	if s.audit != nil {
		log := &models.AuditLog{
			UserID:   &actor.UserID,
			Action:   models.AuditActionReportGenerate,
			Entity:   "report",
			EntityID: reportID,
			Detail:   string(req.Type),
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to persist audit log", zap.Error(err))
		}
	}

	return &dto.ReportResponse{
		ID:          reportID,
		Type:        req.Type,
		Format:      req.Format,
		FileName:    fileName,
		SizeBytes:   int64(len(payload)),
		DownloadURL: "/api/v1/reports/download?token=" + token,
		ExpiresAt:   expiresAt,
		GeneratedAt: now,
	}, nil
}

// Fetch validates a signed token and returns a reader over the stored report.
func (s *ReportService) Fetch(token string) (io.ReadCloser, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired report token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report no longer available")
	}
	return file, relPath, nil
}

// Cleanup removes reports past their retention window.
func (s *ReportService) Cleanup() {
	deleted, err := s.storage.CleanupOlderThan(s.keep)
	if err != nil {
		s.logger.Warn("report cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("expired reports removed", zap.Int("count", len(deleted)))
	}
}

func (s *ReportService) downloadHistoryDataset(ctx context.Context, from, to *time.Time) (export.Dataset, error) {
	filter := models.DownloadHistoryFilter{From: from, To: to, PageSize: 200}
	headers := []string{"downloaded_at", "user_id", "past_question_id", "ip_address"}
	rows := make([]map[string]string, 0)

	for page := 1; ; page++ {
		filter.Page = page
		history, total, err := s.source.ListDownloadHistory(ctx, filter)
		if err != nil {
			return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect download history")
		}
		for _, entry := range history {
			rows = append(rows, map[string]string{
				"downloaded_at":    entry.DownloadedAt.Format(time.RFC3339),
				"user_id":          entry.UserID,
				"past_question_id": entry.PastQuestionID,
				"ip_address":       entry.IPAddress,
			})
		}
		if len(rows) >= total || len(history) == 0 {
			break
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}, nil
}

func (s *ReportService) moderationSummaryDataset(ctx context.Context) (export.Dataset, error) {
	counts, err := s.source.CountByStatus(ctx)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect moderation summary")
	}
	headers := []string{"status", "total"}
	rows := make([]map[string]string, 0, len(counts))
	for _, status := range []models.SubmissionStatus{models.StatusPending, models.StatusApproved, models.StatusRejected} {
		rows = append(rows, map[string]string{
			"status": string(status),
			"total":  strconv.Itoa(counts[status]),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}, nil
}
