package dto

import "time"

// ReportFormat selects the rendered output type.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportType identifies the dataset a report covers.
type ReportType string

const (
	ReportTypeDownloadHistory   ReportType = "download_history"
	ReportTypeModerationSummary ReportType = "moderation_summary"
)

// GenerateReportRequest payload for creating an export.
type GenerateReportRequest struct {
	Type   ReportType   `json:"type" validate:"required,oneof=download_history moderation_summary"`
	Format ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	From   *time.Time   `json:"from,omitempty"`
	To     *time.Time   `json:"to,omitempty"`
}

// ReportResponse describes a generated export and its signed download URL.
type ReportResponse struct {
	ID          string       `json:"id"`
	Type        ReportType   `json:"type"`
	Format      ReportFormat `json:"format"`
	FileName    string       `json:"file_name"`
	SizeBytes   int64        `json:"size_bytes"`
	DownloadURL string       `json:"download_url"`
	ExpiresAt   time.Time    `json:"expires_at"`
	GeneratedAt time.Time    `json:"generated_at"`
}
