package model

import "time"

type ReportStatus string

const (
	ReportPending    ReportStatus = "pending"
	ReportProcessing ReportStatus = "processing"
	ReportCompleted  ReportStatus = "completed"
	ReportFailed     ReportStatus = "failed"
)

type ReportFormat string

const (
	FormatJSON ReportFormat = "json"
	FormatCSV  ReportFormat = "csv"
	FormatXLSX ReportFormat = "xlsx"
	FormatText ReportFormat = "txt"
	FormatPDF  ReportFormat = "pdf"
)

func (f ReportFormat) Valid() bool {
	switch f {
	case FormatJSON, FormatCSV, FormatXLSX, FormatText, FormatPDF:
		return true
	}
	return false
}

// ReportJob is a queued report request together with its rendered output.
type ReportJob struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Period      string       `json:"period"`
	Format      ReportFormat `json:"format"`
	RequestedBy string       `json:"requested_by"`
	Status      ReportStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	FileName    string       `json:"file_name,omitempty"`
	ContentType string       `json:"content_type,omitempty"`
	Content     []byte       `json:"content,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
