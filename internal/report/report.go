package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

type Totals struct {
	TotalEmployees int `json:"total_employees"`
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	PendingTasks   int `json:"pending_tasks"`
	OverdueTasks   int `json:"overdue_tasks"`
}

type EmployeeRow struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Pending   int    `json:"pending"`
	Overdue   int    `json:"overdue"`
}

// Summary is the manager report: overall counts plus one row per employee.
type Summary struct {
	Type        string        `json:"type"`
	Period      string        `json:"period"`
	GeneratedBy string        `json:"generated_by"`
	GeneratedAt time.Time     `json:"generated_at"`
	Data        Totals        `json:"data"`
	Employees   []EmployeeRow `json:"employees"`
}

type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// Render encodes s in format. PDF requests fall back to plain text.
func Render(s Summary, format model.ReportFormat) (File, error) {
	var (
		content []byte
		err     error
		ext     string
		mime    string
	)

	switch format {
	case model.FormatJSON:
		content, err = json.MarshalIndent(s, "", "  ")
		ext, mime = "json", "application/json"
	case model.FormatCSV:
		content, err = renderCSV(s)
		ext, mime = "csv", "text/csv"
	case model.FormatXLSX:
		content, err = renderXLSX(s)
		ext, mime = "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case model.FormatText, model.FormatPDF:
		content = renderText(s)
		ext, mime = "txt", "text/plain; charset=utf-8"
	default:
		return File{}, fmt.Errorf("unsupported report format %q", format)
	}
	if err != nil {
		return File{}, err
	}

	return File{
		Name:        FileName(s, ext),
		ContentType: mime,
		Content:     content,
	}, nil
}

func FileName(s Summary, ext string) string {
	kind := s.Type
	if kind == "" {
		kind = "summary"
	}
	return fmt.Sprintf("%s_report_%s.%s", kind, s.GeneratedAt.Format(model.DateLayout), ext)
}

func metricRows(s Summary) [][]string {
	return [][]string{
		{"Total Employees", strconv.Itoa(s.Data.TotalEmployees)},
		{"Total Tasks", strconv.Itoa(s.Data.TotalTasks)},
		{"Completed Tasks", strconv.Itoa(s.Data.CompletedTasks)},
		{"Pending Tasks", strconv.Itoa(s.Data.PendingTasks)},
		{"Overdue Tasks", strconv.Itoa(s.Data.OverdueTasks)},
	}
}

var employeeHeader = []string{"Employee", "Total", "Completed", "Pending", "Overdue"}

func employeeRecord(e EmployeeRow) []string {
	return []string{
		e.Username,
		strconv.Itoa(e.Total),
		strconv.Itoa(e.Completed),
		strconv.Itoa(e.Pending),
		strconv.Itoa(e.Overdue),
	}
}

func renderCSV(s Summary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{
		{"Report Type", s.Type},
		{"Period", s.Period},
		{"Generated By", s.GeneratedBy},
		{"Generated At", s.GeneratedAt.Format(time.RFC3339)},
		{},
		{"Metric", "Value"},
	}
	records = append(records, metricRows(s)...)
	records = append(records, []string{}, employeeHeader)
	for _, e := range s.Employees {
		records = append(records, employeeRecord(e))
	}

	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(s Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet, employeeSheet = "Summary", "Employees"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(employeeSheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	summary := [][]interface{}{
		{"Report Type", s.Type},
		{"Period", s.Period},
		{"Generated By", s.GeneratedBy},
		{"Generated At", s.GeneratedAt.Format(time.RFC3339)},
		{},
		{"Metric", "Value"},
		{"Total Employees", s.Data.TotalEmployees},
		{"Total Tasks", s.Data.TotalTasks},
		{"Completed Tasks", s.Data.CompletedTasks},
		{"Pending Tasks", s.Data.PendingTasks},
		{"Overdue Tasks", s.Data.OverdueTasks},
	}
	for i, row := range summary {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A6", "B6", bold); err != nil {
		return nil, err
	}

	header := make([]interface{}, len(employeeHeader))
	for i, h := range employeeHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(employeeSheet, "A1", &header); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(employeeSheet, "A1", "E1", bold); err != nil {
		return nil, err
	}
	for i, e := range s.Employees {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{e.Username, e.Total, e.Completed, e.Pending, e.Overdue}
		if err := f.SetSheetRow(employeeSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderText(s Summary) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s REPORT\n\n", strings.ToUpper(s.Type))
	fmt.Fprintf(&b, "Period: %s\n", s.Period)
	fmt.Fprintf(&b, "Generated: %s\n", s.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "By: %s\n\nSummary:\n", s.GeneratedBy)
	for _, row := range metricRows(s) {
		fmt.Fprintf(&b, "%s: %s\n", row[0], row[1])
	}
	if len(s.Employees) > 0 {
		b.WriteString("\nEmployees:\n")
		for _, e := range s.Employees {
			fmt.Fprintf(&b, "%s: %d total, %d completed, %d pending, %d overdue\n",
				e.Username, e.Total, e.Completed, e.Pending, e.Overdue)
		}
	}
	return []byte(b.String())
}
