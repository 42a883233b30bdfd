package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/internal/repository"
)

// ── export errors ──

var (
	ErrExportNoAttendance = errors.New("event has no attendance to export")
	ErrExportGenerateFail = errors.New("failed to generate spreadsheet")
)

// ExportService renders spreadsheets.
//
// The workbook is returned as a buffer; the handler sets the download
// headers and writes it to the response.
type ExportService interface {
	// ExportTimesheet renders one row per attendance session of the event.
	ExportTimesheet(ctx context.Context, eventID, managerID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewExportService creates the ExportService. Times are rendered in loc.
func NewExportService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) ExportService {
	if loc == nil {
		loc = time.UTC
	}
	return &exportService{repo: repo, loc: loc, logger: logger}
}

var timesheetHeader = []string{
	"Name", "User", "Role", "Clock in", "Clock out",
	"Estimated hours", "Approved hours", "Status", "Auto clock-out",
}

// ═══════════════════════════════════════════════════════════
// ExportTimesheet
// ═══════════════════════════════════════════════════════════
//
// Layout:
//   - row 1: event title and date, merged across the table
//   - row 2: header
//   - one row per session, ordered by roster then clock-in
//   - last row: totals of estimated and approved hours

func (s *exportService) ExportTimesheet(ctx context.Context, eventID, managerID string) (*bytes.Buffer, string, error) {
	// 1. load the event
	event, err := s.repo.Event.GetByID(ctx, eventID)
	if err != nil {
		if isNotFound(err) {
			return nil, "", ErrEventNotFound
		}
		s.logger.Error("failed to load event", zap.String("event_id", eventID), zap.Error(err))
		return nil, "", err
	}
	if event.ManagerID != managerID {
		return nil, "", ErrNotEventManager
	}

	sessions := 0
	for _, rec := range event.AcceptedStaff {
		sessions += len(rec.Attendance)
	}
	if sessions == 0 {
		return nil, "", ErrExportNoAttendance
	}

	// 2. build the workbook
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Timesheet"
	idx, _ := f.NewSheet(sheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	widths := []float64{22, 28, 16, 18, 18, 16, 16, 12, 14}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheet, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	title := event.Title
	if event.Date != "" {
		title += " - " + event.Date
	}
	f.SetCellValue(sheet, "A1", title)
	f.MergeCell(sheet, "A1", cell(colName(len(timesheetHeader)-1), 1))
	f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	for i, h := range timesheetHeader {
		f.SetCellValue(sheet, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheet, "A2", cell(colName(len(timesheetHeader)-1), 2), headerStyle)

	// 3. session rows
	row := 3
	var estimated, approved float64
	for _, rec := range event.AcceptedStaff {
		for _, sess := range rec.Attendance {
			values := []interface{}{
				rec.Name,
				rec.UserKey,
				rec.Role,
				sess.ClockInAt.In(s.loc).Format("2006-01-02 15:04"),
				"-",
				"-",
				"-",
				sess.Status,
				yesNo(sess.AutoClockOut),
			}
			if sess.ClockOutAt != nil {
				values[4] = sess.ClockOutAt.In(s.loc).Format("2006-01-02 15:04")
			}
			if sess.EstimatedHours != nil {
				values[5] = *sess.EstimatedHours
				estimated += *sess.EstimatedHours
			}
			if sess.ApprovedHours != nil {
				values[6] = *sess.ApprovedHours
				approved += *sess.ApprovedHours
			}
			for i, v := range values {
				f.SetCellValue(sheet, cell(colName(i), row), v)
			}
			row++
		}
	}

	f.SetCellValue(sheet, cell("A", row), "Total")
	f.SetCellValue(sheet, cell(colName(5), row), roundTo2(estimated))
	f.SetCellValue(sheet, cell(colName(6), row), roundTo2(approved))
	f.SetCellStyle(sheet, cell("A", row), cell(colName(len(timesheetHeader)-1), row), headerStyle)

	// 4. write
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("failed to write timesheet", zap.String("event_id", eventID), zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("timesheet_%s.xlsx", fileSafe(event.Title))
	return buf, filename, nil
}

// ── helpers ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func fileSafe(name string) string {
	name = slugify(name)
	if name == "" {
		return "event"
	}
	return strings.ReplaceAll(name, "-", "_")
}
