package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"hostellite/internal/config"
	"hostellite/internal/logging"
	"hostellite/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet = "Bookings"
	tasksSheet    = "Unconfirmed payments"
	dateLayout    = "2006-01-02"
)

var bookingColumns = []string{
	"Booking ID", "Hostel", "Room", "Check-in", "Check-out", "Months",
	"Seats", "Amount", "Status", "Payment status", "Payment method", "Created",
}

var taskColumns = []string{
	"Task ID", "Booking ID", "Payment intent", "Status", "Retries", "Last error", "Created", "Updated",
}

// Exporter writes booking lists to XLSX files under a directory.
type Exporter struct {
	dir    string
	logger *zerolog.Logger
	now    func() time.Time
}

func NewExporter(cfg config.ExportConfig, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		dir:    cfg.Path,
		logger: logging.Component(logger, "export"),
		now:    time.Now,
	}
}

// Bookings writes one row per booking plus a totals row and returns the file path.
func (e *Exporter) Bookings(bookings []models.Booking, title string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", bookingsSheet); err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}

	_ = f.SetCellValue(bookingsSheet, "A1", fmt.Sprintf("%s (exported %s)", title, e.now().Format("2006-01-02 15:04")))
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(bookingsSheet, "A1", "A1", titleStyle)
	lastCol, _ := excelize.ColumnNumberToName(len(bookingColumns))
	_ = f.MergeCell(bookingsSheet, "A1", lastCol+"1")

	writeHeader(f, bookingsSheet, bookingColumns)

	styles := statusStyles(f)
	var total float64
	row := 3
	for _, b := range bookings {
		values := []interface{}{
			b.ID,
			hostelLabel(b),
			roomLabel(b),
			formatDate(b.CheckInDate),
			formatDate(b.CheckOutDate),
			models.MonthsBetween(b.CheckInDate, b.CheckOutDate),
			b.SeatsBooked,
			b.Amount,
			string(b.Status),
			string(b.PaymentStatus),
			string(b.PaymentMethod),
			formatDate(b.CreatedAt),
		}
		writeRow(f, bookingsSheet, row, values)

		if style, ok := styles[b.Status]; ok {
			cell, _ := excelize.CoordinatesToCellName(9, row)
			_ = f.SetCellStyle(bookingsSheet, cell, cell, style)
		}
		if b.Status != models.StatusCancelled && b.Status != models.StatusRejected {
			total += b.Amount
		}
		row++
	}

	_ = f.SetCellValue(bookingsSheet, "G"+strconv.Itoa(row), "Total")
	_ = f.SetCellValue(bookingsSheet, "H"+strconv.Itoa(row), total)
	boldStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellStyle(bookingsSheet, "G"+strconv.Itoa(row), "H"+strconv.Itoa(row), boldStyle)

	_ = f.SetColWidth(bookingsSheet, "A", "A", 28)
	_ = f.SetColWidth(bookingsSheet, "B", "C", 22)
	_ = f.SetColWidth(bookingsSheet, "D", "L", 16)

	return e.save(f, "bookings", len(bookings))
}

// ConfirmationTasks exports ledger rows that need manual resolution.
func (e *Exporter) ConfirmationTasks(tasks []models.ConfirmationTask) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", tasksSheet); err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	_ = f.SetCellValue(tasksSheet, "A1", "Payments captured without a confirmed booking")
	writeHeader(f, tasksSheet, taskColumns)

	row := 3
	for _, t := range tasks {
		writeRow(f, tasksSheet, row, []interface{}{
			t.ID, t.BookingID, t.PaymentIntentID, string(t.Status), t.RetryCount, t.LastError,
			t.CreatedAt.Format(time.RFC3339), t.UpdatedAt.Format(time.RFC3339),
		})
		row++
	}
	_ = f.SetColWidth(tasksSheet, "A", "H", 22)
	_ = f.SetColWidth(tasksSheet, "F", "F", 50)

	return e.save(f, "unconfirmed_payments", len(tasks))
}

func (e *Exporter) save(f *excelize.File, prefix string, rows int) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	fileName := fmt.Sprintf("%s_%s.xlsx", prefix, e.now().Format("20060102_150405"))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("rows", rows).Msg("Excel file created")
	return filePath, nil
}

func writeHeader(f *excelize.File, sheet string, columns []string) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, name := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheet, cell, name)
		_ = f.SetCellStyle(sheet, cell, cell, style)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func statusStyles(f *excelize.File) map[models.BookingStatus]int {
	colors := map[models.BookingStatus]string{
		models.StatusConfirmed: "#C6EFCE",
		models.StatusCompleted: "#C6EFCE",
		models.StatusPending:   "#FFEB9C",
		models.StatusCancelled: "#FFC7CE",
		models.StatusRejected:  "#FFC7CE",
	}
	styles := make(map[models.BookingStatus]int, len(colors))
	for status, color := range colors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err == nil {
			styles[status] = id
		}
	}
	return styles
}

func hostelLabel(b models.Booking) string {
	if b.Hostel != nil && b.Hostel.Name != "" {
		return b.Hostel.Name
	}
	return b.HostelRef()
}

func roomLabel(b models.Booking) string {
	if b.Room != nil && b.Room.RoomNumber != "" {
		return b.Room.RoomNumber
	}
	return b.RoomRef()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
