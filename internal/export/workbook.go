package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Reservations"

var columns = []string{
	"Date", "Start", "End", "Status", "Payment", "Type", "Customer", "Total", "Currency", "Series", "Refund",
}

type ReservationLister interface {
	ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]*models.Reservation, error)
}

// Exporter builds reservation workbooks for a field and date range.
type Exporter struct {
	source ReservationLister
	dir    string
	logger *zerolog.Logger
}

func NewExporter(source ReservationLister, dir string, logger *zerolog.Logger) *Exporter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Exporter{source: source, dir: dir, logger: logger}
}

// Workbook loads reservations of fieldID dated from..to inclusive.
func (e *Exporter) Workbook(ctx context.Context, fieldID, from, to string) (*excelize.File, error) {
	if from > to {
		return nil, fmt.Errorf("%w: %s is after %s", domain.ErrInvalidTimeRange, from, to)
	}
	reservations, err := e.source.ListReservations(ctx, domain.ReservationFilter{
		FieldID:  fieldID,
		FromDate: from,
		ToDate:   to,
	})
	if err != nil {
		return nil, fmt.Errorf("error getting reservations: %w", err)
	}
	return BuildWorkbook(fieldID, from, to, reservations)
}

// SaveToFile writes the workbook into the export directory and returns its path.
func (e *Exporter) SaveToFile(ctx context.Context, fieldID, from, to string) (string, error) {
	// Создаем папку для экспорта, если не существует
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := e.Workbook(ctx, fieldID, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(e.dir, FileName(fieldID, from, to))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	e.logger.Info().Str("path", path).Str("field_id", fieldID).Msg("Reservations exported")
	return path, nil
}

func FileName(fieldID, from, to string) string {
	return fmt.Sprintf("reservations_%s_%s_to_%s.xlsx", fieldID, from, to)
}

// BuildWorkbook lays out one row per reservation under a period title.
func BuildWorkbook(fieldID, from, to string, reservations []*models.Reservation) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	lastCol, _ := excelize.ColumnNumberToName(len(columns))

	_ = f.SetCellValue(SheetName, "A1", fmt.Sprintf("Field %s: %s - %s", fieldID, from, to))
	_ = f.MergeCell(SheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(SheetName, "A1", "A1", titleStyle)

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A2", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("error writing header: %w", err)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	_ = f.SetCellStyle(SheetName, "A2", lastCol+"2", headerStyle)

	var activeTotal float64
	row := 3
	for _, r := range reservations {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := rowValues(r)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("error writing row %d: %w", row, err)
		}
		if r.IsActive() || r.Status == models.StatusCompleted {
			activeTotal += r.Pricing.Total
		}
		row++
	}

	totalLabel, _ := excelize.CoordinatesToCellName(7, row+1)
	totalCell, _ := excelize.CoordinatesToCellName(8, row+1)
	_ = f.SetCellValue(SheetName, totalLabel, "Total")
	_ = f.SetCellValue(SheetName, totalCell, activeTotal)

	_ = f.SetColWidth(SheetName, "A", "A", 12)
	_ = f.SetColWidth(SheetName, "B", "F", 11)
	_ = f.SetColWidth(SheetName, "G", "G", 20)
	_ = f.SetColWidth(SheetName, "H", "I", 12)
	_ = f.SetColWidth(SheetName, "J", "J", 38)
	return f, nil
}

func rowValues(r *models.Reservation) []interface{} {
	var series string
	if r.Membership != nil {
		series = r.Membership.SeriesID
	}
	var refund interface{}
	if r.Cancellation != nil {
		refund = r.Cancellation.RefundAmount
	}
	return []interface{}{
		r.Date, r.StartTime, r.EndTime, r.Status, r.PaymentStatus, r.BookingType,
		r.UserID, r.Pricing.Total, r.Pricing.Currency, series, refund,
	}
}
