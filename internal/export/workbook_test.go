package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type mockLister struct {
	mock.Mock
}

func (m *mockLister) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]*models.Reservation, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reservation), args.Error(1)
}

func sample() []*models.Reservation {
	return []*models.Reservation{
		{
			ID: "r1", FieldID: "field-1", UserID: "user-1", Date: "2026-03-09", StartTime: "10:00", EndTime: "12:00",
			Status: models.StatusConfirmed, PaymentStatus: models.PaymentPaid, BookingType: models.BookingTypeMembership,
			Pricing:    models.Pricing{Total: 20000, Currency: "LAK"},
			Membership: &models.MembershipDetails{SeriesID: "series-1"},
		},
		{
			ID: "r2", FieldID: "field-1", UserID: "user-2", Date: "2026-03-10", StartTime: "08:00", EndTime: "09:30",
			Status: models.StatusCancelled, PaymentStatus: models.PaymentPaid, BookingType: models.BookingTypeRegular,
			Pricing:      models.Pricing{Total: 15000, Currency: "LAK"},
			Cancellation: &models.CancellationRecord{RefundAmount: 7500, RefundStatus: models.RefundPending},
		},
	}
}

func TestBuildWorkbook(t *testing.T) {
	f, err := BuildWorkbook("field-1", "2026-03-01", "2026-03-31", sample())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	title, err := f.GetCellValue(SheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Field field-1: 2026-03-01 - 2026-03-31", title)

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 4)
	assert.Equal(t, columns, rows[1])
	assert.Equal(t, "2026-03-09", rows[2][0])
	assert.Equal(t, "series-1", rows[2][9])
	assert.Equal(t, models.StatusCancelled, rows[3][3])
	assert.Equal(t, "7500", rows[3][10])

	total, err := f.GetCellValue(SheetName, "H6")
	require.NoError(t, err)
	assert.Equal(t, "20000", total, "cancelled reservations are not summed")
}

func TestExporterSaveToFile(t *testing.T) {
	lister := &mockLister{}
	lister.On("ListReservations", mock.Anything, domain.ReservationFilter{
		FieldID: "field-1", FromDate: "2026-03-01", ToDate: "2026-03-31",
	}).Return(sample(), nil).Once()

	dir := filepath.Join(t.TempDir(), "exports")
	e := NewExporter(lister, dir, nil)

	path, err := e.SaveToFile(context.Background(), "field-1", "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reservations_field-1_2026-03-01_to_2026-03-31.xlsx"), path)

	_, err = os.Stat(path)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Equal(t, "user-2", rows[3][6])

	lister.AssertExpectations(t)
}

func TestExporterRejectsInvertedRange(t *testing.T) {
	e := NewExporter(&mockLister{}, t.TempDir(), nil)
	_, err := e.Workbook(context.Background(), "field-1", "2026-03-31", "2026-03-01")
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)
}
