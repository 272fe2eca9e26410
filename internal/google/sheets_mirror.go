package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"fieldbook/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	DefaultSheetName = "Reservations"

	lastColumn   = "N"
	statusColumn = "H"
	stampColumn  = "N"
	stampLayout  = "2006-01-02 15:04:05"
)

var ErrRowNotFound = errors.New("reservation row not found")

var headerRow = []interface{}{
	"ID", "Series ID", "Field", "Date", "Start", "End", "User", "Status",
	"Payment", "Type", "Total", "Currency", "Refund", "Updated At",
}

// SheetsMirror keeps one spreadsheet row per reservation, keyed by the
// reservation id in column A.
type SheetsMirror struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
	now           func() time.Time
	logger        *zerolog.Logger
}

func NewSheetsMirror(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger *zerolog.Logger) (*SheetsMirror, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newSheetsMirror(srv, spreadsheetID, sheetName, logger), nil
}

func newSheetsMirror(srv *sheets.Service, spreadsheetID, sheetName string, logger *zerolog.Logger) *SheetsMirror {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SheetsMirror{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rowCache:      make(map[string]int),
		now:           time.Now,
		logger:        logger,
	}
}

// ServiceAccountEmail returns client_email from a credentials file.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

func (s *SheetsMirror) rng(a1 string) string {
	return s.sheetName + "!" + a1
}

func (s *SheetsMirror) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the header row.
func (s *SheetsMirror) EnsureHeader(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rng("A1:"+lastColumn+"1"), &sheets.ValueRange{
		Values: [][]interface{}{headerRow},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// WarmUpCache rebuilds the id -> row index from column A.
func (s *SheetsMirror) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[string]int, len(resp.Values))
	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if id := cellString(row[0]); id != "" {
			cache[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

// RefreshCache re-reads the index every interval until ctx is done.
func (s *SheetsMirror) RefreshCache(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.warmUp(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("sheets cache refresh failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *SheetsMirror) warmUp(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.WarmUpCache(ctx)
}

func (s *SheetsMirror) AppendReservation(ctx context.Context, r *models.Reservation) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.rng("A:A"), &sheets.ValueRange{
		Values: [][]interface{}{s.rowValues(r)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return err
	}
	if resp.Updates != nil {
		if row, ok := firstRow(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(r.ID, row)
		}
	}
	return nil
}

// UpsertReservation rewrites the reservation's row or appends a new one.
func (s *SheetsMirror) UpsertReservation(ctx context.Context, r *models.Reservation) error {
	if r == nil {
		return errors.New("reservation is nil")
	}

	rowIdx, err := s.FindReservationRow(ctx, r.ID)
	if err != nil {
		if errors.Is(err, ErrRowNotFound) {
			return s.AppendReservation(ctx, r)
		}
		return err
	}

	a1 := fmt.Sprintf("A%d:%s%d", rowIdx, lastColumn, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rng(a1), &sheets.ValueRange{
		Values: [][]interface{}{s.rowValues(r)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// UpdateReservationStatus updates the status and stamp cells of a row.
func (s *SheetsMirror) UpdateReservationStatus(ctx context.Context, reservationID, status string) error {
	rowIdx, err := s.FindReservationRow(ctx, reservationID)
	if err != nil {
		return err
	}

	data := []*sheets.ValueRange{
		{Range: s.rng(fmt.Sprintf("%s%d", statusColumn, rowIdx)), Values: [][]interface{}{{status}}},
		{Range: s.rng(fmt.Sprintf("%s%d", stampColumn, rowIdx)), Values: [][]interface{}{{s.now().Format(stampLayout)}}},
	}
	_, err = s.service.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	return err
}

// FindReservationRow returns the 1-based row of reservationID.
func (s *SheetsMirror) FindReservationRow(ctx context.Context, reservationID string) (int, error) {
	if reservationID == "" {
		return 0, errors.New("reservation id is required")
	}
	if row, ok := s.getCachedRow(reservationID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if cellString(row[0]) == reservationID {
			s.setCachedRow(reservationID, i+1)
			return i + 1, nil
		}
	}
	return 0, ErrRowNotFound
}

// ReplaceAll rewrites the whole sheet from reservations.
func (s *SheetsMirror) ReplaceAll(ctx context.Context, reservations []*models.Reservation) error {
	_, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, s.rng("A:"+lastColumn), &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to clear sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(reservations)+1)
	values = append(values, headerRow)
	cache := make(map[string]int, len(reservations))
	for i, r := range reservations {
		values = append(values, s.rowValues(r))
		cache[r.ID] = i + 2
	}

	a1 := fmt.Sprintf("A1:%s%d", lastColumn, len(values))
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rng(a1), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

func (s *SheetsMirror) rowValues(r *models.Reservation) []interface{} {
	var seriesID string
	if r.Membership != nil {
		seriesID = r.Membership.SeriesID
	}
	var refund interface{} = ""
	if r.Cancellation != nil {
		refund = r.Cancellation.RefundAmount
	}
	return []interface{}{
		r.ID,
		seriesID,
		r.FieldID,
		r.Date,
		r.StartTime,
		r.EndTime,
		r.UserID,
		r.Status,
		r.PaymentStatus,
		r.BookingType,
		r.Pricing.Total,
		r.Pricing.Currency,
		refund,
		s.now().Format(stampLayout),
	}
}

func (s *SheetsMirror) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsMirror) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func cellString(v interface{}) string {
	switch c := v.(type) {
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return fmt.Sprint(c)
	}
}

var rowPattern = regexp.MustCompile(`![A-Z]+(\d+)`)

// firstRow extracts the first row number of an A1 range like "Sheet!A10:N10".
func firstRow(a1 string) (int, bool) {
	m := rowPattern.FindStringSubmatch(a1)
	if len(m) != 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
