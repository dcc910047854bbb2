package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	logx "checkinbot/pkg/logx"
)

// Sheets reads the roster from a Google spreadsheet.
//
// Layout: one header row, then columns A..D = name, type, last contact date,
// target frequency in days. Column E is read but unused (notes).
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	sheet         string
	log           logx.Logger
}

func openSheets(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("roster.sheets.spreadsheet_id is required")
	}
	if strings.TrimSpace(cfg.CredentialsFile) == "" {
		return nil, errors.New("roster.sheets.credentials_file is required")
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return NewSheets(svc, cfg.SpreadsheetID, cfg.Sheet, log), nil
}

// NewSheets wraps an existing Sheets service. sheet defaults to "Sheet1".
func NewSheets(svc *sheets.Service, spreadsheetID, sheet string, log logx.Logger) *Sheets {
	if strings.TrimSpace(sheet) == "" {
		sheet = "Sheet1"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sheets{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet, log: log}
}

func (s *Sheets) readRange(w Window) string {
	return fmt.Sprintf("%s!A%d:E%d", quoteSheet(s.sheet), w.Start, w.End)
}

func (s *Sheets) dateCell(h Handle) string {
	return fmt.Sprintf("%s!C%d", quoteSheet(s.sheet), int(h))
}

func (s *Sheets) ListContacts(ctx context.Context, w Window) ([]Row, error) {
	rng := s.readRange(w)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).
		MajorDimension("ROWS").
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("sheets get %s: %w", rng, err)
	}
	out := make([]Row, 0, len(resp.Values))
	for i, vals := range resp.Values {
		// The API drops trailing empty rows/cells; interior blank rows come back empty.
		out = append(out, Row{
			Handle:         Handle(w.Start + i),
			Name:           cell(vals, 0),
			Type:           cell(vals, 1),
			LastContactRaw: cell(vals, 2),
			FrequencyRaw:   cell(vals, 3),
		})
	}
	s.log.Debug("roster read", logx.String("range", rng), logx.Int("rows", len(out)))
	return out, nil
}

// UpdateLastContactDate writes date with the RAW input option so the sheet
// stores the text as given instead of reinterpreting it as a date serial.
func (s *Sheets) UpdateLastContactDate(ctx context.Context, h Handle, date string) error {
	if h < 1 {
		return ErrRowNotFound
	}
	rng := s.dateCell(h)
	vr := &sheets.ValueRange{
		Range:          rng,
		MajorDimension: "ROWS",
		Values:         [][]interface{}{{date}},
	}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets update %s: %w", rng, err)
	}
	return nil
}

func (s *Sheets) Close() error { return nil }

// quoteSheet quotes sheet names that A1 notation would otherwise misparse.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!:") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}
