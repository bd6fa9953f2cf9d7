// Package sheets implements logstore.Table on the first worksheet of a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/franckalain/caloriecounter/internal/logstore"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Config identifies the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID   string
	CredentialsFile string
}

// Table reads and appends rows on one worksheet.
type Table struct {
	srv           *sheets.Service
	spreadsheetID string
	sheetRange    string
}

// Open authorizes against the Sheets API and resolves the first worksheet.
// Extra options are appended after the credentials option.
func Open(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Table, error) {
	clientOpts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create sheets client: %w", logstore.ErrUnreachable, err)
	}

	ss, err := srv.Spreadsheets.Get(cfg.SpreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
		return nil, fmt.Errorf("%w: spreadsheet %s has no worksheets", logstore.ErrNotFound, cfg.SpreadsheetID)
	}

	return &Table{
		srv:           srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheetRange:    quoteTitle(ss.Sheets[0].Properties.Title),
	}, nil
}

// Rows returns every non-empty row of the worksheet as formatted text.
func (t *Table) Rows(ctx context.Context) ([][]string, error) {
	vr, err := t.srv.Spreadsheets.Values.Get(t.spreadsheetID, t.sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}

	rows := make([][]string, len(vr.Values))
	for i, values := range vr.Values {
		row := make([]string, len(values))
		for j, v := range values {
			row[j] = fmt.Sprint(v)
		}
		rows[i] = row
	}
	return rows, nil
}

// Append adds one row after the last row of the worksheet.
func (t *Table) Append(ctx context.Context, row []any) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err := t.srv.Spreadsheets.Values.Append(t.spreadsheetID, t.sheetRange, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %w", logstore.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", logstore.ErrUnreachable, err)
}

func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
