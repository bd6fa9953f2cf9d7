// Package logstore keeps the food log in a header-checked, append-only table.
package logstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/franckalain/caloriecounter/internal/models"
)

var (
	// ErrUnreachable covers network and authorization failures.
	ErrUnreachable = errors.New("log store unreachable")
	// ErrNotFound means the configured table does not exist.
	ErrNotFound = errors.New("log store not found")
	// ErrHeaderMismatch means the first row is not models.HeaderSchema.
	ErrHeaderMismatch = errors.New("log store header mismatch")
)

// Table is a row-oriented backend. Rows returns every row including the header,
// oldest first. Backends map their failures onto ErrUnreachable and ErrNotFound.
type Table interface {
	Rows(ctx context.Context) ([][]string, error)
	Append(ctx context.Context, row []any) error
}

// Store appends nutrition records to a Table and reads them back by date.
type Store struct {
	table  Table
	now    func() time.Time
	logger *slog.Logger
}

func New(table Table, logger *slog.Logger) *Store {
	return &Store{table: table, now: time.Now, logger: logger}
}

// EnsureHeader writes the header into an empty table and verifies it otherwise.
func (s *Store) EnsureHeader(ctx context.Context) error {
	rows, err := s.table.Rows(ctx)
	if err != nil {
		return err
	}
	return s.ensureHeader(ctx, rows)
}

func (s *Store) ensureHeader(ctx context.Context, rows [][]string) error {
	if isEmpty(rows) {
		s.logger.InfoContext(ctx, "log store is empty, writing header row")
		if err := s.table.Append(ctx, toCells(models.HeaderSchema)); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		return nil
	}
	return checkHeader(rows[0])
}

// Ping reads the table once to confirm it is reachable and well-formed.
func (s *Store) Ping(ctx context.Context) error {
	rows, err := s.table.Rows(ctx)
	if err != nil {
		return err
	}
	if isEmpty(rows) {
		return nil
	}
	return checkHeader(rows[0])
}

// Append writes one row for rec, stamped with the current local time.
// Nil fields are written as models.MissingValue.
func (s *Store) Append(ctx context.Context, rec *models.NutritionRecord) error {
	if err := s.EnsureHeader(ctx); err != nil {
		return err
	}

	row := []any{
		s.now().Format(models.TimestampLayout),
		cellOrMissing(rec.FoodItem),
		cellOrMissing(rec.Calories),
		cellOrMissing(rec.Protein),
		cellOrMissing(rec.Carbs),
		cellOrMissing(rec.Fat),
	}
	s.logger.DebugContext(ctx, "appending row", "row", row)
	if err := s.table.Append(ctx, row); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}

// ReadRange returns the rows logged on dates within [start, end], in store order.
// The header is checked but never written. Rows without a parseable date are
// skipped with a warning.
func (s *Store) ReadRange(ctx context.Context, start, end time.Time) ([]models.LoggedRow, error) {
	rows, err := s.table.Rows(ctx)
	if err != nil {
		return nil, err
	}
	if isEmpty(rows) {
		return nil, nil
	}
	if err := checkHeader(rows[0]); err != nil {
		return nil, err
	}

	rng := models.DateRange{Start: start, End: end}
	loc := start.Location()
	var result []models.LoggedRow
	for i, cells := range rows[1:] {
		cells = padRow(cells, len(models.HeaderSchema))
		loggedAt, err := time.ParseInLocation(models.TimestampLayout, strings.TrimSpace(cells[0]), loc)
		if err != nil {
			// Row numbers are 1-based and include the header.
			s.logger.WarnContext(ctx, "skipping row with unparseable date", "row", i+2, "value", cells[0])
			continue
		}
		if !rng.Contains(loggedAt) {
			continue
		}
		result = append(result, models.LoggedRow{
			LoggedAt: loggedAt,
			FoodItem: cells[1],
			Calories: cells[2],
			Protein:  cells[3],
			Carbs:    cells[4],
			Fat:      cells[5],
		})
	}
	return result, nil
}

func isEmpty(rows [][]string) bool {
	for _, row := range rows {
		for _, cell := range row {
			if cell != "" {
				return false
			}
		}
	}
	return true
}

func checkHeader(row []string) error {
	if len(row) != len(models.HeaderSchema) {
		return fmt.Errorf("%w: got %q", ErrHeaderMismatch, row)
	}
	for i, name := range models.HeaderSchema {
		if row[i] != name {
			return fmt.Errorf("%w: got %q", ErrHeaderMismatch, row)
		}
	}
	return nil
}

func padRow(row []string, n int) []string {
	if len(row) >= n {
		return row
	}
	padded := make([]string, n)
	copy(padded, row)
	return padded
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func cellOrMissing[T any](v *T) any {
	if v == nil {
		return models.MissingValue
	}
	return *v
}
