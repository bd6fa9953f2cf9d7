package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/franckalain/caloriecounter/internal/logstore"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// columns is the width of a stored row; longer rows are rejected.
const columns = 6

// SQLiteTable implements logstore.Table on a local SQLite file.
// Rows are kept in insertion order, one cell per column.
type SQLiteTable struct {
	db *sql.DB
}

// NewSQLiteTable creates a new SQLite database connection
func NewSQLiteTable(dbPath string) (*SQLiteTable, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: error opening database: %w", logstore.ErrUnreachable, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: error enabling WAL mode: %w", logstore.ErrUnreachable, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: error setting busy timeout: %w", logstore.ErrUnreachable, err)
	}

	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: error initializing schema: %w", logstore.ErrUnreachable, err)
	}

	return &SQLiteTable{db: db}, nil
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}

	slog.Debug("database schema initialized")
	return nil
}

// Rows returns every stored row, oldest first. Trailing empty cells are dropped.
func (s *SQLiteTable) Rows(ctx context.Context) ([][]string, error) {
	query := `
		SELECT col_a, col_b, col_c, col_d, col_e, col_f
		FROM log_rows
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", logstore.ErrUnreachable, err)
	}
	defer rows.Close()

	var results [][]string
	for rows.Next() {
		var cells [columns]sql.NullString
		if err := rows.Scan(&cells[0], &cells[1], &cells[2], &cells[3], &cells[4], &cells[5]); err != nil {
			return nil, fmt.Errorf("%w: %w", logstore.ErrUnreachable, err)
		}

		row := make([]string, 0, columns)
		for _, c := range cells {
			row = append(row, c.String)
		}
		for len(row) > 0 && row[len(row)-1] == "" {
			row = row[:len(row)-1]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", logstore.ErrUnreachable, err)
	}
	return results, nil
}

// Append inserts one row after all existing rows.
func (s *SQLiteTable) Append(ctx context.Context, row []any) error {
	if len(row) > columns {
		return fmt.Errorf("row has %d cells, table holds %d", len(row), columns)
	}

	var args [columns]any
	for i, v := range row {
		args[i] = fmt.Sprint(v)
	}

	query := `
		INSERT INTO log_rows (col_a, col_b, col_c, col_d, col_e, col_f)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, args[:]...); err != nil {
		return fmt.Errorf("%w: %w", logstore.ErrUnreachable, err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteTable) Close() error {
	return s.db.Close()
}
