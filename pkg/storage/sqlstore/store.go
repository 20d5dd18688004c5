// Package sqlstore keeps sheets in a single SQL table, one row per sheet row.
// It serves the SQLite (modernc.org/sqlite) and PostgreSQL (pgx) drivers.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"buffet/pkg/storage"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Store implements storage.Store on database/sql.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects with driver and dsn and creates the table when missing.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}
	if driver == DriverSQLite {
		// A single connection avoids SQLITE_BUSY between our own writers.
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxOpenConns(10)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ensure schema: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the sheet_rows table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS sheet_rows (
			sheet TEXT NOT NULL,
			position INTEGER NOT NULL,
			cells TEXT NOT NULL,
			PRIMARY KEY (sheet, position)
		)`)
	return err
}

// bind rewrites ? placeholders as $n for PostgreSQL.
func (s *Store) bind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) Rows(ctx context.Context, sheet string) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, s.bind("SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY position"), sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := [][]string{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		cells, err := decodeCells(data)
		if err != nil {
			return nil, err
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

func (s *Store) Row(ctx context.Context, sheet string, index int) ([]string, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.bind("SELECT cells FROM sheet_rows WHERE sheet = ? AND position = ?"), sheet, index).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s[%d]", storage.ErrRowNotFound, sheet, index)
	}
	if err != nil {
		return nil, err
	}
	return decodeCells(data)
}

func (s *Store) SetRow(ctx context.Context, sheet string, index int, cells []string) error {
	data, err := json.Marshal(cells)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, s.bind("UPDATE sheet_rows SET cells = ? WHERE sheet = ? AND position = ?"), string(data), sheet, index)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s[%d]", storage.ErrRowNotFound, sheet, index)
	}
	return nil
}

func (s *Store) AppendRow(ctx context.Context, sheet string, cells []string) (int, error) {
	data, err := json.Marshal(cells)
	if err != nil {
		return 0, err
	}
	query := `INSERT INTO sheet_rows (sheet, position, cells)
		SELECT CAST(? AS TEXT), COALESCE(MAX(position) + 1, 0), CAST(? AS TEXT) FROM sheet_rows WHERE sheet = ?
		RETURNING position`
	var position int
	if err := s.db.QueryRowContext(ctx, s.bind(query), sheet, string(data), sheet).Scan(&position); err != nil {
		return 0, err
	}
	return position, nil
}

// Replace overwrites a whole sheet in one transaction. It is used for seeding.
func (s *Store) Replace(ctx context.Context, sheet string, rows [][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.bind("DELETE FROM sheet_rows WHERE sheet = ?"), sheet); err != nil {
		return err
	}
	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.bind("INSERT INTO sheet_rows (sheet, position, cells) VALUES (?, ?, ?)"), sheet, i, string(data)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func decodeCells(data string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(data), &cells); err != nil {
		return nil, fmt.Errorf("decode cells: %w", err)
	}
	if cells == nil {
		cells = []string{}
	}
	return cells, nil
}
