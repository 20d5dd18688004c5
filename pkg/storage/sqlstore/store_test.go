package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buffet/pkg/storage"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "buffet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func exerciseStore(t *testing.T, s *Store) {
	ctx := context.Background()

	rows, err := s.Rows(ctx, "Ventas")
	require.NoError(t, err)
	assert.Empty(t, rows)

	first, err := s.AppendRow(ctx, "Ventas", []string{"1", "(1) Empanada", "$1.500,00", "Espacio 1", "FALSE"})
	require.NoError(t, err)
	second, err := s.AppendRow(ctx, "Ventas", []string{"2", "(2) Alfajor"})
	require.NoError(t, err)
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)

	require.NoError(t, s.SetRow(ctx, "Ventas", 1, []string{"2", "(2) Alfajor", "$1.600,00"}))
	row, err := s.Row(ctx, "Ventas", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "(2) Alfajor", "$1.600,00"}, row)

	_, err = s.Row(ctx, "Ventas", 7)
	assert.ErrorIs(t, err, storage.ErrRowNotFound)
	assert.ErrorIs(t, s.SetRow(ctx, "Ventas", 7, nil), storage.ErrRowNotFound)

	require.NoError(t, s.Replace(ctx, "Stock", [][]string{{"Empanada", "5"}, {"Alfajor", "3"}}))
	rows, err = s.Rows(ctx, "Stock")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Empanada", "5"}, {"Alfajor", "3"}}, rows)

	rows, err = s.Rows(ctx, "Ventas")
	require.NoError(t, err)
	assert.Len(t, rows, 2, "sheets are independent")
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, openSQLite(t))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	s, err := Open(context.Background(), DriverPostgres, dsn)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.db.Exec("DELETE FROM sheet_rows WHERE sheet IN ('Ventas', 'Stock')")
	require.NoError(t, err)

	exerciseStore(t, s)
}

func TestBindNumbersPlaceholders(t *testing.T) {
	s := &Store{driver: DriverPostgres}
	assert.Equal(t, "SELECT $1, $2", s.bind("SELECT ?, ?"))
	s.driver = DriverSQLite
	assert.Equal(t, "SELECT ?, ?", s.bind("SELECT ?, ?"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	assert.Error(t, err)
}
