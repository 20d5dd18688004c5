package memorystore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buffet/pkg/storage"
)

func TestRowOperations(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	rows, err := s.Rows(ctx, "Stock")
	require.NoError(t, err)
	assert.Empty(t, rows)

	idx, err := s.AppendRow(ctx, "Stock", []string{"Empanada", "4"})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	idx, err = s.AppendRow(ctx, "Stock", []string{"Alfajor", "2"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	require.NoError(t, s.SetRow(ctx, "Stock", 1, []string{"Alfajor", "1"}))
	row, err := s.Row(ctx, "Stock", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alfajor", "1"}, row)

	_, err = s.Row(ctx, "Stock", 2)
	assert.ErrorIs(t, err, storage.ErrRowNotFound)
	assert.ErrorIs(t, s.SetRow(ctx, "Stock", -1, nil), storage.ErrRowNotFound)
}

func TestReturnedRowsAreCopies(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, "Stock", [][]string{{"Empanada", "4"}}))
	rows, err := s.Rows(ctx, "Stock")
	require.NoError(t, err)
	rows[0][1] = "99"

	row, err := s.Row(ctx, "Stock", 0)
	require.NoError(t, err)
	assert.Equal(t, "4", row[1])
}

func TestSnapshotSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.AppendRow(ctx, "Ventas", []string{"1", "(2) Empanada"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	rows, err := reopened.Rows(ctx, "Ventas")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "(2) Empanada"}}, rows)
}

func TestClosedStoreRejectsCalls(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Rows(context.Background(), "Stock")
	assert.ErrorIs(t, err, ErrClosed)
}
