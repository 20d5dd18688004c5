// Package memorystore keeps sheets in memory behind a single goroutine and
// mirrors them to a JSON snapshot file so the data survives restarts.
package memorystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"buffet/pkg/storage"
)

// ErrClosed is returned for calls made after Close.
var ErrClosed = errors.New("memory store is closed")

// snapshot is written to disk after each mutation.
type snapshot struct {
	Sheets map[string][][]string `json:"sheets"`
}

// command models every operation executed against the sheets.
type command struct {
	action string
	sheet  string
	index  int
	cells  []string
	rows   [][]string
	reply  chan result
}

// result transfers either rows, a row index, or an error.
type result struct {
	rows  [][]string
	cells []string
	index int
	err   error
}

// Store serializes every read and write through one goroutine, so no mutex guards the sheets.
type Store struct {
	commands        chan command
	closed          chan struct{}
	closeOnce       sync.Once
	wg              sync.WaitGroup
	persistRequests chan snapshot
	sheets          map[string][][]string
	snapshotPath    string
}

// Open loads the snapshot at path, if any, and starts the store goroutines.
// An empty path keeps everything in memory.
func Open(path string) (*Store, error) {
	loaded, err := readSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	s := &Store{
		commands:        make(chan command),
		closed:          make(chan struct{}),
		persistRequests: make(chan snapshot, 1),
		sheets:          make(map[string][][]string),
		snapshotPath:    path,
	}
	if loaded != nil && loaded.Sheets != nil {
		s.sheets = loaded.Sheets
	}
	s.wg.Add(2)
	go s.loop()
	go s.persistenceLoop()
	return s, nil
}

func (s *Store) loop() {
	defer s.wg.Done()
	for {
		select {
		case cmd := <-s.commands:
			cmd.reply <- s.apply(cmd)
		case <-s.closed:
			return
		}
	}
}

func (s *Store) apply(cmd command) result {
	rows := s.sheets[cmd.sheet]
	switch cmd.action {
	case "rows":
		return result{rows: storage.CloneRows(rows)}
	case "row":
		if cmd.index < 0 || cmd.index >= len(rows) {
			return result{err: fmt.Errorf("%s[%d]: %w", cmd.sheet, cmd.index, storage.ErrRowNotFound)}
		}
		return result{cells: storage.CloneRow(rows[cmd.index])}
	case "set":
		if cmd.index < 0 || cmd.index >= len(rows) {
			return result{err: fmt.Errorf("%s[%d]: %w", cmd.sheet, cmd.index, storage.ErrRowNotFound)}
		}
		rows[cmd.index] = storage.CloneRow(cmd.cells)
		s.queuePersist()
		return result{index: cmd.index}
	case "append":
		s.sheets[cmd.sheet] = append(rows, storage.CloneRow(cmd.cells))
		s.queuePersist()
		return result{index: len(rows)}
	case "replace":
		s.sheets[cmd.sheet] = storage.CloneRows(cmd.rows)
		s.queuePersist()
		return result{}
	default:
		return result{err: fmt.Errorf("unsupported action %s", cmd.action)}
	}
}

// persistenceLoop writes snapshots asynchronously so the main loop stays responsive.
func (s *Store) persistenceLoop() {
	defer s.wg.Done()
	for {
		select {
		case snap := <-s.persistRequests:
			_ = writeSnapshot(s.snapshotPath, snap)
		case <-s.closed:
			return
		}
	}
}

// queuePersist hands the latest state to the writer, replacing any snapshot it has not picked up yet.
func (s *Store) queuePersist() {
	if s.snapshotPath == "" {
		return
	}
	snap := s.snapshot()
	select {
	case s.persistRequests <- snap:
	default:
		select {
		case <-s.persistRequests:
		default:
		}
		s.persistRequests <- snap
	}
}

func (s *Store) snapshot() snapshot {
	sheets := make(map[string][][]string, len(s.sheets))
	for name, rows := range s.sheets {
		sheets[name] = storage.CloneRows(rows)
	}
	return snapshot{Sheets: sheets}
}

func (s *Store) do(ctx context.Context, cmd command) (result, error) {
	cmd.reply = make(chan result, 1)
	select {
	case s.commands <- cmd:
	case <-s.closed:
		return result{}, ErrClosed
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	res := <-cmd.reply
	return res, res.err
}

// Rows returns a copy of every data row in sheet.
func (s *Store) Rows(ctx context.Context, sheet string) ([][]string, error) {
	res, err := s.do(ctx, command{action: "rows", sheet: sheet})
	return res.rows, err
}

// Row returns a copy of one data row.
func (s *Store) Row(ctx context.Context, sheet string, index int) ([]string, error) {
	res, err := s.do(ctx, command{action: "row", sheet: sheet, index: index})
	return res.cells, err
}

// SetRow overwrites an existing row.
func (s *Store) SetRow(ctx context.Context, sheet string, index int, cells []string) error {
	_, err := s.do(ctx, command{action: "set", sheet: sheet, index: index, cells: cells})
	return err
}

// AppendRow adds a row to the end of sheet.
func (s *Store) AppendRow(ctx context.Context, sheet string, cells []string) (int, error) {
	res, err := s.do(ctx, command{action: "append", sheet: sheet, cells: cells})
	return res.index, err
}

// Replace swaps the whole content of sheet; used for seeding.
func (s *Store) Replace(ctx context.Context, sheet string, rows [][]string) error {
	_, err := s.do(ctx, command{action: "replace", sheet: sheet, rows: rows})
	return err
}

// Close stops the goroutines and writes a final snapshot.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.wg.Wait()
		if s.snapshotPath != "" {
			err = writeSnapshot(s.snapshotPath, s.snapshot())
		}
	})
	return err
}

func readSnapshot(path string) (*snapshot, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func writeSnapshot(path string, snap snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	temp := path + ".tmp"
	if err := os.WriteFile(temp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(temp, path)
}
