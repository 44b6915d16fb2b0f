// Package jsonstore persists the monitor state as two pretty-printed JSON
// files, one object per store.
//
// Every mutation re-reads the whole file, applies a single change and
// atomically replaces the file, all under a per-file mutex.
package jsonstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/angeloszaimis/subwatch/internal/model"
	"github.com/angeloszaimis/subwatch/internal/state"
)

const indent = "    "

// Store is a state.Store backed by a result file and a history file.
type Store struct {
	resultPath  string
	historyPath string

	resultMutex  sync.Mutex
	historyMutex sync.Mutex
}

var _ state.Store = (*Store)(nil)

// New returns a store over the given files. Missing files read as empty.
func New(resultPath, historyPath string) *Store {
	return &Store{
		resultPath:  resultPath,
		historyPath: historyPath,
	}
}

// LoadHistory reads the full history file.
func (s *Store) LoadHistory(_ context.Context) (state.History, error) {
	s.historyMutex.Lock()
	defer s.historyMutex.Unlock()

	history := state.History{}
	if err := readJSON(s.historyPath, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// LoadResults reads the full result file.
func (s *Store) LoadResults(_ context.Context) (state.Results, error) {
	s.resultMutex.Lock()
	defer s.resultMutex.Unlock()

	results := state.Results{}
	if err := readJSON(s.resultPath, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// AppendHistory appends status to key's history unless it repeats the last entry.
func (s *Store) AppendHistory(_ context.Context, key string, status model.Status) error {
	s.historyMutex.Lock()
	defer s.historyMutex.Unlock()

	history := state.History{}
	if err := readJSON(s.historyPath, &history); err != nil {
		return err
	}

	updated, appended := state.Append(history[key], status)
	if !appended {
		return nil
	}
	history[key] = updated

	return writeJSON(s.historyPath, history)
}

// SetResult records code as key's latest reachable status.
func (s *Store) SetResult(_ context.Context, key string, code int) error {
	s.resultMutex.Lock()
	defer s.resultMutex.Unlock()

	results := state.Results{}
	if err := readJSON(s.resultPath, &results); err != nil {
		return err
	}
	results[key] = code

	return writeJSON(s.resultPath, results)
}

// Close is a no-op; files are not held open between operations.
func (s *Store) Close() error {
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", indent)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
