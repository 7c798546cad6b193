// internal/state/file.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
)

// fileState is the on-disk JSON layout.
type fileState struct {
	Cursors  map[string]string `json:"cursors"`
	Counters map[string]int64  `json:"counters"`
}

// FileStore keeps cursors in a single JSON file. Writes go through a temp
// file and rename so a crash mid-write leaves the previous state intact.
type FileStore struct {
	path     string
	lookback time.Duration
	logger   logger.Logger

	mu sync.Mutex
}

func NewFileStore(path string, lookback time.Duration, log logger.Logger) *FileStore {
	return &FileStore{
		path:     path,
		lookback: lookback,
		logger:   log,
	}
}

// LastPoll returns the stored cursor for kind, or now minus the lookback when
// the file or the cursor is missing or unreadable.
func (s *FileStore) LastPoll(ctx context.Context, kind Kind) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read()
	raw, ok := st.Cursors[cursorKey(kind)]
	if !ok || raw == "" {
		return s.fallback(kind, nil), nil
	}

	t, err := parseCursor(raw)
	if err != nil {
		return s.fallback(kind, err), nil
	}
	return t, nil
}

// SetLastPoll persists the cursor for kind.
func (s *FileStore) SetLastPoll(ctx context.Context, kind Kind, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read()
	st.Cursors[cursorKey(kind)] = formatCursor(t)
	return s.write(st)
}

// Counters returns a copy of the lifetime counters.
func (s *FileStore) Counters(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read()
	out := make(map[string]int64, len(st.Counters))
	for k, v := range st.Counters {
		out[k] = v
	}
	return out, nil
}

// IncrementCounters adds the deltas to the lifetime counters.
func (s *FileStore) IncrementCounters(ctx context.Context, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read()
	for k, v := range deltas {
		st.Counters[k] += v
	}
	return s.write(st)
}

// read loads the state file, returning an empty state on any failure. A
// corrupt file is logged and treated as missing.
func (s *FileStore) read() *fileState {
	st := &fileState{
		Cursors:  map[string]string{},
		Counters: map[string]int64{},
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.WithError(err).Warn("failed to read state file", map[string]interface{}{
				"path": s.path,
			})
		}
		return st
	}

	if err := json.Unmarshal(data, st); err != nil {
		s.logger.WithError(err).Warn("state file is corrupt, starting fresh", map[string]interface{}{
			"path": s.path,
		})
		return &fileState{
			Cursors:  map[string]string{},
			Counters: map[string]int64{},
		}
	}

	if st.Cursors == nil {
		st.Cursors = map[string]string{}
	}
	if st.Counters == nil {
		st.Counters = map[string]int64{}
	}
	return st
}

func (s *FileStore) write(st *fileState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.NewStateWriteError(s.path, fmt.Errorf("failed to marshal state: %w", err))
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil && filepath.Dir(s.path) != "." {
		return errors.NewStateWriteError(s.path, fmt.Errorf("failed to create state directory: %w", err))
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.NewStateWriteError(s.path, fmt.Errorf("failed to write state file: %w", err))
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.NewStateWriteError(s.path, fmt.Errorf("failed to replace state file: %w", err))
	}
	return nil
}

func (s *FileStore) fallback(kind Kind, cause error) time.Time {
	fields := map[string]interface{}{
		"record_kind": string(kind),
		"lookback":    s.lookback.String(),
	}
	log := s.logger
	if cause != nil {
		log = log.WithError(cause)
	}
	log.Warn("no usable cursor, falling back to lookback window", fields)

	return time.Now().UTC().Add(-s.lookback)
}
