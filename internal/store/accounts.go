// Package store persists account records as a flat JSON list next to the
// MTProto session files. Invalid accounts are reported to a separate
// line-oriented file; records are never mutated or deleted in place.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pengu_farm/internal/config"
	"pengu_farm/internal/model"
)

const sessionSuffix = ".session"

type Store struct {
	workdir string
	cfg     config.OutputConfig
	logger  *zap.Logger

	mu sync.Mutex
}

func New(workdir string, cfg config.OutputConfig, logger *zap.Logger) *Store {
	return &Store{workdir: workdir, cfg: cfg, logger: logger}
}

// ListSessions scans the workdir for session files and returns their base
// names. A missing workdir is not an error, just an empty run.
func (s *Store) ListSessions() ([]string, error) {
	entries, err := os.ReadDir(s.workdir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sessionSuffix) {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), sessionSuffix))
	}
	return out, nil
}

// FilterKnown intersects session names with the persisted record list.
// Sessions with no matching record are dropped silently: a stray .session
// file without metadata is not actionable.
func (s *Store) FilterKnown(sessions []string) ([]model.Account, error) {
	records, err := s.loadRecords()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]model.Account, len(records))
	for _, r := range records {
		byName[r.SessionName] = r
	}
	var out []model.Account
	for _, name := range sessions {
		if acc, ok := byName[name]; ok {
			out = append(out, acc)
		}
	}
	return out, nil
}

// Append adds one new record, assigning an ID and creation time. The store
// file is created on first use.
func (s *Store) Append(acc model.Account) (model.Account, error) {
	if acc.SessionName == "" {
		return model.Account{}, errors.New("session name is required")
	}
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadRecords()
	if err != nil {
		return model.Account{}, err
	}
	records = append(records, acc)
	if err := s.writeRecords(records); err != nil {
		return model.Account{}, err
	}
	return acc, nil
}

// AppendInvalid writes records that failed validation to the report file,
// one JSON object per line. Additive across runs, never truncates.
func (s *Store) AppendInvalid(accs []model.Account) error {
	if len(accs) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.InvalidPath), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.cfg.InvalidPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, acc := range accs {
		if err := enc.Encode(acc); err != nil {
			return err
		}
	}
	if s.logger != nil {
		s.logger.Info("saved invalid accounts",
			zap.Int("count", len(accs)),
			zap.String("path", s.cfg.InvalidPath))
	}
	return nil
}

func (s *Store) loadRecords() ([]model.Account, error) {
	b, err := os.ReadFile(s.cfg.AccountsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []model.Account
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) writeRecords(records []model.Account) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.AccountsPath), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.cfg.AccountsPath, b, 0o644)
}
