// Package outlog owns the shared output log of account snapshots. All
// appends from concurrent account workers funnel through a single writer
// goroutine, so the read-modify-write of the JSON array never races.
package outlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"pengu_farm/internal/model"
)

type Log struct {
	path   string
	logger *zap.Logger

	ch chan model.Snapshot
	wg sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func Open(path string, logger *zap.Logger) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	l := &Log{
		path:   path,
		logger: logger,
		ch:     make(chan model.Snapshot, 64),
	}
	l.wg.Add(1)
	go l.loop()
	return l, nil
}

// Append enqueues one snapshot. Appends after Close are dropped.
func (l *Log) Append(s model.Snapshot) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.ch <- s
	l.mu.Unlock()
}

// Close drains pending snapshots and stops the writer.
func (l *Log) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.ch)
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Log) loop() {
	defer l.wg.Done()
	for s := range l.ch {
		if err := l.write(s); err != nil && l.logger != nil {
			l.logger.Error("failed to save account snapshot",
				zap.String("account", s.Account),
				zap.Error(err))
		}
	}
}

func (l *Log) write(s model.Snapshot) error {
	existing := l.load()
	existing = append(existing, s)

	b, err := json.MarshalIndent(existing, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, b, 0o644)
}

// load tolerates a missing or corrupted file: both read back as an empty log
// rather than poisoning every later append.
func (l *Log) load() []model.Snapshot {
	b, err := os.ReadFile(l.path)
	if err != nil {
		return nil
	}
	var out []model.Snapshot
	if err := json.Unmarshal(b, &out); err != nil {
		var single model.Snapshot
		if err := json.Unmarshal(b, &single); err == nil && single.Account != "" {
			return []model.Snapshot{single}
		}
		if l.logger != nil {
			l.logger.Warn("output log is corrupted, starting over", zap.String("path", l.path))
		}
		return nil
	}
	return out
}
