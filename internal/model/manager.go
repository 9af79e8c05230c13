package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Loader opens the artifact at path. It must return either a fully usable
// Classifier or an error, never both.
type Loader func(path string) (Classifier, error)

// Manager owns the single classifier of the process. The handle is loaded
// lazily and retried on demand until a load succeeds.
type Manager struct {
	path   string
	load   Loader
	logger *slog.Logger

	handle atomic.Pointer[handle]
	group  singleflight.Group

	mu      sync.Mutex
	lastErr error
}

type handle struct {
	classifier Classifier
}

func NewManager(path string, load Loader, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{path: path, load: load, logger: logger}
}

func (m *Manager) Path() string { return m.path }

// Loaded reports whether a classifier is held, without attempting a load.
func (m *Manager) Loaded() bool {
	return m.handle.Load() != nil
}

// LastError returns the failure of the most recent load attempt, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// EnsureLoaded returns the held classifier, loading it first if needed.
// Concurrent callers share a single load attempt. Failures carry
// KindNotFound or KindLoadFailure.
func (m *Manager) EnsureLoaded(ctx context.Context) (Classifier, error) {
	if h := m.handle.Load(); h != nil {
		return h.classifier, nil
	}

	ch := m.group.DoChan("load", func() (any, error) {
		if h := m.handle.Load(); h != nil {
			return h.classifier, nil
		}
		c, err := m.attempt()
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		if err != nil {
			return nil, err
		}
		m.handle.Store(&handle{classifier: c})
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Classifier), nil
	case <-ctx.Done():
		return nil, &Error{Kind: KindLoadFailure, Op: "load", Err: ctx.Err()}
	}
}

func (m *Manager) attempt() (c Classifier, err error) {
	if _, statErr := os.Stat(m.path); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			m.logger.Warn("model artifact not found", "path", m.path)
			return nil, Errorf(KindNotFound, "load", "model file %s not found", m.path)
		}
		m.logger.Error("model load failed", "path", m.path, "error", statErr)
		return nil, &Error{Kind: KindLoadFailure, Op: "load", Err: statErr}
	}

	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = Errorf(KindLoadFailure, "load", "loader panic: %v", r)
			m.logger.Error("model load failed", "path", m.path, "error", err)
		}
	}()

	c, err = m.load(m.path)
	if err != nil {
		if c != nil {
			c.Close()
		}
		m.logger.Error("model load failed", "path", m.path, "error", err)
		return nil, &Error{Kind: KindLoadFailure, Op: "load", Err: fmt.Errorf("loading %s: %w", m.path, err)}
	}
	if c == nil {
		err = Errorf(KindLoadFailure, "load", "loader returned no classifier for %s", m.path)
		m.logger.Error("model load failed", "path", m.path, "error", err)
		return nil, err
	}

	m.logger.Info("model loaded", "path", m.path)
	return c, nil
}

// Close releases the held classifier. A later EnsureLoaded loads again.
func (m *Manager) Close() error {
	h := m.handle.Swap(nil)
	if h == nil {
		return nil
	}
	return h.classifier.Close()
}
