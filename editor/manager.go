package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"certistage/models"
)

// Manager keeps the open editor sessions of the process. By convention a
// template has at most one open session; opening it again returns the same one.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	byKey     map[string]string
	store     TemplateStore
	preview   Previewer
	opts      Options
	idleAfter time.Duration
	log       logrus.FieldLogger
}

// NewManager creates a session registry. Sessions idle for longer than
// idleAfter are flushed and closed by SweepIdle.
func NewManager(store TemplateStore, preview Previewer, opts Options, idleAfter time.Duration) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		sessions:  make(map[string]*Session),
		byKey:     make(map[string]string),
		store:     store,
		preview:   preview,
		opts:      opts,
		idleAfter: idleAfter,
		log:       opts.Logger,
	}
}

func templateKey(eventID, typeID string) string {
	return eventID + "/" + typeID
}

// Open returns the session editing (event, type), opening one if needed
func (m *Manager) Open(ctx context.Context, sess models.Session, typeID string) (*Session, error) {
	key := templateKey(sess.EventID, typeID)

	m.mu.Lock()
	if id, ok := m.byKey[key]; ok {
		if s, ok := m.sessions[id]; ok && !s.Closed() {
			m.mu.Unlock()
			return s, nil
		}
	}
	m.mu.Unlock()

	s, err := Open(ctx, sess, typeID, m.store, m.preview, m.opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have opened the same template meanwhile.
	if id, ok := m.byKey[key]; ok {
		if existing, ok := m.sessions[id]; ok && !existing.Closed() {
			return existing, nil
		}
	}
	m.sessions[s.ID()] = s
	m.byKey[key] = s.ID()

	m.log.WithFields(logrus.Fields{
		"editor_session": s.ID(),
		"event_id":       sess.EventID,
		"type_id":        typeID,
	}).Info("✓ Editor session opened")
	return s, nil
}

// Get returns an open session by id
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, models.NotFound("get editor session", "", "editor session not found")
	}
	return s, nil
}

// Len returns the number of open sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close flushes and removes a session. A session whose flush fails stays registered.
func (m *Manager) Close(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := s.Close(ctx); err != nil {
		return err
	}
	m.remove(s)
	return nil
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.ID())
	key := templateKey(s.EventID(), s.TypeID())
	if m.byKey[key] == s.ID() {
		delete(m.byKey, key)
	}
}

func (m *Manager) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// SweepIdle closes sessions idle for longer than the idle timeout and
// returns how many were closed
func (m *Manager) SweepIdle(ctx context.Context) int {
	if m.idleAfter <= 0 {
		return 0
	}
	now := m.opts.Clock.Now()
	closed := 0
	for _, s := range m.snapshot() {
		if now.Sub(s.LastActivity()) < m.idleAfter {
			continue
		}
		if err := s.Close(ctx); err != nil {
			m.log.WithError(err).WithField("editor_session", s.ID()).Warn("⚠️  Idle editor session could not be flushed")
			continue
		}
		m.remove(s)
		closed++
	}
	if closed > 0 {
		m.log.WithField("closed", closed).Info("🧹 Idle editor sessions closed")
	}
	return closed
}

// Run sweeps idle sessions every interval until ctx is done
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepIdle(ctx)
		}
	}
}

// Shutdown flushes and closes every session. It is the process exit path.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, s := range m.snapshot() {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID(), err))
			continue
		}
		m.remove(s)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to flush editor sessions: %w", errors.Join(errs...))
	}
	return nil
}
