// Package app hosts live tables and wires the engine's servers.
package app

import (
	"context"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/platform/id"
	"github.com/louisbranch/dragondice/internal/platform/timeouts"
	"github.com/louisbranch/dragondice/internal/services/engine/api/ws"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/effects"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/turnflow"
	"github.com/louisbranch/dragondice/internal/services/engine/storage"
)

// Tables is the registry of live sessions.
type Tables struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	journal  storage.Journal
	now      func() time.Time
	newID    func() (string, error)
}

// Option configures Tables.
type Option func(*Tables)

// WithClock overrides the notification clock.
func WithClock(now func() time.Time) Option {
	return func(t *Tables) { t.now = now }
}

// WithIDs overrides effect id generation.
func WithIDs(newID func() (string, error)) Option {
	return func(t *Tables) { t.newID = newID }
}

// NewTables returns an empty registry. A nil journal disables journaling.
func NewTables(journal storage.Journal, opts ...Option) *Tables {
	t := &Tables{
		sessions: map[string]*Session{},
		journal:  journal,
		now:      time.Now,
		newID:    id.NewID,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create loads roster as session id and starts its first turn.
func (t *Tables) Create(ctx context.Context, sessionID string, roster game.Roster) (*Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperrors.WithMetadata(apperrors.CodeFieldRequired, "session id is required", apperrors.Field("session", ""))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[sessionID]; ok {
		return nil, apperrors.WithMetadata(apperrors.CodeSessionExists, "session already exists", apperrors.Field("session", sessionID))
	}

	store, err := game.Load(roster)
	if err != nil {
		return nil, err
	}
	bus := event.NewBus()
	if t.journal != nil {
		bus.Attach(&journalObserver{journal: t.journal})
	}
	ctrl, err := turnflow.New(turnflow.Config{
		Session: sessionID,
		Store:   store,
		Effects: &effects.MemoryStore{},
		Bus:     bus,
		Now:     t.now,
		NewID:   t.newID,
	})
	if err != nil {
		return nil, err
	}
	if err := ctrl.Start(); err != nil {
		return nil, err
	}
	s := &Session{id: sessionID, ctrl: ctrl, store: store, bus: bus}
	t.sessions[sessionID] = s
	log.Printf("table %s started with %d players", sessionID, len(roster.Players))
	return s, nil
}

// Get returns a live session.
func (t *Tables) Get(sessionID string) (*Session, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[sessionID]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeSessionNotFound, "session not found", apperrors.Field("session", sessionID))
	}
	return s, nil
}

// Table implements ws.Registry.
func (t *Tables) Table(sessionID string) (ws.Table, error) {
	s, err := t.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// IDs lists live sessions in name order.
func (t *Tables) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.sessions))
	for sid := range t.sessions {
		out = append(out, sid)
	}
	slices.Sort(out)
	return out
}

// journalObserver appends every published notification to the journal.
// Failures are logged; the game has already moved on.
type journalObserver struct {
	journal storage.Journal
}

func (o *journalObserver) Observe(n event.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.TableCall)
	defer cancel()
	if _, err := o.journal.Append(ctx, n); err != nil {
		log.Printf("journal %s %s: %v", n.Session, n.Type, err)
	}
}
