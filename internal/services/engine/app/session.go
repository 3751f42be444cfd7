package app

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/platform/otel"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/turnflow"
)

// Session is one live table. Every call into its controller holds the
// session lock, so notifications are published and journaled in call order.
type Session struct {
	id    string
	mu    sync.Mutex
	ctrl  *turnflow.Controller
	store *game.Memory
	bus   *event.Bus
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Do runs fn against the controller under the session lock inside a span
// named after op.
func (s *Session) Do(ctx context.Context, op string, fn func(*turnflow.Controller) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, span := otel.Tracer().Start(ctx, "table."+op, trace.WithAttributes(
		attribute.String("dragondice.session", s.id),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	err := fn(s.ctrl)
	st := s.ctrl.State()
	span.SetAttributes(
		attribute.Int("dragondice.turn", st.Turn),
		attribute.String("dragondice.phase", string(st.Phase)),
		attribute.String("dragondice.player", st.Player),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	}
	return err
}

// Read gives fn a consistent view of the controller and the table state.
// fn must not call mutating controller methods.
func (s *Session) Read(fn func(*turnflow.Controller, game.Store)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.ctrl, s.store)
}

// Subscribe registers h for every notification the session publishes.
// Handlers run under the session lock and must not block.
func (s *Session) Subscribe(h event.Handler) func() {
	return s.bus.SubscribeAll(h)
}
