package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
	"github.com/louisbranch/dragondice/internal/services/engine/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestAppendAssignsSequencePerSession(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

	first, err := store.Append(ctx, event.Notification{Session: "s1", Type: event.TypePlayerChanged, Timestamp: now, Player: "ana"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := store.Append(ctx, event.Notification{Session: "s1", Type: event.TypePhaseChanged, Timestamp: now, Phase: "EIGHTH_FACE"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	other, err := store.Append(ctx, event.Notification{Session: "s2", Type: event.TypeStateUpdated, Timestamp: now})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.Seq != 1 || second.Seq != 2 || other.Seq != 1 {
		t.Fatalf("seqs = %d, %d, %d", first.Seq, second.Seq, other.Seq)
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0] != "s1" || sessions[1] != "s2" {
		t.Fatalf("sessions = %v", sessions)
	}
}

func TestAppendRejectsUnknownType(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if _, err := store.Append(context.Background(), event.Notification{Session: "s1", Type: "NOPE"}); err == nil {
		t.Fatal("expected unknown type error")
	}
	if _, err := store.Append(context.Background(), event.Notification{Type: event.TypeStateUpdated}); err == nil {
		t.Fatal("expected missing session error")
	}
}

func TestListPagesAndFilters(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	seed := []event.Notification{
		{Type: event.TypePlayerChanged, Turn: 1, Player: "ana"},
		{Type: event.TypeUnitKilled, Turn: 1, Player: "ana", Payload: map[string]string{"unit": "b1"}},
		{Type: event.TypeStateUpdated, Turn: 1, Player: "ana"},
		{Type: event.TypePlayerChanged, Turn: 2, Player: "bo"},
		{Type: event.TypeUnitKilled, Turn: 2, Player: "bo", Payload: map[string]string{"unit": "a1"}},
	}
	for i, n := range seed {
		n.Session = "s1"
		n.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if _, err := store.Append(ctx, n); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	page, err := store.List(ctx, storage.Query{Session: "s1", PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Notifications) != 2 || page.NextSeq != 2 {
		t.Fatalf("first page = %d notifications, next %d", len(page.Notifications), page.NextSeq)
	}
	if got := page.Notifications[1].Payload["unit"]; got != "b1" {
		t.Fatalf("payload unit = %q", got)
	}
	if !page.Notifications[0].Timestamp.Equal(base) {
		t.Fatalf("timestamp = %s", page.Notifications[0].Timestamp)
	}

	rest, err := store.List(ctx, storage.Query{Session: "s1", PageSize: 10, AfterSeq: page.NextSeq})
	if err != nil {
		t.Fatalf("list rest: %v", err)
	}
	if len(rest.Notifications) != 3 || rest.NextSeq != 0 || rest.Notifications[0].Seq != 3 {
		t.Fatalf("rest = %+v", rest)
	}

	kills, err := store.List(ctx, storage.Query{
		Session:  "s1",
		PageSize: 10,
		Filter:   `type = "UNIT_KILLED" AND turn >= 2`,
	})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(kills.Notifications) != 1 || kills.Notifications[0].Player != "bo" {
		t.Fatalf("kills = %+v", kills.Notifications)
	}

	late, err := store.List(ctx, storage.Query{
		Session:  "s1",
		PageSize: 10,
		Filter:   `ts >= timestamp("2026-03-01T10:03:00Z")`,
	})
	if err != nil {
		t.Fatalf("list by time: %v", err)
	}
	if len(late.Notifications) != 2 {
		t.Fatalf("late = %d notifications, want 2", len(late.Notifications))
	}
}

func TestListRejectsBadFilter(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.List(context.Background(), storage.Query{Session: "s1", PageSize: 1, Filter: "bogus = 1"})
	if apperrors.CodeOf(err) != apperrors.CodeFilterInvalid {
		t.Fatalf("code = %s, err = %v", apperrors.CodeOf(err), err)
	}
	if _, err := store.List(context.Background(), storage.Query{Session: "s1"}); err == nil {
		t.Fatal("expected page size error")
	}
}

func TestReopenKeepsJournal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.Append(ctx, event.Notification{Session: "s1", Type: event.TypeVictoryAchieved}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	n, err := reopened.Append(ctx, event.Notification{Session: "s1", Type: event.TypeStateUpdated})
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if n.Seq != 2 {
		t.Fatalf("seq after reopen = %d, want 2", n.Seq)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
