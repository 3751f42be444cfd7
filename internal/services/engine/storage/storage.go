// Package storage defines persistence contracts for the notification journal.
package storage

import (
	"context"

	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
)

//go:generate go tool mockgen -destination=./mocks/journal_mock.go -package=mocks . Journal

// Query selects one page of a session's notifications in sequence order.
type Query struct {
	Session string
	// Filter is an AIP-160 expression over type, player, phase, turn, seq
	// and ts.
	Filter   string
	PageSize int
	// AfterSeq resumes after the last notification of a previous page.
	AfterSeq uint64
}

// Page is one slice of a session's journal.
type Page struct {
	Notifications []event.Notification
	// NextSeq resumes the listing; zero means there is nothing more.
	NextSeq uint64
}

// Journal persists published notifications per session.
type Journal interface {
	// Append stores n under the next sequence number of its session and
	// returns it with Seq set.
	Append(ctx context.Context, n event.Notification) (event.Notification, error)
	List(ctx context.Context, q Query) (Page, error)
	// Sessions lists every session with at least one notification.
	Sessions(ctx context.Context) ([]string, error)
}
