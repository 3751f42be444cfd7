// Package sqlite provides a SQLite-backed notification journal.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/dragondice/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
	"github.com/louisbranch/dragondice/internal/services/engine/storage"
	"github.com/louisbranch/dragondice/internal/services/engine/storage/filter"
	"github.com/louisbranch/dragondice/internal/services/engine/storage/sqlite/migrations"
)

// Store persists notifications in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Journal = (*Store)(nil)

// Open opens a SQLite journal at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append stores n under the next sequence number of its session.
func (s *Store) Append(ctx context.Context, n event.Notification) (event.Notification, error) {
	if err := ctx.Err(); err != nil {
		return event.Notification{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Notification{}, fmt.Errorf("storage is not configured")
	}
	n.Session = strings.TrimSpace(n.Session)
	if n.Session == "" {
		return event.Notification{}, fmt.Errorf("session id is required")
	}
	if !n.Type.IsValid() {
		return event.Notification{}, fmt.Errorf("unknown notification type %q", n.Type)
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	n.Timestamp = n.Timestamp.UTC()
	payload, err := n.PayloadJSON()
	if err != nil {
		return event.Notification{}, fmt.Errorf("encode payload: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Notification{}, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM notifications WHERE session_id = ?`,
		n.Session,
	).Scan(&last); err != nil {
		return event.Notification{}, fmt.Errorf("read last seq: %w", err)
	}
	n.Seq = last + 1

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notifications (
		   session_id, seq, event_type, turn, player, phase, payload_json, timestamp
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Session,
		n.Seq,
		string(n.Type),
		n.Turn,
		n.Player,
		n.Phase,
		string(payload),
		filter.FormatTime(n.Timestamp),
	); err != nil {
		return event.Notification{}, fmt.Errorf("append notification: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return event.Notification{}, fmt.Errorf("commit append: %w", err)
	}
	return n, nil
}

// List returns one page of a session's notifications in sequence order.
func (s *Store) List(ctx context.Context, q storage.Query) (storage.Page, error) {
	if err := ctx.Err(); err != nil {
		return storage.Page{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Page{}, fmt.Errorf("storage is not configured")
	}
	session := strings.TrimSpace(q.Session)
	if session == "" {
		return storage.Page{}, fmt.Errorf("session id is required")
	}
	if q.PageSize <= 0 {
		return storage.Page{}, fmt.Errorf("page size must be greater than zero")
	}
	cond, err := filter.Parse(q.Filter)
	if err != nil {
		return storage.Page{}, err
	}

	query := `SELECT seq, event_type, turn, player, phase, payload_json, timestamp
	            FROM notifications
	           WHERE session_id = ? AND seq > ?`
	params := []any{session, q.AfterSeq}
	if !cond.Empty() {
		query += " AND " + cond.Clause
		params = append(params, cond.Params...)
	}
	query += " ORDER BY seq ASC LIMIT ?"
	params = append(params, q.PageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return storage.Page{}, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	page := storage.Page{Notifications: make([]event.Notification, 0, q.PageSize)}
	for rows.Next() {
		var (
			n         event.Notification
			typ       string
			payload   string
			timestamp string
		)
		if err := rows.Scan(&n.Seq, &typ, &n.Turn, &n.Player, &n.Phase, &payload, &timestamp); err != nil {
			return storage.Page{}, fmt.Errorf("scan notification: %w", err)
		}
		n.Session = session
		n.Type = event.Type(typ)
		if n.Payload, err = event.DecodePayload([]byte(payload)); err != nil {
			return storage.Page{}, fmt.Errorf("decode payload of seq %d: %w", n.Seq, err)
		}
		if n.Timestamp, err = time.Parse(filter.TimestampLayout, timestamp); err != nil {
			return storage.Page{}, fmt.Errorf("parse timestamp of seq %d: %w", n.Seq, err)
		}
		page.Notifications = append(page.Notifications, n)
	}
	if err := rows.Err(); err != nil {
		return storage.Page{}, fmt.Errorf("iterate notifications: %w", err)
	}

	if len(page.Notifications) > q.PageSize {
		page.Notifications = page.Notifications[:q.PageSize]
		page.NextSeq = page.Notifications[q.PageSize-1].Seq
	}
	return page, nil
}

// Sessions lists every journaled session in name order.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT DISTINCT session_id FROM notifications ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
