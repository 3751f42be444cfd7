// Package ws exposes live tables over websockets. Each connection is seated
// as one player of one session, or as a spectator, and exchanges JSON frames
// of the form {type, request_id, payload}.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/platform/i18n/catalog"
	"github.com/louisbranch/dragondice/internal/platform/requestctx"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/turnflow"
	"github.com/louisbranch/dragondice/internal/services/engine/seat"
	"github.com/louisbranch/dragondice/internal/services/engine/storage"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
)

// Table is one live session as the socket layer sees it.
type Table interface {
	ID() string
	Do(ctx context.Context, op string, fn func(*turnflow.Controller) error) error
	Read(fn func(*turnflow.Controller, game.Store))
	Subscribe(h event.Handler) func()
}

// Registry resolves session ids to live tables.
type Registry interface {
	Table(sessionID string) (Table, error)
}

// Config wires the socket handler.
type Config struct {
	Tables Registry
	// Journal serves history frames; nil disables them.
	Journal storage.Journal
	// Seats verifies seat grants. When nil, connections name their player
	// with the player query parameter and are trusted.
	Seats *seat.Config
	// Bundle supplies localized messages; nil uses the embedded catalog.
	Bundle *catalog.Bundle
	// OriginPatterns lists extra origins allowed to open sockets.
	OriginPatterns []string
}

type handler struct {
	cfg      Config
	messages *messages
}

// NewHandler returns the HTTP handler serving GET /tables/{session}/ws.
func NewHandler(cfg Config) http.Handler {
	h := &handler{cfg: cfg, messages: newMessages(cfg.Bundle)}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tables/{session}/ws", h.serveWS)
	return mux
}

func (h *handler) serveWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.PathValue("session"))
	locale := h.messages.resolveLocale(r.URL.Query().Get("locale"))
	table, err := h.cfg.Tables.Table(sessionID)
	if err != nil {
		writeHTTPError(w, locale, err)
		return
	}
	st, err := h.authorize(r, sessionID)
	if err != nil {
		writeHTTPError(w, locale, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns})
	if err != nil {
		log.Printf("accept websocket for %s: %v", sessionID, err)
		return
	}
	conn.SetReadLimit(maxFramePayloadBytes + 1024)

	ctx := requestctx.WithSeat(r.Context(), st)
	h.handleConn(ctx, conn, table, newPeer(conn, st, locale))
}

// authorize resolves the connection's seat. An empty player seats a
// spectator.
func (h *handler) authorize(r *http.Request, sessionID string) (requestctx.Seat, error) {
	if h.cfg.Seats == nil {
		return requestctx.Seat{Session: sessionID, Player: strings.TrimSpace(r.URL.Query().Get("player"))}, nil
	}
	grant := grantFromRequest(r)
	if grant == "" {
		return requestctx.Seat{Session: sessionID}, nil
	}
	claims, err := seat.Validate(grant, sessionID, *h.cfg.Seats)
	if err != nil {
		return requestctx.Seat{}, err
	}
	return claims.Seat, nil
}

func grantFromRequest(r *http.Request) string {
	if auth := strings.TrimSpace(r.Header.Get("Authorization")); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("grant"))
}

func writeHTTPError(w http.ResponseWriter, locale string, err error) {
	var de *apperrors.Error
	code := http.StatusInternalServerError
	if errors.As(err, &de) {
		switch de.Code.Class() {
		case apperrors.CodeNotFound:
			code = http.StatusNotFound
		case apperrors.CodeValidation:
			code = http.StatusUnauthorized
		case apperrors.CodeStateSequence:
			code = http.StatusForbidden
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(errorFrame("", locale, err).Payload)
}

func (h *handler) handleConn(ctx context.Context, conn *websocket.Conn, table Table, p *peer) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() { _ = conn.CloseNow() }()
	defer p.stop()

	unsubscribe := table.Subscribe(func(n event.Notification) {
		p.send(wsFrame{Type: frameEvent, Payload: mustJSON(h.messages.envelope(p.locale, n))})
	})
	defer unsubscribe()
	go p.writeLoop(ctx)

	p.send(h.stateFrame("", table))

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var frame wsFrame
		if typ != websocket.MessageText || json.Unmarshal(data, &frame) != nil {
			decodeErrors++
			p.send(errorFrame("", p.locale, apperrors.New(apperrors.CodeValidation, "invalid frame")))
			if decodeErrors >= maxDecodeErrorsPerConn {
				_ = conn.Close(websocket.StatusUnsupportedData, "too many invalid frames")
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			p.send(errorFrame(frame.RequestID, p.locale, apperrors.New(apperrors.CodeValidation, "payload too large")))
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = conn.Close(websocket.StatusPolicyViolation, "rate limit exceeded")
			return
		}

		p.send(h.dispatch(ctx, table, p, frame))
	}
}

func (h *handler) stateFrame(requestID string, table Table) wsFrame {
	var v stateView
	table.Read(func(ctrl *turnflow.Controller, store game.Store) {
		v = buildState(table.ID(), ctrl, store)
	})
	return wsFrame{Type: frameState, RequestID: requestID, Payload: mustJSON(v)}
}
