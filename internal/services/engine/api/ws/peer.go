package ws

import (
	"context"
	"sync"

	"github.com/coder/websocket"

	"github.com/louisbranch/dragondice/internal/platform/requestctx"
	"github.com/louisbranch/dragondice/internal/platform/timeouts"
)

// outboundBuffer bounds frames queued for one peer. A peer that falls this
// far behind is disconnected instead of stalling the table.
const outboundBuffer = 64

// peer is one connected socket. Frames are written by a single goroutine in
// the order they were queued.
type peer struct {
	conn   *websocket.Conn
	seat   requestctx.Seat
	locale string
	out    chan wsFrame
	done   chan struct{}
	once   sync.Once
}

func newPeer(conn *websocket.Conn, seat requestctx.Seat, locale string) *peer {
	return &peer{
		conn:   conn,
		seat:   seat,
		locale: locale,
		out:    make(chan wsFrame, outboundBuffer),
		done:   make(chan struct{}),
	}
}

// send queues f without blocking.
func (p *peer) send(f wsFrame) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.out <- f:
		return true
	default:
		p.stop()
		go func() { _ = p.conn.Close(websocket.StatusPolicyViolation, "slow consumer") }()
		return false
	}
}

func (p *peer) stop() {
	p.once.Do(func() { close(p.done) })
}

func (p *peer) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case f := <-p.out:
			data := mustJSON(f)
			if data == nil {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, timeouts.SocketWrite)
			err := p.conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				p.stop()
				return
			}
		}
	}
}
