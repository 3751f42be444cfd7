// Package requestctx carries per-connection identity through contexts.
package requestctx

import "context"

// Seat is the player a connection is authorized to act as at one table.
type Seat struct {
	Session string
	Player  string
}

type seatContextKey struct{}

// WithSeat stores an authorized seat in context.
func WithSeat(ctx context.Context, seat Seat) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, seatContextKey{}, seat)
}

// SeatFromContext returns the seat stored in context and whether one was set.
func SeatFromContext(ctx context.Context) (Seat, bool) {
	if ctx == nil {
		return Seat{}, false
	}
	seat, ok := ctx.Value(seatContextKey{}).(Seat)
	return seat, ok
}
