package requestctx

import (
	"context"
	"testing"
)

func TestSeatFromContextRoundTrip(t *testing.T) {
	ctx := WithSeat(context.Background(), Seat{Session: "s1", Player: "ana"})
	got, ok := SeatFromContext(ctx)
	if !ok || got.Session != "s1" || got.Player != "ana" {
		t.Fatalf("SeatFromContext = %+v, %v", got, ok)
	}
}

func TestSeatFromContextEmpty(t *testing.T) {
	if _, ok := SeatFromContext(context.Background()); ok {
		t.Fatal("expected no seat")
	}
	//nolint:staticcheck // nil context is tolerated on purpose
	if _, ok := SeatFromContext(nil); ok {
		t.Fatal("expected no seat for nil context")
	}
}

func TestWithSeatNilContext(t *testing.T) {
	//nolint:staticcheck // nil context is tolerated on purpose
	ctx := WithSeat(nil, Seat{Session: "s2", Player: "bo"})
	if got, ok := SeatFromContext(ctx); !ok || got.Player != "bo" {
		t.Fatalf("SeatFromContext = %+v, %v", got, ok)
	}
}
