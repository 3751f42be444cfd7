package event

import "testing"

type recorder struct {
	got []Type
}

func (r *recorder) Observe(n Notification) {
	r.got = append(r.got, n.Type)
}

func TestBusDeliversByType(t *testing.T) {
	bus := NewBus()
	var phases, all int
	bus.Subscribe(TypePhaseChanged, func(Notification) { phases++ })
	bus.SubscribeAll(func(Notification) { all++ })
	rec := &recorder{}
	bus.Attach(rec)

	bus.Publish(
		Notification{Type: TypePhaseChanged},
		Notification{Type: TypeStateUpdated},
	)
	if phases != 1 || all != 2 {
		t.Fatalf("phases = %d all = %d", phases, all)
	}
	if len(rec.got) != 2 || rec.got[1] != TypeStateUpdated {
		t.Fatalf("observer got %v", rec.got)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	var calls int
	stop := bus.Subscribe(TypeVictoryAchieved, func(Notification) { calls++ })
	bus.Publish(Notification{Type: TypeVictoryAchieved})
	stop()
	stop()
	bus.Publish(Notification{Type: TypeVictoryAchieved})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestHandlerMaySubscribeDuringPublish(t *testing.T) {
	bus := NewBus()
	var late int
	bus.SubscribeAll(func(Notification) {
		bus.Subscribe(TypeUnitKilled, func(Notification) { late++ })
	})
	bus.Publish(Notification{Type: TypeUnitKilled})
	if late != 0 {
		t.Fatalf("late handler saw the notification being published")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	n := Notification{Type: TypeUnitKilled, Payload: map[string]string{"unit": "u1"}}
	data, err := n.PayloadJSON()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodePayload(data)
	if err != nil || got["unit"] != "u1" {
		t.Fatalf("decode = %v, %v", got, err)
	}
	if data, _ := (Notification{}).PayloadJSON(); string(data) != "{}" {
		t.Fatalf("empty payload = %s", data)
	}
	if !TypeDragonKilled.IsValid() || Type("NOPE").IsValid() {
		t.Fatal("type validity")
	}
}
