package ws

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/mock/gomock"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/platform/pagination"
	"github.com/louisbranch/dragondice/internal/platform/requestctx"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/effects"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/turnflow"
	"github.com/louisbranch/dragondice/internal/services/engine/seat"
	"github.com/louisbranch/dragondice/internal/services/engine/storage"
	"github.com/louisbranch/dragondice/internal/services/engine/storage/mocks"
)

var testNow = time.Date(2026, time.April, 2, 20, 0, 0, 0, time.UTC)

type fakeTable struct {
	id    string
	mu    sync.Mutex
	ctrl  *turnflow.Controller
	store *game.Memory
	bus   *event.Bus
}

func (f *fakeTable) ID() string { return f.id }

func (f *fakeTable) Do(_ context.Context, _ string, fn func(*turnflow.Controller) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(f.ctrl)
}

func (f *fakeTable) Read(fn func(*turnflow.Controller, game.Store)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.ctrl, f.store)
}

func (f *fakeTable) Subscribe(h event.Handler) func() {
	return f.bus.SubscribeAll(h)
}

type fakeRegistry map[string]Table

func (r fakeRegistry) Table(id string) (Table, error) {
	t, ok := r[id]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeSessionNotFound, "session not found", apperrors.Field("session", id))
	}
	return t, nil
}

func testRoster() game.Roster {
	unit := func(id string) game.Unit {
		return game.Unit{ID: id, Name: "Goblin " + id, Species: "Goblin", Elements: []game.Element{game.ElementDeath}, MaxHealth: 1}
	}
	return game.Roster{
		Players: []game.RosterPlayer{
			{Name: "ana", HomeTerrain: "Highland", Armies: map[game.ArmyType]game.Army{
				game.ArmyHome:     {Location: "Highland", Units: []game.Unit{unit("a1")}},
				game.ArmyCampaign: {Location: "Flatland", Units: []game.Unit{unit("a2")}},
				game.ArmyHorde:    {Location: "Coastland", Units: []game.Unit{unit("a3")}},
			}},
			{Name: "bo", HomeTerrain: "Coastland", Armies: map[game.ArmyType]game.Army{
				game.ArmyHome:     {Location: "Coastland", Units: []game.Unit{unit("b1")}},
				game.ArmyCampaign: {Location: "Flatland", Units: []game.Unit{unit("b2")}},
				game.ArmyHorde:    {Location: "Highland", Units: []game.Unit{unit("b3")}},
			}},
		},
		Terrains: []game.Terrain{
			{Name: "Highland", Type: game.TerrainHome, Subtype: game.FaceCity, Elements: []game.Element{game.ElementFire}, Face: 1, Owner: "ana"},
			{Name: "Coastland", Type: game.TerrainHome, Subtype: game.FaceTemple, Elements: []game.Element{game.ElementWater}, Face: 1, Owner: "bo"},
			{Name: "Flatland", Type: game.TerrainFrontier, Subtype: game.FaceVortex, Elements: []game.Element{game.ElementEarth}, Face: 1},
		},
	}
}

func newFakeTable(t *testing.T, id string) *fakeTable {
	t.Helper()
	store, err := game.Load(testRoster())
	if err != nil {
		t.Fatalf("load roster: %v", err)
	}
	bus := event.NewBus()
	ctrl, err := turnflow.New(turnflow.Config{
		Session: id,
		Store:   store,
		Effects: &effects.MemoryStore{},
		Bus:     bus,
		Now:     func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if err := ctrl.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return &fakeTable{id: id, ctrl: ctrl, store: store, bus: bus}
}

func startServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(cfg))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, path string, header http.Header) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+path, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f wsFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame %s: %v", data, err)
	}
	return f
}

// readUntil collects frames until one answers requestID.
func readUntil(t *testing.T, conn *websocket.Conn, requestID string) (wsFrame, []wsFrame) {
	t.Helper()
	var before []wsFrame
	for range 20 {
		f := readFrame(t, conn)
		if f.RequestID == requestID {
			return f, before
		}
		before = append(before, f)
	}
	t.Fatalf("no reply for %s", requestID)
	return wsFrame{}, nil
}

func send(t *testing.T, conn *websocket.Conn, typ, requestID string, payload any) {
	t.Helper()
	f := wsFrame{Type: typ, RequestID: requestID}
	if payload != nil {
		f.Payload = mustJSON(payload)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, mustJSON(f)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func decodeState(t *testing.T, f wsFrame) stateView {
	t.Helper()
	var v stateView
	if err := json.Unmarshal(f.Payload, &v); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return v
}

func decodeError(t *testing.T, f wsFrame) wsError {
	t.Helper()
	if f.Type != frameError {
		t.Fatalf("frame type = %s, want %s (%s)", f.Type, frameError, f.Payload)
	}
	var env wsErrorEnvelope
	if err := json.Unmarshal(f.Payload, &env); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return env.Error
}

func TestSeatedPlayerAdvancesPhase(t *testing.T) {
	table := newFakeTable(t, "s1")
	srv := startServer(t, Config{Tables: fakeRegistry{"s1": table}})
	conn := dial(t, srv, "/tables/s1/ws?player=ana", nil)

	first := readFrame(t, conn)
	if first.Type != frameState {
		t.Fatalf("first frame = %s", first.Type)
	}
	if st := decodeState(t, first); st.Phase != string(turnflow.PhaseSpeciesAbilities) || st.Player != "ana" {
		t.Fatalf("initial state = %+v", st)
	}
	if st := decodeState(t, first); len(st.Armies) != 6 || len(st.Terrains) != 3 {
		t.Fatalf("state armies = %d terrains = %d", len(st.Armies), len(st.Terrains))
	}

	send(t, conn, "table.advance", "r1", nil)
	ack, events := readUntil(t, conn, "r1")
	if ack.Type != frameAck {
		t.Fatalf("reply = %s %s", ack.Type, ack.Payload)
	}
	if st := decodeState(t, ack); st.Phase != string(turnflow.PhaseFirstMarch) || st.MarchStep != string(turnflow.StepChooseArmy) {
		t.Fatalf("state after advance = %+v", st)
	}

	var phaseMsg string
	for _, f := range events {
		var ev eventEnvelope
		if err := json.Unmarshal(f.Payload, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.Type == string(event.TypePhaseChanged) {
			phaseMsg = ev.Message
		}
	}
	if phaseMsg != "Phase is now FIRST_MARCH." {
		t.Fatalf("phase message = %q", phaseMsg)
	}
}

func TestCallsAreCheckedAgainstTheSeat(t *testing.T) {
	table := newFakeTable(t, "s1")
	srv := startServer(t, Config{Tables: fakeRegistry{"s1": table}})

	bo := dial(t, srv, "/tables/s1/ws?player=bo&locale=pt-BR", nil)
	readFrame(t, bo)
	send(t, bo, "table.advance", "r1", nil)
	reply, _ := readUntil(t, bo, "r1")
	got := decodeError(t, reply)
	if got.Code != string(apperrors.CodeStateSequence) || got.Status != "FailedPrecondition" {
		t.Fatalf("error = %+v", got)
	}
	if got.Message != "Essa acao nao e esperada agora." {
		t.Fatalf("message = %q", got.Message)
	}

	spectator := dial(t, srv, "/tables/s1/ws", nil)
	readFrame(t, spectator)
	send(t, spectator, "table.advance", "r2", nil)
	reply, _ = readUntil(t, spectator, "r2")
	if got := decodeError(t, reply); got.Code != string(apperrors.CodeSeatNotActing) {
		t.Fatalf("spectator error = %+v", got)
	}

	send(t, spectator, "table.teleport", "r3", nil)
	reply, _ = readUntil(t, spectator, "r3")
	if got := decodeError(t, reply); got.Code != string(apperrors.CodeValidation) || got.Status != "InvalidArgument" {
		t.Fatalf("unknown frame error = %+v", got)
	}

	send(t, bo, "table.maneuver_rolls", "r4", maneuverRollsPayload{Roll: "2 maneuver"})
	reply, _ = readUntil(t, bo, "r4")
	if got := decodeError(t, reply); got.Code != string(apperrors.CodeSeatNotActing) {
		t.Fatalf("maneuver rolls from non-acting seat = %+v", got)
	}
}

func TestMarchOverSocket(t *testing.T) {
	table := newFakeTable(t, "s1")
	srv := startServer(t, Config{Tables: fakeRegistry{"s1": table}})
	ana := dial(t, srv, "/tables/s1/ws?player=ana", nil)
	readFrame(t, ana)

	steps := []struct {
		typ     string
		payload any
	}{
		{"table.advance", nil},
		{"table.choose_army", armyPayload{Army: "Campaign"}},
		{"table.decide_maneuver", decisionPayload{Yes: false}},
	}
	for i, s := range steps {
		rid := s.typ + "-" + string(rune('a'+i))
		send(t, ana, s.typ, rid, s.payload)
		reply, _ := readUntil(t, ana, rid)
		if reply.Type != frameAck {
			t.Fatalf("%s reply = %s %s", s.typ, reply.Type, reply.Payload)
		}
	}

	send(t, ana, "table.state", "st", nil)
	reply, _ := readUntil(t, ana, "st")
	st := decodeState(t, reply)
	if st.ActingArmy != "ana:campaign" || st.MarchStep != string(turnflow.StepSelectAction) {
		t.Fatalf("state = %+v", st)
	}
	if len(st.AvailableActions) != 1 || st.AvailableActions[0] != game.ActionMelee {
		t.Fatalf("available actions at face 1 = %v", st.AvailableActions)
	}
}

func TestReserveMovesOverSocket(t *testing.T) {
	table := newFakeTable(t, "s1")
	srv := startServer(t, Config{Tables: fakeRegistry{"s1": table}})
	ana := dial(t, srv, "/tables/s1/ws?player=ana", nil)
	readFrame(t, ana)

	for i := range 3 {
		rid := "advance-" + string(rune('a'+i))
		send(t, ana, "table.advance", rid, nil)
		if reply, _ := readUntil(t, ana, rid); reply.Type != frameAck {
			t.Fatalf("advance reply = %s %s", reply.Type, reply.Payload)
		}
	}

	send(t, ana, "table.retreat", "r1", reserveMovesPayload{Moves: []reserveMovePayload{{Unit: "ghost", Terrain: "Flatland"}}})
	reply, _ := readUntil(t, ana, "r1")
	if got := decodeError(t, reply); got.Code != string(apperrors.CodeUnitNotFound) {
		t.Fatalf("retreat of unknown unit = %+v", got)
	}

	send(t, ana, "table.retreat", "r2", reserveMovesPayload{Moves: []reserveMovePayload{{Unit: "a2", Terrain: "Flatland"}}})
	reply, seen := readUntil(t, ana, "r2")
	if reply.Type != frameAck {
		t.Fatalf("retreat reply = %s %s", reply.Type, reply.Payload)
	}
	moved := false
	for _, f := range seen {
		var ev eventEnvelope
		if err := json.Unmarshal(f.Payload, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		moved = moved || ev.Type == string(event.TypeUnitsMoved)
	}
	if !moved {
		t.Fatalf("no units moved event before ack: %+v", seen)
	}

	table.Read(func(_ *turnflow.Controller, store game.Store) {
		areas, err := store.Areas("ana")
		if err != nil || len(areas.Reserves) != 1 || areas.Reserves[0].ID != "a2" {
			t.Fatalf("reserves = %+v, %v", areas.Reserves, err)
		}
	})
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	srv := startServer(t, Config{Tables: fakeRegistry{}})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/tables/nope/ws", nil)
	if err == nil {
		t.Fatal("expected dial error")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("response = %+v", resp)
	}
}

func TestSeatGrants(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = 7
	private := ed25519.NewKeyFromSeed(seed)
	issuer := seat.IssuerConfig{Issuer: "dragondice", Audience: "dragondice-engine", Key: private, Now: func() time.Time { return testNow }}
	verifier := &seat.Config{Issuer: "dragondice", Audience: "dragondice-engine", Key: private.Public().(ed25519.PublicKey), Now: func() time.Time { return testNow }}

	table := newFakeTable(t, "s1")
	srv := startServer(t, Config{Tables: fakeRegistry{"s1": table}, Seats: verifier})

	grant, err := seat.Issue(requestctx.Seat{Session: "s1", Player: "ana"}, issuer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	conn := dial(t, srv, "/tables/s1/ws?player=bo", http.Header{"Authorization": []string{"Bearer " + grant}})
	readFrame(t, conn)
	send(t, conn, "table.advance", "r1", nil)
	if reply, _ := readUntil(t, conn, "r1"); reply.Type != frameAck {
		t.Fatalf("granted seat reply = %s %s", reply.Type, reply.Payload)
	}

	other, err := seat.Issue(requestctx.Seat{Session: "s2", Player: "ana"}, issuer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/tables/s1/ws?grant="+other, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("mismatched grant: err = %v resp = %+v", err, resp)
	}
}

func TestHistoryReadsJournal(t *testing.T) {
	ctrl := gomock.NewController(t)
	journal := mocks.NewMockJournal(ctrl)
	journal.EXPECT().
		List(gomock.Any(), storage.Query{Session: "s1", Filter: `type = "UNIT_KILLED"`, PageSize: 50}).
		Return(storage.Page{
			Notifications: []event.Notification{{
				Session:   "s1",
				Seq:       7,
				Timestamp: testNow,
				Type:      event.TypeUnitKilled,
				Turn:      2,
				Player:    "bo",
				Payload:   map[string]string{"unit_id": "a1", "name": "Goblin a1"},
			}},
			NextSeq: 7,
		}, nil)
	journal.EXPECT().
		List(gomock.Any(), storage.Query{Session: "s1", PageSize: 200, AfterSeq: 7}).
		Return(storage.Page{}, nil)

	table := newFakeTable(t, "s1")
	srv := startServer(t, Config{Tables: fakeRegistry{"s1": table}, Journal: journal})
	conn := dial(t, srv, "/tables/s1/ws", nil)
	readFrame(t, conn)

	send(t, conn, "table.history", "h1", historyPayload{Filter: `type = "UNIT_KILLED"`})
	reply, _ := readUntil(t, conn, "h1")
	var page historyEnvelope
	if err := json.Unmarshal(reply.Payload, &page); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(page.Events) != 1 || page.Events[0].Message != "Goblin a1 was killed." || page.Events[0].Seq != 7 {
		t.Fatalf("history = %+v", page)
	}
	if page.NextPageToken != pagination.EncodeSeqToken(7) {
		t.Fatalf("next token = %q", page.NextPageToken)
	}

	send(t, conn, "table.history", "h2", historyPayload{PageSize: 1000, PageToken: page.NextPageToken})
	reply, _ = readUntil(t, conn, "h2")
	if reply.Type != frameHistory {
		t.Fatalf("second page = %s %s", reply.Type, reply.Payload)
	}
}

func TestRenderUsesLocale(t *testing.T) {
	m := newMessages(nil)
	n := event.Notification{Type: event.TypeVictoryAchieved, Payload: map[string]string{"winner": "ana"}}
	if got := m.Render("pt-BR", n); got != "ana controla a maioria dos terrenos e vence." {
		t.Fatalf("pt-BR = %q", got)
	}
	if got := m.Render("xx-YY", n); got != "ana controls a majority of terrains and wins." {
		t.Fatalf("fallback = %q", got)
	}
	if got := m.Render("en-US", event.Notification{Type: event.TypeWarning}); got != "" {
		t.Fatalf("warning message = %q", got)
	}
	if m.resolveLocale("xx-YY") != "en-US" {
		t.Fatal("unknown locale should resolve to the base locale")
	}
}
