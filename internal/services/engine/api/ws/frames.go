package ws

import (
	"encoding/json"
	"errors"
	"log"

	"google.golang.org/grpc/status"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	errori18n "github.com/louisbranch/dragondice/internal/platform/errors/i18n"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/damage"
)

// Frame types sent by the server.
const (
	frameAck     = "table.ack"
	frameError   = "table.error"
	frameEvent   = "table.event"
	frameState   = "table.state"
	frameHistory = "table.history"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code     string            `json:"code"`
	Status   string            `json:"status"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type rollPayload struct {
	Roll string `json:"roll"`
}

type armyPayload struct {
	Army string `json:"army"`
}

type decisionPayload struct {
	Yes bool `json:"yes"`
}

type maneuverRollsPayload struct {
	Roll         string            `json:"roll"`
	CounterRolls map[string]string `json:"counter_rolls"`
}

type maneuverTotalsPayload struct {
	Maneuver int `json:"maneuver"`
	Counter  int `json:"counter"`
}

type directionPayload struct {
	Direction int `json:"direction"`
}

type selectActionPayload struct {
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
}

type allocationPayload struct {
	Unit   string `json:"unit"`
	Damage int    `json:"damage"`
}

type savesPayload struct {
	Roll        string              `json:"roll"`
	Allocations []allocationPayload `json:"allocations,omitempty"`
}

type dragonAttackPayload struct {
	Terrain      string              `json:"terrain"`
	Faces        map[string]string   `json:"faces"`
	ArmyRoll     string              `json:"army_roll,omitempty"`
	StrikeTarget string              `json:"strike_target,omitempty"`
	Saves        string              `json:"saves,omitempty"`
	Allocations  []allocationPayload `json:"allocations,omitempty"`
}

type choicePayload struct {
	Type      string `json:"type"`
	Terrain   string `json:"terrain,omitempty"`
	Option    string `json:"option"`
	Unit      string `json:"unit,omitempty"`
	Candidate string `json:"candidate,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Dragon    string `json:"dragon,omitempty"`
	Target    string `json:"target,omitempty"`
	Face      string `json:"face,omitempty"`
}

type spellCastPayload struct {
	Spell   string `json:"spell"`
	Element string `json:"element,omitempty"`
	Army    string `json:"army,omitempty"`
	Terrain string `json:"terrain,omitempty"`
	Unit    string `json:"unit,omitempty"`
}

type castSpellsPayload struct {
	Casts []spellCastPayload `json:"casts"`
}

type reserveMovePayload struct {
	Unit    string `json:"unit"`
	Terrain string `json:"terrain"`
}

type reserveMovesPayload struct {
	Moves []reserveMovePayload `json:"moves"`
}

type promotePayload struct {
	Army      string `json:"army"`
	Unit      string `json:"unit"`
	Candidate string `json:"candidate"`
}

type massPromotePayload struct {
	Army  string `json:"army"`
	Limit int    `json:"limit,omitempty"`
}

type historyPayload struct {
	Filter    string `json:"filter,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

type eventEnvelope struct {
	Seq       uint64            `json:"seq,omitempty"`
	Type      string            `json:"type"`
	Turn      int               `json:"turn"`
	Player    string            `json:"player,omitempty"`
	Phase     string            `json:"phase,omitempty"`
	Timestamp string            `json:"timestamp"`
	Payload   map[string]string `json:"payload,omitempty"`
	Message   string            `json:"message,omitempty"`
}

type historyEnvelope struct {
	Events        []eventEnvelope `json:"events"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

func allocations(in []allocationPayload) []damage.Allocation {
	if in == nil {
		return nil
	}
	out := make([]damage.Allocation, len(in))
	for i, a := range in {
		out[i] = damage.Allocation{UnitID: a.Unit, Damage: a.Damage}
	}
	return out
}

// errorFrame renders err for locale. Errors outside the engine taxonomy are
// reported as UNKNOWN with a generic message.
func errorFrame(requestID, locale string, err error) wsFrame {
	var de *apperrors.Error
	if !errors.As(err, &de) {
		log.Printf("table call failed: %v", err)
		de = apperrors.Wrap(apperrors.CodeUnknown, "internal error", err)
	}
	message := errori18n.GetCatalog(locale).Format(string(de.Code), de.Metadata)
	st := status.Convert(de.ToGRPCStatus(locale, message))
	return wsFrame{
		Type:      frameError,
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{Error: wsError{
			Code:     string(de.Code),
			Status:   st.Code().String(),
			Message:  message,
			Metadata: de.Metadata,
		}}),
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
