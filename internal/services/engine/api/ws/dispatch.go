package ws

import (
	"context"
	"encoding/json"
	"strings"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/platform/pagination"
	"github.com/louisbranch/dragondice/internal/platform/timeouts"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/terrain"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/turnflow"
	"github.com/louisbranch/dragondice/internal/services/engine/storage"
)

var historyPageSize = pagination.PageSizeConfig{Default: 50, Max: 200}

// move is a seated player's call into the controller. payload is the raw
// frame payload.
type move func(c *turnflow.Controller, player string, payload json.RawMessage) error

var moves = map[string]move{
	"table.advance": func(c *turnflow.Controller, player string, _ json.RawMessage) error {
		return c.AdvancePhase(player)
	},
	"table.choose_army": withPayload(func(c *turnflow.Controller, player string, in armyPayload) error {
		return c.ChooseActingArmy(player, game.ArmyType(strings.ToLower(strings.TrimSpace(in.Army))))
	}),
	"table.decide_maneuver": withPayload(func(c *turnflow.Controller, player string, in decisionPayload) error {
		return c.DecideManeuver(player, in.Yes)
	}),
	"table.counter_maneuver": withPayload(func(c *turnflow.Controller, player string, in decisionPayload) error {
		return c.SubmitCounterManeuverDecision(player, in.Yes)
	}),
	"table.maneuver_rolls": withPayload(func(c *turnflow.Controller, player string, in maneuverRollsPayload) error {
		if c.State().Player != player {
			return apperrors.WithMetadata(apperrors.CodeSeatNotActing, "only the maneuvering player reports every roll at once", apperrors.Field("player", player))
		}
		return c.SubmitManeuverRollResults(in.Roll, in.CounterRolls)
	}),
	"table.maneuver_totals": withPayload(func(c *turnflow.Controller, player string, in maneuverTotalsPayload) error {
		if c.State().Player != player {
			return apperrors.WithMetadata(apperrors.CodeSeatNotActing, "only the maneuvering player reports the totals", apperrors.Field("player", player))
		}
		return c.SubmitManeuverTotals(in.Maneuver, in.Counter)
	}),
	"table.maneuver_roll": withPayload(func(c *turnflow.Controller, player string, in rollPayload) error {
		return c.SubmitManeuverResults(player, in.Roll)
	}),
	"table.direction": withPayload(func(c *turnflow.Controller, player string, in directionPayload) error {
		return c.ChooseTerrainDirection(player, in.Direction)
	}),
	"table.select_action": withPayload(func(c *turnflow.Controller, player string, in selectActionPayload) error {
		return c.SelectAction(player, in.Action, in.Target)
	}),
	"table.melee": withPayload(func(c *turnflow.Controller, player string, in rollPayload) error {
		return c.SubmitMeleeResults(player, in.Roll)
	}),
	"table.missile": withPayload(func(c *turnflow.Controller, player string, in rollPayload) error {
		return c.SubmitMissileResults(player, in.Roll)
	}),
	"table.magic": withPayload(func(c *turnflow.Controller, player string, in rollPayload) error {
		return c.SubmitMagicResults(player, in.Roll)
	}),
	"table.cast_spells": withPayload(func(c *turnflow.Controller, player string, in castSpellsPayload) error {
		casts, err := spellCasts(in)
		if err != nil {
			return err
		}
		return c.CastSpells(player, casts)
	}),
	"table.saves": withPayload(func(c *turnflow.Controller, player string, in savesPayload) error {
		return c.SubmitDefenderSaveResults(player, in.Roll, allocations(in.Allocations))
	}),
	"table.counter_attack": withPayload(func(c *turnflow.Controller, player string, in rollPayload) error {
		return c.SubmitCounterAttackResults(player, in.Roll)
	}),
	"table.dragon_attack": withPayload(func(c *turnflow.Controller, player string, in dragonAttackPayload) error {
		return c.SubmitDragonAttackResults(player, turnflow.DragonAttackInput{
			Terrain:      in.Terrain,
			Faces:        in.Faces,
			ArmyRoll:     in.ArmyRoll,
			StrikeTarget: in.StrikeTarget,
			Saves:        in.Saves,
			Allocations:  allocations(in.Allocations),
		})
	}),
	"table.eighth_face_choice": withPayload(func(c *turnflow.Controller, player string, in choicePayload) error {
		input, err := choiceInput(in)
		if err != nil {
			return err
		}
		return c.ApplyEighthFacePlayerChoice(player, input)
	}),
	"table.reinforce": withPayload(func(c *turnflow.Controller, player string, in reserveMovesPayload) error {
		return c.ReinforceFromReserves(player, reserveMoves(in))
	}),
	"table.retreat": withPayload(func(c *turnflow.Controller, player string, in reserveMovesPayload) error {
		return c.RetreatToReserves(player, reserveMoves(in))
	}),
	"table.promote": withPayload(func(c *turnflow.Controller, player string, in promotePayload) error {
		return c.ExecuteSinglePromotion(player, game.ArmyType(strings.ToLower(in.Army)), in.Unit, in.Candidate)
	}),
	"table.mass_promote": withPayload(func(c *turnflow.Controller, player string, in massPromotePayload) error {
		return c.ExecuteMassPromotion(player, game.ArmyType(strings.ToLower(in.Army)), in.Limit)
	}),
}

// withPayload decodes the frame payload into T before calling fn.
func withPayload[T any](fn func(*turnflow.Controller, string, T) error) move {
	return func(c *turnflow.Controller, player string, raw json.RawMessage) error {
		var in T
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &in); err != nil {
				return apperrors.Wrap(apperrors.CodeValidation, "invalid payload", err)
			}
		}
		return fn(c, player, in)
	}
}

func choiceInput(in choicePayload) (turnflow.ChoiceInput, error) {
	typ, err := terrain.ParseChoiceType(in.Type)
	if err != nil {
		return turnflow.ChoiceInput{}, err
	}
	out := turnflow.ChoiceInput{
		Type:      typ,
		Terrain:   in.Terrain,
		Option:    terrain.Option(strings.ToLower(strings.TrimSpace(in.Option))),
		Unit:      in.Unit,
		Candidate: in.Candidate,
		Owner:     in.Owner,
		Dragon:    in.Dragon,
	}
	if in.Target != "" {
		if out.Target, err = game.ParseArmyID(in.Target); err != nil {
			return turnflow.ChoiceInput{}, apperrors.Wrap(apperrors.CodeArmyNotFound, "invalid tower target", err)
		}
	}
	if in.Face != "" {
		face, ok := game.ParseEighthFace(in.Face)
		if !ok {
			return turnflow.ChoiceInput{}, apperrors.WithMetadata(apperrors.CodeChoiceTypeInvalid, "unknown eighth face "+in.Face, map[string]string{"Field": "face", "Value": in.Face})
		}
		out.Face = face
	}
	return out, nil
}

func spellCasts(in castSpellsPayload) ([]turnflow.SpellCast, error) {
	out := make([]turnflow.SpellCast, 0, len(in.Casts))
	for _, sc := range in.Casts {
		cast := turnflow.SpellCast{
			Spell:   sc.Spell,
			Element: game.Element(strings.ToUpper(strings.TrimSpace(sc.Element))),
			Terrain: sc.Terrain,
			Unit:    sc.Unit,
		}
		if sc.Army != "" {
			id, err := game.ParseArmyID(sc.Army)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeArmyNotFound, "invalid spell target", err)
			}
			cast.Army = id
		}
		out = append(out, cast)
	}
	return out, nil
}

func reserveMoves(in reserveMovesPayload) []turnflow.ReserveMove {
	out := make([]turnflow.ReserveMove, len(in.Moves))
	for i, m := range in.Moves {
		out[i] = turnflow.ReserveMove{Unit: m.Unit, Terrain: m.Terrain}
	}
	return out
}

// dispatch handles one inbound frame and returns the reply.
func (h *handler) dispatch(ctx context.Context, table Table, p *peer, frame wsFrame) wsFrame {
	switch frame.Type {
	case "table.state":
		return h.stateFrame(frame.RequestID, table)
	case "table.history":
		return h.history(ctx, table, p, frame)
	}

	mv, ok := moves[frame.Type]
	if !ok {
		return errorFrame(frame.RequestID, p.locale, apperrors.WithMetadata(apperrors.CodeValidation, "unsupported frame type", map[string]string{"Field": "type", "Value": frame.Type}))
	}
	if p.seat.Player == "" {
		return errorFrame(frame.RequestID, p.locale, apperrors.New(apperrors.CodeSeatNotActing, "spectators cannot act"))
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.TableCall)
	defer cancel()
	op := strings.TrimPrefix(frame.Type, "table.")
	err := table.Do(ctx, op, func(c *turnflow.Controller) error {
		return mv(c, p.seat.Player, frame.Payload)
	})
	if err != nil {
		return errorFrame(frame.RequestID, p.locale, err)
	}
	ack := h.stateFrame(frame.RequestID, table)
	ack.Type = frameAck
	return ack
}

func (h *handler) history(ctx context.Context, table Table, p *peer, frame wsFrame) wsFrame {
	if h.cfg.Journal == nil {
		return errorFrame(frame.RequestID, p.locale, apperrors.New(apperrors.CodeNotFound, "history is not journaled"))
	}
	var in historyPayload
	if len(frame.Payload) > 0 {
		if err := json.Unmarshal(frame.Payload, &in); err != nil {
			return errorFrame(frame.RequestID, p.locale, apperrors.Wrap(apperrors.CodeValidation, "invalid payload", err))
		}
	}
	after, err := pagination.DecodeSeqToken(in.PageToken)
	if err != nil {
		return errorFrame(frame.RequestID, p.locale, apperrors.WithMetadata(apperrors.CodeValidation, err.Error(), apperrors.Field("page_token", "")))
	}
	page, err := h.cfg.Journal.List(ctx, storage.Query{
		Session:  table.ID(),
		Filter:   in.Filter,
		PageSize: pagination.ClampPageSize(in.PageSize, historyPageSize),
		AfterSeq: after,
	})
	if err != nil {
		return errorFrame(frame.RequestID, p.locale, err)
	}
	out := historyEnvelope{Events: make([]eventEnvelope, 0, len(page.Notifications)), NextPageToken: pagination.EncodeSeqToken(page.NextSeq)}
	for _, n := range page.Notifications {
		out.Events = append(out.Events, h.messages.envelope(p.locale, n))
	}
	return wsFrame{Type: frameHistory, RequestID: frame.RequestID, Payload: mustJSON(out)}
}
