package turnflow

import (
	"slices"

	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/event"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// ReserveMove moves one unit between the reserve area and the player's army
// at Terrain.
type ReserveMove struct {
	Unit    string
	Terrain string
}

// ReinforceFromReserves moves units from the reserve area, or from an army
// waiting in reserves, into the player's armies on terrains. Reinforcing
// closes once the player retreats.
func (c *Controller) ReinforceFromReserves(player string, moves []ReserveMove) error {
	return c.run(func() error {
		if err := c.expectPhase(player, PhaseReserves); err != nil {
			return err
		}
		if c.st.retreated {
			return sequenceErr("reinforcements come before retreats", string(PhaseReserves))
		}
		areas, err := c.store.Areas(player)
		if err != nil {
			return err
		}
		for _, m := range moves {
			dest, err := c.armyOn(player, m.Terrain)
			if err != nil {
				return err
			}
			u, ok := c.fromReserves(player, &areas, m.Unit)
			if !ok {
				return apperrors.WithMetadata(apperrors.CodeUnitNotFound, "unit is not in reserves", apperrors.Field("unit_id", m.Unit))
			}
			dest.Units = append(dest.Units, u)
			if err := c.store.PutArmy(dest); err != nil {
				return err
			}
			c.st.reinforced = append(c.st.reinforced, u.ID)
			c.emitMoved("reinforce", u, game.ReserveArea, dest)
		}
		return c.putAreasAndEvaluate(player, areas)
	})
}

// RetreatToReserves moves units off terrains into the reserve area. Units
// that reinforced this phase stay put.
func (c *Controller) RetreatToReserves(player string, moves []ReserveMove) error {
	return c.run(func() error {
		if err := c.expectPhase(player, PhaseReserves); err != nil {
			return err
		}
		areas, err := c.store.Areas(player)
		if err != nil {
			return err
		}
		for _, m := range moves {
			if slices.Contains(c.st.reinforced, m.Unit) {
				return apperrors.WithMetadata(apperrors.CodeStateSequence, "unit reinforced this phase", apperrors.Field("unit_id", m.Unit))
			}
			src, err := c.armyOn(player, m.Terrain)
			if err != nil {
				return err
			}
			u, rest, ok := take(src.Units, m.Unit)
			if !ok || !u.Alive() {
				return apperrors.WithMetadata(apperrors.CodeUnitNotFound, "unit is not in the army", apperrors.Field("unit_id", m.Unit))
			}
			src.Units = rest
			if err := c.store.PutArmy(src); err != nil {
				return err
			}
			areas.Reserves = append(areas.Reserves, u)
			c.emitMoved("retreat", u, src.Location, src)
		}
		c.st.retreated = true
		return c.putAreasAndEvaluate(player, areas)
	})
}

// armyOn returns player's army standing on terrain.
func (c *Controller) armyOn(player, terrain string) (game.Army, error) {
	if _, err := c.store.Terrain(terrain); err != nil {
		return game.Army{}, err
	}
	for _, a := range c.store.ArmiesAt(terrain) {
		if a.Owner() == player {
			return a, nil
		}
	}
	return game.Army{}, apperrors.WithMetadata(apperrors.CodeArmyNotFound, "player has no army at terrain", apperrors.Field("terrain", terrain))
}

// fromReserves takes unit id out of the reserve area or out of one of the
// player's armies waiting in reserves.
func (c *Controller) fromReserves(player string, areas *game.Areas, id string) (game.Unit, bool) {
	if u, rest, ok := take(areas.Reserves, id); ok {
		areas.Reserves = rest
		return u, true
	}
	for _, a := range c.store.ArmiesAt(game.ReserveArea) {
		if a.Owner() != player {
			continue
		}
		u, rest, ok := take(a.Units, id)
		if !ok || !u.Alive() {
			continue
		}
		a.Units = rest
		if err := c.store.PutArmy(a); err != nil {
			return game.Unit{}, false
		}
		return u, true
	}
	return game.Unit{}, false
}

func (c *Controller) putAreasAndEvaluate(player string, areas game.Areas) error {
	if err := c.store.PutAreas(player, areas); err != nil {
		return err
	}
	changes, err := c.control.Evaluate()
	if err != nil {
		return err
	}
	c.noteControl(changes)
	return nil
}

func (c *Controller) emitMoved(kind string, u game.Unit, from string, army game.Army) {
	to := army.Location
	if kind == "retreat" {
		to = game.ReserveArea
	}
	c.emit(event.TypeUnitsMoved, map[string]string{
		"kind":    kind,
		"unit_id": u.ID,
		"name":    u.Name,
		"army":    army.ID.String(),
		"from":    from,
		"to":      to,
	})
}
