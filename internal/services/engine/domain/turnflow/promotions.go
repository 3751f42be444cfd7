package turnflow

import (
	apperrors "github.com/louisbranch/dragondice/internal/platform/errors"
	"github.com/louisbranch/dragondice/internal/services/engine/domain/game"
)

// ExecuteSinglePromotion spends one owed promotion of the player's army to
// exchange unitID for candidateID.
func (c *Controller) ExecuteSinglePromotion(player string, armyType game.ArmyType, unitID, candidateID string) error {
	return c.run(func() error {
		id := game.ArmyID{Player: player, Type: armyType}
		if c.st.promotions[id] == 0 {
			return apperrors.WithMetadata(apperrors.CodeStateSequence, "no promotion owed to army", apperrors.Field("army", id.String()))
		}
		res, err := c.promo.ExecuteSingle(id, unitID, candidateID)
		if err != nil {
			return err
		}
		c.st.promotions[id]--
		if c.st.promotions[id] == 0 {
			delete(c.st.promotions, id)
		}
		c.note("army", id.String())
		c.note("promoted", len(res.Promoted))
		return nil
	})
}

// ExecuteMassPromotion promotes as many units as the army is owed, capped
// at limit when limit is positive.
func (c *Controller) ExecuteMassPromotion(player string, armyType game.ArmyType, limit int) error {
	return c.run(func() error {
		id := game.ArmyID{Player: player, Type: armyType}
		owed := c.st.massPromos[id]
		if owed == 0 {
			return apperrors.WithMetadata(apperrors.CodeStateSequence, "no mass promotion owed to army", apperrors.Field("army", id.String()))
		}
		if limit <= 0 || limit > owed {
			limit = owed
		}
		res, err := c.promo.ExecuteMass(id, limit)
		if err != nil {
			return err
		}
		delete(c.st.massPromos, id)
		c.note("army", id.String())
		c.note("promoted", len(res.Promoted))
		return nil
	})
}
