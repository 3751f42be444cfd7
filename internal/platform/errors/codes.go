// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Taxonomy roots. Every engine error carries one of these or a
	// narrower code that maps to the same class.
	CodeValidation         Code = "VALIDATION"
	CodeStateSequence      Code = "STATE_SEQUENCE"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"

	// Input errors
	CodeFieldRequired        Code = "FIELD_REQUIRED"
	CodeDiceTokenUnknown     Code = "DICE_TOKEN_UNKNOWN"
	CodeDiceCountInvalid     Code = "DICE_COUNT_INVALID"
	CodeDragonFaceUnknown    Code = "DRAGON_FACE_UNKNOWN"
	CodeActionTypeInvalid    Code = "ACTION_TYPE_INVALID"
	CodeDirectionInvalid     Code = "DIRECTION_INVALID"
	CodeChoiceTypeInvalid    Code = "CHOICE_TYPE_INVALID"
	CodeStrategyInvalid      Code = "STRATEGY_INVALID"
	CodeAllocationInvalid    Code = "ALLOCATION_INVALID"
	CodeRosterInvalid        Code = "ROSTER_INVALID"
	CodeFilterInvalid        Code = "FILTER_INVALID"
	CodeTerrainFaceInvalid   Code = "TERRAIN_FACE_INVALID"
	CodePromotionUnavailable Code = "PROMOTION_UNAVAILABLE"
	CodeSpellUnknown         Code = "SPELL_UNKNOWN"
	CodeSpellNotCastable     Code = "SPELL_NOT_CASTABLE"

	// Lookup errors
	CodePlayerNotFound  Code = "PLAYER_NOT_FOUND"
	CodeArmyNotFound    Code = "ARMY_NOT_FOUND"
	CodeUnitNotFound    Code = "UNIT_NOT_FOUND"
	CodeTerrainNotFound Code = "TERRAIN_NOT_FOUND"
	CodeEffectNotFound  Code = "EFFECT_NOT_FOUND"
	CodeDragonNotFound  Code = "DRAGON_NOT_FOUND"
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// Invariant errors
	CodeNegativeHealth Code = "NEGATIVE_HEALTH"
	CodeHealthAboveMax Code = "HEALTH_ABOVE_MAX"

	// Seat grant errors
	CodeSeatGrantInvalid  Code = "SEAT_GRANT_INVALID"
	CodeSeatGrantExpired  Code = "SEAT_GRANT_EXPIRED"
	CodeSeatGrantMismatch Code = "SEAT_GRANT_MISMATCH"
	CodeSeatNotActing     Code = "SEAT_NOT_ACTING"

	// Session errors
	CodeSessionExists Code = "SESSION_EXISTS"
	CodeGameOver      Code = "GAME_OVER"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeValidation,
		CodeFieldRequired,
		CodeDiceTokenUnknown,
		CodeDiceCountInvalid,
		CodeDragonFaceUnknown,
		CodeActionTypeInvalid,
		CodeDirectionInvalid,
		CodeChoiceTypeInvalid,
		CodeStrategyInvalid,
		CodeAllocationInvalid,
		CodeRosterInvalid,
		CodeFilterInvalid,
		CodeTerrainFaceInvalid,
		CodeSpellUnknown,
		CodeSeatGrantInvalid,
		CodeSeatGrantMismatch:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeStateSequence,
		CodePromotionUnavailable,
		CodeSpellNotCastable,
		CodeSeatGrantExpired,
		CodeSeatNotActing,
		CodeGameOver:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodePlayerNotFound,
		CodeArmyNotFound,
		CodeUnitNotFound,
		CodeTerrainNotFound,
		CodeEffectNotFound,
		CodeDragonNotFound,
		CodeSessionNotFound:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodeSessionExists:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}

// Class collapses a narrow code into its taxonomy root.
func (c Code) Class() Code {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return CodeValidation
	case codes.FailedPrecondition, codes.AlreadyExists:
		return CodeStateSequence
	case codes.NotFound:
		return CodeNotFound
	}
	if c == CodeNegativeHealth || c == CodeHealthAboveMax || c == CodeInvariantViolation {
		return CodeInvariantViolation
	}
	return CodeUnknown
}
