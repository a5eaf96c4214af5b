// Package errors provides structured error handling for the game runtime.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors are rejected locally and never mutate state.
	CodeNotYourTurn        Code = "NOT_YOUR_TURN"
	CodeAlreadyEliminated  Code = "ALREADY_ELIMINATED"
	CodeInvalidTarget      Code = "INVALID_TARGET"
	CodeAlreadyInGame      Code = "ALREADY_IN_GAME"
	CodeGameFull           Code = "GAME_FULL"
	CodeNotInGame          Code = "NOT_IN_GAME"
	CodeGameAlreadyStarted Code = "GAME_ALREADY_STARTED"
	CodeGameTypeUnknown    Code = "GAME_TYPE_UNKNOWN"

	// Concurrency errors are transient; the caller may retry.
	CodeBusyTryAgain Code = "BUSY_TRY_AGAIN"

	// Lifecycle errors are terminal for the call.
	CodeNotEnoughPlayers  Code = "NOT_ENOUGH_PLAYERS"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeSessionNotFound   Code = "SESSION_NOT_FOUND"

	// Payout errors.
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodePayoutFailed        Code = "PAYOUT_FAILED"
	CodeCorruptedLedger     Code = "CORRUPTED_LEDGER"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - bad input
	case CodeInvalidTarget,
		CodeGameTypeUnknown:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeNotYourTurn,
		CodeAlreadyEliminated,
		CodeAlreadyInGame,
		CodeGameFull,
		CodeNotInGame,
		CodeGameAlreadyStarted,
		CodeNotEnoughPlayers,
		CodeInvalidTransition,
		CodeInsufficientBalance,
		CodeCorruptedLedger:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeSessionNotFound:
		return codes.NotFound

	// Unavailable - transient contention
	case CodeBusyTryAgain:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
