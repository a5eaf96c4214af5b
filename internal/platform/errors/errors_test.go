package errors

import (
	stderrors "errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeInvalidTarget, codes.InvalidArgument},
		{CodeGameTypeUnknown, codes.InvalidArgument},
		{CodeNotYourTurn, codes.FailedPrecondition},
		{CodeAlreadyEliminated, codes.FailedPrecondition},
		{CodeAlreadyInGame, codes.FailedPrecondition},
		{CodeGameFull, codes.FailedPrecondition},
		{CodeNotInGame, codes.FailedPrecondition},
		{CodeGameAlreadyStarted, codes.FailedPrecondition},
		{CodeNotEnoughPlayers, codes.FailedPrecondition},
		{CodeInvalidTransition, codes.FailedPrecondition},
		{CodeInsufficientBalance, codes.FailedPrecondition},
		{CodeCorruptedLedger, codes.FailedPrecondition},
		{CodeSessionNotFound, codes.NotFound},
		{CodeBusyTryAgain, codes.Unavailable},
		{CodePayoutFailed, codes.Internal},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.code, tc.want, got)
		}
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeGameFull, "lobby is full")
	if !stderrors.Is(err, New(CodeGameFull, "other message")) {
		t.Fatal("expected errors with same code to match")
	}
	if stderrors.Is(err, New(CodeNotInGame, "lobby is full")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk unavailable")
	err := Wrap(CodeUnknown, "persist session", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(CodeNotYourTurn, "not the selector")); got != CodeNotYourTurn {
		t.Fatalf("expected NOT_YOUR_TURN, got %s", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("expected UNKNOWN, got %s", got)
	}
}

func TestToGRPCStatusAttachesErrorInfo(t *testing.T) {
	err := WithMetadata(CodeNotEnoughPlayers, "not enough players", map[string]string{
		"required": "2",
		"current":  "1",
	})

	st, ok := status.FromError(err.ToGRPCStatus())
	if !ok {
		t.Fatal("expected grpc status error")
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", st.Code())
	}
	if len(st.Details()) == 0 {
		t.Fatal("expected error details")
	}
}
