package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCodeOfWrappedKind(t *testing.T) {
	err := fmt.Errorf("lending: borrow: %w", ErrInsufficientCollateralRatio)
	if got := CodeOf(err); got != CodeInsufficientCollateralRatio {
		t.Fatalf("unexpected code: got %d want %d", got, CodeInsufficientCollateralRatio)
	}
	if !stderrors.Is(err, ErrInsufficientCollateralRatio) {
		t.Fatalf("expected wrapped kind to match")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(stderrors.New("boom")); got != CodeUnknown {
		t.Fatalf("unexpected code for plain error: %d", got)
	}
	if got := CodeOf(nil); got != 0 {
		t.Fatalf("expected zero code for nil, got %d", got)
	}
}

func TestWrapKeepsKind(t *testing.T) {
	err := Wrap(ErrNotFound, "backup %d", 7)
	if err.Error() != "backup 7: not found" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if !stderrors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound to match")
	}
	if stderrors.Is(err, ErrInvalidInput) {
		t.Fatalf("unexpected match against a different kind")
	}
}
