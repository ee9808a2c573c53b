package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	wrapped := fmt.Errorf("assign: %w", NewForbidden("only admins can assign tickets to teams"))

	de := ToDomainError(wrapped)
	if de.Code != CodeForbidden {
		t.Fatalf("expected %s, got %s", CodeForbidden, de.Code)
	}
	if de.HTTPStatus != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", de.HTTPStatus)
	}
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("connection reset")
	de := ToDomainError(cause)
	if de.Code != CodeInternal {
		t.Fatalf("expected %s, got %s", CodeInternal, de.Code)
	}
	if !errors.Is(de, cause) {
		t.Error("expected internal error to unwrap to cause")
	}
	if ToDomainError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestHasCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"precondition", NewPreconditionFailed("paused", nil), CodePrecondition, true},
		{"validation mismatch", NewValidationError("bad", nil), CodeConflict, false},
		{"plain error", errors.New("x"), CodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode() = %v, want %v", got, tt.want)
			}
		})
	}
}
