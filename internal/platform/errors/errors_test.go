package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	t.Parallel()

	base := New(CodeTicketNotActive, "ticket is not active")
	detailed := WithMetadata(CodeTicketNotActive, "ticket t-1 is cancelled", map[string]string{"ticket_id": "t-1"})

	if !errors.Is(detailed, base) {
		t.Fatal("expected errors with the same code to match")
	}
	if errors.Is(detailed, New(CodeTicketNotFound, "ticket not found")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	wrapped := Wrap(CodeStorageFailure, "put ticket", cause)

	if !errors.Is(wrapped, cause) {
		t.Fatal("expected wrapped cause to be discoverable")
	}
	if wrapped.Error() != "put ticket" {
		t.Fatalf("message = %q, want internal message", wrapped.Error())
	}
}

func TestCodeOfWalksErrorChain(t *testing.T) {
	t.Parallel()

	inner := New(CodeAlreadyActiveTicket, "user has an active ticket")
	outer := fmt.Errorf("create ticket: %w", inner)

	if got := CodeOf(outer); got != CodeAlreadyActiveTicket {
		t.Fatalf("code = %q, want %q", got, CodeAlreadyActiveTicket)
	}
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
	if got := CodeOf(nil); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want int
	}{
		{CodeNotAuthenticated, http.StatusUnauthorized},
		{CodeSessionGrantExpired, http.StatusUnauthorized},
		{CodeInvalidCriteria, http.StatusBadRequest},
		{CodeAlreadyActiveTicket, http.StatusConflict},
		{CodeTicketNotActive, http.StatusConflict},
		{CodeTicketNotFound, http.StatusNotFound},
		{CodeTicketNotOwner, http.StatusForbidden},
		{CodeStorageFailure, http.StatusInternalServerError},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s status = %d, want %d", tc.code, got, tc.want)
		}
	}
}
