package outcome

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestTransport_WrapsUnclassified(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transport("optical_get_stages", cause)
	if !IsTransport(err) {
		t.Fatalf("expected TransportError, got %T", err)
	}
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}

func TestTransport_KeepsClassified(t *testing.T) {
	v := Invalid("policy_number", "Policy Number is required")
	if got := Transport("create", v); got != v {
		t.Errorf("expected validation error to pass through, got %v", got)
	}
	b := Rejected("optical_change_test_stage", "Test not found.")
	if got := Transport("create", fmt.Errorf("wrapped: %w", b)); !IsBackend(got) {
		t.Errorf("expected backend error to pass through, got %T", got)
	}
}

func TestTransport_Nil(t *testing.T) {
	if Transport("op", nil) != nil {
		t.Error("expected nil")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", Invalid("axis_od", "OD Axis must be between 0 and 180."), "OD Axis must be between 0 and 180."},
		{"backend", Rejected("op", "Stage 'X' not found."), "Stage 'X' not found."},
		{"transport", Transport("op", errors.New("dial tcp: timeout")), GenericFailure},
		{"plain", errors.New("boom"), GenericFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	if HTTPStatus(Invalid("f", "m")) != http.StatusBadRequest {
		t.Error("validation should map to 400")
	}
	if HTTPStatus(Rejected("op", "m")) != http.StatusUnprocessableEntity {
		t.Error("backend should map to 422")
	}
	if HTTPStatus(Transport("op", errors.New("x"))) != http.StatusBadGateway {
		t.Error("transport should map to 502")
	}
}
