package binance

import (
	"errors"
	"fmt"
	"testing"

	"github.com/andriipushkar/scalpbot/internal/types"
)

func TestAPIError_SentinelMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		status int
		want   error
	}{
		{"unknown order", -2011, 400, types.ErrUnknownOrder},
		{"reduce only rejected", -2022, 400, types.ErrReduceOnlyRejected},
		{"order would trigger immediately", -2021, 400, types.ErrReduceOnlyRejected},
		{"too many requests", -1003, 429, types.ErrRateLimitExceeded},
		{"margin insufficient", -2019, 400, types.ErrInsufficientBalance},
		{"other bad request", -1111, 400, types.ErrOrderRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &APIError{HTTPStatus: tt.status, Code: tt.code, Message: tt.name}
			if !errors.Is(err, tt.want) {
				t.Fatalf("errors.Is(%v, %v) = false", err, tt.want)
			}
		})
	}
}

func TestAPIError_ServerErrorMapsToNothing(t *testing.T) {
	err := &APIError{HTTPStatus: 500, Code: -1000, Message: "internal error"}
	for _, sentinel := range []error{
		types.ErrOrderRejected,
		types.ErrUnknownOrder,
		types.ErrReduceOnlyRejected,
	} {
		if errors.Is(err, sentinel) {
			t.Fatalf("500 response should not map to %v", sentinel)
		}
	}
}

func TestAPIError_SurvivesWrapping(t *testing.T) {
	inner := &APIError{HTTPStatus: 400, Code: -2011, Message: "Unknown order sent."}
	wrapped := fmt.Errorf("cancel BTCUSDT sl-1: %w", inner)

	if !errors.Is(wrapped, types.ErrUnknownOrder) {
		t.Fatal("wrapped APIError lost its sentinel mapping")
	}
	var apiErr *APIError
	if !asAPIError(wrapped, &apiErr) {
		t.Fatal("asAPIError failed on wrapped error")
	}
	if apiErr.Code != -2011 {
		t.Fatalf("Code = %d, want -2011", apiErr.Code)
	}
}

func TestParseAPIError(t *testing.T) {
	err := parseAPIError(400, []byte(`{"code":-2019,"msg":"Margin is insufficient."}`))

	var apiErr *APIError
	if !asAPIError(err, &apiErr) {
		t.Fatalf("parseAPIError returned %T, want *APIError", err)
	}
	if apiErr.Code != -2019 {
		t.Fatalf("Code = %d, want -2019", apiErr.Code)
	}
	if apiErr.Message != "Margin is insufficient." {
		t.Fatalf("Message = %q", apiErr.Message)
	}
	if apiErr.HTTPStatus != 400 {
		t.Fatalf("HTTPStatus = %d, want 400", apiErr.HTTPStatus)
	}
	if !errors.Is(err, types.ErrInsufficientBalance) {
		t.Fatal("expected ErrInsufficientBalance mapping")
	}
}

func TestParseAPIError_UndecodableBody(t *testing.T) {
	err := parseAPIError(503, []byte("<html>service unavailable</html>"))

	var apiErr *APIError
	if !asAPIError(err, &apiErr) {
		t.Fatalf("parseAPIError returned %T, want *APIError", err)
	}
	if apiErr.HTTPStatus != 503 {
		t.Fatalf("HTTPStatus = %d, want 503", apiErr.HTTPStatus)
	}
	if apiErr.Message != "<html>service unavailable</html>" {
		t.Fatalf("Message = %q", apiErr.Message)
	}
}
