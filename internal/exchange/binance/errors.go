package binance

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andriipushkar/scalpbot/internal/types"
)

// APIError is a structured error response from the Binance API.
type APIError struct {
	HTTPStatus int
	Code       int    `json:"code"`
	Message    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api error %d (http %d): %s", e.Code, e.HTTPStatus, e.Message)
}

// Unwrap maps well-known API codes to the sentinels the lifecycle logic
// branches on.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case codeUnknownOrder:
		return types.ErrUnknownOrder
	case codeReduceOnlyRejected, codeOrderWouldTrigger:
		return types.ErrReduceOnlyRejected
	case codeTooManyRequests:
		return types.ErrRateLimitExceeded
	case codeMarginInsufficient:
		return types.ErrInsufficientBalance
	default:
		if e.HTTPStatus == 400 {
			return types.ErrOrderRejected
		}
		return nil
	}
}

// parseAPIError decodes an error body into an APIError; an undecodable body
// still yields an APIError carrying the HTTP status.
func parseAPIError(status int, body []byte) error {
	apiErr := &APIError{HTTPStatus: status}
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr.Message = string(body)
	}
	return apiErr
}

func asAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}
