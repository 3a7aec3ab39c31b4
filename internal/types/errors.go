package types

import "errors"

// Sentinel errors for the trading system.
var (
	// Order book errors
	ErrSequenceGap    = errors.New("order book sequence gap detected")
	ErrBufferOverflow = errors.New("pre-sync event buffer overflow")
	ErrBookNotSynced  = errors.New("order book not synced")

	// Coordinator errors
	ErrSymbolPending       = errors.New("symbol has an operation in flight")
	ErrMaxPositionsReached = errors.New("maximum open positions reached")
	ErrZeroQuantity        = errors.New("order quantity rounds to zero")
	ErrUnprotectedPosition = errors.New("position is missing a bracket order")

	// Exchange errors
	ErrOrderRejected       = errors.New("order rejected by exchange")
	ErrUnknownOrder        = errors.New("order not found on exchange")
	ErrReduceOnlyRejected  = errors.New("reduce-only order rejected")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrRateLimitExceeded   = errors.New("rate limit exceeded")
	ErrNotConnected        = errors.New("exchange not connected")

	// State errors
	ErrPositionNotFound = errors.New("position not found")
	ErrPositionMismatch = errors.New("position mismatch with exchange")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidSymbol = errors.New("invalid symbol")
	ErrInvalidSide   = errors.New("invalid side")
)
