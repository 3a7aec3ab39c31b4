package exchange

import "time"

const (
	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// Backoff returns the exponential backoff delay for a retry count:
// base * 2^retry, capped at backoffMax.
func Backoff(retry int) time.Duration {
	if retry < 0 {
		return backoffBase
	}
	if retry > 30 {
		return backoffMax
	}
	d := backoffBase * time.Duration(1<<retry)
	if d > backoffMax {
		return backoffMax
	}
	return d
}
