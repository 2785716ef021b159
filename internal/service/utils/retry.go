package utils

import (
	"time"
)

// Retry runs fn up to maxAttempts times with exponential backoff between
// attempts, returning the first successful result or the last error.
func Retry[T any](maxAttempts int, initialDelay time.Duration, fn func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	delay := initialDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if attempt < maxAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return result, err
}
