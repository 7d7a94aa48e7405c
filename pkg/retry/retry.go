// Package retry provides the one automatic retry in the system: bounded
// attempts with a fixed backoff, used by provider discovery. Every other
// cross-system step fails fast.
package retry

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("retry")

// Fixed runs f up to attempts times, sleeping backoff between attempts.
// The last error is returned when every attempt fails.
func Fixed[T any](ctx context.Context, attempts int, backoff time.Duration, f func() (T, error)) (result T, err error) {
	for i := 0; i < attempts; i++ {
		if i > 0 {
			log.Infof("retrying after error: %s", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
		result, err = f()
		if err == nil {
			return result, nil
		}
	}
	log.Warnf("failed after %d attempts: %s", attempts, err)
	return result, err
}
