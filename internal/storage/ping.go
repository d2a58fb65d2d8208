// Package storage holds helpers shared by the database backends.
package storage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultConnectTimeout bounds the startup ping loop when none is configured.
const DefaultConnectTimeout = 20 * time.Second

// WaitReady pings until the database answers or timeout elapses. The interval
// starts at one second and doubles up to a quarter of timeout.
func WaitReady(ctx context.Context, ping func(context.Context) error, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = time.Second
	eb.RandomizationFactor = 0
	eb.Multiplier = 2
	eb.MaxInterval = timeout / 4
	eb.MaxElapsedTime = timeout

	return backoff.Retry(func() error {
		return ping(ctx)
	}, backoff.WithContext(eb, ctx))
}
