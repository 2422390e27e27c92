package retry

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultBaseWait   = time.Second
	defaultMaxWait    = 30 * time.Second
)

type options struct {
	maxRetries int
	baseWait   time.Duration
	maxWait    time.Duration
}

// Option configures Do.
type Option func(*options)

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(o *options) { o.maxRetries = n }
}

// WithBaseWait sets the wait before the first retry. Subsequent waits double,
// with jitter, up to the maximum wait.
func WithBaseWait(d time.Duration) Option {
	return func(o *options) { o.baseWait = d }
}

// WithMaxWait caps the backoff wait.
func WithMaxWait(d time.Duration) Option {
	return func(o *options) { o.maxWait = d }
}

// Do runs fn, retrying recoverable errors with exponential backoff. The
// function always runs at least once. Non-recoverable errors and context
// cancellation stop the retries immediately. The last error from fn is
// returned, unwrapped from any recoverable marker.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	o := options{
		maxRetries: defaultMaxRetries,
		baseWait:   defaultBaseWait,
		maxWait:    defaultMaxWait,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var err error
	wait := o.baseWait
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsRecoverable(err) || attempt >= o.maxRetries {
			return unwrapRecoverable(err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter(wait)):
		}
		wait *= 2
		if wait > o.maxWait {
			wait = o.maxWait
		}
	}
}

// jitter spreads waits across 50-100% of the nominal duration so concurrent
// retries don't synchronize.
func jitter(d time.Duration) time.Duration {
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

func unwrapRecoverable(err error) error {
	switch e := err.(type) {
	case *recoverableError:
		return e.err
	case *NonRecoverableError:
		return e.err
	default:
		return err
	}
}
