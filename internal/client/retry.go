package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"bitcoindrpc/internal/jsonrpc"
	"bitcoindrpc/internal/rpcerror"
)

const (
	DefaultRetryInitialInterval = 250 * time.Millisecond
	DefaultRetryMaxInterval     = 5 * time.Second
	DefaultRetryMaxElapsedTime  = 30 * time.Second
)

// RetryOptions configure CallWithRetry
type RetryOptions struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsedTime of 0 retries until ctx is done
	MaxElapsedTime time.Duration
}

// DefaultRetryOptions returns the default backoff settings
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		InitialInterval: DefaultRetryInitialInterval,
		MaxInterval:     DefaultRetryMaxInterval,
		MaxElapsedTime:  DefaultRetryMaxElapsedTime,
	}
}

// CallWithRetry calls the named procedure, retrying with exponential
// backoff while the daemon reports its work queue as full. Every other
// error is returned immediately.
func (c *Client) CallWithRetry(ctx context.Context, opts RetryOptions, name string, args ...any) (*jsonrpc.Response, error) {
	m, err := c.Method(name)
	if err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.InitialInterval
	b.MaxInterval = opts.MaxInterval
	b.MaxElapsedTime = opts.MaxElapsedTime

	attempt := 0
	var resp *jsonrpc.Response
	err = backoff.Retry(func() error {
		attempt++
		var err error
		resp, err = m.Call(ctx, args...)
		if err == nil {
			return nil
		}
		if !rpcerror.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.Warn().
			Err(err).
			Str("method", m.WireName()).
			Int("attempt", attempt).
			Msg("node overloaded, retrying")
		return err
	}, backoff.WithContext(b, ctx))

	return resp, err
}
