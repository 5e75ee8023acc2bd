package client

import (
	"context"

	"bitcoindrpc/internal/cache"
	"bitcoindrpc/internal/coerce"
	"bitcoindrpc/internal/jsonrpc"
	"bitcoindrpc/internal/procedure"
)

// Method is a callable procedure bound to a client
type Method struct {
	client *Client
	proc   *procedure.Procedure
}

// Name returns the procedure's declared name
func (m *Method) Name() string {
	return m.proc.Name()
}

// WireName returns the name sent to the daemon
func (m *Method) WireName() string {
	return m.proc.WireName()
}

// Params returns the declared parameter tags
func (m *Method) Params() []coerce.TypeTag {
	return m.proc.Params()
}

// Go coerces args and dispatches the call. Only the leading declared
// parameters are coerced; missing ones are left to the daemon to reject.
// A coercion failure reaches done before Go returns and nothing is sent.
func (m *Method) Go(ctx context.Context, done Callback, args ...any) {
	params, err := m.proc.CoerceArgs(args)
	if err != nil {
		done(nil, err)
		return
	}

	req := jsonrpc.NewRequest(m.proc.WireName(), params)
	c := m.client

	key, cacheable := m.cacheKey(params)
	if cacheable {
		if data, ok := c.cache.Get(key); ok {
			c.metrics.ObserveCache(req.Method, true)
			c.logger.Debug().Str("method", req.Method).Msg("cache hit")
			done(&jsonrpc.Response{Result: data, ID: req.ID}, nil)
			return
		}
		c.metrics.ObserveCache(req.Method, false)
	}

	c.dispatcher.Send(ctx, req, func(resp *jsonrpc.Response, err error) {
		if cacheable && err == nil && !resp.ResultIsNull() {
			c.cache.Set(key, resp.Result)
		}
		done(resp, err)
	})
}

// Call is the blocking form of Go
func (m *Method) Call(ctx context.Context, args ...any) (*jsonrpc.Response, error) {
	type outcome struct {
		resp *jsonrpc.Response
		err  error
	}
	ch := make(chan outcome, 1)
	m.Go(ctx, func(resp *jsonrpc.Response, err error) {
		ch <- outcome{resp, err}
	}, args...)

	o := <-ch
	return o.resp, o.err
}

func (m *Method) cacheKey(params []any) (string, bool) {
	c := m.client
	if !c.cachePolicy.IsCacheable(m.proc.WireName()) {
		return "", false
	}
	return cache.GenerateCacheKey(m.proc.WireName(), params)
}
