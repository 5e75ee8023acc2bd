package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bitcoindrpc/internal/jsonrpc"
)

var (
	// ErrBatchInProgress is returned when a batch window is already open
	// on the client
	ErrBatchInProgress = errors.New("batch window already open")
	// ErrBatchClosed is returned by Add once the window has closed
	ErrBatchClosed = errors.New("batch window closed")
)

// BatchCallback receives the responses of a batch, in call order
type BatchCallback func(resps []*jsonrpc.Response, err error)

// Batch accumulates calls during a RunBatch window. It is only valid
// inside the build function it was passed to.
type Batch struct {
	client *Client
	calls  []*jsonrpc.Request
	closed bool
	mu     sync.Mutex
}

// Add coerces args for the named procedure and queues the call. Batched
// calls take no per-call callback; results arrive with the whole batch.
func (b *Batch) Add(name string, args ...any) error {
	m, err := b.client.Method(name)
	if err != nil {
		return err
	}
	return b.AddMethod(m, args...)
}

// AddMethod queues a call to an already resolved method
func (b *Batch) AddMethod(m *Method, args ...any) error {
	params, err := m.proc.CoerceArgs(args)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBatchClosed
	}
	b.calls = append(b.calls, jsonrpc.NewBatchRequest(m.proc.WireName(), params))
	return nil
}

// Len returns the number of queued calls
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// close ends the window and hands over the queued calls
func (b *Batch) close() []*jsonrpc.Request {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	calls := b.calls
	b.calls = nil
	return calls
}

// RunBatch opens a batch window, runs build synchronously, then submits
// every call queued by build as one array request. done receives the
// responses positionally correlated with the queued calls.
//
// If build returns an error nothing is sent and the error is returned. If
// build panics the window is closed and the panic propagates. An empty
// batch completes with no responses and no network exchange.
func (c *Client) RunBatch(ctx context.Context, build func(*Batch) error, done BatchCallback) error {
	if !c.batching.CompareAndSwap(false, true) {
		return ErrBatchInProgress
	}

	b := &Batch{client: c}
	calls, err := c.collect(b, build)
	if err != nil {
		return fmt.Errorf("batch build failed: %w", err)
	}

	if len(calls) == 0 {
		done(nil, nil)
		return nil
	}

	c.logger.Debug().Int("calls", len(calls)).Msg("submitting batch")
	c.dispatcher.SendBatch(ctx, calls, done)
	return nil
}

// collect runs build inside the window and always closes it
func (c *Client) collect(b *Batch, build func(*Batch) error) (calls []*jsonrpc.Request, err error) {
	defer func() {
		calls = b.close()
		c.batching.Store(false)
		if err != nil {
			calls = nil
		}
	}()
	err = build(b)
	return calls, err
}

// CallBatch is the blocking form of RunBatch
func (c *Client) CallBatch(ctx context.Context, build func(*Batch) error) ([]*jsonrpc.Response, error) {
	type outcome struct {
		resps []*jsonrpc.Response
		err   error
	}
	ch := make(chan outcome, 1)
	err := c.RunBatch(ctx, build, func(resps []*jsonrpc.Response, err error) {
		ch <- outcome{resps, err}
	})
	if err != nil {
		return nil, err
	}

	o := <-ch
	return o.resps, o.err
}
