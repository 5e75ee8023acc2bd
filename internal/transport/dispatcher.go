// Package transport performs authenticated JSON-RPC exchanges with the node
// daemon and classifies their outcome.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"bitcoindrpc/internal/config"
	"bitcoindrpc/internal/jsonrpc"
	"bitcoindrpc/internal/metrics"
	"bitcoindrpc/internal/rpcerror"
)

// batchLabel is the method label used for batch exchanges
const batchLabel = "batch"

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher sends request envelopes to a single node endpoint
type Dispatcher struct {
	endpoint string
	user     string
	password string
	headers  map[string]string
	host     string

	doer    Doer
	gate    *Gate
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Config for creating a new Dispatcher
type Config struct {
	// Endpoint is the full URL requests are posted to
	Endpoint         string
	User             string
	Password         string
	Headers          map[string]string
	// Host overrides the Host header when set
	Host             string
	ConcurrencyLimit int
	Doer             Doer
	Logger           zerolog.Logger
	Metrics          *metrics.Metrics
}

// New creates a Dispatcher. A nil Doer is replaced by http.DefaultClient.
func New(cfg Config) *Dispatcher {
	doer := cfg.Doer
	if doer == nil {
		doer = http.DefaultClient
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Dispatcher{
		endpoint: cfg.Endpoint,
		user:     cfg.User,
		password: cfg.Password,
		headers:  headers,
		host:     cfg.Host,
		doer:     doer,
		gate:     NewGate(cfg.ConcurrencyLimit, cfg.Metrics),
		logger:   cfg.Logger.With().Str("component", "dispatcher").Logger(),
		metrics:  cfg.Metrics,
	}
}

// NewFromConfig creates a Dispatcher for a client configuration. When doer
// is nil an HTTP client is built from cfg.
func NewFromConfig(cfg *config.Config, doer Doer, logger zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	if doer == nil {
		doer = NewHTTPClient(cfg)
	}
	return New(Config{
		Endpoint:         Endpoint(cfg),
		User:             cfg.User,
		Password:         cfg.Password,
		Headers:          cfg.GetHeaders(),
		Host:             cfg.GetHostHeader(),
		ConcurrencyLimit: cfg.ConcurrencyLimit,
		Doer:             doer,
		Logger:           logger,
		Metrics:          m,
	})
}

// Endpoint returns the URL requests for cfg are posted to
func Endpoint(cfg *config.Config) string {
	scheme := "https"
	if !cfg.UseTLS() {
		scheme = "http"
	}
	return scheme + "://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)) + cfg.GetPath()
}

// NewHTTPClient builds the HTTP client described by cfg
func NewHTTPClient(cfg *config.Config) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   cfg.DisableConnectionReuse,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.ShouldRejectUnauthorized(),
		},
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.GetRequestTimeoutDuration(),
	}
}

// Gate returns the dispatcher's concurrency gate
func (d *Dispatcher) Gate() *Gate {
	return d.gate
}

// Send posts a single request. It returns immediately; done fires exactly
// once, on another goroutine unless the request cannot be serialized.
func (d *Dispatcher) Send(ctx context.Context, req *jsonrpc.Request, done func(*jsonrpc.Response, error)) {
	start := time.Now()
	c := newCompletion(func(resp *jsonrpc.Response, err error) {
		d.metrics.ObserveRequest(req.Method, outcome(err), time.Since(start))
		done(resp, err)
	})

	body, err := req.Bytes()
	if err != nil {
		c.complete(nil, rpcerror.WrapCoercion("unserializable params", err))
		return
	}

	d.submit(ctx, req.Method, body, func(status int, data []byte, err error) {
		if err != nil {
			c.complete(nil, err)
			return
		}
		c.complete(d.decodeSingle(req.Method, status, data))
	})
}

// SendBatch posts requests as one array. Responses are positionally
// correlated with requests; done fires exactly once.
func (d *Dispatcher) SendBatch(ctx context.Context, reqs []*jsonrpc.Request, done func([]*jsonrpc.Response, error)) {
	start := time.Now()
	c := newCompletion(func(resps []*jsonrpc.Response, err error) {
		d.metrics.ObserveRequest(batchLabel, outcome(err), time.Since(start))
		done(resps, err)
	})
	d.metrics.ObserveBatch(len(reqs))

	body, err := jsonrpc.MarshalBatch(reqs)
	if err != nil {
		c.complete(nil, rpcerror.WrapCoercion("unserializable params", err))
		return
	}

	d.submit(ctx, batchLabel, body, func(status int, data []byte, err error) {
		if err != nil {
			c.complete(nil, err)
			return
		}
		c.complete(d.decodeBatch(status, data, len(reqs)))
	})
}

// submit reserves a gate slot synchronously, then runs the exchange in its
// own goroutine and hands the buffered body, or a classified error, to fn
func (d *Dispatcher) submit(ctx context.Context, method string, body []byte, fn func(status int, data []byte, err error)) {
	ticket := d.gate.Reserve()

	go func() {
		if err := ticket.Wait(ctx); err != nil {
			fn(0, nil, rpcerror.NewTransport(err))
			return
		}
		defer ticket.Release()

		status, data, err := d.exchange(ctx, method, body)
		if err != nil {
			fn(status, nil, err)
			return
		}
		if err := classifyStatus(status, data); err != nil {
			fn(status, nil, err)
			return
		}
		fn(status, data, nil)
	}()
}

// exchange performs the HTTP round trip and buffers the whole body
func (d *Dispatcher) exchange(ctx context.Context, method string, body []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, rpcerror.NewTransport(fmt.Errorf("failed to create HTTP request: %w", err))
	}

	httpReq.ContentLength = int64(len(body))
	httpReq.Header.Set("Content-Length", strconv.Itoa(len(body)))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(d.user, d.password)
	for k, v := range d.headers {
		httpReq.Header.Set(k, v)
	}
	if d.host != "" {
		httpReq.Host = d.host
	}

	d.logger.Debug().
		Str("method", method).
		Int("bytes", len(body)).
		Msg("sending request")

	resp, err := d.doer.Do(httpReq)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		d.logger.Error().
			Err(err).
			Str("method", method).
			Msg("request failed")
		return 0, nil, rpcerror.NewTransport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		d.logger.Error().
			Err(err).
			Str("method", method).
			Int("status", resp.StatusCode).
			Msg("failed to read response")
		return resp.StatusCode, nil, rpcerror.NewTransport(err)
	}

	return resp.StatusCode, data, nil
}

// classifyStatus maps status-level rejections onto the error taxonomy
func classifyStatus(status int, data []byte) error {
	switch {
	case status == http.StatusUnauthorized:
		return rpcerror.NewAuthRejected()
	case status == http.StatusForbidden:
		return rpcerror.NewForbidden()
	case status == http.StatusInternalServerError && string(data) == rpcerror.WorkQueueExceeded:
		return rpcerror.NewOverloaded(status)
	}
	return nil
}

func (d *Dispatcher) decodeSingle(method string, status int, data []byte) (*jsonrpc.Response, error) {
	resp, err := jsonrpc.ParseResponse(data)
	if err != nil {
		d.logDecodeFailure(method, status, data, err)
		return nil, rpcerror.NewMalformedResponse(status, err)
	}
	if resp.HasError() {
		return resp, rpcerror.NewRemoteProcedure(status, resp.Error)
	}
	return resp, nil
}

func (d *Dispatcher) decodeBatch(status int, data []byte, want int) ([]*jsonrpc.Response, error) {
	resps, isBatch, err := jsonrpc.ParseBatchResponse(data)
	if err != nil {
		d.logDecodeFailure(batchLabel, status, data, err)
		return nil, rpcerror.NewMalformedResponse(status, err)
	}
	if !isBatch {
		if resps[0].HasError() {
			return resps, rpcerror.NewRemoteProcedure(status, resps[0].Error)
		}
		err := errors.New("expected a JSON array in response to a batch")
		d.logDecodeFailure(batchLabel, status, data, err)
		return nil, rpcerror.NewMalformedResponse(status, err)
	}
	if len(resps) != want {
		err := fmt.Errorf("batch of %d calls answered with %d responses", want, len(resps))
		d.logDecodeFailure(batchLabel, status, data, err)
		return nil, rpcerror.NewMalformedResponse(status, err)
	}
	return resps, nil
}

func (d *Dispatcher) logDecodeFailure(method string, status int, data []byte, err error) {
	d.logger.Error().
		Err(err).
		Str("method", method).
		Int("status", status).
		Str("body", string(data)).
		Msg("failed to parse response")
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	return rpcerror.KindOf(err).String()
}
