package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitcoindrpc/internal/config"
	"bitcoindrpc/internal/jsonrpc"
	"bitcoindrpc/internal/procedure"
	"bitcoindrpc/internal/rpcerror"
)

// recordingDoer stands in for the HTTP transport and records every body
type recordingDoer struct {
	mu     sync.Mutex
	bodies [][]byte
	calls  atomic.Int32
	handle func(body []byte) (*http.Response, error)
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls.Add(1)
	body, _ := io.ReadAll(req.Body)
	d.mu.Lock()
	d.bodies = append(d.bodies, body)
	d.mu.Unlock()
	return d.handle(body)
}

func (d *recordingDoer) lastBody() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.bodies) == 0 {
		return nil
	}
	return d.bodies[len(d.bodies)-1]
}

func reply(status int, body string) func([]byte) (*http.Response, error) {
	return func([]byte) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func newTestClient(t *testing.T, doer *recordingDoer, opts ...Option) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.Protocol = config.ProtocolHTTP
	opts = append([]Option{WithDoer(doer), WithLogger(zerolog.Nop())}, opts...)
	c, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

type callResult struct {
	resp *jsonrpc.Response
	err  error
}

func goAndWait(t *testing.T, c *Client, name string, args ...any) callResult {
	t.Helper()
	ch := make(chan callResult, 1)
	c.Go(context.Background(), name, func(resp *jsonrpc.Response, err error) {
		ch <- callResult{resp, err}
	}, args...)
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not fire")
		return callResult{}
	}
}

func TestClient_DeclaredAndLowercaseNames(t *testing.T) {
	c := newTestClient(t, &recordingDoer{handle: reply(200, `{}`)})

	names := c.Procedures()
	require.NotEmpty(t, names)
	for _, name := range names {
		declared, err := c.Method(name)
		require.NoError(t, err, name)
		lower, err := c.Method(strings.ToLower(name))
		require.NoError(t, err, name)

		assert.Same(t, declared.proc, lower.proc, name)
		assert.Equal(t, name, lower.Name())
		assert.Equal(t, strings.ToLower(name), declared.WireName())
		assert.Equal(t, declared.Params(), lower.Params())
	}

	_, err := c.Method("GETBLOCKCOUNT")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestClient_EmptyObjectResponse(t *testing.T) {
	doer := &recordingDoer{handle: reply(200, `{}`)}
	c := newTestClient(t, doer)

	r := goAndWait(t, c, "getDifficulty")

	require.NoError(t, r.err)
	require.NotNil(t, r.resp)
	assert.Nil(t, r.resp.Error)
	assert.True(t, r.resp.ResultIsNull())

	var sent map[string]any
	require.NoError(t, json.Unmarshal(doer.lastBody(), &sent))
	assert.Equal(t, "getdifficulty", sent["method"])
	assert.Equal(t, []any{}, sent["params"])
}

func TestClient_LowercaseBehavesIdentically(t *testing.T) {
	doer := &recordingDoer{handle: reply(200, `{"result":"00ff","error":null,"id":1}`)}
	c := newTestClient(t, doer)

	a := goAndWait(t, c, "getBlockHash", "5")
	bodyA := doer.lastBody()
	b := goAndWait(t, c, "getblockhash", "5")
	bodyB := doer.lastBody()

	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Equal(t, a.resp.Result, b.resp.Result)

	var sentA, sentB map[string]any
	require.NoError(t, json.Unmarshal(bodyA, &sentA))
	require.NoError(t, json.Unmarshal(bodyB, &sentB))
	delete(sentA, "id")
	delete(sentB, "id")
	assert.Equal(t, sentA, sentB)
	assert.Equal(t, []any{float64(5)}, sentA["params"])
}

func TestClient_CoercionErrorBeforeDispatch(t *testing.T) {
	doer := &recordingDoer{handle: reply(200, `{}`)}
	c := newTestClient(t, doer)

	for _, name := range []string{"getBlockHash", "setTxFee"} {
		fired := 0
		var gotErr error
		c.Go(context.Background(), name, func(resp *jsonrpc.Response, err error) {
			fired++
			gotErr = err
			assert.Nil(t, resp)
		}, "not-a-number")

		// delivered synchronously
		assert.Equal(t, 1, fired, name)
		assert.ErrorIs(t, gotErr, rpcerror.ErrCoercion, name)
	}

	assert.Equal(t, int32(0), doer.calls.Load())
}

func TestClient_FewerArgsThanDeclared(t *testing.T) {
	doer := &recordingDoer{handle: reply(200, `{"result":[]}`)}
	c := newTestClient(t, doer)

	// listSinceBlock declares "str int bool bool"; only one is supplied
	r := goAndWait(t, c, "listSinceBlock", 123)
	require.NoError(t, r.err)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(doer.lastBody(), &sent))
	assert.Equal(t, []any{"123"}, sent["params"])
}

func TestClient_TrailingArgsPassThrough(t *testing.T) {
	doer := &recordingDoer{handle: reply(200, `{"result":null}`)}
	c := newTestClient(t, doer)

	r := goAndWait(t, c, "getBlockHash", "7", map[string]any{"extra": true})
	require.NoError(t, r.err)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(doer.lastBody(), &sent))
	assert.Equal(t, []any{float64(7), map[string]any{"extra": true}}, sent["params"])

	r = goAndWait(t, c, "getBlockHash", "7", func() {})
	assert.ErrorIs(t, r.err, rpcerror.ErrCoercion)
}

func TestClient_ArgumentsAreCoerced(t *testing.T) {
	doer := &recordingDoer{handle: reply(200, `{"result":"txid"}`)}
	c := newTestClient(t, doer)

	// sendToAddress: "str float str str"; importMulti: "obj obj"
	require.NoError(t, goAndWait(t, c, "sendToAddress", "bc1qaddr", "0.5", "memo", 3).err)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(doer.lastBody(), &sent))
	assert.Equal(t, []any{"bc1qaddr", 0.5, "memo", "3"}, sent["params"])

	require.NoError(t, goAndWait(t, c, "importMulti", `[{"scriptPubKey":"x"}]`, map[string]any{"rescan": false}).err)
	require.NoError(t, json.Unmarshal(doer.lastBody(), &sent))
	assert.Equal(t, []any{
		[]any{map[string]any{"scriptPubKey": "x"}},
		map[string]any{"rescan": false},
	}, sent["params"])

	r := goAndWait(t, c, "importMulti", `[{broken`)
	assert.ErrorIs(t, r.err, rpcerror.ErrCoercion)
}

func TestClient_AuthRejected(t *testing.T) {
	c := newTestClient(t, &recordingDoer{handle: reply(401, ``)})

	r := goAndWait(t, c, "getDifficulty")

	require.ErrorIs(t, r.err, rpcerror.ErrAuthRejected)
	assert.Equal(t, "bitcoin JSON-RPC: connection rejected: 401 unauthorized", r.err.Error())
	assert.Nil(t, r.resp)
}

func TestClient_Overloaded(t *testing.T) {
	c := newTestClient(t, &recordingDoer{handle: reply(500, `Work queue depth exceeded`)})

	r := goAndWait(t, c, "getDifficulty")

	require.ErrorIs(t, r.err, rpcerror.ErrOverloaded)
	var e *rpcerror.Error
	require.True(t, errors.As(r.err, &e))
	assert.Equal(t, 429, e.Code)
	assert.True(t, rpcerror.IsRetryable(r.err))
}

func TestClient_TransportError(t *testing.T) {
	doer := &recordingDoer{handle: func([]byte) (*http.Response, error) {
		return nil, errors.New("write EPIPE")
	}}
	c := newTestClient(t, doer)

	var fired atomic.Int32
	ch := make(chan error, 2)
	c.Go(context.Background(), "getDifficulty", func(resp *jsonrpc.Response, err error) {
		fired.Add(1)
		ch <- err
	})

	err := <-ch
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, rpcerror.KindTransport, rpcerror.KindOf(err))
	assert.Equal(t, "bitcoin JSON-RPC: request error: write EPIPE", err.Error())
	assert.Equal(t, int32(1), fired.Load())
}

func TestClient_RemoteProcedureError(t *testing.T) {
	c := newTestClient(t, &recordingDoer{handle: reply(500,
		`{"result":null,"error":{"code":-5,"message":"Invalid Bitcoin address"},"id":1}`)})

	resp, err := c.Call(context.Background(), "validateAddress", "nope")

	require.ErrorIs(t, err, rpcerror.ErrRemoteProcedure)
	require.NotNil(t, resp)
	assert.Equal(t, -5, resp.Error.Code)
}

func TestClient_CallResult(t *testing.T) {
	c := newTestClient(t, &recordingDoer{handle: reply(200, `{"result":{"blocks":812345,"chain":"main"},"error":null,"id":1}`)})

	var info struct {
		Blocks int    `json:"blocks"`
		Chain  string `json:"chain"`
	}
	require.NoError(t, c.CallResult(context.Background(), "getBlockchainInfo", &info))
	assert.Equal(t, 812345, info.Blocks)
	assert.Equal(t, "main", info.Chain)

	err := c.CallResult(context.Background(), "noSuchMethod", &info)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestClient_ResultCache(t *testing.T) {
	doer := &recordingDoer{handle: reply(200, `{"result":{"hash":"abc"},"error":null,"id":1}`)}
	cfg := config.Default()
	cfg.Protocol = config.ProtocolHTTP
	cfg.Cache = &config.CacheConfig{Enabled: true, TTL: 60, Size: 16, Methods: []string{"getBlock"}}

	reg := prometheus.NewRegistry()
	c, err := New(cfg, WithDoer(doer), WithLogger(zerolog.Nop()), WithRegisterer(reg))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	first, err := c.Call(ctx, "getBlock", "abc", true)
	require.NoError(t, err)
	second, err := c.Call(ctx, "getblock", "abc", "true")
	require.NoError(t, err)

	assert.Equal(t, int32(1), doer.calls.Load())
	assert.JSONEq(t, string(first.Result), string(second.Result))

	_, err = c.Call(ctx, "getBlockCount")
	require.NoError(t, err)
	_, err = c.Call(ctx, "getBlockCount")
	require.NoError(t, err)
	assert.Equal(t, int32(3), doer.calls.Load())

	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.CacheLookups.WithLabelValues("getblock", "hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.metrics.Requests.WithLabelValues("getblock", "success"))+
		testutil.ToFloat64(c.metrics.Requests.WithLabelValues("getblockcount", "success")))
}

func TestClient_HTTPServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rpcuser" || pass != "rpcpass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"result":42,"error":null,"id":1}`))
	}))
	defer server.Close()

	withAuth := strings.Replace(server.URL, "http://", "http://rpcuser:rpcpass@", 1)
	c, err := NewFromURL(withAuth, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer c.Close()

	var height int
	require.NoError(t, c.CallResult(context.Background(), "getBlockCount", &height))
	assert.Equal(t, 42, height)

	bad, err := NewFromURL(server.URL, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer bad.Close()
	_, err = bad.Call(context.Background(), "getBlockCount")
	assert.ErrorIs(t, err, rpcerror.ErrAuthRejected)
}

func TestClient_CustomTable(t *testing.T) {
	table, err := procedure.Parse([]byte("getChainState: \"int bool\"\n"))
	require.NoError(t, err)

	doer := &recordingDoer{handle: reply(200, `{"result":true}`)}
	c := newTestClient(t, doer, WithTable(table))

	assert.Equal(t, []string{"getChainState"}, c.Procedures())
	require.NoError(t, goAndWait(t, c, "getchainstate", "9", "TRUE").err)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(doer.lastBody(), &sent))
	assert.Equal(t, []any{float64(9), true}, sent["params"])

	_, err = c.Method("getBlockCount")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

type countingCache struct {
	gets, sets atomic.Int32
	data       map[string][]byte
	mu         sync.Mutex
}

func (c *countingCache) Get(key string) ([]byte, bool) {
	c.gets.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *countingCache) Set(key string, value []byte) {
	c.sets.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func (c *countingCache) Close() {}

func TestClient_WithCache(t *testing.T) {
	doer := &recordingDoer{handle: reply(200, `{"result":"0200000001","error":null,"id":1}`)}
	store := &countingCache{data: make(map[string][]byte)}

	cfg := config.Default()
	cfg.Protocol = config.ProtocolHTTP
	cfg.Cache = &config.CacheConfig{Enabled: true, TTL: 60, Size: 8, Methods: []string{"getrawtransaction"}}

	c, err := New(cfg, WithDoer(doer), WithLogger(zerolog.Nop()), WithCache(store))
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 3; i++ {
		_, err := c.Call(context.Background(), "getRawTransaction", "txid", 0)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), doer.calls.Load())
	assert.Equal(t, int32(3), store.gets.Load())
	assert.Equal(t, int32(1), store.sets.Load())
}

func serverHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}

func TestNew_PartialConfigGetsDefaults(t *testing.T) {
	auth := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		auth <- user + ":" + pass
		w.Write([]byte(`{"result":1,"error":null,"id":1}`))
	}))
	defer server.Close()

	host, port := serverHostPort(t, server.URL)
	in := &config.Config{Host: host, Port: port, Protocol: config.ProtocolHTTP}
	c, err := New(in, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Call(context.Background(), "getBlockCount")
	require.NoError(t, err)
	assert.Equal(t, "user:pass", <-auth)

	effective := c.Config()
	assert.True(t, effective.ShouldRejectUnauthorized())
	assert.Equal(t, config.LogLevelNormal, effective.LogLevel)

	// the caller's value is left untouched
	assert.Empty(t, in.User)
	assert.Nil(t, in.RejectUnauthorized)
}

func TestNew_VerifiesTLSByDefault(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":1,"error":null,"id":1}`))
	}))
	defer server.Close()

	host, port := serverHostPort(t, server.URL)
	c, err := New(&config.Config{Host: host, Port: port}, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Call(context.Background(), "getBlockCount")
	assert.ErrorIs(t, err, rpcerror.ErrTransport)

	insecure, err := New(&config.Config{Host: host, Port: port, RejectUnauthorized: config.Bool(false)},
		WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer insecure.Close()

	_, err = insecure.Call(context.Background(), "getBlockCount")
	assert.NoError(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(&config.Config{Protocol: "ftp"})
	assert.ErrorContains(t, err, "protocol must be")

	_, err = New(&config.Config{ConcurrencyLimit: -1})
	assert.ErrorContains(t, err, "concurrencyLimit")
}
