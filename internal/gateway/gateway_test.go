// ABOUTME: Tests for the Gateway orchestrator
// ABOUTME: Runs the assembled stack over real HTTP listeners and the stdio transport

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uavcrew/compliance-gateway/internal/auth"
	"github.com/uavcrew/compliance-gateway/internal/config"
	"github.com/uavcrew/compliance-gateway/internal/mcp"
	"github.com/uavcrew/compliance-gateway/internal/store"
)

const testAPIKey = "test-api-key"

// testConfig creates a minimal config backed by the seeded memory store.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			HTTPAddr:          "127.0.0.1:0",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   2 * time.Second,
		},
		Database: config.DatabaseConfig{Driver: "memory", SeedDemoData: true},
		Auth:     config.AuthConfig{APIKey: testAPIKey},
		Cache:    config.CacheConfig{Driver: "none"},
	}
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startGateway serves gw on a loopback listener until the test ends.
func startGateway(t *testing.T, gw *Gateway) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- gw.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("gateway did not shutdown in time")
		}
	})
	return "http://" + ln.Addr().String()
}

func rpc(t *testing.T, baseURL, body string) *mcp.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, baseURL+"/mcp/", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out, err := mcp.DecodeResponse(data)
	require.NoError(t, err)
	return out
}

func TestGatewayNew(t *testing.T) {
	gw, err := New(context.Background(), testConfig(t), testLogger())
	require.NoError(t, err)
	defer gw.Close()

	assert.Equal(t, 8, gw.Registry().Len())
	assert.NotNil(t, gw.dispatcher)
	assert.NotNil(t, gw.Handler())
}

func TestGatewayNew_WithFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.Files.Root = t.TempDir()

	gw, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer gw.Close()

	assert.Equal(t, 11, gw.Registry().Len())
	_, err = gw.Registry().Resolve("list_files")
	assert.NoError(t, err)
}

func TestGatewayNew_Errors(t *testing.T) {
	t.Run("no credential", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth = config.AuthConfig{}
		_, err := New(context.Background(), cfg, testLogger())
		assert.ErrorIs(t, err, auth.ErrNoCredential)
	})

	t.Run("bad files root", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Files.Root = filepath.Join(t.TempDir(), "missing")
		_, err := New(context.Background(), cfg, testLogger())
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database.Driver = "oracle"
		_, err := New(context.Background(), cfg, testLogger())
		assert.ErrorContains(t, err, "unknown database driver")
	})

	t.Run("unreachable redis", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Cache = config.CacheConfig{Driver: "redis", RedisAddr: "127.0.0.1:1", TTL: time.Minute}
		_, err := New(context.Background(), cfg, testLogger())
		assert.ErrorContains(t, err, "redis")
	})
}

func TestGatewayServeHTTP(t *testing.T) {
	gw, err := New(context.Background(), testConfig(t), testLogger(), WithVersion("1.2.3"))
	require.NoError(t, err)
	baseURL := startGateway(t, gw)

	resp, err := http.Get(baseURL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out := rpc(t, baseURL, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	require.Nil(t, out.Error)
	var init struct {
		ServerInfo struct {
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(out.Result, &init))
	assert.Equal(t, "1.2.3", init.ServerInfo.Version)

	out = rpc(t, baseURL, `{"jsonrpc":"2.0","id":2,"method":"get_pilot","params":{"pilot_id":"PLT-001"}}`)
	require.Nil(t, out.Error)
	var pilot map[string]any
	require.NoError(t, json.Unmarshal(out.Result, &pilot))
	assert.Equal(t, "John Smith", pilot["name"])
}

func TestGatewayServeHTTP_Unauthorized(t *testing.T) {
	gw, err := New(context.Background(), testConfig(t), testLogger())
	require.NoError(t, err)
	baseURL := startGateway(t, gw)

	resp, err := http.Post(baseURL+"/mcp/", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"get_pilot","params":{"pilot_id":"PLT-001"}}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGatewayRunAndShutdown(t *testing.T) {
	gw, err := New(context.Background(), testConfig(t), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- gw.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("gateway did not shutdown in time")
	}
}

func TestGatewayRun_ListenError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.HTTPAddr = "not-an-address"
	gw, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer gw.Close()

	err = gw.Run(context.Background())
	assert.ErrorContains(t, err, "listening on HTTP address")
}

func TestGatewayServeStdio(t *testing.T) {
	gw, err := New(context.Background(), testConfig(t), testLogger())
	require.NoError(t, err)

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"get_aircraft","params":{"aircraft_id":"N12345"}}` + "\n" +
			`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n")
	var out bytes.Buffer

	require.NoError(t, gw.ServeStdio(context.Background(), in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	resp, err := mcp.DecodeResponse([]byte(lines[0]))
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.Contains(t, string(resp.Result), `"aircraft_id":"AC-001"`)
}

// closeCountingStore records how many times Close reaches the store.
type closeCountingStore struct {
	store.Store
	closes int
}

func (s *closeCountingStore) Close() error {
	s.closes++
	return s.Store.Close()
}

func TestGatewayCloseOnce(t *testing.T) {
	mem, err := store.NewMemoryStoreWithFixtures()
	require.NoError(t, err)
	counting := &closeCountingStore{Store: mem}

	gw, err := New(context.Background(), testConfig(t), testLogger(), WithStore(counting))
	require.NoError(t, err)

	require.NoError(t, gw.ServeStdio(context.Background(), strings.NewReader(""), io.Discard))
	require.NoError(t, gw.Close())
	require.NoError(t, gw.Close())
	assert.Equal(t, 1, counting.closes)
}

func TestGatewayStdioIgnoresAuth(t *testing.T) {
	// The stream transport is trusted even when HTTP requires a key
	cfg := testConfig(t)
	cfg.Auth = config.AuthConfig{JWTSecret: "only-jwt-callers-over-http"}
	gw, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)

	var out bytes.Buffer
	err = gw.ServeStdio(context.Background(), strings.NewReader(`{"jsonrpc":"2.0","id":7,"method":"ping"}`), &out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":{}}`, strings.TrimSpace(out.String()))
}

func TestGatewayStreamOnly(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth = config.AuthConfig{}
	gw, err := New(context.Background(), cfg, testLogger(), WithStreamOnly())
	require.NoError(t, err)

	// HTTP fails closed without a credential
	srv := httptest.NewServer(gw.Handler())
	resp, err := http.Post(srv.URL+"/mcp/", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.NoError(t, err)
	resp.Body.Close()
	srv.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var out bytes.Buffer
	err = gw.ServeStdio(context.Background(), strings.NewReader(`{"jsonrpc":"2.0","id":2,"method":"ping"}`), &out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"result":{}}`, strings.TrimSpace(out.String()))
}

func TestGatewaySQLiteSeeded(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "compliance.db"),
		SeedDemoData: true,
	}

	gw, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	baseURL := startGateway(t, gw)

	out := rpc(t, baseURL, `{"jsonrpc":"2.0","id":1,"method":"get_maintenance_history","params":{"aircraft_id":"AC-001","limit":1}}`)
	require.Nil(t, out.Error)
	var history map[string]any
	require.NoError(t, json.Unmarshal(out.Result, &history))
	assert.Len(t, history["maintenance_records"], 1)
	assert.Equal(t, 81.5, history["maintenance_due_in_hours"])
}

func TestGatewayMemoryCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache = config.CacheConfig{Driver: "memory", TTL: time.Minute, MaxEntries: 16}

	gw, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer gw.Close()

	_, ok := gw.store.(*store.CachedStore)
	assert.True(t, ok, "store should be wrapped by the cache")
}

func TestGatewayRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Cache = config.CacheConfig{
		Driver:    "redis",
		RedisAddr: mr.Addr(),
		TTL:       time.Minute,
		KeyPrefix: "compliance:",
	}

	gw, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	baseURL := startGateway(t, gw)

	for range 2 {
		out := rpc(t, baseURL, `{"jsonrpc":"2.0","id":1,"method":"get_pilot","params":{"pilot_id":"PLT-002"}}`)
		require.Nil(t, out.Error)
		assert.Contains(t, string(out.Result), `"Jane Doe"`)
	}
	assert.True(t, mr.Exists("compliance:lookup:pilots:PLT-002"))
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	empty, err := OpenStore(ctx, config.DatabaseConfig{Driver: "memory"}, testLogger())
	require.NoError(t, err)
	sess, err := empty.Acquire(ctx)
	require.NoError(t, err)
	_, err = sess.Lookup(ctx, "pilots", "PLT-001")
	sess.Release()
	assert.ErrorIs(t, err, store.ErrNotFound)

	path := filepath.Join(t.TempDir(), "seeded.db")
	for range 2 {
		// A second open must not duplicate the fixtures
		s, err := OpenStore(ctx, config.DatabaseConfig{Driver: "sqlite", Path: path, SeedDemoData: true}, testLogger())
		require.NoError(t, err)
		sess, err := s.Acquire(ctx)
		require.NoError(t, err)
		rows, err := sess.Query(ctx, store.Query{Entity: "pilots"})
		sess.Release()
		require.NoError(t, err)
		assert.Len(t, rows, 3)
		require.NoError(t, s.Close())
	}
}
