// ABOUTME: Tests for the HTTP transport.
// ABOUTME: Covers health, auth rejection, JSON-RPC posts, notifications and the plain tool endpoints.

package mcp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uavcrew/compliance-gateway/internal/auth"
	"github.com/uavcrew/compliance-gateway/internal/dispatch"
)

func newHTTPTestServer(t *testing.T, gateCfg *auth.GateConfig) (*testEnv, *httptest.Server) {
	t.Helper()
	env := newTestEnv(t, gateCfg)
	ts := httptest.NewServer(env.server.HTTPHandler())
	t.Cleanup(ts.Close)
	return env, ts
}

func post(t *testing.T, url, authHeader, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return data
}

func TestHTTP_Health(t *testing.T) {
	env, ts := newHTTPTestServer(t, &auth.GateConfig{APIKey: testAPIKey})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy","service":"compliance-gateway","version":"2.0.0"}`, string(readBody(t, resp)))
	assert.Zero(t, env.store.Acquired())
}

func TestHTTP_Unauthorized(t *testing.T) {
	env, ts := newHTTPTestServer(t, &auth.GateConfig{APIKey: testAPIKey})

	for _, header := range []string{"", "Bearer wrong", "wrong"} {
		resp := post(t, ts.URL+"/mcp", header, `{"jsonrpc":"2.0","id":1,"method":"get_pilot","params":{"pilot_id":"PLT-001"}}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		rpc, err := DecodeResponse(readBody(t, resp))
		require.NoError(t, err)
		assert.Equal(t, "null", string(rpc.ID))
		require.NotNil(t, rpc.Error)
		assert.Equal(t, dispatch.CodeUnauthorized, rpc.Error.Code)
	}

	resp, err := http.Get(ts.URL + "/mcp/tools")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Zero(t, env.store.Acquired(), "rejected requests must never reach the dispatcher")
}

func TestHTTP_NoGateRejectsEverything(t *testing.T) {
	_, ts := newHTTPTestServer(t, nil)

	resp := post(t, ts.URL+"/mcp", "Bearer anything", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTP_AuthorizedCall(t *testing.T) {
	_, ts := newHTTPTestServer(t, &auth.GateConfig{APIKey: testAPIKey})

	for _, header := range []string{"Bearer " + testAPIKey, testAPIKey} {
		resp := post(t, ts.URL+"/mcp", header, `{"jsonrpc":"2.0","id":"a","method":"get_pilot","params":{"pilot_id":"PLT-002"}}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		rpc, err := DecodeResponse(readBody(t, resp))
		require.NoError(t, err)
		require.Nil(t, rpc.Error)
		assert.Equal(t, `"a"`, string(rpc.ID))
		assert.JSONEq(t, `{"pilot_id":"PLT-002","name":"Jane Doe"}`, string(rpc.Result))
	}
}

func TestHTTP_DisabledGate(t *testing.T) {
	_, ts := newHTTPTestServer(t, &auth.GateConfig{Disabled: true})

	resp := post(t, ts.URL+"/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTP_Notification(t *testing.T) {
	_, ts := newHTTPTestServer(t, &auth.GateConfig{APIKey: testAPIKey})

	resp := post(t, ts.URL+"/mcp", "Bearer "+testAPIKey, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Empty(t, readBody(t, resp))
}

func TestHTTP_ParseError(t *testing.T) {
	_, ts := newHTTPTestServer(t, &auth.GateConfig{APIKey: testAPIKey})

	resp := post(t, ts.URL+"/mcp", "Bearer "+testAPIKey, `{"jsonrpc":"2.0","id":1,`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	rpc, err := DecodeResponse(readBody(t, resp))
	require.NoError(t, err)
	require.NotNil(t, rpc.Error)
	assert.Equal(t, dispatch.CodeParseError, rpc.Error.Code)
}

func TestHTTP_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, &auth.GateConfig{APIKey: testAPIKey})
	env.server.maxBodyBytes = 128
	ts := httptest.NewServer(env.server.HTTPHandler())
	defer ts.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"ping","params":{"pad":"` + strings.Repeat("x", 256) + `"}}`
	resp := post(t, ts.URL+"/mcp", "Bearer "+testAPIKey, body)

	rpc, err := DecodeResponse(readBody(t, resp))
	require.NoError(t, err)
	require.NotNil(t, rpc.Error)
	assert.Equal(t, dispatch.CodeInvalidRequest, rpc.Error.Code)
}

func TestHTTP_JWTCredential(t *testing.T) {
	secret := "jwt-test-secret"
	_, ts := newHTTPTestServer(t, &auth.GateConfig{JWTSecret: secret})

	token, err := auth.NewJWTVerifier([]byte(secret)).Generate("ops-dashboard", time.Minute)
	require.NoError(t, err)

	resp := post(t, ts.URL+"/mcp", "Bearer "+token, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTP_ListTools(t *testing.T) {
	_, ts := newHTTPTestServer(t, &auth.GateConfig{APIKey: testAPIKey})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/mcp/tools", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var result ListToolsResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Tools, 3)
	assert.Equal(t, "get_pilot", result.Tools[0].Name)
}

func TestHTTP_PlainToolCall(t *testing.T) {
	_, ts := newHTTPTestServer(t, &auth.GateConfig{APIKey: testAPIKey})
	url := ts.URL + "/mcp/tools/call"
	key := "Bearer " + testAPIKey

	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{
			name:   "success returns raw payload",
			body:   `{"tool":"get_pilot","arguments":{"pilot_id":"PLT-001"}}`,
			status: http.StatusOK,
			want:   `{"pilot_id":"PLT-001","name":"John Smith"}`,
		},
		{
			name:   "not found passes through",
			body:   `{"tool":"get_pilot","arguments":{"pilot_id":"nobody"}}`,
			status: http.StatusOK,
			want:   `{"error":"Pilot not found: nobody"}`,
		},
		{
			name:   "unknown tool",
			body:   `{"tool":"nope"}`,
			status: http.StatusOK,
			want:   `{"success":false,"error":"Unknown tool: nope"}`,
		},
		{
			name:   "missing argument",
			body:   `{"tool":"get_pilot","arguments":{}}`,
			status: http.StatusOK,
			want:   `{"success":false,"error":"pilot_id: required parameter missing"}`,
		},
		{
			name:   "missing tool",
			body:   `{"arguments":{}}`,
			status: http.StatusBadRequest,
			want:   `{"success":false,"error":"Missing required field: tool"}`,
		},
		{
			name:   "bad body",
			body:   `nope`,
			status: http.StatusBadRequest,
			want:   `{"success":false,"error":"invalid request body"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, url, key, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.JSONEq(t, tt.want, string(readBody(t, resp)))
		})
	}
}
