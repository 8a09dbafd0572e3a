package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const initializeRequest = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`

func newMCPServer() *server.MCPServer {
	return server.NewMCPServer("transport-test", "1.0.0", server.WithToolCapabilities(false))
}

func quietOptions(token string) HTTPOptions {
	return HTTPOptions{
		Addr:   "127.0.0.1:0",
		Token:  token,
		Logger: log.New(io.Discard),
	}
}

func TestHealth(t *testing.T) {
	handler := NewStreamableHandler(newMCPServer(), quietOptions("secret"))

	req := httptest.NewRequest(http.MethodGet, HealthPath, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("Content-Type"))
}

func TestStreamableRequiresToken(t *testing.T) {
	handler := NewStreamableHandler(newMCPServer(), quietOptions("secret"))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer secret", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, StreamablePath, strings.NewReader(initializeRequest))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusOK {
				assert.Contains(t, rr.Body.String(), "transport-test")
			}
		})
	}
}

func TestStreamableWithoutToken(t *testing.T) {
	handler := NewStreamableHandler(newMCPServer(), quietOptions(""))

	req := httptest.NewRequest(http.MethodPost, StreamablePath, strings.NewReader(initializeRequest))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "serverInfo")
}

func TestSSEAdvertisesMessageEndpoint(t *testing.T) {
	opts := quietOptions("")
	opts.BaseURL = "http://example.test"
	ts := httptest.NewServer(NewSSEHandler(newMCPServer(), opts))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+SSEPath, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			break
		}
	}
	assert.True(t, strings.HasPrefix(data, "http://example.test"+MessagePath), data)
	assert.Contains(t, data, "sessionId=")
}

func TestSSERequiresToken(t *testing.T) {
	handler := NewSSEHandler(newMCPServer(), quietOptions("secret"))

	req := httptest.NewRequest(http.MethodGet, SSEPath, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, MessagePath, strings.NewReader("{}"))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		opts HTTPOptions
		want string
	}{
		{opts: HTTPOptions{Addr: "0.0.0.0:8000"}, want: "http://localhost:8000"},
		{opts: HTTPOptions{Addr: ":9000"}, want: "http://localhost:9000"},
		{opts: HTTPOptions{Addr: "127.0.0.1:8080"}, want: "http://127.0.0.1:8080"},
		{opts: HTTPOptions{Addr: "0.0.0.0:8000", BaseURL: "https://mcp.example.com"}, want: "https://mcp.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, baseURL(tt.opts))
		})
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, NewStreamableHandler(newMCPServer(), quietOptions("")), log.New(io.Discard))
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + HealthPath)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunUnknownTransport(t *testing.T) {
	err := Run(context.Background(), newMCPServer(), Options{Kind: "carrier-pigeon", HTTP: quietOptions("")})
	assert.ErrorContains(t, err, "unknown transport")
}

func TestServeStdioStopsOnCancel(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeStdio(ctx, newMCPServer(), in, io.Discard, log.New(io.Discard))
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stdio server did not stop")
	}
}
