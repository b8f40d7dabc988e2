package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwoolley/solmcp/internal/config"
	"github.com/cwoolley/solmcp/internal/mcpserver"
	"github.com/cwoolley/solmcp/internal/tui"
)

// syncBuffer is a thread-safe bytes.Buffer for use in concurrent tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (sb *syncBuffer) Write(p []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.buf.Write(p)
}

func (sb *syncBuffer) String() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.buf.String()
}

func (sb *syncBuffer) Len() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.buf.Len()
}

var _ io.Writer = (*syncBuffer)(nil)

// tokenBackend fakes the Solflare token list API.
func tokenBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			if r.URL.Query().Get("query") == "nothing" {
				_, _ = w.Write([]byte(`{"content":[]}`))
				return
			}
			_, _ = w.Write([]byte(`{"content":[
				{"address":"EPjF","name":"USD Coin","symbol":"USDC"},
				{"address":"Es9v","name":"Tether","symbol":"USDT"}
			]}`))
		case "/mints":
			_, _ = w.Write([]byte(`{"content":[{"address":"EPjF","name":"USD Coin","symbol":"USDC","decimals":6}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// useConfig points loadConfig at cfg and silences logs for the test.
func useConfig(t *testing.T, cfg config.Config) {
	t.Helper()
	origLoad, origLog := loadConfig, logOutput
	loadConfig = func() (*config.Config, error) {
		c := cfg
		return &c, nil
	}
	logOutput = io.Discard
	t.Cleanup(func() {
		loadConfig = origLoad
		logOutput = origLog
	})
}

func useTokenBackend(t *testing.T) {
	t.Helper()
	useConfig(t, config.Config{
		Provider:    config.ProviderToken,
		SolflareURL: tokenBackend(t).URL,
		ServerAddr:  ":8080",
		LogLevel:    "info",
	})
}

func useSignalCh(t *testing.T) chan os.Signal {
	t.Helper()
	testCh := make(chan os.Signal, 1)
	orig := makeSignalCh
	makeSignalCh = func() (chan os.Signal, func()) {
		return testCh, func() {}
	}
	t.Cleanup(func() { makeSignalCh = orig })
	return testCh
}

func TestRun_NoArgsPrintsHelp(t *testing.T) {
	var buf bytes.Buffer
	err := runWithOutput([]string{}, &buf)
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "serve")
}

func TestSearchCommand_PrintsResults(t *testing.T) {
	useTokenBackend(t)

	var buf bytes.Buffer
	err := runWithOutput([]string{"search", "usd"}, &buf)

	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "1. USD Coin EPjF")
	assert.Contains(t, output, "2. Tether Es9v")
}

func TestSearchCommand_JSON(t *testing.T) {
	useTokenBackend(t)

	var buf bytes.Buffer
	require.NoError(t, runWithOutput([]string{"search", "--json", "usd"}, &buf))

	var out mcpserver.SearchOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.IDs, 2)
	assert.Equal(t, "EPjF", out.IDs[0].ID)
	assert.Equal(t, "USDC", out.IDs[0].Metadata["symbol"])
}

func TestSearchCommand_NoResults(t *testing.T) {
	useTokenBackend(t)

	var buf bytes.Buffer
	require.NoError(t, runWithOutput([]string{"search", "nothing"}, &buf))
	assert.Contains(t, buf.String(), "No results found.")
}

func TestSearchCommand_NoQuery(t *testing.T) {
	var buf bytes.Buffer
	err := runWithOutput([]string{"search"}, &buf)
	assert.Error(t, err)
}

func TestSearchCommand_BackendDownPrintsNoResults(t *testing.T) {
	useConfig(t, config.Config{Provider: config.ProviderToken, SolflareURL: "http://127.0.0.1:0"})

	var buf bytes.Buffer
	require.NoError(t, runWithOutput([]string{"search", "usd"}, &buf))
	assert.Contains(t, buf.String(), "No results found.")
}

func TestProviderFlag_OverridesConfig(t *testing.T) {
	// A pool config without a key is invalid until --provider switches it.
	useConfig(t, config.Config{Provider: config.ProviderPool, SolflareURL: tokenBackend(t).URL})

	var buf bytes.Buffer
	require.NoError(t, runWithOutput([]string{"--provider", "token", "search", "usd"}, &buf))
	assert.Contains(t, buf.String(), "USD Coin")
}

func TestProviderFlag_RejectsUnknown(t *testing.T) {
	useTokenBackend(t)

	var buf bytes.Buffer
	err := runWithOutput([]string{"--provider", "nft", "search", "usd"}, &buf)
	assert.ErrorIs(t, err, config.ErrUnknownProvider)
}

func TestCommand_MissingAPIKeyFails(t *testing.T) {
	useConfig(t, config.Config{Provider: config.ProviderPool})

	var buf bytes.Buffer
	err := runWithOutput([]string{"search", "X"}, &buf)
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
}

func TestCommand_ConfigLoadError(t *testing.T) {
	orig := loadConfig
	loadConfig = func() (*config.Config, error) {
		return nil, fmt.Errorf("config error")
	}
	t.Cleanup(func() { loadConfig = orig })

	var buf bytes.Buffer
	err := runWithOutput([]string{"fetch", "X"}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestCommand_BadLogLevelFails(t *testing.T) {
	useConfig(t, config.Config{Provider: config.ProviderToken, LogLevel: "loud"})

	var buf bytes.Buffer
	err := runWithOutput([]string{"fetch", "X"}, &buf)
	assert.Error(t, err)
}

func TestFetchCommand_PrintsInfo(t *testing.T) {
	useTokenBackend(t)

	var buf bytes.Buffer
	require.NoError(t, runWithOutput([]string{"fetch", "EPjF"}, &buf))
	assert.JSONEq(t,
		`{"info":{"address":"EPjF","name":"USD Coin","symbol":"USDC","decimals":6}}`,
		buf.String())
}

func TestFetchCommand_RequiresOneID(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, runWithOutput([]string{"fetch"}, &buf))
	assert.Error(t, runWithOutput([]string{"fetch", "a", "b"}, &buf))
}

func TestServeCommand_IsRegistered(t *testing.T) {
	var buf bytes.Buffer
	cmd := newRootCmd(&buf)

	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serveCmd.Name())

	f := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, f)
	assert.Equal(t, ":8080", f.DefValue)

	f = serveCmd.Flags().Lookup("http")
	require.NotNil(t, f)
	assert.Equal(t, "false", f.DefValue)
}

func TestServeCommand_DefaultsToStdio(t *testing.T) {
	useTokenBackend(t)

	var served *mcpserver.Server
	orig := serveStdio
	serveStdio = func(s *mcpserver.Server) error {
		served = s
		return nil
	}
	t.Cleanup(func() { serveStdio = orig })

	var buf bytes.Buffer
	require.NoError(t, runWithOutput([]string{"serve"}, &buf))
	require.NotNil(t, served)
	assert.Equal(t, "Solflare Token API", served.Name())
	assert.Empty(t, buf.String())
}

func TestServeCommand_GracefulShutdown(t *testing.T) {
	useTokenBackend(t)
	testCh := useSignalCh(t)

	buf := &syncBuffer{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- runWithOutput([]string{"serve", "--http", "--addr", "127.0.0.1:0"}, buf)
	}()

	deadline := time.After(2 * time.Second)
	for buf.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for server to start")
		case err := <-errCh:
			t.Fatalf("serve exited early: %v", err)
		case <-time.After(10 * time.Millisecond):
		}
	}
	assert.Contains(t, buf.String(), "Listening on")

	testCh <- syscall.SIGINT

	select {
	case err := <-errCh:
		assert.NoError(t, err, "serve should shut down cleanly on SIGINT")
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for serve to shut down")
	}
	assert.Contains(t, buf.String(), "shutting down")
}

func TestServeCommand_ListenError(t *testing.T) {
	useTokenBackend(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var buf bytes.Buffer
	err = runWithOutput([]string{"serve", "--http", "--addr", ln.Addr().String()}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")
}

func TestVersionCommand_PrintsVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runWithOutput([]string{"version"}, &buf))
	assert.Contains(t, buf.String(), "solmcp version")
	assert.Contains(t, buf.String(), version)
}

// mockTeaRunner implements teaRunner for testing.
type mockTeaRunner struct {
	err error
}

func (m *mockTeaRunner) Run() (tea.Model, error) {
	return nil, m.err
}

func TestInteractiveCommand_IsRegistered(t *testing.T) {
	var buf bytes.Buffer
	cmd := newRootCmd(&buf)

	interactiveCmd, _, err := cmd.Find([]string{"interactive"})
	require.NoError(t, err)
	assert.Equal(t, "interactive", interactiveCmd.Name())
	assert.Contains(t, interactiveCmd.Aliases, "tui")
}

func TestInteractiveCommand_RunsProgram(t *testing.T) {
	useTokenBackend(t)

	var model tea.Model
	orig := newTeaProgram
	newTeaProgram = func(m tea.Model) teaRunner {
		model = m
		return &mockTeaRunner{}
	}
	t.Cleanup(func() { newTeaProgram = orig })

	var buf bytes.Buffer
	require.NoError(t, runWithOutput([]string{"tui"}, &buf))
	require.IsType(t, tui.Model{}, model)
	assert.Contains(t, model.View(), "Solflare Token API")
}

func TestInteractiveCommand_Error(t *testing.T) {
	useTokenBackend(t)

	orig := newTeaProgram
	newTeaProgram = func(_ tea.Model) teaRunner {
		return &mockTeaRunner{err: fmt.Errorf("terminal error")}
	}
	t.Cleanup(func() { newTeaProgram = orig })

	var buf bytes.Buffer
	err := runWithOutput([]string{"interactive"}, &buf)
	assert.EqualError(t, err, "terminal error")
}

// mockHTTPServer implements httpServer for testing serveLoop.
type mockHTTPServer struct {
	serveFunc   func() error
	shutdownErr error
	addr        string
}

func (m *mockHTTPServer) Serve() error                     { return m.serveFunc() }
func (m *mockHTTPServer) Addr() string                     { return m.addr }
func (m *mockHTTPServer) Shutdown(_ context.Context) error { return m.shutdownErr }

func TestServeLoop_ErrServerClosed(t *testing.T) {
	useSignalCh(t)

	mock := &mockHTTPServer{
		serveFunc: func() error { return http.ErrServerClosed },
		addr:      "127.0.0.1:9",
	}
	var buf bytes.Buffer
	assert.NoError(t, serveLoop(mock, &buf))
	assert.Contains(t, buf.String(), "Listening on 127.0.0.1:9")
}

func TestServeLoop_ServerError(t *testing.T) {
	useSignalCh(t)

	mock := &mockHTTPServer{
		serveFunc: func() error { return fmt.Errorf("bind error") },
	}
	var buf bytes.Buffer
	err := serveLoop(mock, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind error")
}

func TestServeLoop_ShutdownError(t *testing.T) {
	testCh := useSignalCh(t)

	serveDone := make(chan struct{})
	mock := &mockHTTPServer{
		serveFunc:   func() error { <-serveDone; return http.ErrServerClosed },
		shutdownErr: fmt.Errorf("shutdown failed"),
	}

	buf := &syncBuffer{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- serveLoop(mock, buf)
	}()

	testCh <- syscall.SIGINT

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shutdown")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for serveLoop to return")
	}
	close(serveDone)
}
