package command

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/yndnr/mbaas-go/internal/core/service"
)

const testToken = "r:0a1b2c3d4e5f"

// mockBackend serves the verify and revoke endpoints.
type mockBackend struct {
	*httptest.Server

	verifyCalls atomic.Int32
	revokeCalls atomic.Int32

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	tokens   []string
	apiKeys  []string
}

func newMockBackend(t *testing.T) *mockBackend {
	t.Helper()

	m := &mockBackend{handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Close)

	m.handle(service.VerifySessionPath, jsonResponse(http.StatusOK, map[string]any{"status": "ok", "isValid": true}))
	m.handle(service.RevokeSessionPath, jsonResponse(http.StatusOK, map[string]any{"status": "ok"}))
	return m
}

// handle registers a handler for an exact path.
func (m *mockBackend) handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = h
}

func (m *mockBackend) serve(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case service.VerifySessionPath:
		m.verifyCalls.Add(1)
	case service.RevokeSessionPath:
		m.revokeCalls.Add(1)
	}

	var body struct {
		SessionToken string `json:"sessionToken"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	m.mu.Lock()
	m.tokens = append(m.tokens, body.SessionToken)
	m.apiKeys = append(m.apiKeys, r.Header.Get("X-API-Key"))
	h, ok := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (m *mockBackend) lastToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tokens) == 0 {
		return ""
	}
	return m.tokens[len(m.tokens)-1]
}

func (m *mockBackend) lastAPIKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.apiKeys) == 0 {
		return ""
	}
	return m.apiKeys[len(m.apiKeys)-1]
}

// jsonResponse returns a handler writing data as JSON.
func jsonResponse(status int, data any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(data)
	}
}

// syncBuffer is a bytes.Buffer safe for the background writers of a command.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testEnv is an isolated config file and data directory.
type testEnv struct {
	configPath string
	dataDir    string
	host       string
}

func newTestEnv(t *testing.T, host string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{
		configPath: filepath.Join(dir, "cli.yaml"),
		dataDir:    filepath.Join(dir, "data"),
		host:       host,
	}
}

// args prefixes the global flags that point the CLI at the test environment.
func (e *testEnv) args(args ...string) []string {
	base := []string{"mbaas-cli", "--config", e.configPath, "--data-dir", e.dataDir}
	if e.host != "" {
		base = append(base, "--host", e.host)
	}
	return append(base, args...)
}

// run executes the CLI and returns what it wrote to stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runContext(t, context.Background(), args...)
}

func (e *testEnv) runContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	return e.runInput(t, ctx, "", args...)
}

// runInput executes the CLI with input as its stdin.
func (e *testEnv) runInput(t *testing.T, ctx context.Context, input string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr syncBuffer
	app := App()
	app.Reader = strings.NewReader(input)
	app.Writer = &stdout
	app.ErrWriter = &stderr

	err := app.RunContext(ctx, e.args(args...))
	if err != nil {
		t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), err
}

// mustRun fails the test if the command fails.
func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}
