package benchmark

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/mbaas-go/internal/cli/connection"
	"github.com/yndnr/mbaas-go/internal/core/service"
	"github.com/yndnr/mbaas-go/internal/storage"
	"github.com/yndnr/mbaas-go/internal/telemetry/logger"
)

// TokenLengths defines the session token sizes for benchmarking.
var TokenLengths = []int{32, 256, 4096}

// newSessionToken generates a unique session token in the backend's "r:"
// format.
func newSessionToken() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, _ := ulid.New(ulid.Timestamp(time.Now()), entropy)
	return "r:" + strings.ToLower(id.String())
}

// paddedToken returns a session token of exactly n bytes.
func paddedToken(n int) string {
	tok := newSessionToken()
	if len(tok) >= n {
		return tok[:n]
	}
	return tok + strings.Repeat("0", n-len(tok))
}

// newEngine opens an in-memory badger engine closed at the end of the benchmark.
func newEngine(b *testing.B) *storage.BadgerEngine {
	b.Helper()
	engine, err := storage.NewBadgerEngine(storage.InMemoryKVConfig(), logger.Discard())
	if err != nil {
		b.Fatalf("open engine: %v", err)
	}
	b.Cleanup(func() { engine.Close() })
	return engine
}

// newSealedStore wraps a fresh in-memory engine with sealing.
func newSealedStore(b *testing.B, cipher string) *storage.SealedStore {
	b.Helper()
	sealed, err := storage.NewSealedStore(context.Background(), newEngine(b), storage.SealConfig{
		Passphrase: []byte("benchmark-passphrase"),
		Cipher:     cipher,
	})
	if err != nil {
		b.Fatalf("open sealed store: %v", err)
	}
	return sealed
}

// newBackend serves the verify and revoke endpoints, always accepting.
func newBackend(b *testing.B) *httptest.Server {
	b.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(service.VerifySessionPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "isValid": true})
	})
	mux.HandleFunc(service.RevokeSessionPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	})
	srv := httptest.NewServer(mux)
	b.Cleanup(srv.Close)
	return srv
}

// newSession opens an AuthSession over store talking to srv.
func newSession(b *testing.B, store service.TokenStore, srv *httptest.Server) *service.AuthSession {
	b.Helper()
	logger.SetDefault(logger.Discard())

	client := connection.NewHTTPClient(srv.URL, "bench-key-id", "bench-key",
		connection.WithLogger(logger.Discard()))
	session, err := service.NewAuthSession(context.Background(), store, client,
		service.WithLogger(logger.Discard()))
	if err != nil {
		b.Fatalf("open session: %v", err)
	}
	b.Cleanup(session.Wait)
	return session
}

// reportMemory reports heap usage after a GC.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.HeapAlloc)/1024/1024, prefix+"_heap_MB")
}
