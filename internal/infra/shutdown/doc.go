// Package shutdown provides graceful shutdown handling.
//
// A Handler listens for SIGINT and SIGTERM. When one arrives (or the parent
// context passed to Wait ends) it cancels its Context and runs the registered
// hooks in reverse order, bounded by a timeout.
//
// Usage:
//
//	h := shutdown.NewHandler(5 * time.Second)
//	h.OnShutdown(func(ctx context.Context) error { return srv.Shutdown(ctx) })
//	go run(h.Context())
//	err := h.Wait(context.Background())
package shutdown
