package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StatsProvider returns one section of the /status document.
type StatsProvider func(ctx context.Context) (any, error)

// DebugServer exposes the live state of the process as JSON.
type DebugServer struct {
	log       *slog.Logger
	server    *http.Server
	providers map[string]StatsProvider
}

func NewDebugServer(log *slog.Logger, port int) *DebugServer {
	d := &DebugServer{log: log, providers: make(map[string]StatsProvider)}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", d.status)
	d.server = &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return d
}

// With registers a section of /status.
func (d *DebugServer) With(name string, provider StatsProvider) *DebugServer {
	d.providers[name] = provider
	return d
}

// Handle mounts an extra JSON endpoint.
func (d *DebugServer) Handle(path string, provider StatsProvider) *DebugServer {
	d.server.Handler.(*http.ServeMux).HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		body, err := provider(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, body)
	})
	return d
}

func (d *DebugServer) status(w http.ResponseWriter, r *http.Request) {
	doc := make(map[string]any, len(d.providers))
	for name, provider := range d.providers {
		section, err := provider(r.Context())
		if err != nil {
			doc[name] = map[string]string{"error": err.Error()}
			continue
		}
		doc[name] = section
	}
	writeJSON(w, doc)
}

// Run serves until ctx is done. It is a supervised worker.
func (d *DebugServer) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		d.log.Info("Debug server listening", "addr", d.server.Addr)
		errChan <- d.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return d.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ServeHTTP lets tests drive the server without a listener.
func (d *DebugServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.server.Handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(body)
}
