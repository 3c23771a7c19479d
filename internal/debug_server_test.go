package internal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestDebugServer_Status(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	server := NewDebugServer(log, 0).
		With("connection", func(context.Context) (any, error) { return "open", nil }).
		With("repository", func(context.Context) (any, error) { return nil, errors.New("database is locked") }).
		Handle("/recent", func(context.Context) (any, error) { return []string{"A1"}, nil })

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	req.Equal(http.StatusOK, rec.Code)
	var doc map[string]any
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &doc))
	req.Equal("open", doc["connection"])
	req.Equal(map[string]any{"error": "database is locked"}, doc["repository"])

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recent", nil))
	req.JSONEq(`["A1"]`, rec.Body.String())
}
