package internal

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestProcessSampler_Stats(t *testing.T) {
	req := require.New(t)

	// Given a sampler on the running test binary
	sampler, err := NewProcessSampler(int32(os.Getpid()))
	req.NoError(err)

	// When sampling it
	section, err := sampler.Stats(context.Background())

	// Then the current process is described
	req.NoError(err)
	stats, ok := section.(ProcessStats)
	req.True(ok)
	req.Equal(int32(os.Getpid()), stats.PID)
	req.Positive(stats.RSSBytes)
	req.GreaterOrEqual(stats.CPUPercent, 0.0)
}

func TestDebugServer_ProcessSection(t *testing.T) {
	req := require.New(t)
	sampler, err := NewProcessSampler(int32(os.Getpid()))
	req.NoError(err)
	server := NewDebugServer(logs.GetLoggerFromLevel(slog.LevelDebug), 0).With("process", sampler.Stats)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var doc struct {
		Process ProcessStats `json:"process"`
	}
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &doc))
	req.Equal(int32(os.Getpid()), doc.Process.PID)
	req.Positive(doc.Process.RSSBytes)
}
