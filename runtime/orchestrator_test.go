package runtime_test

import (
	"chat-ingest/contract"
	"chat-ingest/domain"
	"chat-ingest/domain/event"
	"chat-ingest/infrastructure/storage"
	"chat-ingest/mocks"
	"chat-ingest/normalizer"
	"chat-ingest/runtime"
	"chat-ingest/runtime/workers"
	"chat-ingest/session"
	"chat-ingest/sink"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestOrchestrator_IngestsThenReconciles(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend, err := storage.OpenBackend(storage.SQLiteBackend, filepath.Join(t.TempDir(), "ingest.db"), log)
	req.NoError(err)
	defer backend.Close()

	// Given a remote service delivering one inbound text once the connection is open
	text := "hello"
	transport := mocks.NewMockTransport(ctrl)
	transport.EXPECT().Subscribe(gomock.Any()).DoAndReturn(func(l contract.TransportListener) func() {
		go func() {
			l.OnConnectionUpdate(domain.ConnectionUpdate{Connection: domain.PhaseOpen, Me: "33600000000:3@s.whatsapp.net"})
			time.Sleep(20 * time.Millisecond)
			l.OnMessages([]domain.RawEvent{{
				Key:              domain.MessageKey{ID: "A1", RemoteJID: "33611111111@s.whatsapp.net"},
				MessageTimestamp: 1700000000,
				Message:          &domain.Payload{Conversation: &text},
			}})
		}()
		return func() {}
	})
	transport.EXPECT().End(gomock.Any()).Return(nil).AnyTimes()
	dialer := mocks.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any(), "default", nil, gomock.Any()).Return(transport, nil)

	policy := session.DefaultPolicy()
	policy.CredentialFlushTimeout = 100 * time.Millisecond
	connector := session.NewConnector(log, "default", dialer, backend.Auth, mocks.NewMockPairingPresenter(ctrl), policy)

	telemetry := make(chan event.Event, 100)
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log, telemetry, 10*time.Millisecond),
		telemetry, connector, backend.Messages, normalizer.NewNormalizer(log), runtime.Options{
			QueueCapacity:        10,
			SinkTimeout:          time.Second,
			ReconcileInterval:    20 * time.Millisecond,
			SummaryMaxChars:      50,
			MetricInterval:       10 * time.Millisecond,
			LowCapacityThreshold: 2,
		})
	timeline := sink.NewTimeline(5)
	orchestrator.Add(sink.NewMessageSink(backend.Messages, log), timeline)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- orchestrator.Start(ctx) }()

	// Then the message is persisted and later marked processed
	req.Eventually(func() bool {
		msg, err := backend.Messages.Get(context.Background(), "A1")
		return err == nil && msg.Processed
	}, 3*time.Second, 10*time.Millisecond)

	msg, err := backend.Messages.Get(context.Background(), "A1")
	req.NoError(err)
	req.Equal("33611111111", *msg.From)
	req.Equal("33600000000", *msg.To)
	req.Len(timeline.Recent(), 1)

	status, err := orchestrator.Status(context.Background())
	req.NoError(err)
	req.Equal("open", status.Connection)
	req.Zero(status.Unprocessed)
	req.Equal(10, status.QueueCapacity)
	req.Zero(status.DroppedBatches)

	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(3 * time.Second):
		req.Fail("orchestrator did not stop")
	}
}
