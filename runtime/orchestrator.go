// Package runtime wires the ingestion system: one connection feeding a
// bounded queue, one consumer persisting normalized messages, and one
// periodic reconciliation task. It contains no business rules.
package runtime

import (
	"chat-ingest/contract"
	"chat-ingest/domain"
	"chat-ingest/domain/event"
	"chat-ingest/runtime/workers"
	"context"
	"log/slog"
	"sync"
	"time"
)

const ingestionQueueName = "ingestion"

type Connector interface {
	workers.Connector
	State() domain.ConnectionState
}

type Options struct {
	QueueCapacity        int
	SinkTimeout          time.Duration
	ReconcileInterval    time.Duration
	SummaryMaxChars      int
	MetricInterval       time.Duration
	LowCapacityThreshold int
}

type Orchestrator struct {
	mu              sync.Mutex
	log             *slog.Logger
	options         Options
	supervisor      contract.ISupervisor
	connector       Connector
	repository      contract.IMessageRepository
	normalizer      workers.Normalizer
	queue           *workers.BatchQueue
	telemetryEvents chan event.Event
	sinks           []contract.EventSink
	extraWorkers    []contract.Worker
	counter         *event.Counter
	sweeps          *event.SweepCompletedHandler
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, telemetryEvents chan event.Event,
	connector Connector, repository contract.IMessageRepository, normalizer workers.Normalizer,
	options Options) *Orchestrator {
	return &Orchestrator{
		log:             log,
		options:         options,
		supervisor:      supervisor,
		connector:       connector,
		repository:      repository,
		normalizer:      normalizer,
		queue:           workers.NewBatchQueue(log, options.QueueCapacity, telemetryEvents),
		telemetryEvents: telemetryEvents,
		counter:         event.NewCounter(),
		sweeps:          event.NewSweepCompletedHandler(log),
	}
}

// Add registers the sinks fed with every normalized message, in order.
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sinks = append(o.sinks, sinks...)
}

// AddWorkers registers side workers (debug server...) supervised with the pipeline.
func (o *Orchestrator) AddWorkers(ws ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.extraWorkers = append(o.extraWorkers, ws...)
}

// Start registers every worker on the supervisor and blocks until it stops.
// The error is the terminal failure that stopped it, if any.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	o.supervisor.Add(
		workers.NewSessionWorker(o.log, o.connector, o.queue),
		workers.NewIngestionWorker(o.log, o.queue, o.normalizer, o.options.SinkTimeout, o.sinks...),
		workers.NewReconcilerWorker(o.log, o.repository, o.options.ReconcileInterval,
			o.options.SummaryMaxChars, o.telemetryEvents),
		workers.NewChannelCapacityWorker(o.log,
			[]workers.NamedChannel{o.queue.Named(ingestionQueueName)},
			o.telemetryEvents, o.options.MetricInterval),
		workers.NewTelemetryWorker(o.log, o.telemetryEvents,
			event.NewChannelCapacityHandler(o.log, o.options.LowCapacityThreshold),
			event.NewWorkerRestartedAfterPanicHandler(o.log, o.counter),
			event.NewBatchDroppedHandler(o.log, o.counter),
			o.sweeps,
		),
	)
	o.supervisor.Add(o.extraWorkers...)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	return o.supervisor.Run(ctx)
}

// Status is the live state shown by the debug server.
type Status struct {
	Connection     string               `json:"connection"`
	QueueLength    int                  `json:"queueLength"`
	QueueCapacity  int                  `json:"queueCapacity"`
	Unprocessed    int                  `json:"unprocessed"`
	DroppedBatches int64                `json:"droppedBatches"`
	Restarts       int                  `json:"workerRestarts"`
	Reconcile      event.ReconcileStats `json:"reconcile"`
}

func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	unprocessed, err := o.repository.CountUnprocessed(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Connection:     o.connector.State().String(),
		QueueLength:    o.queue.Len(),
		QueueCapacity:  o.queue.Cap(),
		Unprocessed:    unprocessed,
		DroppedBatches: o.queue.Dropped(),
		Restarts:       o.counter.Get(event.RestartedAfterPanicType),
		Reconcile:      o.sweeps.Stats(),
	}, nil
}
