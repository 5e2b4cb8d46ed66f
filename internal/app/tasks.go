package app

import (
	"log/slog"

	"marquee/internal/settlement"
	"marquee/internal/tasks"
)

// TaskConfig tunes export and retry.
type TaskConfig struct {
	MaxNumberOfTry int
	EmailFrom      string
}

// Pipeline is the export, execute and reclaim machinery over one set of
// stores.
type Pipeline struct {
	Exporter  *tasks.Exporter
	Executor  *tasks.Executor
	Reclaimer *tasks.Reclaimer
}

func NewPipeline(stores Stores, adapters settlement.Adapters, senders Senders, cfg TaskConfig, recorder tasks.Recorder, logger *slog.Logger) Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	handlers := tasks.NewHandlers(stores.Transactions, stores.Actions, stores.Orders, adapters, senders.Notifications, logger)
	return Pipeline{
		Exporter: tasks.NewExporter(stores.Transactions, stores.Tasks, tasks.ExporterConfig{
			MaxNumberOfTry: cfg.MaxNumberOfTry,
			EmailFrom:      cfg.EmailFrom,
			Logger:         logger,
			Recorder:       recorder,
		}),
		Executor: tasks.NewExecutor(stores.Tasks, handlers.Map(),
			tasks.WithExecutorLogger(logger),
			tasks.WithExecutorRecorder(recorder),
		),
		Reclaimer: tasks.NewReclaimer(stores.Tasks, senders.Alerts, logger, recorder),
	}
}
