package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"marquee/internal/orders/txn"
)

// Expirer flips overdue InProgress transactions to Expired.
type Expirer interface {
	MakeExpired(ctx context.Context) (int64, error)
}

// RunnerConfig sets the loop intervals. Zero values fall back to defaults.
type RunnerConfig struct {
	ExportInterval  time.Duration
	ExecuteInterval time.Duration
	ReclaimInterval time.Duration
	ExpireInterval  time.Duration
	// StallTimeout is how long a task may stay Running, or a transaction
	// Exporting, before it is reclaimed.
	StallTimeout time.Duration
	// Names limits which tasks this process executes. Empty means all.
	Names []txn.TaskName
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.ExportInterval <= 0 {
		c.ExportInterval = 500 * time.Millisecond
	}
	if c.ExecuteInterval <= 0 {
		c.ExecuteInterval = 500 * time.Millisecond
	}
	if c.ReclaimInterval <= 0 {
		c.ReclaimInterval = 30 * time.Second
	}
	if c.ExpireInterval <= 0 {
		c.ExpireInterval = 10 * time.Second
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = 10 * time.Minute
	}
	if len(c.Names) == 0 {
		c.Names = txn.TaskNames
	}
	return c
}

// Runner drives the background loops: expire, export, execute and reclaim.
type Runner struct {
	log       *slog.Logger
	expirer   Expirer
	exporter  *Exporter
	executor  *Executor
	reclaimer *Reclaimer
	cfg       RunnerConfig
}

func NewRunner(log *slog.Logger, expirer Expirer, exporter *Exporter, executor *Executor, reclaimer *Reclaimer, cfg RunnerConfig) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		log:       log,
		expirer:   expirer,
		exporter:  exporter,
		executor:  executor,
		reclaimer: reclaimer,
		cfg:       cfg.withDefaults(),
	}
}

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	loop := func(name string, interval time.Duration, tick func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					r.log.Info("task loop stopping", "loop", name)
					return
				case <-t.C:
					tick(ctx)
				}
			}
		}()
	}

	if r.expirer != nil {
		loop("expire", r.cfg.ExpireInterval, r.expireTick)
	}
	if r.exporter != nil {
		loop("export", r.cfg.ExportInterval, r.exportTick)
	}
	if r.executor != nil {
		for _, name := range r.cfg.Names {
			loop("execute."+string(name), r.cfg.ExecuteInterval, func(ctx context.Context) { r.executeTick(ctx, name) })
		}
	}
	if r.reclaimer != nil || r.exporter != nil {
		loop("reclaim", r.cfg.ReclaimInterval, r.reclaimTick)
	}

	wg.Wait()
	return nil
}

func (r *Runner) expireTick(ctx context.Context) {
	if _, err := r.expirer.MakeExpired(ctx); err != nil {
		r.log.Error("make expired error", "err", err)
	}
}

// exportTick drains every finished status until nothing is waiting.
func (r *Runner) exportTick(ctx context.Context) {
	for _, status := range []txn.TransactionStatus{txn.TransactionConfirmed, txn.TransactionExpired, txn.TransactionCanceled} {
		for ctx.Err() == nil {
			t, ok, err := r.exporter.ExportOne(ctx, status)
			if err != nil {
				r.log.Error("export error", "status", status, "transaction_id", t.ID, "err", err)
				break
			}
			if !ok {
				break
			}
		}
	}
}

func (r *Runner) executeTick(ctx context.Context, name txn.TaskName) {
	for ctx.Err() == nil {
		_, ok, err := r.executor.ExecuteOneByName(ctx, name)
		if err != nil {
			// handler failures are already logged and recorded on the task
			if !ok {
				r.log.Error("claim task error", "task", name, "err", err)
			}
			return
		}
		if !ok {
			return
		}
	}
}

func (r *Runner) reclaimTick(ctx context.Context) {
	if r.reclaimer != nil {
		if _, _, err := r.reclaimer.AbortOrRetry(ctx, r.cfg.StallTimeout); err != nil {
			r.log.Error("reclaim tasks error", "err", err)
		}
	}
	if r.exporter != nil {
		if _, err := r.exporter.ReexportStalled(ctx, r.cfg.StallTimeout); err != nil {
			r.log.Error("reexport stalled error", "err", err)
		}
	}
}
