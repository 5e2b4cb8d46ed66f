package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"marquee/internal/admission"
	"marquee/internal/app"
	"marquee/internal/logging"
	"marquee/internal/notify"
	"marquee/internal/orders"
	"marquee/internal/orders/txn"
	"marquee/internal/settlement"
	"marquee/internal/tasks"
)

var openStores = app.OpenStores

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "marquee-tasks",
		Short: "Operate the place-order task pipeline",
		Long: `marquee-tasks runs the jobs that follow a place-order transaction:
expiring stale transactions, exporting finished ones to tasks, executing
settle and cancel tasks, and retrying or aborting stalled tasks.

Every flag can also be set as MARQUEE_<FLAG> in the environment.`,
		SilenceUsage: true,
	}
	v.SetEnvPrefix("MARQUEE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := root.PersistentFlags()
	flags.String("database-url", "", "postgres DSN; empty uses in-memory stores")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("kafka-brokers", "", "comma separated kafka brokers; empty logs notifications")
	flags.String("notification-topic", "marquee.notifications", "kafka topic for customer notifications")
	flags.String("alert-topic", "marquee.alerts", "kafka topic for operator alerts")
	flags.Int("max-number-of-try", tasks.DefaultMaxNumberOfTry, "attempts per exported task")
	flags.String("email-from", "", "sender address of confirmation emails")
	flags.Bool("json", false, "output JSON")
	for _, name := range []string{"database-url", "log-level", "kafka-brokers", "notification-topic", "alert-topic", "max-number-of-try", "email-from", "json"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(runCmd(v))
	root.AddCommand(makeExpiredCmd(v))
	root.AddCommand(exportCmd(v))
	root.AddCommand(executeCmd(v))
	root.AddCommand(abortOrRetryCmd(v))
	root.AddCommand(reexportCmd(v))
	return root
}

type deps struct {
	logger   *slog.Logger
	service  *orders.Service
	pipeline app.Pipeline
}

func withDeps(ctx context.Context, v *viper.Viper, errOut io.Writer, fn func(ctx context.Context, d deps) error) error {
	logger := logging.NewWithWriter(errOut, v.GetString("log-level"))

	stores, closeStores, err := openStores(ctx, v.GetString("database-url"), logger)
	if err != nil {
		return err
	}
	defer closeStores()

	senders, closeSenders := app.NewSenders(app.NotifyConfig{
		Brokers:           notify.ParseBrokers(v.GetString("kafka-brokers")),
		NotificationTopic: v.GetString("notification-topic"),
		AlertTopic:        v.GetString("alert-topic"),
	}, logger)
	defer closeSenders()

	reliability, err := settlement.LoadReliabilityConfigFromEnv()
	if err != nil {
		return err
	}
	adapters := app.GuardedAdapters(settlement.NewInMemoryAdapters(), reliability)

	gate := admission.NewGate(admission.NewMemoryCounter(), "placeOrder:", time.Minute)
	return fn(ctx, deps{
		logger:  logger,
		service: orders.NewService(stores.Transactions, stores.Actions, gate, adapters, orders.WithLogger(logger)),
		pipeline: app.NewPipeline(stores, adapters, senders, app.TaskConfig{
			MaxNumberOfTry: v.GetInt("max-number-of-try"),
			EmailFrom:      v.GetString("email-from"),
		}, nil, logger),
	})
}

func runCmd(v *viper.Viper) *cobra.Command {
	var cfg tasks.RunnerConfig
	var names []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every task loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range names {
				name, err := txn.ParseTaskName(raw)
				if err != nil {
					return err
				}
				cfg.Names = append(cfg.Names, name)
			}
			return withDeps(cmd.Context(), v, cmd.ErrOrStderr(), func(ctx context.Context, d deps) error {
				p := d.pipeline
				return tasks.NewRunner(d.logger, d.service, p.Exporter, p.Executor, p.Reclaimer, cfg).Run(ctx)
			})
		},
	}
	cmd.Flags().DurationVar(&cfg.ExportInterval, "export-interval", 0, "poll interval of the export loop")
	cmd.Flags().DurationVar(&cfg.ExecuteInterval, "execute-interval", 0, "poll interval of each execute loop")
	cmd.Flags().DurationVar(&cfg.ReclaimInterval, "reclaim-interval", 0, "interval of the abort-or-retry sweep")
	cmd.Flags().DurationVar(&cfg.ExpireInterval, "expire-interval", 0, "interval of the make-expired sweep")
	cmd.Flags().DurationVar(&cfg.StallTimeout, "stall-timeout", 0, "age after which running tasks and exports are reclaimed")
	cmd.Flags().StringSliceVar(&names, "names", nil, "task names to execute; empty means all")
	return cmd
}

func makeExpiredCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "make-expired",
		Short: "Expire InProgress transactions past their deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), v, cmd.ErrOrStderr(), func(ctx context.Context, d deps) error {
				n, err := d.service.MakeExpired(ctx)
				if err != nil {
					return err
				}
				return report(cmd.OutOrStdout(), v, map[string]any{"expired": n}, "expired %d transactions\n", n)
			})
		},
	}
}

func exportCmd(v *viper.Viper) *cobra.Command {
	var status string
	var all bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export finished transactions to tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := txn.TransactionStatus(status)
			switch st {
			case txn.TransactionConfirmed, txn.TransactionExpired, txn.TransactionCanceled:
			default:
				return fmt.Errorf("--status must be Confirmed, Expired or Canceled, got %q", status)
			}
			return withDeps(cmd.Context(), v, cmd.ErrOrStderr(), func(ctx context.Context, d deps) error {
				exported := []string{}
				for {
					t, ok, err := d.pipeline.Exporter.ExportOne(ctx, st)
					if err != nil {
						return err
					}
					if !ok {
						break
					}
					exported = append(exported, t.ID)
					if !all {
						break
					}
				}
				return report(cmd.OutOrStdout(), v, map[string]any{"exported": exported}, "exported %d transactions\n", len(exported))
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(txn.TransactionConfirmed), "Confirmed, Expired or Canceled")
	cmd.Flags().BoolVar(&all, "all", false, "export until nothing is waiting")
	return cmd
}

func executeCmd(v *viper.Viper) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "execute <task-name>",
		Short: "Execute due tasks of one name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := txn.ParseTaskName(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), v, cmd.ErrOrStderr(), func(ctx context.Context, d deps) error {
				executed := []string{}
				failed := []string{}
				for {
					task, ok, err := d.pipeline.Executor.ExecuteOneByName(ctx, name)
					if !ok {
						if err != nil {
							return err
						}
						break
					}
					if err != nil {
						failed = append(failed, task.ID)
					} else {
						executed = append(executed, task.ID)
					}
					if !all {
						break
					}
				}
				return report(cmd.OutOrStdout(), v, map[string]any{"executed": executed, "failed": failed},
					"executed %d %s tasks, %d failed\n", len(executed), name, len(failed))
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "execute until no task is due")
	return cmd
}

func abortOrRetryCmd(v *viper.Viper) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "abort-or-retry",
		Short: "Retry stalled tasks and abort the exhausted ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), v, cmd.ErrOrStderr(), func(ctx context.Context, d deps) error {
				retried, aborted, err := d.pipeline.Reclaimer.AbortOrRetry(ctx, interval)
				if err != nil {
					return err
				}
				ids := make([]string, 0, len(aborted))
				for _, task := range aborted {
					ids = append(ids, task.ID)
				}
				return report(cmd.OutOrStdout(), v, map[string]any{"retried": retried, "aborted": ids},
					"retried %d tasks, aborted %d\n", retried, len(ids))
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Minute, "age after which a running task counts as stalled")
	return cmd
}

func reexportCmd(v *viper.Viper) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "reexport",
		Short: "Reset transactions stuck in Exporting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), v, cmd.ErrOrStderr(), func(ctx context.Context, d deps) error {
				n, err := d.pipeline.Exporter.ReexportStalled(ctx, interval)
				if err != nil {
					return err
				}
				return report(cmd.OutOrStdout(), v, map[string]any{"reset": n}, "reset %d stalled exports\n", n)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Minute, "age after which an export counts as stalled")
	return cmd
}

func report(w io.Writer, v *viper.Viper, payload any, format string, args ...any) error {
	if v.GetBool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
