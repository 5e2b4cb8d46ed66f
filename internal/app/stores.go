package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"marquee/internal/db/memory"
	ordersdb "marquee/internal/db/orders"
	"marquee/internal/orders/txn"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Stores groups the persistence used by the place-order service and the
// task runner.
type Stores struct {
	Transactions txn.TransactionStore
	Actions      txn.ActionStore
	Tasks        txn.TaskStore
	Orders       txn.OrderStore
}

var openDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// MemoryStores returns empty in-memory stores.
func MemoryStores() Stores {
	return Stores{
		Transactions: memory.NewTransactionStore(),
		Actions:      memory.NewActionStore(),
		Tasks:        memory.NewTaskStore(),
		Orders:       memory.NewOrderStore(),
	}
}

// OpenStores connects the Postgres stores and creates their schema. An empty
// dsn selects in-memory stores, which do not survive a restart.
func OpenStores(ctx context.Context, dsn string, logger *slog.Logger) (Stores, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dsn == "" {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		return MemoryStores(), func() {}, nil
	}

	db, err := openDB("pgx", dsn)
	if err != nil {
		return Stores{}, nil, err
	}

	setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stores, err := postgresStores(setupCtx, db)
	if err != nil {
		_ = db.Close()
		return Stores{}, nil, err
	}
	logger.Info("postgres stores enabled")

	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Error("close postgres", "err", err)
		}
	}
	return stores, cleanup, nil
}

func postgresStores(ctx context.Context, db *sql.DB) (Stores, error) {
	transactions, err := ordersdb.NewTransactionStoreWithSchema(ctx, db)
	if err != nil {
		return Stores{}, err
	}
	actions, err := ordersdb.NewActionStoreWithSchema(ctx, db)
	if err != nil {
		return Stores{}, err
	}
	tasks, err := ordersdb.NewTaskStoreWithSchema(ctx, db)
	if err != nil {
		return Stores{}, err
	}
	orders, err := ordersdb.NewOrderStoreWithSchema(ctx, db)
	if err != nil {
		return Stores{}, err
	}
	return Stores{Transactions: transactions, Actions: actions, Tasks: tasks, Orders: orders}, nil
}
