package ordersdb

import (
	"context"
	"database/sql"
	"fmt"

	"marquee/internal/orders/txn"
)

// OrderStore persists orders and the ownership infos granted by them.
type OrderStore struct {
	db *sql.DB
}

// NewOrderStore constructs an OrderStore backed by Postgres.
func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// NewOrderStoreWithSchema initializes the schema then returns the store.
func NewOrderStoreWithSchema(ctx context.Context, db *sql.DB) (*OrderStore, error) {
	store := NewOrderStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the orders and ownership_infos tables if they do not exist.
func (s *OrderStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_number TEXT PRIMARY KEY,
			transaction_id TEXT UNIQUE NOT NULL,
			customer_id TEXT NOT NULL,
			price BIGINT NOT NULL,
			order_date TIMESTAMPTZ NOT NULL,
			document JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ownership_infos (
			identifier TEXT PRIMARY KEY,
			order_number TEXT NOT NULL,
			owned_by TEXT NOT NULL,
			owned_from TIMESTAMPTZ NOT NULL,
			owned_through TIMESTAMPTZ NOT NULL,
			document JSONB NOT NULL,
			FOREIGN KEY (order_number) REFERENCES orders(order_number) ON DELETE CASCADE
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

// Create stores order and infos atomically. An order number already present
// is left untouched.
func (s *OrderStore) Create(ctx context.Context, order txn.Order, infos []txn.OwnershipInfo) error {
	document, err := jsonValue(order)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (order_number, transaction_id, customer_id, price, order_date, document)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_number) DO NOTHING`,
		order.OrderNumber, order.TransactionID, order.Customer.ID, order.Price, order.OrderDate, document,
	)
	if err != nil {
		return mapError(err, "order "+order.OrderNumber)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return tx.Commit()
	}

	for _, info := range infos {
		doc, err := jsonValue(info)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ownership_infos (identifier, order_number, owned_by, owned_from, owned_through, document)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (identifier) DO NOTHING`,
			info.Identifier, order.OrderNumber, info.OwnedBy.ID, info.OwnedFrom, info.OwnedThrough, doc,
		); err != nil {
			return mapError(err, "ownership info "+info.Identifier)
		}
	}

	return tx.Commit()
}

func (s *OrderStore) Get(ctx context.Context, orderNumber string) (txn.Order, []txn.OwnershipInfo, error) {
	var document []byte
	row := s.db.QueryRowContext(ctx, `SELECT document FROM orders WHERE order_number = $1`, orderNumber)
	if err := row.Scan(&document); err != nil {
		return txn.Order{}, nil, mapError(err, "order "+orderNumber)
	}
	var order txn.Order
	if err := decodeJSON(document, &order); err != nil {
		return txn.Order{}, nil, fmt.Errorf("decode order: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT document
		FROM ownership_infos
		WHERE order_number = $1
		ORDER BY identifier`,
		orderNumber,
	)
	if err != nil {
		return txn.Order{}, nil, err
	}
	defer rows.Close()

	infos := make([]txn.OwnershipInfo, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return txn.Order{}, nil, err
		}
		var info txn.OwnershipInfo
		if err := decodeJSON(doc, &info); err != nil {
			return txn.Order{}, nil, fmt.Errorf("decode ownership info: %w", err)
		}
		infos = append(infos, info)
	}
	return order, infos, rows.Err()
}
