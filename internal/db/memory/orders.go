package memory

import (
	"context"
	"fmt"
	"sync"

	"marquee/internal/orders/txn"
)

type storedOrder struct {
	order txn.Order
	infos []txn.OwnershipInfo
}

// OrderStore keeps orders in memory.
type OrderStore struct {
	mu     sync.Mutex
	orders map[string]storedOrder
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]storedOrder)}
}

func (s *OrderStore) Create(_ context.Context, order txn.Order, infos []txn.OwnershipInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.OrderNumber]; ok {
		return nil
	}
	s.orders[order.OrderNumber] = storedOrder{order: order, infos: append([]txn.OwnershipInfo(nil), infos...)}
	return nil
}

func (s *OrderStore) Get(_ context.Context, orderNumber string) (txn.Order, []txn.OwnershipInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.orders[orderNumber]
	if !ok {
		return txn.Order{}, nil, fmt.Errorf("%w: order %s", txn.ErrNotFound, orderNumber)
	}
	return stored.order, stored.infos, nil
}
