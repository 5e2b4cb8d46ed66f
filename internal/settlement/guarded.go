package settlement

import "context"

// GuardedSeatInventory wraps a SeatInventory with reliability controls.
type GuardedSeatInventory struct {
	base  SeatInventory
	guard *Guard
}

func NewGuardedSeatInventory(base SeatInventory, guard *Guard) *GuardedSeatInventory {
	return &GuardedSeatInventory{base: base, guard: guard}
}

func (s *GuardedSeatInventory) Hold(ctx context.Context, req HoldRequest) (string, error) {
	var token string
	err := s.guard.Call(ctx, func() error {
		var err error
		token, err = s.base.Hold(ctx, req)
		return err
	})
	return token, err
}

func (s *GuardedSeatInventory) Release(ctx context.Context, holdToken string) error {
	return s.guard.Idempotent(ctx, func() error {
		return s.base.Release(ctx, holdToken)
	})
}

func (s *GuardedSeatInventory) Confirm(ctx context.Context, holdToken string, buyer BuyerInfo) (string, error) {
	var number string
	err := s.guard.Call(ctx, func() error {
		var err error
		number, err = s.base.Confirm(ctx, holdToken, buyer)
		return err
	})
	return number, err
}

// GuardedCardGateway wraps a CardGateway with reliability controls. Only
// SearchTrade is retried.
type GuardedCardGateway struct {
	base  CardGateway
	guard *Guard
}

func NewGuardedCardGateway(base CardGateway, guard *Guard) *GuardedCardGateway {
	return &GuardedCardGateway{base: base, guard: guard}
}

func (c *GuardedCardGateway) EntryTran(ctx context.Context, shop ShopCredentials, orderID string, amount int64) (AccessToken, error) {
	var token AccessToken
	err := c.guard.Call(ctx, func() error {
		var err error
		token, err = c.base.EntryTran(ctx, shop, orderID, amount)
		return err
	})
	return token, err
}

func (c *GuardedCardGateway) ExecTran(ctx context.Context, token AccessToken, orderID string, card CardDetails) (ExecResult, error) {
	var res ExecResult
	err := c.guard.Call(ctx, func() error {
		var err error
		res, err = c.base.ExecTran(ctx, token, orderID, card)
		return err
	})
	return res, err
}

func (c *GuardedCardGateway) AlterTran(ctx context.Context, shop ShopCredentials, token AccessToken, job JobCode, amount int64) error {
	return c.guard.Call(ctx, func() error {
		return c.base.AlterTran(ctx, shop, token, job, amount)
	})
}

func (c *GuardedCardGateway) SearchTrade(ctx context.Context, shop ShopCredentials, orderID string) (Trade, error) {
	var trade Trade
	err := c.guard.Idempotent(ctx, func() error {
		var err error
		trade, err = c.base.SearchTrade(ctx, shop, orderID)
		return err
	})
	return trade, err
}

// GuardedDiscountTickets wraps a DiscountTickets with reliability controls.
type GuardedDiscountTickets struct {
	base  DiscountTickets
	guard *Guard
}

func NewGuardedDiscountTickets(base DiscountTickets, guard *Guard) *GuardedDiscountTickets {
	return &GuardedDiscountTickets{base: base, guard: guard}
}

func (d *GuardedDiscountTickets) ValidateAndRedeem(ctx context.Context, req RedeemRequest) (RedeemResult, error) {
	var res RedeemResult
	err := d.guard.Call(ctx, func() error {
		var err error
		res, err = d.base.ValidateAndRedeem(ctx, req)
		return err
	})
	return res, err
}

// GuardedPointsAccount wraps a PointsAccount with reliability controls.
// Confirm and Cancel address an existing points transaction and are retried.
type GuardedPointsAccount struct {
	base  PointsAccount
	guard *Guard
}

func NewGuardedPointsAccount(base PointsAccount, guard *Guard) *GuardedPointsAccount {
	return &GuardedPointsAccount{base: base, guard: guard}
}

func (p *GuardedPointsAccount) Open(ctx context.Context, ownerID string) (string, error) {
	return p.callString(ctx, func() (string, error) { return p.base.Open(ctx, ownerID) })
}

func (p *GuardedPointsAccount) Deposit(ctx context.Context, accountNumber string, amount int64, notes string) (string, error) {
	return p.callString(ctx, func() (string, error) { return p.base.Deposit(ctx, accountNumber, amount, notes) })
}

func (p *GuardedPointsAccount) Withdraw(ctx context.Context, accountNumber string, amount int64, notes string) (string, error) {
	return p.callString(ctx, func() (string, error) { return p.base.Withdraw(ctx, accountNumber, amount, notes) })
}

func (p *GuardedPointsAccount) Transfer(ctx context.Context, fromAccount, toAccount string, amount int64, notes string) (string, error) {
	return p.callString(ctx, func() (string, error) { return p.base.Transfer(ctx, fromAccount, toAccount, amount, notes) })
}

func (p *GuardedPointsAccount) Confirm(ctx context.Context, pointsTransactionID string) error {
	return p.guard.Idempotent(ctx, func() error {
		return p.base.Confirm(ctx, pointsTransactionID)
	})
}

func (p *GuardedPointsAccount) Cancel(ctx context.Context, pointsTransactionID string) error {
	return p.guard.Idempotent(ctx, func() error {
		return p.base.Cancel(ctx, pointsTransactionID)
	})
}

func (p *GuardedPointsAccount) callString(ctx context.Context, fn func() (string, error)) (string, error) {
	var out string
	err := p.guard.Call(ctx, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}
