package app

import (
	"marquee/internal/settlement"
)

// GuardedAdapters puts one guard per back-end in front of base, so a failing
// card gateway does not trip the breaker of the seat inventory.
func GuardedAdapters(base settlement.Adapters, cfg settlement.ReliabilityConfig) settlement.Adapters {
	return settlement.Adapters{
		Seats:    settlement.NewGuardedSeatInventory(base.Seats, settlement.NewGuardFromConfig(cfg)),
		Cards:    settlement.NewGuardedCardGateway(base.Cards, settlement.NewGuardFromConfig(cfg)),
		Discount: settlement.NewGuardedDiscountTickets(base.Discount, settlement.NewGuardFromConfig(cfg)),
		Points:   settlement.NewGuardedPointsAccount(base.Points, settlement.NewGuardFromConfig(cfg)),
		Shop:     base.Shop,
	}
}
