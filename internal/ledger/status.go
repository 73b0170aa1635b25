package ledger

import "fmt"

// StockEffect describes the stock side-effect a status transition
// carries. Keeping the effect on the transition itself means stock can
// only move through a declared, valid transition.
type StockEffect int

const (
	// EffectNone carries no stock movement.
	EffectNone StockEffect = iota
	// EffectHold removes the items' quantities from stock.
	EffectHold
	// EffectRelease puts the items' quantities back into stock.
	EffectRelease
)

// saleTransitions is the explicit transition table for sales. Absent
// entries are invalid transitions. Same-status requests never reach
// this table; the orchestrator short-circuits them first.
var saleTransitions = map[SaleStatus]map[SaleStatus]StockEffect{
	SaleStatusOrdered: {
		SaleStatusDispatched: EffectHold,
		SaleStatusCancelled:  EffectNone,
	},
	SaleStatusDispatched: {
		SaleStatusOrdered:   EffectRelease,
		SaleStatusCancelled: EffectRelease,
	},
	SaleStatusCancelled: {},
}

// purchaseTransitions mirrors the sale table but carries no stock
// effects: receiving moves stock in its own flow, and only
// PurchaseReturn subtracts it here.
var purchaseTransitions = map[PurchaseStatus]map[PurchaseStatus]StockEffect{
	PurchaseStatusOrdered: {
		PurchaseStatusReceived:  EffectNone,
		PurchaseStatusCancelled: EffectNone,
	},
	PurchaseStatusReceived: {
		PurchaseStatusCancelled: EffectNone,
	},
	PurchaseStatusCancelled: {},
}

// SaleTransition resolves the stock effect of moving a sale between
// two distinct statuses.
func SaleTransition(from, to SaleStatus) (StockEffect, error) {
	targets, ok := saleTransitions[from]
	if !ok {
		return EffectNone, fmt.Errorf("%w: unknown sale status %q", ErrInvalidTransition, from)
	}
	effect, ok := targets[to]
	if !ok {
		return EffectNone, fmt.Errorf("%w: sale %s -> %s", ErrInvalidTransition, from, to)
	}
	return effect, nil
}

// PurchaseTransition resolves a purchase status change. It never
// carries a stock effect but still rejects undeclared transitions.
func PurchaseTransition(from, to PurchaseStatus) (StockEffect, error) {
	targets, ok := purchaseTransitions[from]
	if !ok {
		return EffectNone, fmt.Errorf("%w: unknown purchase status %q", ErrInvalidTransition, from)
	}
	effect, ok := targets[to]
	if !ok {
		return EffectNone, fmt.Errorf("%w: purchase %s -> %s", ErrInvalidTransition, from, to)
	}
	return effect, nil
}

// ValidSaleStatus reports whether s names a known sale status.
func ValidSaleStatus(s SaleStatus) bool {
	_, ok := saleTransitions[s]
	return ok
}

// ValidPurchaseStatus reports whether s names a known purchase status.
func ValidPurchaseStatus(s PurchaseStatus) bool {
	_, ok := purchaseTransitions[s]
	return ok
}
