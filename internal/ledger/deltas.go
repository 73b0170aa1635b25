package ledger

import "sort"

// stockDirection returns the per-unit stock contribution a transaction
// in the given state holds: +1 when its items add to stock, -1 when
// they subtract, 0 when the state carries no stock effect.
//
// A Sale only holds stock while Dispatched. A Purchase never moves
// stock here (receiving is a separate flow). Returns always hold their
// effect for as long as the record is live.
func stockDirection(txType TxType, status string) int64 {
	switch txType {
	case TxTypeSale:
		if SaleStatus(status) == SaleStatusDispatched {
			return -1
		}
		return 0
	case TxTypeSalesReturn:
		return 1
	case TxTypePurchaseReturn:
		return -1
	default:
		return 0
	}
}

// contributions sums each product's stock effect under the given
// direction. Lines for the same product accumulate.
func contributions(items []LineItem, direction int64) map[int64]int64 {
	if direction == 0 {
		return nil
	}
	out := make(map[int64]int64, len(items))
	for _, item := range items {
		out[item.ProductID] += direction * item.Quantity
	}
	return out
}

// StockDeltas returns the per-product adjustments needed to move a
// transaction's applied stock effect from its previous state to its
// next one. Reverting always uses the previously stored items,
// reapplying the newly submitted ones, so quantity edits never double
// count: a return edited from qty 2 to qty 5 yields a net +3.
//
// Create passes nil previous items; delete passes nil next items.
func StockDeltas(previous []LineItem, prevDirection int64, next []LineItem, nextDirection int64) map[int64]int64 {
	deltas := make(map[int64]int64)
	for productID, qty := range contributions(previous, prevDirection) {
		deltas[productID] -= qty
	}
	for productID, qty := range contributions(next, nextDirection) {
		deltas[productID] += qty
	}
	for productID, qty := range deltas {
		if qty == 0 {
			delete(deltas, productID)
		}
	}
	if len(deltas) == 0 {
		return nil
	}
	return deltas
}

// sortedProductIDs returns the delta keys in ascending order so deltas
// are always applied in a stable order; two concurrent reconciliations
// touching the same products then lock rows in the same sequence.
func sortedProductIDs(deltas map[int64]int64) []int64 {
	ids := make([]int64, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
