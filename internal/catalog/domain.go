package catalog

import (
	"errors"
	"time"
)

// Product represents a sellable item with a running stock counter.
// The counter is only ever mutated through atomic deltas; every delta
// has a matching stock_movements row written in the same transaction.
type Product struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	BranchID  int64     `json:"branch_id"`
	UnitPrice float64   `json:"unit_price"`
	UnitCost  float64   `json:"unit_cost"`
	Stock     int64     `json:"stock"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductInput describes a create or full-update request.
type ProductInput struct {
	Code      string
	Name      string
	BranchID  int64
	UnitPrice float64
	UnitCost  float64
	Stock     int64
	IsActive  bool
}

// AdjustmentInput describes a manual stock correction outside any
// ledger transaction (stocktake, damage write-off).
type AdjustmentInput struct {
	ProductID int64
	Delta     int64
	Reason    string
	ActorID   int64
}

// StockCardEntry is one movement-log row projected for reports.
type StockCardEntry struct {
	MovementID    int64     `json:"movement_id"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	Qty           int64     `json:"qty"`
	Reason        string    `json:"reason"`
	BalanceAfter  int64     `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListFilter narrows product listings.
type ListFilter struct {
	BranchID int64
	Search   string
	Active   *bool
	Limit    int
	Offset   int
}

// ErrNotFound indicates a missing product.
var ErrNotFound = errors.New("catalog: product not found")

// ErrDuplicateCode indicates a product code collision.
var ErrDuplicateCode = errors.New("catalog: product code already exists")

// ErrValidation indicates a malformed product payload.
var ErrValidation = errors.New("catalog: invalid input")
