package ledger

import (
	"errors"
	"time"
)

// TxType enumerates the transaction kinds the ledger reconciles.
type TxType string

const (
	// TxTypeSale is an outbound sale to a customer.
	TxTypeSale TxType = "SALE"
	// TxTypePurchase is an inbound purchase from a supplier.
	TxTypePurchase TxType = "PURCHASE"
	// TxTypeSalesReturn is goods coming back from a customer.
	TxTypeSalesReturn TxType = "SALES_RETURN"
	// TxTypePurchaseReturn is goods going back to a supplier.
	TxTypePurchaseReturn TxType = "PURCHASE_RETURN"
)

// SaleStatus is the sale order lifecycle. Only the Dispatched state
// holds stock; the transition table in status.go is the single place
// that decides when stock moves.
type SaleStatus string

const (
	SaleStatusOrdered    SaleStatus = "ORDERED"
	SaleStatusDispatched SaleStatus = "DISPATCHED"
	SaleStatusCancelled  SaleStatus = "CANCELLED"
)

// PurchaseStatus is the purchase order lifecycle. Purchase status
// changes never move stock here; goods receiving is a separate flow
// and only PurchaseReturn touches inventory.
type PurchaseStatus string

const (
	PurchaseStatusOrdered   PurchaseStatus = "PURCHASE_ORDER"
	PurchaseStatusReceived  PurchaseStatus = "RECEIVED"
	PurchaseStatusCancelled PurchaseStatus = "CANCELLED"
)

// Transaction is one Sale, Purchase, SalesReturn, or PurchaseReturn
// with its embedded line items and payments. Totals are always
// recomputed server-side before a write; caller-supplied totals are
// ignored.
type Transaction struct {
	ID         int64      `json:"id"`
	Code       string     `json:"code"`
	Type       TxType     `json:"type"`
	PartyID    int64      `json:"party_id"`
	BranchID   int64      `json:"branch_id"`
	Status     string     `json:"status,omitempty"`
	GrandTotal float64    `json:"grand_total"`
	PaidAmount float64    `json:"paid_amount"`
	DueAmount  float64    `json:"due_amount"`
	Note       string     `json:"note,omitempty"`
	Items      []LineItem `json:"items"`
	Payments   []Payment  `json:"payments,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// LineItem is one product line within a transaction. Immutable once
// persisted; updates replace the whole item set.
type LineItem struct {
	ID              int64   `json:"id"`
	TransactionID   int64   `json:"transaction_id"`
	ProductID       int64   `json:"product_id"`
	Quantity        int64   `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
	TaxPercent      float64 `json:"tax_percent"`
	Subtotal        float64 `json:"subtotal"`
	Total           float64 `json:"total"`
}

// Payment is an embedded payment on a Sale or Purchase.
type Payment struct {
	ID            int64      `json:"id"`
	TransactionID int64      `json:"transaction_id"`
	Amount        float64    `json:"amount"`
	PaidOn        time.Time  `json:"paid_on"`
	Method        string     `json:"method"`
	Note          string     `json:"note,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
}

// LineItemInput describes a submitted line.
type LineItemInput struct {
	ProductID       int64
	Quantity        int64
	UnitPrice       float64
	DiscountPercent float64
	TaxPercent      float64
}

// PaymentInput describes a submitted payment.
type PaymentInput struct {
	Amount  float64
	PaidOn  time.Time
	Method  string
	Note    string
	DueDate *time.Time
}

// CreateInput carries everything needed to create a transaction.
type CreateInput struct {
	Code     string
	PartyID  int64
	BranchID int64
	Status   string
	Note     string
	Items    []LineItemInput
	Payments []PaymentInput
	ActorID  int64
}

// UpdateInput replaces a transaction's items, payments, note, and
// optionally its status wholesale. An empty Note clears the stored
// note; an empty Status keeps the stored one.
type UpdateInput struct {
	Items    []LineItemInput
	Payments []PaymentInput
	Status   string
	Note     string
	ActorID  int64
}

// ListFilter narrows transaction listings.
type ListFilter struct {
	Type     TxType
	PartyID  int64
	BranchID int64
	Status   string
	Limit    int
	Offset   int
}

// ErrNotFound indicates a missing transaction.
var ErrNotFound = errors.New("ledger: transaction not found")

// ErrValidation indicates a malformed request.
var ErrValidation = errors.New("ledger: invalid input")

// ErrInvalidTransition indicates a status change the state machine
// does not permit.
var ErrInvalidTransition = errors.New("ledger: invalid status transition")

// ErrPartyKind indicates the referenced party has the wrong kind for
// the transaction type.
var ErrPartyKind = errors.New("ledger: party kind mismatch")

// ErrProductMissing indicates a line references an unknown product.
var ErrProductMissing = errors.New("ledger: product not found")

// ErrInsufficientStock indicates a movement would drive stock negative
// while negative stock is disabled.
var ErrInsufficientStock = errors.New("ledger: insufficient stock")
