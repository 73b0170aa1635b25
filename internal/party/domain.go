package party

import (
	"errors"
	"time"
)

// Kind discriminates customers from suppliers.
type Kind string

const (
	// KindCustomer marks a sales counterparty.
	KindCustomer Kind = "CUSTOMER"
	// KindSupplier marks a purchase counterparty.
	KindSupplier Kind = "SUPPLIER"
)

// BalanceField names one of the running due counters on a party. Every
// mutation of these counters goes through an atomic delta and leaves a
// balance_movements row behind.
type BalanceField string

const (
	FieldSalesDue          BalanceField = "sales_due"
	FieldSalesReturnDue    BalanceField = "sales_return_due"
	FieldPurchaseDue       BalanceField = "purchase_due"
	FieldPurchaseReturnDue BalanceField = "purchase_return_due"
)

// Valid reports whether the field names a known due counter. The field
// name is interpolated into UPDATE statements, so unknown values must
// be rejected before they reach the repository.
func (f BalanceField) Valid() bool {
	switch f {
	case FieldSalesDue, FieldSalesReturnDue, FieldPurchaseDue, FieldPurchaseReturnDue:
		return true
	}
	return false
}

// Party is a customer or supplier with running due counters.
type Party struct {
	ID                int64     `json:"id"`
	Kind              Kind      `json:"kind"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone,omitempty"`
	OpeningBalance    float64   `json:"opening_balance"`
	SalesDue          float64   `json:"sales_due"`
	SalesReturnDue    float64   `json:"sales_return_due"`
	PurchaseDue       float64   `json:"purchase_due"`
	PurchaseReturnDue float64   `json:"purchase_return_due"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Input describes a create or full-update request.
type Input struct {
	Kind           Kind
	Code           string
	Name           string
	Phone          string
	OpeningBalance float64
}

// BalanceMovement is one append-only entry in the balance movement log.
type BalanceMovement struct {
	ID            int64        `json:"id"`
	PartyID       int64        `json:"party_id"`
	TransactionID int64        `json:"transaction_id,omitempty"`
	PaymentID     int64        `json:"payment_id,omitempty"`
	Field         BalanceField `json:"field"`
	Amount        float64      `json:"amount"`
	CreatedAt     time.Time    `json:"created_at"`
}

// ListFilter narrows party listings.
type ListFilter struct {
	Kind   Kind
	Search string
	Limit  int
	Offset int
}

// ErrNotFound indicates a missing party.
var ErrNotFound = errors.New("party: not found")

// ErrDuplicateCode indicates a party code collision.
var ErrDuplicateCode = errors.New("party: code already exists")

// ErrValidation indicates a malformed party payload.
var ErrValidation = errors.New("party: invalid input")

// ErrInvalidField indicates an unknown balance field.
var ErrInvalidField = errors.New("party: invalid balance field")
