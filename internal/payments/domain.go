package payments

import (
	"errors"
	"time"
)

// BalancePayment settles part of a party's outstanding due outside any
// single transaction: a customer paying down sales_due, or the company
// paying a supplier down purchase_due.
type BalancePayment struct {
	ID        int64     `json:"id"`
	PartyID   int64     `json:"party_id"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	Note      string    `json:"note,omitempty"`
	PaidOn    time.Time `json:"paid_on"`
	CreatedAt time.Time `json:"created_at"`
}

// Input describes a submitted balance payment.
type Input struct {
	PartyID int64
	Amount  float64
	Method  string
	Note    string
	PaidOn  time.Time
	ActorID int64
}

// ErrNotFound indicates a missing payment or party.
var ErrNotFound = errors.New("payments: not found")

// ErrValidation indicates a malformed request.
var ErrValidation = errors.New("payments: invalid input")
