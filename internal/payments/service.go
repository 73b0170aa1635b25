package payments

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/meridian-retail/meridian/internal/party"
	"github.com/meridian-retail/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	GetPartyKind(ctx context.Context, partyID int64) (party.Kind, error)
	Create(ctx context.Context, input Input, field party.BalanceField) (BalancePayment, error)
	List(ctx context.Context, partyID int64, limit int) ([]BalancePayment, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service records balance payments. The party's kind decides which
// counter the payment settles: customers pay down sales_due, suppliers
// are paid down purchase_due.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// RecordPayment settles input.Amount against the party's open due.
func (s *Service) RecordPayment(ctx context.Context, input Input) (BalancePayment, error) {
	if input.PartyID == 0 {
		return BalancePayment{}, fmt.Errorf("%w: party required", ErrValidation)
	}
	if input.Amount <= 0 {
		return BalancePayment{}, fmt.Errorf("%w: amount must be > 0", ErrValidation)
	}
	if input.PaidOn.IsZero() {
		input.PaidOn = time.Now()
	}

	kind, err := s.repo.GetPartyKind(ctx, input.PartyID)
	if err != nil {
		return BalancePayment{}, err
	}
	field := party.FieldSalesDue
	if kind == party.KindSupplier {
		field = party.FieldPurchaseDue
	}

	p, err := s.repo.Create(ctx, input, field)
	if err != nil {
		return BalancePayment{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "payments:record",
			Entity:   "balance_payment",
			EntityID: strconv.FormatInt(p.ID, 10),
			Meta:     map[string]any{"party_id": p.PartyID, "amount": p.Amount, "field": string(field)},
		})
	}
	return p, nil
}

// ListPayments returns a party's balance payments.
func (s *Service) ListPayments(ctx context.Context, partyID int64, limit int) ([]BalancePayment, error) {
	if partyID == 0 {
		return nil, fmt.Errorf("%w: party required", ErrValidation)
	}
	return s.repo.List(ctx, partyID, limit)
}
