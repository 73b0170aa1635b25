package party

import (
	"context"
	"fmt"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Create(ctx context.Context, input Input) (Party, error)
	Update(ctx context.Context, id int64, input Input) (Party, error)
	Get(ctx context.Context, id int64) (Party, error)
	List(ctx context.Context, filter ListFilter) ([]Party, int, error)
	AdjustBalance(ctx context.Context, partyID int64, field BalanceField, delta float64) error
	ListMovements(ctx context.Context, partyID int64, limit int) ([]BalanceMovement, error)
}

// Service coordinates party directory operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateParty registers a customer or supplier.
func (s *Service) CreateParty(ctx context.Context, input Input) (Party, error) {
	if input.Kind != KindCustomer && input.Kind != KindSupplier {
		return Party{}, fmt.Errorf("%w: kind must be CUSTOMER or SUPPLIER", ErrValidation)
	}
	if input.Code == "" || input.Name == "" {
		return Party{}, fmt.Errorf("%w: code and name required", ErrValidation)
	}
	return s.repo.Create(ctx, input)
}

// UpdateParty replaces the mutable fields of a party.
func (s *Service) UpdateParty(ctx context.Context, id int64, input Input) (Party, error) {
	if input.Code == "" || input.Name == "" {
		return Party{}, fmt.Errorf("%w: code and name required", ErrValidation)
	}
	return s.repo.Update(ctx, id, input)
}

// GetParty returns a single party.
func (s *Service) GetParty(ctx context.Context, id int64) (Party, error) {
	return s.repo.Get(ctx, id)
}

// ListParties returns parties matching the filter.
func (s *Service) ListParties(ctx context.Context, filter ListFilter) ([]Party, int, error) {
	return s.repo.List(ctx, filter)
}

// GetMovements lists the balance movement log for a party.
func (s *Service) GetMovements(ctx context.Context, partyID int64, limit int) ([]BalanceMovement, error) {
	if partyID == 0 {
		return nil, fmt.Errorf("%w: party required", ErrValidation)
	}
	return s.repo.ListMovements(ctx, partyID, limit)
}

// OutstandingBalance nets the due counters into the party's position
// on top of its opening balance: for a customer, what they owe us; for
// a supplier, what we owe them.
func OutstandingBalance(p Party) float64 {
	if p.Kind == KindSupplier {
		return p.OpeningBalance + p.PurchaseDue - p.PurchaseReturnDue
	}
	return p.OpeningBalance + p.SalesDue - p.SalesReturnDue
}
