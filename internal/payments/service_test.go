package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian/internal/party"
)

type memRepo struct {
	kinds    map[int64]party.Kind
	payments []BalancePayment
	fields   []party.BalanceField
}

func (m *memRepo) GetPartyKind(_ context.Context, partyID int64) (party.Kind, error) {
	kind, ok := m.kinds[partyID]
	if !ok {
		return "", ErrNotFound
	}
	return kind, nil
}

func (m *memRepo) Create(_ context.Context, input Input, field party.BalanceField) (BalancePayment, error) {
	p := BalancePayment{
		ID:      int64(len(m.payments) + 1),
		PartyID: input.PartyID,
		Amount:  input.Amount,
		Method:  input.Method,
		Note:    input.Note,
		PaidOn:  input.PaidOn,
	}
	m.payments = append(m.payments, p)
	m.fields = append(m.fields, field)
	return p, nil
}

func (m *memRepo) List(_ context.Context, partyID int64, _ int) ([]BalancePayment, error) {
	var out []BalancePayment
	for _, p := range m.payments {
		if p.PartyID == partyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestRecordPaymentSettlesCustomerSalesDue(t *testing.T) {
	repo := &memRepo{kinds: map[int64]party.Kind{1: party.KindCustomer}}
	svc := NewService(repo, nil)

	p, err := svc.RecordPayment(context.Background(), Input{PartyID: 1, Amount: 75, Method: "CASH"})
	require.NoError(t, err)
	require.InDelta(t, 75.0, p.Amount, 1e-9)
	require.False(t, p.PaidOn.IsZero())
	require.Equal(t, []party.BalanceField{party.FieldSalesDue}, repo.fields)
}

func TestRecordPaymentSettlesSupplierPurchaseDue(t *testing.T) {
	repo := &memRepo{kinds: map[int64]party.Kind{2: party.KindSupplier}}
	svc := NewService(repo, nil)

	_, err := svc.RecordPayment(context.Background(), Input{PartyID: 2, Amount: 30})
	require.NoError(t, err)
	require.Equal(t, []party.BalanceField{party.FieldPurchaseDue}, repo.fields)
}

func TestRecordPaymentValidation(t *testing.T) {
	repo := &memRepo{kinds: map[int64]party.Kind{1: party.KindCustomer}}
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, Input{PartyID: 1, Amount: 0})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordPayment(ctx, Input{PartyID: 1, Amount: -5})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordPayment(ctx, Input{Amount: 10})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordPayment(ctx, Input{PartyID: 99, Amount: 10})
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, repo.payments)
}
