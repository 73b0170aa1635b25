package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian/internal/shared"
)

type memRepo struct {
	nextID   int64
	products map[int64]Product
	moves    map[int64][]StockCardEntry
}

func newMemRepo() *memRepo {
	return &memRepo{products: make(map[int64]Product), moves: make(map[int64][]StockCardEntry)}
}

func (m *memRepo) Create(_ context.Context, input ProductInput) (Product, error) {
	for _, p := range m.products {
		if p.Code == input.Code {
			return Product{}, ErrDuplicateCode
		}
	}
	m.nextID++
	p := Product{
		ID:        m.nextID,
		Code:      input.Code,
		Name:      input.Name,
		BranchID:  input.BranchID,
		UnitPrice: input.UnitPrice,
		UnitCost:  input.UnitCost,
		Stock:     input.Stock,
		IsActive:  input.IsActive,
	}
	m.products[p.ID] = p
	return p, nil
}

func (m *memRepo) Update(_ context.Context, id int64, input ProductInput) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	p.Code = input.Code
	p.Name = input.Name
	p.UnitPrice = input.UnitPrice
	p.UnitCost = input.UnitCost
	p.IsActive = input.IsActive
	m.products[id] = p
	return p, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *memRepo) List(_ context.Context, _ ListFilter) ([]Product, int, error) {
	var out []Product
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memRepo) AdjustStock(_ context.Context, productID, delta int64, reason string) (int64, error) {
	p, ok := m.products[productID]
	if !ok {
		return 0, ErrNotFound
	}
	p.Stock += delta
	m.products[productID] = p
	m.moves[productID] = append(m.moves[productID], StockCardEntry{Qty: delta, Reason: reason, BalanceAfter: p.Stock})
	return p.Stock, nil
}

func (m *memRepo) GetStockCard(_ context.Context, productID int64, _ int) ([]StockCardEntry, error) {
	return m.moves[productID], nil
}

type memAudit struct {
	logs []shared.AuditLog
}

func (a *memAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestCreateProduct(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)

	p, err := svc.CreateProduct(context.Background(), ProductInput{Code: "SKU-1", Name: "Widget", UnitPrice: 9.5, Stock: 10, IsActive: true})
	require.NoError(t, err)
	require.EqualValues(t, 1, p.ID)
	require.EqualValues(t, 10, p.Stock)

	_, err = svc.CreateProduct(context.Background(), ProductInput{Code: "SKU-1", Name: "Other"})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestCreateProductValidation(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, ProductInput{Name: "No Code"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateProduct(ctx, ProductInput{Code: "X", Name: "Y", UnitPrice: -1})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAdjustStockRecordsMovementAndAudit(t *testing.T) {
	repo := newMemRepo()
	audit := &memAudit{}
	svc := NewService(repo, audit, nil)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, ProductInput{Code: "SKU-2", Name: "Gadget", Stock: 5, IsActive: true})
	require.NoError(t, err)

	after, err := svc.AdjustStock(ctx, AdjustmentInput{ProductID: p.ID, Delta: -2, Reason: "DAMAGE"})
	require.NoError(t, err)
	require.EqualValues(t, 3, after)

	card, err := svc.GetStockCard(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, card, 1)
	require.EqualValues(t, -2, card[0].Qty)
	require.Equal(t, "DAMAGE", card[0].Reason)
	require.EqualValues(t, 3, card[0].BalanceAfter)

	require.Len(t, audit.logs, 1)
	require.Equal(t, "catalog:adjust", audit.logs[0].Action)
}

func TestAdjustStockValidation(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)

	_, err := svc.AdjustStock(context.Background(), AdjustmentInput{ProductID: 1, Delta: 0})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.AdjustStock(context.Background(), AdjustmentInput{Delta: 1})
	require.ErrorIs(t, err, ErrValidation)
}
