package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian/internal/party"
)

type stockMove struct {
	ProductID int64
	Delta     int64
	Reason    string
}

type balanceMove struct {
	PartyID int64
	Field   party.BalanceField
	Amount  float64
}

// memRepo is an in-memory stand-in for the postgres repository. WithTx
// snapshots state up front and restores it when the callback fails, so
// tests observe the same all-or-nothing behavior a rolled back
// transaction gives.
type memRepo struct {
	nextID   int64
	txs      map[int64]Transaction
	stock    map[int64]int64
	parties  map[int64]party.Kind
	balances map[int64]map[party.BalanceField]float64

	stockMoves   []stockMove
	balanceMoves []balanceMove
}

func newMemRepo() *memRepo {
	return &memRepo{
		txs:      make(map[int64]Transaction),
		stock:    make(map[int64]int64),
		parties:  make(map[int64]party.Kind),
		balances: make(map[int64]map[party.BalanceField]float64),
	}
}

func (m *memRepo) snapshot() *memRepo {
	snap := newMemRepo()
	snap.nextID = m.nextID
	for id, tx := range m.txs {
		snap.txs[id] = cloneTx(tx)
	}
	for id, qty := range m.stock {
		snap.stock[id] = qty
	}
	for id, kind := range m.parties {
		snap.parties[id] = kind
	}
	for id, fields := range m.balances {
		copied := make(map[party.BalanceField]float64, len(fields))
		for f, v := range fields {
			copied[f] = v
		}
		snap.balances[id] = copied
	}
	snap.stockMoves = append([]stockMove(nil), m.stockMoves...)
	snap.balanceMoves = append([]balanceMove(nil), m.balanceMoves...)
	return snap
}

func cloneTx(t Transaction) Transaction {
	t.Items = append([]LineItem(nil), t.Items...)
	t.Payments = append([]Payment(nil), t.Payments...)
	return t
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := m.snapshot()
	if err := fn(ctx, m); err != nil {
		*m = *snap
		return err
	}
	return nil
}

func (m *memRepo) GetTransaction(_ context.Context, txType TxType, id int64) (Transaction, error) {
	tx, ok := m.txs[id]
	if !ok || tx.Type != txType {
		return Transaction{}, ErrNotFound
	}
	return cloneTx(tx), nil
}

func (m *memRepo) ListTransactions(_ context.Context, filter ListFilter) ([]Transaction, int, error) {
	var out []Transaction
	for _, tx := range m.txs {
		if tx.Type == filter.Type {
			out = append(out, cloneTx(tx))
		}
	}
	return out, len(out), nil
}

func (m *memRepo) InsertTransaction(_ context.Context, t Transaction) (int64, error) {
	m.nextID++
	t.ID = m.nextID
	m.txs[t.ID] = cloneTx(t)
	return t.ID, nil
}

func (m *memRepo) UpdateTransactionHeader(_ context.Context, id int64, status string, grandTotal, paidAmount, dueAmount float64, note string) error {
	tx, ok := m.txs[id]
	if !ok {
		return ErrNotFound
	}
	tx.Status = status
	tx.GrandTotal = grandTotal
	tx.PaidAmount = paidAmount
	tx.DueAmount = dueAmount
	tx.Note = note
	m.txs[id] = tx
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id int64, status string) error {
	tx, ok := m.txs[id]
	if !ok {
		return ErrNotFound
	}
	tx.Status = status
	m.txs[id] = tx
	return nil
}

func (m *memRepo) DeleteTransaction(_ context.Context, id int64) error {
	if _, ok := m.txs[id]; !ok {
		return ErrNotFound
	}
	delete(m.txs, id)
	return nil
}

func (m *memRepo) GetTransactionForUpdate(ctx context.Context, txType TxType, id int64) (Transaction, error) {
	return m.GetTransaction(ctx, txType, id)
}

func (m *memRepo) ReplaceItems(_ context.Context, txID int64, items []LineItem) error {
	tx, ok := m.txs[txID]
	if !ok {
		return ErrNotFound
	}
	tx.Items = append([]LineItem(nil), items...)
	m.txs[txID] = tx
	return nil
}

func (m *memRepo) ReplacePayments(_ context.Context, txID int64, payments []Payment) error {
	tx, ok := m.txs[txID]
	if !ok {
		return ErrNotFound
	}
	tx.Payments = append([]Payment(nil), payments...)
	m.txs[txID] = tx
	return nil
}

func (m *memRepo) GetPartyKind(_ context.Context, partyID int64) (party.Kind, error) {
	kind, ok := m.parties[partyID]
	if !ok {
		return "", fmt.Errorf("%w: party %d", ErrValidation, partyID)
	}
	return kind, nil
}

func (m *memRepo) MissingProducts(_ context.Context, productIDs []int64) ([]int64, error) {
	var missing []int64
	for _, id := range productIDs {
		if _, ok := m.stock[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (m *memRepo) ApplyStockDelta(_ context.Context, txID, productID, delta int64, reason string) (int64, error) {
	m.stock[productID] += delta
	m.stockMoves = append(m.stockMoves, stockMove{ProductID: productID, Delta: delta, Reason: reason})
	return m.stock[productID], nil
}

func (m *memRepo) ApplyBalanceDelta(_ context.Context, txID, partyID int64, field party.BalanceField, amount float64) error {
	if m.balances[partyID] == nil {
		m.balances[partyID] = make(map[party.BalanceField]float64)
	}
	m.balances[partyID][field] += amount
	m.balanceMoves = append(m.balanceMoves, balanceMove{PartyID: partyID, Field: field, Amount: amount})
	return nil
}

const (
	customerID = int64(100)
	supplierID = int64(200)
)

func newFixture() (*Service, *memRepo) {
	repo := newMemRepo()
	repo.parties[customerID] = party.KindCustomer
	repo.parties[supplierID] = party.KindSupplier
	repo.stock[1] = 50
	repo.stock[2] = 20
	svc := NewService(repo, nil, nil, nil, true)
	return svc, repo
}

func saleInput(status string, qty int64, paid float64) CreateInput {
	in := CreateInput{
		PartyID: customerID,
		Status:  status,
		Items:   []LineItemInput{{ProductID: 1, Quantity: qty, UnitPrice: 10}},
	}
	if paid > 0 {
		in.Payments = []PaymentInput{{Amount: paid, Method: "CASH"}}
	}
	return in
}

func TestCreateSaleOrderedLeavesStockAlone(t *testing.T) {
	svc, repo := newFixture()

	tx, err := svc.CreateSale(context.Background(), saleInput("", 5, 20))
	require.NoError(t, err)

	require.Equal(t, string(SaleStatusOrdered), tx.Status)
	require.InDelta(t, 50.0, tx.GrandTotal, 1e-9)
	require.InDelta(t, 20.0, tx.PaidAmount, 1e-9)
	require.InDelta(t, 30.0, tx.DueAmount, 1e-9)
	require.EqualValues(t, 50, repo.stock[1])
	require.Empty(t, repo.stockMoves)
	require.InDelta(t, 30.0, repo.balances[customerID][party.FieldSalesDue], 1e-9)
}

func TestCreateSaleDispatchedHoldsStock(t *testing.T) {
	svc, repo := newFixture()

	_, err := svc.CreateSale(context.Background(), saleInput(string(SaleStatusDispatched), 5, 0))
	require.NoError(t, err)

	require.EqualValues(t, 45, repo.stock[1])
	require.Len(t, repo.stockMoves, 1)
	require.Equal(t, stockMove{ProductID: 1, Delta: -5, Reason: "SALE_CREATE"}, repo.stockMoves[0])
}

func TestDispatchHoldsStockExactlyOnce(t *testing.T) {
	svc, repo := newFixture()
	ctx := context.Background()

	tx, err := svc.CreateSale(ctx, saleInput("", 5, 0))
	require.NoError(t, err)

	_, err = svc.ChangeSaleStatus(ctx, tx.ID, SaleStatusDispatched, 0)
	require.NoError(t, err)
	require.EqualValues(t, 45, repo.stock[1])

	// Requesting Dispatched again is a no-op, not a second hold.
	again, err := svc.ChangeSaleStatus(ctx, tx.ID, SaleStatusDispatched, 0)
	require.NoError(t, err)
	require.Equal(t, string(SaleStatusDispatched), again.Status)
	require.EqualValues(t, 45, repo.stock[1])
	require.Len(t, repo.stockMoves, 1)
}

func TestCancelDispatchedSaleReleasesStock(t *testing.T) {
	svc, repo := newFixture()
	ctx := context.Background()

	tx, err := svc.CreateSale(ctx, saleInput(string(SaleStatusDispatched), 5, 0))
	require.NoError(t, err)
	require.EqualValues(t, 45, repo.stock[1])

	_, err = svc.ChangeSaleStatus(ctx, tx.ID, SaleStatusCancelled, 0)
	require.NoError(t, err)
	require.EqualValues(t, 50, repo.stock[1])
}

func TestCancelledSaleCannotReopen(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	tx, err := svc.CreateSale(ctx, saleInput("", 2, 0))
	require.NoError(t, err)
	_, err = svc.ChangeSaleStatus(ctx, tx.ID, SaleStatusCancelled, 0)
	require.NoError(t, err)

	_, err = svc.ChangeSaleStatus(ctx, tx.ID, SaleStatusDispatched, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateSaleRecomputesBalanceDelta(t *testing.T) {
	svc, repo := newFixture()
	ctx := context.Background()

	tx, err := svc.CreateSale(ctx, saleInput("", 5, 20))
	require.NoError(t, err)
	require.InDelta(t, 30.0, repo.balances[customerID][party.FieldSalesDue], 1e-9)

	// Double the quantity, pay nothing more: due goes 30 -> 80.
	_, err = svc.UpdateSale(ctx, tx.ID, UpdateInput{
		Items:    []LineItemInput{{ProductID: 1, Quantity: 10, UnitPrice: 10}},
		Payments: []PaymentInput{{Amount: 20, Method: "CASH"}},
	})
	require.NoError(t, err)
	require.InDelta(t, 80.0, repo.balances[customerID][party.FieldSalesDue], 1e-9)
}

func TestUpdateDispatchedSaleRevertsThenReapplies(t *testing.T) {
	svc, repo := newFixture()
	ctx := context.Background()

	tx, err := svc.CreateSale(ctx, saleInput(string(SaleStatusDispatched), 5, 0))
	require.NoError(t, err)
	require.EqualValues(t, 45, repo.stock[1])

	_, err = svc.UpdateSale(ctx, tx.ID, UpdateInput{
		Items: []LineItemInput{{ProductID: 1, Quantity: 8, UnitPrice: 10}},
	})
	require.NoError(t, err)

	// Net -3, not -8: the old hold of 5 is reverted first.
	require.EqualValues(t, 42, repo.stock[1])
}

func TestUpdateCannotReopenCancelledSale(t *testing.T) {
	svc, repo := newFixture()
	ctx := context.Background()

	tx, err := svc.CreateSale(ctx, saleInput("", 2, 0))
	require.NoError(t, err)
	_, err = svc.ChangeSaleStatus(ctx, tx.ID, SaleStatusCancelled, 0)
	require.NoError(t, err)

	// The update path obeys the same transition table as the status
	// endpoint: a cancelled sale stays cancelled.
	_, err = svc.UpdateSale(ctx, tx.ID, UpdateInput{
		Status: string(SaleStatusDispatched),
		Items:  []LineItemInput{{ProductID: 1, Quantity: 2, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, ErrInvalidTransition)

	got, err := svc.Get(ctx, TxTypeSale, tx.ID)
	require.NoError(t, err)
	require.Equal(t, string(SaleStatusCancelled), got.Status)
	require.EqualValues(t, 50, repo.stock[1])
	require.Empty(t, repo.stockMoves)
}

func TestUpdateDispatchesOrderedSale(t *testing.T) {
	svc, repo := newFixture()
	ctx := context.Background()

	tx, err := svc.CreateSale(ctx, saleInput("", 5, 0))
	require.NoError(t, err)

	_, err = svc.UpdateSale(ctx, tx.ID, UpdateInput{
		Status: string(SaleStatusDispatched),
		Items:  []LineItemInput{{ProductID: 1, Quantity: 5, UnitPrice: 10}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 45, repo.stock[1])
}

func TestUpdateReplacesNoteWholesale(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	in := saleInput("", 2, 0)
	in.Note = "deliver friday"
	tx, err := svc.CreateSale(ctx, in)
	require.NoError(t, err)
	require.Equal(t, "deliver friday", tx.Note)

	// An empty note clears the stored one, like every other field.
	updated, err := svc.UpdateSale(ctx, tx.ID, UpdateInput{
		Items: []LineItemInput{{ProductID: 1, Quantity: 2, UnitPrice: 10}},
	})
	require.NoError(t, err)
	require.Empty(t, updated.Note)
}

func TestDeleteSaleKeepsStockDeducted(t *testing.T) {
	svc, repo := newFixture()
	ctx := context.Background()

	tx, err := svc.CreateSale(ctx, saleInput(string(SaleStatusDispatched), 5, 0))
	require.NoError(t, err)
	require.EqualValues(t, 45, repo.stock[1])
	require.InDelta(t, 50.0, repo.balances[customerID][party.FieldSalesDue], 1e-9)

	require.NoError(t, svc.DeleteSale(ctx, tx.ID, 0))

	// Deleting a dispatched sale retracts the due balance but leaves
	// inventory where dispatch put it.
	require.EqualValues(t, 45, repo.stock[1])
	require.Zero(t, repo.balances[customerID][party.FieldSalesDue])
	_, err = svc.Get(ctx, TxTypeSale, tx.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSalesReturnLifecycle(t *testing.T) {
	svc, repo := newFixture()
	ctx := context.Background()

	tx, err := svc.CreateSalesReturn(ctx, CreateInput{
		PartyID: customerID,
		Items:   []LineItemInput{{ProductID: 1, Quantity: 2, UnitPrice: 10}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 52, repo.stock[1])
	require.InDelta(t, 20.0, repo.balances[customerID][party.FieldSalesReturnDue], 1e-9)

	// Editing qty 2 -> 5 nets +3 stock and +30 balance.
	_, err = svc.UpdateSalesReturn(ctx, tx.ID, UpdateInput{
		Items: []LineItemInput{{ProductID: 1, Quantity: 5, UnitPrice: 10}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 55, repo.stock[1])
	require.InDelta(t, 50.0, repo.balances[customerID][party.FieldSalesReturnDue], 1e-9)

	require.NoError(t, svc.DeleteSalesReturn(ctx, tx.ID, 0))
	require.EqualValues(t, 50, repo.stock[1])
	require.Zero(t, repo.balances[customerID][party.FieldSalesReturnDue])
}

func TestPurchaseNeverMovesStock(t *testing.T) {
	svc, repo := newFixture()
	ctx := context.Background()

	tx, err := svc.CreatePurchase(ctx, CreateInput{
		PartyID: supplierID,
		Items:   []LineItemInput{{ProductID: 2, Quantity: 10, UnitPrice: 4}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 20, repo.stock[2])
	require.InDelta(t, 40.0, repo.balances[supplierID][party.FieldPurchaseDue], 1e-9)

	_, err = svc.ChangePurchaseStatus(ctx, tx.ID, PurchaseStatusReceived, 0)
	require.NoError(t, err)
	require.EqualValues(t, 20, repo.stock[2])
	require.Empty(t, repo.stockMoves)
}

func TestPurchaseReturnSubtractsStock(t *testing.T) {
	svc, repo := newFixture()
	ctx := context.Background()

	tx, err := svc.CreatePurchaseReturn(ctx, CreateInput{
		PartyID: supplierID,
		Items:   []LineItemInput{{ProductID: 2, Quantity: 3, UnitPrice: 4}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 17, repo.stock[2])
	require.InDelta(t, 12.0, repo.balances[supplierID][party.FieldPurchaseReturnDue], 1e-9)

	require.NoError(t, svc.DeletePurchaseReturn(ctx, tx.ID, 0))
	require.EqualValues(t, 20, repo.stock[2])
	require.Zero(t, repo.balances[supplierID][party.FieldPurchaseReturnDue])
}

func TestFullyPaidSaleLeavesBalanceUntouched(t *testing.T) {
	svc, repo := newFixture()

	_, err := svc.CreateSale(context.Background(), saleInput("", 5, 50))
	require.NoError(t, err)

	require.Zero(t, repo.balances[customerID][party.FieldSalesDue])
	require.Empty(t, repo.balanceMoves)
}

func TestCreateRejectsWrongPartyKind(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	_, err := svc.CreateSale(ctx, CreateInput{
		PartyID: supplierID,
		Items:   []LineItemInput{{ProductID: 1, Quantity: 1, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, ErrPartyKind)

	_, err = svc.CreatePurchase(ctx, CreateInput{
		PartyID: customerID,
		Items:   []LineItemInput{{ProductID: 1, Quantity: 1, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, ErrPartyKind)
}

func TestCreateRejectsUnknownProductAtomically(t *testing.T) {
	svc, repo := newFixture()

	_, err := svc.CreateSale(context.Background(), CreateInput{
		PartyID: customerID,
		Status:  string(SaleStatusDispatched),
		Items: []LineItemInput{
			{ProductID: 1, Quantity: 2, UnitPrice: 10},
			{ProductID: 999, Quantity: 1, UnitPrice: 10},
		},
	})
	require.ErrorIs(t, err, ErrProductMissing)

	// Nothing persisted, nothing moved.
	require.Empty(t, repo.txs)
	require.EqualValues(t, 50, repo.stock[1])
	require.Empty(t, repo.stockMoves)
	require.Empty(t, repo.balanceMoves)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	_, err := svc.CreateSale(ctx, CreateInput{PartyID: customerID})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateSale(ctx, CreateInput{
		PartyID: customerID,
		Items:   []LineItemInput{{ProductID: 1, Quantity: 0, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateSale(ctx, CreateInput{
		PartyID: customerID,
		Status:  "SHIPPED",
		Items:   []LineItemInput{{ProductID: 1, Quantity: 1, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, ErrValidation)

	// Returns carry no payments.
	_, err = svc.CreateSalesReturn(ctx, CreateInput{
		PartyID:  customerID,
		Items:    []LineItemInput{{ProductID: 1, Quantity: 1, UnitPrice: 10}},
		Payments: []PaymentInput{{Amount: 5}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestOversellAllowedByDefault(t *testing.T) {
	svc, repo := newFixture()

	_, err := svc.CreateSale(context.Background(), saleInput(string(SaleStatusDispatched), 60, 0))
	require.NoError(t, err)
	require.EqualValues(t, -10, repo.stock[1])
}

func TestOversellRejectedWhenNegativeStockDisabled(t *testing.T) {
	repo := newMemRepo()
	repo.parties[customerID] = party.KindCustomer
	repo.stock[1] = 50
	svc := NewService(repo, nil, nil, nil, false)

	_, err := svc.CreateSale(context.Background(), saleInput(string(SaleStatusDispatched), 60, 0))
	require.ErrorIs(t, err, ErrInsufficientStock)

	// Rolled back wholesale: no transaction, no movement, no balance.
	require.Empty(t, repo.txs)
	require.EqualValues(t, 50, repo.stock[1])
	require.Empty(t, repo.stockMoves)
	require.Empty(t, repo.balanceMoves)
}

func TestUpdatePurchaseReturnBalance(t *testing.T) {
	svc, repo := newFixture()
	ctx := context.Background()

	tx, err := svc.CreatePurchaseReturn(ctx, CreateInput{
		PartyID: supplierID,
		Items:   []LineItemInput{{ProductID: 2, Quantity: 4, UnitPrice: 5}},
	})
	require.NoError(t, err)
	require.InDelta(t, 20.0, repo.balances[supplierID][party.FieldPurchaseReturnDue], 1e-9)

	_, err = svc.UpdatePurchaseReturn(ctx, tx.ID, UpdateInput{
		Items: []LineItemInput{{ProductID: 2, Quantity: 2, UnitPrice: 5}},
	})
	require.NoError(t, err)
	require.InDelta(t, 10.0, repo.balances[supplierID][party.FieldPurchaseReturnDue], 1e-9)
	require.EqualValues(t, 18, repo.stock[2])
}
