package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian/internal/party"
	"github.com/meridian-retail/meridian/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside one
// reconciliation transaction. Everything a create, update, delete, or
// status change touches (the transaction record, its children, the
// counters, both movement logs) commits or rolls back as a unit.
type TxRepository interface {
	InsertTransaction(ctx context.Context, t Transaction) (int64, error)
	UpdateTransactionHeader(ctx context.Context, id int64, status string, grandTotal, paidAmount, dueAmount float64, note string) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	DeleteTransaction(ctx context.Context, id int64) error
	GetTransactionForUpdate(ctx context.Context, txType TxType, id int64) (Transaction, error)
	ReplaceItems(ctx context.Context, txID int64, items []LineItem) error
	ReplacePayments(ctx context.Context, txID int64, payments []Payment) error
	GetPartyKind(ctx context.Context, partyID int64) (party.Kind, error)
	MissingProducts(ctx context.Context, productIDs []int64) ([]int64, error)
	ApplyStockDelta(ctx context.Context, txID, productID, delta int64, reason string) (int64, error)
	ApplyBalanceDelta(ctx context.Context, txID, partyID int64, field party.BalanceField, amount float64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const transactionColumns = `id, code, tx_type, party_id, branch_id, COALESCE(status, ''), grand_total, paid_amount, due_amount, note, created_at, updated_at`

// GetTransaction returns one transaction with its items and payments.
func (r *Repository) GetTransaction(ctx context.Context, txType TxType, id int64) (Transaction, error) {
	return fetchTransaction(ctx, r.pool, txType, id, false)
}

// ListTransactions returns transaction headers matching the filter and
// the total count. Items and payments are not hydrated for listings.
func (r *Repository) ListTransactions(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	where := `WHERE tx_type=$1`
	args := []any{filter.Type}
	idx := 2
	if filter.PartyID != 0 {
		where += fmt.Sprintf(` AND party_id=$%d`, idx)
		args = append(args, filter.PartyID)
		idx++
	}
	if filter.BranchID != 0 {
		where += fmt.Sprintf(` AND branch_id=$%d`, idx)
		args = append(args, filter.BranchID)
		idx++
	}
	if filter.Status != "" {
		where += fmt.Sprintf(` AND status=$%d`, idx)
		args = append(args, filter.Status)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY id DESC LIMIT $%d OFFSET $%d`, transactionColumns, where, idx, idx+1)
	args = append(args, limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, t)
	}
	return txs, total, rows.Err()
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Code, &t.Type, &t.PartyID, &t.BranchID, &t.Status,
		&t.GrandTotal, &t.PaidAmount, &t.DueAmount, &t.Note, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	return t, nil
}

func fetchTransaction(ctx context.Context, q queryer, txType TxType, id int64, forUpdate bool) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id=$1 AND tx_type=$2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	t, err := scanTransaction(q.QueryRow(ctx, query, id, txType))
	if err != nil {
		return Transaction{}, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, transaction_id, product_id, quantity, unit_price, discount_percent, tax_percent, subtotal, total
		FROM transaction_items WHERE transaction_id=$1 ORDER BY id`, id)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.ID, &item.TransactionID, &item.ProductID, &item.Quantity,
			&item.UnitPrice, &item.DiscountPercent, &item.TaxPercent, &item.Subtotal, &item.Total); err != nil {
			return Transaction{}, err
		}
		t.Items = append(t.Items, item)
	}
	if err := rows.Err(); err != nil {
		return Transaction{}, err
	}

	payRows, err := q.Query(ctx, `
		SELECT id, transaction_id, amount, paid_on, method, note, due_date
		FROM transaction_payments WHERE transaction_id=$1 ORDER BY id`, id)
	if err != nil {
		return Transaction{}, err
	}
	defer payRows.Close()
	for payRows.Next() {
		var p Payment
		if err := payRows.Scan(&p.ID, &p.TransactionID, &p.Amount, &p.PaidOn, &p.Method, &p.Note, &p.DueDate); err != nil {
			return Transaction{}, err
		}
		t.Payments = append(t.Payments, p)
	}
	return t, payRows.Err()
}
