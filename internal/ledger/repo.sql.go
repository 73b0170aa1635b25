package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-retail/meridian/internal/party"
)

func (r *txRepo) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO transactions (code, tx_type, party_id, branch_id, status, grand_total, paid_amount, due_amount, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, NOW(), NOW())
		RETURNING id`,
		t.Code, t.Type, t.PartyID, t.BranchID, t.Status, t.GrandTotal, t.PaidAmount, t.DueAmount, t.Note).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateTransactionHeader(ctx context.Context, id int64, status string, grandTotal, paidAmount, dueAmount float64, note string) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE transactions
		SET status=NULLIF($2, ''), grand_total=$3, paid_amount=$4, due_amount=$5, note=$6, updated_at=NOW()
		WHERE id=$1`,
		id, status, grandTotal, paidAmount, dueAmount, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.tx.Exec(ctx, `UPDATE transactions SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) DeleteTransaction(ctx context.Context, id int64) error {
	// Children first; embedded items and payments never outlive the
	// parent record.
	if _, err := r.tx.Exec(ctx, `DELETE FROM transaction_payments WHERE transaction_id=$1`, id); err != nil {
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM transaction_items WHERE transaction_id=$1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM transactions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) GetTransactionForUpdate(ctx context.Context, txType TxType, id int64) (Transaction, error) {
	return fetchTransaction(ctx, r.tx, txType, id, true)
}

func (r *txRepo) ReplaceItems(ctx context.Context, txID int64, items []LineItem) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM transaction_items WHERE transaction_id=$1`, txID); err != nil {
		return err
	}
	for _, item := range items {
		_, err := r.tx.Exec(ctx, `
			INSERT INTO transaction_items (transaction_id, product_id, quantity, unit_price, discount_percent, tax_percent, subtotal, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			txID, item.ProductID, item.Quantity, item.UnitPrice, item.DiscountPercent, item.TaxPercent, item.Subtotal, item.Total)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepo) ReplacePayments(ctx context.Context, txID int64, payments []Payment) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM transaction_payments WHERE transaction_id=$1`, txID); err != nil {
		return err
	}
	for _, p := range payments {
		_, err := r.tx.Exec(ctx, `
			INSERT INTO transaction_payments (transaction_id, amount, paid_on, method, note, due_date)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			txID, p.Amount, p.PaidOn, p.Method, p.Note, p.DueDate)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepo) GetPartyKind(ctx context.Context, partyID int64) (party.Kind, error) {
	var kind party.Kind
	err := r.tx.QueryRow(ctx, `SELECT kind FROM parties WHERE id=$1`, partyID).Scan(&kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", party.ErrNotFound
		}
		return "", err
	}
	return kind, nil
}

func (r *txRepo) MissingProducts(ctx context.Context, productIDs []int64) ([]int64, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	rows, err := r.tx.Query(ctx, `
		SELECT wanted.id
		FROM unnest($1::bigint[]) AS wanted(id)
		LEFT JOIN products p ON p.id = wanted.id
		WHERE p.id IS NULL`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var missing []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		missing = append(missing, id)
	}
	return missing, rows.Err()
}

func (r *txRepo) ApplyStockDelta(ctx context.Context, txID, productID, delta int64, reason string) (int64, error) {
	var after int64
	err := r.tx.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at=NOW()
		WHERE id=$1
		RETURNING stock`, productID, delta).Scan(&after)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: id %d", ErrProductMissing, productID)
		}
		return 0, err
	}
	_, err = r.tx.Exec(ctx, `
		INSERT INTO stock_movements (transaction_id, product_id, qty, reason, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		txID, productID, delta, reason, after, time.Now().UTC())
	return after, err
}

func (r *txRepo) ApplyBalanceDelta(ctx context.Context, txID, partyID int64, field party.BalanceField, amount float64) error {
	if !field.Valid() {
		return party.ErrInvalidField
	}
	tag, err := r.tx.Exec(ctx, fmt.Sprintf(`UPDATE parties SET %s = %s + $2, updated_at=NOW() WHERE id=$1`, field, field), partyID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return party.ErrNotFound
	}
	_, err = r.tx.Exec(ctx, `
		INSERT INTO balance_movements (party_id, transaction_id, payment_id, field, amount, created_at)
		VALUES ($1, $2, NULL, $3, $4, $5)`,
		partyID, txID, field, amount, time.Now().UTC())
	return err
}
