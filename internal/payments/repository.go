package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian/internal/party"
	"github.com/meridian-retail/meridian/internal/platform/db"
)

// Repository persists balance payments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const paymentColumns = `id, party_id, amount, method, note, paid_on, created_at`

func scanPayment(row pgx.Row) (BalancePayment, error) {
	var p BalancePayment
	err := row.Scan(&p.ID, &p.PartyID, &p.Amount, &p.Method, &p.Note, &p.PaidOn, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BalancePayment{}, ErrNotFound
		}
		return BalancePayment{}, err
	}
	return p, nil
}

// GetPartyKind returns the kind of the referenced party.
func (r *Repository) GetPartyKind(ctx context.Context, partyID int64) (party.Kind, error) {
	var kind party.Kind
	err := r.pool.QueryRow(ctx, `SELECT kind FROM parties WHERE id=$1`, partyID).Scan(&kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return kind, nil
}

// Create inserts the payment, decrements the named due counter, and
// appends the matching movement row in one transaction.
func (r *Repository) Create(ctx context.Context, input Input, field party.BalanceField) (BalancePayment, error) {
	if !field.Valid() {
		return BalancePayment{}, party.ErrInvalidField
	}
	var p BalancePayment
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		p, err = scanPayment(tx.QueryRow(ctx, `
			INSERT INTO balance_payments (party_id, amount, method, note, paid_on, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			RETURNING `+paymentColumns,
			input.PartyID, input.Amount, input.Method, input.Note, input.PaidOn))
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, fmt.Sprintf(`UPDATE parties SET %s = %s - $2, updated_at=NOW() WHERE id=$1`, field, field), input.PartyID, input.Amount)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO balance_movements (party_id, payment_id, field, amount, created_at)
			VALUES ($1, $2, $3, $4, NOW())`,
			input.PartyID, p.ID, string(field), -input.Amount)
		return err
	})
	if err != nil {
		return BalancePayment{}, err
	}
	return p, nil
}

// List returns a party's payments, newest first.
func (r *Repository) List(ctx context.Context, partyID int64, limit int) ([]BalancePayment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM balance_payments
		WHERE party_id=$1
		ORDER BY paid_on DESC, id DESC
		LIMIT $2`, partyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BalancePayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
