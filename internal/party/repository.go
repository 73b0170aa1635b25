package party

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian/internal/platform/db"
)

// Repository persists parties in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const partyColumns = `id, kind, code, name, phone, opening_balance, sales_due, sales_return_due, purchase_due, purchase_return_due, created_at, updated_at`

func scanParty(row pgx.Row) (Party, error) {
	var p Party
	err := row.Scan(&p.ID, &p.Kind, &p.Code, &p.Name, &p.Phone, &p.OpeningBalance,
		&p.SalesDue, &p.SalesReturnDue, &p.PurchaseDue, &p.PurchaseReturnDue,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Party{}, ErrNotFound
		}
		return Party{}, err
	}
	return p, nil
}

// Create inserts a new party.
func (r *Repository) Create(ctx context.Context, input Input) (Party, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO parties (kind, code, name, phone, opening_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING `+partyColumns,
		input.Kind, input.Code, input.Name, input.Phone, input.OpeningBalance)
	p, err := scanParty(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Party{}, ErrDuplicateCode
		}
		return Party{}, err
	}
	return p, nil
}

// Update replaces the mutable party fields. Due counters are excluded;
// they only change through AdjustBalance.
func (r *Repository) Update(ctx context.Context, id int64, input Input) (Party, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE parties
		SET code=$2, name=$3, phone=$4, opening_balance=$5, updated_at=NOW()
		WHERE id=$1
		RETURNING `+partyColumns,
		id, input.Code, input.Name, input.Phone, input.OpeningBalance)
	return scanParty(row)
}

// Get returns a single party.
func (r *Repository) Get(ctx context.Context, id int64) (Party, error) {
	return scanParty(r.pool.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE id=$1`, id))
}

// List returns parties matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Party, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	where := `WHERE 1=1`
	args := []any{}
	idx := 1
	if filter.Kind != "" {
		where += fmt.Sprintf(` AND kind=$%d`, idx)
		args = append(args, filter.Kind)
		idx++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(` AND (code ILIKE $%d OR name ILIKE $%d)`, idx, idx)
		args = append(args, "%"+filter.Search+"%")
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM parties `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM parties %s ORDER BY code LIMIT $%d OFFSET $%d`, partyColumns, where, idx, idx+1)
	args = append(args, limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var parties []Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, 0, err
		}
		parties = append(parties, p)
	}
	return parties, total, rows.Err()
}

// AdjustBalance atomically applies delta to the named due counter and
// appends the matching movement row in one transaction.
func (r *Repository) AdjustBalance(ctx context.Context, partyID int64, field BalanceField, delta float64) error {
	if !field.Valid() {
		return ErrInvalidField
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, fmt.Sprintf(`UPDATE parties SET %s = %s + $2, updated_at=NOW() WHERE id=$1`, field, field), partyID, delta)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO balance_movements (party_id, transaction_id, payment_id, field, amount, created_at)
			VALUES ($1, NULL, NULL, $2, $3, $4)`,
			partyID, field, delta, time.Now().UTC())
		return err
	})
}

// ListMovements lists balance-movement entries for a party, newest first.
func (r *Repository) ListMovements(ctx context.Context, partyID int64, limit int) ([]BalanceMovement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, party_id, COALESCE(transaction_id, 0), COALESCE(payment_id, 0), field, amount, created_at
		FROM balance_movements
		WHERE party_id=$1
		ORDER BY id DESC
		LIMIT $2`, partyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []BalanceMovement
	for rows.Next() {
		var m BalanceMovement
		if err := rows.Scan(&m.ID, &m.PartyID, &m.TransactionID, &m.PaymentID, &m.Field, &m.Amount, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
