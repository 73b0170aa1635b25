package catalog

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

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, code, name, branch_id, unit_price, unit_cost, stock, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.BranchID, &p.UnitPrice, &p.UnitCost, &p.Stock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// Create inserts a new product.
func (r *Repository) Create(ctx context.Context, input ProductInput) (Product, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO products (code, name, branch_id, unit_price, unit_cost, stock, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING `+productColumns,
		input.Code, input.Name, input.BranchID, input.UnitPrice, input.UnitCost, input.Stock, input.IsActive)
	p, err := scanProduct(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, ErrDuplicateCode
		}
		return Product{}, err
	}
	return p, nil
}

// Update replaces the mutable product fields. Stock is intentionally
// excluded; it only changes through AdjustStock.
func (r *Repository) Update(ctx context.Context, id int64, input ProductInput) (Product, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE products
		SET code=$2, name=$3, branch_id=$4, unit_price=$5, unit_cost=$6, is_active=$7, updated_at=NOW()
		WHERE id=$1
		RETURNING `+productColumns,
		id, input.Code, input.Name, input.BranchID, input.UnitPrice, input.UnitCost, input.IsActive)
	return scanProduct(row)
}

// Get returns a single product.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

// List returns products matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	where := `WHERE 1=1`
	args := []any{}
	idx := 1
	if filter.BranchID != 0 {
		where += fmt.Sprintf(` AND branch_id=$%d`, idx)
		args = append(args, filter.BranchID)
		idx++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(` AND (code ILIKE $%d OR name ILIKE $%d)`, idx, idx)
		args = append(args, "%"+filter.Search+"%")
		idx++
	}
	if filter.Active != nil {
		where += fmt.Sprintf(` AND is_active=$%d`, idx)
		args = append(args, *filter.Active)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY code LIMIT $%d OFFSET $%d`, productColumns, where, idx, idx+1)
	args = append(args, limit, filter.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// AdjustStock atomically applies delta to the product's stock counter
// and appends the matching movement row in one transaction. It returns
// the stock level after the adjustment.
func (r *Repository) AdjustStock(ctx context.Context, productID, delta int64, reason string) (int64, error) {
	var after int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `UPDATE products SET stock = stock + $2, updated_at=NOW() WHERE id=$1 RETURNING stock`, productID, delta).Scan(&after)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO stock_movements (transaction_id, product_id, qty, reason, balance_after, created_at)
			VALUES (NULL, $1, $2, $3, $4, $5)`,
			productID, delta, reason, after, time.Now().UTC())
		return err
	})
	if err != nil {
		return 0, err
	}
	return after, nil
}

// GetStockCard lists movement-log entries for a product, newest first.
func (r *Repository) GetStockCard(ctx context.Context, productID int64, limit int) ([]StockCardEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(transaction_id, 0), qty, reason, balance_after, created_at
		FROM stock_movements
		WHERE product_id=$1
		ORDER BY id DESC
		LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []StockCardEntry
	for rows.Next() {
		var e StockCardEntry
		if err := rows.Scan(&e.MovementID, &e.TransactionID, &e.Qty, &e.Reason, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
