package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockIntegrityJob checks every product's stock counter against the
// last recorded movement. Each movement stores the aggregate it left
// behind, so a counter that disagrees with its newest balance_after
// means someone wrote stock outside the movement log. The job reports;
// it never repairs, because the log cannot say which side is right.
type StockIntegrityJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewStockIntegrityJob initialises the integrity check handler.
func NewStockIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *StockIntegrityJob {
	return &StockIntegrityJob{Pool: pool, Logger: logger}
}

// Handle executes one integrity pass.
func (j *StockIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("stock integrity: handler not configured")
	}
	var payload SchedulePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	rows, err := j.Pool.Query(ctx, `
		SELECT p.id, p.code, p.stock, m.balance_after
		FROM products p
		JOIN LATERAL (
			SELECT balance_after
			FROM stock_movements
			WHERE product_id = p.id
			ORDER BY id DESC
			LIMIT 1
		) m ON TRUE
		WHERE p.stock <> m.balance_after`)
	if err != nil {
		return fmt.Errorf("stock integrity: scan: %w", err)
	}
	defer rows.Close()

	divergent := 0
	for rows.Next() {
		var id, stock, balanceAfter int64
		var code string
		if err := rows.Scan(&id, &code, &stock, &balanceAfter); err != nil {
			return err
		}
		divergent++
		j.Logger.Warn("stock diverges from movement log",
			slog.Int64("product_id", id),
			slog.String("code", code),
			slog.Int64("stock", stock),
			slog.Int64("last_balance_after", balanceAfter))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if divergent == 0 {
		j.Logger.Info("stock integrity clean", slog.Duration("took", time.Since(start)))
	} else {
		j.Logger.Warn("stock integrity found divergence",
			slog.Int("products", divergent),
			slog.Duration("took", time.Since(start)))
	}
	return nil
}
