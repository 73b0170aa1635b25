package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-retail/meridian/internal/shared"
)

// balanceLockTTL bounds how long a reconcile pass may hold the lock.
const balanceLockTTL = 10 * time.Minute

// balanceDrift is one party counter that no longer matches what the
// transaction and payment logs imply.
type balanceDrift struct {
	PartyID  int64
	Field    string
	Stored   float64
	Expected float64
}

// BalanceReconcileJob recomputes every party's due counters from the
// live transactions and balance payments, then repairs any counter that
// drifted. Counters can drift if a crash lands between commit batches
// or an operator edits rows by hand; the periodic pass restores the
// derived state to what the logs imply.
type BalanceReconcileJob struct {
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Logger *slog.Logger
}

// NewBalanceReconcileJob initialises the reconcile handler.
func NewBalanceReconcileJob(pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger) *BalanceReconcileJob {
	return &BalanceReconcileJob{Pool: pool, Redis: rdb, Logger: logger}
}

// Handle executes one reconcile pass. A redis lock keeps overlapping
// cron fires from reconciling concurrently.
func (j *BalanceReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("balance reconcile: handler not configured")
	}
	var payload SchedulePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	if j.Redis != nil {
		lockKey := shared.ReconcileLockKey("balance")
		ok, err := j.Redis.SetNX(ctx, lockKey, time.Now().UTC().Format(time.RFC3339), balanceLockTTL).Result()
		if err != nil {
			return fmt.Errorf("balance reconcile: acquire lock: %w", err)
		}
		if !ok {
			j.Logger.Info("balance reconcile already running, skipping")
			return nil
		}
		defer j.Redis.Del(context.WithoutCancel(ctx), lockKey)
	}

	start := time.Now()
	drifts, err := j.findDrift(ctx)
	if err != nil {
		return fmt.Errorf("balance reconcile: scan: %w", err)
	}
	if len(drifts) == 0 {
		j.Logger.Info("balance reconcile clean",
			slog.Duration("took", time.Since(start)))
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, d := range drifts {
		d := d
		g.Go(func() error {
			return j.repair(gctx, d)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("balance reconcile: repair: %w", err)
	}

	j.Logger.Warn("balance reconcile repaired drift",
		slog.Int("parties", len(drifts)),
		slog.Duration("took", time.Since(start)))
	return nil
}

// findDrift compares stored due counters against the values the live
// transaction rows and balance payments imply.
func (j *BalanceReconcileJob) findDrift(ctx context.Context) ([]balanceDrift, error) {
	rows, err := j.Pool.Query(ctx, `
		WITH tx AS (
			SELECT party_id,
			       COALESCE(SUM(due_amount)  FILTER (WHERE tx_type = 'SALE'), 0)            AS sales_due,
			       COALESCE(SUM(grand_total) FILTER (WHERE tx_type = 'SALES_RETURN'), 0)    AS sales_return_due,
			       COALESCE(SUM(due_amount)  FILTER (WHERE tx_type = 'PURCHASE'), 0)        AS purchase_due,
			       COALESCE(SUM(grand_total) FILTER (WHERE tx_type = 'PURCHASE_RETURN'), 0) AS purchase_return_due
			FROM transactions
			GROUP BY party_id
		), pay AS (
			SELECT party_id, COALESCE(SUM(amount), 0) AS paid
			FROM balance_payments
			GROUP BY party_id
		)
		SELECT p.id,
		       p.sales_due, p.sales_return_due, p.purchase_due, p.purchase_return_due,
		       COALESCE(tx.sales_due, 0) - CASE WHEN p.kind = 'CUSTOMER' THEN COALESCE(pay.paid, 0) ELSE 0 END,
		       COALESCE(tx.sales_return_due, 0),
		       COALESCE(tx.purchase_due, 0) - CASE WHEN p.kind = 'SUPPLIER' THEN COALESCE(pay.paid, 0) ELSE 0 END,
		       COALESCE(tx.purchase_return_due, 0)
		FROM parties p
		LEFT JOIN tx ON tx.party_id = p.id
		LEFT JOIN pay ON pay.party_id = p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []balanceDrift
	for rows.Next() {
		var partyID int64
		var stored, expected [4]float64
		if err := rows.Scan(&partyID,
			&stored[0], &stored[1], &stored[2], &stored[3],
			&expected[0], &expected[1], &expected[2], &expected[3]); err != nil {
			return nil, err
		}
		fields := []string{"sales_due", "sales_return_due", "purchase_due", "purchase_return_due"}
		for i, field := range fields {
			if math.Abs(stored[i]-expected[i]) > 1e-6 {
				drifts = append(drifts, balanceDrift{
					PartyID:  partyID,
					Field:    field,
					Stored:   stored[i],
					Expected: expected[i],
				})
			}
		}
	}
	return drifts, rows.Err()
}

func (j *BalanceReconcileJob) repair(ctx context.Context, d balanceDrift) error {
	_, err := j.Pool.Exec(ctx,
		fmt.Sprintf(`UPDATE parties SET %s = $2, updated_at = NOW() WHERE id = $1`, d.Field),
		d.PartyID, d.Expected)
	if err != nil {
		return err
	}
	j.Logger.Warn("repaired party balance",
		slog.Int64("party_id", d.PartyID),
		slog.String("field", d.Field),
		slog.Float64("stored", d.Stored),
		slog.Float64("expected", d.Expected))
	return nil
}
