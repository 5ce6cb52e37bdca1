package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/openmall/mall-go/services/orders/model"
)

const settlementCols = `id, order_id, owner_id, amount, kind, status, attempts, last_error, created_at, updated_at`

type Settlement struct{}

func NewSettlement() *Settlement { return &Settlement{} }

// Insert enqueues a settlement job for the order.
//
// The conflict clause keeps the enqueue idempotent per order and kind, so the
// paid transition can run at most one credit for an order.
func (r *Settlement) Insert(ctx context.Context, dbi sqlx.ExecerContext, orderID, ownerID uuid.UUID, amount decimal.Decimal, kind string) error {
	const q = `INSERT INTO settlement_jobs (order_id, owner_id, amount, kind, status)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (order_id, kind) DO NOTHING`

	if _, err := dbi.ExecContext(ctx, q, orderID, ownerID, amount, kind, model.SettlementStatusPending); err != nil {
		return err
	}

	return nil
}

// ClaimNext claims one pending settlement job.
//
// Skips rows other workers hold so concurrent settlers never contend.
func (r *Settlement) ClaimNext(ctx context.Context, dbi sqlx.QueryerContext) (*model.SettlementJob, error) {
	const q = `SELECT ` + settlementCols + ` FROM settlement_jobs
	WHERE status = $1
	ORDER BY created_at
	LIMIT 1
	FOR UPDATE SKIP LOCKED`

	result := &model.SettlementJob{}
	if err := sqlx.GetContext(ctx, dbi, result, q, model.SettlementStatusPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSettlementJobNotFound
		}

		return nil, err
	}

	return result, nil
}

// MarkDone marks the settlement job done.
func (r *Settlement) MarkDone(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID) error {
	const q = `UPDATE settlement_jobs SET status = $2, updated_at = CURRENT_TIMESTAMP
	WHERE id = $1 AND status = $3`

	return r.execUpdate(ctx, dbi, q, id, model.SettlementStatusDone, model.SettlementStatusPending)
}

// RecordFailure bumps the attempt counter and stores the collaborator error.
//
// The job stays pending and is retried on the next cadence.
func (r *Settlement) RecordFailure(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, lastError string) error {
	const q = `UPDATE settlement_jobs
	SET attempts = attempts + 1, last_error = $2, updated_at = CURRENT_TIMESTAMP
	WHERE id = $1`

	return r.execUpdate(ctx, dbi, q, id, lastError)
}

func (r *Settlement) execUpdate(ctx context.Context, dbi sqlx.ExecerContext, q string, args ...interface{}) error {
	result, err := dbi.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}

	numAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if numAffected == 0 {
		return model.ErrNoRowsChangedSettlement
	}

	return nil
}
