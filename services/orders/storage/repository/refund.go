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

const refundCols = `id, order_id, refund_number, amount, reason, status, gateway_refund_id, created_at, updated_at`

type Refund struct{}

func NewRefund() *Refund { return &Refund{} }

// Create records a refund request for the order.
func (r *Refund) Create(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID, refundNumber string, amount decimal.Decimal, reason string) (*model.RefundRequest, error) {
	const q = `INSERT INTO refund_requests (order_id, refund_number, amount, reason, status)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + refundCols

	result := &model.RefundRequest{}
	if err := dbi.QueryRowxContext(ctx, q, orderID, refundNumber, amount, reason, model.RefundStatusRequested).StructScan(result); err != nil {
		return nil, err
	}

	return result, nil
}

// Get retrieves the refund request by the given id.
func (r *Refund) Get(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.RefundRequest, error) {
	const q = `SELECT ` + refundCols + ` FROM refund_requests WHERE id = $1`

	result := &model.RefundRequest{}
	if err := sqlx.GetContext(ctx, dbi, result, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRefundNotFound
		}

		return nil, err
	}

	return result, nil
}

// GetByRefundNumber retrieves the refund request carrying the given external
// number, locking the row.
func (r *Refund) GetByRefundNumber(ctx context.Context, dbi sqlx.QueryerContext, num string) (*model.RefundRequest, error) {
	const q = `SELECT ` + refundCols + ` FROM refund_requests WHERE refund_number = $1 FOR UPDATE`

	result := &model.RefundRequest{}
	if err := sqlx.GetContext(ctx, dbi, result, q, num); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrRefundNotFound
		}

		return nil, err
	}

	return result, nil
}

// UpdateStatus moves the refund request from from to to.
func (r *Refund) UpdateStatus(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, to string) error {
	const q = `UPDATE refund_requests SET status = $3, updated_at = CURRENT_TIMESTAMP
	WHERE id = $1 AND status = $2`

	return r.execUpdate(ctx, dbi, q, id, from, to)
}

// MarkCompleted completes the refund request and records the gateway refund id.
func (r *Refund) MarkCompleted(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, gatewayRefundID string) error {
	const q = `UPDATE refund_requests
	SET status = $3, gateway_refund_id = $2, updated_at = CURRENT_TIMESTAMP
	WHERE id = $1 AND status IN ($4, $5)`

	return r.execUpdate(ctx, dbi, q, id, gatewayRefundID, model.RefundStatusCompleted, model.RefundStatusRequested, model.RefundStatusApproved)
}

// SumActiveByOrderID returns the total amount across refund requests of the
// order that are not rejected.
//
// Used to keep cumulative refunds within the paid amount.
func (r *Refund) SumActiveByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) (decimal.Decimal, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM refund_requests
	WHERE order_id = $1 AND status != $2`

	var result decimal.Decimal
	if err := sqlx.GetContext(ctx, dbi, &result, q, orderID, model.RefundStatusRejected); err != nil {
		return decimal.Zero, err
	}

	return result, nil
}

func (r *Refund) execUpdate(ctx context.Context, dbi sqlx.ExecerContext, q string, args ...interface{}) error {
	result, err := dbi.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}

	numAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if numAffected == 0 {
		return model.ErrNoRowsChangedRefund
	}

	return nil
}
