// Package repository provides access to data available in SQL-based data store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	uuid "github.com/satori/go.uuid"

	"github.com/openmall/mall-go/services/orders/model"
)

const orderCols = `id, order_number, owner_id, created_at, updated_at, currency,
	total_price, status, payment_deadline, paid_at, cancel_reason, metadata`

type Order struct{}

func NewOrder() *Order { return &Order{} }

// Get retrieves the order for the given id.
func (r *Order) Get(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Order, error) {
	const q = `SELECT ` + orderCols + ` FROM orders WHERE id = $1`

	result := &model.Order{}
	if err := sqlx.GetContext(ctx, dbi, result, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}

		return nil, err
	}

	return result, nil
}

// GetForUpdate retrieves the order for the given id, locking the row for the
// duration of the surrounding transaction.
func (r *Order) GetForUpdate(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Order, error) {
	const q = `SELECT ` + orderCols + ` FROM orders WHERE id = $1 FOR UPDATE`

	result := &model.Order{}
	if err := sqlx.GetContext(ctx, dbi, result, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}

		return nil, err
	}

	return result, nil
}

// GetByOrderNumber retrieves the order carrying the given external number,
// locking the row.
//
// Gateway callbacks identify orders by number, so the lookup locks the same
// way GetForUpdate does.
func (r *Order) GetByOrderNumber(ctx context.Context, dbi sqlx.QueryerContext, num string) (*model.Order, error) {
	const q = `SELECT ` + orderCols + ` FROM orders WHERE order_number = $1 FOR UPDATE`

	result := &model.Order{}
	if err := sqlx.GetContext(ctx, dbi, result, q, num); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}

		return nil, err
	}

	return result, nil
}

// Create creates an order with the given inputs.
func (r *Order) Create(ctx context.Context, dbi sqlx.QueryerContext, req *model.OrderNew) (*model.Order, error) {
	const q = `INSERT INTO orders
		(order_number, owner_id, currency, status, total_price, payment_deadline)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING ` + orderCols

	result := &model.Order{}
	if err := dbi.QueryRowxContext(
		ctx,
		q,
		req.OrderNumber,
		req.OwnerID,
		req.Currency,
		req.Status,
		req.TotalPrice,
		req.PaymentDeadline,
	).StructScan(result); err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateStatus moves the order from from to to.
//
// The from guard makes the statement a no-op when another transaction got
// there first, which surfaces as ErrNoRowsChangedOrder.
func (r *Order) UpdateStatus(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, to string) error {
	const q = `UPDATE orders SET status = $3, updated_at = CURRENT_TIMESTAMP
	WHERE id = $1 AND status = $2`

	return r.execUpdate(ctx, dbi, q, id, from, to)
}

// SetPaid marks the order paid at when and clears the payment deadline.
func (r *Order) SetPaid(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, when time.Time) error {
	const q = `UPDATE orders
	SET status = $3, paid_at = $2, payment_deadline = NULL, updated_at = CURRENT_TIMESTAMP
	WHERE id = $1 AND status = $4`

	return r.execUpdate(ctx, dbi, q, id, when, model.OrderStatusPaid, model.OrderStatusAwaitingPayment)
}

// SetAwaitingPayment moves the order to awaiting_payment with a fresh deadline.
func (r *Order) SetAwaitingPayment(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, deadline time.Time) error {
	const q = `UPDATE orders
	SET status = $3, payment_deadline = $2, updated_at = CURRENT_TIMESTAMP
	WHERE id = $1 AND status IN ($4, $3)`

	return r.execUpdate(ctx, dbi, q, id, deadline, model.OrderStatusAwaitingPayment, model.OrderStatusCreated)
}

// MarkCanceled cancels the order with the given reason.
func (r *Order) MarkCanceled(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, reason string) error {
	const q = `UPDATE orders
	SET status = $4, cancel_reason = $3, updated_at = CURRENT_TIMESTAMP
	WHERE id = $1 AND status = $2`

	return r.execUpdate(ctx, dbi, q, id, from, reason, model.OrderStatusCanceled)
}

// NextExpiredID claims one order whose payment deadline elapsed before now.
//
// Skips rows other workers hold so concurrent sweepers never contend.
func (r *Order) NextExpiredID(ctx context.Context, dbi sqlx.QueryerContext, now time.Time) (uuid.UUID, error) {
	const q = `SELECT id FROM orders
	WHERE status = $1 AND payment_deadline IS NOT NULL AND payment_deadline < $2
	ORDER BY payment_deadline
	LIMIT 1
	FOR UPDATE SKIP LOCKED`

	var result uuid.UUID
	if err := sqlx.GetContext(ctx, dbi, &result, q, model.OrderStatusAwaitingPayment, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, model.ErrOrderNotFound
		}

		return uuid.Nil, err
	}

	return result, nil
}

func (r *Order) execUpdate(ctx context.Context, dbi sqlx.ExecerContext, q string, args ...interface{}) error {
	result, err := dbi.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}

	numAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if numAffected == 0 {
		return model.ErrNoRowsChangedOrder
	}

	return nil
}
