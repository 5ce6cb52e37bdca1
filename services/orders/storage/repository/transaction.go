package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	uuid "github.com/satori/go.uuid"

	"github.com/openmall/mall-go/libs/inputs"
	"github.com/openmall/mall-go/services/orders/model"
)

const pqUniqueViolation = "23505"

type Transaction struct{}

func NewTransaction() *Transaction { return &Transaction{} }

// Insert records a gateway callback outcome.
//
// The unique constraint on gateway_transaction_id turns duplicate callback
// deliveries into ErrDuplicateGatewayTransactionID.
func (r *Transaction) Insert(ctx context.Context, dbi sqlx.QueryerContext, req *model.TransactionNew) (*model.PaymentTransaction, error) {
	const q = `INSERT INTO payment_transactions
		(order_id, gateway_transaction_id, amount, status, kind, raw_payload)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, order_id, gateway_transaction_id, amount, status, kind, raw_payload, created_at`

	result := &model.PaymentTransaction{}
	if err := dbi.QueryRowxContext(
		ctx,
		q,
		req.OrderID,
		req.GatewayTxnID,
		req.Amount,
		req.Status,
		req.Kind,
		req.RawPayload,
	).StructScan(result); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return nil, model.ErrDuplicateGatewayTransactionID
		}

		return nil, err
	}

	return result, nil
}

// GetByGatewayTxnID retrieves the transaction recorded for the given gateway id.
func (r *Transaction) GetByGatewayTxnID(ctx context.Context, dbi sqlx.QueryerContext, gatewayTxnID string) (*model.PaymentTransaction, error) {
	const q = `SELECT id, order_id, gateway_transaction_id, amount, status, kind, raw_payload, created_at
	FROM payment_transactions WHERE gateway_transaction_id = $1`

	result := &model.PaymentTransaction{}
	if err := sqlx.GetContext(ctx, dbi, result, q, gatewayTxnID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrTransactionNotFound
		}

		return nil, err
	}

	return result, nil
}

// FindByOrderID returns transactions for the given orderID, oldest first.
func (r *Transaction) FindByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) ([]model.PaymentTransaction, error) {
	const q = `SELECT id, order_id, gateway_transaction_id, amount, status, kind, raw_payload, created_at
	FROM payment_transactions WHERE order_id = $1 ORDER BY created_at`

	result := make([]model.PaymentTransaction, 0)
	if err := sqlx.SelectContext(ctx, dbi, &result, q, orderID); err != nil {
		return nil, err
	}

	return result, nil
}

// FindPagedByOrderID returns one page of transactions for the given orderID
// together with the total count.
func (r *Transaction) FindPagedByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID, pagination *inputs.Pagination) ([]model.PaymentTransaction, int, error) {
	const countQ = `SELECT count(*) FROM payment_transactions WHERE order_id = $1`

	var total int
	if err := sqlx.GetContext(ctx, dbi, &total, countQ, orderID); err != nil {
		return nil, 0, err
	}

	q := `SELECT id, order_id, gateway_transaction_id, amount, status, kind, raw_payload, created_at
	FROM payment_transactions WHERE order_id = $1`

	if orderBy := pagination.GetOrderBy(ctx); orderBy != "" {
		q += fmt.Sprintf(" ORDER BY %s", orderBy)
	} else {
		q += " ORDER BY created_at"
	}

	if offset := pagination.Page * pagination.Items; offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", offset)
	}

	if pagination.Items > 0 {
		q += fmt.Sprintf(" FETCH NEXT %d ROWS ONLY", pagination.Items)
	}

	result := make([]model.PaymentTransaction, 0)
	if err := sqlx.SelectContext(ctx, dbi, &result, q, orderID); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

// GetSucceededByOrderID returns the succeeded payment transaction of the order.
func (r *Transaction) GetSucceededByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) (*model.PaymentTransaction, error) {
	const q = `SELECT id, order_id, gateway_transaction_id, amount, status, kind, raw_payload, created_at
	FROM payment_transactions
	WHERE order_id = $1 AND status = $2 AND kind = $3`

	result := &model.PaymentTransaction{}
	if err := sqlx.GetContext(ctx, dbi, result, q, orderID, model.TransactionStatusSucceeded, model.TransactionKindPayment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrTransactionNotFound
		}

		return nil, err
	}

	return result, nil
}
