package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/openmall/mall-go/libs/datastore"
	"github.com/openmall/mall-go/services/orders/model"
)

type Anomaly struct{}

func NewAnomaly() *Anomaly { return &Anomaly{} }

// Insert records a callback the reconciler refused to act on. A nil orderID
// keeps callbacks that match no order reviewable.
func (r *Anomaly) Insert(ctx context.Context, dbi sqlx.ExecerContext, orderID *uuid.UUID, gatewayTxnID string, amount decimal.Decimal, reason string, payload datastore.Metadata) error {
	const q = `INSERT INTO payment_anomalies
		(order_id, gateway_transaction_id, amount, reason, raw_payload)
	VALUES ($1, $2, $3, $4, $5)`

	if _, err := dbi.ExecContext(ctx, q, orderID, gatewayTxnID, amount, reason, payload); err != nil {
		return err
	}

	return nil
}

// FindByOrderID returns anomalies recorded for the given orderID.
func (r *Anomaly) FindByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) ([]model.PaymentAnomaly, error) {
	const q = `SELECT id, order_id, gateway_transaction_id, amount, reason, raw_payload, created_at
	FROM payment_anomalies WHERE order_id = $1 ORDER BY created_at`

	result := make([]model.PaymentAnomaly, 0)
	if err := sqlx.SelectContext(ctx, dbi, &result, q, orderID); err != nil {
		return nil, err
	}

	return result, nil
}
