package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"

	"github.com/openmall/mall-go/services/orders/model"
	"github.com/openmall/mall-go/services/orders/storage/repository"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	must.Equal(t, nil, err)

	t.Cleanup(func() { _ = mockDB.Close() })

	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func orderRow(id uuid.UUID, status string) *sqlmock.Rows {
	now := time.Now().UTC()

	return sqlmock.NewRows([]string{
		"id", "order_number", "owner_id", "created_at", "updated_at", "currency",
		"total_price", "status", "payment_deadline", "paid_at", "cancel_reason", "metadata",
	}).AddRow(id, "mo_0102030405060708090a0b0c", uuid.NewV4(), now, now, "CNY", "8.88", status, nil, nil, nil, nil)
}

func TestOrder_Get(t *testing.T) {
	dbi, mock := setupMockDB(t)
	repo := repository.NewOrder()

	t.Run("not_found", func(t *testing.T) {
		id := uuid.NewV4()

		mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = (.+)").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		actual, err := repo.Get(context.Background(), dbi, id)
		should.Equal(t, true, errors.Is(err, model.ErrOrderNotFound))
		should.Nil(t, actual)
	})

	t.Run("found", func(t *testing.T) {
		id := uuid.NewV4()

		mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = (.+)").
			WithArgs(id).
			WillReturnRows(orderRow(id, model.OrderStatusAwaitingPayment))

		actual, err := repo.Get(context.Background(), dbi, id)
		must.Equal(t, nil, err)

		should.Equal(t, id, actual.ID)
		should.Equal(t, model.OrderStatusAwaitingPayment, actual.Status)
		should.Equal(t, true, actual.TotalPrice.Equal(decimal.RequireFromString("8.88")))
	})
}

func TestOrder_GetByOrderNumber(t *testing.T) {
	dbi, mock := setupMockDB(t)
	repo := repository.NewOrder()

	id := uuid.NewV4()

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE order_number = (.+) FOR UPDATE").
		WithArgs("mo_0102030405060708090a0b0c").
		WillReturnRows(orderRow(id, model.OrderStatusAwaitingPayment))

	actual, err := repo.GetByOrderNumber(context.Background(), dbi, "mo_0102030405060708090a0b0c")
	must.Equal(t, nil, err)

	should.Equal(t, id, actual.ID)
	should.Equal(t, "mo_0102030405060708090a0b0c", actual.OrderNumber)
}

func TestOrder_UpdateStatus(t *testing.T) {
	dbi, mock := setupMockDB(t)
	repo := repository.NewOrder()

	t.Run("no_rows_changed", func(t *testing.T) {
		id := uuid.NewV4()

		mock.ExpectExec("UPDATE orders SET status = (.+)").
			WithArgs(id, model.OrderStatusAwaitingPayment, model.OrderStatusExpired).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateStatus(context.Background(), dbi, id, model.OrderStatusAwaitingPayment, model.OrderStatusExpired)
		should.Equal(t, true, errors.Is(err, model.ErrNoRowsChangedOrder))
	})

	t.Run("updated", func(t *testing.T) {
		id := uuid.NewV4()

		mock.ExpectExec("UPDATE orders SET status = (.+)").
			WithArgs(id, model.OrderStatusAwaitingPayment, model.OrderStatusExpired).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateStatus(context.Background(), dbi, id, model.OrderStatusAwaitingPayment, model.OrderStatusExpired)
		should.Equal(t, nil, err)
	})
}

func TestOrder_SetPaid(t *testing.T) {
	dbi, mock := setupMockDB(t)
	repo := repository.NewOrder()

	t.Run("guard_misses", func(t *testing.T) {
		id := uuid.NewV4()
		when := time.Now().UTC()

		mock.ExpectExec("UPDATE orders").
			WithArgs(id, when, model.OrderStatusPaid, model.OrderStatusAwaitingPayment).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SetPaid(context.Background(), dbi, id, when)
		should.Equal(t, true, errors.Is(err, model.ErrNoRowsChangedOrder))
	})

	t.Run("paid", func(t *testing.T) {
		id := uuid.NewV4()
		when := time.Now().UTC()

		mock.ExpectExec("UPDATE orders").
			WithArgs(id, when, model.OrderStatusPaid, model.OrderStatusAwaitingPayment).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SetPaid(context.Background(), dbi, id, when)
		should.Equal(t, nil, err)
	})
}

func TestOrder_NextExpiredID(t *testing.T) {
	dbi, mock := setupMockDB(t)
	repo := repository.NewOrder()

	t.Run("nothing_stale", func(t *testing.T) {
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT id FROM orders").
			WithArgs(model.OrderStatusAwaitingPayment, now).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		actual, err := repo.NextExpiredID(context.Background(), dbi, now)
		should.Equal(t, true, errors.Is(err, model.ErrOrderNotFound))
		should.Equal(t, uuid.Nil, actual)
	})

	t.Run("claimed", func(t *testing.T) {
		id := uuid.NewV4()
		now := time.Now().UTC()

		mock.ExpectQuery("SELECT id FROM orders").
			WithArgs(model.OrderStatusAwaitingPayment, now).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))

		actual, err := repo.NextExpiredID(context.Background(), dbi, now)
		must.Equal(t, nil, err)
		should.Equal(t, id, actual)
	})
}

func TestTransaction_Insert_Duplicate(t *testing.T) {
	dbi, mock := setupMockDB(t)
	repo := repository.NewTransaction()

	req := &model.TransactionNew{
		OrderID:      uuid.NewV4(),
		GatewayTxnID: "4200001",
		Amount:       decimal.RequireFromString("8.88"),
		Status:       model.TransactionStatusSucceeded,
		Kind:         model.TransactionKindPayment,
	}

	mock.ExpectQuery("INSERT INTO payment_transactions").
		WillReturnError(&pq.Error{Code: "23505"})

	actual, err := repo.Insert(context.Background(), dbi, req)
	should.Equal(t, true, errors.Is(err, model.ErrDuplicateGatewayTransactionID))
	should.Nil(t, actual)
}

func TestTransaction_GetByGatewayTxnID(t *testing.T) {
	dbi, mock := setupMockDB(t)
	repo := repository.NewTransaction()

	t.Run("not_found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM payment_transactions WHERE gateway_transaction_id = (.+)").
			WithArgs("4200001").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		actual, err := repo.GetByGatewayTxnID(context.Background(), dbi, "4200001")
		should.Equal(t, true, errors.Is(err, model.ErrTransactionNotFound))
		should.Nil(t, actual)
	})

	t.Run("found", func(t *testing.T) {
		id := uuid.NewV4()
		orderID := uuid.NewV4()

		rows := sqlmock.NewRows([]string{
			"id", "order_id", "gateway_transaction_id", "amount", "status", "kind", "raw_payload", "created_at",
		}).AddRow(id, orderID, "4200001", "8.88", model.TransactionStatusSucceeded, model.TransactionKindPayment, nil, time.Now().UTC())

		mock.ExpectQuery("SELECT (.+) FROM payment_transactions WHERE gateway_transaction_id = (.+)").
			WithArgs("4200001").
			WillReturnRows(rows)

		actual, err := repo.GetByGatewayTxnID(context.Background(), dbi, "4200001")
		must.Equal(t, nil, err)

		should.Equal(t, orderID, actual.OrderID)
		should.Equal(t, model.TransactionStatusSucceeded, actual.Status)
	})
}

func TestRefund_SumActiveByOrderID(t *testing.T) {
	dbi, mock := setupMockDB(t)
	repo := repository.NewRefund()

	orderID := uuid.NewV4()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(orderID, model.RefundStatusRejected).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("3.33"))

	actual, err := repo.SumActiveByOrderID(context.Background(), dbi, orderID)
	must.Equal(t, nil, err)

	should.Equal(t, true, actual.Equal(decimal.RequireFromString("3.33")))
}

func TestSettlement_ClaimNext(t *testing.T) {
	dbi, mock := setupMockDB(t)
	repo := repository.NewSettlement()

	t.Run("queue_empty", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM settlement_jobs").
			WithArgs(model.SettlementStatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		actual, err := repo.ClaimNext(context.Background(), dbi)
		should.Equal(t, true, errors.Is(err, model.ErrSettlementJobNotFound))
		should.Nil(t, actual)
	})

	t.Run("claimed", func(t *testing.T) {
		id := uuid.NewV4()
		now := time.Now().UTC()

		rows := sqlmock.NewRows([]string{
			"id", "order_id", "owner_id", "amount", "kind", "status", "attempts", "last_error", "created_at", "updated_at",
		}).AddRow(id, uuid.NewV4(), uuid.NewV4(), "8.88", model.SettlementKindCredit, model.SettlementStatusPending, 0, nil, now, now)

		mock.ExpectQuery("SELECT (.+) FROM settlement_jobs").
			WithArgs(model.SettlementStatusPending).
			WillReturnRows(rows)

		actual, err := repo.ClaimNext(context.Background(), dbi)
		must.Equal(t, nil, err)

		should.Equal(t, id, actual.ID)
		should.Equal(t, model.SettlementKindCredit, actual.Kind)
	})
}

func TestSettlement_RecordFailure(t *testing.T) {
	dbi, mock := setupMockDB(t)
	repo := repository.NewSettlement()

	id := uuid.NewV4()

	mock.ExpectExec("UPDATE settlement_jobs").
		WithArgs(id, "rewards unavailable").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordFailure(context.Background(), dbi, id, "rewards unavailable")
	should.Equal(t, nil, err)
}

func TestAnomaly_Insert(t *testing.T) {
	dbi, mock := setupMockDB(t)
	repo := repository.NewAnomaly()

	t.Run("unknown_order", func(t *testing.T) {
		amount := decimal.RequireFromString("8.88")

		mock.ExpectExec("INSERT INTO payment_anomalies (.+)").
			WithArgs(nil, "4200009", amount, model.AnomalyReasonUnknownOrder, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Insert(context.Background(), dbi, nil, "4200009", amount, model.AnomalyReasonUnknownOrder, nil)
		should.Equal(t, nil, err)
	})

	t.Run("order_scoped", func(t *testing.T) {
		orderID := uuid.NewV4()
		amount := decimal.RequireFromString("9.99")

		mock.ExpectExec("INSERT INTO payment_anomalies (.+)").
			WithArgs(&orderID, "4200001", amount, model.AnomalyReasonAmountMismatch, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Insert(context.Background(), dbi, &orderID, "4200001", amount, model.AnomalyReasonAmountMismatch, nil)
		should.Equal(t, nil, err)
	})
}
