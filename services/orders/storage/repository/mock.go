package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/openmall/mall-go/libs/datastore"
	"github.com/openmall/mall-go/libs/inputs"
	"github.com/openmall/mall-go/services/orders/model"
)

type MockOrder struct {
	FnGet                func(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Order, error)
	FnGetForUpdate       func(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Order, error)
	FnGetByOrderNumber   func(ctx context.Context, dbi sqlx.QueryerContext, num string) (*model.Order, error)
	FnCreate             func(ctx context.Context, dbi sqlx.QueryerContext, req *model.OrderNew) (*model.Order, error)
	FnUpdateStatus       func(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, to string) error
	FnSetPaid            func(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, when time.Time) error
	FnSetAwaitingPayment func(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, deadline time.Time) error
	FnMarkCanceled       func(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, reason string) error
	FnNextExpiredID      func(ctx context.Context, dbi sqlx.QueryerContext, now time.Time) (uuid.UUID, error)
}

func (r *MockOrder) Get(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Order, error) {
	if r.FnGet == nil {
		result := &model.Order{
			ID:          id,
			OrderNumber: model.NewOrderNumber(),
			OwnerID:     uuid.NewV4(),
			Currency:    "CNY",
			TotalPrice:  decimal.RequireFromString("8.88"),
			Status:      model.OrderStatusAwaitingPayment,
			CreatedAt:   time.Now().UTC(),
			UpdatedAt:   time.Now().UTC(),
		}

		return result, nil
	}

	return r.FnGet(ctx, dbi, id)
}

func (r *MockOrder) GetForUpdate(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Order, error) {
	if r.FnGetForUpdate == nil {
		return r.Get(ctx, dbi, id)
	}

	return r.FnGetForUpdate(ctx, dbi, id)
}

func (r *MockOrder) GetByOrderNumber(ctx context.Context, dbi sqlx.QueryerContext, num string) (*model.Order, error) {
	if r.FnGetByOrderNumber == nil {
		result := &model.Order{
			ID:          uuid.NewV4(),
			OrderNumber: num,
			OwnerID:     uuid.NewV4(),
			Currency:    "CNY",
			TotalPrice:  decimal.RequireFromString("8.88"),
			Status:      model.OrderStatusAwaitingPayment,
		}

		return result, nil
	}

	return r.FnGetByOrderNumber(ctx, dbi, num)
}

func (r *MockOrder) Create(ctx context.Context, dbi sqlx.QueryerContext, req *model.OrderNew) (*model.Order, error) {
	if r.FnCreate == nil {
		result := &model.Order{
			ID:              uuid.NewV4(),
			OrderNumber:     req.OrderNumber,
			OwnerID:         req.OwnerID,
			Currency:        req.Currency,
			TotalPrice:      req.TotalPrice,
			Status:          req.Status,
			PaymentDeadline: req.PaymentDeadline,
			CreatedAt:       time.Now().UTC(),
			UpdatedAt:       time.Now().UTC(),
		}

		return result, nil
	}

	return r.FnCreate(ctx, dbi, req)
}

func (r *MockOrder) UpdateStatus(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, to string) error {
	if r.FnUpdateStatus == nil {
		return nil
	}

	return r.FnUpdateStatus(ctx, dbi, id, from, to)
}

func (r *MockOrder) SetPaid(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, when time.Time) error {
	if r.FnSetPaid == nil {
		return nil
	}

	return r.FnSetPaid(ctx, dbi, id, when)
}

func (r *MockOrder) SetAwaitingPayment(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, deadline time.Time) error {
	if r.FnSetAwaitingPayment == nil {
		return nil
	}

	return r.FnSetAwaitingPayment(ctx, dbi, id, deadline)
}

func (r *MockOrder) MarkCanceled(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, reason string) error {
	if r.FnMarkCanceled == nil {
		return nil
	}

	return r.FnMarkCanceled(ctx, dbi, id, from, reason)
}

func (r *MockOrder) NextExpiredID(ctx context.Context, dbi sqlx.QueryerContext, now time.Time) (uuid.UUID, error) {
	if r.FnNextExpiredID == nil {
		return uuid.Nil, model.ErrOrderNotFound
	}

	return r.FnNextExpiredID(ctx, dbi, now)
}

type MockOrderItem struct {
	FnGet           func(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.OrderItem, error)
	FnFindByOrderID func(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) ([]model.OrderItem, error)
	FnInsertMany    func(ctx context.Context, dbi sqlx.ExtContext, items ...model.OrderItem) ([]model.OrderItem, error)
}

func (r *MockOrderItem) Get(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.OrderItem, error) {
	if r.FnGet == nil {
		return &model.OrderItem{ID: id}, nil
	}

	return r.FnGet(ctx, dbi, id)
}

func (r *MockOrderItem) FindByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) ([]model.OrderItem, error) {
	if r.FnFindByOrderID == nil {
		return []model.OrderItem{}, nil
	}

	return r.FnFindByOrderID(ctx, dbi, orderID)
}

func (r *MockOrderItem) InsertMany(ctx context.Context, dbi sqlx.ExtContext, items ...model.OrderItem) ([]model.OrderItem, error) {
	if r.FnInsertMany == nil {
		return items, nil
	}

	return r.FnInsertMany(ctx, dbi, items...)
}

type MockTransaction struct {
	FnInsert                func(ctx context.Context, dbi sqlx.QueryerContext, req *model.TransactionNew) (*model.PaymentTransaction, error)
	FnGetByGatewayTxnID     func(ctx context.Context, dbi sqlx.QueryerContext, gatewayTxnID string) (*model.PaymentTransaction, error)
	FnFindByOrderID         func(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) ([]model.PaymentTransaction, error)
	FnFindPagedByOrderID    func(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID, pagination *inputs.Pagination) ([]model.PaymentTransaction, int, error)
	FnGetSucceededByOrderID func(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) (*model.PaymentTransaction, error)
}

func (r *MockTransaction) Insert(ctx context.Context, dbi sqlx.QueryerContext, req *model.TransactionNew) (*model.PaymentTransaction, error) {
	if r.FnInsert == nil {
		result := &model.PaymentTransaction{
			ID:           uuid.NewV4(),
			OrderID:      req.OrderID,
			GatewayTxnID: req.GatewayTxnID,
			Amount:       req.Amount,
			Status:       req.Status,
			Kind:         req.Kind,
			CreatedAt:    time.Now().UTC(),
		}

		return result, nil
	}

	return r.FnInsert(ctx, dbi, req)
}

func (r *MockTransaction) GetByGatewayTxnID(ctx context.Context, dbi sqlx.QueryerContext, gatewayTxnID string) (*model.PaymentTransaction, error) {
	if r.FnGetByGatewayTxnID == nil {
		return nil, model.ErrTransactionNotFound
	}

	return r.FnGetByGatewayTxnID(ctx, dbi, gatewayTxnID)
}

func (r *MockTransaction) FindByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) ([]model.PaymentTransaction, error) {
	if r.FnFindByOrderID == nil {
		return []model.PaymentTransaction{}, nil
	}

	return r.FnFindByOrderID(ctx, dbi, orderID)
}

func (r *MockTransaction) FindPagedByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID, pagination *inputs.Pagination) ([]model.PaymentTransaction, int, error) {
	if r.FnFindPagedByOrderID == nil {
		return []model.PaymentTransaction{}, 0, nil
	}

	return r.FnFindPagedByOrderID(ctx, dbi, orderID, pagination)
}

func (r *MockTransaction) GetSucceededByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) (*model.PaymentTransaction, error) {
	if r.FnGetSucceededByOrderID == nil {
		result := &model.PaymentTransaction{
			ID:      uuid.NewV4(),
			OrderID: orderID,
			Amount:  decimal.RequireFromString("8.88"),
			Status:  model.TransactionStatusSucceeded,
			Kind:    model.TransactionKindPayment,
		}

		return result, nil
	}

	return r.FnGetSucceededByOrderID(ctx, dbi, orderID)
}

type MockRefund struct {
	FnCreate             func(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID, refundNumber string, amount decimal.Decimal, reason string) (*model.RefundRequest, error)
	FnGet                func(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.RefundRequest, error)
	FnGetByRefundNumber  func(ctx context.Context, dbi sqlx.QueryerContext, num string) (*model.RefundRequest, error)
	FnUpdateStatus       func(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, to string) error
	FnMarkCompleted      func(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, gatewayRefundID string) error
	FnSumActiveByOrderID func(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) (decimal.Decimal, error)
}

func (r *MockRefund) Create(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID, refundNumber string, amount decimal.Decimal, reason string) (*model.RefundRequest, error) {
	if r.FnCreate == nil {
		result := &model.RefundRequest{
			ID:           uuid.NewV4(),
			OrderID:      orderID,
			RefundNumber: refundNumber,
			Amount:       amount,
			Reason:       reason,
			Status:       model.RefundStatusRequested,
			CreatedAt:    time.Now().UTC(),
			UpdatedAt:    time.Now().UTC(),
		}

		return result, nil
	}

	return r.FnCreate(ctx, dbi, orderID, refundNumber, amount, reason)
}

func (r *MockRefund) Get(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.RefundRequest, error) {
	if r.FnGet == nil {
		return &model.RefundRequest{ID: id, Status: model.RefundStatusRequested}, nil
	}

	return r.FnGet(ctx, dbi, id)
}

func (r *MockRefund) GetByRefundNumber(ctx context.Context, dbi sqlx.QueryerContext, num string) (*model.RefundRequest, error) {
	if r.FnGetByRefundNumber == nil {
		result := &model.RefundRequest{
			ID:           uuid.NewV4(),
			OrderID:      uuid.NewV4(),
			RefundNumber: num,
			Status:       model.RefundStatusRequested,
		}

		return result, nil
	}

	return r.FnGetByRefundNumber(ctx, dbi, num)
}

func (r *MockRefund) UpdateStatus(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, to string) error {
	if r.FnUpdateStatus == nil {
		return nil
	}

	return r.FnUpdateStatus(ctx, dbi, id, from, to)
}

func (r *MockRefund) MarkCompleted(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, gatewayRefundID string) error {
	if r.FnMarkCompleted == nil {
		return nil
	}

	return r.FnMarkCompleted(ctx, dbi, id, gatewayRefundID)
}

func (r *MockRefund) SumActiveByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) (decimal.Decimal, error) {
	if r.FnSumActiveByOrderID == nil {
		return decimal.Zero, nil
	}

	return r.FnSumActiveByOrderID(ctx, dbi, orderID)
}

type MockSettlement struct {
	FnInsert        func(ctx context.Context, dbi sqlx.ExecerContext, orderID, ownerID uuid.UUID, amount decimal.Decimal, kind string) error
	FnClaimNext     func(ctx context.Context, dbi sqlx.QueryerContext) (*model.SettlementJob, error)
	FnMarkDone      func(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID) error
	FnRecordFailure func(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, lastError string) error
}

func (r *MockSettlement) Insert(ctx context.Context, dbi sqlx.ExecerContext, orderID, ownerID uuid.UUID, amount decimal.Decimal, kind string) error {
	if r.FnInsert == nil {
		return nil
	}

	return r.FnInsert(ctx, dbi, orderID, ownerID, amount, kind)
}

func (r *MockSettlement) ClaimNext(ctx context.Context, dbi sqlx.QueryerContext) (*model.SettlementJob, error) {
	if r.FnClaimNext == nil {
		return nil, model.ErrSettlementJobNotFound
	}

	return r.FnClaimNext(ctx, dbi)
}

func (r *MockSettlement) MarkDone(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID) error {
	if r.FnMarkDone == nil {
		return nil
	}

	return r.FnMarkDone(ctx, dbi, id)
}

func (r *MockSettlement) RecordFailure(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, lastError string) error {
	if r.FnRecordFailure == nil {
		return nil
	}

	return r.FnRecordFailure(ctx, dbi, id, lastError)
}

type MockAnomaly struct {
	FnInsert        func(ctx context.Context, dbi sqlx.ExecerContext, orderID *uuid.UUID, gatewayTxnID string, amount decimal.Decimal, reason string, payload datastore.Metadata) error
	FnFindByOrderID func(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) ([]model.PaymentAnomaly, error)
}

func (r *MockAnomaly) Insert(ctx context.Context, dbi sqlx.ExecerContext, orderID *uuid.UUID, gatewayTxnID string, amount decimal.Decimal, reason string, payload datastore.Metadata) error {
	if r.FnInsert == nil {
		return nil
	}

	return r.FnInsert(ctx, dbi, orderID, gatewayTxnID, amount, reason, payload)
}

func (r *MockAnomaly) FindByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) ([]model.PaymentAnomaly, error) {
	if r.FnFindByOrderID == nil {
		return []model.PaymentAnomaly{}, nil
	}

	return r.FnFindByOrderID(ctx, dbi, orderID)
}

type MockOrderPayHistory struct {
	FnInsert func(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, when time.Time) error
}

func (r *MockOrderPayHistory) Insert(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, when time.Time) error {
	if r.FnInsert == nil {
		return nil
	}

	return r.FnInsert(ctx, dbi, id, when)
}
