package orders

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/openmall/mall-go/libs/backoff"
	"github.com/openmall/mall-go/libs/backoff/retrypolicy"
	"github.com/openmall/mall-go/libs/clients"
	"github.com/openmall/mall-go/libs/clients/rewards"
	"github.com/openmall/mall-go/libs/clients/wechatpay"
	appctx "github.com/openmall/mall-go/libs/context"
	"github.com/openmall/mall-go/libs/datastore"
	"github.com/openmall/mall-go/libs/inputs"
	"github.com/openmall/mall-go/libs/logging"
	srv "github.com/openmall/mall-go/libs/service"
	"github.com/openmall/mall-go/services/orders/model"
	"github.com/openmall/mall-go/services/orders/storage/repository"
)

const (
	defaultPaymentWindow = 15 * time.Minute
	defaultRefundWindow  = 7 * 24 * time.Hour

	gatewayTradeType = "NATIVE"
)

type orderStore interface {
	Get(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Order, error)
	GetForUpdate(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (*model.Order, error)
	GetByOrderNumber(ctx context.Context, dbi sqlx.QueryerContext, num string) (*model.Order, error)
	Create(ctx context.Context, dbi sqlx.QueryerContext, req *model.OrderNew) (*model.Order, error)
	UpdateStatus(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, to string) error
	SetPaid(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, when time.Time) error
	SetAwaitingPayment(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, deadline time.Time) error
	MarkCanceled(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, reason string) error
	NextExpiredID(ctx context.Context, dbi sqlx.QueryerContext, now time.Time) (uuid.UUID, error)
}

type orderItemStore interface {
	FindByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) ([]model.OrderItem, error)
	InsertMany(ctx context.Context, dbi sqlx.ExtContext, items ...model.OrderItem) ([]model.OrderItem, error)
}

type transactionStore interface {
	Insert(ctx context.Context, dbi sqlx.QueryerContext, req *model.TransactionNew) (*model.PaymentTransaction, error)
	GetByGatewayTxnID(ctx context.Context, dbi sqlx.QueryerContext, gatewayTxnID string) (*model.PaymentTransaction, error)
	FindByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) ([]model.PaymentTransaction, error)
	FindPagedByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID, pagination *inputs.Pagination) ([]model.PaymentTransaction, int, error)
	GetSucceededByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) (*model.PaymentTransaction, error)
}

type refundStore interface {
	Create(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID, refundNumber string, amount decimal.Decimal, reason string) (*model.RefundRequest, error)
	GetByRefundNumber(ctx context.Context, dbi sqlx.QueryerContext, num string) (*model.RefundRequest, error)
	UpdateStatus(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, to string) error
	MarkCompleted(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, gatewayRefundID string) error
	SumActiveByOrderID(ctx context.Context, dbi sqlx.QueryerContext, orderID uuid.UUID) (decimal.Decimal, error)
}

type settlementStore interface {
	Insert(ctx context.Context, dbi sqlx.ExecerContext, orderID, ownerID uuid.UUID, amount decimal.Decimal, kind string) error
	ClaimNext(ctx context.Context, dbi sqlx.QueryerContext) (*model.SettlementJob, error)
	MarkDone(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID) error
	RecordFailure(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, lastError string) error
}

type anomalyStore interface {
	Insert(ctx context.Context, dbi sqlx.ExecerContext, orderID *uuid.UUID, gatewayTxnID string, amount decimal.Decimal, reason string, payload datastore.Metadata) error
}

type payHistoryStore interface {
	Insert(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, when time.Time) error
}

type gatewayClient interface {
	UnifiedOrder(ctx context.Context, req *wechatpay.UnifiedOrderRequest) (*wechatpay.UnifiedOrderResponse, error)
	Refund(ctx context.Context, req *wechatpay.RefundRequest) (*wechatpay.RefundResponse, error)
}

// Service orchestrates the order lifecycle and payment reconciliation.
type Service struct {
	Datastore Datastore

	orderRepo      orderStore
	orderItemRepo  orderItemStore
	txnRepo        transactionStore
	refundRepo     refundStore
	settlementRepo settlementStore
	anomalyRepo    anomalyStore
	payHistRepo    payHistoryStore

	gwClient      gatewayClient
	gatewayAPIKey string
	notifyURL     string

	rewardsClient rewards.Client

	retry       backoff.RetryFunc
	retryPolicy retrypolicy.Retry

	paymentWindow time.Duration
	refundWindow  time.Duration

	jobs []srv.Job
}

// InitService creates a service using the passed datastore and clients
// configured from the context.
func InitService(ctx context.Context, datastore Datastore) (*Service, error) {
	sublogger := logging.Logger(ctx, "orders").With().Str("func", "InitService").Logger()

	paymentWindow, err := appctx.GetDurationFromContext(ctx, appctx.PaymentWindowCTXKey)
	if err != nil {
		paymentWindow = defaultPaymentWindow
	}

	refundWindow, err := appctx.GetDurationFromContext(ctx, appctx.RefundWindowCTXKey)
	if err != nil {
		refundWindow = defaultRefundWindow
	}

	srvURL, err := appctx.GetStringFromContext(ctx, appctx.WechatPayServerCTXKey)
	if err != nil {
		return nil, err
	}

	appID, err := appctx.GetStringFromContext(ctx, appctx.WechatPayAppIDCTXKey)
	if err != nil {
		return nil, err
	}

	merchantID, err := appctx.GetStringFromContext(ctx, appctx.WechatPayMerchantIDCTXKey)
	if err != nil {
		return nil, err
	}

	apiKey, err := appctx.GetStringFromContext(ctx, appctx.WechatPayAPIKeyCTXKey)
	if err != nil {
		return nil, err
	}

	notifyURL, err := appctx.GetStringFromContext(ctx, appctx.WechatPayNotifyURLCTXKey)
	if err != nil {
		return nil, err
	}

	gwClient, err := wechatpay.NewInstrumented(srvURL, appID, merchantID, apiKey)
	if err != nil {
		return nil, err
	}

	rewardsURL, err := appctx.GetStringFromContext(ctx, appctx.RewardsServerCTXKey)
	if err != nil {
		return nil, err
	}

	rewardsToken, err := appctx.GetStringFromContext(ctx, appctx.RewardsAccessTokenCTXKey)
	if err != nil {
		rewardsToken = ""
	}

	rewardsClient, err := rewards.New(rewardsURL, rewardsToken)
	if err != nil {
		sublogger.Error().Err(err).Msg("failed to initialize rewards client")
		return nil, err
	}

	service := &Service{
		Datastore: datastore,

		orderRepo:      repository.NewOrder(),
		orderItemRepo:  repository.NewOrderItem(),
		txnRepo:        repository.NewTransaction(),
		refundRepo:     repository.NewRefund(),
		settlementRepo: repository.NewSettlement(),
		anomalyRepo:    repository.NewAnomaly(),
		payHistRepo:    repository.NewOrderPayHistory(),

		gwClient:      gwClient,
		gatewayAPIKey: apiKey,
		notifyURL:     notifyURL,

		rewardsClient: rewardsClient,

		retry:       backoff.Retry,
		retryPolicy: retrypolicy.DefaultRetry,

		paymentWindow: paymentWindow,
		refundWindow:  refundWindow,
	}

	service.jobs = []srv.Job{
		{
			Func:    service.RunNextExpirationJob,
			Cadence: 30 * time.Second,
			Workers: 1,
		},
		{
			Func:    service.RunNextSettlementJob,
			Cadence: 5 * time.Second,
			Workers: 2,
		},
	}

	return service, nil
}

// Jobs implements the srv.JobService interface.
func (s *Service) Jobs() []srv.Job {
	return s.jobs
}

// CreateOrder creates an order from the given request and issues the gateway
// payment intent for it.
func (s *Service) CreateOrder(ctx context.Context, req *model.CreateOrderRequest, clientIP string) (*model.CreateOrderResponse, error) {
	items, err := buildOrderItems(req.Items)
	if err != nil {
		return nil, err
	}

	ownerID, err := uuid.FromString(req.OwnerID)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(s.paymentWindow)

	orderNew := &model.OrderNew{
		OrderNumber: model.NewOrderNumber(),
		OwnerID:     ownerID,
		Currency:    req.Currency,
		Status:      model.OrderStatusCreated,
		TotalPrice:  model.OrderItemList(items).TotalCost(),
	}

	var order *model.Order

	if err := s.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		result, err := s.orderRepo.Create(ctx, tx, orderNew)
		if err != nil {
			return err
		}

		model.OrderItemList(items).SetOrderID(result.ID)

		inserted, err := s.orderItemRepo.InsertMany(ctx, tx, items...)
		if err != nil {
			return err
		}

		result.Items = inserted
		order = result

		return nil
	}); err != nil {
		return nil, err
	}

	params, err := s.issuePaymentIntent(ctx, order, deadline, clientIP)
	if err != nil {
		// The order is kept in created status so payment can be retried.
		logging.FromContext(ctx).Error().Err(err).
			Str("order_id", order.ID.String()).Msg("failed to issue payment intent")

		return nil, err
	}

	order.Status = model.OrderStatusAwaitingPayment
	order.PaymentDeadline = &deadline

	return &model.CreateOrderResponse{Order: order, PaymentParams: params}, nil
}

// GetOrder returns the order with its items.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	dbi := s.Datastore.RawDB()

	order, err := s.orderRepo.Get(ctx, dbi, orderID)
	if err != nil {
		return nil, err
	}

	items, err := s.orderItemRepo.FindByOrderID(ctx, dbi, orderID)
	if err != nil {
		return nil, err
	}

	order.Items = items

	return order, nil
}

// GetTransactions returns the payment transactions recorded for the order.
func (s *Service) GetTransactions(ctx context.Context, orderID uuid.UUID) ([]model.PaymentTransaction, error) {
	dbi := s.Datastore.RawDB()

	if _, err := s.orderRepo.Get(ctx, dbi, orderID); err != nil {
		return nil, err
	}

	return s.txnRepo.FindByOrderID(ctx, dbi, orderID)
}

// GetTransactionsPaged returns one page of the payment transactions recorded
// for the order, with the total count.
func (s *Service) GetTransactionsPaged(ctx context.Context, orderID uuid.UUID, pagination *inputs.Pagination) ([]model.PaymentTransaction, int, error) {
	dbi := s.Datastore.RawDB()

	if _, err := s.orderRepo.Get(ctx, dbi, orderID); err != nil {
		return nil, 0, err
	}

	return s.txnRepo.FindPagedByOrderID(ctx, dbi, orderID, pagination)
}

// CancelOrder cancels the order on behalf of the user.
func (s *Service) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) error {
	return s.withRetriableTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		order, err := s.orderRepo.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !order.CanTransitionTo(model.OrderStatusCanceled) {
			return model.ErrInvalidTransition
		}

		return s.orderRepo.MarkCanceled(ctx, tx, order.ID, order.Status, reason)
	})
}

// RetryPayment re-issues the gateway payment intent for an order that has not
// been paid yet, extending the payment deadline.
func (s *Service) RetryPayment(ctx context.Context, orderID uuid.UUID, clientIP string) (*model.PaymentParams, error) {
	order, err := s.orderRepo.Get(ctx, s.Datastore.RawDB(), orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != model.OrderStatusCreated && !order.IsAwaitingPayment() {
		return nil, model.ErrOrderNotAwaitingPayment
	}

	return s.issuePaymentIntent(ctx, order, time.Now().Add(s.paymentWindow), clientIP)
}

// issuePaymentIntent submits the order to the gateway and moves it to
// awaiting_payment with the given deadline.
func (s *Service) issuePaymentIntent(ctx context.Context, order *model.Order, deadline time.Time, clientIP string) (*model.PaymentParams, error) {
	resp, err := s.gwClient.UnifiedOrder(ctx, &wechatpay.UnifiedOrderRequest{
		Body:           "order " + order.OrderNumber,
		OutTradeNo:     order.OrderNumber,
		TotalFee:       wechatpay.FeeFromAmount(order.TotalPrice),
		SpbillCreateIP: clientIP,
		NotifyURL:      s.notifyURL,
		TradeType:      gatewayTradeType,
	})
	if err != nil {
		return nil, err
	}

	if resp.ReturnCode != wechatpay.CodeSuccess || resp.ResultCode != wechatpay.CodeSuccess {
		return nil, clients.NewHTTPError(
			model.ErrSomethingWentWrong,
			"/pay/unifiedorder",
			resp.ErrCodeDes,
			http.StatusBadGateway,
			nil,
		)
	}

	if err := s.withRetriableTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return s.orderRepo.SetAwaitingPayment(ctx, tx, order.ID, deadline)
	}); err != nil {
		return nil, err
	}

	return &model.PaymentParams{PrepayID: resp.PrepayID, CodeURL: resp.CodeURL}, nil
}

// RequestRefund records a refund request for a paid order and submits it to
// the gateway.
func (s *Service) RequestRefund(ctx context.Context, orderID uuid.UUID, req *model.CreateRefundRequest) (*model.RefundRequest, error) {
	var (
		refund *model.RefundRequest
		order  *model.Order
	)

	if err := s.withRetriableTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		result, err := s.orderRepo.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !result.CanTransitionTo(model.OrderStatusRefundRequested) {
			return model.ErrInvalidTransition
		}

		if !result.WithinRefundWindow(s.refundWindow, time.Now()) {
			return model.ErrRefundWindowClosed
		}

		paidTxn, err := s.txnRepo.GetSucceededByOrderID(ctx, tx, result.ID)
		if err != nil {
			return err
		}

		amount := req.Amount
		if amount.IsZero() {
			amount = paidTxn.Amount
		}

		refunded, err := s.refundRepo.SumActiveByOrderID(ctx, tx, result.ID)
		if err != nil {
			return err
		}

		if refunded.Add(amount).GreaterThan(paidTxn.Amount) {
			return model.ErrRefundAmountExceedsPaid
		}

		created, err := s.refundRepo.Create(ctx, tx, result.ID, model.NewRefundNumber(), amount, req.Reason)
		if err != nil {
			return err
		}

		if err := s.orderRepo.UpdateStatus(ctx, tx, result.ID, result.Status, model.OrderStatusRefundRequested); err != nil {
			return err
		}

		refund = created
		order = result

		return nil
	}); err != nil {
		return nil, err
	}

	resp, err := s.gwClient.Refund(ctx, &wechatpay.RefundRequest{
		OutTradeNo:  order.OrderNumber,
		OutRefundNo: refund.RefundNumber,
		TotalFee:    wechatpay.FeeFromAmount(order.TotalPrice),
		RefundFee:   wechatpay.FeeFromAmount(refund.Amount),
		RefundDesc:  refund.Reason,
	})
	if err != nil {
		// The request stays recorded, the gateway submission can be redone
		// by an operator.
		logging.FromContext(ctx).Error().Err(err).
			Str("refund_number", refund.RefundNumber).Msg("failed to submit refund to gateway")

		return refund, nil
	}

	if resp.ReturnCode != wechatpay.CodeSuccess || resp.ResultCode != wechatpay.CodeSuccess {
		logging.FromContext(ctx).Error().Str("err_code_des", resp.ErrCodeDes).
			Str("refund_number", refund.RefundNumber).Msg("gateway rejected refund")

		return refund, nil
	}

	return refund, nil
}

// ReconcileGatewayCallback applies a payment callback delivery to the order it
// references.
//
// Deliveries are idempotent by gateway transaction id. A nil return means the
// callback was consumed and the gateway should receive a success ack, whether
// or not the order changed.
func (s *Service) ReconcileGatewayCallback(ctx context.Context, n *wechatpay.Notification) error {
	if err := n.Verify(s.gatewayAPIKey); err != nil {
		return model.ErrSignatureVerificationFailed
	}

	outTradeNo := n.OutTradeNo()
	if outTradeNo == "" {
		return wechatpay.ErrMissingOutTradeNo
	}

	txnID := n.TransactionID()
	if txnID == "" {
		return wechatpay.ErrMissingTransactionID
	}

	amount, err := n.TotalAmount()
	if err != nil {
		return err
	}

	return s.withRetriableTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		payload := datastore.Metadata{}
		for k, v := range n.Params {
			payload[k] = v
		}

		order, err := s.orderRepo.GetByOrderNumber(ctx, tx, outTradeNo)
		if errors.Is(err, model.ErrOrderNotFound) {
			// The gateway charged against an order number we never issued.
			// Record it for an operator and ack so delivery stops.
			return s.anomalyRepo.Insert(ctx, tx, nil, txnID, amount, model.AnomalyReasonUnknownOrder, payload)
		} else if err != nil {
			return err
		}

		if _, err := s.txnRepo.GetByGatewayTxnID(ctx, tx, txnID); err == nil {
			// Duplicate delivery, already reconciled.
			return nil
		} else if !errors.Is(err, model.ErrTransactionNotFound) {
			return err
		}

		if n.ResultCode() != wechatpay.CodeSuccess {
			// A failed payment attempt keeps the order payable.
			_, err := s.txnRepo.Insert(ctx, tx, &model.TransactionNew{
				OrderID:      order.ID,
				GatewayTxnID: txnID,
				Amount:       amount,
				Status:       model.TransactionStatusFailed,
				Kind:         model.TransactionKindPayment,
				RawPayload:   payload,
			})

			return err
		}

		if !amount.Equal(order.TotalPrice) {
			if _, err := s.txnRepo.Insert(ctx, tx, &model.TransactionNew{
				OrderID:      order.ID,
				GatewayTxnID: txnID,
				Amount:       amount,
				Status:       model.TransactionStatusFailed,
				Kind:         model.TransactionKindPayment,
				RawPayload:   payload,
			}); err != nil {
				return err
			}

			return s.anomalyRepo.Insert(ctx, tx, &order.ID, txnID, amount, model.AnomalyReasonAmountMismatch, payload)
		}

		if !order.IsAwaitingPayment() {
			// Success callback for an order that can no longer be paid,
			// most commonly a late delivery after expiration. The money
			// moved, so record it for an operator instead of paying.
			if _, err := s.txnRepo.Insert(ctx, tx, &model.TransactionNew{
				OrderID:      order.ID,
				GatewayTxnID: txnID,
				Amount:       amount,
				Status:       model.TransactionStatusFailed,
				Kind:         model.TransactionKindPayment,
				RawPayload:   payload,
			}); err != nil {
				return err
			}

			return s.anomalyRepo.Insert(ctx, tx, &order.ID, txnID, amount, model.AnomalyReasonLateSuccess, payload)
		}

		paidAt, err := n.TimeEnd()
		if err != nil {
			paidAt = time.Now()
		}

		if _, err := s.txnRepo.Insert(ctx, tx, &model.TransactionNew{
			OrderID:      order.ID,
			GatewayTxnID: txnID,
			Amount:       amount,
			Status:       model.TransactionStatusSucceeded,
			Kind:         model.TransactionKindPayment,
			RawPayload:   payload,
		}); err != nil {
			if errors.Is(err, model.ErrDuplicateGatewayTransactionID) {
				return nil
			}

			return err
		}

		if err := s.orderRepo.SetPaid(ctx, tx, order.ID, paidAt); err != nil {
			return err
		}

		if err := s.payHistRepo.Insert(ctx, tx, order.ID, paidAt); err != nil {
			return err
		}

		// Settlement side effects run through the job queue, gated by the
		// paid transition above so they happen exactly once per order.
		return s.settlementRepo.Insert(ctx, tx, order.ID, order.OwnerID, order.TotalPrice, model.SettlementKindCredit)
	})
}

// ReconcileRefundCallback applies a refund callback delivery to the refund
// request it references.
func (s *Service) ReconcileRefundCallback(ctx context.Context, n *wechatpay.Notification) error {
	if err := n.Verify(s.gatewayAPIKey); err != nil {
		return model.ErrSignatureVerificationFailed
	}

	outRefundNo := n.OutRefundNo()
	if outRefundNo == "" {
		return wechatpay.ErrMissingOutRefundNo
	}

	return s.withRetriableTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		refund, err := s.refundRepo.GetByRefundNumber(ctx, tx, outRefundNo)
		if err != nil {
			return err
		}

		if refund.Status == model.RefundStatusCompleted || refund.Status == model.RefundStatusRejected {
			// Duplicate delivery, already reconciled.
			return nil
		}

		order, err := s.orderRepo.GetForUpdate(ctx, tx, refund.OrderID)
		if err != nil {
			return err
		}

		if n.ResultCode() != wechatpay.CodeSuccess {
			if err := s.refundRepo.UpdateStatus(ctx, tx, refund.ID, refund.Status, model.RefundStatusRejected); err != nil {
				return err
			}

			// The order goes back to paid so a new refund can be requested.
			return s.orderRepo.UpdateStatus(ctx, tx, order.ID, model.OrderStatusRefundRequested, model.OrderStatusPaid)
		}

		if err := s.refundRepo.MarkCompleted(ctx, tx, refund.ID, n.RefundID()); err != nil {
			return err
		}

		if err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, model.OrderStatusRefundRequested, model.OrderStatusRefunded); err != nil {
			return err
		}

		return s.settlementRepo.Insert(ctx, tx, order.ID, order.OwnerID, refund.Amount, model.SettlementKindRevoke)
	})
}

// RunNextExpirationJob expires one order whose payment deadline passed.
//
// Returns true when an order was attempted.
func (s *Service) RunNextExpirationJob(ctx context.Context) (bool, error) {
	attempted := false

	err := s.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		orderID, err := s.orderRepo.NextExpiredID(ctx, tx, time.Now())
		if err != nil {
			if errors.Is(err, model.ErrOrderNotFound) {
				return nil
			}

			return err
		}

		attempted = true

		logging.FromContext(ctx).Info().
			Str("order_id", orderID.String()).Msg("expiring order")

		return s.orderRepo.UpdateStatus(ctx, tx, orderID, model.OrderStatusAwaitingPayment, model.OrderStatusExpired)
	})

	return attempted, err
}

// RunNextSettlementJob settles one pending settlement job against the rewards
// service.
//
// Returns true when a job was attempted.
func (s *Service) RunNextSettlementJob(ctx context.Context) (bool, error) {
	attempted := false

	err := s.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		job, err := s.settlementRepo.ClaimNext(ctx, tx)
		if err != nil {
			if errors.Is(err, model.ErrSettlementJobNotFound) {
				return nil
			}

			return err
		}

		attempted = true

		if err := s.settle(ctx, job); err != nil {
			logging.FromContext(ctx).Error().Err(err).
				Str("order_id", job.OrderID.String()).
				Str("kind", job.Kind).Msg("settlement attempt failed")

			return s.settlementRepo.RecordFailure(ctx, tx, job.ID, err.Error())
		}

		return s.settlementRepo.MarkDone(ctx, tx, job.ID)
	})

	return attempted, err
}

func (s *Service) settle(ctx context.Context, job *model.SettlementJob) error {
	switch job.Kind {
	case model.SettlementKindRevoke:
		_, err := s.retry(ctx, func() (interface{}, error) {
			return s.rewardsClient.RevokePoints(ctx, &rewards.RevokePointsRequest{
				OwnerID:   job.OwnerID,
				OrderID:   job.OrderID,
				Amount:    job.Amount,
				Reference: job.ID.String(),
			})
		}, s.retryPolicy, canRetryRewards)

		return err
	default:
		_, err := s.retry(ctx, func() (interface{}, error) {
			return s.rewardsClient.CreditPoints(ctx, &rewards.CreditPointsRequest{
				OwnerID:   job.OwnerID,
				OrderID:   job.OrderID,
				Amount:    job.Amount,
				Reference: job.ID.String(),
			})
		}, s.retryPolicy, canRetryRewards)

		return err
	}
}

func (s *Service) withTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	tx, err := s.Datastore.BeginTx()
	if err != nil {
		return err
	}
	defer s.Datastore.RollbackTx(tx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	return tx.Commit()
}

// withRetriableTx runs fn in a transaction, replaying it on serialization and
// deadlock failures.
func (s *Service) withRetriableTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	_, err := s.retry(ctx, func() (interface{}, error) {
		return nil, s.withTx(ctx, fn)
	}, s.retryPolicy, canRetryConcurrency)

	if err != nil && canRetryConcurrency(err) {
		return model.ErrConcurrentModification
	}

	return err
}

func canRetryConcurrency(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

func canRetryRewards(err error) bool {
	state, uerr := clients.UnwrapHTTPState(err)
	if uerr != nil {
		return false
	}

	return state.Status >= http.StatusInternalServerError ||
		state.Status == http.StatusTooManyRequests
}

func buildOrderItems(reqs []model.OrderItemRequest) ([]model.OrderItem, error) {
	if len(reqs) == 0 {
		return nil, model.ErrInvalidOrderNoItems
	}

	result := make([]model.OrderItem, 0, len(reqs))

	for i := range reqs {
		if reqs[i].Quantity <= 0 {
			return nil, model.ErrInvalidOrderItemQuantity
		}

		if reqs[i].Price.IsNegative() {
			return nil, model.ErrInvalidOrderItemPrice
		}

		// The gateway charges in fen, so anything below the minor unit
		// could never reconcile against a success callback.
		if !reqs[i].Price.Equal(reqs[i].Price.Truncate(2)) {
			return nil, model.ErrInvalidOrderItemPricePrec
		}

		productID, err := uuid.FromString(reqs[i].ProductID)
		if err != nil {
			return nil, err
		}

		result = append(result, model.OrderItem{
			ProductID: productID,
			Quantity:  reqs[i].Quantity,
			Price:     reqs[i].Price,
			Subtotal:  reqs[i].Price.Mul(decimal.NewFromInt(int64(reqs[i].Quantity))),
			ProductSnapshot: datastore.Metadata{
				"name":      reqs[i].ProductName,
				"unitPrice": reqs[i].Price.String(),
			},
		})
	}

	return result, nil
}
