// Package model provides data that the orders service operates on.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"

	"github.com/openmall/mall-go/libs/datastore"
)

const (
	ErrSomethingWentWrong            Error = "something went wrong"
	ErrOrderNotFound                 Error = "model: order not found"
	ErrOrderItemNotFound             Error = "model: order item not found"
	ErrTransactionNotFound           Error = "model: payment transaction not found"
	ErrRefundNotFound                Error = "model: refund request not found"
	ErrSettlementJobNotFound         Error = "model: settlement job not found"
	ErrNoRowsChangedOrder            Error = "model: no rows changed in orders"
	ErrNoRowsChangedTransaction      Error = "model: no rows changed in payment_transactions"
	ErrNoRowsChangedRefund           Error = "model: no rows changed in refund_requests"
	ErrNoRowsChangedSettlement       Error = "model: no rows changed in settlement_jobs"
	ErrInvalidTransition             Error = "model: invalid order status transition"
	ErrInvalidOrderNoItems           Error = "model: invalid order: no items"
	ErrInvalidOrderItemQuantity      Error = "model: invalid order item: quantity must be positive"
	ErrInvalidOrderItemPrice         Error = "model: invalid order item: price must not be negative"
	ErrInvalidOrderItemPricePrec     Error = "model: invalid order item: price exceeds currency minor unit precision"
	ErrAmountMismatch                Error = "model: callback amount does not match order total"
	ErrSignatureVerificationFailed   Error = "model: callback signature verification failed"
	ErrRefundAmountExceedsPaid       Error = "model: refund amount exceeds paid amount"
	ErrRefundWindowClosed            Error = "model: refund window has closed"
	ErrOrderNotAwaitingPayment       Error = "model: order is not awaiting payment"
	ErrConcurrentModification        Error = "model: order was modified concurrently"
	ErrDuplicateGatewayTransactionID Error = "model: gateway transaction id already recorded"
)

const (
	// OrderStatus* represent order statuses at runtime and in db.
	OrderStatusCreated         = "created"
	OrderStatusAwaitingPayment = "awaiting_payment"
	OrderStatusPaid            = "paid"
	OrderStatusCanceled        = "canceled"
	OrderStatusExpired         = "expired"
	OrderStatusRefundRequested = "refund_requested"
	OrderStatusRefunded        = "refunded"

	TransactionStatusPending   = "pending"
	TransactionStatusSucceeded = "succeeded"
	TransactionStatusFailed    = "failed"

	TransactionKindPayment = "payment"
	TransactionKindRefund  = "refund"

	RefundStatusRequested = "requested"
	RefundStatusApproved  = "approved"
	RefundStatusCompleted = "completed"
	RefundStatusRejected  = "rejected"

	SettlementStatusPending = "pending"
	SettlementStatusDone    = "done"

	SettlementKindCredit = "credit"
	SettlementKindRevoke = "revoke"

	AnomalyReasonLateSuccess    = "late_success_callback"
	AnomalyReasonAmountMismatch = "amount_mismatch"
	AnomalyReasonUnknownOrder   = "unknown_order"
)

// validTransitions is the sole authority on which status moves are legal.
//
// Statuses absent from the map are terminal.
var validTransitions = map[string][]string{
	OrderStatusCreated:         {OrderStatusAwaitingPayment, OrderStatusCanceled},
	OrderStatusAwaitingPayment: {OrderStatusPaid, OrderStatusCanceled, OrderStatusExpired},
	OrderStatusPaid:            {OrderStatusRefundRequested},
	OrderStatusRefundRequested: {OrderStatusRefunded, OrderStatusPaid},
}

// ValidTransition reports whether an order may move from cur to next.
func ValidTransition(cur, next string) bool {
	return Slice[string](validTransitions[cur]).Contains(next)
}

// TerminalStatus reports whether status admits no further transitions.
func TerminalStatus(status string) bool {
	return len(validTransitions[status]) == 0
}

type Error string

func (e Error) Error() string {
	return string(e)
}

// Order represents an individual order.
type Order struct {
	ID              uuid.UUID            `json:"id" db:"id"`
	OrderNumber     string               `json:"orderNumber" db:"order_number"`
	OwnerID         uuid.UUID            `json:"ownerId" db:"owner_id"`
	CreatedAt       time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time            `json:"updatedAt" db:"updated_at"`
	Currency        string               `json:"currency" db:"currency"`
	TotalPrice      decimal.Decimal      `json:"totalPrice" db:"total_price"`
	Status          string               `json:"status" db:"status"`
	PaymentDeadline *time.Time           `json:"paymentDeadline" db:"payment_deadline"`
	PaidAt          *time.Time           `json:"paidAt" db:"paid_at"`
	CancelReason    datastore.NullString `json:"cancelReason" db:"cancel_reason"`
	Metadata        datastore.Metadata   `json:"metadata" db:"metadata"`
	Items           []OrderItem          `json:"items"`
}

// IsPaid returns true if the order has been paid.
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}

// IsAwaitingPayment returns true if the order can still accept a payment.
func (o *Order) IsAwaitingPayment() bool {
	return o.Status == OrderStatusAwaitingPayment
}

// CanTransitionTo reports whether the order may move to next from its
// current status.
func (o *Order) CanTransitionTo(next string) bool {
	return ValidTransition(o.Status, next)
}

// DeadlinePassed reports whether the payment deadline elapsed by now.
//
// Orders without a deadline never expire.
func (o *Order) DeadlinePassed(now time.Time) bool {
	if o.PaymentDeadline == nil {
		return false
	}

	return o.PaymentDeadline.Before(now)
}

// WithinRefundWindow reports whether a refund may still be requested at now.
func (o *Order) WithinRefundWindow(window time.Duration, now time.Time) bool {
	if o.PaidAt == nil {
		return false
	}

	return now.Before(o.PaidAt.Add(window))
}

// OrderItem represents a particular order item.
type OrderItem struct {
	ID              uuid.UUID          `json:"id" db:"id"`
	OrderID         uuid.UUID          `json:"orderId" db:"order_id"`
	ProductID       uuid.UUID          `json:"productId" db:"product_id"`
	CreatedAt       *time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt       *time.Time         `json:"updatedAt" db:"updated_at"`
	Quantity        int                `json:"quantity" db:"quantity"`
	Price           decimal.Decimal    `json:"price" db:"price"`
	Subtotal        decimal.Decimal    `json:"subtotal" db:"subtotal"`
	ProductSnapshot datastore.Metadata `json:"productSnapshot" db:"product_snapshot"`
}

// OrderNew represents a request to create an order in the database.
type OrderNew struct {
	OrderNumber     string          `db:"order_number"`
	OwnerID         uuid.UUID       `db:"owner_id"`
	Currency        string          `db:"currency"`
	Status          string          `db:"status"`
	TotalPrice      decimal.Decimal `db:"total_price"`
	PaymentDeadline *time.Time      `db:"payment_deadline"`
}

type OrderItemList []OrderItem

func (l OrderItemList) SetOrderID(orderID uuid.UUID) {
	for i := range l {
		l[i].OrderID = orderID
	}
}

func (l OrderItemList) TotalCost() decimal.Decimal {
	var result decimal.Decimal

	for i := range l {
		result = result.Add(l[i].Subtotal)
	}

	return result
}

// PaymentTransaction represents a single gateway callback outcome.
//
// The gateway transaction id is the natural key used for idempotent
// callback processing.
type PaymentTransaction struct {
	ID           uuid.UUID          `json:"id" db:"id"`
	OrderID      uuid.UUID          `json:"orderId" db:"order_id"`
	GatewayTxnID string             `json:"gatewayTransactionId" db:"gateway_transaction_id"`
	Amount       decimal.Decimal    `json:"amount" db:"amount"`
	Status       string             `json:"status" db:"status"`
	Kind         string             `json:"kind" db:"kind"`
	RawPayload   datastore.Metadata `json:"-" db:"raw_payload"`
	CreatedAt    time.Time          `json:"createdAt" db:"created_at"`
}

// TransactionNew represents a request to record a payment transaction.
type TransactionNew struct {
	OrderID      uuid.UUID          `db:"order_id"`
	GatewayTxnID string             `db:"gateway_transaction_id"`
	Amount       decimal.Decimal    `db:"amount"`
	Status       string             `db:"status"`
	Kind         string             `db:"kind"`
	RawPayload   datastore.Metadata `db:"raw_payload"`
}

// RefundRequest represents a request to return funds for a paid order.
type RefundRequest struct {
	ID              uuid.UUID            `json:"id" db:"id"`
	OrderID         uuid.UUID            `json:"orderId" db:"order_id"`
	RefundNumber    string               `json:"refundNumber" db:"refund_number"`
	Amount          decimal.Decimal      `json:"amount" db:"amount"`
	Reason          string               `json:"reason" db:"reason"`
	Status          string               `json:"status" db:"status"`
	GatewayRefundID datastore.NullString `json:"gatewayRefundId" db:"gateway_refund_id"`
	CreatedAt       time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time            `json:"updatedAt" db:"updated_at"`
}

// SettlementJob carries post-payment side effects that retry independently
// of the order status.
type SettlementJob struct {
	ID        uuid.UUID            `json:"id" db:"id"`
	OrderID   uuid.UUID            `json:"orderId" db:"order_id"`
	OwnerID   uuid.UUID            `json:"ownerId" db:"owner_id"`
	Amount    decimal.Decimal      `json:"amount" db:"amount"`
	Kind      string               `json:"kind" db:"kind"`
	Status    string               `json:"status" db:"status"`
	Attempts  int                  `json:"attempts" db:"attempts"`
	LastError datastore.NullString `json:"lastError" db:"last_error"`
	CreatedAt time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time            `json:"updatedAt" db:"updated_at"`
}

// PaymentAnomaly records a callback the reconciler refused to act on so an
// operator can follow up.
type PaymentAnomaly struct {
	ID           uuid.UUID          `json:"id" db:"id"`
	OrderID      *uuid.UUID         `json:"orderId" db:"order_id"`
	GatewayTxnID string             `json:"gatewayTransactionId" db:"gateway_transaction_id"`
	Amount       decimal.Decimal    `json:"amount" db:"amount"`
	Reason       string             `json:"reason" db:"reason"`
	RawPayload   datastore.Metadata `json:"-" db:"raw_payload"`
	CreatedAt    time.Time          `json:"createdAt" db:"created_at"`
}

// CreateOrderRequest includes information needed to create an order.
type CreateOrderRequest struct {
	OwnerID  string             `json:"ownerId" valid:"uuidv4"`
	Currency string             `json:"currency" valid:"in(CNY|USD)"`
	Items    []OrderItemRequest `json:"items" valid:"-"`
}

// OrderItemRequest represents an item in an order request.
type OrderItemRequest struct {
	ProductID   string          `json:"productId" valid:"uuidv4"`
	ProductName string          `json:"productName" valid:"-"`
	Quantity    int             `json:"quantity" valid:"-"`
	Price       decimal.Decimal `json:"price" valid:"-"`
}

// CancelOrderRequest carries the user supplied cancellation reason.
type CancelOrderRequest struct {
	Reason string `json:"reason" valid:"-"`
}

// CreateRefundRequest includes information needed to request a refund.
type CreateRefundRequest struct {
	Amount decimal.Decimal `json:"amount" valid:"-"`
	Reason string          `json:"reason" valid:"-"`
}

// CreateOrderResponse is the order plus everything a client needs to start
// the gateway payment.
type CreateOrderResponse struct {
	Order         *Order         `json:"order"`
	PaymentParams *PaymentParams `json:"paymentParams"`
}

// PaymentParams are handed to the buyer's client to drive the gateway flow.
type PaymentParams struct {
	PrepayID string `json:"prepayId,omitempty"`
	CodeURL  string `json:"codeUrl,omitempty"`
}

type Slice[T comparable] []T

func (s Slice[T]) Equal(target []T) bool {
	if len(s) != len(target) {
		return false
	}

	for i, v := range s {
		if v != target[i] {
			return false
		}
	}

	return true
}

func (s Slice[T]) Contains(target T) bool {
	for _, v := range s {
		if v == target {
			return true
		}
	}

	return false
}

// NewOrderNumber returns an opaque external order identifier.
func NewOrderNumber() string {
	return "mo_" + randomHex(12)
}

// NewRefundNumber returns an opaque external refund identifier.
func NewRefundNumber() string {
	return "rf_" + randomHex(12)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}

	return hex.EncodeToString(buf)
}
