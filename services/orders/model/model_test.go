package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	should "github.com/stretchr/testify/assert"

	"github.com/openmall/mall-go/services/orders/model"
)

func TestValidTransition(t *testing.T) {
	type tcGiven struct {
		cur  string
		next string
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   bool
	}

	tests := []testCase{
		{
			name:  "created_to_awaiting_payment",
			given: tcGiven{cur: model.OrderStatusCreated, next: model.OrderStatusAwaitingPayment},
			exp:   true,
		},

		{
			name:  "created_to_canceled",
			given: tcGiven{cur: model.OrderStatusCreated, next: model.OrderStatusCanceled},
			exp:   true,
		},

		{
			name:  "created_to_paid",
			given: tcGiven{cur: model.OrderStatusCreated, next: model.OrderStatusPaid},
		},

		{
			name:  "awaiting_payment_to_paid",
			given: tcGiven{cur: model.OrderStatusAwaitingPayment, next: model.OrderStatusPaid},
			exp:   true,
		},

		{
			name:  "awaiting_payment_to_expired",
			given: tcGiven{cur: model.OrderStatusAwaitingPayment, next: model.OrderStatusExpired},
			exp:   true,
		},

		{
			name:  "awaiting_payment_to_refunded",
			given: tcGiven{cur: model.OrderStatusAwaitingPayment, next: model.OrderStatusRefunded},
		},

		{
			name:  "paid_to_refund_requested",
			given: tcGiven{cur: model.OrderStatusPaid, next: model.OrderStatusRefundRequested},
			exp:   true,
		},

		{
			name:  "refund_requested_to_refunded",
			given: tcGiven{cur: model.OrderStatusRefundRequested, next: model.OrderStatusRefunded},
			exp:   true,
		},

		{
			name:  "refund_requested_back_to_paid",
			given: tcGiven{cur: model.OrderStatusRefundRequested, next: model.OrderStatusPaid},
			exp:   true,
		},

		{
			name:  "expired_is_terminal",
			given: tcGiven{cur: model.OrderStatusExpired, next: model.OrderStatusPaid},
		},

		{
			name:  "canceled_is_terminal",
			given: tcGiven{cur: model.OrderStatusCanceled, next: model.OrderStatusAwaitingPayment},
		},

		{
			name:  "refunded_is_terminal",
			given: tcGiven{cur: model.OrderStatusRefunded, next: model.OrderStatusPaid},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			actual := model.ValidTransition(tc.given.cur, tc.given.next)
			should.Equal(t, tc.exp, actual)
		})
	}
}

func TestTerminalStatus(t *testing.T) {
	type testCase struct {
		name  string
		given string
		exp   bool
	}

	tests := []testCase{
		{name: "created", given: model.OrderStatusCreated},
		{name: "awaiting_payment", given: model.OrderStatusAwaitingPayment},
		{name: "paid", given: model.OrderStatusPaid},
		{name: "refund_requested", given: model.OrderStatusRefundRequested},
		{name: "canceled", given: model.OrderStatusCanceled, exp: true},
		{name: "expired", given: model.OrderStatusExpired, exp: true},
		{name: "refunded", given: model.OrderStatusRefunded, exp: true},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			actual := model.TerminalStatus(tc.given)
			should.Equal(t, tc.exp, actual)
		})
	}
}

func TestOrder_DeadlinePassed(t *testing.T) {
	type tcGiven struct {
		order *model.Order
		now   time.Time
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   bool
	}

	tests := []testCase{
		{
			name: "no_deadline",
			given: tcGiven{
				order: &model.Order{},
				now:   time.Now(),
			},
		},

		{
			name: "before_deadline",
			given: tcGiven{
				order: &model.Order{
					PaymentDeadline: ptrTo(time.Date(2024, time.March, 1, 12, 15, 0, 0, time.UTC)),
				},
				now: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
			},
		},

		{
			name: "after_deadline",
			given: tcGiven{
				order: &model.Order{
					PaymentDeadline: ptrTo(time.Date(2024, time.March, 1, 12, 15, 0, 0, time.UTC)),
				},
				now: time.Date(2024, time.March, 1, 12, 16, 0, 0, time.UTC),
			},
			exp: true,
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			actual := tc.given.order.DeadlinePassed(tc.given.now)
			should.Equal(t, tc.exp, actual)
		})
	}
}

func TestOrder_WithinRefundWindow(t *testing.T) {
	type tcGiven struct {
		order  *model.Order
		window time.Duration
		now    time.Time
	}

	type testCase struct {
		name  string
		given tcGiven
		exp   bool
	}

	tests := []testCase{
		{
			name: "never_paid",
			given: tcGiven{
				order:  &model.Order{},
				window: 7 * 24 * time.Hour,
				now:    time.Now(),
			},
		},

		{
			name: "within_window",
			given: tcGiven{
				order: &model.Order{
					PaidAt: ptrTo(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)),
				},
				window: 7 * 24 * time.Hour,
				now:    time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
			},
			exp: true,
		},

		{
			name: "window_closed",
			given: tcGiven{
				order: &model.Order{
					PaidAt: ptrTo(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)),
				},
				window: 7 * 24 * time.Hour,
				now:    time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			actual := tc.given.order.WithinRefundWindow(tc.given.window, tc.given.now)
			should.Equal(t, tc.exp, actual)
		})
	}
}

func TestOrderItemList_TotalCost(t *testing.T) {
	type testCase struct {
		name  string
		given model.OrderItemList
		exp   decimal.Decimal
	}

	tests := []testCase{
		{
			name: "empty",
			exp:  decimal.Zero,
		},

		{
			name: "single_item",
			given: model.OrderItemList{
				{Subtotal: decimal.RequireFromString("8.88")},
			},
			exp: decimal.RequireFromString("8.88"),
		},

		{
			name: "multiple_items",
			given: model.OrderItemList{
				{Subtotal: decimal.RequireFromString("8.88")},
				{Subtotal: decimal.RequireFromString("1.12")},
			},
			exp: decimal.RequireFromString("10"),
		},
	}

	for i := range tests {
		tc := tests[i]

		t.Run(tc.name, func(t *testing.T) {
			actual := tc.given.TotalCost()
			should.True(t, tc.exp.Equal(actual))
		})
	}
}

func TestNewOrderNumber(t *testing.T) {
	num := model.NewOrderNumber()

	should.True(t, strings.HasPrefix(num, "mo_"))
	should.Equal(t, 27, len(num))
	should.NotEqual(t, num, model.NewOrderNumber())
}

func TestNewRefundNumber(t *testing.T) {
	num := model.NewRefundNumber()

	should.True(t, strings.HasPrefix(num, "rf_"))
	should.Equal(t, 27, len(num))
}

func ptrTo[T any](v T) *T {
	return &v
}
