package orders

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	uuid "github.com/satori/go.uuid"
	"github.com/shopspring/decimal"
	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"

	"github.com/jmoiron/sqlx"

	"github.com/openmall/mall-go/libs/clients/wechatpay"
	"github.com/openmall/mall-go/services/orders/model"
	"github.com/openmall/mall-go/services/orders/storage/repository"
)

func signedEnvelope(params map[string]string) []byte {
	params["sign"] = wechatpay.SignParams(params, testAPIKey)

	return wechatpay.EncodeParams(params)
}

func TestHandlePaymentCallback(t *testing.T) {
	t.Run("acks_success", func(t *testing.T) {
		svc, mock := newTestService(t)

		svc.orderRepo = &repository.MockOrder{
			FnGetByOrderNumber: func(ctx context.Context, dbi sqlx.QueryerContext, num string) (*model.Order, error) {
				return &model.Order{
					ID:          uuid.NewV4(),
					OrderNumber: num,
					TotalPrice:  decimal.RequireFromString("8.88"),
					Status:      model.OrderStatusAwaitingPayment,
				}, nil
			},
		}

		mock.ExpectBegin()
		mock.ExpectCommit()

		body := signedEnvelope(map[string]string{
			"return_code":    "SUCCESS",
			"result_code":    "SUCCESS",
			"out_trade_no":   "mo_x",
			"transaction_id": "4200001",
			"total_fee":      "888",
			"time_end":       "20240301120000",
		})

		req := httptest.NewRequest(http.MethodPost, "/wechatpay", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		HandlePaymentCallback(svc).ServeHTTP(rec, req)

		must.Equal(t, http.StatusOK, rec.Code)
		should.Equal(t, true, strings.Contains(rec.Body.String(), "SUCCESS"))
	})

	t.Run("acks_fail_on_bad_signature", func(t *testing.T) {
		svc, _ := newTestService(t)

		body := wechatpay.EncodeParams(map[string]string{
			"return_code":    "SUCCESS",
			"result_code":    "SUCCESS",
			"out_trade_no":   "mo_x",
			"transaction_id": "4200001",
			"total_fee":      "888",
			"sign":           "BOGUS",
		})

		req := httptest.NewRequest(http.MethodPost, "/wechatpay", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		HandlePaymentCallback(svc).ServeHTTP(rec, req)

		must.Equal(t, http.StatusBadRequest, rec.Code)
		should.Equal(t, true, strings.Contains(rec.Body.String(), "FAIL"))
		should.Equal(t, true, strings.Contains(rec.Body.String(), "invalid signature"))
	})

	t.Run("acks_fail_on_malformed_body", func(t *testing.T) {
		svc, _ := newTestService(t)

		req := httptest.NewRequest(http.MethodPost, "/wechatpay", strings.NewReader("not xml at all"))
		rec := httptest.NewRecorder()

		HandlePaymentCallback(svc).ServeHTTP(rec, req)

		must.Equal(t, http.StatusBadRequest, rec.Code)
		should.Equal(t, true, strings.Contains(rec.Body.String(), "FAIL"))
	})
}

func TestHandleRefundCallback(t *testing.T) {
	svc, mock := newTestService(t)

	svc.refundRepo = &repository.MockRefund{
		FnGetByRefundNumber: func(ctx context.Context, dbi sqlx.QueryerContext, num string) (*model.RefundRequest, error) {
			return &model.RefundRequest{
				ID:           uuid.NewV4(),
				OrderID:      uuid.NewV4(),
				RefundNumber: num,
				Amount:       decimal.RequireFromString("8.88"),
				Status:       model.RefundStatusCompleted,
			}, nil
		},
	}

	mock.ExpectBegin()
	mock.ExpectCommit()

	body := signedEnvelope(map[string]string{
		"return_code":   "SUCCESS",
		"result_code":   "SUCCESS",
		"out_refund_no": "rf_x",
		"refund_id":     "50000001",
	})

	req := httptest.NewRequest(http.MethodPost, "/wechatpay/refund", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	HandleRefundCallback(svc).ServeHTTP(rec, req)

	must.Equal(t, http.StatusOK, rec.Code)
	should.Equal(t, true, strings.Contains(rec.Body.String(), "SUCCESS"))
}

func TestGetOrder_InvalidID(t *testing.T) {
	svc, _ := newTestService(t)

	r := Router(svc)

	req := httptest.NewRequest(http.MethodGet, "/not-a-uuid", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	should.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrder_NoItemsBody(t *testing.T) {
	svc, _ := newTestService(t)

	r := Router(svc)

	payload := `{"ownerId":"` + uuid.NewV4().String() + `","currency":"CNY","items":[]}`

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	should.Equal(t, http.StatusBadRequest, rec.Code)
}
