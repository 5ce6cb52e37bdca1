package orders

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi"
	"github.com/go-chi/cors"

	"github.com/openmall/mall-go/libs/clients/wechatpay"
	"github.com/openmall/mall-go/libs/handlers"
	"github.com/openmall/mall-go/libs/inputs"
	"github.com/openmall/mall-go/libs/logging"
	"github.com/openmall/mall-go/libs/middleware"
	"github.com/openmall/mall-go/libs/requestutils"
	"github.com/openmall/mall-go/libs/responses"
	"github.com/openmall/mall-go/services/orders/model"
)

// Router for order endpoints.
func Router(service *Service) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*.openmall.dev"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Method("POST", "/", middleware.InstrumentHandler("CreateOrder", CreateOrder(service)))
	r.Method("GET", "/{orderID}", middleware.InstrumentHandler("GetOrder", GetOrder(service)))
	r.Method("DELETE", "/{orderID}", middleware.InstrumentHandler("CancelOrder", CancelOrder(service)))
	r.Method("POST", "/{orderID}/retry-payment", middleware.InstrumentHandler("RetryPayment", RetryPayment(service)))
	r.Method("GET", "/{orderID}/transactions", middleware.InstrumentHandler("GetTransactions", GetTransactions(service)))
	r.Method("POST", "/{orderID}/refund", middleware.InstrumentHandler("RequestRefund", RequestRefund(service)))

	return r
}

// WebhookRouter for gateway callback endpoints.
func WebhookRouter(service *Service) chi.Router {
	r := chi.NewRouter()

	r.Method("POST", "/wechatpay", middleware.InstrumentHandler("HandlePaymentCallback", HandlePaymentCallback(service)))
	r.Method("POST", "/wechatpay/refund", middleware.InstrumentHandler("HandleRefundCallback", HandleRefundCallback(service)))

	return r
}

// CreateOrder is the handler for creating a new order.
func CreateOrder(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		ctx := r.Context()
		sublogger := logging.Logger(ctx, "orders").With().Str("func", "CreateOrder").Logger()

		var req model.CreateOrderRequest
		if err := requestutils.ReadJSON(ctx, r.Body, &req); err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}

		if _, err := govalidator.ValidateStruct(req); err != nil {
			return handlers.WrapValidationError(err)
		}

		if len(req.Items) == 0 {
			return handlers.ValidationError(
				"Error validating request body",
				map[string]interface{}{
					"items": "array must contain at least one item",
				},
			)
		}

		resp, err := service.CreateOrder(ctx, &req, clientIP(r))
		if err != nil {
			switch {
			case errors.Is(err, model.ErrInvalidOrderNoItems),
				errors.Is(err, model.ErrInvalidOrderItemQuantity),
				errors.Is(err, model.ErrInvalidOrderItemPrice):
				return handlers.ValidationError(err.Error(), nil)
			default:
				sublogger.Error().Err(err).Msg("error creating the order")
				return handlers.WrapError(err, "Error creating the order", http.StatusInternalServerError)
			}
		}

		return handlers.RenderContent(ctx, resp, w, http.StatusCreated)
	}
}

// GetOrder is the handler for getting an order.
func GetOrder(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		ctx := r.Context()

		orderID := new(inputs.ID)
		if err := inputs.DecodeAndValidateString(context.Background(), orderID, chi.URLParam(r, "orderID")); err != nil {
			return handlers.ValidationError(
				"Error validating request url parameter",
				map[string]interface{}{
					"orderID": err.Error(),
				},
			)
		}

		order, err := service.GetOrder(ctx, *orderID.UUID())
		if err != nil {
			if errors.Is(err, model.ErrOrderNotFound) {
				return handlers.WrapError(err, "Order not found", http.StatusNotFound)
			}

			return handlers.WrapError(err, "Error retrieving the order", http.StatusInternalServerError)
		}

		return handlers.RenderContent(ctx, order, w, http.StatusOK)
	}
}

// CancelOrder is the handler for cancelling an order.
func CancelOrder(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		ctx := r.Context()

		orderID := new(inputs.ID)
		if err := inputs.DecodeAndValidateString(context.Background(), orderID, chi.URLParam(r, "orderID")); err != nil {
			return handlers.ValidationError(
				"Error validating request url parameter",
				map[string]interface{}{
					"orderID": err.Error(),
				},
			)
		}

		var req model.CancelOrderRequest
		if err := requestutils.ReadJSON(ctx, r.Body, &req); err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}

		if err := service.CancelOrder(ctx, *orderID.UUID(), req.Reason); err != nil {
			return mapOrderError(err, "Error cancelling the order")
		}

		return handlers.RenderContent(ctx, nil, w, http.StatusOK)
	}
}

// RetryPayment is the handler for re-issuing the payment intent of an order.
func RetryPayment(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		ctx := r.Context()

		orderID := new(inputs.ID)
		if err := inputs.DecodeAndValidateString(context.Background(), orderID, chi.URLParam(r, "orderID")); err != nil {
			return handlers.ValidationError(
				"Error validating request url parameter",
				map[string]interface{}{
					"orderID": err.Error(),
				},
			)
		}

		params, err := service.RetryPayment(ctx, *orderID.UUID(), clientIP(r))
		if err != nil {
			if errors.Is(err, model.ErrOrderNotAwaitingPayment) {
				return handlers.WrapError(err, "Order can no longer be paid", http.StatusConflict)
			}

			return mapOrderError(err, "Error retrying payment")
		}

		return handlers.RenderContent(ctx, params, w, http.StatusOK)
	}
}

// GetTransactions is the handler for listing the payment transactions of an
// order.
//
// /{orderID}/transactions?page=1&items=50&order=createdAt.desc
func GetTransactions(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		orderID := new(inputs.ID)
		if err := inputs.DecodeAndValidateString(context.Background(), orderID, chi.URLParam(r, "orderID")); err != nil {
			return handlers.ValidationError(
				"Error validating request url parameter",
				map[string]interface{}{
					"orderID": err.Error(),
				},
			)
		}

		ctx, pagination, err := inputs.NewPagination(r.Context(), r.URL.String(), new(model.PaymentTransaction))
		if err != nil {
			return handlers.WrapValidationError(err)
		}

		txns, total, err := service.GetTransactionsPaged(ctx, *orderID.UUID(), pagination)
		if err != nil {
			return mapOrderError(err, "Error retrieving transactions")
		}

		response := &responses.PaginationResponse{
			Page:    pagination.Page,
			Items:   pagination.Items,
			MaxPage: total / pagination.Items,
			Ordered: pagination.RawOrder,
			Data:    txns,
		}

		if err := response.Render(ctx, w, http.StatusOK); err != nil {
			return handlers.WrapError(err, "error rendering response", http.StatusInternalServerError)
		}

		return nil
	}
}

// RequestRefund is the handler for requesting a refund of a paid order.
func RequestRefund(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		ctx := r.Context()

		orderID := new(inputs.ID)
		if err := inputs.DecodeAndValidateString(context.Background(), orderID, chi.URLParam(r, "orderID")); err != nil {
			return handlers.ValidationError(
				"Error validating request url parameter",
				map[string]interface{}{
					"orderID": err.Error(),
				},
			)
		}

		var req model.CreateRefundRequest
		if err := requestutils.ReadJSON(ctx, r.Body, &req); err != nil {
			return handlers.WrapError(err, "Error in request body", http.StatusBadRequest)
		}

		if req.Amount.IsNegative() {
			return handlers.ValidationError(
				"Error validating request body",
				map[string]interface{}{
					"amount": "must not be negative",
				},
			)
		}

		refund, err := service.RequestRefund(ctx, *orderID.UUID(), &req)
		if err != nil {
			switch {
			case errors.Is(err, model.ErrRefundWindowClosed):
				return handlers.WrapError(err, "Refund window has closed", http.StatusConflict)
			case errors.Is(err, model.ErrRefundAmountExceedsPaid):
				return handlers.WrapError(err, "Refund amount exceeds the paid amount", http.StatusConflict)
			default:
				return mapOrderError(err, "Error requesting the refund")
			}
		}

		return handlers.RenderContent(ctx, refund, w, http.StatusCreated)
	}
}

// HandlePaymentCallback is the handler for gateway payment callbacks.
//
// The gateway redelivers until it reads a success ack, so the handler only
// fails the ack when the callback could not be consumed.
func HandlePaymentCallback(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		ctx := r.Context()
		sublogger := logging.Logger(ctx, "orders").With().Str("func", "HandlePaymentCallback").Logger()

		body, err := requestutils.Read(ctx, r.Body)
		if err != nil {
			return ackFail(w, "failed to read body")
		}

		n, err := wechatpay.ParseNotification(body)
		if err != nil {
			sublogger.Error().Err(err).Msg("malformed payment callback")
			return ackFail(w, "malformed callback")
		}

		if err := service.ReconcileGatewayCallback(ctx, n); err != nil {
			if errors.Is(err, model.ErrSignatureVerificationFailed) {
				sublogger.Error().Err(err).Msg("payment callback signature verification failed")
				return ackFail(w, "invalid signature")
			}

			sublogger.Error().Err(err).Msg("failed to reconcile payment callback")

			return ackFail(w, "reconciliation failed")
		}

		return ackSuccess(w)
	}
}

// HandleRefundCallback is the handler for gateway refund callbacks.
func HandleRefundCallback(service *Service) handlers.AppHandler {
	return func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		ctx := r.Context()
		sublogger := logging.Logger(ctx, "orders").With().Str("func", "HandleRefundCallback").Logger()

		body, err := requestutils.Read(ctx, r.Body)
		if err != nil {
			return ackFail(w, "failed to read body")
		}

		n, err := wechatpay.ParseNotification(body)
		if err != nil {
			sublogger.Error().Err(err).Msg("malformed refund callback")
			return ackFail(w, "malformed callback")
		}

		if err := service.ReconcileRefundCallback(ctx, n); err != nil {
			if errors.Is(err, model.ErrSignatureVerificationFailed) {
				sublogger.Error().Err(err).Msg("refund callback signature verification failed")
				return ackFail(w, "invalid signature")
			}

			sublogger.Error().Err(err).Msg("failed to reconcile refund callback")

			return ackFail(w, "reconciliation failed")
		}

		return ackSuccess(w)
	}
}

func ackSuccess(w http.ResponseWriter) *handlers.AppError {
	w.Header().Set("content-type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wechatpay.SuccessAck())

	return nil
}

func ackFail(w http.ResponseWriter, msg string) *handlers.AppError {
	w.Header().Set("content-type", "application/xml")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write(wechatpay.FailAck(msg))

	return nil
}

func mapOrderError(err error, msg string) *handlers.AppError {
	switch {
	case errors.Is(err, model.ErrOrderNotFound):
		return handlers.WrapError(err, "Order not found", http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidTransition):
		return handlers.WrapError(err, "Order status does not permit this operation", http.StatusConflict)
	case errors.Is(err, model.ErrConcurrentModification):
		return handlers.WrapError(err, "Order was modified concurrently, retry", http.StatusConflict)
	default:
		return handlers.WrapError(err, msg, http.StatusInternalServerError)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
