package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	uuid "github.com/satori/go.uuid"

	"github.com/openmall/mall-go/services/orders/model"
)

// PromOrder wraps Order with Prometheus metrics.
type PromOrder struct {
	name string
	repo *Order
	vec  *prometheus.SummaryVec
}

func NewPromOrder(name string, repo *Order) *PromOrder {
	result := &PromOrder{
		name: name,
		repo: repo,
		vec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "orders_repository_order_duration_seconds",
			Help:       "order repository runtime duration and result",
			MaxAge:     time.Minute,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"instance_name", "method", "result"}),
	}

	return result
}

func (r *PromOrder) Get(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (rt *model.Order, err error) {
	defer r.observe("Get", time.Now(), &err)

	rt, err = r.repo.Get(ctx, dbi, id)

	return rt, err
}

func (r *PromOrder) GetForUpdate(ctx context.Context, dbi sqlx.QueryerContext, id uuid.UUID) (rt *model.Order, err error) {
	defer r.observe("GetForUpdate", time.Now(), &err)

	rt, err = r.repo.GetForUpdate(ctx, dbi, id)

	return rt, err
}

func (r *PromOrder) GetByOrderNumber(ctx context.Context, dbi sqlx.QueryerContext, num string) (rt *model.Order, err error) {
	defer r.observe("GetByOrderNumber", time.Now(), &err)

	rt, err = r.repo.GetByOrderNumber(ctx, dbi, num)

	return rt, err
}

func (r *PromOrder) Create(ctx context.Context, dbi sqlx.QueryerContext, req *model.OrderNew) (rt *model.Order, err error) {
	defer r.observe("Create", time.Now(), &err)

	rt, err = r.repo.Create(ctx, dbi, req)

	return rt, err
}

func (r *PromOrder) UpdateStatus(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, to string) (err error) {
	defer r.observe("UpdateStatus", time.Now(), &err)

	err = r.repo.UpdateStatus(ctx, dbi, id, from, to)

	return err
}

func (r *PromOrder) SetPaid(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, when time.Time) (err error) {
	defer r.observe("SetPaid", time.Now(), &err)

	err = r.repo.SetPaid(ctx, dbi, id, when)

	return err
}

func (r *PromOrder) SetAwaitingPayment(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, deadline time.Time) (err error) {
	defer r.observe("SetAwaitingPayment", time.Now(), &err)

	err = r.repo.SetAwaitingPayment(ctx, dbi, id, deadline)

	return err
}

func (r *PromOrder) MarkCanceled(ctx context.Context, dbi sqlx.ExecerContext, id uuid.UUID, from, reason string) (err error) {
	defer r.observe("MarkCanceled", time.Now(), &err)

	err = r.repo.MarkCanceled(ctx, dbi, id, from, reason)

	return err
}

func (r *PromOrder) NextExpiredID(ctx context.Context, dbi sqlx.QueryerContext, now time.Time) (rt uuid.UUID, err error) {
	defer r.observe("NextExpiredID", time.Now(), &err)

	rt, err = r.repo.NextExpiredID(ctx, dbi, now)

	return rt, err
}

func (r *PromOrder) observe(method string, start time.Time, err *error) {
	result := "ok"
	if *err != nil {
		result = "error"
	}

	r.vec.WithLabelValues(r.name, method, result).Observe(time.Since(start).Seconds())
}
