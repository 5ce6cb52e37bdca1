package wechatpay

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type InstrumentedClient struct {
	name string
	cl   *Client
	vec  *prometheus.SummaryVec
}

// newInstrumentedClient returns an instance of the Client decorated with prometheus summary metric.
func newInstrumentedClient(name string, cl *Client) *InstrumentedClient {
	result := &InstrumentedClient{
		name: name,
		cl:   cl,
		vec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "wechatpay_client_duration_seconds",
			Help:       "client runtime duration and result",
			MaxAge:     time.Minute,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
			[]string{"instance_name", "method", "result"},
		),
	}

	return result
}

func (_d *InstrumentedClient) UnifiedOrder(ctx context.Context, rp1 *UnifiedOrderRequest) (rp2 *UnifiedOrderResponse, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		_d.vec.WithLabelValues(_d.name, "UnifiedOrder", result).Observe(time.Since(_since).Seconds())
	}()

	return _d.cl.UnifiedOrder(ctx, rp1)
}

func (_d *InstrumentedClient) Refund(ctx context.Context, rp1 *RefundRequest) (rp2 *RefundResponse, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		_d.vec.WithLabelValues(_d.name, "Refund", result).Observe(time.Since(_since).Seconds())
	}()

	return _d.cl.Refund(ctx, rp1)
}
