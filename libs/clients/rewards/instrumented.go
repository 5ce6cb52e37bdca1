package rewards

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type InstrumentedClient struct {
	name string
	cl   Client
	vec  *prometheus.SummaryVec
}

// NewInstrumented returns a Client decorated with a prometheus summary metric.
func NewInstrumented(cl Client) *InstrumentedClient {
	result := &InstrumentedClient{
		name: "rewards_client",
		cl:   cl,
		vec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "rewards_client_duration_seconds",
			Help:       "client runtime duration and result",
			MaxAge:     time.Minute,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
			[]string{"instance_name", "method", "result"},
		),
	}

	return result
}

func (_d *InstrumentedClient) CreditPoints(ctx context.Context, rp1 *CreditPointsRequest) (rp2 *PointsBalanceResponse, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		_d.vec.WithLabelValues(_d.name, "CreditPoints", result).Observe(time.Since(_since).Seconds())
	}()

	return _d.cl.CreditPoints(ctx, rp1)
}

func (_d *InstrumentedClient) RevokePoints(ctx context.Context, rp1 *RevokePointsRequest) (rp2 *PointsBalanceResponse, err error) {
	_since := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}

		_d.vec.WithLabelValues(_d.name, "RevokePoints", result).Observe(time.Since(_since).Seconds())
	}()

	return _d.cl.RevokePoints(ctx, rp1)
}
