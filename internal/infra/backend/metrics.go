package backend

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "panel",
	Subsystem: "backend",
	Name:      "request_duration_seconds",
	Help:      "Latency of backend operations by operation and result.",
	Buckets:   prometheus.DefBuckets,
}, []string{"op", "result"})

func observeRequest(op string, start time.Time, err error) {
	requestDuration.WithLabelValues(op, resultLabel(err)).Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if apiErr, ok := AsAPIError(err); ok {
		return strconv.Itoa(apiErr.Status)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "transport"
}
