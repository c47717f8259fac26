package continuous

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var draftOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "panel",
	Subsystem: "continuous_orders",
	Name:      "operations_total",
	Help:      "Draft operations broken down by operation and result.",
}, []string{"op", "result"})

func observeDraftOp(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case IsValidation(err):
		result = "invalid"
	default:
		result = "error"
	}
	draftOperations.WithLabelValues(op, result).Inc()
}
