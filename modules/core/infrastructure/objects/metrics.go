package objects

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var objectCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "grc",
	Subsystem: "object_cache",
	Name:      "requests_total",
	Help:      "Total number of object cache lookups broken down by type and hit/miss.",
}, []string{"type", "result"})

func recordCacheRequest(typ string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	objectCacheRequests.WithLabelValues(typ, result).Inc()
}
