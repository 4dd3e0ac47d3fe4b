package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK             = "ok"
	resultNoRelationship = "no_relationship"
	resultRefreshFailed  = "refresh_failed"
	resultDeleteFailed   = "delete_failed"
)

var unmapTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "grc",
	Subsystem: "issue",
	Name:      "unmap_total",
	Help:      "Issue unmap attempts by result.",
}, []string{"result"})

func recordUnmap(result string) {
	unmapTotal.WithLabelValues(result).Inc()
}
