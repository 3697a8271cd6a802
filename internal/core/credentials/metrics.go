package credentials

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var storeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fedgate_credential_store_requests",
	Help: "Credential store requests by operation and outcome",
}, []string{"operation", "outcome"})

var dedupDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fedgate_credential_dedup_dropped",
	Help: "Credentials dropped as duplicates when merging audiences",
})

func observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storeRequests.WithLabelValues(operation, outcome).Inc()
}
