package webid

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var aliasResolution = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fedgate_webid_resolve_alias",
	Help: "WebID alias resolutions by how they were answered",
}, []string{"source"})

var aliasResolutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "fedgate_webid_resolve_alias_duration",
	Help:    "Time for an upstream WebID alias resolution",
	Buckets: prometheus.ExponentialBucketsRange(0.001, 10, 16),
}, []string{"status"})

// Values of the "source" label.
const (
	sourceCache     = "cache"
	sourceCoalesced = "coalesced"
	sourceUpstream  = "upstream"
)
