package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency     = metric.NewHistogram("1m1s")
	PublishedPerSecond  = metric.NewCounter("10s1s")
	ReceivedPerSecond   = metric.NewCounter("10s1s")
	MalformedPerSecond  = metric.NewCounter("10s1s")
	ForwardedPerSecond  = metric.NewCounter("10s1s")
	DeliveredPerSecond  = metric.NewCounter("10s1s")
	ProbeLatency        = metric.NewHistogram("1m1s")
	RouteRecomputations = metric.NewCounter("1m1s")
	RouteComputeTime    = metric.NewHistogram("1m1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("strand:Published/s", PublishedPerSecond)
	expvar.Publish("strand:Received/s", ReceivedPerSecond)
	expvar.Publish("strand:Malformed/s", MalformedPerSecond)
	expvar.Publish("strand:Forwarded/s", ForwardedPerSecond)
	expvar.Publish("strand:Delivered/s", DeliveredPerSecond)
	expvar.Publish("strand:ProbeLatency (ms)", ProbeLatency)
	expvar.Publish("strand:RouteRecomputations", RouteRecomputations)
	expvar.Publish("strand:RouteComputeTime (µs)", RouteComputeTime)
	expvar.Publish("strand:DispatchLatency (µs)", DispatchLatency)
}
