package store

import "expvar"

var (
	metricFeedDropped      = expvar.NewInt("store_feed_dropped_total")
	metricFeedBadPayload   = expvar.NewInt("store_feed_bad_payload_total")
	metricListenerRestarts = expvar.NewInt("store_listener_restarts_total")
)
