package ws

import "expvar"

var (
	metricLiveConnectionsTotal  = expvar.NewInt("live_connections_total")
	metricLiveConnectionsActive = expvar.NewInt("live_connections_active")
	metricLiveSendDropped       = expvar.NewInt("live_send_dropped_total")
)
