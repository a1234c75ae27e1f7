package httptransport

import "expvar"

var (
	metricHTTPErrors       = expvar.NewMap("http_errors_total")
	metricAuthFailures     = expvar.NewInt("http_auth_failures_total")
	metricAdminRoomCreated = expvar.NewInt("admin_rooms_created_total")
)
