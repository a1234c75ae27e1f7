package roomjoin

import "expvar"

var (
	metricJoinTotal    = expvar.NewInt("join_total")
	metricJoinErrors   = expvar.NewInt("join_errors_total")
	metricJoinRoomFull = expvar.NewInt("join_room_full_total")
)
