package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Push-side counters, registered on the default registry so the debug
// endpoint can serve them with promhttp.
var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livepush_active_sessions",
		Help: "Number of sessions currently open",
	})

	SessionsConnected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livepush_sessions_connected_total",
		Help: "Sessions that reached the streaming state",
	})

	SessionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livepush_sessions_failed_total",
		Help: "Sessions that ended in the failed state",
	})

	FramesPushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livepush_frames_pushed_total",
		Help: "Frames accepted into the send queue",
	}, []string{"type"})

	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livepush_frames_dropped_total",
		Help: "Frames rejected because the send queue was full",
	}, []string{"type"})

	BytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livepush_bytes_sent_total",
		Help: "Muxed message bytes handed to the transport",
	})
)

const (
	TypeAudio = "audio"
	TypeVideo = "video"
)
