package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are registered on the default registry so promhttp.Handler
// exposes them without extra wiring. Label cardinality stays bounded: kind
// is a closed enumeration and component is one of a handful of names.

var (
	FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tastytrade",
		Subsystem: "streamer",
		Name:      "frames_received_total",
		Help:      "Websocket frames received from the feed.",
	})

	FramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tastytrade",
		Subsystem: "streamer",
		Name:      "frames_sent_total",
		Help:      "Websocket frames written to the feed.",
	})

	EventsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tastytrade",
		Subsystem: "streamer",
		Name:      "events_decoded_total",
		Help:      "Feed events decoded, by event kind.",
	}, []string{"kind"})

	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tastytrade",
		Subsystem: "streamer",
		Name:      "malformed_frames_total",
		Help:      "Feed frames dropped because they failed to decode.",
	})

	DispatcherDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tastytrade",
		Subsystem: "streamer",
		Name:      "dispatcher_drops_total",
		Help:      "Events dropped because a consumer queue was full, by event kind.",
	}, []string{"kind"})

	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tastytrade",
		Subsystem: "streamer",
		Name:      "reconnects_total",
		Help:      "Times the supervisor re-established the feed connection.",
	})

	KeepalivesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tastytrade",
		Subsystem: "streamer",
		Name:      "keepalives_sent_total",
		Help:      "Keepalive frames written to the feed.",
	})

	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tastytrade",
		Subsystem: "streamer",
		Name:      "connection_state",
		Help:      "Current connection state as its numeric code.",
	})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tastytrade",
		Subsystem: "streamer",
		Name:      "queue_depth",
		Help:      "Buffered events per consumer queue, by event kind.",
	}, []string{"kind"})

	RecorderFlushSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tastytrade",
		Subsystem: "storage",
		Name:      "recorder_flush_size",
		Help:      "Events written per recorder flush.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	PublishedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tastytrade",
		Subsystem: "publish",
		Name:      "events_total",
		Help:      "Events published to the message bus, by event kind.",
	}, []string{"kind"})

	RelayClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tastytrade",
		Subsystem: "relay",
		Name:      "clients",
		Help:      "Websocket clients currently attached to the relay.",
	})
)
