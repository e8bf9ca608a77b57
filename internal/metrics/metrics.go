// Package metrics exposes Prometheus metrics for the voice client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mumble_voice"

var (
	// messagesTotal counts control messages by direction and kind.
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Total number of control messages sent or received",
		},
		[]string{"direction", "kind"}, // direction: in, out
	)

	// tunnelPacketsTotal counts inbound voice packets by parse outcome.
	tunnelPacketsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tunnel_packets_total",
			Help:      "Total number of inbound voice packets by outcome",
		},
		[]string{"outcome"}, // outcome: audio, ping, unsupported, malformed
	)

	// voiceFramesTotal counts dispatched outbound voice frames.
	voiceFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_frames_total",
			Help:      "Total number of outbound voice frames dispatched",
		},
		[]string{"status"}, // status: success, error
	)

	// utterancesTotal counts captured speaking bursts.
	utterancesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Total number of captured utterances by result",
		},
		[]string{"result"}, // result: flushed, failed
	)

	// utteranceDuration is a histogram of captured utterance length.
	utteranceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "utterance_duration_seconds",
			Help:      "Length of captured utterances in seconds of audio",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32},
		},
	)

	// playbackTotal counts playback jobs by status.
	playbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_jobs_total",
			Help:      "Total number of playback jobs by status",
		},
		[]string{"status"}, // status: success, error
	)

	// playbackDuration is a histogram of wall time spent playing one job.
	playbackDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "playback_duration_seconds",
			Help:      "Wall time spent playing one job in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// queueDepth is the number of items waiting in each pipeline queue.
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of items waiting in a pipeline queue",
		},
		[]string{"queue"},
	)

	// connectionUp is 1 while the control connection is ready.
	connectionUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_up",
			Help:      "Whether the control connection is ready",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		messagesTotal,
		tunnelPacketsTotal,
		voiceFramesTotal,
		utterancesTotal,
		utteranceDuration,
		playbackTotal,
		playbackDuration,
		queueDepth,
		connectionUp,
	}
)

// RecordMessage records one control message.
func RecordMessage(direction, kind string) {
	messagesTotal.WithLabelValues(direction, kind).Inc()
}

// RecordTunnelPacket records one inbound voice packet.
func RecordTunnelPacket(outcome string) {
	tunnelPacketsTotal.WithLabelValues(outcome).Inc()
}

// RecordVoiceFrame records one outbound voice frame.
func RecordVoiceFrame(status string) {
	voiceFramesTotal.WithLabelValues(status).Inc()
}

// RecordUtterance records a finished utterance and, when flushed, its length.
func RecordUtterance(result string, durationSeconds float64) {
	utterancesTotal.WithLabelValues(result).Inc()
	if result == "flushed" {
		utteranceDuration.Observe(durationSeconds)
	}
}

// RecordPlayback records one finished playback job.
func RecordPlayback(status string, durationSeconds float64) {
	playbackTotal.WithLabelValues(status).Inc()
	playbackDuration.Observe(durationSeconds)
}

// SetQueueDepth records the current length of a pipeline queue.
func SetQueueDepth(queue string, depth int) {
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// SetConnectionUp records whether the control connection is ready.
func SetConnectionUp(up bool) {
	if up {
		connectionUp.Set(1)
		return
	}
	connectionUp.Set(0)
}
