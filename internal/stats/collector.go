package stats

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the subset of StreamRegistry the collector needs: an
// enumerable view of every live stream's handle and stats block. Kept as
// a small interface so this package does not import the root package
// (which in turn depends on internal/stats).
type Registry interface {
	ForEach(func(handle uint64, s *Stats))
}

// Collector is a prometheus.Collector exporting every stream's counters
// at scrape time.
type Collector struct {
	registry  Registry
	startTime time.Time

	packetsReceivedDesc *prometheus.Desc
	packetsDroppedDesc  *prometheus.Desc
	packetsSentDesc     *prometheus.Desc
	underrunsDesc       *prometheus.Desc
	bytesInDesc         *prometheus.Desc
	bytesOutDesc        *prometheus.Desc
	decodeErrorsDesc    *prometheus.Desc
	encodeErrorsDesc    *prometheus.Desc
	bufferLevelDesc     *prometheus.Desc
	ppmDesc             *prometheus.Desc
	connectionStateDesc *prometheus.Desc
	uptimeDesc          *prometheus.Desc
}

// NewCollector creates a Collector reading from registry. startTime is
// used for the uptime gauge.
func NewCollector(registry Registry, startTime time.Time) *Collector {
	labels := []string{"stream"}
	return &Collector{
		registry:  registry,
		startTime: startTime,

		packetsReceivedDesc: prometheus.NewDesc("aoip_packets_received_total", "RTP packets received on this stream", labels, nil),
		packetsDroppedDesc:  prometheus.NewDesc("aoip_packets_dropped_total", "RTP packets dropped on this stream", labels, nil),
		packetsSentDesc:     prometheus.NewDesc("aoip_packets_sent_total", "RTP packets transmitted on this stream", labels, nil),
		underrunsDesc:       prometheus.NewDesc("aoip_underruns_total", "Output buffer underruns on this stream", labels, nil),
		bytesInDesc:         prometheus.NewDesc("aoip_bytes_in_total", "Bytes received on this stream", labels, nil),
		bytesOutDesc:        prometheus.NewDesc("aoip_bytes_out_total", "Bytes transmitted on this stream", labels, nil),
		decodeErrorsDesc:    prometheus.NewDesc("aoip_decode_errors_total", "Decode errors on this stream", labels, nil),
		encodeErrorsDesc:    prometheus.NewDesc("aoip_encode_errors_total", "Encode errors on this stream", labels, nil),
		bufferLevelDesc:     prometheus.NewDesc("aoip_buffer_level_samples", "Current jitter ring occupancy in samples", labels, nil),
		ppmDesc:             prometheus.NewDesc("aoip_resample_ppm_x1000", "Current resample correction, ppm x1000", labels, nil),
		connectionStateDesc: prometheus.NewDesc("aoip_connection_state", "Connection state (0=disconnected,1=connecting,2=connected,3=reconnecting)", labels, nil),
		uptimeDesc:          prometheus.NewDesc("aoip_uptime_seconds", "Seconds since the process started", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.packetsReceivedDesc
	ch <- c.packetsDroppedDesc
	ch <- c.packetsSentDesc
	ch <- c.underrunsDesc
	ch <- c.bytesInDesc
	ch <- c.bytesOutDesc
	ch <- c.decodeErrorsDesc
	ch <- c.encodeErrorsDesc
	ch <- c.bufferLevelDesc
	ch <- c.ppmDesc
	ch <- c.connectionStateDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector, iterating every live stream.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.registry.ForEach(func(handle uint64, s *Stats) {
		label := strconv.FormatUint(handle, 10)
		snap := s.Snapshot()

		ch <- prometheus.MustNewConstMetric(c.packetsReceivedDesc, prometheus.CounterValue, float64(snap.PacketsReceived), label)
		ch <- prometheus.MustNewConstMetric(c.packetsDroppedDesc, prometheus.CounterValue, float64(snap.PacketsDropped), label)
		ch <- prometheus.MustNewConstMetric(c.packetsSentDesc, prometheus.CounterValue, float64(snap.PacketsSent), label)
		ch <- prometheus.MustNewConstMetric(c.underrunsDesc, prometheus.CounterValue, float64(snap.Underruns), label)
		ch <- prometheus.MustNewConstMetric(c.bytesInDesc, prometheus.CounterValue, float64(snap.BytesIn), label)
		ch <- prometheus.MustNewConstMetric(c.bytesOutDesc, prometheus.CounterValue, float64(snap.BytesOut), label)
		ch <- prometheus.MustNewConstMetric(c.decodeErrorsDesc, prometheus.CounterValue, float64(snap.DecodeErrors), label)
		ch <- prometheus.MustNewConstMetric(c.encodeErrorsDesc, prometheus.CounterValue, float64(snap.EncodeErrors), label)
		ch <- prometheus.MustNewConstMetric(c.bufferLevelDesc, prometheus.GaugeValue, float64(snap.BufferLevelSamples), label)
		ch <- prometheus.MustNewConstMetric(c.ppmDesc, prometheus.GaugeValue, float64(snap.PPMx1000), label)
		ch <- prometheus.MustNewConstMetric(c.connectionStateDesc, prometheus.GaugeValue, float64(snap.ConnectionState), label)
	})

	ch <- prometheus.MustNewConstMetric(c.uptimeDesc, prometheus.GaugeValue, time.Since(c.startTime).Seconds())
}
