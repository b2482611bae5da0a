package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PassesTotal tracks reconciliation passes by outcome
	PassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewriter_passes_total",
		Help: "Total number of reconciliation passes by result",
	}, []string{"result"})

	// PassDuration tracks pass processing time
	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zonewriter_pass_duration_seconds",
		Help:    "Histogram of reconciliation pass duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	// ZoneFilesWritten counts zone files published via rename
	ZoneFilesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zonewriter_zone_files_written_total",
		Help: "Total number of zone files written",
	})

	// ZoneFilesRemoved counts zone files garbage-collected
	ZoneFilesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zonewriter_zone_files_removed_total",
		Help: "Total number of stale zone files removed",
	})

	// DomainCollisions counts source records that overwrote another tenant's name
	DomainCollisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewriter_domain_collisions_total",
		Help: "Total number of duplicate (apex, name) pairs seen in tenant state",
	}, []string{"apex"})

	// Apexes tracks the number of zones derived in the last pass
	Apexes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zonewriter_apexes",
		Help: "Number of apex zones in the last fetched tenant state",
	})

	// Records tracks the number of CNAME records derived in the last pass
	Records = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zonewriter_records",
		Help: "Number of tenant domain records in the last fetched tenant state",
	})

	// LastSuccess is the unix time of the last pass that did not fail
	LastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zonewriter_last_success_timestamp_seconds",
		Help: "Unix timestamp of the last successful reconciliation pass",
	})
)

// Recorder implements ports.Metrics on the package collectors.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (Recorder) ObservePass(result string, duration time.Duration) {
	PassesTotal.WithLabelValues(result).Inc()
	PassDuration.WithLabelValues(result).Observe(duration.Seconds())
	if result == "unchanged" || result == "written" {
		LastSuccess.SetToCurrentTime()
	}
}

func (Recorder) ZonesWritten(n int) { ZoneFilesWritten.Add(float64(n)) }

func (Recorder) ZonesRemoved(n int) { ZoneFilesRemoved.Add(float64(n)) }

func (Recorder) Collision(apex string) { DomainCollisions.WithLabelValues(apex).Inc() }

func (Recorder) Inventory(apexes, records int) {
	Apexes.Set(float64(apexes))
	Records.Set(float64(records))
}
