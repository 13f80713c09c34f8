package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"roomsync/internal/model"
)

var (
	RoomsRepaired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomsync_rooms_repaired_total",
			Help: "Rooms whose tenant link was inspected by link repair, by action",
		},
		[]string{"action"},
	)

	RepairErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roomsync_repair_errors_total",
			Help: "Room writes that failed during link repair",
		},
	)

	TenantsSynced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roomsync_tenants_synced_total",
			Help: "Tenant records whose cached room number was overwritten",
		},
	)

	Links = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roomsync_links",
			Help: "Rooms with a tenant link after the last verification, by state",
		},
		[]string{"state"},
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roomsync_run_duration_seconds",
			Help:    "Wall time of a reconciliation run",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomsync_runs_total",
			Help: "Reconciliation runs, by outcome",
		},
		[]string{"outcome"},
	)
)

var once sync.Once

// Init registers metrics with Prometheus. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(RoomsRepaired)
		prometheus.MustRegister(RepairErrors)
		prometheus.MustRegister(TenantsSynced)
		prometheus.MustRegister(Links)
		prometheus.MustRegister(RunDuration)
		prometheus.MustRegister(Runs)
	})
}

// ObserveRun records a finished run. Dry runs only update the duration and
// run counters, since nothing was written.
func ObserveRun(r *model.Report, err error) {
	if err != nil {
		Runs.WithLabelValues("failed").Inc()
		return
	}
	RunDuration.Observe(r.Duration().Seconds())
	if r.DryRun {
		Runs.WithLabelValues("dry_run").Inc()
		return
	}
	Runs.WithLabelValues("succeeded").Inc()

	RoomsRepaired.WithLabelValues(string(model.ActionKept)).Add(float64(r.Repair.Kept))
	RoomsRepaired.WithLabelValues(string(model.ActionRemapped)).Add(float64(r.Repair.Remapped))
	RoomsRepaired.WithLabelValues(string(model.ActionCleared)).Add(float64(r.Repair.Cleared))
	RepairErrors.Add(float64(r.Repair.Errors))
	TenantsSynced.Add(float64(r.Sync.Updated))
	Links.WithLabelValues("linked").Set(float64(r.Verify.Linked))
	Links.WithLabelValues("valid").Set(float64(r.Verify.Valid))
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
