package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pausee/internal/engine"
)

const (
	OutcomeOK    = "ok"
	OutcomeAbort = "abort"
	OutcomePanic = "panic"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pausee_cycles_total",
			Help: "Decision cycles by outcome and branch",
		}, []string{"outcome", "branch"},
	)
	CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pausee_cycle_duration_seconds",
		Help:    "Decision cycle duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	Installs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pausee_installs",
		Help: "Installs over the lookback window in the last in-window cycle",
	})
	PausedCampaigns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pausee_paused_campaigns",
		Help: "Campaigns currently recorded as paused",
	})
	Mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pausee_mutations_total",
			Help: "Campaign status changes by target status and result",
		}, []string{"status", "result"},
	)
	LastCycle = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pausee_last_cycle_timestamp_seconds",
		Help: "Unix time the last cycle finished",
	})

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pausee_http_requests_total",
			Help: "Total ops HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pausee_http_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pausee_http_in_flight",
		Help: "In-flight HTTP requests",
	})
)

func init() {
	prometheus.MustRegister(CyclesTotal, CycleDuration, Installs, PausedCampaigns, Mutations, LastCycle,
		RequestsTotal, Latency, InFlight)
}

// ObserveCycle records a finished cycle.
func ObserveCycle(rep engine.CycleReport, outcome string) {
	CyclesTotal.WithLabelValues(outcome, string(rep.Branch)).Inc()
	if !rep.FinishedAt.IsZero() && !rep.StartedAt.IsZero() {
		CycleDuration.Observe(rep.FinishedAt.Sub(rep.StartedAt).Seconds())
	}
	LastCycle.Set(float64(time.Now().Unix()))
	if o := rep.Outcome; o != nil {
		Mutations.WithLabelValues(string(o.Status), "succeeded").Add(float64(len(o.Succeeded)))
		Mutations.WithLabelValues(string(o.Status), "failed").Add(float64(len(o.Failed)))
	}
	// Gauges keep their last good value when a cycle aborts.
	if outcome != OutcomeOK {
		return
	}
	if rep.InWindow {
		Installs.Set(float64(rep.TotalInstalls))
	}
	PausedCampaigns.Set(float64(rep.PausedCount))
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
