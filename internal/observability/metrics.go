package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	messagesProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "guard_messages_processed_total",
			Help: "Total number of chat messages run through the pipeline",
		},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_cache_lookups_total",
			Help: "Classification cache lookups",
		},
		[]string{"outcome"},
	)

	apiCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_api_calls_total",
			Help: "Calls to the classification service",
		},
		[]string{"outcome"},
	)

	apiCallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guard_api_call_duration_seconds",
			Help:    "Latency of classification service calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	violations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_violations_total",
			Help: "Violations recorded, by category",
		},
		[]string{"category"},
	)

	punishments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_punishments_total",
			Help: "Punishments issued, by type",
		},
		[]string{"type"},
	)

	filterRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_filter_rejections_total",
			Help: "Messages rejected by the pre-filter pipeline",
		},
		[]string{"filter"},
	)
)

func init() {
	prometheus.MustRegister(
		messagesProcessed,
		cacheLookups,
		apiCalls,
		apiCallDuration,
		violations,
		punishments,
		filterRejections,
	)
}

func RecordMessageProcessed() { messagesProcessed.Inc() }

func RecordCacheHit()  { cacheLookups.WithLabelValues("hit").Inc() }
func RecordCacheMiss() { cacheLookups.WithLabelValues("miss").Inc() }

func RecordAPICall(ok bool, elapsed time.Duration) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	apiCalls.WithLabelValues(outcome).Inc()
	apiCallDuration.Observe(elapsed.Seconds())
}

func RecordViolation(category string)   { violations.WithLabelValues(category).Inc() }
func RecordPunishment(kind string)      { punishments.WithLabelValues(kind).Inc() }
func RecordFilterRejection(kind string) { filterRejections.WithLabelValues(kind).Inc() }

// Server exposes the prometheus registry over HTTP as a lifecycle component.
type Server struct {
	addr string
	srv  *http.Server
}

func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

func (s *Server) Start(_ context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s.srv = &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
