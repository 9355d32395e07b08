package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess           = "success"
	ResultExtractionFailure = "extraction_failure"
	ResultStorageFailure    = "storage_failure"
)

// Metrics are the poll counters of one run, kept on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	polls         *prometheus.CounterVec
	pollDuration  *prometheus.HistogramVec
	lastSuccessTS *prometheus.GaugeVec
	setupFailures *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oddscrawler",
		Name:      "polls_total",
		Help:      "Number of poll attempts by source and result",
	}, []string{"source", "result"})
	m.pollDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oddscrawler",
		Name:      "poll_duration_seconds",
		Help:      "Time spent extracting and storing one poll",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"source"})
	m.lastSuccessTS = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "oddscrawler",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last stored record",
	}, []string{"source"})
	m.setupFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oddscrawler",
		Name:      "setup_failures_total",
		Help:      "Number of runs aborted before the first poll",
	}, []string{"source"})

	m.Registry.MustRegister(m.polls, m.pollDuration, m.lastSuccessTS, m.setupFailures)

	return m
}

// ObservePoll records the outcome of one poll. A nil receiver is a no-op.
func (m *Metrics) ObservePoll(source, result string, took time.Duration, at time.Time) {
	if m == nil {
		return
	}

	m.polls.WithLabelValues(source, result).Inc()
	m.pollDuration.WithLabelValues(source).Observe(took.Seconds())
	if result == ResultSuccess {
		m.lastSuccessTS.WithLabelValues(source).Set(float64(at.Unix()))
	}
}

func (m *Metrics) ObserveSetupFailure(source string) {
	if m == nil {
		return
	}
	m.setupFailures.WithLabelValues(source).Inc()
}

// Server exposes a registry on /metrics and a liveness probe on /healthz.
type Server struct {
	server *http.Server
}

func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler { return s.server.Handler }

// Serve blocks until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve() error {
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }
