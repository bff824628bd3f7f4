// Package observability provides structured logging and Prometheus metrics
// for the forensics engine.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures telemetry.
type Config struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json, console

	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// Telemetry bundles the logger and metrics for the process.
type Telemetry struct {
	logger  *zap.Logger
	metrics *Metrics
	config  Config
}

// Metrics holds Prometheus metrics for the engine.
type Metrics struct {
	FilesIngested prometheus.Counter
	RowsIngested  prometheus.Counter

	AnomaliesFound *prometheus.CounterVec
	IOCMatches     *prometheus.CounterVec

	IntelRequests *prometheus.CounterVec
	IntelCacheHit prometheus.Counter

	AnalysesRun      *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec

	TimelineFindings *prometheus.CounterVec

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New builds telemetry from config.
func New(cfg Config) (*Telemetry, error) {
	t := &Telemetry{config: cfg}

	logger, err := t.initLogger()
	if err != nil {
		return nil, err
	}
	t.logger = logger

	if cfg.MetricsEnabled {
		t.metrics = initMetrics()
	}
	return t, nil
}

func (t *Telemetry) initLogger() (*zap.Logger, error) {
	var config zap.Config

	if t.config.LogFormat == "console" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	switch t.config.LogLevel {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config.InitialFields = map[string]interface{}{
		"service": t.config.ServiceName,
		"version": t.config.ServiceVersion,
	}

	return config.Build()
}

func initMetrics() *Metrics {
	namespace := "forensics"

	return &Metrics{
		FilesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_ingested_total",
			Help:      "Total CSV files loaded",
		}),
		RowsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_ingested_total",
			Help:      "Total rows loaded across all files",
		}),
		AnomaliesFound: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "anomalies_found_total",
				Help:      "Pattern anomalies found by rule type",
			},
			[]string{"type", "severity"},
		),
		IOCMatches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ioc_matches_total",
				Help:      "IOC matches by indicator type and match type",
			},
			[]string{"ioc_type", "match_type"},
		),
		IntelRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intel_requests_total",
				Help:      "Threat-actor intelligence lookups",
			},
			[]string{"provider", "status"},
		),
		IntelCacheHit: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intel_cache_hits_total",
			Help:      "Intelligence cache hits",
		}),
		AnalysesRun: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_run_total",
				Help:      "Model analyses by backend and outcome",
			},
			[]string{"backend", "status"},
		),
		AnalysisDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Per-source analysis duration",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"backend"},
		),
		TimelineFindings: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "timeline_findings_total",
				Help:      "Findings added to the timeline by origin",
			},
			[]string{"origin"},
		),
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"method", "path"},
		),
	}
}

// Logger returns the logger.
func (t *Telemetry) Logger() *zap.Logger { return t.logger }

// Metrics returns the metrics, or nil when disabled.
func (t *Telemetry) Metrics() *Metrics { return t.metrics }

// MetricsHandler returns the Prometheus exposition handler.
func (t *Telemetry) MetricsHandler() http.Handler { return promhttp.Handler() }

// Shutdown flushes buffered log entries.
func (t *Telemetry) Shutdown() {
	t.logger.Sync()
}
