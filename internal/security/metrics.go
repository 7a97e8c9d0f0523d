package security

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// StoreLatency records blob store operation latency.
	StoreLatency *prometheus.HistogramVec

	// UnsendTotal counts unsend attempts by outcome code.
	UnsendTotal *prometheus.CounterVec

	// SkippedObjectsTotal counts archive objects skipped during multi-object
	// scans because they could not be read or decoded.
	SkippedObjectsTotal *prometheus.CounterVec
)

var validLabelKey = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseMetricsLabels turns "k=v,k2=v2" into constant labels, expanding
// ${VAR} references first. Blank entries are ignored.
func ParseMetricsLabels(raw string) (prometheus.Labels, error) {
	expanded := strings.TrimSpace(os.Expand(raw, os.Getenv))
	if expanded == "" {
		return nil, nil
	}
	labels := prometheus.Labels{}
	for _, entry := range strings.Split(expanded, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok {
			return nil, fmt.Errorf("invalid label %q: expected key=value", entry)
		}
		if !validLabelKey.MatchString(key) {
			return nil, fmt.Errorf("invalid label key %q: must match [a-zA-Z_][a-zA-Z0-9_]*", key)
		}
		if _, dup := labels[key]; dup {
			return nil, fmt.Errorf("duplicate label key %q", key)
		}
		labels[key] = strings.TrimSpace(value)
	}
	if len(labels) == 0 {
		return nil, nil
	}
	return labels, nil
}

var initMetricsOnce sync.Once

// InitMetrics registers the archive collectors once, decorated with constLabels.
func InitMetrics(constLabels prometheus.Labels) {
	initMetricsOnce.Do(func() {
		initMetricsInner(constLabels)
	})
}

func initMetricsInner(constLabels prometheus.Labels) {
	reg := prometheus.WrapRegistererWith(constLabels, prometheus.DefaultRegisterer)
	f := promauto.With(reg)

	httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_archive_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_archive_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	StoreLatency = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_archive_store_latency_seconds",
			Help:    "Blob store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	UnsendTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_archive_unsend_total",
			Help: "Unsend attempts by outcome",
		},
		[]string{"outcome"},
	)

	SkippedObjectsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_archive_skipped_objects_total",
			Help: "Archive objects skipped during scans because they could not be read",
		},
		[]string{"scan"},
	)
}

// RecordUnsend counts an unsend outcome. No-op before InitMetrics.
func RecordUnsend(outcome string) {
	if UnsendTotal == nil {
		return
	}
	UnsendTotal.WithLabelValues(outcome).Inc()
}

// RecordSkipped counts objects skipped by a scan. No-op before InitMetrics.
func RecordSkipped(scan string, n int) {
	if SkippedObjectsTotal == nil || n <= 0 {
		return
	}
	SkippedObjectsTotal.WithLabelValues(scan).Add(float64(n))
}

// MetricsMiddleware records request counts and latency per matched route.
// Unmatched paths share the "unmatched" route label to keep cardinality bounded.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if httpRequestsTotal == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
