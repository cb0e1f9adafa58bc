package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCounter counts HTTP requests by status code, method and route pattern
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "participation_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "path"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "participation_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status", "method", "path"},
	)

	RequestInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "participation_http_requests_in_progress",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method"},
	)

	// TeamOperations counts team lifecycle outcomes, e.g. ("join", "full").
	TeamOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "participation_team_operations_total",
			Help: "Team lifecycle operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	SubmissionOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "participation_submission_operations_total",
			Help: "Submission workflow operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	Registrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "participation_registrations_total",
			Help: "Total number of successful attendee registrations",
		},
	)

	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "participation_upload_bytes_total",
			Help: "Total bytes of accepted attachment uploads",
		},
	)

	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "participation_notifications_delivered_total",
			Help: "Notification deliveries by sink and result",
		},
		[]string{"sink", "result"},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "participation_notifications_dropped_total",
			Help: "Notifications dropped because the queue was full",
		},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "participation_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "participation_live_connections",
			Help: "Number of open live feed websocket connections",
		},
	)
)

// RecordDBTransaction records the duration of a database transaction.
func RecordDBTransaction(startTime time.Time, err error) {
	result := "commit"
	if err != nil {
		result = "rollback"
	}
	DatabaseOperationDuration.WithLabelValues(result).Observe(time.Since(startTime).Seconds())
}

// Outcome maps an error to a short label value.
func Outcome(err error, kind string) string {
	if err == nil {
		return "ok"
	}
	if kind == "" {
		return "error"
	}
	return kind
}
