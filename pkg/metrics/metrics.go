package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muse_http_requests_total",
		Help: "Total HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "muse_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	workflowsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muse_workflows_started_total",
		Help: "Approval requests started, by workflow.",
	}, []string{"workflow_id"})

	workflowsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muse_workflows_completed_total",
		Help: "Approval requests reaching a terminal status.",
	}, []string{"workflow_id", "status"})

	approvalActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muse_approval_actions_total",
		Help: "Approval actions processed, by action type.",
	}, []string{"action"})

	routingDecisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "muse_routing_decision_duration_seconds",
		Help:    "Time spent computing a routing decision.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	routingFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "muse_routing_fallbacks_total",
		Help: "Routing decisions that fell back to the default approver set.",
	})

	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muse_notifications_sent_total",
		Help: "Notification deliveries, by outcome.",
	}, []string{"outcome"})
)

// WorkflowStarted records a newly started approval request.
func WorkflowStarted(workflowID string) {
	workflowsStarted.WithLabelValues(workflowID).Inc()
}

// WorkflowCompleted records a request reaching a terminal status.
func WorkflowCompleted(workflowID, status string) {
	workflowsCompleted.WithLabelValues(workflowID, status).Inc()
}

// ApprovalAction records a processed approval action.
func ApprovalAction(action string) {
	approvalActions.WithLabelValues(action).Inc()
}

// ObserveRoutingDecision records how long a routing decision took.
func ObserveRoutingDecision(d time.Duration) {
	routingDecisionDuration.Observe(d.Seconds())
}

// RoutingFallback records a routing panic-recovery fallback.
func RoutingFallback() {
	routingFallbacks.Inc()
}

// NotificationSent records a notification delivery outcome ("ok" or "error").
func NotificationSent(outcome string) {
	notificationsSent.WithLabelValues(outcome).Inc()
}

// GinMiddleware instruments HTTP requests. Uses the route template
// (c.FullPath) rather than the raw URL to keep cardinality bounded.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus scrape handler wrapped for gin.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
