package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	predictionsServed     atomic.Int64
	whatIfRuns            atomic.Int64
	batchUploads          atomic.Int64
	reportFallbacks       atomic.Int64
	validationRejections  atomic.Int64
	upstreamFailures      atomic.Int64
	upstreamTimeouts      atomic.Int64
	sessionAppendFailures atomic.Int64
	eventPublishFailures  atomic.Int64
	sessionsArchived      atomic.Int64
	sessionLogSize        atomic.Int64
)

func IncPredictions() { predictionsServed.Add(1) }
func IncWhatIf() { whatIfRuns.Add(1) }
func IncBatchUploads() { batchUploads.Add(1) }
func IncReportFallbacks() { reportFallbacks.Add(1) }
func IncValidationRejections() { validationRejections.Add(1) }
func IncSessionAppendFailures() { sessionAppendFailures.Add(1) }
func IncEventPublishFailures() { eventPublishFailures.Add(1) }
func IncSessionsArchived() { sessionsArchived.Add(1) }

// ObserveUpstreamFailure counts a failed scoring call; timeouts are also
// counted on their own.
func ObserveUpstreamFailure(timeout bool) {
	upstreamFailures.Add(1)
	if timeout {
		upstreamTimeouts.Add(1)
	}
}

func ObserveSessionLogSize(n int) {
	sessionLogSize.Store(int64(n))
}

type sample struct {
	name  string
	help  string
	kind  string
	value int64
}

func snapshot() []sample {
	return []sample{
		{"riskgw_predictions_total", "Predictions returned by /predict.", "counter", predictionsServed.Load()},
		{"riskgw_whatif_total", "What-if simulations completed.", "counter", whatIfRuns.Load()},
		{"riskgw_batch_uploads_total", "CSV uploads forwarded to the scoring service.", "counter", batchUploads.Load()},
		{"riskgw_report_fallbacks_total", "Reports served from the built-in blank PDF.", "counter", reportFallbacks.Load()},
		{"riskgw_validation_rejections_total", "Requests rejected before contacting the scoring service.", "counter", validationRejections.Load()},
		{"riskgw_upstream_failures_total", "Scoring service calls that failed or returned non-2xx.", "counter", upstreamFailures.Load()},
		{"riskgw_upstream_timeouts_total", "Scoring service calls that exceeded the request timeout.", "counter", upstreamTimeouts.Load()},
		{"riskgw_session_append_failures_total", "Session records that could not be persisted.", "counter", sessionAppendFailures.Load()},
		{"riskgw_event_publish_failures_total", "Prediction events that could not be published.", "counter", eventPublishFailures.Load()},
		{"riskgw_sessions_archived_total", "Prediction events archived by the session archiver.", "counter", sessionsArchived.Load()},
		{"riskgw_session_log_size", "Records currently held by the in-memory session log.", "gauge", sessionLogSize.Load()},
	}
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	for _, s := range snapshot() {
		fmt.Fprintf(w, "# HELP %s %s\n", s.name, s.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", s.name, s.kind)
		fmt.Fprintf(w, "%s %d\n", s.name, s.value)
	}
}
