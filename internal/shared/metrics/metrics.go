package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	submissionsAcceptedTotal atomic.Uint64
	submissionsRejectedTotal atomic.Uint64
	jobsReceivedTotal        atomic.Uint64
	jobsSucceededTotal       atomic.Uint64
	jobsFailedTotal          atomic.Uint64
	documentsDeletedTotal    atomic.Uint64
	cleanupFailuresTotal     atomic.Uint64

	jobDuration = newHistogram([]float64{250, 1000, 5000, 15000, 60000, 300000, 900000, 1800000})
)

// IncSubmissionAccepted increments the accepted-submissions counter.
func IncSubmissionAccepted() { submissionsAcceptedTotal.Add(1) }

// IncSubmissionRejected increments the rejected-submissions counter.
func IncSubmissionRejected() { submissionsRejectedTotal.Add(1) }

// IncJobReceived increments the jobs-received counter.
func IncJobReceived() { jobsReceivedTotal.Add(1) }

// IncJobSucceeded increments the jobs-succeeded counter.
func IncJobSucceeded() { jobsSucceededTotal.Add(1) }

// IncJobFailed increments the jobs-failed counter.
func IncJobFailed() { jobsFailedTotal.Add(1) }

// IncDocumentDeleted increments the cleaned-up-documents counter.
func IncDocumentDeleted() { documentsDeletedTotal.Add(1) }

// IncCleanupFailed increments the cleanup-failure counter.
func IncCleanupFailed() { cleanupFailuresTotal.Add(1) }

// ObserveJobDurationMs records a job execution duration in milliseconds.
func ObserveJobDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	jobDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "submissions_accepted_total", "Total accepted analysis submissions", submissionsAcceptedTotal.Load())
	writeCounter(&buf, "submissions_rejected_total", "Total rejected analysis submissions", submissionsRejectedTotal.Load())
	writeCounter(&buf, "jobs_received_total", "Total jobs received by executors", jobsReceivedTotal.Load())
	writeCounter(&buf, "jobs_succeeded_total", "Total jobs that reached success", jobsSucceededTotal.Load())
	writeCounter(&buf, "jobs_failed_total", "Total jobs that reached failed", jobsFailedTotal.Load())
	writeCounter(&buf, "documents_deleted_total", "Total transient documents deleted", documentsDeletedTotal.Load())
	writeCounter(&buf, "cleanup_failures_total", "Total cleanup attempts that failed", cleanupFailuresTotal.Load())
	writeHistogram(&buf, "job_duration_ms", "Job execution duration in milliseconds", jobDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
