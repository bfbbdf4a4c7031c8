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
	renderStartedTotal   atomic.Uint64
	renderCompletedTotal atomic.Uint64
	renderFailedTotal    atomic.Uint64
	renderSkippedTotal   atomic.Uint64
	renderPagesTotal     atomic.Uint64

	renderJobsReceived             atomic.Uint64
	renderJobsDeletedUnrecoverable atomic.Uint64

	renderDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 20000, 30000, 60000})
)

// IncRenderStarted increments the started counter.
func IncRenderStarted() {
	renderStartedTotal.Add(1)
}

// IncRenderCompleted increments the completed counter and adds the page count.
func IncRenderCompleted(pages int) {
	renderCompletedTotal.Add(1)
	if pages > 0 {
		renderPagesTotal.Add(uint64(pages))
	}
}

// IncRenderFailed increments the failed counter.
func IncRenderFailed() {
	renderFailedTotal.Add(1)
}

// IncRenderSkipped counts triggers dropped because the resume has no template.
func IncRenderSkipped() {
	renderSkippedTotal.Add(1)
}

// IncRenderJobsReceived counts queue messages picked up by the worker.
func IncRenderJobsReceived() {
	renderJobsReceived.Add(1)
}

// IncRenderJobsDeletedUnrecoverable counts malformed queue messages dropped by the worker.
func IncRenderJobsDeletedUnrecoverable() {
	renderJobsDeletedUnrecoverable.Add(1)
}

// ObserveRenderDurationMs records a render duration in milliseconds.
func ObserveRenderDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	renderDuration.Observe(value)
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
	writeCounter(&buf, "screenshot_render_started_total", "Total screenshot renders started", renderStartedTotal.Load())
	writeCounter(&buf, "screenshot_render_completed_total", "Total screenshot renders completed", renderCompletedTotal.Load())
	writeCounter(&buf, "screenshot_render_failed_total", "Total screenshot renders failed", renderFailedTotal.Load())
	writeCounter(&buf, "screenshot_render_skipped_total", "Render triggers skipped for resumes without a template", renderSkippedTotal.Load())
	writeCounter(&buf, "screenshot_pages_total", "Total screenshot pages uploaded", renderPagesTotal.Load())
	writeCounter(&buf, "render_jobs_received_total", "Render queue messages received by the worker", renderJobsReceived.Load())
	writeCounter(&buf, "render_jobs_deleted_unrecoverable_total", "Malformed render queue messages dropped", renderJobsDeletedUnrecoverable.Load())
	writeHistogram(&buf, "screenshot_render_duration_ms", "Screenshot render duration in milliseconds", renderDuration.Snapshot())
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
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
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
