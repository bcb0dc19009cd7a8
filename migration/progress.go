package migration

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker writes migration progress lines to a writer.
type ProgressTracker struct {
	writer         io.Writer
	total          int
	current        int
	reportInterval int
	lastReported   int
	baseline       int
	label          string
	startTime      time.Time
	now            func() time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a tracker reporting every reportInterval records.
func NewProgressTracker(writer io.Writer, total, reportInterval int, now func() time.Time) *ProgressTracker {
	if now == nil {
		now = time.Now
	}
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: max(reportInterval, 1),
		now:            now,
	}
}

// Start begins tracking at current, the number of records already processed
// by earlier runs. The rate only counts records processed since Start.
func (p *ProgressTracker) Start(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = p.now()
	p.started = true
	p.current = min(current, p.total)
	p.baseline = p.current
	p.lastReported = p.current
}

// SetLabel names the source currently being processed.
func (p *ProgressTracker) SetLabel(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label = label
}

// Update sets the number of processed records.
func (p *ProgressTracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.current = min(current, p.total)
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Finish prints the final line. complete forces the count to the total.
func (p *ProgressTracker) Finish(complete bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	if complete {
		p.current = p.total
	}
	p.report()
	fmt.Fprintln(p.writer)
}

// Rate returns records per second since Start.
func (p *ProgressTracker) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate()
}

func (p *ProgressTracker) rate() float64 {
	if !p.started {
		return 0
	}
	elapsed := p.now().Sub(p.startTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.current-p.baseline) / elapsed
}

// report must be called with the lock held.
func (p *ProgressTracker) report() {
	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}
	label := ""
	if p.label != "" {
		label = "[" + p.label + "] "
	}
	fmt.Fprintf(p.writer, "\r%sProgress: %d/%d (%.1f%%) - %.1f records/s",
		label, p.current, p.total, percentage, p.rate())
}
