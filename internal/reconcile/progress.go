package reconcile

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ProgressReporter logs the cumulative progress of a bulk run at a fixed
// wall-clock interval, independent of how many items complete in between.
// Stop must be called to release the timer, or it keeps firing after the
// work is done.
type ProgressReporter struct {
	logger   *zap.SugaredLogger
	label    string
	total    int64
	done     atomic.Int64
	ticker   *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once
}

// NewProgressReporter starts a reporter for total work items, logging every
// interval until Stop is called.
func NewProgressReporter(logger *zap.SugaredLogger, label string, total int, interval time.Duration) *ProgressReporter {
	p := &ProgressReporter{
		logger: logger,
		label:  label,
		total:  int64(total),
		ticker: time.NewTicker(interval),
		stop:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Increment records n completed work items.
func (p *ProgressReporter) Increment(n int) {
	p.done.Add(int64(n))
}

// Percent returns the cumulative completion percentage, capped at 100.
func (p *ProgressReporter) Percent() int {
	if p.total <= 0 {
		return 100
	}
	pct := p.done.Load() * 100 / p.total
	if pct > 100 {
		pct = 100
	}
	return int(pct)
}

// Stop releases the background timer. Safe to call more than once.
func (p *ProgressReporter) Stop() {
	p.stopOnce.Do(func() {
		p.ticker.Stop()
		close(p.stop)
	})
}

func (p *ProgressReporter) run() {
	for {
		select {
		case <-p.stop:
			return
		case <-p.ticker.C:
			p.logger.Infow("progress", "task", p.label, "percent", p.Percent(), "done", p.done.Load(), "total", p.total)
		}
	}
}
