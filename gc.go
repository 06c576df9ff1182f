// Index garbage collector: a single-producer, multi-consumer-safe queue of
// deferred reclaim jobs, modelled as a two-epoch reclamation scheme over a
// transaction-id watermark.
//
// A job is enqueued whenever a skip list node is logically removed. It
// records how many passes of "no reader is older than the watermark" must
// elapse before the node's memory can actually be reused (two, by
// default) and the Collect callback that performs the reclaim. The
// collector drains jobs whose last-pass transaction is below
// the current watermark on every tick; a background Run loop is provided
// for production use, and a synchronous Drain is provided for
// deterministic tests.
package ordix

import (
	"sync"
	"time"
)

// Job is one deferred reclaim unit.
type Job struct {
	Passes     int   // total passes required before Collect frees memory; 0 defaults to 2
	passesLeft int
	LastPassTx TxID  // the job is eligible for its next pass once watermark > LastPassTx
	Collect    func() // invoked exactly once, on the final pass, to release the memory
}

// WatermarkFunc reports the oldest transaction id any active reader might
// still observe. A node whose DeletedBy stamp is below this watermark can
// be safely unlinked from a reader's point of view.
type WatermarkFunc func() TxID

// GarbageCollector drains deferred reclaim jobs as the watermark advances.
type GarbageCollector struct {
	mu        sync.Mutex
	jobs      []*Job
	watermark WatermarkFunc

	stop chan struct{}
	done chan struct{}
}

// NewGarbageCollector constructs a collector. watermark supplies the
// oldest-active-reader transaction id; if nil, every job is treated as
// immediately eligible (useful for tests with no concurrent readers to
// track).
func NewGarbageCollector(watermark WatermarkFunc) *GarbageCollector {
	if watermark == nil {
		watermark = func() TxID { return MaxTxID }
	}
	return &GarbageCollector{watermark: watermark}
}

// Enqueue adds a job. Passes defaults to 2 if unset.
func (gc *GarbageCollector) Enqueue(j Job) {
	if j.Passes <= 0 {
		j.Passes = 2
	}
	j.passesLeft = j.Passes
	gc.mu.Lock()
	gc.jobs = append(gc.jobs, &j)
	gc.mu.Unlock()
}

// Pending reports the number of jobs still awaiting their final pass.
func (gc *GarbageCollector) Pending() int {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return len(gc.jobs)
}

// Drain runs one synchronous collection tick: every job whose LastPassTx
// is below the current watermark gets one pass; a job reaching zero
// remaining passes is removed from the queue. Returns the number of jobs
// that completed their final pass this tick.
func (gc *GarbageCollector) Drain() int {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	wm := gc.watermark()
	completed := 0
	remaining := gc.jobs[:0]
	for _, j := range gc.jobs {
		if j.LastPassTx >= wm {
			remaining = append(remaining, j)
			continue
		}
		j.passesLeft--
		if j.passesLeft <= 0 {
			if j.Collect != nil {
				j.Collect()
			}
			completed++
			continue
		}
		remaining = append(remaining, j)
	}
	gc.jobs = remaining
	return completed
}

// Run starts a background goroutine that calls Drain every interval until
// Stop is called. Safe to call at most once per collector.
func (gc *GarbageCollector) Run(interval time.Duration) {
	gc.mu.Lock()
	if gc.stop != nil {
		gc.mu.Unlock()
		return
	}
	gc.stop = make(chan struct{})
	gc.done = make(chan struct{})
	gc.mu.Unlock()

	go func() {
		defer close(gc.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gc.stop:
				return
			case <-ticker.C:
				gc.Drain()
			}
		}
	}()
}

// Stop halts the background loop started by Run, if any, and waits for it
// to exit.
func (gc *GarbageCollector) Stop() {
	gc.mu.Lock()
	stop := gc.stop
	done := gc.done
	gc.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
