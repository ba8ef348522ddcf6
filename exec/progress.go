package exec

import "sync/atomic"

// ProgressTracker counts processed/succeeded/failed/cache-hit/cache-miss
// messages in a thread-safe, monotonic fashion (§4.F.3). Consumers include
// a TTY progress display that colours bars by error rate (≤1% green,
// ≤5% yellow, >5% red); Colour below realizes that classification so a
// display only needs to call it.
type ProgressTracker struct {
	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	cacheHit  atomic.Int64
	cacheMiss atomic.Int64

	onProgress func(Snapshot)
}

// Snapshot is an immutable read of the tracker's counters at one instant.
type Snapshot struct {
	Processed int64
	Succeeded int64
	Failed    int64
	CacheHit  int64
	CacheMiss int64
}

// NewProgressTracker constructs a tracker; onProgress, if non-nil, is
// invoked after every emitted message (§4.F.1 step 5).
func NewProgressTracker(onProgress func(Snapshot)) *ProgressTracker {
	return &ProgressTracker{onProgress: onProgress}
}

func (t *ProgressTracker) recordSuccess() {
	t.processed.Add(1)
	t.succeeded.Add(1)
	t.notify()
}

func (t *ProgressTracker) recordFailure() {
	t.processed.Add(1)
	t.failed.Add(1)
	t.notify()
}

func (t *ProgressTracker) recordCacheHit() {
	t.cacheHit.Add(1)
	t.notify()
}

func (t *ProgressTracker) recordCacheMiss() {
	t.cacheMiss.Add(1)
	t.notify()
}

func (t *ProgressTracker) notify() {
	if t.onProgress != nil {
		t.onProgress(t.Snapshot())
	}
}

// Snapshot returns the current counter values.
func (t *ProgressTracker) Snapshot() Snapshot {
	return Snapshot{
		Processed: t.processed.Load(),
		Succeeded: t.succeeded.Load(),
		Failed:    t.failed.Load(),
		CacheHit:  t.cacheHit.Load(),
		CacheMiss: t.cacheMiss.Load(),
	}
}

// Colour classifies the error rate for a TTY progress bar: green at or
// below 1%, yellow at or below 5%, red above that (§4.F.3).
func (s Snapshot) Colour() string {
	if s.Processed == 0 {
		return "green"
	}
	rate := float64(s.Failed) / float64(s.Processed)
	switch {
	case rate <= 0.01:
		return "green"
	case rate <= 0.05:
		return "yellow"
	default:
		return "red"
	}
}
