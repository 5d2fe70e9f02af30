package apkbuilder

import "sync"

// ProgressFunc receives build progress in percent with a short label. It is
// called synchronously from the build goroutine and must not block.
type ProgressFunc func(percent int, label string)

// progressTracker forwards progress, never letting the percentage go down.
type progressTracker struct {
	mu    sync.Mutex
	last  int
	label string
	fn    ProgressFunc
}

func newProgressTracker(fn ProgressFunc) *progressTracker {
	return &progressTracker{last: -1, fn: fn}
}

func (p *progressTracker) report(percent int, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	percent = min(max(percent, p.last, 0), 100)
	if percent == p.last && label == p.label {
		return
	}
	p.last, p.label = percent, label

	if p.fn != nil {
		p.fn(percent, label)
	}
}
