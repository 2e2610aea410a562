// Package render turns spectrum data into annotated PNG images: scrolling
// waterfalls for live and recorded sessions, and single-trace spectrum
// plots for snapshots.
package render

import (
	"fmt"
	"time"
)

// Row is one waterfall line: a spectrum captured at one instant.
type Row struct {
	Timestamp time.Time
	Power     []float64 // dB per bin, most negative frequency offset first
}

// Waterfall holds the most recent spectrum rows in arrival order, up to a
// fixed capacity. Pushing onto a full buffer evicts the oldest row, so the
// buffer always shows the trailing window of the capture.
type Waterfall struct {
	rows     []Row
	start    int
	count    int
	capacity int
}

// NewWaterfall creates a buffer holding up to capacity rows.
func NewWaterfall(capacity int) (*Waterfall, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("waterfall capacity must be positive, got %d", capacity)
	}
	return &Waterfall{
		rows:     make([]Row, capacity),
		capacity: capacity,
	}, nil
}

// Push appends a row, evicting the oldest when the buffer is full.
func (w *Waterfall) Push(r Row) {
	if w.count < w.capacity {
		w.rows[(w.start+w.count)%w.capacity] = r
		w.count++
		return
	}
	w.rows[w.start] = r
	w.start = (w.start + 1) % w.capacity
}

// Len returns the number of rows currently held.
func (w *Waterfall) Len() int { return w.count }

// Capacity returns the maximum number of rows the buffer can hold.
func (w *Waterfall) Capacity() int { return w.capacity }

// Rows returns the held rows, oldest first.
func (w *Waterfall) Rows() []Row {
	out := make([]Row, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.rows[(w.start+i)%w.capacity]
	}
	return out
}
