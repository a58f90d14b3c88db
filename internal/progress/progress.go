// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package progress tracks and displays the progress of a batch of work.
package progress

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	barmodel "github.com/charmbracelet/bubbles/progress"
	"github.com/muesli/termenv"
)

// Func is called to report that done out of total units of work have finished.
// It may be called concurrently.
type Func func(done, total int)

// Counter counts completed units of work out of a fixed total.
// It is safe to call Inc from multiple goroutines.
type Counter struct {
	done   atomic.Int64
	total  int
	report Func
}

// NewCounter returns a new counter for total units of work.
// If report is not nil, it is called immediately with (0, total)
// and again after every call to [*Counter.Inc].
func NewCounter(total int, report Func) *Counter {
	c := &Counter{total: total, report: report}
	if report != nil {
		report(0, total)
	}
	return c
}

// Inc records that one more unit of work has finished
// and returns the new count.
func (c *Counter) Inc() int {
	n := int(c.done.Add(1))
	if c.report != nil {
		c.report(n, c.total)
	}
	return n
}

// Done returns the number of units of work finished so far.
func (c *Counter) Done() int {
	return int(c.done.Load())
}

// DefaultWidth is the number of characters in the bar drawn by [Bar].
const DefaultWidth = 40

// Bar draws a single, continuously rewritten progress line
// of the form "[elapsed] [bar] done/total (eta)".
// Its Update method can be used as a [Func].
type Bar struct {
	w     io.Writer
	start time.Time
	now   func() time.Time

	mu       sync.Mutex
	model    barmodel.Model
	lastDone int
	drawn    bool
	finished bool
}

// NewBar returns a new progress bar that draws to w,
// which is usually a terminal.
// profile selects the colors used for the bar;
// [termenv.Ascii] draws it without any color.
func NewBar(w io.Writer, profile termenv.Profile) *Bar {
	return &Bar{
		w:        w,
		start:    time.Now(),
		now:      time.Now,
		model:    newModel(DefaultWidth, profile),
		lastDone: -1,
	}
}

func newModel(width int, profile termenv.Profile) barmodel.Model {
	return barmodel.New(
		barmodel.WithWidth(max(width, 0)),
		barmodel.WithoutPercentage(),
		barmodel.WithFillCharacters('#', '-'),
		barmodel.WithColorProfile(profile),
	)
}

// SetWidth sets the number of cells in the bar itself
// (not including the counters around it).
func (b *Bar) SetWidth(n int) {
	b.mu.Lock()
	b.model.Width = max(n, 0)
	b.mu.Unlock()
}

// Update redraws the bar.
// Reports may arrive out of order when work finishes concurrently,
// so an update with fewer finished units than already drawn is ignored.
func (b *Bar) Update(done, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished || done < b.lastDone {
		return
	}
	b.lastDone = done
	line := formatLine(b.now().Sub(b.start), b.model.ViewAs(fraction(done, total)), done, total)
	io.WriteString(b.w, "\r"+line+"\x1b[K")
	b.drawn = true
}

// Finish ends the progress line.
// Subsequent calls to Update are ignored.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.finished = true
	if b.drawn {
		io.WriteString(b.w, "\n")
	}
}

// Format renders one progress line with a bar width characters wide
// without any colors or terminal control sequences.
func Format(elapsed time.Duration, done, total int, width int) string {
	bar := newModel(width, termenv.Ascii).ViewAs(fraction(done, total))
	return formatLine(elapsed, bar, done, total)
}

func formatLine(elapsed time.Duration, bar string, done, total int) string {
	return fmt.Sprintf("[%s] [%s] %d/%d (%s)",
		formatElapsed(elapsed),
		bar,
		done, total,
		estimateRemaining(elapsed, done, total))
}

// fraction returns the finished fraction of the work, between 0 and 1.
// An empty batch is complete.
func fraction(done, total int) float64 {
	if total <= 0 {
		return 1
	}
	return min(max(float64(done)/float64(total), 0), 1)
}

// formatElapsed formats d as HH:MM:SS.
func formatElapsed(d time.Duration) string {
	d = max(d, 0).Truncate(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// estimateRemaining extrapolates the time left from the average rate so far.
func estimateRemaining(elapsed time.Duration, done, total int) time.Duration {
	if done <= 0 || done >= total {
		return 0
	}
	perUnit := elapsed / time.Duration(done)
	return (perUnit * time.Duration(total-done)).Round(time.Second)
}
