// Package progress reports how far a mirror run has come.
//
// A Tracker follows one operation at a time. Update feeds it the number of
// finished items; the tracker keeps a moving average of the completion rate
// and derives an ETA from it.
package progress

import (
	"fmt"
	"io"
	"time"
)

// Tracker interface defines methods for tracking operation progress
type Tracker interface {
	Start(operation string) *Operation
	Update(current, total int64)
	Complete()
	Error(err error)
}

// Status of a tracked operation
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Operation represents a tracked operation
type Operation struct {
	Name         string
	StartTime    time.Time
	Status       string
	LastUpdate   time.Time
	LastCurrent  int64
	LastTotal    int64
	ProgressRate float64 // items per second
	RateHistory  []float64
	EstimatedETA time.Time
}

const (
	rateHistorySize = 10 // Keep last 10 rate measurements for averaging
)

func newOperation(name string, now time.Time) *Operation {
	return &Operation{
		Name:        name,
		StartTime:   now,
		LastUpdate:  now,
		Status:      StatusInProgress,
		RateHistory: make([]float64, 0, rateHistorySize),
	}
}

// observe records a progress sample and refreshes the rate and ETA
func (o *Operation) observe(now time.Time, current, total int64) {
	if elapsed := now.Sub(o.LastUpdate).Seconds(); elapsed > 0 && current > o.LastCurrent {
		rate := float64(current-o.LastCurrent) / elapsed
		if len(o.RateHistory) >= rateHistorySize {
			o.RateHistory = o.RateHistory[1:]
		}
		o.RateHistory = append(o.RateHistory, rate)

		var sum float64
		for _, r := range o.RateHistory {
			sum += r
		}
		o.ProgressRate = sum / float64(len(o.RateHistory))

		if o.ProgressRate > 0 {
			remaining := float64(total-current) / o.ProgressRate
			o.EstimatedETA = now.Add(time.Duration(remaining * float64(time.Second)))
		}
	}

	o.LastUpdate = now
	o.LastCurrent = current
	o.LastTotal = total
}

// DefaultTracker keeps progress in memory without printing it
type DefaultTracker struct {
	CurrentOperation *Operation

	now func() time.Time
}

func (t *DefaultTracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Start begins tracking a new operation
func (t *DefaultTracker) Start(operation string) *Operation {
	t.CurrentOperation = newOperation(operation, t.clock())
	return t.CurrentOperation
}

// Update updates the progress of the current operation
func (t *DefaultTracker) Update(current, total int64) {
	if t.CurrentOperation != nil {
		t.CurrentOperation.observe(t.clock(), current, total)
	}
}

// Complete marks the operation as completed
func (t *DefaultTracker) Complete() {
	if t.CurrentOperation != nil {
		t.CurrentOperation.Status = StatusCompleted
	}
}

// Error marks the operation as failed
func (t *DefaultTracker) Error(error) {
	if t.CurrentOperation != nil {
		t.CurrentOperation.Status = StatusFailed
	}
}

// ConsoleTracker prints one line per update to a writer
type ConsoleTracker struct {
	w                io.Writer
	now              func() time.Time
	currentOperation *Operation
}

// NewConsoleTracker creates a new console-based progress tracker
func NewConsoleTracker(w io.Writer) *ConsoleTracker {
	return &ConsoleTracker{w: w, now: time.Now}
}

// Start begins tracking a new operation
func (t *ConsoleTracker) Start(operation string) *Operation {
	t.currentOperation = newOperation(operation, t.now())
	fmt.Fprintf(t.w, "Starting: %s\n", operation)
	return t.currentOperation
}

// Update prints "[current/total] percent (rate, ETA)" for the current operation
func (t *ConsoleTracker) Update(current, total int64) {
	op := t.currentOperation
	if op == nil || total <= 0 {
		return
	}

	now := t.now()
	op.observe(now, current, total)

	eta := "calculating..."
	if !op.EstimatedETA.IsZero() {
		if remaining := op.EstimatedETA.Sub(now).Round(time.Second); remaining > 0 {
			eta = remaining.String()
		} else {
			eta = "almost done"
		}
	}

	fmt.Fprintf(t.w, "[%d/%d] %s: %.2f%% (%.2f/sec, ETA: %s)\n",
		current, total, op.Name, float64(current)/float64(total)*100, op.ProgressRate, eta)
}

// Complete marks the current operation as completed
func (t *ConsoleTracker) Complete() {
	if t.currentOperation == nil {
		return
	}
	duration := t.now().Sub(t.currentOperation.StartTime).Round(time.Millisecond)
	fmt.Fprintf(t.w, "Completed: %s (took %v)\n", t.currentOperation.Name, duration)
	t.currentOperation = nil
}

// Error marks the current operation as failed
func (t *ConsoleTracker) Error(err error) {
	if t.currentOperation == nil {
		return
	}
	fmt.Fprintf(t.w, "Error: %s - %v\n", t.currentOperation.Name, err)
	t.currentOperation = nil
}
