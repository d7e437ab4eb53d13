// Package common holds small helpers shared by the measurement stages.
package common

import (
	"log/slog"
	"time"
)

// Stopwatch records named laps, one per pipeline stage.
type Stopwatch struct {
	start time.Time
	last  time.Time
	names []string
	laps  []time.Duration
}

// NewStopwatch starts a stopwatch.
func NewStopwatch() *Stopwatch {
	now := time.Now()
	return &Stopwatch{start: now, last: now}
}

// Lap records the time since the previous lap under name and returns it.
func (s *Stopwatch) Lap(name string) time.Duration {
	now := time.Now()
	d := now.Sub(s.last)
	s.last = now
	s.names = append(s.names, name)
	s.laps = append(s.laps, d)
	return d
}

// Total is the time since the stopwatch started.
func (s *Stopwatch) Total() time.Duration {
	return time.Since(s.start)
}

// Laps returns the recorded laps keyed by name. Repeated names accumulate.
func (s *Stopwatch) Laps() map[string]time.Duration {
	out := make(map[string]time.Duration, len(s.names))
	for i, n := range s.names {
		out[n] += s.laps[i]
	}
	return out
}

// LogValue renders the laps in recording order as a slog group.
func (s *Stopwatch) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(s.names)+1)
	for i, n := range s.names {
		attrs = append(attrs, slog.Duration(n, s.laps[i]))
	}
	attrs = append(attrs, slog.Duration("total", s.Total()))
	return slog.GroupValue(attrs...)
}
