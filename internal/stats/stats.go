// Package stats tracks run-wide progress counters shared by workers and the
// result writer.
package stats

import (
	"sync"
	"time"
)

// Stats holds the completed, qualified and in-progress counters. Every
// read-modify-write happens under one mutex.
type Stats struct {
	mu         sync.Mutex
	completed  int
	qualified  int
	inProgress int
}

// Snapshot is a consistent copy of the counters.
type Snapshot struct {
	Completed  int `json:"completed"`
	Qualified  int `json:"qualified"`
	InProgress int `json:"in_progress"`
}

// New returns zeroed stats.
func New() *Stats {
	return &Stats{}
}

// Begin marks one work item as picked up by a worker.
func (s *Stats) Begin() {
	s.mu.Lock()
	s.inProgress++
	s.mu.Unlock()
}

// Finish marks one work item as done, successful or not.
func (s *Stats) Finish() {
	s.mu.Lock()
	if s.inProgress > 0 {
		s.inProgress--
	}
	s.completed++
	s.mu.Unlock()
}

// AddQualified counts one work item as qualified.
func (s *Stats) AddQualified() {
	s.mu.Lock()
	s.qualified++
	s.mu.Unlock()
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Completed: s.completed, Qualified: s.qualified, InProgress: s.inProgress}
}

// Drained reports whether no worker is holding an item.
func (s *Stats) Drained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProgress == 0
}

// AllDone reports whether every one of total items has been completed.
func (s *Stats) AllDone(total int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inProgress == 0 && s.completed >= total
}

// Progress is derived reporting data for a snapshot.
type Progress struct {
	Snapshot
	Total         int           `json:"total"`
	Percent       float64       `json:"percent"`
	RatePerMinute float64       `json:"rate_per_minute"`
	QualifiedRate float64       `json:"qualified_rate"`
	Elapsed       time.Duration `json:"elapsed"`
	ETA           time.Duration `json:"eta"`
}

// Progress computes completion percentage, throughput and ETA after elapsed.
// ETA is zero when nothing has completed yet or the run is finished.
func (s Snapshot) Progress(total int, elapsed time.Duration) Progress {
	p := Progress{Snapshot: s, Total: total, Elapsed: elapsed}
	if total > 0 {
		p.Percent = float64(s.Completed) / float64(total) * 100
	}
	if s.Completed > 0 {
		p.QualifiedRate = float64(s.Qualified) / float64(s.Completed) * 100
	}
	if minutes := elapsed.Minutes(); minutes > 0 {
		p.RatePerMinute = float64(s.Completed) / minutes
	}
	remaining := total - s.Completed
	if remaining > 0 && p.RatePerMinute > 0 {
		p.ETA = time.Duration(float64(remaining) / p.RatePerMinute * float64(time.Minute))
	}
	return p
}

// Rate returns items per minute for a local counter.
func Rate(count int, elapsed time.Duration) float64 {
	if minutes := elapsed.Minutes(); minutes > 0 {
		return float64(count) / minutes
	}
	return 0
}

// Summary is the final accounting of one run.
type Summary struct {
	RunID         string        `json:"run_id"`
	Total         int           `json:"total"`
	Completed     int           `json:"completed"`
	Qualified     int           `json:"qualified"`
	InProgress    int           `json:"in_progress"`
	Workers       int           `json:"workers"`
	FailedWorkers int           `json:"failed_workers"`
	Started       time.Time     `json:"started"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Complete reports whether every item was accounted for.
func (s Summary) Complete() bool {
	return s.Completed == s.Total && s.InProgress == 0
}

// QualificationRate returns qualified items as a percentage of completed ones.
func (s Summary) QualificationRate() float64 {
	if s.Completed == 0 {
		return 0
	}
	return float64(s.Qualified) / float64(s.Completed) * 100
}
