package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsLifecycle(t *testing.T) {
	t.Parallel()

	s := New()
	assert.True(t, s.Drained())
	assert.True(t, s.AllDone(0))
	assert.False(t, s.AllDone(1))

	s.Begin()
	assert.False(t, s.Drained())
	s.AddQualified()
	s.Finish()

	assert.Equal(t, Snapshot{Completed: 1, Qualified: 1}, s.Snapshot())
	assert.True(t, s.Drained())
	assert.True(t, s.AllDone(1))
}

func TestFinishNeverGoesNegative(t *testing.T) {
	t.Parallel()

	s := New()
	s.Finish()
	assert.Equal(t, Snapshot{Completed: 1}, s.Snapshot())
}

func TestStatsConcurrentConservation(t *testing.T) {
	t.Parallel()

	s := New()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				s.Begin()
				s.Finish()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, Snapshot{Completed: 1000}, s.Snapshot())
}

func TestProgress(t *testing.T) {
	t.Parallel()

	p := Snapshot{Completed: 30, Qualified: 6}.Progress(120, 3*time.Minute)
	assert.InDelta(t, 25.0, p.Percent, 0.001)
	assert.InDelta(t, 10.0, p.RatePerMinute, 0.001)
	assert.InDelta(t, 20.0, p.QualifiedRate, 0.001)
	assert.Equal(t, 9*time.Minute, p.ETA)

	idle := Snapshot{}.Progress(10, 0)
	assert.Zero(t, idle.ETA)
	assert.Zero(t, idle.RatePerMinute)

	done := Snapshot{Completed: 10}.Progress(10, time.Minute)
	assert.Zero(t, done.ETA)
	assert.InDelta(t, 100.0, done.Percent, 0.001)

	assert.InDelta(t, 2.0, Rate(4, 2*time.Minute), 0.001)
	assert.Zero(t, Rate(4, 0))
}

func TestSummary(t *testing.T) {
	t.Parallel()

	s := Summary{Total: 4, Completed: 4, Qualified: 1}
	assert.True(t, s.Complete())
	assert.InDelta(t, 25.0, s.QualificationRate(), 0.001)

	s.Completed = 3
	assert.False(t, s.Complete())
	s.Completed, s.InProgress = 4, 1
	assert.False(t, s.Complete())
	assert.Zero(t, Summary{}.QualificationRate())
}
