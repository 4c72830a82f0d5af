package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	name     string
	schedule string
	failures int32 // fail this many runs before succeeding
	runs     atomic.Int32
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	n := j.runs.Add(1)
	if n <= j.failures {
		return errors.New("transient failure")
	}
	return nil
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	job := &fakeJob{name: "retrain", schedule: "0 0 2 1 * *"}
	require.NoError(t, s.AddJob(job))

	// duplicate names are rejected
	assert.Error(t, s.AddJob(&fakeJob{name: "retrain", schedule: "0 0 2 1 * *"}))

	// invalid cron expressions are rejected
	assert.Error(t, s.AddJob(&fakeJob{name: "broken", schedule: "not a schedule"}))

	_, err := s.GetJobHistory("retrain")
	assert.NoError(t, err)
	_, err = s.GetJobHistory("missing")
	assert.Error(t, err)
}

func TestScheduler_RunJobRetries(t *testing.T) {
	s := New(zerolog.Nop())
	s.retryDelay = 0

	job := &fakeJob{name: "flaky", schedule: "0 0 2 1 * *", failures: 2}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("flaky"))

	require.Eventually(t, func() bool {
		history, err := s.GetJobHistory("flaky")
		if err != nil {
			return false
		}
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(history.Results) == 1
	}, 5*time.Second, 10*time.Millisecond)

	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	last, ok := history.LastResult()
	require.True(t, ok)
	assert.True(t, last.Success)
	assert.Equal(t, int32(3), job.runs.Load()) // two failures, one success
}

func TestScheduler_RunJobExhaustsRetries(t *testing.T) {
	s := New(zerolog.Nop())
	s.retryDelay = 0

	job := &fakeJob{name: "doomed", schedule: "0 0 2 1 * *", failures: 100}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("doomed"))

	require.Eventually(t, func() bool {
		history, _ := s.GetJobHistory("doomed")
		s.mu.RLock()
		defer s.mu.RUnlock()
		return history != nil && len(history.Results) == 1
	}, 5*time.Second, 10*time.Millisecond)

	history, err := s.GetJobHistory("doomed")
	require.NoError(t, err)
	last, _ := history.LastResult()
	assert.False(t, last.Success)
	assert.Equal(t, "transient failure", last.Error)
	assert.Equal(t, int32(4), job.runs.Load()) // first attempt plus three retries
}

func TestScheduler_RunJobUnknown(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.RunJob("nope"))
}

func TestJobHistory_Limit(t *testing.T) {
	var h JobHistory
	for i := 0; i < historyLimit+20; i++ {
		h.AddResult(JobResult{JobName: "j", Error: fmt.Sprintf("run %d", i)})
	}

	assert.Len(t, h.Results, historyLimit)
	// the oldest 20 were dropped
	assert.Equal(t, "run 20", h.Results[0].Error)
	last, ok := h.LastResult()
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("run %d", historyLimit+19), last.Error)
}

func TestJobHistory_SuccessRate(t *testing.T) {
	var h JobHistory
	assert.Equal(t, 0.0, h.SuccessRate())

	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: false})
	h.AddResult(JobResult{Success: true})

	assert.InDelta(t, 0.75, h.SuccessRate(), 1e-12)

	_, ok := h.LastResult()
	assert.True(t, ok)
}
