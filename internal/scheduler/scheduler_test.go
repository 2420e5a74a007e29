package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelzeko/soil-monitor/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJobs struct {
	samples   atomic.Int32
	prunes    atomic.Int32
	sampleErr error
}

func (j *countingJobs) SampleSoil(context.Context) (entities.Reading, error) {
	j.samples.Add(1)
	return entities.Reading{}, j.sampleErr
}

func (j *countingJobs) PruneReadings(context.Context, time.Duration) (int64, error) {
	j.prunes.Add(1)
	return 0, nil
}

func TestNewRegistersJobs(t *testing.T) {
	s, err := New(&countingJobs{}, Config{SampleSchedule: "*/5 * * * *", PruneSchedule: "0 3 * * *", Retention: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())
}

func TestNewSkipsPruningWithoutRetention(t *testing.T) {
	s, err := New(&countingJobs{}, Config{SampleSchedule: "@every 1m", PruneSchedule: "0 3 * * *"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries())
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	_, err := New(&countingJobs{}, Config{SampleSchedule: "every now and then"})
	assert.Error(t, err)

	_, err = New(&countingJobs{}, Config{PruneSchedule: "61 * * * *", Retention: time.Hour})
	assert.Error(t, err)
}

func TestStartSamplesImmediately(t *testing.T) {
	jobs := &countingJobs{sampleErr: errors.New("bus error")}
	s, err := New(jobs, Config{SampleSchedule: "0 0 1 1 *"})
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	assert.Equal(t, int32(1), jobs.samples.Load())
	assert.Zero(t, jobs.prunes.Load())
}

func TestRunPruneUsesRetention(t *testing.T) {
	jobs := &countingJobs{}
	s, err := New(jobs, Config{Retention: time.Hour, PruneSchedule: "@daily"})
	require.NoError(t, err)

	s.runPrune()
	assert.Equal(t, int32(1), jobs.prunes.Load())
}
