package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-damage-assessor/pkg/models"
)

func TestJobRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryJobRegistry()

	require.NoError(t, reg.Create(ctx, models.AnalysisJob{ID: "job-1", Progress: 42, Status: models.JobCompleted}))
	job, err := reg.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.False(t, job.CreatedAt.IsZero())

	require.NoError(t, reg.Start(ctx, "job-1", "Loading images"))
	require.NoError(t, reg.UpdateProgress(ctx, "job-1", 40, "classifying"))
	require.NoError(t, reg.UpdateProgress(ctx, "job-1", 20, "stale"))

	job, _ = reg.Get(ctx, "job-1")
	assert.Equal(t, models.JobProcessing, job.Status)
	assert.Equal(t, 40, job.Progress, "progress never regresses")

	require.NoError(t, reg.Complete(ctx, "job-1", "done"))
	job, _ = reg.Get(ctx, "job-1")
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "done", job.Message)
}

func TestJobRegistryRejectsInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryJobRegistry()
	require.NoError(t, reg.Create(ctx, models.AnalysisJob{ID: "job"}))

	assert.ErrorIs(t, reg.Complete(ctx, "job", ""), ErrInvalidTransition, "queued cannot complete")
	assert.ErrorIs(t, reg.UpdateProgress(ctx, "job", 10, ""), ErrInvalidTransition, "queued has no progress")

	require.NoError(t, reg.Start(ctx, "job", ""))
	require.NoError(t, reg.UpdateProgress(ctx, "job", 55, ""))
	require.NoError(t, reg.Fail(ctx, "job", "decode failed"))

	job, _ := reg.Get(ctx, "job")
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Equal(t, 55, job.Progress, "failure keeps the last progress")

	assert.ErrorIs(t, reg.Start(ctx, "job", ""), ErrInvalidTransition)
	assert.ErrorIs(t, reg.Complete(ctx, "job", ""), ErrInvalidTransition)
	assert.ErrorIs(t, reg.UpdateProgress(ctx, "job", 90, ""), ErrInvalidTransition)
}

func TestJobRegistryCancelBeforeStart(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryJobRegistry()

	require.NoError(t, reg.Create(ctx, models.AnalysisJob{ID: "job"}))
	require.NoError(t, reg.Fail(ctx, "job", "analysis cancelled"))

	job, err := reg.Get(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.ErrorIs(t, reg.Start(ctx, "job", "late start"), ErrInvalidTransition)
	require.NoError(t, reg.Delete(ctx, "job"))
}

func TestJobRegistryCreateAndLookupErrors(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryJobRegistry()

	assert.Error(t, reg.Create(ctx, models.AnalysisJob{}))
	require.NoError(t, reg.Create(ctx, models.AnalysisJob{ID: "dup"}))
	assert.ErrorIs(t, reg.Create(ctx, models.AnalysisJob{ID: "dup"}), ErrJobExists)

	_, err := reg.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, reg.Start(ctx, "missing", ""), ErrJobNotFound)
}

func TestJobRegistryDelete(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryJobRegistry()
	require.NoError(t, reg.Create(ctx, models.AnalysisJob{ID: "job"}))

	assert.ErrorIs(t, reg.Delete(ctx, "job"), ErrJobActive)
	require.NoError(t, reg.Start(ctx, "job", ""))
	assert.ErrorIs(t, reg.Delete(ctx, "job"), ErrJobActive)

	require.NoError(t, reg.Fail(ctx, "job", "boom"))
	require.NoError(t, reg.Delete(ctx, "job"))
	assert.ErrorIs(t, reg.Delete(ctx, "job"), ErrJobNotFound)
}

func TestJobRegistryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryJobRegistry()
	require.NoError(t, reg.Create(ctx, models.AnalysisJob{ID: "job"}))

	job, _ := reg.Get(ctx, "job")
	job.Status = models.JobCompleted
	job.Progress = 100

	stored, _ := reg.Get(ctx, "job")
	assert.Equal(t, models.JobQueued, stored.Status)
	assert.Equal(t, 0, stored.Progress)
}

func TestJobRegistryActive(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryJobRegistry()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, reg.Create(ctx, models.AnalysisJob{ID: id}))
	}
	require.NoError(t, reg.Start(ctx, "b", ""))
	require.NoError(t, reg.Complete(ctx, "b", ""))

	assert.ElementsMatch(t, []string{"a", "c"}, reg.Active(ctx))
}

func TestJobRegistryConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryJobRegistry()

	const jobs = 8
	for i := 0; i < jobs; i++ {
		id := fmt.Sprintf("job-%d", i)
		require.NoError(t, reg.Create(ctx, models.AnalysisJob{ID: id}))
		require.NoError(t, reg.Start(ctx, id, ""))
	}

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		id := fmt.Sprintf("job-%d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for p := 1; p <= 90; p++ {
				_ = reg.UpdateProgress(ctx, id, p, "")
			}
		}()
		go func() {
			defer wg.Done()
			last := 0
			for k := 0; k < 200; k++ {
				job, err := reg.Get(ctx, id)
				if err != nil {
					t.Error(err)
					return
				}
				if job.Progress < last {
					t.Errorf("progress regressed for %s: %d < %d", id, job.Progress, last)
					return
				}
				last = job.Progress
			}
		}()
	}
	wg.Wait()

	for i := 0; i < jobs; i++ {
		job, _ := reg.Get(ctx, fmt.Sprintf("job-%d", i))
		assert.Equal(t, 90, job.Progress)
	}
}
