package repository

import (
	"context"
	"errors"

	"go-damage-assessor/internal/resilience"
	"go-damage-assessor/pkg/models"
)

// StoreFault retries transport failures only. Missing records and read-only
// stores are answers, not outages, so they never trip a breaker.
func StoreFault(err error) resilience.Fault {
	switch {
	case IsNotFound(err), errors.Is(err, ErrReadOnly):
		return resilience.FaultNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.FaultNone
	}
	return resilience.FaultTransient
}

type resilientImages struct {
	next  ImageRepository
	guard *resilience.Guard
	store string
}

// NewResilientImageRepository wraps remote image access in retries and a breaker
func NewResilientImageRepository(next ImageRepository, guard *resilience.Guard, store string) ImageRepository {
	return &resilientImages{next: next, guard: guard, store: store}
}

func (r *resilientImages) Put(ctx context.Context, data []byte) (string, error) {
	var id string
	err := r.guard.Do(ctx, resilience.Call{Store: r.store, Op: "put", Access: resilience.AccessWrite}, func(ctx context.Context) error {
		var err error
		id, err = r.next.Put(ctx, data)
		return err
	})
	return id, wrapOpen(err)
}

func (r *resilientImages) Get(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := r.guard.Do(ctx, resilience.Call{Store: r.store, Op: "get", Access: resilience.AccessRead}, func(ctx context.Context) error {
		var err error
		data, err = r.next.Get(ctx, id)
		return err
	})
	return data, wrapOpen(err)
}

func (r *resilientImages) Close() error {
	return ReleaseImageStore(r.next)
}

func (r *resilientImages) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.guard.Do(ctx, resilience.Call{Store: r.store, Op: "exists", Access: resilience.AccessRead}, func(ctx context.Context) error {
		var err error
		ok, err = r.next.Exists(ctx, id)
		return err
	})
	return ok, wrapOpen(err)
}

type resilientResults struct {
	next  ResultRepository
	guard *resilience.Guard
	store string
}

// NewResilientResultRepository wraps a networked result store in retries and a breaker
func NewResilientResultRepository(next ResultRepository, guard *resilience.Guard, store string) ResultRepository {
	return &resilientResults{next: next, guard: guard, store: store}
}

func (r *resilientResults) Save(ctx context.Context, jobID string, result *models.AnalysisResult) error {
	return wrapOpen(r.guard.Do(ctx, resilience.Call{Store: r.store, Op: "save", Access: resilience.AccessWrite}, func(ctx context.Context) error {
		return r.next.Save(ctx, jobID, result)
	}))
}

func (r *resilientResults) Load(ctx context.Context, jobID string) (*models.AnalysisResult, error) {
	var res *models.AnalysisResult
	err := r.guard.Do(ctx, resilience.Call{Store: r.store, Op: "load", Access: resilience.AccessRead}, func(ctx context.Context) error {
		var err error
		res, err = r.next.Load(ctx, jobID)
		return err
	})
	return res, wrapOpen(err)
}

func (r *resilientResults) Latest(ctx context.Context) (*models.AnalysisResult, error) {
	var res *models.AnalysisResult
	err := r.guard.Do(ctx, resilience.Call{Store: r.store, Op: "latest", Access: resilience.AccessRead}, func(ctx context.Context) error {
		var err error
		res, err = r.next.Latest(ctx)
		return err
	})
	return res, wrapOpen(err)
}

func (r *resilientResults) Delete(ctx context.Context, jobID string) error {
	return wrapOpen(r.guard.Do(ctx, resilience.Call{Store: r.store, Op: "delete", Access: resilience.AccessWrite}, func(ctx context.Context) error {
		return r.next.Delete(ctx, jobID)
	}))
}

func (r *resilientResults) Close() error {
	return r.next.Close()
}

// wrapOpen tags breaker rejections so callers can test for ErrRepositoryUnavailable
func wrapOpen(err error) error {
	if err != nil && resilience.IsCircuitOpen(err) {
		return errors.Join(ErrRepositoryUnavailable, err)
	}
	return err
}
