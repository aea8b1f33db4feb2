package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTimeout = errors.New("i/o timeout")
	errMissing = errors.New("no such key")
)

func classifyTest(err error) Fault {
	switch {
	case errors.Is(err, errTimeout):
		return FaultTransient
	case errors.Is(err, errMissing):
		return FaultNone
	}
	return FaultPermanent
}

func fastPolicy(breaker bool) Policy {
	return Policy{
		ReadAttempts:  3,
		WriteAttempts: 2,
		BaseDelay:     time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		Growth:        2,
		Breaker:       breaker,
		TripAfter:     2,
		TripRatio:     0.5,
		CoolDown:      50 * time.Millisecond,
		HalfOpenCalls: 1,
	}
}

func failing(calls *int, err error) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		return err
	}
}

func TestDoRetriesTransientRead(t *testing.T) {
	g := NewGuard(fastPolicy(false), classifyTest)

	calls := 0
	err := g.Do(context.Background(), Call{"redis_results", "load", AccessRead}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errTimeout
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesWritesFewerAttempts(t *testing.T) {
	g := NewGuard(fastPolicy(false), classifyTest)

	reads, writes := 0, 0
	assert.ErrorIs(t, g.Do(context.Background(), Call{"minio_images", "get", AccessRead}, failing(&reads, errTimeout)), errTimeout)
	assert.ErrorIs(t, g.Do(context.Background(), Call{"minio_images", "put", AccessWrite}, failing(&writes, errTimeout)), errTimeout)

	assert.Equal(t, 3, reads)
	assert.Equal(t, 2, writes)
}

func TestDoReturnsPermanentAndMissingAtOnce(t *testing.T) {
	g := NewGuard(fastPolicy(false), classifyTest)

	for _, want := range []error{errMissing, errors.New("access denied")} {
		calls := 0
		err := g.Do(context.Background(), Call{"azure_images", "get", AccessRead}, failing(&calls, want))
		assert.ErrorIs(t, err, want)
		assert.Equal(t, 1, calls, want.Error())
	}
}

func TestDoBreakerIsSharedByStore(t *testing.T) {
	g := NewGuard(fastPolicy(true), classifyTest)
	ctx := context.Background()
	errDown := errors.New("connection refused")
	ok := func(context.Context) error { return nil }

	calls := 0
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, g.Do(ctx, Call{"postgres_results", "save", AccessWrite}, failing(&calls, errDown)), errDown)
	}

	// Every operation on the failing store is rejected, other stores are not
	err := g.Do(ctx, Call{"postgres_results", "load", AccessRead}, ok)
	require.Error(t, err)
	assert.True(t, IsCircuitOpen(err), "expected open circuit, got %v", err)
	assert.NoError(t, g.Do(ctx, Call{"minio_images", "get", AccessRead}, ok))

	time.Sleep(60 * time.Millisecond)
	assert.NoError(t, g.Do(ctx, Call{"postgres_results", "load", AccessRead}, ok))
}

func TestDoMissingKeysNeverTrip(t *testing.T) {
	g := NewGuard(fastPolicy(true), classifyTest)

	calls := 0
	for i := 0; i < 5; i++ {
		err := g.Do(context.Background(), Call{"redis_results", "load", AccessRead}, failing(&calls, errMissing))
		assert.ErrorIs(t, err, errMissing)
	}
	assert.Equal(t, 5, calls)
	assert.False(t, IsCircuitOpen(g.Do(context.Background(), Call{"redis_results", "load", AccessRead}, failing(&calls, errMissing))))
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	g := NewGuard(fastPolicy(false), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := g.Do(ctx, Call{"redis_results", "save", AccessWrite}, failing(&calls, nil))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDoNilCallback(t *testing.T) {
	assert.Error(t, NewGuard(Policy{}, nil).Do(context.Background(), Call{Store: "s", Op: "get"}, nil))
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Growth: 2}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 300*time.Millisecond, p.Delay(3))
	assert.Equal(t, 300*time.Millisecond, p.Delay(10))
}

func TestPolicyDefaults(t *testing.T) {
	p := Policy{ReadAttempts: 1}.withDefaults()
	assert.Equal(t, 1, p.WriteAttempts, "writes never get more attempts than reads")
	assert.Equal(t, DefaultPolicy().BaseDelay, p.BaseDelay)

	p = Policy{ReadAttempts: 5}.withDefaults()
	assert.Equal(t, 2, p.Attempts(AccessWrite))
	assert.Equal(t, 5, p.Attempts(AccessRead))

	s := SingleShot(true)
	assert.Equal(t, 1, s.Attempts(AccessRead))
	assert.Equal(t, 1, s.Attempts(AccessWrite))
	assert.True(t, s.Breaker)
}
