package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"go-damage-assessor/internal/logger"
)

// Fault says how a store error counts
type Fault int

const (
	// FaultNone is an answer from a healthy store, such as a missing key
	FaultNone Fault = iota
	// FaultTransient is retried and counts against the store's breaker
	FaultTransient
	// FaultPermanent counts against the breaker but is returned at once
	FaultPermanent
)

// Classifier maps a store error to its fault
type Classifier func(err error) Fault

// Call names one guarded store call, e.g. {"redis_results", "save", AccessWrite}
type Call struct {
	Store  string
	Op     string
	Access Access
}

func (c Call) String() string { return c.Store + "." + c.Op }

// Guard retries store calls and keeps one circuit breaker per store, so a
// backend that is down rejects every operation until it recovers
type Guard struct {
	policy   Policy
	classify Classifier

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

// NewGuard creates a guard; a nil classifier treats every error except
// context cancellation as permanent
func NewGuard(policy Policy, classify Classifier) *Guard {
	if classify == nil {
		classify = defaultClassifier
	}
	return &Guard{
		policy:   policy.withDefaults(),
		classify: classify,
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Do runs fn for call until it succeeds, hits a non-transient fault or the
// access's attempts run out
func (g *Guard) Do(ctx context.Context, call Call, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("resilience: %s has no callback", call)
	}
	if call.Store == "" {
		call.Store = "store"
	}
	if !g.policy.Breaker {
		return g.retry(ctx, call, fn)
	}
	_, err := g.breaker(call.Store).Execute(func() (struct{}, error) {
		return struct{}{}, g.retry(ctx, call, fn)
	})
	return err
}

func (g *Guard) retry(ctx context.Context, call Call, fn func(context.Context) error) error {
	attempts := g.policy.Attempts(call.Access)

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil || g.classify(err) != FaultTransient || n >= attempts {
			return err
		}

		wait := g.policy.Delay(n)
		logger.WithFields(logrus.Fields{
			"store":    call.Store,
			"op":       call.Op,
			"access":   call.Access.String(),
			"attempt":  n,
			"attempts": attempts,
			"wait_ms":  wait.Milliseconds(),
		}).WithError(err).Warn("Store call failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func (g *Guard) breaker(store string) *gobreaker.CircuitBreaker[struct{}] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[store]; ok {
		return cb
	}
	p := g.policy
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        store,
		MaxRequests: p.HalfOpenCalls,
		Timeout:     p.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < p.TripAfter {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= p.TripRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || g.classify(err) == FaultNone
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"store": name,
				"from":  from.String(),
				"to":    to.String(),
			}).Warn("Store breaker state changed")
		},
	})
	g.breakers[store] = cb
	return cb
}

// IsCircuitOpen reports whether err is a breaker rejection rather than a
// store failure
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(err error) Fault {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return FaultNone
	}
	return FaultPermanent
}
