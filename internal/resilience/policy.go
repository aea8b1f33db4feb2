package resilience

import "time"

// Access separates store calls that only read from calls that change state
type Access int

const (
	AccessRead Access = iota
	AccessWrite
)

func (a Access) String() string {
	if a == AccessWrite {
		return "write"
	}
	return "read"
}

// Policy tunes how calls to one store are retried and when its breaker opens.
// Zero fields fall back to DefaultPolicy.
type Policy struct {
	ReadAttempts int
	// WriteAttempts defaults to at most two: a retried image Put after a
	// lost acknowledgement stores a second blob under a new id.
	WriteAttempts int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	Growth        float64

	Breaker bool
	// The breaker opens once at least TripAfter calls were seen and the
	// failed share reaches TripRatio. It stays open for CoolDown, then lets
	// HalfOpenCalls through to test the store.
	TripAfter     uint32
	TripRatio     float64
	CoolDown      time.Duration
	HalfOpenCalls uint32
}

// DefaultPolicy returns the settings used for networked stores
func DefaultPolicy() Policy {
	return Policy{
		ReadAttempts:  3,
		WriteAttempts: 2,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      400 * time.Millisecond,
		Growth:        2.0,

		Breaker:       true,
		TripAfter:     10,
		TripRatio:     0.5,
		CoolDown:      30 * time.Second,
		HalfOpenCalls: 2,
	}
}

// SingleShot disables retries and keeps only the breaker, for stores that
// already retry on their own
func SingleShot(breaker bool) Policy {
	p := DefaultPolicy()
	p.ReadAttempts, p.WriteAttempts = 1, 1
	p.Breaker = breaker
	return p
}

// Attempts returns how many times a call of the given access is tried
func (p Policy) Attempts(a Access) int {
	if a == AccessWrite {
		return p.WriteAttempts
	}
	return p.ReadAttempts
}

// Delay returns the wait before retry number n (1-based):
// BaseDelay * Growth^(n-1), capped at MaxDelay
func (p Policy) Delay(n int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		d *= p.Growth
		if d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

func (p Policy) withDefaults() Policy {
	out := p
	def := DefaultPolicy()

	if out.ReadAttempts <= 0 {
		out.ReadAttempts = def.ReadAttempts
	}
	if out.WriteAttempts <= 0 {
		out.WriteAttempts = min(out.ReadAttempts, def.WriteAttempts)
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = def.BaseDelay
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = def.MaxDelay
	}
	if out.MaxDelay < out.BaseDelay {
		out.MaxDelay = out.BaseDelay
	}
	if out.Growth < 1.0 {
		out.Growth = def.Growth
	}

	if out.TripAfter == 0 {
		out.TripAfter = def.TripAfter
	}
	if out.TripRatio <= 0 || out.TripRatio > 1 {
		out.TripRatio = def.TripRatio
	}
	if out.CoolDown <= 0 {
		out.CoolDown = def.CoolDown
	}
	if out.HalfOpenCalls == 0 {
		out.HalfOpenCalls = def.HalfOpenCalls
	}
	return out
}
