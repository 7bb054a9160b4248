package canbus

import (
	"sync"
	"time"
)

// BreakerState is one of the three circuit-breaker states (§4.8).
type BreakerState uint8

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

const (
	breakerFailureThreshold  = 5
	breakerOpenCooldown      = 30 * time.Second
	breakerHalfOpenSuccesses = 3
)

// breaker is the §4.8 circuit breaker: opens after 5 consecutive
// failures, stays open 30 s, probes once in HalfOpen, and needs 3
// HalfOpen successes to close again.
type breaker struct {
	mu sync.Mutex

	state            BreakerState
	consecutiveFails int
	halfOpenSuccess  int
	openedAt         time.Time
	probeInFlight    bool

	trips int
}

// Allow reports whether a request may proceed, transitioning
// Open->HalfOpen once the cooldown has elapsed and admitting exactly
// one probe at a time while HalfOpen (§8 "no request is admitted while
// state == Open except the first after timeout has elapsed").
func (b *breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if now.Sub(b.openedAt) < breakerOpenCooldown {
			return false
		}
		b.state = HalfOpen
		b.halfOpenSuccess = 0
		b.probeInFlight = true
		return true
	case HalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return false
	}
}

// ReportSuccess records a successful cycle.
func (b *breaker) ReportSuccess(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeInFlight = false

	switch b.state {
	case HalfOpen:
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= breakerHalfOpenSuccesses {
			b.state = Closed
			b.consecutiveFails = 0
		}
	case Closed:
		b.consecutiveFails = 0
	}
}

// ReportFailure records a failed cycle; any HalfOpen failure re-opens
// immediately.
func (b *breaker) ReportFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeInFlight = false

	switch b.state {
	case HalfOpen:
		b.trip(now)
	case Closed:
		b.consecutiveFails++
		if b.consecutiveFails >= breakerFailureThreshold {
			b.trip(now)
		}
	}
}

func (b *breaker) trip(now time.Time) {
	b.state = Open
	b.openedAt = now
	b.trips++
	b.consecutiveFails = 0
	b.halfOpenSuccess = 0
}

func (b *breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) Trips() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}
