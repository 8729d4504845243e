package breaker

import (
	"sync"
	"time"
)

// State is the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

const (
	DefaultFailureThreshold = 3
	DefaultCooldown         = 60 * time.Second
)

// Clock abstracts time for tests
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Settings configures a Breaker. Zero values fall back to the defaults.
type Settings struct {
	FailureThreshold int
	Cooldown         time.Duration
	Clock            Clock
	// OnStateChange is called outside the lock after every transition.
	OnStateChange func(from, to State)
}

// Snapshot is a point-in-time view of the breaker
type Snapshot struct {
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
	RetryAt             time.Time `json:"retry_at,omitempty"`
}

// Breaker guards calls to an unreliable dependency. After FailureThreshold
// consecutive failures it rejects calls until Cooldown has elapsed, then lets
// a single trial call through.
type Breaker struct {
	mu            sync.Mutex
	threshold     int
	cooldown      time.Duration
	clock         Clock
	onStateChange func(from, to State)

	state         State
	failures      int
	openedAt      time.Time
	trialInFlight bool
}

// New creates a closed breaker
func New(s Settings) *Breaker {
	b := &Breaker{
		threshold:     s.FailureThreshold,
		cooldown:      s.Cooldown,
		clock:         s.Clock,
		onStateChange: s.OnStateChange,
	}
	if b.threshold <= 0 {
		b.threshold = DefaultFailureThreshold
	}
	if b.cooldown <= 0 {
		b.cooldown = DefaultCooldown
	}
	if b.clock == nil {
		b.clock = systemClock{}
	}
	return b
}

// Allow reports whether a call may proceed. An open breaker whose cooldown
// has elapsed moves to half-open and admits exactly one trial call.
func (b *Breaker) Allow() bool {
	b.mu.Lock()

	var allowed bool
	from, to := b.state, b.state

	switch b.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if b.clock.Now().Sub(b.openedAt) >= b.cooldown {
			b.state = StateHalfOpen
			b.trialInFlight = true
			to = StateHalfOpen
			allowed = true
		}
	case StateHalfOpen:
		if !b.trialInFlight {
			b.trialInFlight = true
			allowed = true
		}
	}

	b.mu.Unlock()
	b.notify(from, to)
	return allowed
}

// RecordSuccess closes the breaker and resets the failure count
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.trialInFlight = false
	b.openedAt = time.Time{}
	b.mu.Unlock()

	b.notify(from, StateClosed)
}

// RecordFailure counts a failed call. A failed half-open trial reopens the
// breaker and restarts the cooldown.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	from := b.state
	b.failures++

	switch b.state {
	case StateHalfOpen:
		b.trip()
	case StateClosed:
		if b.failures >= b.threshold {
			b.trip()
		}
	case StateOpen:
		// late failure from a call admitted before the trip
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// Release returns an admitted call that ended without reaching the dependency,
// such as one cancelled by its caller. Counters and state are unchanged; a
// half-open breaker admits the next trial.
func (b *Breaker) Release() {
	b.mu.Lock()
	if b.state == StateHalfOpen {
		b.trialInFlight = false
	}
	b.mu.Unlock()
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.clock.Now()
	b.trialInFlight = false
}

// State returns the current state without advancing it
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the current state and counters
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		State:               b.state.String(),
		ConsecutiveFailures: b.failures,
	}
	if b.state != StateClosed {
		s.OpenedAt = b.openedAt
		s.RetryAt = b.openedAt.Add(b.cooldown)
	}
	return s
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
