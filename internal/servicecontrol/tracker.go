package servicecontrol

import (
	"sync"
	"time"
)

// Worker states reported by the status endpoint
const (
	StatusRunning = "running"
	StatusIdle    = "idle"
	StatusStopped = "stopped"
	StatusUnknown = "unknown"
)

// DefaultHeartbeatTTL is how long a heartbeat stays fresh
const DefaultHeartbeatTTL = 30 * time.Second

// Heartbeat is the last known state reported by the worker
type Heartbeat struct {
	Status          string
	WebsocketActive bool
	MonitoredAssets int
	ReceivedAt      time.Time
}

// Tracker holds the most recent heartbeat
type Tracker struct {
	mu   sync.RWMutex
	last *Heartbeat
	ttl  time.Duration
	now  func() time.Time
}

// NewTracker creates a tracker. now may be nil.
func NewTracker(ttl time.Duration, now func() time.Time) *Tracker {
	if ttl <= 0 {
		ttl = DefaultHeartbeatTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{ttl: ttl, now: now}
}

// Record overwrites the last heartbeat, stamping it with the receipt time
func (t *Tracker) Record(hb Heartbeat) Heartbeat {
	hb.ReceivedAt = t.now()
	t.mu.Lock()
	t.last = &hb
	t.mu.Unlock()
	return hb
}

// Last returns the last heartbeat, if any
func (t *Tracker) Last() (Heartbeat, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.last == nil {
		return Heartbeat{}, false
	}
	return *t.last, true
}

// Classify derives the worker state from the last heartbeat
func (t *Tracker) Classify() string {
	hb, ok := t.Last()
	if !ok || t.now().Sub(hb.ReceivedAt) > t.ttl {
		return StatusStopped
	}
	if hb.Status != "" {
		return hb.Status
	}
	if hb.WebsocketActive {
		return StatusRunning
	}
	return StatusIdle
}

// Now returns the tracker clock
func (t *Tracker) Now() time.Time {
	return t.now()
}
