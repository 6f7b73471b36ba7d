package servicecontrol

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Aidin1998/botcontrol/pkg/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ServiceName identifies the controlled worker
const ServiceName = "polymarket-mm"

const (
	defaultRetryInterval = 5 * time.Second
	defaultDialTimeout   = 5 * time.Second
)

// heartbeatMessage accepts both snake_case and camelCase field names
type heartbeatMessage struct {
	Status               string `json:"status"`
	WebsocketActive      *bool  `json:"websocket_active"`
	WebsocketActiveCamel *bool  `json:"websocketActive"`
	MonitoredAssets      *int   `json:"monitored_assets"`
	MonitoredAssetsCamel *int   `json:"monitoredAssets"`
}

func (m heartbeatMessage) heartbeat() Heartbeat {
	hb := Heartbeat{Status: m.Status}
	switch {
	case m.WebsocketActive != nil:
		hb.WebsocketActive = *m.WebsocketActive
	case m.WebsocketActiveCamel != nil:
		hb.WebsocketActive = *m.WebsocketActiveCamel
	}
	switch {
	case m.MonitoredAssets != nil:
		hb.MonitoredAssets = *m.MonitoredAssets
	case m.MonitoredAssetsCamel != nil:
		hb.MonitoredAssets = *m.MonitoredAssetsCamel
	}
	return hb
}

// Status is the worker status document
type Status struct {
	Success         bool   `json:"success"`
	Service         string `json:"service"`
	Status          string `json:"status"`
	LastCheck       int64  `json:"lastCheck"`
	LastHeartbeat   *int64 `json:"lastHeartbeat"`
	WebsocketActive bool   `json:"websocketActive"`
	MonitoredAssets int    `json:"monitoredAssets"`
	Listening       bool   `json:"listening"`
}

// MonitorConfig configures the heartbeat monitor
type MonitorConfig struct {
	Exchange      string
	RoutingKey    string
	HeartbeatTTL  time.Duration
	RetryInterval time.Duration
	DialTimeout   time.Duration
}

// Monitor keeps a single lazily started heartbeat subscription
type Monitor struct {
	logger  *zap.Logger
	broker  Broker
	cfg     MonitorConfig
	tracker *Tracker

	mu       sync.Mutex
	sub      Subscription
	lastTry  time.Time
	dialing  bool
	closed   bool
	watchers map[chan struct{}]struct{}
	loopDone chan struct{}
}

// NewMonitor creates a monitor. A nil broker reports every status as unknown.
func NewMonitor(logger *zap.Logger, broker Broker, cfg MonitorConfig, now func() time.Time) *Monitor {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Monitor{
		logger:   logger,
		broker:   broker,
		cfg:      cfg,
		tracker:  NewTracker(cfg.HeartbeatTTL, now),
		watchers: make(map[chan struct{}]struct{}),
	}
}

// Tracker exposes the heartbeat tracker
func (m *Monitor) Tracker() *Tracker {
	return m.tracker
}

// Listening reports whether a subscription is active
func (m *Monitor) Listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub != nil
}

// EnsureListening starts the subscription if none is running.
// Only one dial is in flight at a time and it runs outside the monitor lock,
// so concurrent callers return false instead of waiting on it.
// Failed attempts are retried no more often than the retry interval.
func (m *Monitor) EnsureListening(ctx context.Context) bool {
	if m.broker == nil {
		return false
	}

	m.mu.Lock()
	if m.sub != nil {
		m.mu.Unlock()
		return true
	}
	if m.closed || m.dialing {
		m.mu.Unlock()
		return false
	}
	now := m.tracker.Now()
	if !m.lastTry.IsZero() && now.Sub(m.lastTry) < m.cfg.RetryInterval {
		m.mu.Unlock()
		return false
	}
	m.lastTry = now
	m.dialing = true
	m.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	defer cancel()
	sub, err := m.broker.Subscribe(dialCtx, m.cfg.Exchange, m.cfg.RoutingKey)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialing = false
	if err != nil {
		m.logger.Warn("Failed to start heartbeat listener",
			zap.String("exchange", m.cfg.Exchange),
			zap.String("routing_key", m.cfg.RoutingKey),
			zap.Error(err))
		return false
	}
	if m.closed {
		_ = sub.Close()
		return false
	}

	m.sub = sub
	m.lastTry = time.Time{}
	m.loopDone = make(chan struct{})
	go m.consume(sub, m.loopDone)

	m.logger.Info("Heartbeat listener started",
		zap.String("exchange", m.cfg.Exchange),
		zap.String("routing_key", m.cfg.RoutingKey))
	return true
}

func (m *Monitor) consume(sub Subscription, done chan struct{}) {
	defer close(done)
	for d := range sub.Deliveries() {
		m.handle(d)
	}

	m.mu.Lock()
	if m.sub == sub {
		m.sub = nil
	}
	closed := m.closed
	m.mu.Unlock()

	if !closed {
		m.logger.Warn("Heartbeat listener stopped, will restart on next status query")
	}
}

func (m *Monitor) handle(d amqp.Delivery) {
	var msg heartbeatMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		metrics.HeartbeatsReceived.WithLabelValues("malformed").Inc()
		m.logger.Warn("Ignoring malformed heartbeat", zap.Error(err), zap.Int("size", len(d.Body)))
		return
	}

	hb := m.tracker.Record(msg.heartbeat())
	metrics.HeartbeatsReceived.WithLabelValues("ok").Inc()
	metrics.LastHeartbeat.Set(float64(hb.ReceivedAt.Unix()))
	m.logger.Debug("Heartbeat received",
		zap.String("status", hb.Status),
		zap.Bool("websocket_active", hb.WebsocketActive),
		zap.Int("monitored_assets", hb.MonitoredAssets))

	m.mu.Lock()
	for w := range m.watchers {
		select {
		case w <- struct{}{}:
		default:
		}
	}
	m.mu.Unlock()
}

// Status starts listening if needed and derives the current worker status
func (m *Monitor) Status(ctx context.Context) Status {
	now := m.tracker.Now()
	st := Status{
		Success:   true,
		Service:   ServiceName,
		LastCheck: now.UnixMilli(),
	}
	if m.broker == nil {
		st.Status = StatusUnknown
		return st
	}

	st.Listening = m.EnsureListening(ctx)
	st.Status = m.tracker.Classify()
	if hb, ok := m.tracker.Last(); ok {
		ts := hb.ReceivedAt.UnixMilli()
		st.LastHeartbeat = &ts
		st.WebsocketActive = hb.WebsocketActive
		st.MonitoredAssets = hb.MonitoredAssets
	}
	return st
}

// Watch returns a channel signalled after each heartbeat and a function to stop watching
func (m *Monitor) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.watchers[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, ch)
			m.mu.Unlock()
		})
	}
}

// Close stops the subscription and waits for the consumer to exit
func (m *Monitor) Close() error {
	m.mu.Lock()
	m.closed = true
	sub := m.sub
	done := m.loopDone
	m.sub = nil
	m.mu.Unlock()

	if sub == nil {
		return nil
	}
	err := sub.Close()
	if done != nil {
		<-done
	}
	return err
}
