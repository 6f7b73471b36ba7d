package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Actions recorded by the control panel
const (
	ActionLogin          = "auth.login"
	ActionLoginFailed    = "auth.login_failed"
	ActionLogout         = "auth.logout"
	ActionCommand        = "service.command"
	ActionMonitoring     = "market.monitoring"
	ActionUserCreated    = "user.created"
	ActionUserActivation = "user.activation"
)

// Event is one operator action
type Event struct {
	ID       string                 `json:"id"`
	Time     time.Time              `json:"time"`
	Actor    string                 `json:"actor"`
	Action   string                 `json:"action"`
	Target   string                 `json:"target,omitempty"`
	Outcome  string                 `json:"outcome"`
	ClientIP string                 `json:"client_ip,omitempty"`
	TraceID  string                 `json:"trace_id,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Sink persists audit events
type Sink interface {
	Write(ctx context.Context, event Event) error
	Close() error
}

// Recorder stamps events and fans them out to a sink
type Recorder struct {
	logger *zap.Logger
	sink   Sink
	now    func() time.Time
}

// NewRecorder creates a recorder writing to sink
func NewRecorder(logger *zap.Logger, sink Sink) *Recorder {
	return &Recorder{logger: logger, sink: sink, now: time.Now}
}

// Record writes the event. Sink failures are logged, never returned to the caller.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.sink == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Time.IsZero() {
		event.Time = r.now().UTC()
	}
	if event.Outcome == "" {
		event.Outcome = "success"
	}
	if err := r.sink.Write(ctx, event); err != nil {
		r.logger.Warn("Failed to write audit event", zap.String("action", event.Action), zap.Error(err))
	}
}

// Close closes the underlying sink
func (r *Recorder) Close() error {
	if r == nil || r.sink == nil {
		return nil
	}
	return r.sink.Close()
}

// LogSink writes events to a structured logger
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink logging under the "audit" name
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

// Write logs the event
func (s *LogSink) Write(_ context.Context, e Event) error {
	s.logger.Info("audit",
		zap.String("event_id", e.ID),
		zap.Time("time", e.Time),
		zap.String("actor", e.Actor),
		zap.String("action", e.Action),
		zap.String("target", e.Target),
		zap.String("outcome", e.Outcome),
		zap.String("client_ip", e.ClientIP),
		zap.String("trace_id", e.TraceID),
		zap.Any("details", e.Details),
	)
	return nil
}

// Close flushes the logger
func (s *LogSink) Close() error {
	_ = s.logger.Sync()
	return nil
}

// Multi writes to every sink and joins their errors
type Multi []Sink

// Write writes the event to each sink
func (m Multi) Write(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes each sink
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
