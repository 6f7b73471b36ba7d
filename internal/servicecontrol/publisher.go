package servicecontrol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Aidin1998/botcontrol/pkg/metrics"
	"go.uber.org/zap"
)

// Commands understood by the worker
const (
	CommandRestart = "restart"
	CommandStop    = "stop"
)

// ErrEmptyCommand is returned when no command name is given
var ErrEmptyCommand = errors.New("command is required")

// CommandPublisher sends control commands to the worker's notification queue
type CommandPublisher struct {
	logger  *zap.Logger
	broker  Broker
	queue   string
	timeout time.Duration
	now     func() time.Time
}

// NewCommandPublisher creates a publisher. A nil broker fails every send with ErrNotConfigured.
func NewCommandPublisher(logger *zap.Logger, broker Broker, queue string, timeout time.Duration) *CommandPublisher {
	if queue == "" {
		queue = "notification"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CommandPublisher{
		logger:  logger,
		broker:  broker,
		queue:   queue,
		timeout: timeout,
		now:     time.Now,
	}
}

// Restart asks the worker to restart
func (p *CommandPublisher) Restart(ctx context.Context) error {
	return p.Send(ctx, CommandRestart, nil)
}

// Stop asks the worker to stop
func (p *CommandPublisher) Stop(ctx context.Context) error {
	return p.Send(ctx, CommandStop, nil)
}

// Send publishes {command, ...data, timestamp}. A "command" key in data overrides the command argument.
func (p *CommandPublisher) Send(ctx context.Context, command string, data map[string]interface{}) error {
	if command == "" {
		return ErrEmptyCommand
	}
	if p.broker == nil {
		metrics.CommandsPublished.WithLabelValues(command, "unconfigured").Inc()
		return ErrNotConfigured
	}

	body, err := p.encode(command, data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.broker.Publish(ctx, p.queue, body); err != nil {
		metrics.CommandsPublished.WithLabelValues(command, "failure").Inc()
		p.logger.Error("Failed to publish command",
			zap.String("command", command),
			zap.String("queue", p.queue),
			zap.Error(err))
		return fmt.Errorf("failed to send command %s: %w", command, err)
	}

	metrics.CommandsPublished.WithLabelValues(command, "success").Inc()
	p.logger.Info("Command published", zap.String("command", command), zap.String("queue", p.queue))
	return nil
}

func (p *CommandPublisher) encode(command string, data map[string]interface{}) ([]byte, error) {
	msg := make(map[string]interface{}, len(data)+2)
	msg["command"] = command
	for k, v := range data {
		msg[k] = v
	}
	msg["timestamp"] = p.now().UnixMilli()

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command %s: %w", command, err)
	}
	return body, nil
}
