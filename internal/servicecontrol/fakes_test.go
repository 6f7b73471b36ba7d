package servicecontrol

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeSub struct {
	ch   chan amqp.Delivery
	once sync.Once
}

func newFakeSub() *fakeSub {
	return &fakeSub{ch: make(chan amqp.Delivery, 16)}
}

func (s *fakeSub) Deliveries() <-chan amqp.Delivery { return s.ch }

func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

func (s *fakeSub) send(body string) {
	s.ch <- amqp.Delivery{Body: []byte(body)}
}

type published struct {
	queue string
	body  []byte
}

type fakeBroker struct {
	mu           sync.Mutex
	subs         []*fakeSub
	subscribeErr error
	publishErr   error
	published    []published
	exchange     string
	routingKey   string

	// gate, when set, holds Subscribe until it is closed or the dial context ends
	gate    chan struct{}
	entered chan struct{}
}

func (b *fakeBroker) Publish(_ context.Context, queue string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, published{queue: queue, body: body})
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, exchange, routingKey string) (Subscription, error) {
	if b.gate != nil {
		if b.entered != nil {
			b.entered <- struct{}{}
		}
		select {
		case <-b.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	b.exchange, b.routingKey = exchange, routingKey
	sub := newFakeSub()
	b.subs = append(b.subs, sub)
	return sub, nil
}

func (b *fakeBroker) subscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *fakeBroker) last() *fakeSub {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs[len(b.subs)-1]
}

var errDown = errors.New("connection refused")

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
