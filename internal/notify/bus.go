// Package notify carries alert trigger events from evaluation to delivery.
//
// A Bus is constructed once at startup and handed to every producer and
// subscriber. Each published event is delivered to every handler registered
// at publish time, each on its own goroutine. Handler failures are logged and
// never reach the publisher.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"go.uber.org/zap"
)

// Handler receives one trigger event. A returned error is logged by the bus.
type Handler func(ctx context.Context, event domain.TriggerEvent) error

type subscriber struct {
	id     uint64
	name   string
	handle Handler
}

type Bus struct {
	logger  *zap.Logger
	timeout time.Duration

	mu          sync.RWMutex
	nextID      uint64
	subscribers []subscriber

	inflight sync.WaitGroup
}

type BusOption func(*Bus)

// WithHandlerTimeout bounds each handler invocation.
func WithHandlerTimeout(timeout time.Duration) BusOption {
	return func(b *Bus) { b.timeout = timeout }
}

func NewBus(logger *zap.Logger, opts ...BusOption) *Bus {
	b := &Bus{logger: logger, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for all future events and returns a function
// that removes it again.
func (b *Bus) Subscribe(name string, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, subscriber{id: id, name: name, handle: handler})
	b.mu.Unlock()

	b.logger.Info("notification handler subscribed", zap.String("handler", name))

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub.id == id {
			b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
			b.logger.Info("notification handler unsubscribed", zap.String("handler", sub.name))
			return
		}
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish hands event to every current subscriber and returns without waiting
// for them. With no subscribers the event is dropped.
func (b *Bus) Publish(ctx context.Context, event domain.TriggerEvent) {
	b.mu.RLock()
	subs := make([]subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.logger.Debug("no notification handlers, event dropped", zap.String("alert_id", event.AlertID.String()))
		return
	}

	// Deliveries outlive the publishing cycle; only the handler timeout bounds them.
	deliveryCtx := context.WithoutCancel(ctx)
	for _, sub := range subs {
		b.inflight.Add(1)
		go b.deliver(deliveryCtx, sub, event)
	}

	b.logger.Debug(
		"trigger event published",
		zap.String("alert_id", event.AlertID.String()),
		zap.Int("handler_count", len(subs)),
	)
}

// Wait blocks until all in-flight deliveries have finished or ctx is done.
func (b *Bus) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) deliver(ctx context.Context, sub subscriber, event domain.TriggerEvent) {
	defer b.inflight.Done()

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	if err := safeCall(ctx, sub.handle, event); err != nil {
		b.logger.Error(
			"notification handler failed",
			zap.String("handler", sub.name),
			zap.String("alert_id", event.AlertID.String()),
			zap.String("user_id", event.UserID.String()),
			zap.Error(err),
		)
	}
}

func safeCall(ctx context.Context, handle Handler, event domain.TriggerEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handle(ctx, event)
}
