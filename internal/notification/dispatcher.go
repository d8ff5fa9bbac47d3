package notification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"bazaar/internal/domain"
	"bazaar/internal/infrastructure/kafka"
)

const (
	TypeNewOrder       = "new_order"
	TypeOrderConfirmed = "order_confirmed"
	TypeOrderDelivered = "order_delivered"
	TypeOrderCancelled = "order_cancelled"
)

type Event struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"orderId"`
	ShopID     int       `json:"shopId"`
	Recipient  string    `json:"recipient"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ForStatus returns the event type emitted when an order enters status, or
// "" when the status is not announced.
func ForStatus(status string) string {
	switch status {
	case domain.OrderStatusConfirmed:
		return TypeOrderConfirmed
	case domain.OrderStatusDelivered:
		return TypeOrderDelivered
	case domain.OrderStatusCancelled:
		return TypeOrderCancelled
	}
	return ""
}

type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// KafkaDispatcher publishes events keyed by order id so all events of one
// order land on the same partition.
type KafkaDispatcher struct {
	writer kafka.MessageWriter
}

func NewKafkaDispatcher(writer kafka.MessageWriter) *KafkaDispatcher {
	return &KafkaDispatcher{writer: writer}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, event Event) error {
	return kafka.PublishJSON(ctx, d.writer, event.OrderID, event)
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}

// LogDispatcher only logs events. Used when no broker is configured.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, event Event) error {
	d.logger.Info("notification",
		zap.String("type", event.Type),
		zap.String("orderId", event.OrderID),
		zap.Int("shopId", event.ShopID),
		zap.String("recipient", event.Recipient))
	return nil
}

// Notifier dispatches events in the background. It never blocks or fails
// the caller.
type Notifier struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	timeout    time.Duration
	now        func() time.Time

	wg sync.WaitGroup
}

func NewNotifier(dispatcher Dispatcher, logger *zap.Logger, timeout time.Duration) *Notifier {
	return &Notifier{
		dispatcher: dispatcher,
		logger:     logger,
		timeout:    timeout,
		now:        time.Now,
	}
}

func (n *Notifier) Notify(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = n.now().UTC()
	}

	// the request may finish before the dispatch does
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.dispatch(ctx, event)
	}()
}

// Wait blocks until in-flight dispatches finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) dispatch(ctx context.Context, event Event) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	if err := n.dispatcher.Dispatch(ctx, event); err != nil {
		n.logger.Warn("notification dispatch failed",
			zap.String("type", event.Type),
			zap.String("orderId", event.OrderID),
			zap.Error(err))
	}
}
