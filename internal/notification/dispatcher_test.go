package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bazaar/internal/domain"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

type mockDispatcher struct {
	dispatchFunc func(ctx context.Context, event Event) error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, event Event) error {
	return m.dispatchFunc(ctx, event)
}

func TestKafkaDispatcher_PublishesKeyedJSON(t *testing.T) {
	writer := &fakeWriter{}
	d := NewKafkaDispatcher(writer)
	occurred := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	err := d.Dispatch(context.Background(), Event{
		Type: TypeNewOrder, OrderID: "01H", ShopID: 3, Recipient: "owner-3", OccurredAt: occurred,
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)
	assert.Equal(t, "01H", string(writer.messages[0].Key))

	var got Event
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &got))
	assert.Equal(t, TypeNewOrder, got.Type)
	assert.Equal(t, "owner-3", got.Recipient)
	assert.True(t, occurred.Equal(got.OccurredAt))

	require.NoError(t, d.Close())
	assert.True(t, writer.closed)
}

func TestNotifier_SwallowsDispatchErrors(t *testing.T) {
	called := false
	n := NewNotifier(&mockDispatcher{
		dispatchFunc: func(ctx context.Context, event Event) error {
			called = true
			return errors.New("broker down")
		},
	}, zap.NewNop(), time.Second)

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), Event{Type: TypeOrderCancelled, OrderID: "x"})
	})
	n.Wait()
	assert.True(t, called)
}

func TestNotifier_IgnoresCallerCancellation(t *testing.T) {
	var sawErr error
	n := NewNotifier(&mockDispatcher{
		dispatchFunc: func(ctx context.Context, event Event) error {
			sawErr = ctx.Err()
			assert.False(t, event.OccurredAt.IsZero())
			return nil
		},
	}, zap.NewNop(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Notify(ctx, Event{Type: TypeNewOrder, OrderID: "x"})
	n.Wait()

	assert.NoError(t, sawErr)
}

func TestNotifier_DoesNotBlockOnHangingDispatcher(t *testing.T) {
	release := make(chan struct{})
	n := NewNotifier(&mockDispatcher{
		dispatchFunc: func(ctx context.Context, event Event) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}, zap.NewNop(), time.Minute)

	start := time.Now()
	n.Notify(context.Background(), Event{Type: TypeNewOrder, OrderID: "x"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	n.Wait()
}

func TestNotifier_TimeoutBoundsDispatch(t *testing.T) {
	var sawErr error
	n := NewNotifier(&mockDispatcher{
		dispatchFunc: func(ctx context.Context, event Event) error {
			<-ctx.Done()
			sawErr = ctx.Err()
			return sawErr
		},
	}, zap.NewNop(), 20*time.Millisecond)

	n.Notify(context.Background(), Event{Type: TypeOrderConfirmed, OrderID: "x"})
	n.Wait()

	assert.ErrorIs(t, sawErr, context.DeadlineExceeded)
}

func TestForStatus(t *testing.T) {
	assert.Equal(t, TypeOrderConfirmed, ForStatus(domain.OrderStatusConfirmed))
	assert.Equal(t, TypeOrderDelivered, ForStatus(domain.OrderStatusDelivered))
	assert.Equal(t, TypeOrderCancelled, ForStatus(domain.OrderStatusCancelled))
	assert.Empty(t, ForStatus(domain.OrderStatusPickedUp))
	assert.Empty(t, ForStatus(domain.OrderStatusPending))
}

func TestLogDispatcher_NeverFails(t *testing.T) {
	d := NewLogDispatcher(zap.NewNop())
	assert.NoError(t, d.Dispatch(context.Background(), Event{Type: TypeNewOrder}))
}
