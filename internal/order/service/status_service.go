package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bazaar/internal/domain"
	"bazaar/internal/errors"
	"bazaar/internal/notification"
)

type OrderStore interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindSiblings(ctx context.Context, customerID string, from, to time.Time, excludeID string) ([]domain.Order, error)
	ListByStatus(ctx context.Context, status string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to string, entry domain.StatusHistoryEntry, payment *domain.PaymentUpdate) (*domain.Order, error)
	UpdatePayment(ctx context.Context, id string, paymentStatus string, paidAt *time.Time) (*domain.Order, error)
	Delete(ctx context.Context, id string) error
}

type Notifier interface {
	Notify(ctx context.Context, event notification.Event)
}

type CleanupScheduler interface {
	Schedule(key string, delay time.Duration, fn func())
	Cancel(key string) bool
}

type TransitionRecorder interface {
	ObserveTransition(from, to string)
}

type StatusService struct {
	orders    OrderStore
	auth      *Authorizer
	notifier  Notifier
	cleanup   CleanupScheduler
	recorder  TransitionRecorder
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewStatusService(
	orders OrderStore,
	auth *Authorizer,
	notifier Notifier,
	cleanup CleanupScheduler,
	recorder TransitionRecorder,
	retention time.Duration,
	logger *zap.Logger,
) *StatusService {
	return &StatusService{
		orders:    orders,
		auth:      auth,
		notifier:  notifier,
		cleanup:   cleanup,
		recorder:  recorder,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Transition moves the order to the requested status. The write is a
// compare-and-set against the persisted status; if another writer got there
// first the order is reloaded and the transition re-validated once.
func (s *StatusService) Transition(ctx context.Context, orderID string, requested string, actor domain.Actor) (*domain.Order, error) {
	if err := RejectAdminMutation(actor); err != nil {
		return nil, err
	}

	to := domain.NormalizeStatus(requested)
	if !domain.IsKnownStatus(to) {
		return nil, errors.NewValidationError("invalid status", errors.ValidationDetail{
			Field:   "status",
			Message: fmt.Sprintf("unknown status %q", requested),
		})
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.auth.AuthorizeShopMutation(ctx, actor, order.ShopID); err != nil {
		return nil, err
	}

	const maxAttempts = 2
	for attempt := 1; ; attempt++ {
		from := order.Status
		if !CanTransition(from, to) {
			s.logger.Info("status transition rejected",
				zap.String("orderId", order.ID),
				zap.String("from", from),
				zap.String("to", to),
				zap.Bool("terminal", IsTerminal(from)),
				zap.Strings("allowed", AllowedNext(from)))
			return nil, errors.NewInvalidTransitionError(from, to)
		}

		now := s.now().UTC()
		entry := domain.StatusHistoryEntry{Status: to, ChangedAt: now}
		updated, err := s.orders.UpdateStatus(ctx, order.ID, from, to, entry, PaymentEffect(*order, to, now))
		if err == nil {
			s.logger.Info("order status changed",
				zap.String("orderId", order.ID),
				zap.String("from", from),
				zap.String("to", to),
				zap.String("actorId", actor.ID))
			s.afterTransition(ctx, from, updated)
			return updated, nil
		}

		if _, ok := errors.IsConflictError(err); !ok || attempt == maxAttempts {
			return nil, err
		}

		s.logger.Warn("status changed concurrently, re-validating",
			zap.String("orderId", order.ID), zap.String("expected", from))
		order, err = s.orders.FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
	}
}

// Delete removes an order on behalf of its customer or shop owner.
// Delivered and picked-up orders are kept as fulfillment records.
func (s *StatusService) Delete(ctx context.Context, orderID string, actor domain.Actor) error {
	if err := RejectAdminMutation(actor); err != nil {
		return err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	if err := s.auth.AuthorizeDelete(ctx, actor, *order); err != nil {
		return err
	}

	if order.Status == domain.OrderStatusDelivered || order.Status == domain.OrderStatusPickedUp {
		return errors.NewConflictError(fmt.Sprintf("order %s is %s and cannot be deleted", order.ID, order.Status))
	}

	if err := s.orders.Delete(ctx, order.ID); err != nil {
		return err
	}
	s.cleanup.Cancel(order.ID)

	s.logger.Info("order deleted", zap.String("orderId", order.ID), zap.String("actorId", actor.ID))
	return nil
}

// RehydrateCleanup re-schedules cleanup for cancelled orders found in the
// store, counting the grace period from the moment they were cancelled.
func (s *StatusService) RehydrateCleanup(ctx context.Context) (int, error) {
	cancelled, err := s.orders.ListByStatus(ctx, domain.OrderStatusCancelled)
	if err != nil {
		return 0, fmt.Errorf("listing cancelled orders: %w", err)
	}

	for _, order := range cancelled {
		remaining := s.retention - s.now().Sub(order.LastStatusChange())
		s.scheduleCleanup(order.ID, remaining)
	}

	return len(cancelled), nil
}

func (s *StatusService) afterTransition(ctx context.Context, from string, order *domain.Order) {
	s.recorder.ObserveTransition(from, order.Status)

	if order.Status == domain.OrderStatusCancelled {
		s.scheduleCleanup(order.ID, s.retention)
	} else {
		s.cleanup.Cancel(order.ID)
	}

	if eventType := notification.ForStatus(order.Status); eventType != "" {
		s.notifier.Notify(ctx, notification.Event{
			Type:      eventType,
			OrderID:   order.ID,
			ShopID:    order.ShopID,
			Recipient: order.CustomerID,
		})
	}
}

func (s *StatusService) scheduleCleanup(orderID string, delay time.Duration) {
	s.cleanup.Schedule(orderID, delay, func() {
		s.removeCancelled(orderID)
	})
}

// removeCancelled deletes the order if it is still cancelled when the grace
// period ends.
func (s *StatusService) removeCancelled(orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if _, ok := errors.IsNotFoundError(err); !ok {
			s.logger.Warn("cleanup lookup failed", zap.String("orderId", orderID), zap.Error(err))
		}
		return
	}
	if order.Status != domain.OrderStatusCancelled {
		return
	}

	if err := s.orders.Delete(ctx, orderID); err != nil {
		s.logger.Warn("cleanup delete failed", zap.String("orderId", orderID), zap.Error(err))
		return
	}
	s.logger.Info("cancelled order removed", zap.String("orderId", orderID))
}
