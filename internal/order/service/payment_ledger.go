package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"bazaar/internal/domain"
)

type PaymentRecorder interface {
	ObservePayment(siblings int)
}

// PaymentLedger records payment independently of fulfillment status.
type PaymentLedger struct {
	orders             OrderStore
	auth               *Authorizer
	recorder           PaymentRecorder
	siblingWindow      time.Duration
	propagationTimeout time.Duration
	logger             *zap.Logger
	now                func() time.Time

	wg sync.WaitGroup
}

func NewPaymentLedger(
	orders OrderStore,
	auth *Authorizer,
	recorder PaymentRecorder,
	siblingWindow time.Duration,
	propagationTimeout time.Duration,
	logger *zap.Logger,
) *PaymentLedger {
	return &PaymentLedger{
		orders:             orders,
		auth:               auth,
		recorder:           recorder,
		siblingWindow:      siblingWindow,
		propagationTimeout: propagationTimeout,
		logger:             logger,
		now:                time.Now,
	}
}

// ConfirmPayment marks the order paid. Orders already paid are returned
// unchanged. Sibling orders from the same checkout are marked paid in the
// background; their failures never affect the caller.
func (l *PaymentLedger) ConfirmPayment(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	if err := RejectAdminMutation(actor); err != nil {
		return nil, err
	}

	order, err := l.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := l.auth.AuthorizeShopMutation(ctx, actor, order.ShopID); err != nil {
		return nil, err
	}

	if order.IsPaid() {
		return order, nil
	}

	paidAt := l.now().UTC()
	updated, err := l.orders.UpdatePayment(ctx, order.ID, domain.PaymentStatusPaid, &paidAt)
	if err != nil {
		return nil, err
	}

	l.logger.Info("payment confirmed", zap.String("orderId", order.ID), zap.String("actorId", actor.ID))

	l.wg.Add(1)
	go func(confirmed domain.Order) {
		defer l.wg.Done()
		l.propagate(confirmed, paidAt)
	}(*updated)

	return updated, nil
}

// Wait blocks until in-flight propagations finish.
func (l *PaymentLedger) Wait() {
	l.wg.Wait()
}

func (l *PaymentLedger) propagate(confirmed domain.Order, paidAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), l.propagationTimeout)
	defer cancel()

	logger := l.logger.With(zap.String("orderId", confirmed.ID), zap.String("customerId", confirmed.CustomerID))

	siblings, err := l.orders.FindSiblings(ctx, confirmed.CustomerID,
		confirmed.CreatedAt.Add(-l.siblingWindow), confirmed.CreatedAt.Add(l.siblingWindow), confirmed.ID)
	if err != nil {
		logger.Warn("sibling lookup failed", zap.Error(err))
		l.recorder.ObservePayment(0)
		return
	}

	marked := 0
	for _, sibling := range siblings {
		if sibling.IsPaid() || sibling.Status == domain.OrderStatusCancelled {
			continue
		}
		if _, err := l.orders.UpdatePayment(ctx, sibling.ID, domain.PaymentStatusPaid, &paidAt); err != nil {
			logger.Warn("sibling payment update failed", zap.String("siblingId", sibling.ID), zap.Error(err))
			continue
		}
		marked++
	}

	if marked > 0 {
		logger.Info("payment propagated to sibling orders", zap.Int("siblingCount", marked))
	}
	l.recorder.ObservePayment(marked)
}
