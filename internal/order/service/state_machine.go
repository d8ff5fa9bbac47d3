package service

import (
	"slices"
	"time"

	"bazaar/internal/domain"
)

var orderStateTransitions = map[string][]string{
	domain.OrderStatusPending:   {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed: {domain.OrderStatusDelivered, domain.OrderStatusPickedUp, domain.OrderStatusCancelled},
	domain.OrderStatusDelivered: {},
	domain.OrderStatusPickedUp:  {},
	domain.OrderStatusCancelled: {},
}

func CanTransition(from, to string) bool {
	next, ok := orderStateTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(next, to)
}

func AllowedNext(from string) []string {
	return slices.Clone(orderStateTransitions[from])
}

func IsTerminal(status string) bool {
	next, ok := orderStateTransitions[status]
	return ok && len(next) == 0
}

// PaymentEffect returns the payment change that accompanies entering status
// `to`. Delivery always settles payment; confirmation settles it unless the
// customer pays cash on delivery. Already-paid orders keep their paidAt.
func PaymentEffect(order domain.Order, to string, now time.Time) *domain.PaymentUpdate {
	if order.IsPaid() {
		return nil
	}

	settles := to == domain.OrderStatusDelivered ||
		(to == domain.OrderStatusConfirmed && order.PaymentMethod != domain.PaymentMethodCashOnDelivery)
	if !settles {
		return nil
	}

	return &domain.PaymentUpdate{Status: domain.PaymentStatusPaid, PaidAt: now}
}
