package domain

import (
	"strings"
	"time"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusDelivered = "delivered"
	OrderStatusPickedUp  = "picked_up"
	OrderStatusCancelled = "cancelled"

	// orderStatusNewAlias is accepted on input and stored as pending.
	orderStatusNewAlias = "new"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

const (
	PaymentMethodCashOnDelivery = "cash_on_delivery"
	PaymentMethodOther          = "other"
)

type Order struct {
	ID               string               `json:"id"`
	ShopID           int                  `json:"shopId"`
	CustomerID       string               `json:"customerId"`
	Items            []OrderItem          `json:"items"`
	Total            float64              `json:"total"`
	PaymentMethod    string               `json:"paymentMethod"`
	Status           string               `json:"status"`
	StatusHistory    []StatusHistoryEntry `json:"statusHistory"`
	PaymentStatus    string               `json:"paymentStatus"`
	PaymentPaidAt    *time.Time           `json:"paymentPaidAt,omitempty"`
	Fingerprint      *string              `json:"fingerprint,omitempty"`
	CustomerSnapshot CustomerSnapshot     `json:"customerSnapshot"`
	CreatedAt        time.Time            `json:"createdAt"`
}

type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty"`
	Price     float64 `json:"price"`
}

type StatusHistoryEntry struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changedAt"`
}

// CustomerSnapshot is the contact info captured when the order is placed.
// It is never updated afterwards.
type CustomerSnapshot struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// NormalizeStatus lower-cases the value and maps the legacy "new" alias to pending.
func NormalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == orderStatusNewAlias {
		return OrderStatusPending
	}
	return s
}

func IsKnownStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusDelivered, OrderStatusPickedUp, OrderStatusCancelled:
		return true
	}
	return false
}

func IsKnownPaymentMethod(method string) bool {
	return method == PaymentMethodCashOnDelivery || method == PaymentMethodOther
}

func (o Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// LastStatusChange returns when the order entered its current status.
func (o Order) LastStatusChange() time.Time {
	for i := len(o.StatusHistory) - 1; i >= 0; i-- {
		if o.StatusHistory[i].Status == o.Status {
			return o.StatusHistory[i].ChangedAt
		}
	}
	return o.CreatedAt
}

// ItemsTotal sums price*qty over the order items.
func ItemsTotal(items []OrderItem) float64 {
	total := 0.0
	for _, item := range items {
		total += item.Price * float64(item.Qty)
	}
	return total
}

// PaymentUpdate is applied together with a status change when the new
// status settles the payment.
type PaymentUpdate struct {
	Status string
	PaidAt time.Time
}
