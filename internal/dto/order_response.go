package dto

import (
	"time"

	"bazaar/internal/domain"
)

type OrderDTO struct {
	ID               string                      `json:"id"`
	ShopID           int                         `json:"shopId"`
	CustomerID       string                      `json:"customerId"`
	Items            []domain.OrderItem          `json:"items"`
	Total            float64                     `json:"total"`
	PaymentMethod    string                      `json:"paymentMethod"`
	Status           string                      `json:"status"`
	StatusHistory    []domain.StatusHistoryEntry `json:"statusHistory"`
	PaymentStatus    string                      `json:"paymentStatus"`
	PaymentPaidAt    *time.Time                  `json:"paymentPaidAt,omitempty"`
	CustomerSnapshot domain.CustomerSnapshot     `json:"customer"`
	CreatedAt        time.Time                   `json:"createdAt"`
}

func NewOrderDTO(o domain.Order) OrderDTO {
	return OrderDTO{
		ID:               o.ID,
		ShopID:           o.ShopID,
		CustomerID:       o.CustomerID,
		Items:            o.Items,
		Total:            o.Total,
		PaymentMethod:    o.PaymentMethod,
		Status:           o.Status,
		StatusHistory:    o.StatusHistory,
		PaymentStatus:    o.PaymentStatus,
		PaymentPaidAt:    o.PaymentPaidAt,
		CustomerSnapshot: o.CustomerSnapshot,
		CreatedAt:        o.CreatedAt,
	}
}

func NewOrderDTOs(orders []domain.Order) []OrderDTO {
	out := make([]OrderDTO, len(orders))
	for i, o := range orders {
		out[i] = NewOrderDTO(o)
	}
	return out
}

type CreateOrderResponse struct {
	TraceID     string       `json:"traceId"`
	Order       OrderDTO     `json:"order"`
	Adjustments []Adjustment `json:"adjustments"`
	Duplicate   bool         `json:"duplicate"`
	Timestamp   time.Time    `json:"timestamp"`
}

type OrderResponse struct {
	TraceID   string    `json:"traceId"`
	Order     OrderDTO  `json:"order"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderListResponse struct {
	TraceID  string     `json:"traceId"`
	Orders   []OrderDTO `json:"orders"`
	Total    int        `json:"total,omitempty"`
	Page     int        `json:"page,omitempty"`
	PageSize int        `json:"pageSize,omitempty"`
}

type ErrorResponse struct {
	TraceID     string       `json:"traceId"`
	Status      int          `json:"status"`
	Message     string       `json:"message"`
	Code        string       `json:"code"`
	OrderID     string       `json:"orderId,omitempty"`
	Adjustments []Adjustment `json:"adjustments,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}
