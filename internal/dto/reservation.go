package dto

import "bazaar/internal/domain"

// Adjustment describes an item whose quantity was capped or dropped
// because the shop did not have enough stock.
type Adjustment struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type ReservationResult struct {
	Items       []domain.OrderItem
	Adjustments []Adjustment
}

func (r ReservationResult) Capped() bool {
	return len(r.Adjustments) > 0
}
