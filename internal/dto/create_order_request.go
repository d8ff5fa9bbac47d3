package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"bazaar/internal/domain"
)

type CreateOrderRequest struct {
	ShopID        int               `json:"shopId"`
	Items         []CreateOrderItem `json:"items"`
	Total         float64           `json:"total"`
	PaymentMethod string            `json:"paymentMethod"`
	Customer      CustomerInfo      `json:"customer"`
}

type CreateOrderItem struct {
	ProductID ProductRef `json:"productId"`
	Name      string     `json:"name"`
	Qty       int        `json:"qty"`
	Price     float64    `json:"price"`
}

type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// ProductRef accepts both catalog ids ("64f0c...") and legacy numeric ids (42).
type ProductRef string

func (p *ProductRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ProductRef(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("productId must be a string or an integer: %w", err)
	}
	*p = ProductRef(strconv.FormatInt(n, 10))
	return nil
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// CreateOrderResult is the outcome of a create-order call. Duplicate is set
// when an identical submission was found and returned instead.
type CreateOrderResult struct {
	Order       *domain.Order
	Adjustments []Adjustment
	Duplicate   bool
}
