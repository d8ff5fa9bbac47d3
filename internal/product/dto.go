package product

// StockLookupRequest names products either as bare ids or as cart lines
// with the quantity about to be ordered.
type StockLookupRequest struct {
	ShopID     int               `json:"-"`
	ProductIDs []string          `json:"productIds"`
	Items      []StockLookupItem `json:"items"`
}

type StockLookupItem struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

func (r StockLookupRequest) Lines() []StockLine {
	lines := make([]StockLine, 0, len(r.ProductIDs)+len(r.Items))
	for _, id := range r.ProductIDs {
		lines = append(lines, StockLine{ProductID: id})
	}
	for _, item := range r.Items {
		lines = append(lines, StockLine{ProductID: item.ProductID, Qty: item.Qty})
	}
	return lines
}

type StockLookupResponse struct {
	Products []StockDTO `json:"products"`
	NotFound []string   `json:"notFound"`
}

type StockDTO struct {
	ProductID      string `json:"productId"`
	Name           string `json:"name"`
	AvailableStock int    `json:"availableStock"`
	InStock        bool   `json:"inStock"`
	Requested      int    `json:"requested,omitempty"`
	Reservable     int    `json:"reservable"`
	Capped         bool   `json:"capped"`
}
