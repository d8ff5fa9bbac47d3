package domain

// Product is the slice of the catalog entry the engine needs: the stock
// counter scoped to a shop. ProductID is either a catalog id or a legacy
// numeric id rendered as a string.
type Product struct {
	ProductID string `json:"productId"`
	ShopID    int    `json:"shopId"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
}

func (p Product) AvailableStock() int {
	if p.Stock < 0 {
		return 0
	}
	return p.Stock
}
