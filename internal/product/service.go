package product

import (
	"context"
	"strings"

	"bazaar/internal/domain"
)

// StockLine is a product a cart holds. Qty zero asks for availability only.
type StockLine struct {
	ProductID string
	Qty       int
}

// LinePreview is what a reservation made now would keep for one line.
type LinePreview struct {
	Product    domain.Product
	Requested  int
	Reservable int
}

// Capped reports whether the line would be reduced or dropped at checkout.
func (p LinePreview) Capped() bool {
	return p.Requested > 0 && p.Reservable < p.Requested
}

type stockPreviewService struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &stockPreviewService{repo: repo}
}

// PreviewReservation applies the checkout cap policy to current stock
// without touching it. Lines keep the caller's order; repeated ids are
// merged into their first position.
func (s *stockPreviewService) PreviewReservation(ctx context.Context, shopID int, lines []StockLine) ([]LinePreview, []string, error) {
	lines = mergeLines(lines)

	ids := make([]string, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}

	found, err := s.repo.FindByIDsAndShop(ctx, ids, shopID)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[string]domain.Product, len(found))
	for _, p := range found {
		byID[p.ProductID] = p
	}

	previews := make([]LinePreview, 0, len(lines))
	var unknownIDs []string
	for _, line := range lines {
		p, ok := byID[line.ProductID]
		if !ok {
			unknownIDs = append(unknownIDs, line.ProductID)
			continue
		}

		reservable := p.AvailableStock()
		if line.Qty > 0 && line.Qty < reservable {
			reservable = line.Qty
		}
		previews = append(previews, LinePreview{Product: p, Requested: line.Qty, Reservable: reservable})
	}

	return previews, unknownIDs, nil
}

func mergeLines(lines []StockLine) []StockLine {
	index := make(map[string]int, len(lines))
	merged := make([]StockLine, 0, len(lines))
	for _, line := range lines {
		line.ProductID = strings.TrimSpace(line.ProductID)
		if i, ok := index[line.ProductID]; ok {
			merged[i].Qty += line.Qty
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}
