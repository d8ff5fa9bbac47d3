package product

import (
	"context"
)

type lookupUseCase struct {
	service Service
}

func NewLookupUseCase(service Service) LookupUseCase {
	return &lookupUseCase{service: service}
}

func (uc *lookupUseCase) LookupStock(ctx context.Context, req StockLookupRequest) (*StockLookupResponse, error) {
	previews, unknownIDs, err := uc.service.PreviewReservation(ctx, req.ShopID, req.Lines())
	if err != nil {
		return nil, err
	}

	products := make([]StockDTO, 0, len(previews))
	for _, p := range previews {
		products = append(products, StockDTO{
			ProductID:      p.Product.ProductID,
			Name:           p.Product.Name,
			AvailableStock: p.Product.AvailableStock(),
			InStock:        p.Product.AvailableStock() > 0,
			Requested:      p.Requested,
			Reservable:     p.Reservable,
			Capped:         p.Capped(),
		})
	}

	if unknownIDs == nil {
		unknownIDs = []string{}
	}

	return &StockLookupResponse{
		Products: products,
		NotFound: unknownIDs,
	}, nil
}
