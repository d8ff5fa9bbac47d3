package product

import (
	"context"

	"bazaar/internal/domain"
)

type LookupUseCase interface {
	LookupStock(ctx context.Context, req StockLookupRequest) (*StockLookupResponse, error)
}

type Service interface {
	PreviewReservation(ctx context.Context, shopID int, lines []StockLine) (previews []LinePreview, unknownIDs []string, err error)
}

type Repository interface {
	FindByIDsAndShop(ctx context.Context, ids []string, shopID int) ([]domain.Product, error)
}
