package usecase

import (
	"context"

	"go.uber.org/zap"

	"bazaar/internal/domain"
	"bazaar/internal/dto"
	apperrors "bazaar/internal/errors"
)

type StatusTransitioner interface {
	Transition(ctx context.Context, orderID string, requested string, actor domain.Actor) (*domain.Order, error)
	Delete(ctx context.Context, orderID string, actor domain.Actor) error
}

type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error)
}

type ShopReadAuthorizer interface {
	AuthorizeShopRead(ctx context.Context, actor domain.Actor, shopID int) error
}

type OrderQueryRepository interface {
	FindByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	FindByShop(ctx context.Context, shopID int, filter dto.OrderFilter, page dto.Page) ([]domain.Order, error)
	Search(ctx context.Context, filter dto.OrderFilter, page dto.Page) ([]domain.Order, int, error)
}

// OrderUseCase drives status and payment changes and serves order listings.
type OrderUseCase struct {
	status   StatusTransitioner
	payments PaymentConfirmer
	access   ShopReadAuthorizer
	orders   OrderQueryRepository
	logger   *zap.Logger
}

func NewOrderUseCase(
	status StatusTransitioner,
	payments PaymentConfirmer,
	access ShopReadAuthorizer,
	orders OrderQueryRepository,
	logger *zap.Logger,
) *OrderUseCase {
	return &OrderUseCase{
		status:   status,
		payments: payments,
		access:   access,
		orders:   orders,
		logger:   logger,
	}
}

func (uc *OrderUseCase) UpdateOrderStatus(ctx context.Context, orderID string, status string, actor domain.Actor) (*domain.Order, error) {
	if orderID == "" {
		return nil, apperrors.NewValidationError("orderId is required", apperrors.ValidationDetail{Field: "orderId", Message: "orderId is required"})
	}
	if status == "" {
		return nil, apperrors.NewValidationError("status is required", apperrors.ValidationDetail{Field: "status", Message: "status is required"})
	}
	return uc.status.Transition(ctx, orderID, status, actor)
}

func (uc *OrderUseCase) ConfirmPayment(ctx context.Context, orderID string, actor domain.Actor) (*domain.Order, error) {
	if orderID == "" {
		return nil, apperrors.NewValidationError("orderId is required", apperrors.ValidationDetail{Field: "orderId", Message: "orderId is required"})
	}
	return uc.payments.ConfirmPayment(ctx, orderID, actor)
}

func (uc *OrderUseCase) DeleteOrder(ctx context.Context, orderID string, actor domain.Actor) error {
	if orderID == "" {
		return apperrors.NewValidationError("orderId is required", apperrors.ValidationDetail{Field: "orderId", Message: "orderId is required"})
	}
	return uc.status.Delete(ctx, orderID, actor)
}

func (uc *OrderUseCase) GetMyOrders(ctx context.Context, actor domain.Actor) ([]domain.Order, error) {
	if actor.ID == "" {
		return nil, apperrors.NewForbiddenError("customer identity required")
	}
	return uc.orders.FindByCustomer(ctx, actor.ID)
}

func (uc *OrderUseCase) ListShopOrders(ctx context.Context, shopID int, filter dto.OrderFilter, page dto.Page, actor domain.Actor) ([]domain.Order, error) {
	if err := uc.access.AuthorizeShopRead(ctx, actor, shopID); err != nil {
		return nil, err
	}
	filter.Status = normalizeFilterStatus(filter.Status)
	return uc.orders.FindByShop(ctx, shopID, filter, page)
}

// AdminListOrders searches across all shops. Admin only.
func (uc *OrderUseCase) AdminListOrders(ctx context.Context, filter dto.OrderFilter, page dto.Page, actor domain.Actor) ([]domain.Order, int, error) {
	if !actor.IsAdmin() {
		return nil, 0, apperrors.NewForbiddenError("admin role required")
	}
	filter.Status = normalizeFilterStatus(filter.Status)

	orders, total, err := uc.orders.Search(ctx, filter, page)
	if err != nil {
		uc.logger.Error("admin order search failed", zap.Error(err))
		return nil, 0, err
	}
	return orders, total, nil
}

func normalizeFilterStatus(status string) string {
	if status == "" {
		return ""
	}
	return domain.NormalizeStatus(status)
}
