package usecase

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"bazaar/internal/domain"
	"bazaar/internal/dto"
	apperrors "bazaar/internal/errors"
	"bazaar/internal/fingerprint"
	"bazaar/internal/metrics"
	"bazaar/internal/notification"
)

const (
	maxItemsPerOrder = 100
	maxItemQty       = 10000
)

type StockReservation interface {
	Reserve(ctx context.Context, shopID int, items []domain.OrderItem) (*dto.ReservationResult, error)
	Release(ctx context.Context, shopID int, items []domain.OrderItem) error
}

type DuplicateGuard interface {
	Lock(fp string) func()
	FindRecent(ctx context.Context, fp string, window time.Duration) (*domain.Order, bool)
}

type OrderCreator interface {
	Create(ctx context.Context, order domain.Order) error
}

type ShopRepository interface {
	FindByID(ctx context.Context, shopID int) (*domain.Shop, error)
}

type Notifier interface {
	Notify(ctx context.Context, event notification.Event)
}

type CreateRecorder interface {
	ObserveCreate(outcome string, adjustments int, started time.Time)
}

type CreateOrderUseCase struct {
	orders         OrderCreator
	shops          ShopRepository
	reservation    StockReservation
	guard          DuplicateGuard
	notifier       Notifier
	recorder       CreateRecorder
	dedupeWindow   time.Duration
	totalTolerance float64
	logger         *zap.Logger
	now            func() time.Time
	newID          func() string
}

func NewCreateOrderUseCase(
	orders OrderCreator,
	shops ShopRepository,
	reservation StockReservation,
	guard DuplicateGuard,
	notifier Notifier,
	recorder CreateRecorder,
	dedupeWindow time.Duration,
	totalTolerance float64,
	logger *zap.Logger,
) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		orders:         orders,
		shops:          shops,
		reservation:    reservation,
		guard:          guard,
		notifier:       notifier,
		recorder:       recorder,
		dedupeWindow:   dedupeWindow,
		totalTolerance: totalTolerance,
		logger:         logger,
		now:            time.Now,
		newID:          func() string { return ulid.Make().String() },
	}
}

func (uc *CreateOrderUseCase) CreateOrder(ctx context.Context, req dto.CreateOrderRequest, actor domain.Actor) (*dto.CreateOrderResult, error) {
	started := uc.now()

	result, err := uc.createOrder(ctx, req, actor)

	adjustments := 0
	if result != nil && !result.Duplicate {
		adjustments = len(result.Adjustments)
	}
	uc.recorder.ObserveCreate(createOutcome(result, err), adjustments, started)

	return result, err
}

func (uc *CreateOrderUseCase) createOrder(ctx context.Context, req dto.CreateOrderRequest, actor domain.Actor) (*dto.CreateOrderResult, error) {
	// 1. Identity and input
	if actor.IsAdmin() {
		return nil, apperrors.NewForbiddenError("admins have read-only access to orders")
	}
	if actor.ID == "" {
		return nil, apperrors.NewForbiddenError("customer identity required")
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCashOnDelivery
	}
	items := toOrderItems(req.Items)
	if err := uc.validate(req, items); err != nil {
		return nil, err
	}

	logger := uc.logger.With(zap.Int("shopId", req.ShopID), zap.String("customerId", actor.ID))
	logger.Info("create order started", zap.Int("itemCount", len(items)))

	shop, err := uc.shops.FindByID(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}

	result, err := uc.placeOrder(ctx, req, items, actor, logger)
	if err != nil || result.Duplicate {
		return result, err
	}

	// 5. Tell the shop, once the fingerprint lock is released
	uc.notifier.Notify(ctx, notification.Event{
		Type:      notification.TypeNewOrder,
		OrderID:   result.Order.ID,
		ShopID:    shop.ID,
		Recipient: shop.OwnerID,
	})

	return result, nil
}

// placeOrder runs the duplicate check, reservation and persist steps while
// holding the fingerprint lock.
func (uc *CreateOrderUseCase) placeOrder(ctx context.Context, req dto.CreateOrderRequest, items []domain.OrderItem, actor domain.Actor, logger *zap.Logger) (*dto.CreateOrderResult, error) {
	// 2. Duplicate submission
	fp := fingerprint.Compute(req.ShopID, items, req.Total, actor.ID)
	unlock := uc.guard.Lock(fp)
	defer unlock()

	if existing, ok := uc.guard.FindRecent(ctx, fp, uc.dedupeWindow); ok {
		logger.Info("duplicate submission, returning existing order", zap.String("orderId", existing.ID))
		return &dto.CreateOrderResult{Order: existing, Duplicate: true}, nil
	}

	// 3. Reserve stock
	reservation, err := uc.reservation.Reserve(ctx, req.ShopID, items)
	if err != nil {
		logger.Warn("reservation failed", zap.Error(err))
		return nil, err
	}

	// 4. Persist
	now := uc.now().UTC()
	order := domain.Order{
		ID:            uc.newID(),
		ShopID:        req.ShopID,
		CustomerID:    actor.ID,
		Items:         reservation.Items,
		Total:         roundCents(domain.ItemsTotal(reservation.Items)),
		PaymentMethod: req.PaymentMethod,
		Status:        domain.OrderStatusPending,
		StatusHistory: []domain.StatusHistoryEntry{{Status: domain.OrderStatusPending, ChangedAt: now}},
		PaymentStatus: domain.PaymentStatusPending,
		Fingerprint:   &fp,
		CustomerSnapshot: domain.CustomerSnapshot{
			Name:    strings.TrimSpace(req.Customer.Name),
			Email:   strings.TrimSpace(req.Customer.Email),
			Phone:   strings.TrimSpace(req.Customer.Phone),
			Address: strings.TrimSpace(req.Customer.Address),
		},
		CreatedAt: now,
	}

	if err := uc.orders.Create(ctx, order); err != nil {
		logger.Error("failed to persist order, releasing stock", zap.String("orderId", order.ID), zap.Error(err))
		if relErr := uc.reservation.Release(context.WithoutCancel(ctx), req.ShopID, reservation.Items); relErr != nil {
			logger.Error("stock release failed", zap.String("orderId", order.ID), zap.Error(relErr))
		}
		return nil, apperrors.NewInternalError("failed to persist order", err)
	}

	logger.Info("order created",
		zap.String("orderId", order.ID),
		zap.Float64("total", order.Total),
		zap.Bool("capped", reservation.Capped()),
		zap.Int("adjustmentCount", len(reservation.Adjustments)))

	return &dto.CreateOrderResult{Order: &order, Adjustments: reservation.Adjustments}, nil
}

// validate checks the request shape and that the client total matches the
// item prices.
func (uc *CreateOrderUseCase) validate(req dto.CreateOrderRequest, items []domain.OrderItem) error {
	var details []apperrors.ValidationDetail

	if req.ShopID <= 0 {
		msg := "shopId must be a positive integer"
		if req.ShopID == 0 {
			msg = "shopId is required"
		}
		details = append(details, apperrors.ValidationDetail{Field: "shopId", Message: msg})
	}

	if len(items) == 0 {
		details = append(details, apperrors.ValidationDetail{Field: "items", Message: "items must not be empty"})
	}
	if len(items) > maxItemsPerOrder {
		details = append(details, apperrors.ValidationDetail{
			Field:   "items",
			Message: fmt.Sprintf("items exceeds maximum of %d", maxItemsPerOrder),
		})
	}

	firstLine := make(map[string]domain.OrderItem, len(items))
	for idx, item := range items {
		field := "items[" + strconv.Itoa(idx) + "]"
		if strings.TrimSpace(item.ProductID) == "" {
			details = append(details, apperrors.ValidationDetail{Field: field + ".productId", Message: "productId is required"})
		} else if first, seen := firstLine[item.ProductID]; !seen {
			firstLine[item.ProductID] = item
		} else if first.Price != item.Price || first.Name != item.Name {
			// repeated lines are merged, which only holds when they agree
			details = append(details, apperrors.ValidationDetail{
				Field:   field + ".productId",
				Message: "repeated productId must have the same name and price",
			})
		}
		if item.Qty < 1 || item.Qty > maxItemQty {
			details = append(details, apperrors.ValidationDetail{
				Field:   field + ".qty",
				Message: fmt.Sprintf("qty must be between 1 and %d", maxItemQty),
			})
		}
		if item.Price < 0 || math.IsNaN(item.Price) || math.IsInf(item.Price, 0) {
			details = append(details, apperrors.ValidationDetail{Field: field + ".price", Message: "price must be non-negative"})
		}
	}

	if req.Total < 0 || math.IsNaN(req.Total) {
		details = append(details, apperrors.ValidationDetail{Field: "total", Message: "total must be non-negative"})
	} else if len(details) == 0 && math.Abs(req.Total-domain.ItemsTotal(items)) > uc.totalTolerance {
		details = append(details, apperrors.ValidationDetail{
			Field:   "total",
			Message: fmt.Sprintf("total %.2f does not match item prices %.2f", req.Total, domain.ItemsTotal(items)),
		})
	}

	if !domain.IsKnownPaymentMethod(req.PaymentMethod) {
		details = append(details, apperrors.ValidationDetail{
			Field:   "paymentMethod",
			Message: "paymentMethod must be cash_on_delivery or other",
		})
	}

	if strings.TrimSpace(req.Customer.Name) == "" {
		details = append(details, apperrors.ValidationDetail{Field: "customer.name", Message: "customer name is required"})
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}

func toOrderItems(items []dto.CreateOrderItem) []domain.OrderItem {
	out := make([]domain.OrderItem, len(items))
	for i, item := range items {
		out[i] = domain.OrderItem{
			ProductID: strings.TrimSpace(string(item.ProductID)),
			Name:      item.Name,
			Qty:       item.Qty,
			Price:     item.Price,
		}
	}
	return out
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func createOutcome(result *dto.CreateOrderResult, err error) string {
	if err == nil {
		if result.Duplicate {
			return metrics.OutcomeDuplicate
		}
		return metrics.OutcomeCreated
	}
	if _, ok := apperrors.IsOutOfStockError(err); ok {
		return metrics.OutcomeOutOfStock
	}
	if _, ok := apperrors.IsConcurrentStockConflictError(err); ok {
		return metrics.OutcomeConflict
	}
	if _, ok := apperrors.IsValidationError(err); ok {
		return metrics.OutcomeRejected
	}
	if _, ok := apperrors.IsForbiddenError(err); ok {
		return metrics.OutcomeRejected
	}
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
