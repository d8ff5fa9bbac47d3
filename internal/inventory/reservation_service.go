package inventory

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"bazaar/internal/domain"
	"bazaar/internal/dto"
	"bazaar/internal/errors"
)

// StockStore is the per-product stock counter. DecrementIfAvailable must be
// atomic: it lowers stock by qty only when stock >= qty at write time.
type StockStore interface {
	FindStock(ctx context.Context, shopID int, productID string) (int, error)
	DecrementIfAvailable(ctx context.Context, shopID int, productID string, qty int) (bool, error)
	Increment(ctx context.Context, shopID int, productID string, qty int) error
}

type ReservationService struct {
	store       StockStore
	logger      *zap.Logger
	maxAttempts int
	backoffs    []time.Duration
}

func NewReservationService(store StockStore, logger *zap.Logger, maxAttempts int) *ReservationService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &ReservationService{
		store:       store,
		logger:      logger,
		maxAttempts: maxAttempts,
		// attempt 1 (0ms), attempt 2 (50ms), attempt 3+ (100ms)
		backoffs: []time.Duration{0, 50 * time.Millisecond, 100 * time.Millisecond},
	}
}

// Reserve caps or drops items to the available stock and decrements the
// survivors. Either every surviving item is decremented or none is.
func (s *ReservationService) Reserve(ctx context.Context, shopID int, items []domain.OrderItem) (*dto.ReservationResult, error) {
	requested := MergeItems(items)
	s.logger.Info("reservation started", zap.Int("shopId", shopID), zap.Int("itemCount", len(requested)))

	var lostProduct string
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		result, lost, err := s.reserveOnce(ctx, shopID, requested)
		if err == nil && lost == "" {
			s.logger.Info("reservation committed",
				zap.Int("shopId", shopID),
				zap.Int("reservedCount", len(result.Items)),
				zap.Int("adjustmentCount", len(result.Adjustments)),
				zap.Int("attempt", attempt))
			return result, nil
		}

		if err != nil {
			if !isDeadlockError(err) {
				return nil, err
			}
			if attempt == s.maxAttempts {
				return nil, errors.NewDeadlockError("max retries exceeded")
			}
			s.logger.Warn("deadlock detected, retrying", zap.Int("attempt", attempt), zap.Int("maxAttempts", s.maxAttempts), zap.Int("shopId", shopID))
		} else {
			lostProduct = lost
			s.logger.Warn("stock changed during reservation",
				zap.Int("attempt", attempt), zap.Int("maxAttempts", s.maxAttempts),
				zap.Int("shopId", shopID), zap.String("productId", lost))
		}

		if attempt < s.maxAttempts {
			if err := s.wait(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}

	return nil, errors.NewConcurrentStockConflictError("stock changed during reservation", lostProduct)
}

// Release returns reserved quantities to stock. Every item is attempted even
// when an earlier one fails.
func (s *ReservationService) Release(ctx context.Context, shopID int, items []domain.OrderItem) error {
	var errs []error
	for _, item := range items {
		if err := s.store.Increment(ctx, shopID, item.ProductID, item.Qty); err != nil {
			s.logger.Error("failed to release stock",
				zap.Int("shopId", shopID), zap.String("productId", item.ProductID),
				zap.Int("qty", item.Qty), zap.Error(err))
			errs = append(errs, fmt.Errorf("releasing %s: %w", item.ProductID, err))
		}
	}
	return stderrors.Join(errs...)
}

// reserveOnce runs one read, cap and decrement pass. A non-empty productID
// means the conditional decrement for that product lost a race; everything
// decremented before it has been restored.
func (s *ReservationService) reserveOnce(ctx context.Context, shopID int, requested []domain.OrderItem) (*dto.ReservationResult, string, error) {
	// 1. Read current stock and apply the cap policy
	result := &dto.ReservationResult{}
	for _, item := range requested {
		available, err := s.store.FindStock(ctx, shopID, item.ProductID)
		if err != nil {
			if _, ok := errors.IsNotFoundError(err); !ok {
				return nil, "", err
			}
			available = 0
		}

		switch {
		case available <= 0:
			result.Adjustments = append(result.Adjustments, dto.Adjustment{ProductID: item.ProductID, Requested: item.Qty, Available: 0})
		case available < item.Qty:
			result.Adjustments = append(result.Adjustments, dto.Adjustment{ProductID: item.ProductID, Requested: item.Qty, Available: available})
			capped := item
			capped.Qty = available
			result.Items = append(result.Items, capped)
		default:
			result.Items = append(result.Items, item)
		}
	}

	// 2. Nothing left to reserve
	if len(result.Items) == 0 {
		return nil, "", errors.NewOutOfStockError("all items are out of stock", toStockAdjustments(result.Adjustments)...)
	}

	// 3. Conditional decrement, re-validated by the store. Rows are touched
	// in productId order so concurrent reservations lock them consistently.
	var done []domain.OrderItem
	for _, item := range byProductID(result.Items) {
		ok, err := s.store.DecrementIfAvailable(ctx, shopID, item.ProductID, item.Qty)
		if err != nil {
			s.compensate(ctx, shopID, done)
			return nil, "", err
		}
		if !ok {
			s.compensate(ctx, shopID, done)
			return nil, item.ProductID, nil
		}
		done = append(done, item)
	}

	return result, "", nil
}

func (s *ReservationService) compensate(ctx context.Context, shopID int, done []domain.OrderItem) {
	if len(done) == 0 {
		return
	}
	// the caller's context may already be cancelled
	if err := s.Release(context.WithoutCancel(ctx), shopID, done); err != nil {
		s.logger.Error("stock compensation incomplete", zap.Int("shopId", shopID), zap.Error(err))
	}
}

func (s *ReservationService) wait(ctx context.Context, attempt int) error {
	base := s.backoffs[len(s.backoffs)-1]
	if attempt < len(s.backoffs) {
		base = s.backoffs[attempt]
	}
	// ±20% jitter
	delay := time.Duration(float64(base) * (0.8 + rand.Float64()*0.4))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MergeItems sums quantities of repeated productIds, keeping the position,
// name and price of the first occurrence. Callers reject repeats that
// disagree on name or price before reserving.
func MergeItems(items []domain.OrderItem) []domain.OrderItem {
	index := make(map[string]int, len(items))
	var merged []domain.OrderItem
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Qty += item.Qty
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

func byProductID(items []domain.OrderItem) []domain.OrderItem {
	sorted := make([]domain.OrderItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
	return sorted
}

func toStockAdjustments(adjustments []dto.Adjustment) []errors.StockAdjustment {
	out := make([]errors.StockAdjustment, 0, len(adjustments))
	for _, a := range adjustments {
		out = append(out, errors.StockAdjustment{ProductID: a.ProductID, Requested: a.Requested, Available: a.Available})
	}
	return out
}

func isDeadlockError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if stderrors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}
