package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"bazaar/internal/domain"
	"bazaar/internal/errors"
)

// Compute returns a hex SHA-256 over the shop, the items sorted by
// productId, the total and the customer identity. Prices are rounded to
// cents so float noise does not change the key.
func Compute(shopID int, items []domain.OrderItem, total float64, customerID string) string {
	sorted := make([]domain.OrderItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ProductID != sorted[j].ProductID {
			return sorted[i].ProductID < sorted[j].ProductID
		}
		if sorted[i].Qty != sorted[j].Qty {
			return sorted[i].Qty < sorted[j].Qty
		}
		return sorted[i].Price < sorted[j].Price
	})

	var b strings.Builder
	fmt.Fprintf(&b, "shop=%d|customer=%s|total=%.2f|items=", shopID, customerID, total)
	for _, item := range sorted {
		fmt.Fprintf(&b, "%s:%d:%.2f;", item.ProductID, item.Qty, item.Price)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

type OrderFinder interface {
	FindLatestByFingerprint(ctx context.Context, fingerprint string, since time.Time) (*domain.Order, error)
}

type Guard struct {
	finder OrderFinder
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewGuard(finder OrderFinder, logger *zap.Logger) *Guard {
	return &Guard{
		finder: finder,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*keyLock),
	}
}

// FindRecent looks for an order with the same fingerprint created within
// window. Lookup failures are logged and reported as "no duplicate" so a
// flaky store never blocks checkout.
func (g *Guard) FindRecent(ctx context.Context, fp string, window time.Duration) (*domain.Order, bool) {
	since := g.now().Add(-window)

	order, err := g.finder.FindLatestByFingerprint(ctx, fp, since)
	if err != nil {
		if _, ok := errors.IsNotFoundError(err); !ok {
			g.logger.Warn("fingerprint lookup failed, continuing without dedupe",
				zap.String("fingerprint", fp), zap.Error(err))
		}
		return nil, false
	}
	if order == nil {
		return nil, false
	}

	return order, true
}

// Lock serializes callers holding the same fingerprint within this
// process. The returned func releases the lock.
func (g *Guard) Lock(fp string) func() {
	g.mu.Lock()
	l, ok := g.locks[fp]
	if !ok {
		l = &keyLock{}
		g.locks[fp] = l
	}
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, fp)
		}
		g.mu.Unlock()
	}
}
