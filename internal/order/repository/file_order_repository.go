package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"bazaar/internal/domain"
	"bazaar/internal/dto"
	"bazaar/internal/errors"
	"bazaar/internal/infrastructure/filestore"
)

type orderTable map[string]domain.Order

// FileOrderRepository keeps every order in a single JSON document. It is the
// fallback store when no database is configured.
type FileOrderRepository struct {
	doc *filestore.Document[orderTable]
}

func NewFileOrderRepository(dataDir string) (*FileOrderRepository, error) {
	doc, err := filestore.NewDocument(filepath.Join(dataDir, "orders.json"), func() orderTable {
		return orderTable{}
	})
	if err != nil {
		return nil, err
	}
	return &FileOrderRepository{doc: doc}, nil
}

func (r *FileOrderRepository) Create(ctx context.Context, order domain.Order) error {
	return r.doc.Update(func(t *orderTable) error {
		if _, exists := (*t)[order.ID]; exists {
			return errors.NewConflictError(fmt.Sprintf("order %s already exists", order.ID))
		}
		(*t)[order.ID] = order
		return nil
	})
}

func (r *FileOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	table, err := r.doc.Read()
	if err != nil {
		return nil, err
	}

	order, ok := table[id]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", id))
	}

	return &order, nil
}

func (r *FileOrderRepository) FindByShop(ctx context.Context, shopID int, filter dto.OrderFilter, page dto.Page) ([]domain.Order, error) {
	filter.ShopID = shopID
	orders, err := r.filter(func(o domain.Order) bool { return matchesFilter(o, filter) })
	if err != nil {
		return nil, err
	}
	return paginate(orders, page), nil
}

func (r *FileOrderRepository) FindByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.CustomerID == customerID })
}

func (r *FileOrderRepository) FindLatestByFingerprint(ctx context.Context, fingerprint string, since time.Time) (*domain.Order, error) {
	orders, err := r.filter(func(o domain.Order) bool {
		return o.Fingerprint != nil && *o.Fingerprint == fingerprint && !o.CreatedAt.Before(since)
	})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, errors.NewNotFoundError("no recent order with fingerprint")
	}
	return &orders[0], nil
}

func (r *FileOrderRepository) FindSiblings(ctx context.Context, customerID string, from, to time.Time, excludeID string) ([]domain.Order, error) {
	return r.filter(func(o domain.Order) bool {
		return o.CustomerID == customerID && o.ID != excludeID &&
			!o.CreatedAt.Before(from) && !o.CreatedAt.After(to)
	})
}

func (r *FileOrderRepository) ListByStatus(ctx context.Context, status string) ([]domain.Order, error) {
	return r.filter(func(o domain.Order) bool { return o.Status == status })
}

// Search matches text against order and customer fields only; shop names
// live outside this document.
func (r *FileOrderRepository) Search(ctx context.Context, filter dto.OrderFilter, page dto.Page) ([]domain.Order, int, error) {
	orders, err := r.filter(func(o domain.Order) bool { return matchesFilter(o, filter) })
	if err != nil {
		return nil, 0, err
	}
	return paginate(orders, page), len(orders), nil
}

func (r *FileOrderRepository) UpdateStatus(ctx context.Context, id string, from, to string, entry domain.StatusHistoryEntry, payment *domain.PaymentUpdate) (*domain.Order, error) {
	var updated domain.Order
	err := r.doc.Update(func(t *orderTable) error {
		order, ok := (*t)[id]
		if !ok {
			return errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", id))
		}
		if order.Status != from {
			return errors.NewConflictError(fmt.Sprintf("order %s is %s, expected %s", id, order.Status, from))
		}

		order.Status = to
		order.StatusHistory = append(order.StatusHistory, entry)
		// a payment confirmed since the caller read the order keeps its time
		if payment != nil && order.PaymentPaidAt == nil {
			paidAt := payment.PaidAt
			order.PaymentStatus = payment.Status
			order.PaymentPaidAt = &paidAt
		}
		(*t)[id] = order
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

func (r *FileOrderRepository) UpdatePayment(ctx context.Context, id string, paymentStatus string, paidAt *time.Time) (*domain.Order, error) {
	var updated domain.Order
	err := r.doc.Update(func(t *orderTable) error {
		order, ok := (*t)[id]
		if !ok {
			return errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", id))
		}
		order.PaymentStatus = paymentStatus
		order.PaymentPaidAt = paidAt
		(*t)[id] = order
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

func (r *FileOrderRepository) Delete(ctx context.Context, id string) error {
	return r.doc.Update(func(t *orderTable) error {
		if _, ok := (*t)[id]; !ok {
			return errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", id))
		}
		delete(*t, id)
		return nil
	})
}

// filter returns matching orders newest first.
func (r *FileOrderRepository) filter(match func(domain.Order) bool) ([]domain.Order, error) {
	table, err := r.doc.Read()
	if err != nil {
		return nil, err
	}

	var orders []domain.Order
	for _, o := range table {
		if match(o) {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})

	return orders, nil
}

func matchesFilter(o domain.Order, filter dto.OrderFilter) bool {
	if filter.ShopID > 0 && o.ShopID != filter.ShopID {
		return false
	}
	if filter.Status != "" && o.Status != filter.Status {
		return false
	}
	if filter.From != nil && o.CreatedAt.Before(*filter.From) {
		return false
	}
	if filter.To != nil && o.CreatedAt.After(*filter.To) {
		return false
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	if search == "" {
		return true
	}
	if o.ID == filter.Search {
		return true
	}
	for _, field := range []string{
		o.CustomerID,
		o.CustomerSnapshot.Name,
		o.CustomerSnapshot.Email,
		o.CustomerSnapshot.Phone,
		o.CustomerSnapshot.Address,
	} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func paginate(orders []domain.Order, page dto.Page) []domain.Order {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(orders) {
		return nil
	}
	end := start + page.Size
	if end > len(orders) {
		end = len(orders)
	}
	return orders[start:end]
}
