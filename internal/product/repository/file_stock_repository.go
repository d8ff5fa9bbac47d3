package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"bazaar/internal/domain"
	"bazaar/internal/errors"
	"bazaar/internal/infrastructure/filestore"
)

type stockTable map[string]domain.Product

func stockKey(shopID int, productID string) string {
	return fmt.Sprintf("%d/%s", shopID, productID)
}

// FileStockRepository is the flat-file fallback for stock counters.
type FileStockRepository struct {
	doc *filestore.Document[stockTable]
}

func NewFileStockRepository(dataDir string) (*FileStockRepository, error) {
	doc, err := filestore.NewDocument(filepath.Join(dataDir, "stock.json"), func() stockTable {
		return stockTable{}
	})
	if err != nil {
		return nil, err
	}
	return &FileStockRepository{doc: doc}, nil
}

// Upsert sets the stock counter for a product, creating it when missing.
func (r *FileStockRepository) Upsert(ctx context.Context, p domain.Product) error {
	return r.doc.Update(func(t *stockTable) error {
		(*t)[stockKey(p.ShopID, p.ProductID)] = p
		return nil
	})
}

func (r *FileStockRepository) FindByIDsAndShop(ctx context.Context, ids []string, shopID int) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	table, err := r.doc.Read()
	if err != nil {
		return nil, err
	}

	var products []domain.Product
	for _, id := range ids {
		if p, ok := table[stockKey(shopID, id)]; ok {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ProductID < products[j].ProductID })

	return products, nil
}

func (r *FileStockRepository) FindStock(ctx context.Context, shopID int, productID string) (int, error) {
	table, err := r.doc.Read()
	if err != nil {
		return 0, err
	}

	p, ok := table[stockKey(shopID, productID)]
	if !ok {
		return 0, errors.NewNotFoundError(fmt.Sprintf("product %s not found in shop %d", productID, shopID))
	}

	return p.Stock, nil
}

func (r *FileStockRepository) DecrementIfAvailable(ctx context.Context, shopID int, productID string, qty int) (bool, error) {
	decremented := false
	err := r.doc.Update(func(t *stockTable) error {
		key := stockKey(shopID, productID)
		p, ok := (*t)[key]
		if !ok || p.Stock < qty {
			return errNoChange
		}
		p.Stock -= qty
		(*t)[key] = p
		decremented = true
		return nil
	})
	if err == errNoChange {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("decrementing stock: %w", err)
	}

	return decremented, nil
}

func (r *FileStockRepository) Increment(ctx context.Context, shopID int, productID string, qty int) error {
	return r.doc.Update(func(t *stockTable) error {
		key := stockKey(shopID, productID)
		p, ok := (*t)[key]
		if !ok {
			return errors.NewNotFoundError(fmt.Sprintf("product %s not found in shop %d", productID, shopID))
		}
		p.Stock += qty
		(*t)[key] = p
		return nil
	})
}
