package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"bazaar/internal/domain"
	"bazaar/internal/errors"
	"bazaar/internal/infrastructure/filestore"
)

type MySQLShopRepository struct {
	db *sql.DB
}

func NewMySQLShopRepository(db *sql.DB) *MySQLShopRepository {
	return &MySQLShopRepository{db: db}
}

func (r *MySQLShopRepository) FindByID(ctx context.Context, shopID int) (*domain.Shop, error) {
	query := `
		SELECT id, name, ownerId
		FROM Shops
		WHERE id = ?
	`

	var shop domain.Shop
	err := r.db.QueryRowContext(ctx, query, shopID).Scan(&shop.ID, &shop.Name, &shop.OwnerID)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("shop with id %d not found", shopID))
	}
	if err != nil {
		return nil, fmt.Errorf("querying shop by id: %w", err)
	}

	return &shop, nil
}

// FileShopRepository is the flat-file fallback for shop ownership lookups.
type FileShopRepository struct {
	doc *filestore.Document[map[int]domain.Shop]
}

func NewFileShopRepository(dataDir string) (*FileShopRepository, error) {
	doc, err := filestore.NewDocument(filepath.Join(dataDir, "shops.json"), func() map[int]domain.Shop {
		return map[int]domain.Shop{}
	})
	if err != nil {
		return nil, err
	}
	return &FileShopRepository{doc: doc}, nil
}

func (r *FileShopRepository) Upsert(ctx context.Context, shop domain.Shop) error {
	return r.doc.Update(func(m *map[int]domain.Shop) error {
		(*m)[shop.ID] = shop
		return nil
	})
}

func (r *FileShopRepository) FindByID(ctx context.Context, shopID int) (*domain.Shop, error) {
	shops, err := r.doc.Read()
	if err != nil {
		return nil, err
	}

	shop, ok := shops[shopID]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("shop with id %d not found", shopID))
	}

	return &shop, nil
}
