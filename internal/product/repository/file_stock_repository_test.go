package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bazaar/internal/domain"
	"bazaar/internal/errors"
)

func newFileStockRepo(t *testing.T, products ...domain.Product) *FileStockRepository {
	t.Helper()
	repo, err := NewFileStockRepository(t.TempDir())
	require.NoError(t, err)
	for _, p := range products {
		require.NoError(t, repo.Upsert(context.Background(), p))
	}
	return repo
}

func TestFileStockRepository_FindStock(t *testing.T) {
	repo := newFileStockRepo(t, domain.Product{ShopID: 1, ProductID: "p1", Stock: 7})

	stock, err := repo.FindStock(context.Background(), 1, "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, stock)

	_, err = repo.FindStock(context.Background(), 2, "p1")
	_, ok := errors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestFileStockRepository_FindByIDsAndShop(t *testing.T) {
	repo := newFileStockRepo(t,
		domain.Product{ShopID: 1, ProductID: "b", Stock: 1},
		domain.Product{ShopID: 1, ProductID: "a", Stock: 2},
		domain.Product{ShopID: 2, ProductID: "a", Stock: 3},
	)

	products, err := repo.FindByIDsAndShop(context.Background(), []string{"b", "a", "z"}, 1)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "a", products[0].ProductID)
	assert.Equal(t, "b", products[1].ProductID)
}

func TestFileStockRepository_DecrementIfAvailable(t *testing.T) {
	repo := newFileStockRepo(t, domain.Product{ShopID: 1, ProductID: "p1", Stock: 2})

	ok, err := repo.DecrementIfAvailable(context.Background(), 1, "p1", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DecrementIfAvailable(context.Background(), 1, "p1", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DecrementIfAvailable(context.Background(), 1, "missing", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	stock, err := repo.FindStock(context.Background(), 1, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
}

func TestFileStockRepository_NoOversellUnderConcurrency(t *testing.T) {
	repo := newFileStockRepo(t, domain.Product{ShopID: 1, ProductID: "hot", Stock: 10})

	var sold atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := repo.DecrementIfAvailable(context.Background(), 1, "hot", 1); err == nil && ok {
				sold.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), sold.Load())
	stock, err := repo.FindStock(context.Background(), 1, "hot")
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
}

func TestFileStockRepository_Increment(t *testing.T) {
	repo := newFileStockRepo(t, domain.Product{ShopID: 1, ProductID: "p1", Stock: 1})

	require.NoError(t, repo.Increment(context.Background(), 1, "p1", 2))
	stock, err := repo.FindStock(context.Background(), 1, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, stock)

	err = repo.Increment(context.Background(), 1, "ghost", 1)
	_, ok := errors.IsNotFoundError(err)
	assert.True(t, ok)
}
