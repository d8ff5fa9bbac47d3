package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"bazaar/internal/domain"
	"bazaar/internal/errors"
)

type MySQLStockRepository struct {
	db *sql.DB
}

func NewMySQLStockRepository(db *sql.DB) *MySQLStockRepository {
	return &MySQLStockRepository{db: db}
}

func (r *MySQLStockRepository) FindByIDsAndShop(ctx context.Context, ids []string, shopID int) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, shopID)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT productId, shopId, name, stock
		FROM ProductStock
		WHERE shopId = ?
		  AND productId IN (%s)
		ORDER BY productId`,
		strings.Join(placeholders, ", "),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying product stock: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ProductID, &p.ShopID, &p.Name, &p.Stock); err != nil {
			return nil, fmt.Errorf("scanning product stock row: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product stock rows: %w", err)
	}

	return products, nil
}

func (r *MySQLStockRepository) FindStock(ctx context.Context, shopID int, productID string) (int, error) {
	query := `SELECT stock FROM ProductStock WHERE shopId = ? AND productId = ?`

	var stock int
	err := r.db.QueryRowContext(ctx, query, shopID, productID).Scan(&stock)
	if err == sql.ErrNoRows {
		return 0, errors.NewNotFoundError(fmt.Sprintf("product %s not found in shop %d", productID, shopID))
	}
	if err != nil {
		return 0, fmt.Errorf("querying stock: %w", err)
	}

	return stock, nil
}

// DecrementIfAvailable subtracts qty only while the row still holds at least
// qty units. The check and the write happen in one statement, so concurrent
// callers can never drive stock below zero.
func (r *MySQLStockRepository) DecrementIfAvailable(ctx context.Context, shopID int, productID string, qty int) (bool, error) {
	query := `UPDATE ProductStock SET stock = stock - ? WHERE shopId = ? AND productId = ? AND stock >= ?`

	result, err := r.db.ExecContext(ctx, query, qty, shopID, productID, qty)
	if err != nil {
		return false, fmt.Errorf("decrementing stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func (r *MySQLStockRepository) Increment(ctx context.Context, shopID int, productID string, qty int) error {
	query := `UPDATE ProductStock SET stock = stock + ? WHERE shopId = ? AND productId = ?`

	result, err := r.db.ExecContext(ctx, query, qty, shopID, productID)
	if err != nil {
		return fmt.Errorf("incrementing stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("product %s not found in shop %d", productID, shopID))
	}

	return nil
}
