package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bazaar/internal/domain"
	"bazaar/internal/dto"
	"bazaar/internal/errors"
)

const orderColumns = `
	o.id, o.shopId, o.customerId, o.items, o.total, o.paymentMethod,
	o.status, o.statusHistory, o.paymentStatus, o.paymentPaidAt, o.fingerprint,
	o.customerName, o.customerEmail, o.customerPhone, o.customerAddress, o.createdAt`

type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

func (r *MySQLOrderRepository) Create(ctx context.Context, order domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encoding order items: %w", err)
	}
	history, err := json.Marshal(order.StatusHistory)
	if err != nil {
		return fmt.Errorf("encoding status history: %w", err)
	}

	query := `
		INSERT INTO Orders (id, shopId, customerId, items, total, paymentMethod, status,
		                    statusHistory, paymentStatus, paymentPaidAt, fingerprint,
		                    customerName, customerEmail, customerPhone, customerAddress, createdAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		order.ID, order.ShopID, order.CustomerID, items, order.Total, order.PaymentMethod, order.Status,
		history, order.PaymentStatus, order.PaymentPaidAt, order.Fingerprint,
		order.CustomerSnapshot.Name, order.CustomerSnapshot.Email, order.CustomerSnapshot.Phone,
		order.CustomerSnapshot.Address, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	return nil
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM Orders o WHERE o.id = ?`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by id: %w", err)
	}

	return order, nil
}

func (r *MySQLOrderRepository) FindByShop(ctx context.Context, shopID int, filter dto.OrderFilter, page dto.Page) ([]domain.Order, error) {
	filter.ShopID = shopID
	where, args := buildOrderWhere(filter)
	page = page.Normalize()

	query := `SELECT ` + orderColumns + ` FROM Orders o LEFT JOIN Shops s ON s.id = o.shopId` +
		where + ` ORDER BY o.createdAt DESC, o.id DESC LIMIT ? OFFSET ?`
	args = append(args, page.Size, page.Offset())

	return r.queryOrders(ctx, query, args...)
}

func (r *MySQLOrderRepository) FindByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM Orders o WHERE o.customerId = ? ORDER BY o.createdAt DESC, o.id DESC`
	return r.queryOrders(ctx, query, customerID)
}

func (r *MySQLOrderRepository) FindLatestByFingerprint(ctx context.Context, fingerprint string, since time.Time) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM Orders o
		WHERE o.fingerprint = ? AND o.createdAt >= ?
		ORDER BY o.createdAt DESC LIMIT 1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, fingerprint, since))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("no recent order with fingerprint")
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by fingerprint: %w", err)
	}

	return order, nil
}

func (r *MySQLOrderRepository) FindSiblings(ctx context.Context, customerID string, from, to time.Time, excludeID string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM Orders o
		WHERE o.customerId = ? AND o.createdAt BETWEEN ? AND ? AND o.id <> ?
		ORDER BY o.createdAt`
	return r.queryOrders(ctx, query, customerID, from, to, excludeID)
}

func (r *MySQLOrderRepository) ListByStatus(ctx context.Context, status string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM Orders o WHERE o.status = ? ORDER BY o.createdAt`
	return r.queryOrders(ctx, query, status)
}

func (r *MySQLOrderRepository) Search(ctx context.Context, filter dto.OrderFilter, page dto.Page) ([]domain.Order, int, error) {
	where, args := buildOrderWhere(filter)
	page = page.Normalize()

	var total int
	countQuery := `SELECT COUNT(*) FROM Orders o LEFT JOIN Shops s ON s.id = o.shopId` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM Orders o LEFT JOIN Shops s ON s.id = o.shopId` +
		where + ` ORDER BY o.createdAt DESC, o.id DESC LIMIT ? OFFSET ?`
	orders, err := r.queryOrders(ctx, query, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// UpdateStatus moves the order from `from` to `to` only if the persisted
// status still equals `from`. A mismatch yields a ConflictError. An existing
// paymentPaidAt is never overwritten.
func (r *MySQLOrderRepository) UpdateStatus(ctx context.Context, id string, from, to string, entry domain.StatusHistoryEntry, payment *domain.PaymentUpdate) (*domain.Order, error) {
	encodedEntry, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encoding status history entry: %w", err)
	}

	var paymentStatus interface{}
	var paidAt interface{}
	if payment != nil {
		paymentStatus = payment.Status
		paidAt = payment.PaidAt
	}

	query := `
		UPDATE Orders
		SET status = ?,
		    statusHistory = JSON_ARRAY_APPEND(statusHistory, '$', CAST(? AS JSON)),
		    paymentStatus = COALESCE(?, paymentStatus),
		    paymentPaidAt = COALESCE(paymentPaidAt, ?)
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query, to, string(encodedEntry), paymentStatus, paidAt, id, from)
	if err != nil {
		return nil, fmt.Errorf("updating order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		current, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, errors.NewConflictError(fmt.Sprintf("order %s is %s, expected %s", id, current.Status, from))
	}

	return r.FindByID(ctx, id)
}

func (r *MySQLOrderRepository) UpdatePayment(ctx context.Context, id string, paymentStatus string, paidAt *time.Time) (*domain.Order, error) {
	query := `UPDATE Orders SET paymentStatus = ?, paymentPaidAt = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, paymentStatus, paidAt, id); err != nil {
		return nil, fmt.Errorf("updating order payment: %w", err)
	}

	// MySQL reports zero affected rows for a no-op update, so existence is
	// checked by reading the row back.
	return r.FindByID(ctx, id)
}

func (r *MySQLOrderRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM Orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", id))
	}

	return nil
}

func (r *MySQLOrderRepository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order row: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order rows: %w", err)
	}

	return orders, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order       domain.Order
		items       []byte
		history     []byte
		paidAt      sql.NullTime
		fingerprint sql.NullString
	)

	err := row.Scan(
		&order.ID, &order.ShopID, &order.CustomerID, &items, &order.Total, &order.PaymentMethod,
		&order.Status, &history, &order.PaymentStatus, &paidAt, &fingerprint,
		&order.CustomerSnapshot.Name, &order.CustomerSnapshot.Email, &order.CustomerSnapshot.Phone,
		&order.CustomerSnapshot.Address, &order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("decoding order items: %w", err)
	}
	if err := json.Unmarshal(history, &order.StatusHistory); err != nil {
		return nil, fmt.Errorf("decoding status history: %w", err)
	}
	if paidAt.Valid {
		t := paidAt.Time
		order.PaymentPaidAt = &t
	}
	if fingerprint.Valid {
		fp := fingerprint.String
		order.Fingerprint = &fp
	}

	return &order, nil
}

func buildOrderWhere(filter dto.OrderFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if filter.ShopID > 0 {
		clauses = append(clauses, "o.shopId = ?")
		args = append(args, filter.ShopID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "o.status = ?")
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		clauses = append(clauses, "o.createdAt >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		clauses = append(clauses, "o.createdAt <= ?")
		args = append(args, *filter.To)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		clauses = append(clauses, `(o.id = ? OR o.customerId LIKE ? OR o.customerName LIKE ? OR o.customerEmail LIKE ?
			OR o.customerPhone LIKE ? OR o.customerAddress LIKE ? OR s.name LIKE ?)`)
		args = append(args, search, like, like, like, like, like, like)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
