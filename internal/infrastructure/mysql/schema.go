package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema holds the DDL for the tables the engine reads and writes. Shops and
// Product rows are owned by the catalog service; the engine only needs the
// columns below.
var Schema = []struct {
	Name  string
	Query string
}{
	{"Shops", `
	CREATE TABLE IF NOT EXISTS Shops (
		id INT NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL DEFAULT '',
		ownerId VARCHAR(64) NOT NULL,
		INDEX idx_owner (ownerId)
	)`},
	{"ProductStock", `
	CREATE TABLE IF NOT EXISTS ProductStock (
		shopId INT NOT NULL,
		productId VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		stock INT NOT NULL DEFAULT 0,
		PRIMARY KEY (shopId, productId),
		CHECK (stock >= 0)
	)`},
	{"Orders", `
	CREATE TABLE IF NOT EXISTS Orders (
		id CHAR(26) NOT NULL PRIMARY KEY,
		shopId INT NOT NULL,
		customerId VARCHAR(128) NOT NULL,
		items JSON NOT NULL,
		total DECIMAL(12,2) NOT NULL DEFAULT 0.00,
		paymentMethod VARCHAR(32) NOT NULL,
		status VARCHAR(32) NOT NULL,
		statusHistory JSON NOT NULL,
		paymentStatus VARCHAR(16) NOT NULL,
		paymentPaidAt DATETIME(3) NULL,
		fingerprint CHAR(64) NULL,
		customerName VARCHAR(255) NOT NULL DEFAULT '',
		customerEmail VARCHAR(255) NOT NULL DEFAULT '',
		customerPhone VARCHAR(64) NOT NULL DEFAULT '',
		customerAddress VARCHAR(512) NOT NULL DEFAULT '',
		createdAt DATETIME(3) NOT NULL,
		INDEX idx_shop_created (shopId, createdAt),
		INDEX idx_customer_created (customerId, createdAt),
		INDEX idx_fingerprint (fingerprint, createdAt),
		INDEX idx_status (status)
	)`},
}

// EnsureSchema creates any missing table.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, tbl := range Schema {
		if _, err := db.ExecContext(ctx, tbl.Query); err != nil {
			return fmt.Errorf("creating table %s: %w", tbl.Name, err)
		}
	}
	return nil
}
