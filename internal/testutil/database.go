package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"bazaar/internal/infrastructure/mysql"
)

// SetupTestDB opens the MySQL test database at localhost:3306/bazaar_test
// and skips the test when it is not reachable.
func SetupTestDB(t *testing.T) *sql.DB {
	dsn := "root:@tcp(localhost:3306)/bazaar_test?parseTime=true&loc=UTC"
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("test database not available: %v", err)
	}

	return db
}

// CleanupTestDB empties the engine tables and closes the connection.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	for _, tbl := range mysql.Schema {
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s", tbl.Name)); err != nil {
			t.Logf("failed to clean table %s: %v", tbl.Name, err)
		}
	}

	db.Close()
}

// SetupTestTables creates the engine tables.
func SetupTestTables(t *testing.T, db *sql.DB) {
	if err := mysql.EnsureSchema(context.Background(), db); err != nil {
		t.Logf("failed to create tables: %v", err)
	}
}
