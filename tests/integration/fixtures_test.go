package integration

import (
	"database/sql"
	"testing"
)

func createWarehouse(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO warehouses (name, verified, created_at) VALUES ($1, TRUE, NOW()) RETURNING id`,
		name).Scan(&id)
	if err != nil {
		t.Fatalf("Create warehouse %s: %v", name, err)
	}
	return id
}

func createProduct(t *testing.T, db *sql.DB, sku, title, price string, warehouseID *int64) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO products (sku, title, description, price, warehouse_id, created_at, updated_at)
		 VALUES ($1, $2, 'Test', $3, $4, NOW(), NOW()) RETURNING id`,
		sku, title, price, warehouseID).Scan(&id)
	if err != nil {
		t.Fatalf("Create product %s: %v", sku, err)
	}
	return id
}

func createAttribute(t *testing.T, db *sql.DB, name string, position int) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO attributes (name, position) VALUES ($1, $2) RETURNING id`,
		name, position).Scan(&id)
	if err != nil {
		t.Fatalf("Create attribute %s: %v", name, err)
	}
	return id
}

func createOptionValue(t *testing.T, db *sql.DB, attributeID int64, value string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO option_values (attribute_id, value) VALUES ($1, $2) RETURNING id`,
		attributeID, value).Scan(&id)
	if err != nil {
		t.Fatalf("Create option value %s: %v", value, err)
	}
	return id
}

func createVariant(t *testing.T, db *sql.DB, productID int64, price string, stock int, optionValueIDs ...int64) int64 {
	t.Helper()
	var slots [3]*int64
	for i := range optionValueIDs {
		if i >= 3 {
			break
		}
		slots[i] = &optionValueIDs[i]
	}
	var id int64
	err := db.QueryRow(
		`INSERT INTO product_variants (product_id, price, stock, option_value_1, option_value_2, option_value_3)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		productID, price, stock, slots[0], slots[1], slots[2]).Scan(&id)
	if err != nil {
		t.Fatalf("Create variant for product %d: %v", productID, err)
	}
	return id
}

func createSchool(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`INSERT INTO schools (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		t.Fatalf("Create school %s: %v", name, err)
	}
	return id
}

func linkProductSchool(t *testing.T, db *sql.DB, productID, schoolID int64, status string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO product_schools (product_id, school_id, status, created_at) VALUES ($1, $2, $3, NOW())`,
		productID, schoolID, status)
	if err != nil {
		t.Fatalf("Link product %d to school %d: %v", productID, schoolID, err)
	}
}

func linkRetailerWarehouse(t *testing.T, db *sql.DB, retailerID, warehouseID int64) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO retailer_warehouses (retailer_id, warehouse_id, created_at) VALUES ($1, $2, NOW())`,
		retailerID, warehouseID)
	if err != nil {
		t.Fatalf("Link retailer %d to warehouse %d: %v", retailerID, warehouseID, err)
	}
}

// makeLegacyOrder converts an order to the pre-item-attribution shape: the
// warehouse lives on the order row and every item row loses its own tag.
func makeLegacyOrder(t *testing.T, db *sql.DB, orderID, warehouseID int64) {
	t.Helper()
	if _, err := db.Exec(`UPDATE orders SET warehouse_id = $1 WHERE id = $2`, warehouseID, orderID); err != nil {
		t.Fatalf("Set order warehouse: %v", err)
	}
	if _, err := db.Exec(`UPDATE order_items SET warehouse_id = NULL WHERE order_id = $1`, orderID); err != nil {
		t.Fatalf("Clear item warehouses: %v", err)
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&count); err != nil {
		t.Fatalf("Count %s: %v", table, err)
	}
	return count
}
