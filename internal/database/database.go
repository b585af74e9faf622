package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"storefront-offers/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrProductNotFound is returned when a product id has no row.
var ErrProductNotFound = errors.New("product not found")

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB opens the database and applies pending migrations.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func runMigrations(conn *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// UpsertProduct creates or updates a product.
func (db *DB) UpsertProduct(ctx context.Context, p models.Product) error {
	query := `INSERT INTO products (
		id, name, price, weight_grams, unlimited, non_inventory, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		price = excluded.price,
		weight_grams = excluded.weight_grams,
		unlimited = excluded.unlimited,
		non_inventory = excluded.non_inventory,
		updated_at = excluded.updated_at`

	_, err := db.conn.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.Price.String(),
		p.WeightGrams,
		p.Unlimited,
		p.NonInventory,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %d: %w", p.ID, err)
	}

	return nil
}

// GetProduct returns a single product.
func (db *DB) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name, price, weight_grams, unlimited, non_inventory FROM products WHERE id = ?`, id)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return p, nil
}

// ProductsByIDs returns the products found for ids, keyed by id.
// Missing ids are simply absent from the result.
func (db *DB) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	result := make(map[int64]models.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT id, name, price, weight_grams, unlimited, non_inventory
		FROM products
		WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		result[p.ID] = *p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return result, nil
}

// UpsertDeliveryCharge sets the base shipping charge of a pincode.
func (db *DB) UpsertDeliveryCharge(ctx context.Context, pincode string, charge decimal.Decimal) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO delivery_charges (pincode, charge, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(pincode) DO UPDATE SET
			charge = excluded.charge,
			updated_at = excluded.updated_at`,
		pincode, charge.String())
	if err != nil {
		return fmt.Errorf("failed to upsert delivery charge for %s: %w", pincode, err)
	}
	return nil
}

// DeliveryCharge returns the base charge of a pincode. ok is false when the
// pincode has no row.
func (db *DB) DeliveryCharge(ctx context.Context, pincode string) (charge decimal.Decimal, ok bool, err error) {
	var raw string
	err = db.conn.QueryRowContext(ctx, `SELECT charge FROM delivery_charges WHERE pincode = ?`, pincode).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to get delivery charge for %s: %w", pincode, err)
	}

	charge, err = decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid delivery charge %q for %s: %w", raw, pincode, err)
	}
	return charge, true, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var (
		p     models.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.WeightGrams, &p.Unlimited, &p.NonInventory); err != nil {
		return nil, err
	}

	var err error
	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q for product %d: %w", price, p.ID, err)
	}
	return &p, nil
}
