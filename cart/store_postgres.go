package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/SandaminiI/serandib-microservices/common/api"
)

// PostgresStore implements StockLedger and ProductCatalog on the products
// table:
//
//	products(id, name, price, image_ref, total_stock, available_quantity, updated_at)
//
// total_stock is written once at product creation; available_quantity is only
// ever changed through Adjust and through fulfillment commits, which keeps
// the ledger the authoritative scarce counter.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*api.Product, error) {
	var p api.Product

	query := `SELECT id, name, price, image_ref, total_stock FROM products WHERE id = $1`
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Price,
		&p.ImageRef,
		&p.TotalStock,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: %s: %w", id, ErrProductNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &p, nil
}

func (s *PostgresStore) GetProducts(ctx context.Context, ids []string) ([]*api.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, name, price, image_ref, total_stock FROM products WHERE id = ANY($1)`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]*api.Product, error) {
	query := `SELECT id, name, price, image_ref, total_stock FROM products ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (s *PostgresStore) GetAvailable(ctx context.Context, productID string) (int32, error) {
	var available int32

	query := `SELECT available_quantity FROM products WHERE id = $1`
	err := s.db.QueryRowContext(ctx, query, productID).Scan(&available)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("ledger: %s: %w", productID, ErrProductNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get available quantity: %w", err)
	}

	return available, nil
}

// Adjust applies delta atomically. The WHERE guard makes the check and the
// update a single statement, so concurrent adjustments to the same product
// serialize on the row and the counter can never be observed negative.
func (s *PostgresStore) Adjust(ctx context.Context, productID string, delta int32) (int32, error) {
	var available int32

	query := `
		UPDATE products
		SET available_quantity = available_quantity + $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		  AND available_quantity + $1 >= 0
		RETURNING available_quantity
	`
	err := s.db.QueryRowContext(ctx, query, delta, productID).Scan(&available)

	if errors.Is(err, sql.ErrNoRows) {
		// Guard rejected the update: either the product is unknown or the
		// delta would drive the counter below zero.
		if _, getErr := s.GetAvailable(ctx, productID); getErr != nil {
			return 0, getErr
		}
		return 0, fmt.Errorf("adjust %s by %d: %w", productID, delta, ErrInsufficientStock)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust stock: %w", err)
	}

	return available, nil
}

func scanProducts(rows *sql.Rows) ([]*api.Product, error) {
	var products []*api.Product
	for rows.Next() {
		var p api.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ImageRef, &p.TotalStock); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

var (
	_ StockLedger    = (*PostgresStore)(nil)
	_ ProductCatalog = (*PostgresStore)(nil)
)
