package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(UpOrdersTables, DownOrdersTables)
}

func UpOrdersTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE orders
(
    id UUID PRIMARY KEY,
    order_number VARCHAR(255) NOT NULL UNIQUE,
    customer_name VARCHAR(255) NOT NULL,
    customer_email VARCHAR(255) NOT NULL,
    customer_phone VARCHAR(64) NOT NULL,
    shipping_address VARCHAR(512) NOT NULL,
    shipping_commune VARCHAR(255) NOT NULL,
    subtotal BIGINT NOT NULL,
    shipping_cost BIGINT NOT NULL,
    total BIGINT NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    status VARCHAR(32) NOT NULL DEFAULT 'PENDING',
    payment_status VARCHAR(32) NOT NULL DEFAULT 'PENDING',
    mercado_pago_id VARCHAR(255) NOT NULL DEFAULT '',
    mercado_pago_status VARCHAR(64) NOT NULL DEFAULT '',
    init_point VARCHAR(1024) NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL
);

CREATE TABLE order_items
(
    id UUID PRIMARY KEY,
    order_id UUID NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
    product_id UUID NOT NULL,
    product_name VARCHAR(255) NOT NULL,
    quantity INT NOT NULL,
    unit_price BIGINT NOT NULL,
    total BIGINT NOT NULL
);`)
	return err
}

func DownOrdersTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "DROP TABLE order_items; DROP TABLE orders;")
	return err
}
