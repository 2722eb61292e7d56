package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(UpPaymentNotificationsTable, DownPaymentNotificationsTable)
}

func UpPaymentNotificationsTable(ctx context.Context, tx *sql.Tx) error {
	// payment_id is the primary key so concurrent deliveries of the same
	// notification race on the insert, not on the order update.
	_, err := tx.ExecContext(ctx, `CREATE TABLE payment_notifications
(
    payment_id VARCHAR(255) PRIMARY KEY,
    action VARCHAR(64) NOT NULL,
    payload TEXT NOT NULL DEFAULT '',
    outcome VARCHAR(32) NOT NULL DEFAULT 'received',
    received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP NOT NULL
);`)
	return err
}

func DownPaymentNotificationsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "DROP TABLE payment_notifications;")
	return err
}
