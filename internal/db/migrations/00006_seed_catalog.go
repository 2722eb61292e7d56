package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(UpSeedCatalog, DownSeedCatalog)
}

// Prices are CLP in minor units.
func UpSeedCatalog(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO categories (slug, name, description)
VALUES ('canapes', 'Canapés', 'Bocados gourmet con ingredientes premium'),
       ('mini-quiches', 'Mini Quiches', 'Deliciosas tartas individuales horneadas'),
       ('mini-empanadas', 'Mini Empanadas', 'Tradición chilena en formato gourmet'),
       ('petit-fours', 'Petit Fours Dulces', 'Exquisitas creaciones dulces artesanales');`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO products (id, name, price, category_slug)
VALUES (gen_random_uuid(), 'Canapé de Salmón Ahumado', 4500000, 'canapes'),
       (gen_random_uuid(), 'Canapé de Queso de Cabra con Miel', 4200000, 'canapes'),
       (gen_random_uuid(), 'Canapé de Paté de Foie con Mermelada', 5500000, 'canapes'),
       (gen_random_uuid(), 'Mini Quiche de Espinaca y Queso de Cabra', 3800000, 'mini-quiches'),
       (gen_random_uuid(), 'Mini Quiche Lorraine', 4000000, 'mini-quiches'),
       (gen_random_uuid(), 'Mini Quiche de Champiñones y Gruyère', 4100000, 'mini-quiches'),
       (gen_random_uuid(), 'Mini Empanadas de Queso', 3200000, 'mini-empanadas'),
       (gen_random_uuid(), 'Mini Empanadas de Pino', 3500000, 'mini-empanadas'),
       (gen_random_uuid(), 'Mini Empanadas de Camarón', 4800000, 'mini-empanadas'),
       (gen_random_uuid(), 'Petit Fours de Chocolate Belga', 4200000, 'petit-fours'),
       (gen_random_uuid(), 'Petit Fours de Frutos Rojos', 4000000, 'petit-fours'),
       (gen_random_uuid(), 'Petit Fours de Limón', 3900000, 'petit-fours');`)
	return err
}

func DownSeedCatalog(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM products; DELETE FROM categories;")
	return err
}
