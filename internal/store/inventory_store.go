package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"inventory-agent/internal/model"
)

const itemColumns = `id, sku, name, upc, quantity_on_hand, cost_rate, backend_item_id, last_transaction_ref, updated_at`

func scanItem(row pgx.Row) (*model.InventoryRecord, error) {
	rec := &model.InventoryRecord{}
	err := row.Scan(
		&rec.ID, &rec.SKU, &rec.Name, &rec.UPC,
		&rec.QuantityOnHand, &rec.CostRate, &rec.BackendItemID,
		&rec.LastTransactionRef, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *ledgerStore) findItem(ctx context.Context, where string, arg any) (*model.InventoryRecord, error) {
	rec, err := scanItem(s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM inventory_records WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find inventory record: %w", err)
	}
	return rec, nil
}

func (s *ledgerStore) FindItemBySKU(ctx context.Context, sku string) (*model.InventoryRecord, error) {
	return s.findItem(ctx, `sku = $1`, sku)
}

func (s *ledgerStore) FindItemByUPC(ctx context.Context, upc string) (*model.InventoryRecord, error) {
	return s.findItem(ctx, `upc = $1 AND upc <> ''`, upc)
}

func (s *ledgerStore) FindItemByName(ctx context.Context, name string) (*model.InventoryRecord, error) {
	return s.findItem(ctx, `lower(name) = lower($1)`, name)
}

// CreateItem inserts a new inventory record. If another worker created
// the same SKU first, the existing record is returned unchanged.
func (s *ledgerStore) CreateItem(ctx context.Context, rec *model.InventoryRecord) (*model.InventoryRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO inventory_records (id, sku, name, upc, quantity_on_hand, cost_rate, backend_item_id, last_transaction_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sku) DO NOTHING`,
		rec.ID, rec.SKU, rec.Name, rec.UPC,
		rec.QuantityOnHand, rec.CostRate, rec.BackendItemID, rec.LastTransactionRef,
	)
	if err != nil {
		return nil, fmt.Errorf("create inventory record %q: %w", rec.SKU, err)
	}
	return s.FindItemBySKU(ctx, rec.SKU)
}

// AdjustQuantity applies a signed delta, flooring the result at zero,
// and stamps the originating transaction reference. Runs in a
// transaction so prev/next are read consistently.
func (s *ledgerStore) AdjustQuantity(ctx context.Context, sku string, delta int, ref string) (int, int, error) {
	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin adjust quantity: %w", err)
	}
	defer dbTx.Rollback(ctx)

	var prev int
	err = dbTx.QueryRow(ctx,
		`SELECT quantity_on_hand FROM inventory_records WHERE sku = $1 FOR UPDATE`, sku,
	).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, fmt.Errorf("inventory record %q: %w", sku, ErrNotFound)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("lock inventory record %q: %w", sku, err)
	}

	next := prev + delta
	if next < 0 {
		next = 0
	}

	_, err = dbTx.Exec(ctx, `
		UPDATE inventory_records
		SET quantity_on_hand = $2, last_transaction_ref = $3, updated_at = now()
		WHERE sku = $1`,
		sku, next, ref,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("adjust quantity of %q: %w", sku, err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit adjust quantity: %w", err)
	}
	return prev, next, nil
}

func (s *ledgerStore) SetBackendItemID(ctx context.Context, sku, backendID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE inventory_records SET backend_item_id = $2, updated_at = now() WHERE sku = $1`,
		sku, backendID,
	)
	if err != nil {
		return fmt.Errorf("set backend item id of %q: %w", sku, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory record %q: %w", sku, ErrNotFound)
	}
	return nil
}

func (s *ledgerStore) ListItems(ctx context.Context) ([]model.InventoryRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM inventory_records ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("list inventory records: %w", err)
	}
	defer rows.Close()

	var items []model.InventoryRecord
	for rows.Next() {
		rec, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory record: %w", err)
		}
		items = append(items, *rec)
	}
	return items, rows.Err()
}
