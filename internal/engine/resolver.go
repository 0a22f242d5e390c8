package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"inventory-agent/internal/model"
	"inventory-agent/internal/store"
)

// ResolutionError reports that a single line item could not be mapped
// to an inventory record. Workflows isolate these per item instead of
// failing the whole transaction.
type ResolutionError struct {
	Item string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve item %q: %v", e.Item, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolver maps extracted line items onto inventory records,
// find-or-create. Resolution is idempotent: the same item input always
// lands on the same record.
type Resolver struct {
	ledger store.ItemLedger
	log    *logrus.Logger
}

func NewResolver(ledger store.ItemLedger, log *logrus.Logger) *Resolver {
	return &Resolver{ledger: ledger, log: log}
}

// Resolve finds the inventory record for a line item, trying SKU, then
// UPC, then case-insensitive name, and finally creating a new record
// with a generated SKU and zero opening quantity.
func (r *Resolver) Resolve(ctx context.Context, item model.LineItem) (*model.InventoryRecord, error) {
	if item.SKU != "" {
		rec, err := r.ledger.FindItemBySKU(ctx, item.SKU)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, &ResolutionError{Item: item.Name, Err: err}
		}
	}
	if item.UPC != "" {
		rec, err := r.ledger.FindItemByUPC(ctx, item.UPC)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, &ResolutionError{Item: item.Name, Err: err}
		}
	}
	if item.Name != "" {
		rec, err := r.ledger.FindItemByName(ctx, item.Name)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, &ResolutionError{Item: item.Name, Err: err}
		}
	}

	if item.Name == "" {
		return nil, &ResolutionError{Item: item.SKU + item.UPC, Err: errors.New("no name to create record from")}
	}

	sku := item.SKU
	if sku == "" {
		sku = GenerateSKU(item.Name)
	}
	rec, err := r.ledger.CreateItem(ctx, &model.InventoryRecord{
		SKU:      sku,
		Name:     item.Name,
		UPC:      item.UPC,
		CostRate: decimal.Zero,
	})
	if err != nil {
		return nil, &ResolutionError{Item: item.Name, Err: err}
	}
	if r.log != nil {
		r.log.WithFields(logrus.Fields{"sku": rec.SKU, "name": rec.Name}).Info("created inventory record")
	}
	return rec, nil
}

// GenerateSKU derives a stable SKU from a product name: the uppercase
// initials of up to three words, then a dash, then the first six hex
// characters of the SHA-256 of the lowercased name. The hash suffix
// keeps distinct products with identical initials apart.
func GenerateSKU(name string) string {
	words := strings.Fields(name)
	var initials strings.Builder
	for i, w := range words {
		if i == 3 {
			break
		}
		r := []rune(w)
		initials.WriteString(strings.ToUpper(string(r[0])))
	}
	if initials.Len() == 0 {
		initials.WriteString("X")
	}
	sum := sha256.Sum256([]byte(strings.ToLower(name)))
	return initials.String() + "-" + strings.ToUpper(hex.EncodeToString(sum[:3]))
}
