package store

import (
	"context"
	"errors"

	"inventory-agent/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// TransactionLog is the durable record of every extracted transaction
// and its processing status.
type TransactionLog interface {
	// CreateRecord stores a new transaction snapshot and returns its
	// record id. The transaction's RecordID and Status are set on the
	// passed value.
	CreateRecord(ctx context.Context, tx *model.Transaction) (string, error)
	// GetRecord returns the stored transaction by record id.
	GetRecord(ctx context.Context, recordID string) (*model.Transaction, error)
	// UpdateRecord rewrites the stored snapshot (edited transactions,
	// refreshed gate verdicts).
	UpdateRecord(ctx context.Context, tx *model.Transaction) error
	// UpdateStatus moves a record to a new processing status.
	UpdateStatus(ctx context.Context, recordID string, status model.ProcessingStatus) error
	// FindByEmailUID returns the record id of a previously processed
	// message, or ErrNotFound.
	FindByEmailUID(ctx context.Context, uid string) (string, error)
	// ListRecordsByStatus returns all transactions at the given
	// processing status, oldest first.
	ListRecordsByStatus(ctx context.Context, status model.ProcessingStatus) ([]*model.Transaction, error)
}

// ItemLedger maintains per-SKU quantity and cost records.
type ItemLedger interface {
	// FindItemBySKU, FindItemByUPC and FindItemByName look up a record
	// by each identifier; name matching is case-insensitive exact.
	FindItemBySKU(ctx context.Context, sku string) (*model.InventoryRecord, error)
	FindItemByUPC(ctx context.Context, upc string) (*model.InventoryRecord, error)
	FindItemByName(ctx context.Context, name string) (*model.InventoryRecord, error)
	// CreateItem inserts a new record. A concurrent insert of the same
	// SKU returns the existing record instead of an error.
	CreateItem(ctx context.Context, rec *model.InventoryRecord) (*model.InventoryRecord, error)
	// AdjustQuantity applies a signed delta to on-hand quantity,
	// flooring at zero, and stamps the last transaction reference.
	// Returns the quantities before and after.
	AdjustQuantity(ctx context.Context, sku string, delta int, ref string) (prev, next int, err error)
	// SetBackendItemID records the accounting-backend id for a SKU.
	SetBackendItemID(ctx context.Context, sku, backendID string) error
	// ListItems returns all records ordered by SKU.
	ListItems(ctx context.Context) ([]model.InventoryRecord, error)
}

// ReviewQueue holds transactions awaiting manual completion.
type ReviewQueue interface {
	SavePendingReview(ctx context.Context, pr *model.PendingReview) error
	GetPendingReview(ctx context.Context, recordID string) (*model.PendingReview, error)
	ListPendingReviews(ctx context.Context) ([]model.PendingReview, error)
	DeletePendingReview(ctx context.Context, recordID string) error
}

// Store is the full ledger-store surface.
type Store interface {
	TransactionLog
	ItemLedger
	ReviewQueue
}
