package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"inventory-agent/internal/model"
)

// MemoryStore is an in-process Store used for dry runs and tests. It
// mirrors the PostgreSQL implementation's semantics, including the
// quantity floor and find-or-create idempotency.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*model.Transaction
	items   map[string]*model.InventoryRecord
	reviews map[string]*model.PendingReview
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*model.Transaction),
		items:   make(map[string]*model.InventoryRecord),
		reviews: make(map[string]*model.PendingReview),
	}
}

func copyTransaction(tx *model.Transaction) *model.Transaction {
	dup := *tx
	dup.Items = append([]model.LineItem(nil), tx.Items...)
	dup.MissingFields = append([]string(nil), tx.MissingFields...)
	dup.Warnings = append([]string(nil), tx.Warnings...)
	return &dup
}

func (s *MemoryStore) CreateRecord(ctx context.Context, tx *model.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.Status == "" {
		tx.Status = model.StatusParsed
	}
	tx.RecordID = uuid.NewString()
	s.records[tx.RecordID] = copyTransaction(tx)
	return tx.RecordID, nil
}

func (s *MemoryStore) GetRecord(ctx context.Context, recordID string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.records[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTransaction(tx), nil
}

func (s *MemoryStore) UpdateRecord(ctx context.Context, tx *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[tx.RecordID]; !ok {
		return ErrNotFound
	}
	s.records[tx.RecordID] = copyTransaction(tx)
	return nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, recordID string, status model.ProcessingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.records[recordID]
	if !ok {
		return ErrNotFound
	}
	tx.Status = status
	return nil
}

func (s *MemoryStore) FindByEmailUID(ctx context.Context, uid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, tx := range s.records {
		if tx.EmailUID == uid {
			return id, nil
		}
	}
	return "", ErrNotFound
}

func (s *MemoryStore) ListRecordsByStatus(ctx context.Context, status model.ProcessingStatus) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, tx := range s.records {
		if tx.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	records := make([]*model.Transaction, 0, len(ids))
	for _, id := range ids {
		records = append(records, copyTransaction(s.records[id]))
	}
	return records, nil
}

func (s *MemoryStore) FindItemBySKU(ctx context.Context, sku string) (*model.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[sku]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *rec
	return &dup, nil
}

func (s *MemoryStore) FindItemByUPC(ctx context.Context, upc string) (*model.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if upc == "" {
		return nil, ErrNotFound
	}
	for _, rec := range s.items {
		if rec.UPC == upc {
			dup := *rec
			return &dup, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindItemByName(ctx context.Context, name string) (*model.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.items {
		if strings.EqualFold(rec.Name, name) {
			dup := *rec
			return &dup, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateItem(ctx context.Context, rec *model.InventoryRecord) (*model.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[rec.SKU]; ok {
		dup := *existing
		return &dup, nil
	}
	stored := *rec
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.UpdatedAt = time.Now()
	s.items[stored.SKU] = &stored
	dup := stored
	return &dup, nil
}

func (s *MemoryStore) AdjustQuantity(ctx context.Context, sku string, delta int, ref string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[sku]
	if !ok {
		return 0, 0, ErrNotFound
	}
	prev := rec.QuantityOnHand
	next := prev + delta
	if next < 0 {
		next = 0
	}
	rec.QuantityOnHand = next
	rec.LastTransactionRef = ref
	rec.UpdatedAt = time.Now()
	return prev, next, nil
}

func (s *MemoryStore) SetBackendItemID(ctx context.Context, sku, backendID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[sku]
	if !ok {
		return ErrNotFound
	}
	rec.BackendItemID = backendID
	return nil
}

func (s *MemoryStore) ListItems(ctx context.Context) ([]model.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var skus []string
	for sku := range s.items {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	items := make([]model.InventoryRecord, 0, len(skus))
	for _, sku := range skus {
		items = append(items, *s.items[sku])
	}
	return items, nil
}

func (s *MemoryStore) SavePendingReview(ctx context.Context, pr *model.PendingReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *pr
	if existing, ok := s.reviews[pr.RecordID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.reviews[pr.RecordID] = &stored
	return nil
}

func (s *MemoryStore) GetPendingReview(ctx context.Context, recordID string) (*model.PendingReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.reviews[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *pr
	return &dup, nil
}

func (s *MemoryStore) ListPendingReviews(ctx context.Context) ([]model.PendingReview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reviews := make([]model.PendingReview, 0, len(s.reviews))
	for _, pr := range s.reviews {
		reviews = append(reviews, *pr)
	}
	sort.Slice(reviews, func(i, j int) bool {
		return reviews[i].CreatedAt.Before(reviews[j].CreatedAt)
	})
	return reviews, nil
}

func (s *MemoryStore) DeletePendingReview(ctx context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reviews, recordID)
	return nil
}
