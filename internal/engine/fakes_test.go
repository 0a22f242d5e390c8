package engine_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"inventory-agent/internal/books"
	"inventory-agent/internal/model"
)

// fakeBackend records backend calls and can be told to fail specific
// workflow steps.
type fakeBackend struct {
	down      bool
	failStep  string // "vendor", "customer", "po", "receive", "bill", "so", "invoice", "shipment"
	deleteErr map[string]error

	stock map[string]float64         // backend item id -> available stock
	rates map[string]decimal.Decimal // backend item id -> cost rate

	nextID  int
	created []string
	deleted []model.Artifact
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		stock: make(map[string]float64),
		rates: make(map[string]decimal.Decimal),
	}
}

func (b *fakeBackend) Available() bool { return !b.down }

func (b *fakeBackend) id(prefix string) string {
	b.nextID++
	id := fmt.Sprintf("%s-%d", prefix, b.nextID)
	b.created = append(b.created, id)
	return id
}

func (b *fakeBackend) fail(step string) error {
	if b.failStep == step {
		return fmt.Errorf("simulated %s failure", step)
	}
	return nil
}

func (b *fakeBackend) FindOrCreateVendor(ctx context.Context, name string) (string, error) {
	if err := b.fail("vendor"); err != nil {
		return "", err
	}
	return b.id("vendor"), nil
}

func (b *fakeBackend) FindOrCreateCustomer(ctx context.Context, channel, email string) (string, error) {
	if err := b.fail("customer"); err != nil {
		return "", err
	}
	return b.id("customer"), nil
}

func (b *fakeBackend) FindOrCreateItem(ctx context.Context, sku, name string) (string, error) {
	if err := b.fail("item"); err != nil {
		return "", err
	}
	id := "item-" + sku
	if _, ok := b.stock[id]; !ok {
		b.stock[id] = 0
		b.rates[id] = decimal.Zero
	}
	return id, nil
}

func (b *fakeBackend) GetItemDetails(ctx context.Context, itemID string) (*books.ItemDetails, error) {
	stock, ok := b.stock[itemID]
	if !ok {
		return nil, errors.New("unknown item")
	}
	return &books.ItemDetails{ItemID: itemID, AvailableStock: stock, StockRate: b.rates[itemID]}, nil
}

func (b *fakeBackend) CreatePurchaseOrder(ctx context.Context, in books.OrderInput) (*books.Document, error) {
	if err := b.fail("po"); err != nil {
		return nil, err
	}
	id := b.id("po")
	return &books.Document{ID: id, Number: "PO-" + id}, nil
}

func (b *fakeBackend) MarkReceived(ctx context.Context, poID string, lines []books.DocumentLine) (*books.Document, error) {
	if err := b.fail("receive"); err != nil {
		return nil, err
	}
	id := b.id("receive")
	return &books.Document{ID: id, Number: "RCV-" + id}, nil
}

func (b *fakeBackend) ConvertToBill(ctx context.Context, poID string) (*books.Document, error) {
	if err := b.fail("bill"); err != nil {
		return nil, err
	}
	id := b.id("bill")
	return &books.Document{ID: id, Number: "BILL-" + id}, nil
}

func (b *fakeBackend) MarkBillPaid(ctx context.Context, billID string) error {
	return b.fail("pay")
}

func (b *fakeBackend) CreateSalesOrder(ctx context.Context, in books.OrderInput) (*books.Document, error) {
	if err := b.fail("so"); err != nil {
		return nil, err
	}
	id := b.id("so")
	return &books.Document{ID: id, Number: "SO-" + id}, nil
}

func (b *fakeBackend) ConvertToInvoice(ctx context.Context, soID string) (*books.Document, error) {
	if err := b.fail("invoice"); err != nil {
		return nil, err
	}
	id := b.id("invoice")
	return &books.Document{ID: id, Number: "INV-" + id}, nil
}

func (b *fakeBackend) CreateShipment(ctx context.Context, soID string, lines []books.DocumentLine) (*books.Document, error) {
	if err := b.fail("shipment"); err != nil {
		return nil, err
	}
	id := b.id("shipment")
	return &books.Document{ID: id, Number: "SHP-" + id}, nil
}

func (b *fakeBackend) Delete(ctx context.Context, kind model.ArtifactKind, id string) error {
	if err, ok := b.deleteErr[id]; ok {
		return err
	}
	b.deleted = append(b.deleted, model.Artifact{Kind: kind, ID: id})
	return nil
}
