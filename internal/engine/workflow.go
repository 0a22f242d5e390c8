package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"inventory-agent/internal/books"
	"inventory-agent/internal/model"
	"inventory-agent/internal/store"
)

// Backend is the accounting-backend surface the posting workflows use.
// *books.Client satisfies it; tests substitute a fake.
type Backend interface {
	Available() bool
	FindOrCreateVendor(ctx context.Context, name string) (string, error)
	FindOrCreateCustomer(ctx context.Context, channel, email string) (string, error)
	FindOrCreateItem(ctx context.Context, sku, name string) (string, error)
	GetItemDetails(ctx context.Context, itemID string) (*books.ItemDetails, error)
	CreatePurchaseOrder(ctx context.Context, in books.OrderInput) (*books.Document, error)
	MarkReceived(ctx context.Context, poID string, lines []books.DocumentLine) (*books.Document, error)
	ConvertToBill(ctx context.Context, poID string) (*books.Document, error)
	MarkBillPaid(ctx context.Context, billID string) error
	CreateSalesOrder(ctx context.Context, in books.OrderInput) (*books.Document, error)
	ConvertToInvoice(ctx context.Context, soID string) (*books.Document, error)
	CreateShipment(ctx context.Context, soID string, lines []books.DocumentLine) (*books.Document, error)
	Delete(ctx context.Context, kind model.ArtifactKind, id string) error
}

// Options gates the optional workflow steps. With everything off, a
// purchase stops at the purchase order and a sale at the sales order.
type Options struct {
	AutoReceive   bool
	AutoBill      bool
	MarkBillsPaid bool
	AutoInvoice   bool
	AutoShip      bool
}

// Workflow posts completed transactions to the accounting backend and
// keeps the local item ledger in step. One workflow instance serves
// the single posting worker.
type Workflow struct {
	backend  Backend
	ledger   store.Store
	resolver *Resolver
	opts     Options
	log      *logrus.Logger
}

func NewWorkflow(backend Backend, ledger store.Store, opts Options, log *logrus.Logger) *Workflow {
	return &Workflow{
		backend:  backend,
		ledger:   ledger,
		resolver: NewResolver(ledger, log),
		opts:     opts,
		log:      log,
	}
}

// Post runs the kind-appropriate workflow.
func (w *Workflow) Post(ctx context.Context, tx *model.Transaction) *model.WorkflowResult {
	if !w.backend.Available() {
		result := &model.WorkflowResult{}
		result.Failf("accounting backend unavailable")
		return result
	}
	if tx.Kind == model.KindSale {
		return w.PostSale(ctx, tx)
	}
	return w.PostPurchase(ctx, tx)
}

// resolvedLine ties an extracted line item to its inventory record and
// backend item id.
type resolvedLine struct {
	item      model.LineItem
	record    *model.InventoryRecord
	backendID string
}

// resolveItems maps every line item to an inventory record and a
// backend item, isolating failures per item. The transaction only
// aborts when no line at all resolves.
func (w *Workflow) resolveItems(ctx context.Context, tx *model.Transaction, result *model.WorkflowResult) []resolvedLine {
	var resolved []resolvedLine
	for _, item := range tx.Items {
		rec, err := w.resolver.Resolve(ctx, item)
		if err != nil {
			result.ItemsFailed = append(result.ItemsFailed, model.FailedItem{Name: item.Name, Reason: err.Error()})
			w.logf(logrus.WarnLevel, "item resolution failed: %v", err)
			continue
		}

		backendID := rec.BackendItemID
		if backendID == "" {
			backendID, err = w.backend.FindOrCreateItem(ctx, rec.SKU, rec.Name)
			if err != nil {
				result.ItemsFailed = append(result.ItemsFailed, model.FailedItem{Name: item.Name, Reason: err.Error()})
				w.logf(logrus.WarnLevel, "backend item creation failed for %s: %v", rec.SKU, err)
				continue
			}
			if err := w.ledger.SetBackendItemID(ctx, rec.SKU, backendID); err != nil {
				result.Warnf("could not record backend item id for %s: %v", rec.SKU, err)
			}
			rec.BackendItemID = backendID
		}

		resolved = append(resolved, resolvedLine{item: item, record: rec, backendID: backendID})
		result.ItemsProcessed = append(result.ItemsProcessed, model.ProcessedItem{
			Name:     item.Name,
			SKU:      rec.SKU,
			Quantity: item.Quantity,
		})
	}
	return resolved
}

// applyLedgerDelta adjusts the local ledger for one line, flooring at
// zero. Ledger failures never abort a posting that already created
// backend documents; they surface as warnings.
func (w *Workflow) applyLedgerDelta(ctx context.Context, rl resolvedLine, delta int, ref string, result *model.WorkflowResult) {
	prev, next, err := w.ledger.AdjustQuantity(ctx, rl.record.SKU, delta, ref)
	if err != nil {
		result.Warnf("ledger update failed for %s: %v", rl.record.SKU, err)
		return
	}
	if delta < 0 && prev < -delta {
		result.Warnf("oversell on %s: had %d, sold %d, floored at %d", rl.record.SKU, prev, -delta, next)
	}
	result.AppendStep("Ledger %s: %d -> %d", rl.record.SKU, prev, next)
}

// compensate deletes backend documents in reverse creation order. One
// best-effort pass: a failed delete is recorded and skipped so later
// deletions still run.
func (w *Workflow) compensate(ctx context.Context, result *model.WorkflowResult) {
	artifacts := result.Artifacts()
	for i := len(artifacts) - 1; i >= 0; i-- {
		a := artifacts[i]
		if err := w.backend.Delete(ctx, a.Kind, a.ID); err != nil {
			result.Warnf("cleanup failed for %s %s: %v", a.Kind, a.ID, err)
			w.logf(logrus.ErrorLevel, "cleanup of %s %s failed: %v", a.Kind, a.ID, err)
			continue
		}
		result.AppendStep("Cleaned up %s %s", a.Kind, a.ID)
	}
}

func (w *Workflow) fail(ctx context.Context, result *model.WorkflowResult, format string, args ...any) *model.WorkflowResult {
	result.Failf(format, args...)
	if errors.Is(lastErr(args), books.ErrBackendUnavailable) {
		// No point attempting deletes against a dead backend.
		return result
	}
	w.compensate(ctx, result)
	return result
}

func lastErr(args []any) error {
	for i := len(args) - 1; i >= 0; i-- {
		if err, ok := args[i].(error); ok {
			return err
		}
	}
	return nil
}

func (w *Workflow) logf(level logrus.Level, format string, args ...any) {
	if w.log != nil {
		w.log.Logf(level, format, args...)
	}
}

func orderNotes(orderNumber string) string {
	return fmt.Sprintf("Auto-generated from email parsing - Order: %s", orderNumber)
}
