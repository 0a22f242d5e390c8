package engine

import (
	"context"

	"inventory-agent/internal/books"
	"inventory-agent/internal/model"
)

// PostPurchase runs the purchase workflow: vendor, items, purchase
// order, ledger increments, then the optional receive and bill steps.
// A failure at or after order creation compensates in reverse creation
// order; ledger increments already applied are left in place.
func (w *Workflow) PostPurchase(ctx context.Context, tx *model.Transaction) *model.WorkflowResult {
	result := &model.WorkflowResult{}

	vendorID, err := w.backend.FindOrCreateVendor(ctx, tx.VendorName)
	if err != nil {
		result.Failf("vendor resolution failed: %v", err)
		return result
	}
	result.AppendStep("Vendor resolved: %s (ID: %s)", books.StandardizeVendorName(tx.VendorName), vendorID)

	resolved := w.resolveItems(ctx, tx, result)
	if len(resolved) == 0 {
		result.Failf("no items could be resolved for order %s", tx.OrderNumber)
		return result
	}
	result.AppendStep("Items resolved: %d of %d", len(resolved), len(tx.Items))

	lines := make([]books.DocumentLine, 0, len(resolved))
	for _, rl := range resolved {
		lines = append(lines, books.DocumentLine{
			ItemID:      rl.backendID,
			Quantity:    rl.item.Quantity,
			Rate:        rl.item.UnitValue(model.KindPurchase),
			Description: rl.item.Name,
		})
	}

	po, err := w.backend.CreatePurchaseOrder(ctx, books.OrderInput{
		ContactID:       vendorID,
		Date:            tx.Date,
		ReferenceNumber: tx.OrderNumber,
		Notes:           orderNotes(tx.OrderNumber),
		TaxTotal:        tx.TaxAmount(),
		ShippingCharge:  tx.Shipping,
		Lines:           lines,
	})
	if err != nil {
		return w.fail(ctx, result, "purchase order creation failed: %v", err)
	}
	result.OrderID = po.ID
	result.AddArtifact(model.ArtifactPurchaseOrder, po.ID)
	result.AppendStep("Purchase Order created: %s", po.Number)

	for _, rl := range resolved {
		w.applyLedgerDelta(ctx, rl, rl.item.Quantity, tx.OrderNumber, result)
	}

	if w.opts.AutoReceive {
		receipt, err := w.backend.MarkReceived(ctx, po.ID, lines)
		if err != nil {
			return w.fail(ctx, result, "receive failed: %v", err)
		}
		result.ReceiptID = receipt.ID
		result.AppendStep("Purchase Order received: %s", receipt.Number)
	}

	if w.opts.AutoBill {
		bill, err := w.backend.ConvertToBill(ctx, po.ID)
		if err != nil {
			return w.fail(ctx, result, "bill creation failed: %v", err)
		}
		result.BillID = bill.ID
		result.AddArtifact(model.ArtifactBill, bill.ID)
		result.AppendStep("Bill created: %s", bill.Number)

		if w.opts.MarkBillsPaid {
			if err := w.backend.MarkBillPaid(ctx, bill.ID); err != nil {
				result.Warnf("could not mark bill %s paid: %v", bill.ID, err)
			} else {
				result.AppendStep("Bill marked paid")
			}
		}
	}

	result.Success = true
	return result
}
