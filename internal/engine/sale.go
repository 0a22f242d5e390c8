package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"inventory-agent/internal/books"
	"inventory-agent/internal/model"
)

// PostSale runs the sale workflow: customer, items, sales order, then
// the optional invoice and shipment steps. The shipment is what moves
// inventory: it decrements the ledger and books COGS from the
// backend's cost rate at ship time. Revenue is always the sum of
// quantity times sale price over the extracted lines, shipped or not.
func (w *Workflow) PostSale(ctx context.Context, tx *model.Transaction) *model.WorkflowResult {
	result := &model.WorkflowResult{}

	for _, item := range tx.Items {
		result.Revenue = result.Revenue.Add(
			item.UnitValue(model.KindSale).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	customerID, err := w.backend.FindOrCreateCustomer(ctx, tx.Channel, tx.CustomerEmail)
	if err != nil {
		result.Failf("customer resolution failed: %v", err)
		return result
	}
	result.AppendStep("Customer resolved: %s (ID: %s)", books.StandardizeChannelName(tx.Channel), customerID)

	resolved := w.resolveItems(ctx, tx, result)
	if len(resolved) == 0 {
		result.Failf("no items could be resolved for order %s", tx.OrderNumber)
		return result
	}
	result.AppendStep("Items resolved: %d of %d", len(resolved), len(tx.Items))

	lines := make([]books.DocumentLine, 0, len(resolved))
	for _, rl := range resolved {
		if details, err := w.backend.GetItemDetails(ctx, rl.backendID); err == nil {
			if details.AvailableStock < float64(rl.item.Quantity) {
				result.Warnf("insufficient stock for %s: %.0f < %d", rl.record.SKU, details.AvailableStock, rl.item.Quantity)
			}
		}
		lines = append(lines, books.DocumentLine{
			ItemID:      rl.backendID,
			Quantity:    rl.item.Quantity,
			Rate:        rl.item.UnitValue(model.KindSale),
			Description: rl.item.Name,
		})
	}

	so, err := w.backend.CreateSalesOrder(ctx, books.OrderInput{
		ContactID:       customerID,
		Date:            tx.Date,
		ReferenceNumber: tx.OrderNumber,
		Notes:           orderNotes(tx.OrderNumber),
		TaxTotal:        tx.TaxAmount(),
		ShippingCharge:  tx.Shipping,
		Lines:           lines,
	})
	if err != nil {
		return w.fail(ctx, result, "sales order creation failed: %v", err)
	}
	result.OrderID = so.ID
	result.AddArtifact(model.ArtifactSalesOrder, so.ID)
	result.AppendStep("Sales Order created: %s", so.Number)

	if w.opts.AutoInvoice {
		invoice, err := w.backend.ConvertToInvoice(ctx, so.ID)
		if err != nil {
			return w.fail(ctx, result, "invoice creation failed: %v", err)
		}
		result.InvoiceID = invoice.ID
		result.AddArtifact(model.ArtifactInvoice, invoice.ID)
		result.AppendStep("Invoice created: %s", invoice.Number)
	}

	if w.opts.AutoShip {
		shipment, err := w.backend.CreateShipment(ctx, so.ID, lines)
		if err != nil {
			return w.fail(ctx, result, "shipment creation failed: %v", err)
		}
		result.ShipmentID = shipment.ID
		result.AddArtifact(model.ArtifactShipment, shipment.ID)
		result.AppendStep("Shipment created: %s (inventory reduced)", shipment.Number)

		for _, rl := range resolved {
			details, err := w.backend.GetItemDetails(ctx, rl.backendID)
			if err != nil {
				result.Warnf("could not read cost rate for %s: %v", rl.record.SKU, err)
			} else {
				result.COGS = result.COGS.Add(
					details.StockRate.Mul(decimal.NewFromInt(int64(rl.item.Quantity))))
			}
			w.applyLedgerDelta(ctx, rl, -rl.item.Quantity, tx.OrderNumber, result)
		}
		result.AppendStep("COGS booked: $%s", result.COGS.StringFixed(2))
	}

	result.Success = true
	return result
}
