package books

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"inventory-agent/internal/model"
)

// DocumentLine is one line of a purchase or sales order.
type DocumentLine struct {
	ItemID      string          `json:"item_id"`
	Quantity    int             `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Description string          `json:"description,omitempty"`
}

// OrderInput is the shared shape of purchase and sales order creation.
type OrderInput struct {
	ContactID       string
	Date            string
	ReferenceNumber string
	Notes           string
	TaxTotal        decimal.Decimal
	ShippingCharge  decimal.Decimal
	Lines           []DocumentLine
}

// Document identifies a created backend document.
type Document struct {
	ID     string
	Number string
}

func today() string {
	return time.Now().Format("2006-01-02")
}

func (in OrderInput) payload(contactKey string) map[string]any {
	date := in.Date
	if date == "" {
		date = today()
	}
	p := map[string]any{
		contactKey:         in.ContactID,
		"date":             date,
		"reference_number": in.ReferenceNumber,
		"notes":            in.Notes,
		"line_items":       in.Lines,
	}
	if in.TaxTotal.IsPositive() {
		p["tax_total"] = in.TaxTotal
	}
	if in.ShippingCharge.IsPositive() {
		p["shipping_charge"] = in.ShippingCharge
	}
	return p
}

// CreatePurchaseOrder creates a draft purchase order.
func (c *Client) CreatePurchaseOrder(ctx context.Context, in OrderInput) (*Document, error) {
	var resp struct {
		PurchaseOrder struct {
			ID     string `json:"purchaseorder_id"`
			Number string `json:"purchaseorder_number"`
		} `json:"purchaseorder"`
	}
	if err := c.request(ctx, "POST", "purchaseorders", nil, in.payload("vendor_id"), &resp); err != nil {
		return nil, fmt.Errorf("create purchase order %q: %w", in.ReferenceNumber, err)
	}
	return &Document{ID: resp.PurchaseOrder.ID, Number: resp.PurchaseOrder.Number}, nil
}

// MarkReceived records a full receipt against a purchase order,
// bringing the goods into backend stock.
func (c *Client) MarkReceived(ctx context.Context, poID string, lines []DocumentLine) (*Document, error) {
	receive := make([]map[string]any, 0, len(lines))
	for _, ln := range lines {
		receive = append(receive, map[string]any{"item_id": ln.ItemID, "quantity": ln.Quantity})
	}
	payload := map[string]any{"date": today(), "line_items": receive}

	var resp struct {
		PurchaseReceive struct {
			ID     string `json:"receive_id"`
			Number string `json:"receive_number"`
		} `json:"purchasereceive"`
	}
	if err := c.request(ctx, "POST", "purchaseorders/"+poID+"/receive", nil, payload, &resp); err != nil {
		return nil, fmt.Errorf("mark purchase order %s received: %w", poID, err)
	}
	return &Document{ID: resp.PurchaseReceive.ID, Number: resp.PurchaseReceive.Number}, nil
}

// ConvertToBill converts a purchase order into a vendor bill.
func (c *Client) ConvertToBill(ctx context.Context, poID string) (*Document, error) {
	var resp struct {
		Bill struct {
			ID     string `json:"bill_id"`
			Number string `json:"bill_number"`
		} `json:"bill"`
	}
	if err := c.request(ctx, "POST", "purchaseorders/"+poID+"/convertto/bill", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("convert purchase order %s to bill: %w", poID, err)
	}
	return &Document{ID: resp.Bill.ID, Number: resp.Bill.Number}, nil
}

// MarkBillPaid marks a bill as paid.
func (c *Client) MarkBillPaid(ctx context.Context, billID string) error {
	if err := c.request(ctx, "POST", "bills/"+billID+"/status/paid", nil, nil, nil); err != nil {
		return fmt.Errorf("mark bill %s paid: %w", billID, err)
	}
	return nil
}

// CreateSalesOrder creates a draft sales order.
func (c *Client) CreateSalesOrder(ctx context.Context, in OrderInput) (*Document, error) {
	var resp struct {
		SalesOrder struct {
			ID     string `json:"salesorder_id"`
			Number string `json:"salesorder_number"`
		} `json:"salesorder"`
	}
	if err := c.request(ctx, "POST", "salesorders", nil, in.payload("customer_id"), &resp); err != nil {
		return nil, fmt.Errorf("create sales order %q: %w", in.ReferenceNumber, err)
	}
	return &Document{ID: resp.SalesOrder.ID, Number: resp.SalesOrder.Number}, nil
}

// ConvertToInvoice converts a sales order into an invoice, committing
// the sale.
func (c *Client) ConvertToInvoice(ctx context.Context, soID string) (*Document, error) {
	var resp struct {
		Invoice struct {
			ID     string `json:"invoice_id"`
			Number string `json:"invoice_number"`
		} `json:"invoice"`
	}
	if err := c.request(ctx, "POST", "salesorders/"+soID+"/convertto/invoice", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("convert sales order %s to invoice: %w", soID, err)
	}
	return &Document{ID: resp.Invoice.ID, Number: resp.Invoice.Number}, nil
}

// CreateShipment ships a sales order, which is the step that reduces
// backend inventory.
func (c *Client) CreateShipment(ctx context.Context, soID string, lines []DocumentLine) (*Document, error) {
	ship := make([]map[string]any, 0, len(lines))
	for _, ln := range lines {
		ship = append(ship, map[string]any{"item_id": ln.ItemID, "quantity": ln.Quantity})
	}
	payload := map[string]any{
		"date":            today(),
		"delivery_method": "Standard",
		"line_items":      ship,
	}

	var resp struct {
		Shipment struct {
			ID     string `json:"shipment_id"`
			Number string `json:"shipment_number"`
		} `json:"shipment"`
	}
	if err := c.request(ctx, "POST", "salesorders/"+soID+"/shipments", nil, payload, &resp); err != nil {
		return nil, fmt.Errorf("create shipment for sales order %s: %w", soID, err)
	}
	return &Document{ID: resp.Shipment.ID, Number: resp.Shipment.Number}, nil
}

var deletePaths = map[model.ArtifactKind]string{
	model.ArtifactPurchaseOrder: "purchaseorders",
	model.ArtifactBill:          "bills",
	model.ArtifactSalesOrder:    "salesorders",
	model.ArtifactInvoice:       "invoices",
	model.ArtifactShipment:      "shipments",
}

// Delete removes a document created during a failed workflow.
func (c *Client) Delete(ctx context.Context, kind model.ArtifactKind, id string) error {
	path, ok := deletePaths[kind]
	if !ok {
		return fmt.Errorf("delete: unknown document kind %q", kind)
	}
	if err := c.request(ctx, "DELETE", path+"/"+id, nil, nil, nil); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return nil
}
