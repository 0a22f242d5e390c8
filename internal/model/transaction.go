package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindPurchase TransactionKind = "purchase"
	KindSale     TransactionKind = "sale"
)

type Completeness string

const (
	Complete   Completeness = "complete"
	Incomplete Completeness = "incomplete"
	Invalid    Completeness = "invalid"
)

type ProcessingStatus string

const (
	StatusParsed        ProcessingStatus = "parsed"
	StatusLedgerSaved   ProcessingStatus = "ledger_saved"
	StatusPendingReview ProcessingStatus = "pending_review"
	StatusPosted        ProcessingStatus = "posted"
	StatusPostingFailed ProcessingStatus = "posting_failed"
)

// LineItem is a single product line extracted from an order email.
// UnitPrice is the per-unit cost on purchases; SalePrice the per-unit
// revenue on sales. SKU, UPC and ProductID may all be empty until the
// item has been resolved against the ledger store.
type LineItem struct {
	Name      string           `json:"name"`
	SKU       string           `json:"sku,omitempty"`
	UPC       string           `json:"upc,omitempty"`
	ProductID string           `json:"product_id,omitempty"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"` // nil when not stated; zero is a valid price
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`
}

func (li LineItem) pricePtr(kind TransactionKind) *decimal.Decimal {
	if kind == KindSale {
		return li.SalePrice
	}
	return li.UnitPrice
}

// PriceKnown reports whether the kind-appropriate per-unit price was
// stated at all.
func (li LineItem) PriceKnown(kind TransactionKind) bool {
	return li.pricePtr(kind) != nil
}

// UnitValue returns the monetary value of one unit for the given
// transaction kind, zero when the price was not stated.
func (li LineItem) UnitValue(kind TransactionKind) decimal.Decimal {
	if p := li.pricePtr(kind); p != nil {
		return *p
	}
	return decimal.Zero
}

// HasIdentifier reports whether the line carries any product identifier
// besides its name.
func (li LineItem) HasIdentifier() bool {
	return li.SKU != "" || li.UPC != "" || li.ProductID != ""
}

// Transaction is one extracted purchase or sale, as stored in the
// transaction log. Monetary fields default to zero decimals, never nil.
type Transaction struct {
	RecordID      string           `json:"record_id,omitempty"`
	Kind          TransactionKind  `json:"kind"`
	OrderNumber   string           `json:"order_number"`
	Date          string           `json:"date"` // YYYY-MM-DD
	VendorName    string           `json:"vendor_name,omitempty"`
	Channel       string           `json:"channel,omitempty"`
	CustomerEmail string           `json:"customer_email,omitempty"`
	Items         []LineItem       `json:"items"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	Taxes         *decimal.Decimal `json:"taxes,omitempty"` // nil when the email stated no tax figure at all
	Shipping      decimal.Decimal  `json:"shipping"`
	Fees          decimal.Decimal  `json:"fees"`
	Total         decimal.Decimal  `json:"total"`
	Confidence    float64          `json:"confidence"`
	Completeness  Completeness     `json:"completeness"`
	MissingFields []string         `json:"missing_fields,omitempty"`
	Warnings      []string         `json:"warnings,omitempty"`
	EmailUID      string           `json:"email_uid,omitempty"`
	Status        ProcessingStatus `json:"status"`
}

// Counterparty returns the vendor name for purchases and the sales
// channel for sales.
func (t *Transaction) Counterparty() string {
	if t.Kind == KindSale {
		return t.Channel
	}
	return t.VendorName
}

// TotalQuantity sums the quantities across all line items.
func (t *Transaction) TotalQuantity() int {
	n := 0
	for _, li := range t.Items {
		n += li.Quantity
	}
	return n
}

// TaxAmount returns the stated tax figure, treating an absent figure
// as zero.
func (t *Transaction) TaxAmount() decimal.Decimal {
	if t.Taxes == nil {
		return decimal.Zero
	}
	return *t.Taxes
}

// CalculatedTotal recomputes the order total from its components.
// Purchases: subtotal + taxes + shipping. Sales: subtotal + taxes
// - fees + shipping.
func (t *Transaction) CalculatedTotal() decimal.Decimal {
	total := t.Subtotal.Add(t.TaxAmount()).Add(t.Shipping)
	if t.Kind == KindSale {
		total = total.Sub(t.Fees)
	}
	return total
}

// InventoryRecord is one row of the item ledger.
type InventoryRecord struct {
	ID                 string          `json:"id"`
	SKU                string          `json:"sku"`
	Name               string          `json:"name"`
	UPC                string          `json:"upc,omitempty"`
	QuantityOnHand     int             `json:"quantity_on_hand"`
	CostRate           decimal.Decimal `json:"cost_rate"`
	BackendItemID      string          `json:"backend_item_id,omitempty"`
	LastTransactionRef string          `json:"last_transaction_ref,omitempty"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// PendingReview is a transaction parked for manual completion, keyed by
// its transaction-log record id.
type PendingReview struct {
	RecordID      string          `json:"record_id"`
	OrderNumber   string          `json:"order_number"`
	Kind          TransactionKind `json:"kind"`
	MissingFields []string        `json:"missing_fields"`
	CreatedAt     time.Time       `json:"created_at"`
}
