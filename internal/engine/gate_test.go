package engine_test

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"inventory-agent/internal/engine"
	"inventory-agent/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func completePurchase() *model.Transaction {
	return &model.Transaction{
		Kind:        model.KindPurchase,
		OrderNumber: "PO-1001",
		Date:        "2025-07-15",
		VendorName:  "TCGPlayer",
		Subtotal:    dec("100.00"),
		Taxes:       decPtr("8.00"),
		Shipping:    dec("5.00"),
		Total:       dec("113.00"),
		Items: []model.LineItem{
			{Name: "Booster Box", SKU: "BB-AB12CD", Quantity: 2, UnitPrice: decPtr("50.00")},
		},
	}
}

func completeSale() *model.Transaction {
	return &model.Transaction{
		Kind:        model.KindSale,
		OrderNumber: "SO-2001",
		Date:        "2025-07-16",
		Channel:     "eBay",
		Subtotal:    dec("80.00"),
		Taxes:       decPtr("6.40"),
		Fees:        dec("10.00"),
		Shipping:    dec("4.00"),
		Total:       dec("80.40"),
		Items: []model.LineItem{
			{Name: "Rare Card", SKU: "RC-1234AB", Quantity: 1, SalePrice: decPtr("80.00")},
		},
	}
}

func hasField(fields []string, want string) bool {
	for _, f := range fields {
		if f == want {
			return true
		}
	}
	return false
}

func TestEvaluate_CompletePurchase(t *testing.T) {
	tx := completePurchase()
	v := engine.Evaluate(tx)

	if v.Completeness != model.Complete {
		t.Fatalf("expected complete, got %s (missing: %v)", v.Completeness, v.MissingFields)
	}
	if v.RequiresReview() {
		t.Error("complete transaction must not require review")
	}
	if len(v.MissingFields) != 0 {
		t.Errorf("expected no missing fields, got %v", v.MissingFields)
	}
	if v.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0, got %v", v.Confidence)
	}
}

func TestEvaluate_MissingFieldTags(t *testing.T) {
	tx := completePurchase()
	tx.Date = ""
	tx.Items = []model.LineItem{
		{Name: "Booster Box", SKU: "BB-AB12CD", Quantity: 2}, // no unit price
		{Name: "", SKU: "RC-1234AB", Quantity: 0, UnitPrice: decPtr("3.00")},
	}

	v := engine.Evaluate(tx)

	if v.Completeness != model.Incomplete {
		t.Fatalf("expected incomplete, got %s", v.Completeness)
	}
	for _, want := range []string{"date", "item_1_unit_price", "item_2_name", "item_2_quantity"} {
		if !hasField(v.MissingFields, want) {
			t.Errorf("expected missing field %q, got %v", want, v.MissingFields)
		}
	}
}

func TestEvaluate_SaleUsesChannelAndSalePrice(t *testing.T) {
	tx := completeSale()
	tx.Channel = ""
	tx.Items[0].SalePrice = nil

	v := engine.Evaluate(tx)

	if !hasField(v.MissingFields, "channel") {
		t.Errorf("expected channel tag, got %v", v.MissingFields)
	}
	if !hasField(v.MissingFields, "item_1_sale_price") {
		t.Errorf("expected item_1_sale_price tag, got %v", v.MissingFields)
	}
	if hasField(v.MissingFields, "vendor_name") {
		t.Error("sale must not require vendor_name")
	}
}

func TestEvaluate_ZeroTaxIsStillPresent(t *testing.T) {
	tx := completePurchase()
	tx.Taxes = decPtr("0.00")
	tx.Total = dec("105.00")

	v := engine.Evaluate(tx)
	if hasField(v.MissingFields, "taxes") {
		t.Error("explicit zero tax must count as present")
	}

	tx2 := completePurchase()
	tx2.Taxes = nil
	v2 := engine.Evaluate(tx2)
	if !hasField(v2.MissingFields, "taxes") {
		t.Error("absent tax must be flagged")
	}
}

func TestEvaluate_DateReformatting(t *testing.T) {
	tx := completePurchase()
	tx.Date = "07/15/2025"

	v := engine.Evaluate(tx)
	if tx.Date != "2025-07-15" {
		t.Errorf("expected date normalized to 2025-07-15, got %s", tx.Date)
	}
	if hasField(v.MissingFields, "date") {
		t.Error("reparseable date must not be flagged missing")
	}
	if len(v.Warnings) == 0 {
		t.Error("expected a reformat warning")
	}

	tx2 := completePurchase()
	tx2.Date = "sometime last week"
	v2 := engine.Evaluate(tx2)
	if !hasField(v2.MissingFields, "date") {
		t.Error("unparseable date must count as missing")
	}
	if tx2.Date != "" {
		t.Errorf("unparseable date should be cleared, got %q", tx2.Date)
	}
}

func TestEvaluate_TotalMismatchWarning(t *testing.T) {
	tx := completePurchase()
	tx.Total = dec("120.00") // components sum to 113.00

	v := engine.Evaluate(tx)
	found := false
	for _, w := range v.Warnings {
		if len(w) >= 14 && w[:14] == "Total mismatch" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected total mismatch warning, got %v", v.Warnings)
	}

	// Within the ten-cent tolerance: no warning.
	tx2 := completePurchase()
	tx2.Total = dec("113.05")
	v2 := engine.Evaluate(tx2)
	for _, w := range v2.Warnings {
		if len(w) >= 14 && w[:14] == "Total mismatch" {
			t.Errorf("unexpected mismatch warning for in-tolerance total: %s", w)
		}
	}
}

func TestEvaluate_ConfidenceScoring(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Transaction)
		want   float64
	}{
		{"complete", func(tx *model.Transaction) {}, 1.0},
		// -0.2 date, no bonus
		{"missing date", func(tx *model.Transaction) { tx.Date = "" }, 0.8},
		// -0.15 taxes, -0.02 for the separate-field warning; total
		// adjusted so no mismatch warning stacks on top
		{"missing taxes", func(tx *model.Transaction) { tx.Taxes = nil; tx.Total = dec("105.00") }, 0.83},
		// -0.2 vendor
		{"missing vendor", func(tx *model.Transaction) { tx.VendorName = "" }, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := completePurchase()
			tt.mutate(tx)
			v := engine.Evaluate(tx)
			if math.Abs(v.Confidence-tt.want) > 1e-9 {
				t.Errorf("expected confidence %v, got %v", tt.want, v.Confidence)
			}
		})
	}
}

func TestEvaluate_ConfidenceNeverIncreasesWhenFieldsDrop(t *testing.T) {
	base := completePurchase()
	baseConf := engine.Evaluate(base).Confidence

	mutations := []func(*model.Transaction){
		func(tx *model.Transaction) { tx.Date = "" },
		func(tx *model.Transaction) { tx.VendorName = "" },
		func(tx *model.Transaction) { tx.Taxes = nil },
		func(tx *model.Transaction) { tx.Items[0].UnitPrice = nil },
		func(tx *model.Transaction) { tx.Items = nil },
	}
	for i, mutate := range mutations {
		tx := completePurchase()
		mutate(tx)
		conf := engine.Evaluate(tx).Confidence
		if conf > baseConf {
			t.Errorf("mutation %d increased confidence: %v > %v", i, conf, baseConf)
		}
	}
}

func TestEvaluate_EmptyExtractionIsInvalid(t *testing.T) {
	tx := &model.Transaction{Kind: model.KindPurchase}
	v := engine.Evaluate(tx)
	if v.Completeness != model.Invalid {
		t.Fatalf("expected invalid, got %s", v.Completeness)
	}
	if !v.RequiresReview() {
		t.Error("invalid transaction must require review")
	}

	// A single usable signal keeps the transaction merely incomplete.
	tx2 := &model.Transaction{Kind: model.KindPurchase, VendorName: "TCGPlayer"}
	if v2 := engine.Evaluate(tx2); v2.Completeness != model.Incomplete {
		t.Errorf("expected incomplete, got %s", v2.Completeness)
	}
}

func TestEvaluate_ClampedToUnitInterval(t *testing.T) {
	tx := &model.Transaction{Kind: model.KindSale, Total: dec("50.00")}
	v := engine.Evaluate(tx)
	if v.Confidence < 0 || v.Confidence > 1 {
		t.Errorf("confidence out of range: %v", v.Confidence)
	}
}
