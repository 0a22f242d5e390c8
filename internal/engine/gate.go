package engine

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"inventory-agent/internal/model"
)

// Stated totals within ten cents of the component sum are considered
// reconciled.
var amountTolerance = decimal.NewFromFloat(0.10)

// Verdict is the outcome of the completeness gate: the classification,
// the machine-readable missing-field tags, advisory warnings and the
// derived confidence score. Evaluate also writes these onto the
// transaction itself.
type Verdict struct {
	Completeness  model.Completeness
	MissingFields []string
	Warnings      []string
	Confidence    float64
}

// RequiresReview reports whether the transaction must be parked for
// manual completion rather than posted.
func (v Verdict) RequiresReview() bool {
	return v.Completeness != model.Complete
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Date layouts seen in real order emails, tried in order when the
// extractor returns something other than YYYY-MM-DD.
var fallbackDateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// Evaluate runs the completeness gate over a transaction. It is a pure
// function of the transaction's fields except that it normalizes
// non-ISO dates in place. Missing-field tags use 1-based item indexing
// so a reviewer can map them straight onto the order email.
func Evaluate(tx *model.Transaction) Verdict {
	var v Verdict

	hasDate := false
	if tx.Date != "" {
		hasDate = true
		if !isoDate.MatchString(tx.Date) {
			if normalized, ok := reparseDate(tx.Date); ok {
				v.Warnings = append(v.Warnings, fmt.Sprintf("Date reformatted from %q", tx.Date))
				tx.Date = normalized
			} else {
				v.Warnings = append(v.Warnings, fmt.Sprintf("Invalid date format: %s", tx.Date))
				tx.Date = ""
				hasDate = false
				v.MissingFields = append(v.MissingFields, "date")
			}
		}
	} else {
		v.MissingFields = append(v.MissingFields, "date")
	}

	hasCounterparty := false
	if tx.Kind == model.KindPurchase {
		if tx.VendorName != "" {
			hasCounterparty = true
		} else {
			v.MissingFields = append(v.MissingFields, "vendor_name")
		}
	} else {
		if tx.Channel != "" {
			hasCounterparty = true
		} else {
			v.MissingFields = append(v.MissingFields, "channel")
		}
	}

	// Taxes must be an explicit field, even when zero.
	hasTaxes := tx.Taxes != nil
	if !hasTaxes {
		v.MissingFields = append(v.MissingFields, "taxes")
		v.Warnings = append(v.Warnings, "Tax must be captured as a separate field")
	}

	priceField := "unit_price"
	if tx.Kind == model.KindSale {
		priceField = "sale_price"
	}

	allItemsComplete := true
	incompleteItems := 0
	if len(tx.Items) == 0 {
		v.MissingFields = append(v.MissingFields, "items")
		allItemsComplete = false
	} else {
		for i, li := range tx.Items {
			complete := true
			if li.Name == "" {
				v.MissingFields = append(v.MissingFields, fmt.Sprintf("item_%d_name", i+1))
				complete = false
			}
			if li.Quantity <= 0 {
				v.MissingFields = append(v.MissingFields, fmt.Sprintf("item_%d_quantity", i+1))
				complete = false
			}
			if !li.PriceKnown(tx.Kind) || li.UnitValue(tx.Kind).Sign() < 0 {
				v.MissingFields = append(v.MissingFields, fmt.Sprintf("item_%d_%s", i+1, priceField))
				complete = false
			}
			if !li.HasIdentifier() {
				v.Warnings = append(v.Warnings, fmt.Sprintf("Item %d: Missing SKU/identifier", i+1))
			}
			if !complete {
				allItemsComplete = false
				incompleteItems++
			}
		}
	}

	if w := reconcileAmounts(tx); w != "" {
		v.Warnings = append(v.Warnings, w)
	}

	switch {
	case hasDate && hasCounterparty && hasTaxes && allItemsComplete:
		v.Completeness = model.Complete
	case !hasDate && !hasCounterparty && len(tx.Items) == 0:
		// Nothing usable came out of extraction; the record only
		// exists so a reviewer can see what was attempted.
		v.Completeness = model.Invalid
	default:
		v.Completeness = model.Incomplete
	}

	v.Confidence = confidence(tx, v, hasDate, hasCounterparty, hasTaxes, allItemsComplete, incompleteItems)

	tx.Completeness = v.Completeness
	tx.MissingFields = v.MissingFields
	tx.Warnings = v.Warnings
	tx.Confidence = v.Confidence
	return v
}

func reparseDate(raw string) (string, bool) {
	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// reconcileAmounts checks the stated total against the component sum
// with a ten-cent rounding tolerance.
func reconcileAmounts(tx *model.Transaction) string {
	if !tx.Total.IsPositive() {
		return ""
	}
	calculated := tx.CalculatedTotal()
	diff := calculated.Sub(tx.Total).Abs()
	if diff.GreaterThan(amountTolerance) {
		return fmt.Sprintf("Total mismatch: calculated $%s vs stated $%s",
			calculated.StringFixed(2), tx.Total.StringFixed(2))
	}
	return ""
}

func confidence(tx *model.Transaction, v Verdict, hasDate, hasCounterparty, hasTaxes, allItemsComplete bool, incompleteItems int) float64 {
	score := 1.0
	if !hasDate {
		score -= 0.2
	}
	if !hasCounterparty {
		score -= 0.2
	}
	if !hasTaxes {
		score -= 0.15
	}
	if !allItemsComplete {
		total := len(tx.Items)
		if total < 1 {
			total = 1
		}
		score -= 0.3 * float64(incompleteItems) / float64(total)
	}
	score -= float64(len(v.Warnings)) * 0.02
	if v.Completeness == model.Complete {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}
