package app

import (
	"context"
	"fmt"
	"strings"

	"inventory-agent/internal/model"
	"inventory-agent/internal/notify"
)

func kindLabel(kind model.TransactionKind) string {
	if kind == model.KindSale {
		return "Sale"
	}
	return "Purchase"
}

func (a *App) notify(ctx context.Context, level notify.Level, title, message string, fields map[string]string) {
	if a.notifier == nil {
		return
	}
	a.notifier.Notify(ctx, level, title, message, fields)
}

func baseFields(tx *model.Transaction) map[string]string {
	fields := map[string]string{
		"Order":      tx.OrderNumber,
		"Date":       tx.Date,
		"Total":      "$" + tx.Total.StringFixed(2),
		"Confidence": fmt.Sprintf("%.2f", tx.Confidence),
		"Items":      fmt.Sprintf("%d", len(tx.Items)),
	}
	if tx.Kind == model.KindSale {
		fields["Channel"] = tx.Channel
	} else {
		fields["Vendor"] = tx.VendorName
	}
	return fields
}

func (a *App) notifyPosted(ctx context.Context, tx *model.Transaction, result *model.WorkflowResult) {
	fields := baseFields(tx)
	if tx.Kind == model.KindSale {
		fields["Revenue"] = "$" + result.Revenue.StringFixed(2)
		if result.COGS.IsPositive() {
			fields["COGS"] = "$" + result.COGS.StringFixed(2)
		}
	}
	if len(result.ItemsFailed) > 0 {
		fields["Failed Items"] = fmt.Sprintf("%d", len(result.ItemsFailed))
	}
	message := fmt.Sprintf("%s %s posted to accounting backend", kindLabel(tx.Kind), tx.OrderNumber)
	if len(result.Warnings) > 0 {
		message += "\nWarnings: " + strings.Join(result.Warnings, "; ")
	}
	a.notify(ctx, notify.Success, kindLabel(tx.Kind)+" Posted", message, fields)
}

func (a *App) notifyFailed(ctx context.Context, tx *model.Transaction, result *model.WorkflowResult) {
	fields := baseFields(tx)
	fields["Errors"] = strings.Join(result.Errors, "; ")
	a.notify(ctx, notify.Error, kindLabel(tx.Kind)+" Posting Failed",
		fmt.Sprintf("%s %s could not be posted; backend documents were cleaned up",
			kindLabel(tx.Kind), tx.OrderNumber), fields)
}

func (a *App) notifyReview(ctx context.Context, tx *model.Transaction) {
	fields := baseFields(tx)
	fields["Missing"] = strings.Join(tx.MissingFields, ", ")
	fields["Record"] = tx.RecordID
	a.notify(ctx, notify.Warning, "Manual Review Needed",
		fmt.Sprintf("%s %s is incomplete and was queued for review",
			kindLabel(tx.Kind), tx.OrderNumber), fields)
}

func (a *App) notifyDeferred(ctx context.Context, tx *model.Transaction) {
	a.notify(ctx, notify.Warning, "Posting Deferred",
		fmt.Sprintf("%s %s was saved to the ledger but the accounting backend is unavailable; it will post on a future run",
			kindLabel(tx.Kind), tx.OrderNumber), baseFields(tx))
}

func (a *App) notifyBatch(ctx context.Context, after, before Stats) {
	a.notify(ctx, notify.Info, "Batch Summary", "Processing cycle finished", map[string]string{
		"Processed": fmt.Sprintf("%d", after.Processed-before.Processed),
		"Posted":    fmt.Sprintf("%d", after.Posted-before.Posted),
		"Review":    fmt.Sprintf("%d", after.Review-before.Review),
		"Failed":    fmt.Sprintf("%d", after.Failed-before.Failed),
		"Deferred":  fmt.Sprintf("%d", after.Deferred-before.Deferred),
		"Skipped":   fmt.Sprintf("%d", after.Skipped-before.Skipped),
	})
}

func (a *App) notifyShutdown(ctx context.Context) {
	s := a.stats
	a.notify(ctx, notify.Info, "Agent Stopped", "Session totals", map[string]string{
		"Processed": fmt.Sprintf("%d", s.Processed),
		"Posted":    fmt.Sprintf("%d", s.Posted),
		"Review":    fmt.Sprintf("%d", s.Review),
		"Failed":    fmt.Sprintf("%d", s.Failed),
		"Deferred":  fmt.Sprintf("%d", s.Deferred),
		"Skipped":   fmt.Sprintf("%d", s.Skipped),
	})
}
