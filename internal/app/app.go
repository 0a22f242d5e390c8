package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"inventory-agent/internal/engine"
	"inventory-agent/internal/extract"
	"inventory-agent/internal/mail"
	"inventory-agent/internal/model"
	"inventory-agent/internal/notify"
	"inventory-agent/internal/store"
)

// Outcome classifies what happened to one message.
type Outcome string

const (
	OutcomePosted   Outcome = "posted"
	OutcomeReview   Outcome = "pending_review"
	OutcomeFailed   Outcome = "posting_failed"
	OutcomeDeferred Outcome = "deferred" // saved but not posted, backend unavailable
	OutcomeSkipped  Outcome = "skipped"  // duplicate or non-transactional
)

// Stats counts terminal outcomes for the session.
type Stats struct {
	Processed int
	Posted    int
	Review    int
	Failed    int
	Deferred  int
	Skipped   int
}

// App wires the pipeline together: mail in, extraction, completeness
// gate, ledger store, posting workflow, notifications. Messages are
// processed strictly sequentially in fetch order.
type App struct {
	log       *logrus.Logger
	source    mail.Source
	extractor extract.Extractor
	ledger    store.Store
	workflow  *engine.Workflow
	reviews   *engine.ReviewService
	backend   engine.Backend
	notifier  notify.Notifier
	threshold float64
	batchSize int

	stats Stats
}

type Deps struct {
	Log       *logrus.Logger
	Source    mail.Source
	Extractor extract.Extractor
	Ledger    store.Store
	Workflow  *engine.Workflow
	Reviews   *engine.ReviewService
	Backend   engine.Backend
	Notifier  notify.Notifier
	// Threshold is the confidence above which an incomplete
	// transaction is posted anyway instead of being queued.
	Threshold float64
	// BatchSize caps messages per cycle; zero means no cap.
	BatchSize int
}

func New(d Deps) *App {
	return &App{
		log:       d.Log,
		source:    d.Source,
		extractor: d.Extractor,
		ledger:    d.Ledger,
		workflow:  d.Workflow,
		reviews:   d.Reviews,
		backend:   d.Backend,
		notifier:  d.Notifier,
		threshold: d.Threshold,
		batchSize: d.BatchSize,
	}
}

// Stats returns the session counters.
func (a *App) Stats() Stats { return a.stats }

// ProcessMessage runs the full pipeline over one message. Parsing or
// storage failures return an error; posting failures are terminal
// outcomes, not errors.
func (a *App) ProcessMessage(ctx context.Context, msg mail.Message) (Outcome, error) {
	a.stats.Processed++

	// A message already in the transaction log was handled in an
	// earlier run; reprocessing it would double-post.
	if _, err := a.ledger.FindByEmailUID(ctx, msg.UID); err == nil {
		a.stats.Skipped++
		a.markProcessed(ctx, msg.UID)
		return OutcomeSkipped, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("duplicate check for %s: %w", msg.UID, err)
	}

	tx, err := a.extractor.Extract(ctx, msg.Subject, msg.Body)
	if err != nil {
		if errors.Is(err, extract.ErrNotTransactional) {
			a.log.WithField("uid", msg.UID).Debug("message is not a transaction, skipping")
			a.stats.Skipped++
			a.markProcessed(ctx, msg.UID)
			return OutcomeSkipped, nil
		}
		return "", fmt.Errorf("extract %s: %w", msg.UID, err)
	}
	tx.EmailUID = msg.UID

	verdict := engine.Evaluate(tx)

	if _, err := a.ledger.CreateRecord(ctx, tx); err != nil {
		return "", fmt.Errorf("save transaction from %s: %w", msg.UID, err)
	}
	tx.Status = model.StatusLedgerSaved
	if err := a.ledger.UpdateStatus(ctx, tx.RecordID, model.StatusLedgerSaved); err != nil {
		return "", fmt.Errorf("mark %s ledger_saved: %w", tx.RecordID, err)
	}

	a.log.WithFields(logrus.Fields{
		"uid":          msg.UID,
		"record_id":    tx.RecordID,
		"kind":         tx.Kind,
		"order":        tx.OrderNumber,
		"completeness": tx.Completeness,
		"confidence":   tx.Confidence,
	}).Info("transaction extracted and saved")

	outcome := a.dispatch(ctx, tx, verdict)
	a.markProcessed(ctx, msg.UID)
	return outcome, nil
}

// dispatch routes a saved transaction: review queue, deferral, or the
// posting workflow. An incomplete transaction whose confidence clears
// the threshold is posted anyway.
func (a *App) dispatch(ctx context.Context, tx *model.Transaction, verdict engine.Verdict) Outcome {
	if verdict.RequiresReview() && verdict.Confidence <= a.threshold {
		if err := a.reviews.Enqueue(ctx, tx); err != nil {
			a.log.WithError(err).Error("could not queue transaction for review")
			a.stats.Failed++
			return OutcomeFailed
		}
		a.stats.Review++
		a.notifyReview(ctx, tx)
		return OutcomeReview
	}

	if !a.backend.Available() {
		// Keep the record at ledger_saved so a later run can post it.
		a.stats.Deferred++
		a.notifyDeferred(ctx, tx)
		return OutcomeDeferred
	}

	return a.post(ctx, tx)
}

// post runs the workflow and records the terminal status.
func (a *App) post(ctx context.Context, tx *model.Transaction) Outcome {
	result := a.workflow.Post(ctx, tx)

	if result.Success {
		if err := a.ledger.UpdateStatus(ctx, tx.RecordID, model.StatusPosted); err != nil {
			a.log.WithError(err).Error("could not mark record posted")
		}
		a.stats.Posted++
		a.notifyPosted(ctx, tx, result)
		return OutcomePosted
	}

	if err := a.ledger.UpdateStatus(ctx, tx.RecordID, model.StatusPostingFailed); err != nil {
		a.log.WithError(err).Error("could not mark record posting_failed")
	}
	a.stats.Failed++
	a.notifyFailed(ctx, tx, result)
	return OutcomeFailed
}

// ResolveReview re-gates a queued transaction after manual edits and,
// when it has become complete, sends it through the posting workflow.
func (a *App) ResolveReview(ctx context.Context, recordID string) (Outcome, error) {
	tx, verdict, err := a.reviews.Resolve(ctx, recordID)
	if err != nil {
		return "", err
	}
	if verdict.RequiresReview() {
		a.log.WithFields(logrus.Fields{
			"record_id": recordID,
			"missing":   verdict.MissingFields,
		}).Info("transaction still incomplete after review")
		return OutcomeReview, nil
	}
	if !a.backend.Available() {
		a.stats.Deferred++
		a.notifyDeferred(ctx, tx)
		return OutcomeDeferred, nil
	}
	return a.post(ctx, tx), nil
}

// repostDeferred retries records left at ledger_saved by an earlier
// backend outage. Each record already cleared the completeness gate
// when it was first dispatched, so it goes straight to posting.
func (a *App) repostDeferred(ctx context.Context) {
	if !a.backend.Available() {
		return
	}
	deferred, err := a.ledger.ListRecordsByStatus(ctx, model.StatusLedgerSaved)
	if err != nil {
		a.log.WithError(err).Error("could not list deferred records")
		return
	}
	for _, tx := range deferred {
		a.log.WithFields(logrus.Fields{
			"record_id": tx.RecordID,
			"order":     tx.OrderNumber,
		}).Info("retrying deferred transaction")
		a.post(ctx, tx)
	}
}

// RunOnce retries deferred records, then fetches pending messages and
// processes them in order. A canceled context stops between messages,
// never inside one.
func (a *App) RunOnce(ctx context.Context) error {
	a.repostDeferred(ctx)

	messages, err := a.source.FetchUnread(ctx)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}
	if a.batchSize > 0 && len(messages) > a.batchSize {
		messages = messages[:a.batchSize]
	}
	a.log.WithField("count", len(messages)).Info("processing message batch")

	before := a.stats
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		if _, err := a.ProcessMessage(ctx, msg); err != nil {
			a.log.WithError(err).WithField("uid", msg.UID).Error("message processing failed")
			a.stats.Failed++
		}
	}

	if len(messages) > 1 {
		a.notifyBatch(ctx, a.stats, before)
	}
	return nil
}

// Run polls at the given interval until the context is canceled. The
// in-flight cycle always finishes; cancellation takes effect at the
// cycle boundary.
func (a *App) Run(ctx context.Context, interval time.Duration) error {
	a.log.WithField("interval", interval).Info("agent started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := a.RunOnce(context.WithoutCancel(ctx)); err != nil {
			a.log.WithError(err).Error("processing cycle failed")
		}
		select {
		case <-ctx.Done():
			a.log.Info("shutting down at cycle boundary")
			a.notifyShutdown(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
		}
	}
}

func (a *App) markProcessed(ctx context.Context, uid string) {
	if err := a.source.MarkProcessed(ctx, uid); err != nil {
		a.log.WithError(err).WithField("uid", uid).Warn("could not mark message processed")
	}
}
