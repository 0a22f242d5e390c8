package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"inventory-agent/internal/model"
	"inventory-agent/internal/store"
)

// ReviewService parks incomplete transactions for manual completion
// and re-gates them on resolution. Entries are keyed by the
// transaction's ledger record id and persist until resolved.
type ReviewService struct {
	ledger store.Store
	log    *logrus.Logger
}

func NewReviewService(ledger store.Store, log *logrus.Logger) *ReviewService {
	return &ReviewService{ledger: ledger, log: log}
}

// Enqueue stores the transaction as pending review. The transaction
// must already be saved to the transaction log.
func (s *ReviewService) Enqueue(ctx context.Context, tx *model.Transaction) error {
	if tx.RecordID == "" {
		return fmt.Errorf("enqueue review: transaction has no record id")
	}
	tx.Status = model.StatusPendingReview
	if err := s.ledger.UpdateRecord(ctx, tx); err != nil {
		return fmt.Errorf("enqueue review: %w", err)
	}
	err := s.ledger.SavePendingReview(ctx, &model.PendingReview{
		RecordID:      tx.RecordID,
		OrderNumber:   tx.OrderNumber,
		Kind:          tx.Kind,
		MissingFields: tx.MissingFields,
	})
	if err != nil {
		return fmt.Errorf("enqueue review: %w", err)
	}
	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"record_id": tx.RecordID,
			"order":     tx.OrderNumber,
			"missing":   tx.MissingFields,
		}).Info("transaction queued for review")
	}
	return nil
}

// Resolve re-reads the (by now edited) stored transaction and runs the
// completeness gate again. When the transaction has become complete,
// the queue entry is deleted and the transaction is returned ready for
// posting. When it is still incomplete the stored missing-field list
// is refreshed and the entry stays queued.
func (s *ReviewService) Resolve(ctx context.Context, recordID string) (*model.Transaction, Verdict, error) {
	if _, err := s.ledger.GetPendingReview(ctx, recordID); err != nil {
		return nil, Verdict{}, err
	}
	tx, err := s.ledger.GetRecord(ctx, recordID)
	if err != nil {
		return nil, Verdict{}, err
	}

	verdict := Evaluate(tx)
	if verdict.RequiresReview() {
		if err := s.ledger.UpdateRecord(ctx, tx); err != nil {
			return nil, verdict, err
		}
		err = s.ledger.SavePendingReview(ctx, &model.PendingReview{
			RecordID:      tx.RecordID,
			OrderNumber:   tx.OrderNumber,
			Kind:          tx.Kind,
			MissingFields: tx.MissingFields,
		})
		if err != nil {
			return nil, verdict, err
		}
		return tx, verdict, nil
	}

	if err := s.ledger.DeletePendingReview(ctx, recordID); err != nil {
		return nil, verdict, err
	}
	tx.Status = model.StatusLedgerSaved
	if err := s.ledger.UpdateRecord(ctx, tx); err != nil {
		return nil, verdict, err
	}
	if s.log != nil {
		s.log.WithField("record_id", recordID).Info("review resolved, transaction complete")
	}
	return tx, verdict, nil
}

// List returns the queued reviews in enqueue order.
func (s *ReviewService) List(ctx context.Context) ([]model.PendingReview, error) {
	return s.ledger.ListPendingReviews(ctx)
}
