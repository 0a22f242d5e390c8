package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"inventory-agent/internal/model"
)

func (s *ledgerStore) SavePendingReview(ctx context.Context, pr *model.PendingReview) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pending_reviews (record_id, order_number, kind, missing_fields)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (record_id) DO UPDATE SET missing_fields = EXCLUDED.missing_fields`,
		pr.RecordID, pr.OrderNumber, pr.Kind, pr.MissingFields,
	)
	if err != nil {
		return fmt.Errorf("save pending review %s: %w", pr.RecordID, err)
	}
	return nil
}

func (s *ledgerStore) GetPendingReview(ctx context.Context, recordID string) (*model.PendingReview, error) {
	pr := &model.PendingReview{}
	err := s.pool.QueryRow(ctx, `
		SELECT record_id, order_number, kind, missing_fields, created_at
		FROM pending_reviews WHERE record_id = $1`, recordID,
	).Scan(&pr.RecordID, &pr.OrderNumber, &pr.Kind, &pr.MissingFields, &pr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pending review %s: %w", recordID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pending review %s: %w", recordID, err)
	}
	return pr, nil
}

func (s *ledgerStore) ListPendingReviews(ctx context.Context) ([]model.PendingReview, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT record_id, order_number, kind, missing_fields, created_at
		FROM pending_reviews ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.PendingReview
	for rows.Next() {
		var pr model.PendingReview
		if err := rows.Scan(&pr.RecordID, &pr.OrderNumber, &pr.Kind, &pr.MissingFields, &pr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending review: %w", err)
		}
		reviews = append(reviews, pr)
	}
	return reviews, rows.Err()
}

func (s *ledgerStore) DeletePendingReview(ctx context.Context, recordID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM pending_reviews WHERE record_id = $1`, recordID)
	if err != nil {
		return fmt.Errorf("delete pending review %s: %w", recordID, err)
	}
	return nil
}
