package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inventory-agent/internal/model"
)

type ledgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore constructs a Store backed by PostgreSQL.
func NewLedgerStore(pool *pgxpool.Pool) Store {
	return &ledgerStore{pool: pool}
}

// CreateRecord stores a new transaction snapshot. The generated record
// id is written back onto tx before the insert so the stored payload
// carries it too.
func (s *ledgerStore) CreateRecord(ctx context.Context, tx *model.Transaction) (string, error) {
	if tx.Status == "" {
		tx.Status = model.StatusParsed
	}
	tx.RecordID = uuid.NewString()

	payload, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("marshal transaction: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO transactions (id, kind, order_number, email_uid, status, completeness, confidence, missing_fields, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tx.RecordID, tx.Kind, tx.OrderNumber, tx.EmailUID, tx.Status,
		tx.Completeness, tx.Confidence, tx.MissingFields, payload,
	)
	if err != nil {
		return "", fmt.Errorf("create transaction record: %w", err)
	}
	return tx.RecordID, nil
}

func (s *ledgerStore) GetRecord(ctx context.Context, recordID string) (*model.Transaction, error) {
	var payload []byte
	var status model.ProcessingStatus
	err := s.pool.QueryRow(ctx,
		`SELECT payload, status FROM transactions WHERE id = $1`, recordID,
	).Scan(&payload, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transaction record %s: %w", recordID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction record %s: %w", recordID, err)
	}

	tx := &model.Transaction{}
	if err := json.Unmarshal(payload, tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction record %s: %w", recordID, err)
	}
	// Status column is authoritative over the snapshot.
	tx.RecordID = recordID
	tx.Status = status
	return tx, nil
}

func (s *ledgerStore) UpdateRecord(ctx context.Context, tx *model.Transaction) error {
	if tx.RecordID == "" {
		return fmt.Errorf("update transaction record: missing record id")
	}
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions
		SET kind = $2, order_number = $3, status = $4, completeness = $5,
		    confidence = $6, missing_fields = $7, payload = $8, updated_at = now()
		WHERE id = $1`,
		tx.RecordID, tx.Kind, tx.OrderNumber, tx.Status,
		tx.Completeness, tx.Confidence, tx.MissingFields, payload,
	)
	if err != nil {
		return fmt.Errorf("update transaction record %s: %w", tx.RecordID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction record %s: %w", tx.RecordID, ErrNotFound)
	}
	return nil
}

func (s *ledgerStore) UpdateStatus(ctx context.Context, recordID string, status model.ProcessingStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions
		SET status = $2, payload = jsonb_set(payload, '{status}', to_jsonb($2::text)), updated_at = now()
		WHERE id = $1`,
		recordID, status,
	)
	if err != nil {
		return fmt.Errorf("update status of record %s: %w", recordID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction record %s: %w", recordID, ErrNotFound)
	}
	return nil
}

func (s *ledgerStore) ListRecordsByStatus(ctx context.Context, status model.ProcessingStatus) ([]*model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, payload FROM transactions WHERE status = $1 ORDER BY created_at`, status,
	)
	if err != nil {
		return nil, fmt.Errorf("list records with status %s: %w", status, err)
	}
	defer rows.Close()

	var records []*model.Transaction
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan record with status %s: %w", status, err)
		}
		tx := &model.Transaction{}
		if err := json.Unmarshal(payload, tx); err != nil {
			return nil, fmt.Errorf("unmarshal transaction record %s: %w", id, err)
		}
		tx.RecordID = id
		tx.Status = status
		records = append(records, tx)
	}
	return records, rows.Err()
}

func (s *ledgerStore) FindByEmailUID(ctx context.Context, uid string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM transactions WHERE email_uid = $1 ORDER BY created_at DESC LIMIT 1`, uid,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find record by email uid %q: %w", uid, err)
	}
	return id, nil
}
