package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Thspli/backFarma/domain"
)

// ErrLotConflict is returned when a conditional decrement finds the lot
// changed underneath it. The enclosing sale should be rolled back and may
// be retried as a whole.
var ErrLotConflict = errors.New("lot changed concurrently")

// Store persists lots and serves the stock read model.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// AddLot records an intake of new stock for a medication.
func (s *Store) AddLot(ctx context.Context, medicationID, label, expiration string, quantity int64) (*domain.Lot, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO lots (id, medication_id, label, expiration, quantity) VALUES (?, ?, ?, ?, ?)`,
		id, medicationID, label, expiration, quantity); err != nil {
		return nil, fmt.Errorf("insert lot: %w", err)
	}
	var lot domain.Lot
	if err := s.db.GetContext(ctx, &lot,
		`SELECT id, medication_id, label, expiration, quantity, created_at FROM lots WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("reload lot: %w", err)
	}
	return &lot, nil
}

// LotsForAllocation loads the allocation snapshot for a medication inside
// the caller's transaction: lots with stock left, soonest expiration
// first, oldest intake first on ties.
func (s *Store) LotsForAllocation(ctx context.Context, tx *sqlx.Tx, medicationID string) ([]domain.Lot, error) {
	var lots []domain.Lot
	err := tx.SelectContext(ctx, &lots,
		`SELECT id, medication_id, label, expiration, quantity, created_at
         FROM lots WHERE medication_id = ? AND quantity > 0
         ORDER BY expiration ASC, created_at ASC, id ASC`, medicationID)
	if err != nil {
		return nil, fmt.Errorf("load lots: %w", err)
	}
	return lots, nil
}

// Decrement takes amount units out of a lot, guarded so the quantity can
// never go negative. Zero rows affected means the lot no longer holds the
// quantity the allocation plan saw.
func (s *Store) Decrement(ctx context.Context, tx *sqlx.Tx, lotID string, amount int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE lots SET quantity = quantity - ? WHERE id = ? AND quantity >= ?`,
		amount, lotID, amount)
	if err != nil {
		return fmt.Errorf("decrement lot %s: %w", lotID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement lot %s: %w", lotID, err)
	}
	if affected == 0 {
		return fmt.Errorf("lot %s: %w", lotID, ErrLotConflict)
	}
	return nil
}

// ListAvailable returns the lots of a medication that still hold stock,
// in allocation order.
func (s *Store) ListAvailable(ctx context.Context, medicationID string) ([]domain.Lot, error) {
	var lots []domain.Lot
	err := s.db.SelectContext(ctx, &lots,
		`SELECT id, medication_id, label, expiration, quantity, created_at
         FROM lots WHERE medication_id = ? AND quantity > 0
         ORDER BY expiration ASC, created_at ASC, id ASC`, medicationID)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return lots, nil
}

// StockSummary is the aggregate stock view of one medication.
type StockSummary struct {
	MedicationID  string `db:"medication_id" json:"medication_id"`
	TotalQuantity int64  `db:"total_quantity" json:"total_quantity"`
	LotCount      int64  `db:"lot_count" json:"lot_count"`
}

// AggregateAll returns the stock summary of every medication, including
// the ones with nothing on the shelf.
func (s *Store) AggregateAll(ctx context.Context) (map[string]StockSummary, error) {
	var rows []StockSummary
	err := s.db.SelectContext(ctx, &rows,
		`SELECT m.id AS medication_id,
                COALESCE(SUM(l.quantity), 0) AS total_quantity,
                COUNT(l.id) AS lot_count
         FROM medications m
         LEFT JOIN lots l ON l.medication_id = m.id AND l.quantity > 0
         GROUP BY m.id`)
	if err != nil {
		return nil, fmt.Errorf("aggregate stock: %w", err)
	}
	summaries := make(map[string]StockSummary, len(rows))
	for _, row := range rows {
		summaries[row.MedicationID] = row
	}
	return summaries, nil
}

// AggregateFor returns the stock summary of a single medication.
func (s *Store) AggregateFor(ctx context.Context, medicationID string) (StockSummary, error) {
	summary := StockSummary{MedicationID: medicationID}
	err := s.db.GetContext(ctx, &summary,
		`SELECT ? AS medication_id,
                COALESCE(SUM(quantity), 0) AS total_quantity,
                COUNT(id) AS lot_count
         FROM lots WHERE medication_id = ? AND quantity > 0`, medicationID, medicationID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return summary, fmt.Errorf("aggregate stock: %w", err)
	}
	return summary, nil
}
