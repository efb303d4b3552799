package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thspli/backFarma/internal/database"
	"github.com/Thspli/backFarma/internal/migrations"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db := database.Connect(":memory:")
	t.Cleanup(func() { db.Close() })
	migrations.Run(db)
	return db
}

func seedMedication(t *testing.T, db *sqlx.DB, name string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO medications (id, name, category, unit, manufacturer) VALUES (?, ?, 'analgesic', 'tablet', 'acme')`, id, name)
	require.NoError(t, err)
	return id
}

func TestAddLotAndListAvailable(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	medID := seedMedication(t, db, "dipyrone")

	later, err := store.AddLot(ctx, medID, "B-2", "2026-06-01", 10)
	require.NoError(t, err)
	sooner, err := store.AddLot(ctx, medID, "B-1", "2026-01-01", 5)
	require.NoError(t, err)

	lots, err := store.ListAvailable(ctx, medID)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, sooner.ID, lots[0].ID, "soonest expiration first")
	assert.Equal(t, later.ID, lots[1].ID)
	assert.Equal(t, int64(5), lots[0].Quantity)
}

func TestDecrementGuardsQuantity(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	medID := seedMedication(t, db, "dipyrone")

	created, err := store.AddLot(ctx, medID, "B-1", "2026-01-01", 5)
	require.NoError(t, err)

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, store.Decrement(ctx, tx, created.ID, 3))
	require.NoError(t, tx.Commit())

	var remaining int64
	require.NoError(t, db.Get(&remaining, `SELECT quantity FROM lots WHERE id = ?`, created.ID))
	assert.Equal(t, int64(2), remaining)

	// More than the lot holds: guarded update touches nothing.
	tx, err = db.Beginx()
	require.NoError(t, err)
	err = store.Decrement(ctx, tx, created.ID, 3)
	assert.ErrorIs(t, err, ErrLotConflict)
	require.NoError(t, tx.Rollback())

	require.NoError(t, db.Get(&remaining, `SELECT quantity FROM lots WHERE id = ?`, created.ID))
	assert.Equal(t, int64(2), remaining)
}

func TestEmptiedLotIsKeptButExcluded(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	medID := seedMedication(t, db, "dipyrone")

	created, err := store.AddLot(ctx, medID, "B-1", "2026-01-01", 4)
	require.NoError(t, err)

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, store.Decrement(ctx, tx, created.ID, 4))
	require.NoError(t, tx.Commit())

	lots, err := store.ListAvailable(ctx, medID)
	require.NoError(t, err)
	assert.Empty(t, lots)

	// The row survives for the audit trail.
	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM lots WHERE id = ?`, created.ID))
	assert.Equal(t, 1, count)
}

func TestLotsForAllocationOrdering(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	medID := seedMedication(t, db, "dipyrone")

	_, err := store.AddLot(ctx, medID, "late", "2027-01-01", 3)
	require.NoError(t, err)
	_, err = store.AddLot(ctx, medID, "early", "2026-01-01", 3)
	require.NoError(t, err)
	emptied, err := store.AddLot(ctx, medID, "drained", "2025-01-01", 2)
	require.NoError(t, err)

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, store.Decrement(ctx, tx, emptied.ID, 2))

	lots, err := store.LotsForAllocation(ctx, tx, medID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.Len(t, lots, 2)
	assert.Equal(t, "early", lots[0].Label)
	assert.Equal(t, "late", lots[1].Label)
}

func TestAggregates(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	stocked := seedMedication(t, db, "dipyrone")
	empty := seedMedication(t, db, "omeprazole")

	_, err := store.AddLot(ctx, stocked, "B-1", "2026-01-01", 5)
	require.NoError(t, err)
	_, err = store.AddLot(ctx, stocked, "B-2", "2026-06-01", 7)
	require.NoError(t, err)

	summary, err := store.AggregateFor(ctx, stocked)
	require.NoError(t, err)
	assert.Equal(t, int64(12), summary.TotalQuantity)
	assert.Equal(t, int64(2), summary.LotCount)

	all, err := store.AggregateAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(12), all[stocked].TotalQuantity)
	assert.Equal(t, int64(0), all[empty].TotalQuantity)
	assert.Equal(t, int64(0), all[empty].LotCount)
}
