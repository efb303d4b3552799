package sales

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thspli/backFarma/domain"
	"github.com/Thspli/backFarma/internal/database"
	"github.com/Thspli/backFarma/internal/inventory"
	"github.com/Thspli/backFarma/internal/migrations"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db := database.Connect(":memory:")
	t.Cleanup(func() { db.Close() })
	migrations.Run(db)
	return db
}

func newCoordinator(t *testing.T) (*Coordinator, *sqlx.DB, *inventory.Store) {
	t.Helper()
	db := newTestDB(t)
	store := inventory.NewStore(db)
	return NewCoordinator(db, store), db, store
}

func seedMedication(t *testing.T, db *sqlx.DB, name string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO medications (id, name, category, unit, manufacturer) VALUES (?, ?, 'analgesic', 'tablet', 'acme')`, id, name)
	require.NoError(t, err)
	return id
}

func seedOperator(t *testing.T, db *sqlx.DB) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO users (id, name, email, password_hash, role) VALUES (?, 'Ana', ?, 'x', ?)`,
		id, uuid.NewString()+"@pharmacy.local", domain.RoleClerk)
	require.NoError(t, err)
	return id
}

func addLot(t *testing.T, store *inventory.Store, medID, label, expiration string, quantity int64) *domain.Lot {
	t.Helper()
	created, err := store.AddLot(context.Background(), medID, label, expiration, quantity)
	require.NoError(t, err)
	return created
}

func lotQuantity(t *testing.T, db *sqlx.DB, lotID string) int64 {
	t.Helper()
	var quantity int64
	require.NoError(t, db.Get(&quantity, `SELECT quantity FROM lots WHERE id = ?`, lotID))
	return quantity
}

func totalStock(t *testing.T, db *sqlx.DB, medID string) int64 {
	t.Helper()
	var total int64
	require.NoError(t, db.Get(&total, `SELECT COALESCE(SUM(quantity), 0) FROM lots WHERE medication_id = ?`, medID))
	return total
}

func countRows(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()
	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM `+table))
	return count
}

func TestCreateSaleDrawsFEFOAcrossLots(t *testing.T) {
	coordinator, db, store := newCoordinator(t)
	medID := seedMedication(t, db, "dipyrone")
	operatorID := seedOperator(t, db)
	l1 := addLot(t, store, medID, "L1", "2024-01-01", 5)
	l2 := addLot(t, store, medID, "L2", "2024-02-01", 10)

	view, err := coordinator.CreateSale(context.Background(), CreateSaleInput{
		OperatorID: operatorID,
		Items:      []SaleItemInput{{MedicationID: medID, Quantity: 8}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), lotQuantity(t, db, l1.ID))
	assert.Equal(t, int64(7), lotQuantity(t, db, l2.ID))

	require.Len(t, view.Items, 1)
	assert.Equal(t, "dipyrone", view.Items[0].MedicationName)
	assert.Equal(t, "tablet", view.Items[0].Unit)
	assert.Equal(t, int64(8), view.Items[0].Quantity)
	require.NotNil(t, view.OperatorName)
	assert.Equal(t, "Ana", *view.OperatorName)
	assert.NotEmpty(t, view.CreatedAt)

	assert.Equal(t, 1, countRows(t, db, "sales"))
	assert.Equal(t, 1, countRows(t, db, "sale_items"))
}

func TestCreateSaleValidation(t *testing.T) {
	coordinator, db, store := newCoordinator(t)
	medID := seedMedication(t, db, "dipyrone")
	addLot(t, store, medID, "L1", "2026-01-01", 5)

	cases := []CreateSaleInput{
		{},
		{Items: []SaleItemInput{{MedicationID: medID, Quantity: 0}}},
		{Items: []SaleItemInput{{MedicationID: medID, Quantity: -3}}},
		{Items: []SaleItemInput{{MedicationID: "", Quantity: 1}}},
	}
	for i, input := range cases {
		_, err := coordinator.CreateSale(context.Background(), input)
		var validation *ValidationError
		assert.ErrorAs(t, err, &validation, "case %d", i)
	}

	assert.Equal(t, 0, countRows(t, db, "sales"))
	assert.Equal(t, int64(5), totalStock(t, db, medID))
}

func TestCreateSaleUnknownMedication(t *testing.T) {
	coordinator, db, _ := newCoordinator(t)

	_, err := coordinator.CreateSale(context.Background(), CreateSaleInput{
		Items: []SaleItemInput{{MedicationID: uuid.NewString(), Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrMedicationNotFound)
	assert.Equal(t, 0, countRows(t, db, "sales"))
}

func TestCreateSaleInsufficientStockLeavesLotsUnchanged(t *testing.T) {
	coordinator, db, store := newCoordinator(t)
	medID := seedMedication(t, db, "dipyrone")
	l1 := addLot(t, store, medID, "L1", "2025-01-01", 3)
	l2 := addLot(t, store, medID, "L2", "2025-06-01", 4)

	_, err := coordinator.CreateSale(context.Background(), CreateSaleInput{
		Items: []SaleItemInput{{MedicationID: medID, Quantity: 10}},
	})

	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, medID, insufficient.MedicationID)
	assert.Equal(t, int64(3), insufficient.Shortfall())

	assert.Equal(t, int64(3), lotQuantity(t, db, l1.ID))
	assert.Equal(t, int64(4), lotQuantity(t, db, l2.ID))
	assert.Equal(t, 0, countRows(t, db, "sales"))
	assert.Equal(t, 0, countRows(t, db, "sale_items"))
}

func TestCreateSaleMultiItemRollback(t *testing.T) {
	coordinator, db, store := newCoordinator(t)
	m1 := seedMedication(t, db, "dipyrone")
	m2 := seedMedication(t, db, "omeprazole")
	lotA := addLot(t, store, m1, "A", "2026-01-01", 5)
	// m2 has no stock at all.

	_, err := coordinator.CreateSale(context.Background(), CreateSaleInput{
		Items: []SaleItemInput{
			{MedicationID: m1, Quantity: 3},
			{MedicationID: m2, Quantity: 1},
		},
	})

	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, m2, insufficient.MedicationID)
	assert.Equal(t, int64(1), insufficient.Shortfall())

	// The deduction already applied for the first item was undone.
	assert.Equal(t, int64(5), lotQuantity(t, db, lotA.ID))
	assert.Equal(t, 0, countRows(t, db, "sales"))
	assert.Equal(t, 0, countRows(t, db, "sale_items"))
}

func TestCreateSaleWithPrescription(t *testing.T) {
	coordinator, db, store := newCoordinator(t)
	medID := seedMedication(t, db, "amoxicillin")
	addLot(t, store, medID, "L1", "2026-01-01", 20)
	patient := "Joana Silva"

	view, err := coordinator.CreateSale(context.Background(), CreateSaleInput{
		PatientName: &patient,
		Items:       []SaleItemInput{{MedicationID: medID, Quantity: 2}},
		Prescription: &PrescriptionInput{
			Observations: "after meals",
			Medications:  []string{"amoxicillin 500mg 8/8h", "dipyrone if fever"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, view.PrescriptionID)

	var p domain.Prescription
	require.NoError(t, db.Get(&p, `SELECT id, sale_id, doctor_id, health_unit_id, patient_name, observations, file_url, file_name, status, created_at, updated_at FROM prescriptions WHERE id = ?`, *view.PrescriptionID))
	require.NotNil(t, p.SaleID)
	assert.Equal(t, view.ID, *p.SaleID)
	assert.Equal(t, domain.PrescriptionDelivered, p.Status)
	assert.Equal(t, "Joana Silva", p.PatientName)

	var descriptions []string
	require.NoError(t, db.Select(&descriptions, `SELECT description FROM prescription_items WHERE prescription_id = ?`, p.ID))
	assert.Equal(t, []string{"amoxicillin 500mg 8/8h", "dipyrone if fever"}, descriptions)
}

func TestCreateSalePrescriptionFailureRollsBackEverything(t *testing.T) {
	coordinator, db, store := newCoordinator(t)
	medID := seedMedication(t, db, "amoxicillin")
	lotID := addLot(t, store, medID, "L1", "2026-01-01", 20).ID
	missingDoctor := uuid.NewString()

	_, err := coordinator.CreateSale(context.Background(), CreateSaleInput{
		Items: []SaleItemInput{{MedicationID: medID, Quantity: 2}},
		Prescription: &PrescriptionInput{
			DoctorID: &missingDoctor, // violates the doctors foreign key
		},
	})
	require.Error(t, err)

	assert.Equal(t, int64(20), lotQuantity(t, db, lotID))
	assert.Equal(t, 0, countRows(t, db, "sales"))
	assert.Equal(t, 0, countRows(t, db, "prescriptions"))
}

func TestCreateSaleNoOversellUnderConcurrency(t *testing.T) {
	coordinator, db, store := newCoordinator(t)
	medID := seedMedication(t, db, "dipyrone")
	addLot(t, store, medID, "L1", "2026-01-01", 6)
	addLot(t, store, medID, "L2", "2026-06-01", 4)
	const initial = int64(10)
	const workers = 8
	const perSale = int64(2)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coordinator.CreateSale(context.Background(), CreateSaleInput{
				Items: []SaleItemInput{{MedicationID: medID, Quantity: perSale}},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded int64
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *inventory.InsufficientStockError
		if !errors.As(err, &insufficient) {
			assert.ErrorIs(t, err, ErrConflict, "unexpected failure: %v", err)
		}
	}

	remaining := totalStock(t, db, medID)
	assert.GreaterOrEqual(t, remaining, int64(0))
	assert.Equal(t, initial-perSale*succeeded, remaining, "deductions must match successful sales exactly")
	assert.LessOrEqual(t, perSale*succeeded, initial, "never oversell past the initial pool")
	assert.Equal(t, int(succeeded), countRows(t, db, "sales"))

	// No lot may ever dip below zero.
	var negative int
	require.NoError(t, db.Get(&negative, `SELECT COUNT(*) FROM lots WHERE quantity < 0`))
	assert.Equal(t, 0, negative)
}

func TestListSales(t *testing.T) {
	coordinator, db, store := newCoordinator(t)
	medID := seedMedication(t, db, "dipyrone")
	operatorID := seedOperator(t, db)
	addLot(t, store, medID, "L1", "2026-01-01", 10)

	for i := 0; i < 2; i++ {
		_, err := coordinator.CreateSale(context.Background(), CreateSaleInput{
			OperatorID: operatorID,
			Items:      []SaleItemInput{{MedicationID: medID, Quantity: 3}},
		})
		require.NoError(t, err)
	}

	views, err := coordinator.ListSales(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, view := range views {
		require.NotNil(t, view.OperatorName)
		assert.Equal(t, "Ana", *view.OperatorName)
		require.Len(t, view.Items, 1)
		assert.Equal(t, "dipyrone", view.Items[0].MedicationName)
		assert.Equal(t, int64(3), view.Items[0].Quantity)
	}
}

func TestListSalesEmpty(t *testing.T) {
	coordinator, _, _ := newCoordinator(t)
	views, err := coordinator.ListSales(context.Background())
	require.NoError(t, err)
	assert.Empty(t, views)
}
