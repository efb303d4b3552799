package sales

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Thspli/backFarma/domain"
	"github.com/Thspli/backFarma/internal/inventory"
)

// defaultTimeout bounds how long a sale may wait on stock contention
// before failing with a retryable error.
const defaultTimeout = 3 * time.Second

// Coordinator runs one sale as a single atomic unit: the sale row, its
// items, every lot deduction, and the optional prescription commit
// together or not at all.
type Coordinator struct {
	db      *sqlx.DB
	lots    *inventory.Store
	timeout time.Duration
}

func NewCoordinator(db *sqlx.DB, lots *inventory.Store) *Coordinator {
	return &Coordinator{db: db, lots: lots, timeout: defaultTimeout}
}

type SaleItemInput struct {
	MedicationID string `json:"medication_id"`
	Quantity     int64  `json:"quantity"`
}

type PrescriptionInput struct {
	DoctorID     *string  `json:"doctor_id,omitempty"`
	HealthUnitID *string  `json:"health_unit_id,omitempty"`
	Observations string   `json:"observations"`
	FileURL      *string  `json:"file_url,omitempty"`
	FileName     *string  `json:"file_name,omitempty"`
	Medications  []string `json:"medications"`
}

type CreateSaleInput struct {
	OperatorID   string
	PatientName  *string
	PatientID    *string
	PatientPhone *string
	Items        []SaleItemInput
	Prescription *PrescriptionInput
}

type SaleViewItem struct {
	ID             string `json:"id"`
	MedicationID   string `json:"medication_id"`
	MedicationName string `json:"medication_name"`
	Unit           string `json:"unit"`
	Quantity       int64  `json:"quantity"`
}

type SaleView struct {
	ID             string         `json:"id"`
	OperatorID     *string        `json:"operator_id,omitempty"`
	OperatorName   *string        `json:"operator_name,omitempty"`
	PatientName    *string        `json:"patient_name,omitempty"`
	PatientID      *string        `json:"patient_id,omitempty"`
	PatientPhone   *string        `json:"patient_phone,omitempty"`
	PrescriptionID *string        `json:"prescription_id,omitempty"`
	CreatedAt      string         `json:"created_at"`
	Items          []SaleViewItem `json:"items"`
}

// CreateSale validates the request, then opens one transaction in which
// every line item is allocated against live lot state and applied. Any
// failure after the transaction opens rolls everything back, including
// deductions already made for earlier items of the same request.
func (c *Coordinator) CreateSale(ctx context.Context, input CreateSaleInput) (*SaleView, error) {
	if len(input.Items) == 0 {
		return nil, validationf("at least one sale item is required")
	}
	for _, item := range input.Items {
		if item.MedicationID == "" {
			return nil, validationf("every sale item needs a medication_id")
		}
		if item.Quantity <= 0 {
			return nil, validationf("every sale item needs a positive integer quantity")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, asContention(fmt.Errorf("begin sale: %w", err))
	}
	defer tx.Rollback()

	view := &SaleView{ID: uuid.NewString(), PatientName: input.PatientName, PatientID: input.PatientID, PatientPhone: input.PatientPhone}
	if input.OperatorID != "" {
		view.OperatorID = &input.OperatorID
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sales (id, operator_id, patient_name, patient_id, patient_phone) VALUES (?, ?, ?, ?, ?)`,
		view.ID, view.OperatorID, input.PatientName, input.PatientID, input.PatientPhone); err != nil {
		return nil, asContention(fmt.Errorf("insert sale: %w", err))
	}

	for _, item := range input.Items {
		var med struct {
			Name string `db:"name"`
			Unit string `db:"unit"`
		}
		err := tx.GetContext(ctx, &med, `SELECT name, unit FROM medications WHERE id = ?`, item.MedicationID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrMedicationNotFound, item.MedicationID)
		}
		if err != nil {
			return nil, asContention(fmt.Errorf("resolve medication: %w", err))
		}

		lots, err := c.lots.LotsForAllocation(ctx, tx, item.MedicationID)
		if err != nil {
			return nil, asContention(err)
		}
		plan, err := inventory.Allocate(item.MedicationID, lots, item.Quantity)
		if err != nil {
			return nil, err
		}
		for _, draw := range plan {
			if err := c.lots.Decrement(ctx, tx, draw.Lot.ID, draw.Amount); err != nil {
				if errors.Is(err, inventory.ErrLotConflict) {
					return nil, fmt.Errorf("%w (%s)", ErrConflict, draw.Lot.ID)
				}
				return nil, asContention(err)
			}
		}

		itemID := uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sale_items (id, sale_id, medication_id, quantity) VALUES (?, ?, ?, ?)`,
			itemID, view.ID, item.MedicationID, item.Quantity); err != nil {
			return nil, asContention(fmt.Errorf("insert sale item: %w", err))
		}
		view.Items = append(view.Items, SaleViewItem{
			ID:             itemID,
			MedicationID:   item.MedicationID,
			MedicationName: med.Name,
			Unit:           med.Unit,
			Quantity:       item.Quantity,
		})
	}

	if input.Prescription != nil {
		prescriptionID, err := c.attachPrescription(ctx, tx, view.ID, input)
		if err != nil {
			return nil, err
		}
		view.PrescriptionID = &prescriptionID
	}

	if view.OperatorID != nil {
		var operatorName string
		switch err := tx.GetContext(ctx, &operatorName, `SELECT name FROM users WHERE id = ?`, *view.OperatorID); {
		case errors.Is(err, sql.ErrNoRows):
			// Operator record gone; the sale still stands.
		case err != nil:
			return nil, asContention(fmt.Errorf("resolve operator: %w", err))
		default:
			view.OperatorName = &operatorName
		}
	}
	if err := tx.GetContext(ctx, &view.CreatedAt, `SELECT created_at FROM sales WHERE id = ?`, view.ID); err != nil {
		return nil, asContention(fmt.Errorf("reload sale: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, asContention(fmt.Errorf("commit sale: %w", err))
	}
	return view, nil
}

// attachPrescription persists the prescription supplied with a sale in
// the same transaction, with status delivered.
func (c *Coordinator) attachPrescription(ctx context.Context, tx *sqlx.Tx, saleID string, input CreateSaleInput) (string, error) {
	p := input.Prescription
	patientName := ""
	if input.PatientName != nil {
		patientName = *input.PatientName
	}
	prescriptionID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO prescriptions (id, sale_id, doctor_id, health_unit_id, patient_name, observations, file_url, file_name, status)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		prescriptionID, saleID, p.DoctorID, p.HealthUnitID, patientName, p.Observations, p.FileURL, p.FileName, domain.PrescriptionDelivered); err != nil {
		return "", asContention(fmt.Errorf("insert prescription: %w", err))
	}
	for _, description := range p.Medications {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prescription_items (id, prescription_id, description) VALUES (?, ?, ?)`,
			uuid.NewString(), prescriptionID, description); err != nil {
			return "", asContention(fmt.Errorf("insert prescription item: %w", err))
		}
	}
	return prescriptionID, nil
}

// asContention folds lock waits and deadline expiries into ErrConflict so
// callers know the sale is safe to retry; anything else passes through as
// a persistence fault.
func asContention(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "SQLITE_BUSY") ||
		strings.Contains(err.Error(), "database is locked") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
