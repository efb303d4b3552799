package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Thspli/backFarma/domain"
)

type prescriptionView struct {
	domain.Prescription
	Medications []domain.PrescriptionItem `json:"medications"`
}

func (h *Handler) loadPrescription(id string) (*prescriptionView, error) {
	var p domain.Prescription
	if err := h.db.Get(&p, `SELECT id, sale_id, doctor_id, health_unit_id, patient_name, observations, file_url, file_name, status, created_at, updated_at FROM prescriptions WHERE id = ?`, id); err != nil {
		return nil, err
	}
	items := []domain.PrescriptionItem{}
	if err := h.db.Select(&items, `SELECT id, prescription_id, description FROM prescription_items WHERE prescription_id = ?`, id); err != nil {
		return nil, err
	}
	return &prescriptionView{Prescription: p, Medications: items}, nil
}

func (h *Handler) listPrescriptions(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if err := h.db.Select(&ids, `SELECT id FROM prescriptions ORDER BY created_at DESC, id DESC`); err != nil {
		logAndRespond(w, "unable to list prescriptions", err)
		return
	}
	views := make([]prescriptionView, 0, len(ids))
	for _, id := range ids {
		view, err := h.loadPrescription(id)
		if err != nil {
			logAndRespond(w, "unable to load prescription", err)
			return
		}
		views = append(views, *view)
	}
	respondJSON(w, http.StatusOK, map[string]any{"prescriptions": views})
}

type prescriptionRequest struct {
	SaleID       *string   `json:"sale_id"`
	DoctorID     *string   `json:"doctor_id"`
	HealthUnitID *string   `json:"health_unit_id"`
	PatientName  *string   `json:"patient_name"`
	Observations *string   `json:"observations"`
	FileURL      *string   `json:"file_url"`
	FileName     *string   `json:"file_name"`
	Status       *string   `json:"status"`
	Medications  *[]string `json:"medications"`
}

func (h *Handler) createPrescription(w http.ResponseWriter, r *http.Request) {
	var req prescriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	patientName := ""
	if req.PatientName != nil {
		patientName = *req.PatientName
	}
	observations := ""
	if req.Observations != nil {
		observations = *req.Observations
	}
	status := domain.PrescriptionPending
	if req.Status != nil && *req.Status != "" {
		status = *req.Status
	}

	tx, err := h.db.Beginx()
	if err != nil {
		logAndRespond(w, "unable to start prescription", err)
		return
	}
	defer tx.Rollback()

	id := uuid.NewString()
	if _, err := tx.Exec(`INSERT INTO prescriptions (id, sale_id, doctor_id, health_unit_id, patient_name, observations, file_url, file_name, status)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, req.SaleID, req.DoctorID, req.HealthUnitID, patientName, observations, req.FileURL, req.FileName, status); err != nil {
		logAndRespond(w, "unable to create prescription", err)
		return
	}
	if req.Medications != nil {
		if err := insertPrescriptionItems(tx, id, *req.Medications); err != nil {
			logAndRespond(w, "unable to save prescription items", err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		logAndRespond(w, "unable to finalize prescription", err)
		return
	}

	view, err := h.loadPrescription(id)
	if err != nil {
		logAndRespond(w, "unable to load prescription", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"prescription": view})
}

func (h *Handler) updatePrescription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req prescriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var fields []string
	var values []any
	if req.DoctorID != nil {
		fields, values = append(fields, "doctor_id = ?"), append(values, nullIfEmpty(*req.DoctorID))
	}
	if req.HealthUnitID != nil {
		fields, values = append(fields, "health_unit_id = ?"), append(values, nullIfEmpty(*req.HealthUnitID))
	}
	if req.PatientName != nil {
		fields, values = append(fields, "patient_name = ?"), append(values, *req.PatientName)
	}
	if req.Observations != nil {
		fields, values = append(fields, "observations = ?"), append(values, *req.Observations)
	}
	if req.Status != nil {
		fields, values = append(fields, "status = ?"), append(values, *req.Status)
	}
	if req.FileURL != nil {
		fields, values = append(fields, "file_url = ?"), append(values, nullIfEmpty(*req.FileURL))
	}
	if req.FileName != nil {
		fields, values = append(fields, "file_name = ?"), append(values, nullIfEmpty(*req.FileName))
	}

	tx, err := h.db.Beginx()
	if err != nil {
		logAndRespond(w, "unable to start prescription update", err)
		return
	}
	defer tx.Rollback()

	if len(fields) > 0 {
		fields = append(fields, "updated_at = CURRENT_TIMESTAMP")
		values = append(values, id)
		res, err := tx.Exec(`UPDATE prescriptions SET `+strings.Join(fields, ", ")+` WHERE id = ?`, values...)
		if err != nil {
			logAndRespond(w, "unable to update prescription", err)
			return
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			respondError(w, http.StatusNotFound, "prescription not found")
			return
		}
	}

	// A medications array replaces the whole description list.
	if req.Medications != nil {
		if _, err := tx.Exec(`DELETE FROM prescription_items WHERE prescription_id = ?`, id); err != nil {
			logAndRespond(w, "unable to clear prescription items", err)
			return
		}
		if err := insertPrescriptionItems(tx, id, *req.Medications); err != nil {
			logAndRespond(w, "unable to save prescription items", err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		logAndRespond(w, "unable to finalize prescription update", err)
		return
	}

	view, err := h.loadPrescription(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "prescription not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"prescription": view})
}

func insertPrescriptionItems(tx *sqlx.Tx, prescriptionID string, descriptions []string) error {
	for _, description := range descriptions {
		if _, err := tx.Exec(`INSERT INTO prescription_items (id, prescription_id, description) VALUES (?, ?, ?)`,
			uuid.NewString(), prescriptionID, description); err != nil {
			return err
		}
	}
	return nil
}
