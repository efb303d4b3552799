package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Thspli/backFarma/domain"
)

// medicationView is a catalog entry enriched with the stock read model.
type medicationView struct {
	domain.Medication
	TotalStock int64        `json:"total_stock"`
	LotCount   int64        `json:"lot_count"`
	Lots       []domain.Lot `json:"lots"`
}

func (h *Handler) listMedications(w http.ResponseWriter, r *http.Request) {
	var meds []domain.Medication
	if err := h.db.Select(&meds, `SELECT id, name, category, unit, manufacturer, composition, available, created_at FROM medications ORDER BY name ASC`); err != nil {
		logAndRespond(w, "unable to list medications", err)
		return
	}
	if len(meds) == 0 {
		respondJSON(w, http.StatusOK, map[string]any{"medications": []medicationView{}})
		return
	}

	summaries, err := h.lots.AggregateAll(r.Context())
	if err != nil {
		logAndRespond(w, "unable to aggregate stock", err)
		return
	}

	var lots []domain.Lot
	if err := h.db.Select(&lots, `SELECT id, medication_id, label, expiration, quantity, created_at FROM lots WHERE quantity > 0 ORDER BY expiration ASC, created_at ASC, id ASC`); err != nil {
		logAndRespond(w, "unable to list lots", err)
		return
	}
	lotsByMed := make(map[string][]domain.Lot)
	for _, lot := range lots {
		lotsByMed[lot.MedicationID] = append(lotsByMed[lot.MedicationID], lot)
	}

	views := make([]medicationView, len(meds))
	for i, med := range meds {
		summary := summaries[med.ID]
		medLots := lotsByMed[med.ID]
		if medLots == nil {
			medLots = []domain.Lot{}
		}
		views[i] = medicationView{Medication: med, TotalStock: summary.TotalQuantity, LotCount: summary.LotCount, Lots: medLots}
	}
	respondJSON(w, http.StatusOK, map[string]any{"medications": views})
}

func (h *Handler) getMedication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var med domain.Medication
	err := h.db.Get(&med, `SELECT id, name, category, unit, manufacturer, composition, available, created_at FROM medications WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "medication not found")
		return
	}
	if err != nil {
		logAndRespond(w, "unable to load medication", err)
		return
	}
	lots, err := h.lots.ListAvailable(r.Context(), id)
	if err != nil {
		logAndRespond(w, "unable to list lots", err)
		return
	}
	summary, err := h.lots.AggregateFor(r.Context(), id)
	if err != nil {
		logAndRespond(w, "unable to aggregate stock", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"medication": medicationView{
		Medication: med, TotalStock: summary.TotalQuantity, LotCount: summary.LotCount, Lots: lots,
	}})
}

type medicationRequest struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Unit         string  `json:"unit"`
	Manufacturer string  `json:"manufacturer"`
	Composition  *string `json:"composition"`
	Available    *bool   `json:"available"`
}

func (h *Handler) createMedication(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePharmacist, domain.RoleManager, domain.RoleAdmin) {
		return
	}
	var req medicationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Category == "" || req.Unit == "" || req.Manufacturer == "" {
		respondError(w, http.StatusBadRequest, "name, category, unit and manufacturer are required")
		return
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	id := uuid.NewString()
	if _, err := h.db.Exec(`INSERT INTO medications (id, name, category, unit, manufacturer, composition, available) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, req.Name, req.Category, req.Unit, req.Manufacturer, req.Composition, available); err != nil {
		respondError(w, http.StatusConflict, "medication already registered")
		return
	}
	var med domain.Medication
	if err := h.db.Get(&med, `SELECT id, name, category, unit, manufacturer, composition, available, created_at FROM medications WHERE id = ?`, id); err != nil {
		logAndRespond(w, "unable to load medication", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"medication": medicationView{Medication: med, Lots: []domain.Lot{}}})
}

func (h *Handler) updateMedication(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePharmacist, domain.RoleManager, domain.RoleAdmin) {
		return
	}
	id := chi.URLParam(r, "id")
	var req medicationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var fields []string
	var values []any
	if req.Name != "" {
		fields, values = append(fields, "name = ?"), append(values, req.Name)
	}
	if req.Category != "" {
		fields, values = append(fields, "category = ?"), append(values, req.Category)
	}
	if req.Unit != "" {
		fields, values = append(fields, "unit = ?"), append(values, req.Unit)
	}
	if req.Manufacturer != "" {
		fields, values = append(fields, "manufacturer = ?"), append(values, req.Manufacturer)
	}
	if req.Composition != nil {
		fields, values = append(fields, "composition = ?"), append(values, nullIfEmpty(*req.Composition))
	}
	if req.Available != nil {
		fields, values = append(fields, "available = ?"), append(values, *req.Available)
	}
	if len(fields) == 0 {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	values = append(values, id)

	res, err := h.db.Exec(`UPDATE medications SET `+strings.Join(fields, ", ")+` WHERE id = ?`, values...)
	if err != nil {
		logAndRespond(w, "unable to update medication", err)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "medication not found")
		return
	}
	h.getMedication(w, r)
}

func (h *Handler) deleteMedication(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePharmacist, domain.RoleManager, domain.RoleAdmin) {
		return
	}
	id := chi.URLParam(r, "id")
	res, err := h.db.Exec(`DELETE FROM medications WHERE id = ?`, id)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			respondError(w, http.StatusConflict, "medication has linked sales")
			return
		}
		logAndRespond(w, "unable to delete medication", err)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "medication not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type lotRequest struct {
	Label      string `json:"label"`
	Expiration string `json:"expiration"`
	Quantity   int64  `json:"quantity"`
}

func (h *Handler) addLot(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePharmacist, domain.RoleManager, domain.RoleAdmin) {
		return
	}
	id := chi.URLParam(r, "id")
	var req lotRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Label == "" || req.Expiration == "" {
		respondError(w, http.StatusBadRequest, "label and expiration are required")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "quantity must be an integer greater than zero")
		return
	}

	var exists bool
	if err := h.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM medications WHERE id = ?)`, id); err != nil || !exists {
		respondError(w, http.StatusNotFound, "medication not found")
		return
	}
	lot, err := h.lots.AddLot(r.Context(), id, req.Label, req.Expiration, req.Quantity)
	if err != nil {
		logAndRespond(w, "unable to add lot", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"lot": lot})
}
