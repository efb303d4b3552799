package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Thspli/backFarma/domain"
)

// Doctor handlers

func (h *Handler) listDoctors(w http.ResponseWriter, r *http.Request) {
	var doctors []domain.Doctor
	if err := h.db.Select(&doctors, `SELECT id, name, crm, health_unit_id, created_at FROM doctors ORDER BY name ASC`); err != nil {
		logAndRespond(w, "unable to list doctors", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"doctors": doctors})
}

type doctorRequest struct {
	Name         string  `json:"name"`
	CRM          string  `json:"crm"`
	HealthUnitID *string `json:"health_unit_id"`
}

func (h *Handler) createDoctor(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePharmacist, domain.RoleManager, domain.RoleAdmin) {
		return
	}
	var req doctorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.CRM == "" {
		respondError(w, http.StatusBadRequest, "name and crm are required")
		return
	}
	var unitID *string
	if req.HealthUnitID != nil {
		unitID = nullIfEmpty(*req.HealthUnitID)
	}
	id := uuid.NewString()
	if _, err := h.db.Exec(`INSERT INTO doctors (id, name, crm, health_unit_id) VALUES (?, ?, ?, ?)`, id, req.Name, req.CRM, unitID); err != nil {
		respondError(w, http.StatusBadRequest, "crm already registered")
		return
	}
	var doctor domain.Doctor
	if err := h.db.Get(&doctor, `SELECT id, name, crm, health_unit_id, created_at FROM doctors WHERE id = ?`, id); err != nil {
		logAndRespond(w, "unable to load doctor", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"doctor": doctor})
}

func (h *Handler) updateDoctor(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RolePharmacist, domain.RoleManager, domain.RoleAdmin) {
		return
	}
	id := chi.URLParam(r, "id")
	var req doctorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var fields []string
	var values []any
	if req.Name != "" {
		fields, values = append(fields, "name = ?"), append(values, req.Name)
	}
	if req.CRM != "" {
		fields, values = append(fields, "crm = ?"), append(values, req.CRM)
	}
	if req.HealthUnitID != nil {
		fields, values = append(fields, "health_unit_id = ?"), append(values, nullIfEmpty(*req.HealthUnitID))
	}
	if len(fields) == 0 {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	values = append(values, id)

	res, err := h.db.Exec(`UPDATE doctors SET `+strings.Join(fields, ", ")+` WHERE id = ?`, values...)
	if err != nil {
		logAndRespond(w, "unable to update doctor", err)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "doctor not found")
		return
	}
	var doctor domain.Doctor
	if err := h.db.Get(&doctor, `SELECT id, name, crm, health_unit_id, created_at FROM doctors WHERE id = ?`, id); err != nil {
		logAndRespond(w, "unable to load doctor", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"doctor": doctor})
}

func (h *Handler) deleteDoctor(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleManager, domain.RoleAdmin) {
		return
	}
	res, err := h.db.Exec(`DELETE FROM doctors WHERE id = ?`, chi.URLParam(r, "id"))
	if err != nil {
		logAndRespond(w, "unable to delete doctor", err)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "doctor not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Health unit handlers

func (h *Handler) listHealthUnits(w http.ResponseWriter, r *http.Request) {
	var units []domain.HealthUnit
	if err := h.db.Select(&units, `SELECT id, name, address, created_at FROM health_units ORDER BY name ASC`); err != nil {
		logAndRespond(w, "unable to list health units", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"health_units": units})
}

type healthUnitRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (h *Handler) createHealthUnit(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleManager, domain.RoleAdmin) {
		return
	}
	var req healthUnitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Address == "" {
		respondError(w, http.StatusBadRequest, "name and address are required")
		return
	}
	id := uuid.NewString()
	if _, err := h.db.Exec(`INSERT INTO health_units (id, name, address) VALUES (?, ?, ?)`, id, req.Name, req.Address); err != nil {
		logAndRespond(w, "unable to create health unit", err)
		return
	}
	var unit domain.HealthUnit
	if err := h.db.Get(&unit, `SELECT id, name, address, created_at FROM health_units WHERE id = ?`, id); err != nil {
		logAndRespond(w, "unable to load health unit", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"health_unit": unit})
}

func (h *Handler) updateHealthUnit(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleManager, domain.RoleAdmin) {
		return
	}
	id := chi.URLParam(r, "id")
	var req healthUnitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var fields []string
	var values []any
	if req.Name != "" {
		fields, values = append(fields, "name = ?"), append(values, req.Name)
	}
	if req.Address != "" {
		fields, values = append(fields, "address = ?"), append(values, req.Address)
	}
	if len(fields) == 0 {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	values = append(values, id)

	res, err := h.db.Exec(`UPDATE health_units SET `+strings.Join(fields, ", ")+` WHERE id = ?`, values...)
	if err != nil {
		logAndRespond(w, "unable to update health unit", err)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "health unit not found")
		return
	}
	var unit domain.HealthUnit
	if err := h.db.Get(&unit, `SELECT id, name, address, created_at FROM health_units WHERE id = ?`, id); err != nil {
		logAndRespond(w, "unable to load health unit", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"health_unit": unit})
}

func (h *Handler) deleteHealthUnit(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	res, err := h.db.Exec(`DELETE FROM health_units WHERE id = ?`, chi.URLParam(r, "id"))
	if err != nil {
		logAndRespond(w, "unable to delete health unit", err)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		respondError(w, http.StatusNotFound, "health unit not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
