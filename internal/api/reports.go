package api

import (
	"net/http"
)

// Report handlers. Read-only aggregations, open to any authenticated user.

func (h *Handler) topMedications(w http.ResponseWriter, r *http.Request) {
	type row struct {
		MedicationID   string `db:"medication_id" json:"medication_id"`
		MedicationName string `db:"medication_name" json:"medication_name"`
		TotalQuantity  int64  `db:"total_quantity" json:"total_quantity"`
		SaleCount      int64  `db:"sale_count" json:"sale_count"`
	}
	var rows []row
	err := h.db.Select(&rows, `
        SELECT si.medication_id, m.name AS medication_name,
               SUM(si.quantity) AS total_quantity,
               COUNT(DISTINCT si.sale_id) AS sale_count
        FROM sale_items si JOIN medications m ON m.id = si.medication_id
        GROUP BY si.medication_id, m.name
        ORDER BY total_quantity DESC LIMIT 20`)
	if err != nil {
		logAndRespond(w, "unable to build report", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"medications": rows})
}

func (h *Handler) topPrescribers(w http.ResponseWriter, r *http.Request) {
	type row struct {
		DoctorID          string  `db:"doctor_id" json:"doctor_id"`
		DoctorName        string  `db:"doctor_name" json:"doctor_name"`
		DoctorCRM         string  `db:"doctor_crm" json:"doctor_crm"`
		HealthUnitName    *string `db:"health_unit_name" json:"health_unit_name,omitempty"`
		PrescriptionCount int64   `db:"prescription_count" json:"prescription_count"`
	}
	var rows []row
	err := h.db.Select(&rows, `
        SELECT d.id AS doctor_id, d.name AS doctor_name, d.crm AS doctor_crm,
               hu.name AS health_unit_name, COUNT(p.id) AS prescription_count
        FROM prescriptions p
        JOIN doctors d ON d.id = p.doctor_id
        LEFT JOIN health_units hu ON hu.id = d.health_unit_id
        WHERE p.doctor_id IS NOT NULL
        GROUP BY d.id, d.name, d.crm, hu.name
        ORDER BY prescription_count DESC LIMIT 20`)
	if err != nil {
		logAndRespond(w, "unable to build report", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"doctors": rows})
}

func (h *Handler) salesByOperator(w http.ResponseWriter, r *http.Request) {
	type row struct {
		OperatorID   string `db:"operator_id" json:"operator_id"`
		OperatorName string `db:"operator_name" json:"operator_name"`
		OperatorRole string `db:"operator_role" json:"operator_role"`
		SaleCount    int64  `db:"sale_count" json:"sale_count"`
	}
	var rows []row
	err := h.db.Select(&rows, `
        SELECT u.id AS operator_id, u.name AS operator_name, u.role AS operator_role,
               COUNT(s.id) AS sale_count
        FROM sales s JOIN users u ON u.id = s.operator_id
        WHERE s.operator_id IS NOT NULL
        GROUP BY u.id, u.name, u.role
        ORDER BY sale_count DESC LIMIT 20`)
	if err != nil {
		logAndRespond(w, "unable to build report", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"operators": rows})
}

func (h *Handler) topHealthUnits(w http.ResponseWriter, r *http.Request) {
	type row struct {
		HealthUnitID      string `db:"health_unit_id" json:"health_unit_id"`
		HealthUnitName    string `db:"health_unit_name" json:"health_unit_name"`
		HealthUnitAddress string `db:"health_unit_address" json:"health_unit_address"`
		PrescriptionCount int64  `db:"prescription_count" json:"prescription_count"`
	}
	var rows []row
	err := h.db.Select(&rows, `
        SELECT hu.id AS health_unit_id, hu.name AS health_unit_name,
               hu.address AS health_unit_address, COUNT(p.id) AS prescription_count
        FROM prescriptions p JOIN health_units hu ON hu.id = p.health_unit_id
        WHERE p.health_unit_id IS NOT NULL
        GROUP BY hu.id, hu.name, hu.address
        ORDER BY prescription_count DESC LIMIT 20`)
	if err != nil {
		logAndRespond(w, "unable to build report", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"health_units": rows})
}

func (h *Handler) stockStatistics(w http.ResponseWriter, r *http.Request) {
	var totals struct {
		MedicationCount int64 `db:"medication_count"`
		TotalQuantity   int64 `db:"total_quantity"`
	}
	err := h.db.Get(&totals, `
        SELECT COUNT(*) AS medication_count,
               COALESCE((SELECT SUM(quantity) FROM lots WHERE quantity > 0), 0) AS total_quantity
        FROM medications`)
	if err != nil {
		logAndRespond(w, "unable to build statistics", err)
		return
	}

	type lowStockRow struct {
		MedicationID   string `db:"medication_id" json:"medication_id"`
		MedicationName string `db:"medication_name" json:"medication_name"`
		Category       string `db:"category" json:"category"`
		Unit           string `db:"unit" json:"unit"`
		Stock          int64  `db:"stock" json:"stock"`
	}
	lowStock := []lowStockRow{}
	err = h.db.Select(&lowStock, `
        SELECT m.id AS medication_id, m.name AS medication_name, m.category, m.unit,
               COALESCE(SUM(l.quantity), 0) AS stock
        FROM medications m
        LEFT JOIN lots l ON l.medication_id = m.id AND l.quantity > 0
        GROUP BY m.id, m.name, m.category, m.unit
        HAVING stock < 10
        ORDER BY stock ASC`)
	if err != nil {
		logAndRespond(w, "unable to build statistics", err)
		return
	}

	type expiringRow struct {
		LotID          string `db:"lot_id" json:"lot_id"`
		MedicationName string `db:"medication_name" json:"medication_name"`
		Label          string `db:"label" json:"label"`
		Expiration     string `db:"expiration" json:"expiration"`
		Quantity       int64  `db:"quantity" json:"quantity"`
		DaysToExpire   int64  `db:"days_to_expire" json:"days_to_expire"`
	}
	expiring := []expiringRow{}
	err = h.db.Select(&expiring, `
        SELECT l.id AS lot_id, m.name AS medication_name, l.label, l.expiration, l.quantity,
               CAST(julianday(l.expiration) - julianday(date('now')) AS INTEGER) AS days_to_expire
        FROM lots l JOIN medications m ON m.id = l.medication_id
        WHERE l.quantity > 0 AND l.expiration BETWEEN date('now') AND date('now', '+90 day')
        ORDER BY l.expiration ASC LIMIT 20`)
	if err != nil {
		logAndRespond(w, "unable to build statistics", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"medication_count":      totals.MedicationCount,
		"total_quantity":        totals.TotalQuantity,
		"low_stock_count":       len(lowStock),
		"low_stock_medications": lowStock,
		"lots_expiring_90_days": expiring,
	})
}
