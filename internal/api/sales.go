package api

import (
	"errors"
	"net/http"

	"github.com/Thspli/backFarma/internal/inventory"
	"github.com/Thspli/backFarma/internal/sales"
)

type createSaleRequest struct {
	PatientName  *string                  `json:"patient_name"`
	PatientID    *string                  `json:"patient_id"`
	PatientPhone *string                  `json:"patient_phone"`
	Items        []sales.SaleItemInput    `json:"items"`
	Prescription *sales.PrescriptionInput `json:"prescription"`
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.sales.CreateSale(r.Context(), sales.CreateSaleInput{
		OperatorID:   userIDFromContext(r),
		PatientName:  req.PatientName,
		PatientID:    req.PatientID,
		PatientPhone: req.PatientPhone,
		Items:        req.Items,
		Prescription: req.Prescription,
	})
	if err != nil {
		var validation *sales.ValidationError
		var insufficient *inventory.InsufficientStockError
		switch {
		case errors.As(err, &validation):
			respondError(w, http.StatusBadRequest, validation.Msg)
		case errors.Is(err, sales.ErrMedicationNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.As(err, &insufficient):
			respondJSON(w, http.StatusConflict, map[string]any{
				"error":         insufficient.Error(),
				"medication_id": insufficient.MedicationID,
				"shortfall":     insufficient.Shortfall(),
			})
		case errors.Is(err, sales.ErrConflict):
			respondError(w, http.StatusServiceUnavailable, "stock contention, retry the sale")
		default:
			logAndRespond(w, "unable to finalize sale", err)
		}
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"sale": view})
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	views, err := h.sales.ListSales(r.Context())
	if err != nil {
		logAndRespond(w, "unable to list sales", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sales": views})
}
