package sales

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type saleRow struct {
	ID           string  `db:"id"`
	OperatorID   *string `db:"operator_id"`
	OperatorName *string `db:"operator_name"`
	PatientName  *string `db:"patient_name"`
	PatientID    *string `db:"patient_id"`
	PatientPhone *string `db:"patient_phone"`
	CreatedAt    string  `db:"created_at"`
}

type saleItemRow struct {
	SaleID         string `db:"sale_id"`
	ID             string `db:"id"`
	MedicationID   string `db:"medication_id"`
	MedicationName string `db:"medication_name"`
	Unit           string `db:"unit"`
	Quantity       int64  `db:"quantity"`
}

// ListSales returns every sale, newest first, with resolved operator and
// medication names. Read-only; not part of the transactional core.
func (c *Coordinator) ListSales(ctx context.Context) ([]SaleView, error) {
	var rows []saleRow
	err := c.db.SelectContext(ctx, &rows,
		`SELECT s.id, s.operator_id, u.name AS operator_name,
                s.patient_name, s.patient_id, s.patient_phone, s.created_at
         FROM sales s LEFT JOIN users u ON u.id = s.operator_id
         ORDER BY s.created_at DESC, s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	if len(rows) == 0 {
		return []SaleView{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	itemsQuery, itemsArgs, err := sqlx.In(
		`SELECT si.sale_id, si.id, si.medication_id, si.quantity,
                m.name AS medication_name, m.unit
         FROM sale_items si JOIN medications m ON m.id = si.medication_id
         WHERE si.sale_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("prepare sale items query: %w", err)
	}
	itemsQuery = c.db.Rebind(itemsQuery)

	var itemRows []saleItemRow
	if err := c.db.SelectContext(ctx, &itemRows, itemsQuery, itemsArgs...); err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	itemsBySale := make(map[string][]SaleViewItem)
	for _, item := range itemRows {
		itemsBySale[item.SaleID] = append(itemsBySale[item.SaleID], SaleViewItem{
			ID:             item.ID,
			MedicationID:   item.MedicationID,
			MedicationName: item.MedicationName,
			Unit:           item.Unit,
			Quantity:       item.Quantity,
		})
	}

	views := make([]SaleView, len(rows))
	for i, row := range rows {
		views[i] = SaleView{
			ID:           row.ID,
			OperatorID:   row.OperatorID,
			OperatorName: row.OperatorName,
			PatientName:  row.PatientName,
			PatientID:    row.PatientID,
			PatientPhone: row.PatientPhone,
			CreatedAt:    row.CreatedAt,
			Items:        itemsBySale[row.ID],
		}
	}
	return views, nil
}
