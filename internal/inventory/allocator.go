package inventory

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Thspli/backFarma/domain"
)

// ErrInvalidQuantity is returned when an allocation is requested for a
// non-positive quantity.
var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// Draw is one step of an allocation plan: take Amount units from Lot.
type Draw struct {
	Lot    domain.Lot
	Amount int64
}

// InsufficientStockError reports that the eligible lots of a medication
// cannot cover the requested quantity. No lot is touched when it occurs.
type InsufficientStockError struct {
	MedicationID string
	Requested    int64
	Available    int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for medication %s: requested %d, available %d",
		e.MedicationID, e.Requested, e.Available)
}

// Shortfall is how many units were missing.
func (e *InsufficientStockError) Shortfall() int64 {
	return e.Requested - e.Available
}

// Allocate computes a first-expire-first-out deduction plan over a
// snapshot of a medication's lots. Lots are drawn in ascending expiration
// order, ties broken by creation time and then id, so the plan is
// reproducible for identical input state. The returned draws sum exactly
// to quantity; if the snapshot cannot cover it the whole allocation fails
// with InsufficientStockError and no plan is produced.
//
// Allocate never mutates anything. Applying the plan, and making the
// snapshot consistent with that application, is the caller's job.
func Allocate(medicationID string, lots []domain.Lot, quantity int64) ([]Draw, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	eligible := make([]domain.Lot, 0, len(lots))
	var available int64
	for _, lot := range lots {
		if lot.Quantity > 0 {
			eligible = append(eligible, lot)
			available += lot.Quantity
		}
	}
	if available < quantity {
		return nil, &InsufficientStockError{MedicationID: medicationID, Requested: quantity, Available: available}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Expiration != eligible[j].Expiration {
			return eligible[i].Expiration < eligible[j].Expiration
		}
		if eligible[i].CreatedAt != eligible[j].CreatedAt {
			return eligible[i].CreatedAt < eligible[j].CreatedAt
		}
		return eligible[i].ID < eligible[j].ID
	})

	var plan []Draw
	remaining := quantity
	for _, lot := range eligible {
		if remaining == 0 {
			break
		}
		take := lot.Quantity
		if take > remaining {
			take = remaining
		}
		plan = append(plan, Draw{Lot: lot, Amount: take})
		remaining -= take
	}
	return plan, nil
}
