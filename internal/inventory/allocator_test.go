package inventory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thspli/backFarma/domain"
)

func lot(id, expiration, createdAt string, quantity int64) domain.Lot {
	return domain.Lot{ID: id, MedicationID: "med-1", Label: "lot " + id, Expiration: expiration, Quantity: quantity, CreatedAt: createdAt}
}

func TestAllocateWorkedExample(t *testing.T) {
	lots := []domain.Lot{
		lot("L2", "2024-02-01", "2023-11-02 10:00:00", 10),
		lot("L1", "2024-01-01", "2023-11-01 10:00:00", 5),
	}

	plan, err := Allocate("med-1", lots, 8)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "L1", plan[0].Lot.ID)
	assert.Equal(t, int64(5), plan[0].Amount)
	assert.Equal(t, "L2", plan[1].Lot.ID)
	assert.Equal(t, int64(3), plan[1].Amount)
}

func TestAllocatePlanSumsToRequested(t *testing.T) {
	lots := []domain.Lot{
		lot("a", "2025-01-01", "2024-01-01 08:00:00", 3),
		lot("b", "2025-02-01", "2024-01-02 08:00:00", 4),
		lot("c", "2025-03-01", "2024-01-03 08:00:00", 9),
	}

	for _, quantity := range []int64{1, 3, 7, 16} {
		plan, err := Allocate("med-1", lots, quantity)
		require.NoError(t, err, "quantity %d", quantity)
		var total int64
		for _, draw := range plan {
			require.Greater(t, draw.Amount, int64(0))
			require.LessOrEqual(t, draw.Amount, draw.Lot.Quantity)
			total += draw.Amount
		}
		assert.Equal(t, quantity, total)
	}
}

func TestAllocateInsufficientStock(t *testing.T) {
	lots := []domain.Lot{
		lot("a", "2025-01-01", "2024-01-01 08:00:00", 3),
		lot("b", "2025-02-01", "2024-01-02 08:00:00", 4),
	}

	plan, err := Allocate("med-1", lots, 10)
	require.Nil(t, plan)

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "med-1", insufficient.MedicationID)
	assert.Equal(t, int64(10), insufficient.Requested)
	assert.Equal(t, int64(7), insufficient.Available)
	assert.Equal(t, int64(3), insufficient.Shortfall())
}

func TestAllocateNoStockAtAll(t *testing.T) {
	plan, err := Allocate("med-1", nil, 1)
	require.Nil(t, plan)

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(1), insufficient.Shortfall())
}

func TestAllocateSkipsEmptyLots(t *testing.T) {
	lots := []domain.Lot{
		lot("empty", "2024-01-01", "2023-01-01 08:00:00", 0),
		lot("full", "2025-01-01", "2023-06-01 08:00:00", 5),
	}

	plan, err := Allocate("med-1", lots, 2)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "full", plan[0].Lot.ID)
}

func TestAllocateInvalidQuantity(t *testing.T) {
	lots := []domain.Lot{lot("a", "2025-01-01", "2024-01-01 08:00:00", 5)}

	for _, quantity := range []int64{0, -1} {
		_, err := Allocate("med-1", lots, quantity)
		assert.True(t, errors.Is(err, ErrInvalidQuantity), "quantity %d", quantity)
	}
}

func TestAllocateExactFill(t *testing.T) {
	lots := []domain.Lot{
		lot("a", "2025-01-01", "2024-01-01 08:00:00", 3),
		lot("b", "2025-02-01", "2024-01-02 08:00:00", 4),
	}

	plan, err := Allocate("med-1", lots, 7)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, int64(3), plan[0].Amount)
	assert.Equal(t, int64(4), plan[1].Amount)
}

func TestAllocateDeterministicTieBreak(t *testing.T) {
	// Same expiration everywhere: creation order wins, then id.
	lots := []domain.Lot{
		lot("z", "2025-01-01", "2024-01-03 08:00:00", 2),
		lot("b", "2025-01-01", "2024-01-01 08:00:00", 2),
		lot("a", "2025-01-01", "2024-01-01 08:00:00", 2),
	}

	first, err := Allocate("med-1", lots, 5)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Allocate("med-1", lots, 5)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	require.Equal(t, "a", first[0].Lot.ID)
	require.Equal(t, "b", first[1].Lot.ID)
	require.Equal(t, "z", first[2].Lot.ID)
}

func TestAllocateDoesNotMutateInput(t *testing.T) {
	lots := []domain.Lot{
		lot("b", "2025-02-01", "2024-01-02 08:00:00", 4),
		lot("a", "2025-01-01", "2024-01-01 08:00:00", 3),
	}

	_, err := Allocate("med-1", lots, 5)
	require.NoError(t, err)

	assert.Equal(t, "b", lots[0].ID)
	assert.Equal(t, int64(4), lots[0].Quantity)
	assert.Equal(t, "a", lots[1].ID)
	assert.Equal(t, int64(3), lots[1].Quantity)
}
