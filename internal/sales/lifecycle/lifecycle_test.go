package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lensworks/lensworks/internal/shared"
)

func TestTransitionForwardOnly(t *testing.T) {
	legal := [][2]Status{
		{StatusDraft, StatusConfirmed},
		{StatusDraft, StatusInProduction},
		{StatusConfirmed, StatusInProduction},
		{StatusInProduction, StatusReadyForDispatch},
		{StatusReadyForDispatch, StatusDelivered},
	}
	for _, pair := range legal {
		assert.NoError(t, Transition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	illegal := [][2]Status{
		{StatusInProduction, StatusDraft},
		{StatusDraft, StatusReadyForDispatch},
		{StatusDraft, StatusDelivered},
		{StatusConfirmed, StatusReadyForDispatch},
		{StatusReadyForDispatch, StatusInProduction},
		{StatusDelivered, StatusDraft},
		{StatusDraft, StatusDraft},
	}
	for _, pair := range illegal {
		err := Transition(pair[0], pair[1])
		assert.ErrorIs(t, err, shared.ErrConflict, "%s -> %s", pair[0], pair[1])
	}
}

func TestTransitionRejectsUnknownStates(t *testing.T) {
	assert.ErrorIs(t, Transition("SHIPPED", StatusDelivered), shared.ErrConflict)
	assert.ErrorIs(t, Transition(StatusDraft, "ARCHIVED"), shared.ErrConflict)
}

func TestDeliveredIsTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.IsTerminal())
	assert.Empty(t, Next(StatusDelivered))
	assert.False(t, StatusDelivered.CanEdit())
	assert.True(t, StatusReadyForDispatch.CanEdit())
}

func TestNextReturnsCopy(t *testing.T) {
	actions := Next(StatusDraft)
	assert.Len(t, actions, 2)
	actions[0].Label = "changed"
	assert.Equal(t, "Confirm", Next(StatusDraft)[0].Label)
}

func TestOnlyDraftCanBeDeleted(t *testing.T) {
	assert.True(t, StatusDraft.CanDelete())
	assert.False(t, StatusConfirmed.CanDelete())
	assert.False(t, StatusDelivered.CanDelete())
}
