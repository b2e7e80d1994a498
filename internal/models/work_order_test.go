package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to WorkOrderStatus
		allowed  bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusWaitingParts, false},
		{StatusInProgress, StatusWaitingParts, true},
		{StatusInProgress, StatusWaitingExternal, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusPending, false},
		{StatusWaitingParts, StatusInProgress, true},
		{StatusWaitingParts, StatusCancelled, true},
		{StatusWaitingParts, StatusCompleted, false},
		{StatusWaitingExternal, StatusInProgress, true},
		{StatusWaitingExternal, StatusCancelled, true},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusInProgress, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
	assert.False(t, StatusWaitingParts.IsTerminal())
	assert.False(t, StatusWaitingExternal.IsTerminal())
}

func TestValidStatusRejectsUnknown(t *testing.T) {
	assert.False(t, ValidStatus(WorkOrderStatus("ARCHIVED")))
	assert.True(t, ValidStatus(StatusWaitingExternal))
}

func TestValidPriority(t *testing.T) {
	assert.True(t, ValidPriority(PriorityUrgent))
	assert.False(t, ValidPriority(WorkOrderPriority("CRITICAL")))
}
