package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestStatus_CanTransitionTo valida la máquina de estados común.
func TestStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusCreated, StatusPending, true},
		{StatusCreated, StatusScheduled, true},
		{StatusCreated, StatusSuccess, false},
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusSuccess, false},
		{StatusScheduled, StatusPending, true},
		{StatusProcessing, StatusSuccess, true},
		{StatusProcessing, StatusRetrying, true},
		{StatusRetrying, StatusPending, true},
		{StatusRetrying, StatusProcessing, true},
		{StatusRetrying, StatusCancelled, true},
		{StatusSuccess, StatusPending, false},
		{StatusFailed, StatusRetrying, false},
		{StatusCancelled, StatusPending, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.ok, c.from.CanTransitionTo(c.to),
			"transición %s → %s", c.from, c.to)
	}
}

// TestStatus_EchoSiempreValido: repetir el mismo estado es válido aunque sea terminal.
func TestStatus_EchoSiempreValido(t *testing.T) {
	for _, s := range []Status{StatusSuccess, StatusFailed, StatusCancelled, StatusPending} {
		assert.True(t, s.CanTransitionTo(s), "eco de %s", s)
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusSuccess.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusRetrying.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
}

func TestStatus_IsValid(t *testing.T) {
	assert.True(t, StatusScheduled.IsValid())
	assert.False(t, Status("BOGUS").IsValid())
}
