package quantum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitExecuteMatchesDirectGates(t *testing.T) {
	c := NewCircuit("bell", 2)
	require.NoError(t, c.AddGate(Hadamard, 0))
	require.NoError(t, c.AddGate(CNOT, 0, 1))
	require.Equal(t, 2, c.Depth())

	s := NewState("s", 2)
	require.NoError(t, c.Execute(s))
	amps := s.Amplitudes()
	assert.InDelta(t, 1/math.Sqrt2, amps[0], 1e-12)
	assert.InDelta(t, 1/math.Sqrt2, amps[3], 1e-12)
}

func TestCircuitAddGateValidation(t *testing.T) {
	c := NewCircuit("c", 2)
	assert.ErrorIs(t, c.AddGate(Hadamard, 3), ErrInvalidOperation)
	assert.ErrorIs(t, c.AddGate(CNOT, 0), ErrInvalidOperation)
	assert.Equal(t, 0, c.Depth())
}

func TestCircuitExecuteRejectsNarrowState(t *testing.T) {
	c := NewCircuit("c", 3)
	require.NoError(t, c.AddGate(Hadamard, 2))
	s := NewState("s", 2)
	assert.ErrorIs(t, c.Execute(s), ErrInvalidOperation)
}

func TestCircuitOptimizeCancelsPauliPairs(t *testing.T) {
	c := NewCircuit("c", 2)
	require.NoError(t, c.AddGate(Hadamard, 0))
	require.NoError(t, c.AddGate(PauliX, 1))
	require.NoError(t, c.AddGate(PauliX, 1))
	require.NoError(t, c.AddGate(PauliZ, 0))
	require.Equal(t, 4, c.Depth())

	c.Optimize()
	assert.Equal(t, 2, c.Depth())

	// The optimized circuit is still equivalent to the original.
	s := NewState("s", 2)
	require.NoError(t, c.Execute(s))
	ref := NewState("ref", 2)
	require.NoError(t, ref.ApplyGate(Hadamard, 0))
	require.NoError(t, ref.ApplyGate(PauliZ, 0))
	assert.InDeltaSlice(t, ref.Amplitudes(), s.Amplitudes(), 1e-12)
}

func TestCircuitOptimizeKeepsUnpairedGates(t *testing.T) {
	c := NewCircuit("c", 1)
	require.NoError(t, c.AddGate(Hadamard, 0))
	require.NoError(t, c.AddGate(Hadamard, 0))
	c.Optimize()
	// Hadamard pairs also cancel mathematically, but the optimizer only
	// reasons about Pauli involutions.
	assert.Equal(t, 2, c.Depth())
}

func TestCircuitOptimizeCollapsesRuns(t *testing.T) {
	c := NewCircuit("c", 1)
	for i := 0; i < 4; i++ {
		require.NoError(t, c.AddGate(PauliY, 0))
	}
	c.Optimize()
	assert.Equal(t, 0, c.Depth())
}

func TestCircuitOptimizeDistinguishesTargets(t *testing.T) {
	c := NewCircuit("c", 2)
	require.NoError(t, c.AddGate(PauliX, 0))
	require.NoError(t, c.AddGate(PauliX, 1))
	c.Optimize()
	assert.Equal(t, 2, c.Depth())
}
