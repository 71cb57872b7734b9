package quantum

import "fmt"

// A Gate identifies one of the engine's primitive unitary operations.
type Gate int

const (
	// Hadamard creates or destroys superposition on a single qubit.
	Hadamard Gate = iota
	// PauliX flips a qubit (bit flip).
	PauliX
	// PauliY composes a bit flip with a pi/2 phase adjustment.
	PauliY
	// PauliZ adds pi to the phase of every basis state with the qubit set.
	PauliZ
	// CNOT flips the target qubit wherever the control qubit is set.
	CNOT
	// Phase adds pi to the phase of every basis state with the qubit set.
	Phase
	// TGate adds pi/4 to the phase of every basis state with the qubit set.
	TGate
	// SGate adds pi/2 to the phase of every basis state with the qubit set.
	SGate
)

// String implements fmt.Stringer.
func (g Gate) String() string {
	switch g {
	case Hadamard:
		return "H"
	case PauliX:
		return "X"
	case PauliY:
		return "Y"
	case PauliZ:
		return "Z"
	case CNOT:
		return "CNOT"
	case Phase:
		return "P"
	case TGate:
		return "T"
	case SGate:
		return "S"
	}
	return fmt.Sprintf("Gate(%d)", int(g))
}

// arity returns the number of target qubits the gate operates on.
func (g Gate) arity() int {
	if g == CNOT {
		return 2
	}
	return 1
}

// fidelityFactor returns the multiplicative degradation applied to a state's
// fidelity when this gate is applied. The factors model aggregate channel and
// control-pulse quality; they are not derived from the amplitudes.
func (g Gate) fidelityFactor() float64 {
	switch g {
	case Hadamard:
		return 0.9990
	case PauliX:
		return 0.9995
	case PauliY:
		return 0.9994
	case PauliZ:
		return 0.9995
	case CNOT:
		return 0.9985
	case Phase:
		return 0.9995
	case TGate:
		return 0.9998
	case SGate:
		return 0.9997
	}
	return 1.0
}
