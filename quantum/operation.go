package quantum

import (
	"fmt"
	"math"
)

// bellEntanglementStrength is the reported strength of a freshly created Bell
// pair. It models simulated channel quality and is not derived from the
// amplitudes.
const bellEntanglementStrength = 0.95

// An Operation is a composite quantum routine, built from gate sequences and
// randomness, executed against a single state via Core.Perform.
type Operation interface {
	// run mutates s in place and returns the operation's classical output.
	run(s *State, qrng *QRNG) ([]byte, error)
}

// CreateEntanglement entangles the listed qubits into a GHZ-style chain:
// Hadamard on the first, then CNOT from the first to each of the rest.
type CreateEntanglement struct {
	Qubits []int
}

func (op CreateEntanglement) run(s *State, qrng *QRNG) ([]byte, error) {
	if len(op.Qubits) < 2 {
		return nil, fmt.Errorf("%w: entanglement needs at least 2 qubits", ErrInvalidOperation)
	}
	if err := s.ApplyGate(Hadamard, op.Qubits[0]); err != nil {
		return nil, err
	}
	for _, q := range op.Qubits[1:] {
		if err := s.ApplyGate(CNOT, op.Qubits[0], q); err != nil {
			return nil, err
		}
	}
	return []byte{1}, nil
}

// CreateBellState prepares (|00>+|11>)/sqrt2 on the two named qubits and
// verifies the resulting amplitude pattern.
type CreateBellState struct {
	Q1, Q2 int
}

func (op CreateBellState) run(s *State, qrng *QRNG) ([]byte, error) {
	if op.Q1 == op.Q2 {
		return nil, fmt.Errorf("%w: Bell pair needs two distinct qubits", ErrInvalidOperation)
	}
	if err := s.ApplyGate(Hadamard, op.Q1); err != nil {
		return nil, err
	}
	if err := s.ApplyGate(CNOT, op.Q1, op.Q2); err != nil {
		return nil, err
	}
	if err := verifyBellPattern(s, op.Q1, op.Q2); err != nil {
		return nil, err
	}
	return []byte{1}, nil
}

// verifyBellPattern checks that all probability mass sits on the two basis
// states where the pair's bits agree, split evenly within tolerance.
func verifyBellPattern(s *State, q1, q2 int) error {
	m1, m2 := 1<<q1, 1<<q2
	var agree, half float64
	for i, a := range s.amplitudes {
		p := a * a
		if (i&m1 != 0) == (i&m2 != 0) {
			agree += p
		}
		if i&m1 == 0 {
			half += p
		}
	}
	const tol = 1e-6
	if math.Abs(agree-1) > tol || math.Abs(half-0.5) > tol {
		return fmt.Errorf("%w: Bell pattern check failed on %q (agree=%g, half=%g)",
			ErrNumericalDrift, s.id, agree, half)
	}
	return nil
}

// MeasureRandom performs a Born-rule measurement of the full register,
// caching the result under MeasurementID.
type MeasureRandom struct {
	MeasurementID string
}

func (op MeasureRandom) run(s *State, qrng *QRNG) ([]byte, error) {
	return s.Measure(op.MeasurementID, qrng)
}

// PrepareCommState encodes a classical bit pattern into the register by
// applying PauliX wherever the pattern has a 1.
type PrepareCommState struct {
	Encoding []byte
}

func (op PrepareCommState) run(s *State, qrng *QRNG) ([]byte, error) {
	for i, bit := range op.Encoding {
		if i >= s.QubitCount() {
			break
		}
		if bit&1 == 1 {
			if err := s.ApplyGate(PauliX, i); err != nil {
				return nil, err
			}
		}
	}
	out := make([]byte, len(op.Encoding))
	copy(out, op.Encoding)
	return out, nil
}

// Teleport moves the Source qubit's state onto an auxiliary qubit via the
// standard four-step protocol: entangle the auxiliary with Source, rotate
// Source/Target into the Bell basis, measure those two qubits, then
// conditionally correct the auxiliary with PauliZ/PauliX. The returned bytes
// are the two classical measurement bits (Source then Target).
type Teleport struct {
	Source, Target int
}

func (op Teleport) run(s *State, qrng *QRNG) ([]byte, error) {
	if op.Source == op.Target {
		return nil, fmt.Errorf("%w: teleport source and target must differ", ErrInvalidOperation)
	}
	aux := -1
	for q := 0; q < s.QubitCount(); q++ {
		if q != op.Source && q != op.Target {
			aux = q
			break
		}
	}
	if aux < 0 {
		return nil, fmt.Errorf("%w: teleport needs a free auxiliary qubit", ErrInvalidOperation)
	}

	// Entangle the auxiliary with the source.
	if err := s.ApplyGate(Hadamard, aux); err != nil {
		return nil, err
	}
	if err := s.ApplyGate(CNOT, aux, op.Source); err != nil {
		return nil, err
	}

	// Bell-basis rotation.
	if err := s.ApplyGate(CNOT, op.Source, op.Target); err != nil {
		return nil, err
	}
	if err := s.ApplyGate(Hadamard, op.Source); err != nil {
		return nil, err
	}

	// Only Source and Target collapse; the auxiliary keeps the teleported
	// superposition until the conditional corrections land on it.
	bits, err := s.MeasureQubits(fmt.Sprintf("teleport_%d_%d", op.Source, op.Target), qrng, op.Source, op.Target)
	if err != nil {
		return nil, err
	}
	mSource, mTarget := bits[0], bits[1]

	if mSource == 1 {
		if err := s.ApplyGate(PauliZ, aux); err != nil {
			return nil, err
		}
	}
	if mTarget == 1 {
		if err := s.ApplyGate(PauliX, aux); err != nil {
			return nil, err
		}
	}
	return []byte{mSource, mTarget}, nil
}

// A Corrector is the pluggable strategy consumed by the ErrorCorrection
// operation. The default is a toy majority-style pass; real stabilizer codes
// can be substituted without touching the gate engine.
type Corrector interface {
	Correct(s *State, data, ancilla []int, qrng *QRNG) ([]byte, error)
}

// ErrorCorrection runs a correction pass over the data qubits using the
// ancilla qubits, returning the measured syndrome.
type ErrorCorrection struct {
	DataQubits    []int
	AncillaQubits []int

	// Strategy defaults to MajorityCorrector when nil.
	Strategy Corrector
}

func (op ErrorCorrection) run(s *State, qrng *QRNG) ([]byte, error) {
	strategy := op.Strategy
	if strategy == nil {
		strategy = MajorityCorrector{}
	}
	return strategy.Correct(s, op.DataQubits, op.AncillaQubits, qrng)
}

// MajorityCorrector is a simplified majority-style correction pass, not a
// stabilizer code: it copies data-qubit parity onto the ancillas with CNOTs
// and measures the register for a syndrome.
type MajorityCorrector struct{}

// Correct implements the Corrector interface.
func (MajorityCorrector) Correct(s *State, data, ancilla []int, qrng *QRNG) ([]byte, error) {
	for _, d := range data {
		for _, a := range ancilla {
			if d >= s.QubitCount() || a >= s.QubitCount() {
				continue
			}
			if err := s.ApplyGate(CNOT, d, a); err != nil {
				return nil, err
			}
		}
	}
	return s.Measure("error_correction", qrng)
}
