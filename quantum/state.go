package quantum

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

const (
	// renormEpsilon is the normalization drift beyond which a state is
	// defensively renormalized after a gate.
	renormEpsilon = 1e-9

	// driftFatal is the normalization drift beyond which the engine gives up
	// and reports ErrNumericalDrift. Unitary gates should never come close.
	driftFatal = 1e-6
)

// A State holds one multi-qubit register: a normalized real amplitude vector
// over the 2^n computational basis states, a parallel vector of accumulated
// phase angles, a scalar fidelity, and a cache of past measurement results.
//
// Phases are tracked separately from amplitudes and never influence
// measurement probability; phase gates are observable only through further
// gate interactions. That separation is part of the engine's contract and
// must not be "fixed" into complex amplitudes.
//
// A State is not safe for concurrent mutation. Gate application and
// measurement both read-then-write the full amplitude vector, so callers must
// maintain a single-writer discipline.
type State struct {
	id         string
	qubitCount int
	amplitudes []float64
	phases     []float64
	fidelity   float64

	measurements map[string][]byte
	createdAt    time.Time
}

// NewState returns a state of qubitCount qubits initialized to |00...0>.
func NewState(id string, qubitCount int) *State {
	n := 1 << qubitCount
	amps := make([]float64, n)
	amps[0] = 1.0
	return &State{
		id:           id,
		qubitCount:   qubitCount,
		amplitudes:   amps,
		phases:       make([]float64, n),
		fidelity:     1.0,
		measurements: make(map[string][]byte),
		createdAt:    time.Now(),
	}
}

// ID returns the state's handle.
func (s *State) ID() string { return s.id }

// QubitCount returns the number of qubits in the register.
func (s *State) QubitCount() int { return s.qubitCount }

// Fidelity returns the state's current fidelity scalar. It is 1.0 at creation
// and decreases multiplicatively as gates and operations are applied.
func (s *State) Fidelity() float64 { return s.fidelity }

// CreatedAt returns the state's creation time.
func (s *State) CreatedAt() time.Time { return s.createdAt }

// Measurement returns the cached result of a previous measurement, if any.
func (s *State) Measurement(measurementID string) ([]byte, bool) {
	m, ok := s.measurements[measurementID]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(m))
	copy(out, m)
	return out, true
}

// Amplitudes returns a copy of the amplitude vector.
func (s *State) Amplitudes() []float64 {
	out := make([]float64, len(s.amplitudes))
	copy(out, s.amplitudes)
	return out
}

// Phases returns a copy of the phase vector.
func (s *State) Phases() []float64 {
	out := make([]float64, len(s.phases))
	copy(out, s.phases)
	return out
}

// ApplyGate applies a primitive gate to the given target qubits, mutating the
// state in place and degrading its fidelity by the gate's fixed factor.
func (s *State) ApplyGate(g Gate, qubits ...int) error {
	if len(qubits) != g.arity() {
		return fmt.Errorf("%w: %v wants %d target(s), got %d", ErrInvalidOperation, g, g.arity(), len(qubits))
	}
	for _, q := range qubits {
		if q < 0 || q >= s.qubitCount {
			return fmt.Errorf("%w: qubit %d out of range for %d-qubit state", ErrInvalidOperation, q, s.qubitCount)
		}
	}

	switch g {
	case Hadamard:
		s.applyHadamard(qubits[0])
	case PauliX:
		s.applyPauliX(qubits[0])
	case PauliY:
		s.applyPauliY(qubits[0])
	case PauliZ, Phase:
		s.addPhase(qubits[0], math.Pi)
	case CNOT:
		if qubits[0] == qubits[1] {
			return fmt.Errorf("%w: CNOT control and target must differ", ErrInvalidOperation)
		}
		s.applyCNOT(qubits[0], qubits[1])
	case TGate:
		s.addPhase(qubits[0], math.Pi/4)
	case SGate:
		s.addPhase(qubits[0], math.Pi/2)
	default:
		return fmt.Errorf("%w: unknown gate %v", ErrInvalidOperation, g)
	}

	s.fidelity *= g.fidelityFactor()
	return s.checkNormalization()
}

// applyHadamard replaces every amplitude pair differing only in bit q with
// the (a+b)/sqrt2, (a-b)/sqrt2 combination.
func (s *State) applyHadamard(q int) {
	mask := 1 << q
	inv := 1 / math.Sqrt2
	next := make([]float64, len(s.amplitudes))
	for i, a := range s.amplitudes {
		if a == 0 {
			continue
		}
		if i&mask == 0 {
			next[i] += a * inv
			next[i|mask] += a * inv
		} else {
			next[i^mask] += a * inv
			next[i] -= a * inv
		}
	}
	s.amplitudes = next
}

// applyPauliX swaps amplitude entries whose indices differ only in bit q.
func (s *State) applyPauliX(q int) {
	mask := 1 << q
	for i := range s.amplitudes {
		j := i ^ mask
		if i < j {
			s.amplitudes[i], s.amplitudes[j] = s.amplitudes[j], s.amplitudes[i]
			s.phases[i], s.phases[j] = s.phases[j], s.phases[i]
		}
	}
}

// applyPauliY performs the bit flip and pi/2 phase adjustment atomically.
func (s *State) applyPauliY(q int) {
	mask := 1 << q
	for i := range s.amplitudes {
		j := i ^ mask
		if i < j {
			a0, p0 := s.amplitudes[i], s.phases[i]
			s.amplitudes[i], s.phases[i] = s.amplitudes[j], s.phases[j]+math.Pi/2
			s.amplitudes[j], s.phases[j] = a0, p0-math.Pi/2
		}
	}
}

// applyCNOT swaps the amplitudes of index pairs that differ in the target bit
// wherever the control bit is set.
func (s *State) applyCNOT(control, target int) {
	cMask, tMask := 1<<control, 1<<target
	for i := range s.amplitudes {
		if i&cMask == 0 {
			continue
		}
		j := i ^ tMask
		if i < j {
			s.amplitudes[i], s.amplitudes[j] = s.amplitudes[j], s.amplitudes[i]
			s.phases[i], s.phases[j] = s.phases[j], s.phases[i]
		}
	}
}

// addPhase adds theta to the phase entry of every basis state with bit q set.
func (s *State) addPhase(q int, theta float64) {
	mask := 1 << q
	for i := range s.phases {
		if i&mask != 0 {
			s.phases[i] += theta
		}
	}
}

// CreateSuperposition overwrites the register with a uniform superposition of
// all basis states, assigning each a random phase drawn from qrng.
func (s *State) CreateSuperposition(qrng *QRNG) {
	amp := 1 / math.Sqrt(float64(len(s.amplitudes)))
	for i := range s.amplitudes {
		s.amplitudes[i] = amp
		s.phases[i] = 2 * math.Pi * qrng.Float64()
	}
}

// Measure performs a Born-rule measurement of the full register: outcome
// probabilities are the squared amplitudes, one uniform sample from qrng
// selects the outcome, and the state collapses onto it. The result is
// returned MSB first, one byte per qubit, and cached under measurementID.
func (s *State) Measure(measurementID string, qrng *QRNG) ([]byte, error) {
	if len(s.amplitudes) == 0 || len(s.amplitudes) != 1<<s.qubitCount {
		return nil, fmt.Errorf("%w: measuring malformed %d-qubit state", ErrInvalidOperation, s.qubitCount)
	}

	sample := qrng.Float64()
	outcome := len(s.amplitudes) - 1
	cum := 0.0
	for i, a := range s.amplitudes {
		cum += a * a
		if sample <= cum {
			outcome = i
			break
		}
	}

	// Collapse onto the measured basis state.
	for i := range s.amplitudes {
		s.amplitudes[i] = 0
		s.phases[i] = 0
	}
	s.amplitudes[outcome] = 1.0

	result := make([]byte, s.qubitCount)
	for q := 0; q < s.qubitCount; q++ {
		result[s.qubitCount-1-q] = byte(outcome >> q & 1)
	}
	s.measurements[measurementID] = result

	out := make([]byte, len(result))
	copy(out, result)
	return out, nil
}

// MeasureQubits performs a Born-rule measurement of only the listed qubits.
// Probability mass is marginalized over those bit positions, one uniform
// sample from qrng selects the joint outcome, and the listed qubits collapse
// onto it while the rest of the register keeps its (renormalized) coherence.
// The result holds one byte per listed qubit, in argument order, and is
// cached under measurementID.
func (s *State) MeasureQubits(measurementID string, qrng *QRNG, qubits ...int) ([]byte, error) {
	if len(s.amplitudes) == 0 || len(s.amplitudes) != 1<<s.qubitCount {
		return nil, fmt.Errorf("%w: measuring malformed %d-qubit state", ErrInvalidOperation, s.qubitCount)
	}
	if len(qubits) == 0 {
		return nil, fmt.Errorf("%w: measuring zero qubits", ErrInvalidOperation)
	}
	seen := 0
	for _, q := range qubits {
		if q < 0 || q >= s.qubitCount {
			return nil, fmt.Errorf("%w: qubit %d out of range for %d-qubit state", ErrInvalidOperation, q, s.qubitCount)
		}
		if seen&(1<<q) != 0 {
			return nil, fmt.Errorf("%w: duplicate measurement target %d", ErrInvalidOperation, q)
		}
		seen |= 1 << q
	}

	// pattern projects a basis index down to the measured qubits only.
	pattern := func(i int) int {
		p := 0
		for j, q := range qubits {
			if i&(1<<q) != 0 {
				p |= 1 << j
			}
		}
		return p
	}

	probs := make([]float64, 1<<len(qubits))
	for i, a := range s.amplitudes {
		probs[pattern(i)] += a * a
	}

	sample := qrng.Float64()
	outcome := -1
	cum := 0.0
	for p, pr := range probs {
		if pr == 0 {
			continue
		}
		outcome = p
		cum += pr
		if sample <= cum {
			break
		}
	}
	if outcome < 0 {
		return nil, fmt.Errorf("%w: measuring zero-mass state %q", ErrInvalidOperation, s.id)
	}

	// Collapse the measured qubits and renormalize the survivors.
	norm := math.Sqrt(probs[outcome])
	for i := range s.amplitudes {
		if pattern(i) != outcome {
			s.amplitudes[i] = 0
			s.phases[i] = 0
			continue
		}
		s.amplitudes[i] /= norm
	}

	result := make([]byte, len(qubits))
	for j := range qubits {
		result[j] = byte(outcome >> j & 1)
	}
	s.measurements[measurementID] = result

	out := make([]byte, len(result))
	copy(out, result)
	return out, nil
}

// reset returns the register to |00...0> without clearing the measurement
// cache or restoring fidelity.
func (s *State) reset() {
	for i := range s.amplitudes {
		s.amplitudes[i] = 0
		s.phases[i] = 0
	}
	s.amplitudes[0] = 1.0
}

// checkNormalization verifies the Born-rule invariant sum(a_i^2) == 1 after a
// gate. Small floating drift is corrected in place; drift beyond driftFatal
// indicates a broken gate and is reported rather than papered over.
func (s *State) checkNormalization() error {
	norm := floats.Norm(s.amplitudes, 2)
	drift := math.Abs(norm*norm - 1)
	if drift > driftFatal {
		return fmt.Errorf("%w: |amplitudes|^2 = %g on state %q", ErrNumericalDrift, norm*norm, s.id)
	}
	if drift > renormEpsilon {
		floats.Scale(1/norm, s.amplitudes)
	}
	return nil
}
