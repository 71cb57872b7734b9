package quantum

import "fmt"

// A gateOp is one recorded (gate, targets) step of a circuit.
type gateOp struct {
	gate   Gate
	qubits []int
}

// A Circuit is a replayable, ordered sequence of gate applications. Circuits
// are owned exclusively by a Core and executed against named states; they
// carry no amplitudes of their own.
type Circuit struct {
	id         string
	qubitCount int
	ops        []gateOp
}

// NewCircuit returns an empty circuit over qubitCount qubits.
func NewCircuit(id string, qubitCount int) *Circuit {
	return &Circuit{id: id, qubitCount: qubitCount}
}

// ID returns the circuit's handle.
func (c *Circuit) ID() string { return c.id }

// QubitCount returns the register width the circuit was declared over.
func (c *Circuit) QubitCount() int { return c.qubitCount }

// Depth returns the number of recorded gate applications.
func (c *Circuit) Depth() int { return len(c.ops) }

// AddGate records a gate application at the end of the circuit.
func (c *Circuit) AddGate(g Gate, qubits ...int) error {
	if len(qubits) != g.arity() {
		return fmt.Errorf("%w: %v wants %d target(s), got %d", ErrInvalidOperation, g, g.arity(), len(qubits))
	}
	for _, q := range qubits {
		if q < 0 || q >= c.qubitCount {
			return fmt.Errorf("%w: qubit %d out of range for %d-qubit circuit", ErrInvalidOperation, q, c.qubitCount)
		}
	}
	targets := make([]int, len(qubits))
	copy(targets, qubits)
	c.ops = append(c.ops, gateOp{gate: g, qubits: targets})
	return nil
}

// Execute applies each recorded gate in order against s.
func (c *Circuit) Execute(s *State) error {
	if s.QubitCount() < c.qubitCount {
		return fmt.Errorf("%w: executing %d-qubit circuit %q against %d-qubit state %q",
			ErrInvalidOperation, c.qubitCount, c.id, s.QubitCount(), s.ID())
	}
	for _, op := range c.ops {
		if err := s.ApplyGate(op.gate, op.qubits...); err != nil {
			return fmt.Errorf("executing circuit %q: %w", c.id, err)
		}
	}
	return nil
}

// Optimize removes adjacent pairs of identical Pauli gates on the same
// targets, which cancel to the identity.
func (c *Circuit) Optimize() {
	var out []gateOp
	for _, op := range c.ops {
		if len(out) > 0 && cancels(out[len(out)-1], op) {
			out = out[:len(out)-1]
			continue
		}
		out = append(out, op)
	}
	c.ops = out
}

func cancels(a, b gateOp) bool {
	if a.gate != b.gate {
		return false
	}
	switch a.gate {
	case PauliX, PauliY, PauliZ:
	default:
		return false
	}
	if len(a.qubits) != len(b.qubits) {
		return false
	}
	for i := range a.qubits {
		if a.qubits[i] != b.qubits[i] {
			return false
		}
	}
	return true
}
