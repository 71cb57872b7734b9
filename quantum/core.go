package quantum

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// A Config carries the tunables for a Core.
type Config struct {
	// MaxQubits bounds the register width of any state or circuit. The
	// amplitude vector grows as 2^qubits, so keep this small.
	MaxQubits int

	// EnableHardware controls whether construction probes for physical
	// hardware at all. When false the core goes straight to simulation.
	EnableHardware bool

	// HardwareProbe overrides the default hardware probe; tests use this to
	// simulate hardware presence. Nil selects the default probe.
	HardwareProbe func() bool

	// MaxCircuitDepth bounds the number of gates recorded in one circuit.
	MaxCircuitDepth int

	// CleanupMaxAge is the age past which CleanupOldStates discards states.
	CleanupMaxAge time.Duration
}

// DefaultConfig returns the engine defaults: 4 qubits, hardware detection
// enabled, circuit depth capped at 100, 5-minute state retention.
func DefaultConfig() Config {
	return Config{
		MaxQubits:       4,
		EnableHardware:  true,
		MaxCircuitDepth: 100,
		CleanupMaxAge:   5 * time.Minute,
	}
}

// Metrics is a snapshot of a core's aggregate operation counters.
type Metrics struct {
	StatesCreated    uint64
	GateApplications uint64
	Measurements     uint64
	Operations       uint64
	CircuitRuns      uint64
	RandomBits       uint64
}

// StateInfo is a read-only snapshot of one state, for diagnostics and
// testing. Mutating it has no effect on the engine.
type StateInfo struct {
	ID         string
	QubitCount int
	Amplitudes []float64
	Phases     []float64
	Fidelity   float64
	CreatedAt  time.Time
}

// A Core owns a table of named states and circuits and exposes the public
// operation surface of the engine. The tables are guarded by a mutex; the
// states themselves follow a single-writer discipline enforced by that same
// lock, since every operation looks its state up by id before mutating it.
type Core struct {
	mu       sync.Mutex
	cfg      Config
	states   map[string]*State
	circuits map[string]*Circuit
	qrng     *QRNG
	hardware *Hardware
	metrics  Metrics
}

// New constructs a core: it runs hardware detection once (absence of
// hardware is the normal path and selects simulation mode) and seeds the
// QRNG from the provided entropy source. A nil entropy reader falls back to
// crypto/rand.
func New(cfg Config, entropy io.Reader) (*Core, error) {
	if cfg.MaxQubits <= 0 {
		return nil, fmt.Errorf("%w: max qubits must be positive, got %d", ErrInvalidOperation, cfg.MaxQubits)
	}
	if cfg.MaxCircuitDepth <= 0 {
		cfg.MaxCircuitDepth = DefaultConfig().MaxCircuitDepth
	}
	if cfg.CleanupMaxAge <= 0 {
		cfg.CleanupMaxAge = DefaultConfig().CleanupMaxAge
	}
	qrng, err := NewQRNG(entropy)
	if err != nil {
		return nil, err
	}
	probe := cfg.HardwareProbe
	if !cfg.EnableHardware {
		probe = func() bool { return false }
	}
	return &Core{
		cfg:      cfg,
		states:   make(map[string]*State),
		circuits: make(map[string]*Circuit),
		qrng:     qrng,
		hardware: DetectHardware(probe),
	}, nil
}

// Mode returns "hardware" or "simulation".
func (c *Core) Mode() string { return c.hardware.Mode() }

// HardwareStatus returns the hardware detection snapshot.
func (c *Core) HardwareStatus() HardwareStatus { return c.hardware.Status() }

// Metrics returns a snapshot of the aggregate operation counters.
func (c *Core) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// MaxQubits returns the configured register-width bound.
func (c *Core) MaxQubits() int { return c.cfg.MaxQubits }

// CreateCommState creates a named state of qubitCount qubits initialized to
// |00...0>. It fails if the id already exists or the count exceeds the
// configured maximum.
func (c *Core) CreateCommState(id string, qubitCount int) error {
	if qubitCount <= 0 {
		return fmt.Errorf("%w: qubit count must be positive, got %d", ErrInvalidOperation, qubitCount)
	}
	if qubitCount > c.cfg.MaxQubits {
		return fmt.Errorf("%w: requested %d qubits, maximum is %d", ErrResourceExceeded, qubitCount, c.cfg.MaxQubits)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.states[id]; ok {
		return fmt.Errorf("%w: state %q already exists", ErrInvalidOperation, id)
	}
	c.states[id] = NewState(id, qubitCount)
	c.metrics.StatesCreated++
	return nil
}

// RemoveState destroys a named state.
func (c *Core) RemoveState(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.states[id]; !ok {
		return fmt.Errorf("%w: state %q", ErrNotFound, id)
	}
	delete(c.states, id)
	return nil
}

// ApplyGate applies a primitive gate to a named state.
func (c *Core) ApplyGate(stateID string, g Gate, qubits ...int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[stateID]
	if !ok {
		return fmt.Errorf("%w: state %q", ErrNotFound, stateID)
	}
	if err := s.ApplyGate(g, qubits...); err != nil {
		return err
	}
	c.metrics.GateApplications++
	return nil
}

// CreateEntangledState entangles the first two qubits of a named state into
// the Bell state (|00>+|11>)/sqrt2.
func (c *Core) CreateEntangledState(stateID string) error {
	_, err := c.Perform(stateID, CreateBellState{Q1: 0, Q2: 1})
	return err
}

// BellPairResult reports the outcome of CreateBellPair.
type BellPairResult struct {
	Q1, Q2               int
	Fidelity             float64
	EntanglementStrength float64
}

// CreateBellPair prepares a Bell pair on two qubits of a named state and
// reports the resulting fidelity and entanglement strength.
func (c *Core) CreateBellPair(stateID string, q1, q2 int) (BellPairResult, error) {
	if _, err := c.Perform(stateID, CreateBellState{Q1: q1, Q2: q2}); err != nil {
		return BellPairResult{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.states[stateID]
	return BellPairResult{
		Q1:                   q1,
		Q2:                   q2,
		Fidelity:             s.Fidelity(),
		EntanglementStrength: bellEntanglementStrength,
	}, nil
}

// Perform executes a composite operation against a named state and returns
// its classical output.
func (c *Core) Perform(stateID string, op Operation) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[stateID]
	if !ok {
		return nil, fmt.Errorf("%w: state %q", ErrNotFound, stateID)
	}
	out, err := op.run(s, c.qrng)
	if err != nil {
		return nil, err
	}
	c.metrics.Operations++
	if _, measured := op.(MeasureRandom); measured {
		c.metrics.Measurements++
	}
	return out, nil
}

// Measure performs a Born-rule measurement of a named state, caching the
// result under measurementID.
func (c *Core) Measure(stateID, measurementID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[stateID]
	if !ok {
		return nil, fmt.Errorf("%w: state %q", ErrNotFound, stateID)
	}
	bits, err := s.Measure(measurementID, c.qrng)
	if err != nil {
		return nil, err
	}
	c.metrics.Measurements++
	return bits, nil
}

// GenerateRandom harvests bitCount random bits from a named state by
// repeatedly resetting it into a uniform superposition and measuring. This
// is the bridge between the physics engine and classical consumers; the
// returned slice holds one bit per byte.
func (c *Core) GenerateRandom(stateID string, bitCount int) ([]byte, error) {
	if bitCount <= 0 {
		return nil, fmt.Errorf("%w: bit count must be positive, got %d", ErrInvalidOperation, bitCount)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[stateID]
	if !ok {
		return nil, fmt.Errorf("%w: state %q", ErrNotFound, stateID)
	}
	out := make([]byte, 0, bitCount)
	for round := 0; len(out) < bitCount; round++ {
		s.reset()
		s.CreateSuperposition(c.qrng)
		bits, err := s.Measure(fmt.Sprintf("random_%d", round), c.qrng)
		if err != nil {
			return nil, err
		}
		c.metrics.Measurements++
		for _, b := range bits {
			if len(out) == bitCount {
				break
			}
			out = append(out, b)
		}
	}
	c.metrics.RandomBits += uint64(bitCount)
	return out, nil
}

// CreateCircuit creates a named, empty circuit over qubitCount qubits.
func (c *Core) CreateCircuit(id string, qubitCount int) error {
	if qubitCount <= 0 || qubitCount > c.cfg.MaxQubits {
		return fmt.Errorf("%w: requested %d qubits, maximum is %d", ErrResourceExceeded, qubitCount, c.cfg.MaxQubits)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.circuits[id]; ok {
		return fmt.Errorf("%w: circuit %q already exists", ErrInvalidOperation, id)
	}
	c.circuits[id] = NewCircuit(id, qubitCount)
	return nil
}

// AddGateToCircuit appends a gate application to a named circuit.
func (c *Core) AddGateToCircuit(circuitID string, g Gate, qubits ...int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	circ, ok := c.circuits[circuitID]
	if !ok {
		return fmt.Errorf("%w: circuit %q", ErrNotFound, circuitID)
	}
	if circ.Depth() >= c.cfg.MaxCircuitDepth {
		return fmt.Errorf("%w: circuit %q at depth cap %d", ErrResourceExceeded, circuitID, c.cfg.MaxCircuitDepth)
	}
	return circ.AddGate(g, qubits...)
}

// ExecuteCircuit replays a named circuit against a named state.
func (c *Core) ExecuteCircuit(circuitID, stateID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	circ, ok := c.circuits[circuitID]
	if !ok {
		return fmt.Errorf("%w: circuit %q", ErrNotFound, circuitID)
	}
	s, ok := c.states[stateID]
	if !ok {
		return fmt.Errorf("%w: state %q", ErrNotFound, stateID)
	}
	if err := circ.Execute(s); err != nil {
		return err
	}
	c.metrics.CircuitRuns++
	c.metrics.GateApplications += uint64(circ.Depth())
	return nil
}

// StateInfo returns a read-only snapshot of a named state.
func (c *Core) StateInfo(stateID string) (StateInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[stateID]
	if !ok {
		return StateInfo{}, fmt.Errorf("%w: state %q", ErrNotFound, stateID)
	}
	return StateInfo{
		ID:         s.ID(),
		QubitCount: s.QubitCount(),
		Amplitudes: s.Amplitudes(),
		Phases:     s.Phases(),
		Fidelity:   s.Fidelity(),
		CreatedAt:  s.CreatedAt(),
	}, nil
}

// CleanupOldStates discards states older than the configured retention age
// and returns how many were removed.
func (c *Core) CleanupOldStates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := time.Now().Add(-c.cfg.CleanupMaxAge)
	var removed int
	for id, s := range c.states {
		if s.CreatedAt().Before(cutoff) {
			delete(c.states, id)
			removed++
		}
	}
	return removed
}
