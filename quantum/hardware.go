package quantum

// Execution modes reported by hardware detection.
const (
	ModeHardware   = "hardware"
	ModeSimulation = "simulation"
)

// A Hardware describes the physical quantum backend discovered at core
// construction. Detection runs exactly once; absence of hardware is the
// expected, default path and simply selects simulation mode. The result is a
// field on the owning Core rather than process-global state, so cores can be
// tested independently with different simulated availability.
type Hardware struct {
	available       bool
	architecture    string
	availableQubits int
	supportedGates  []Gate
}

// HardwareStatus is a read-only snapshot of hardware detection results.
type HardwareStatus struct {
	Available       bool
	Mode            string
	Architecture    string
	AvailableQubits int
	SupportedGates  []Gate
}

// DetectHardware probes for attached quantum hardware. probe may be nil, in
// which case the default probe is used; tests inject their own to simulate
// hardware presence.
func DetectHardware(probe func() bool) *Hardware {
	if probe == nil {
		probe = probeQuantumHardware
	}
	h := &Hardware{
		architecture:    "physics-based simulation",
		availableQubits: 16,
		supportedGates: []Gate{
			Hadamard, PauliX, PauliY, PauliZ, CNOT, Phase, TGate, SGate,
		},
	}
	if probe() {
		h.available = true
		h.architecture = "quantum hardware"
	}
	return h
}

// probeQuantumHardware checks for attached quantum processors. No hardware
// driver integrations exist in this build, so detection always selects
// simulation.
func probeQuantumHardware() bool {
	return false
}

// Available reports whether physical hardware was detected.
func (h *Hardware) Available() bool { return h.available }

// Mode returns "hardware" or "simulation".
func (h *Hardware) Mode() string {
	if h.available {
		return ModeHardware
	}
	return ModeSimulation
}

// Status returns a snapshot of the detection results.
func (h *Hardware) Status() HardwareStatus {
	gates := make([]Gate, len(h.supportedGates))
	copy(gates, h.supportedGates)
	return HardwareStatus{
		Available:       h.available,
		Mode:            h.Mode(),
		Architecture:    h.architecture,
		AvailableQubits: h.availableQubits,
		SupportedGates:  gates,
	}
}
