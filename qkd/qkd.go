// Package qkd negotiates shared secret keys over a simulated quantum channel
// using the BB84, E91, or SARG04 protocols.
package qkd

import (
	"errors"

	"github.com/quantsec/qsc/bitarray"
	"github.com/quantsec/qsc/quantum"
)

// Defaults applied by NewSession when the corresponding option is zero.
var (
	DefaultKeyLength        = 128
	DefaultSampleProportion = 0.25
	DefaultEpsilonPrivacy   = 1e-12
)

// ErrSecurityAbort is returned when a session fails closed: the observed
// error rate exceeded the protocol's eavesdropping threshold, or too little
// secret material survived to extract a key. It is a designed outcome, not a
// fault; callers may retry the whole session with fresh randomness.
var ErrSecurityAbort = errors.New("qkd: security abort")

// A Protocol selects the preparation/measurement scheme and its tolerances.
type Protocol int

const (
	// BB84 is prepare-and-measure QKD in the computational/Hadamard bases.
	BB84 Protocol = iota
	// E91 is entanglement-based QKD over Bell pairs.
	E91
	// SARG04 uses BB84's states with hardened sifting tolerances.
	SARG04
)

// String implements fmt.Stringer.
func (p Protocol) String() string {
	switch p {
	case BB84:
		return "BB84"
	case E91:
		return "E91"
	case SARG04:
		return "SARG04"
	}
	return "unknown"
}

// params carries a protocol's channel-quality target, tolerated QBER, and
// raw-round oversampling factor.
type params struct {
	fidelity   float64
	maxQBER    float64
	oversample int
}

func (p Protocol) params() params {
	switch p {
	case E91:
		return params{fidelity: 0.99, maxQBER: 0.01, oversample: 3}
	case SARG04:
		return params{fidelity: 0.96, maxQBER: 0.04, oversample: 5}
	default:
		return params{fidelity: 0.98, maxQBER: 0.02, oversample: 4}
	}
}

// A reconcileResult is the output of error correction: each side's corrected
// bit string, which agree except with negligible probability, and an upper
// bound on the bits of information disclosed beyond what the pass itself
// discarded to compensate.
type reconcileResult struct {
	a, b       bitarray.Dense
	bitLeakage float64
}

// A Reconciler performs error correction on the two sides' sifted bit
// strings so that both arrive at the same corrected string, accounting for
// the information leaked in the process.
type Reconciler interface {
	Reconcile(a, b bitarray.Dense) (reconcileResult, error)
}

// SessionOpts packages together the arguments necessary to construct a new
// Session. Core must be provided; the remaining fields have defaults.
type SessionOpts struct {
	// Protocol selects BB84, E91, or SARG04. Defaults to BB84.
	Protocol Protocol

	// KeyLength is the requested final key size in bits. Defaults to
	// DefaultKeyLength.
	KeyLength int

	// Core drives the underlying quantum simulation. Must be non-nil, and
	// must permit 2-qubit states when the protocol is E91.
	Core *quantum.Core

	// Rand supplies the classical randomness for basis choices, sampling and
	// extractor seeding. Defaults to a fresh crypto/rand-seeded QRNG.
	Rand *quantum.QRNG

	// NoiseRate flips each received bit with this probability, modelling
	// channel error or eavesdropping. Zero on a clean channel.
	NoiseRate float64

	// SampleProportion is the fraction of sifted bits sacrificed to QBER
	// estimation. Defaults to DefaultSampleProportion.
	SampleProportion float64

	// EpsilonPrivacy bounds the statistical distance from uniform of the
	// extracted key. Defaults to DefaultEpsilonPrivacy.
	EpsilonPrivacy float64

	// Reconciler performs error correction. Defaults to a MajorityReconciler
	// over 4-bit blocks.
	Reconciler Reconciler
}

// NewSession returns a session in the Initialized phase, or an error if the
// options are nonsensical.
func NewSession(opts SessionOpts) (*Session, error) {
	if opts.Core == nil {
		return nil, errors.New("must provide Core")
	}
	if opts.Protocol == E91 && opts.Core.MaxQubits() < 2 {
		return nil, errors.New("E91 needs a core permitting 2-qubit states")
	}
	if opts.KeyLength == 0 {
		opts.KeyLength = DefaultKeyLength
	}
	if opts.KeyLength < 0 {
		return nil, errors.New("key length must be positive")
	}
	if opts.NoiseRate < 0 || opts.NoiseRate > 1 {
		return nil, errors.New("noise rate must be in [0, 1]")
	}
	if opts.Rand == nil {
		r, err := quantum.NewQRNG(nil)
		if err != nil {
			return nil, err
		}
		opts.Rand = r
	}
	if opts.SampleProportion == 0 {
		opts.SampleProportion = DefaultSampleProportion
	}
	if opts.SampleProportion < 0 || opts.SampleProportion >= 1 {
		return nil, errors.New("sample proportion must be in [0, 1)")
	}
	if opts.EpsilonPrivacy == 0 {
		opts.EpsilonPrivacy = DefaultEpsilonPrivacy
	}
	if opts.Reconciler == nil {
		opts.Reconciler = MajorityReconciler{}
	}
	return newSession(opts), nil
}
