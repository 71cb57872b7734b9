package qkd

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/quantsec/qsc/bitarray"
	"github.com/quantsec/qsc/quantum"
)

// A Phase is one stage of the key-negotiation state machine. Transitions are
// strictly ordered; the only branch is at error estimation, where a session
// either proceeds to reconciliation or aborts for good.
type Phase int

const (
	PhaseInitialized Phase = iota
	PhasePrepared
	PhaseMeasured
	PhaseSifted
	PhaseErrorEstimated
	PhaseReconciled
	PhaseKeyFinalized
	PhaseAborted
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseInitialized:
		return "Initialized"
	case PhasePrepared:
		return "Prepared"
	case PhaseMeasured:
		return "Measured"
	case PhaseSifted:
		return "Sifted"
	case PhaseErrorEstimated:
		return "ErrorEstimated"
	case PhaseReconciled:
		return "Reconciled"
	case PhaseKeyFinalized:
		return "KeyFinalized"
	case PhaseAborted:
		return "Aborted"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// A Report packages together the channel-quality metrics of one session, for
// callers deciding whether to accept the channel or retry elsewhere.
type Report struct {
	SessionID    string
	Protocol     Protocol
	Phase        Phase
	Fidelity     float64
	QBER         float64
	RawBits      int
	SiftedBits   int
	FinalKeyBits int
}

// A Session negotiates one shared key. Both endpoints are simulated
// in-process against a single quantum core; the classical side channel
// (basis announcements, parity checks, sampling seeds) is therefore direct
// field access rather than a wire protocol.
//
// A Session is single-use: run it once and discard it. It is not safe for
// concurrent use.
type Session struct {
	id    string
	opts  SessionOpts
	p     params
	phase Phase

	rounds int

	// Alice's (sender) and Bob's (receiver) classical records.
	localBits, localBases   bitarray.Dense
	remoteBits, remoteBases bitarray.Dense

	siftedLocal, siftedRemote     bitarray.Dense
	unleakedLocal, unleakedRemote bitarray.Dense
	qber                          float64
	leakage                       float64
	reconciled                    bitarray.Dense
	finalKey                      bitarray.Dense
}

func newSession(opts SessionOpts) *Session {
	p := opts.Protocol.params()
	return &Session{
		id:     uuid.NewString(),
		opts:   opts,
		p:      p,
		rounds: opts.KeyLength * p.oversample,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Phase returns the session's current phase.
func (s *Session) Phase() Phase { return s.phase }

// Report returns the session's channel-quality report as of its current
// phase.
func (s *Session) Report() Report {
	fidelity := s.p.fidelity * (1 - s.qber)
	if s.phase == PhaseAborted {
		fidelity = 0
	}
	return Report{
		SessionID:    s.id,
		Protocol:     s.opts.Protocol,
		Phase:        s.phase,
		Fidelity:     fidelity,
		QBER:         s.qber,
		RawBits:      s.localBits.Size(),
		SiftedBits:   s.siftedLocal.Size(),
		FinalKeyBits: s.finalKey.Size(),
	}
}

// Run drives the state machine to completion and returns the final key. An
// aborted session returns an error wrapping ErrSecurityAbort and no key,
// never a truncated or low-confidence one.
func (s *Session) Run() (bitarray.Dense, Report, error) {
	for s.phase != PhaseKeyFinalized && s.phase != PhaseAborted {
		if err := s.step(); err != nil {
			return bitarray.Empty(), s.Report(), err
		}
	}
	return s.finalKey, s.Report(), nil
}

// step performs exactly one phase transition. All protocol variants share
// this machine; they differ only in state preparation and tolerances.
func (s *Session) step() error {
	switch s.phase {
	case PhaseInitialized:
		return s.prepare()
	case PhasePrepared:
		return s.measure()
	case PhaseMeasured:
		return s.sift()
	case PhaseSifted:
		return s.estimateQBER()
	case PhaseErrorEstimated:
		return s.reconcile()
	case PhaseReconciled:
		return s.finalize()
	case PhaseAborted:
		return ErrSecurityAbort
	case PhaseKeyFinalized:
		return nil
	}
	return fmt.Errorf("qkd: session %s in unknown phase %d", s.id, int(s.phase))
}

func (s *Session) abort(reason string) error {
	s.phase = PhaseAborted
	return fmt.Errorf("%s: %w", reason, ErrSecurityAbort)
}

func (s *Session) stateID(round int) string {
	return fmt.Sprintf("qkd_%s_r%d", s.id, round)
}

// prepare runs Alice's side: one fresh state per round, a uniformly random
// basis choice, and for prepare-and-measure protocols a random bit encoded
// via PauliX then rotated by Hadamard when the diagonal basis was chosen.
// E91 rounds prepare a Bell pair instead; the bit values come out of the
// correlated measurements later.
func (s *Session) prepare() error {
	core := s.opts.Core
	qubits := 1
	if s.opts.Protocol == E91 {
		qubits = 2
	}
	for i := 0; i < s.rounds; i++ {
		id := s.stateID(i)
		if err := core.CreateCommState(id, qubits); err != nil {
			return fmt.Errorf("preparing round %d: %w", i, err)
		}
		basis := s.opts.Rand.Bit() == 1
		s.localBases.AppendBit(basis)

		if s.opts.Protocol == E91 {
			if err := core.CreateEntangledState(id); err != nil {
				return fmt.Errorf("preparing round %d: %w", i, err)
			}
			continue
		}

		bit := s.opts.Rand.Bit() == 1
		s.localBits.AppendBit(bit)
		if bit {
			if err := core.ApplyGate(id, quantum.PauliX, 0); err != nil {
				return fmt.Errorf("encoding round %d: %w", i, err)
			}
		}
		if basis {
			if err := core.ApplyGate(id, quantum.Hadamard, 0); err != nil {
				return fmt.Errorf("encoding round %d: %w", i, err)
			}
		}
	}
	s.phase = PhasePrepared
	return nil
}

// measure runs Bob's side: an independent random basis per round, a rotation
// back out of the diagonal basis where chosen, then a Born-rule measurement.
// Channel noise is injected here as a bit flip on the received value.
func (s *Session) measure() error {
	core := s.opts.Core
	for i := 0; i < s.rounds; i++ {
		id := s.stateID(i)
		basis := s.opts.Rand.Bit() == 1
		s.remoteBases.AppendBit(basis)

		if s.opts.Protocol == E91 {
			if s.localBases.Get(i) {
				if err := core.ApplyGate(id, quantum.Hadamard, 0); err != nil {
					return fmt.Errorf("measuring round %d: %w", i, err)
				}
			}
			if basis {
				if err := core.ApplyGate(id, quantum.Hadamard, 1); err != nil {
					return fmt.Errorf("measuring round %d: %w", i, err)
				}
			}
			bits, err := core.Measure(id, "qkd")
			if err != nil {
				return fmt.Errorf("measuring round %d: %w", i, err)
			}
			// MSB-first result: bits[1] is qubit 0 (Alice), bits[0] qubit 1.
			s.localBits.AppendBit(bits[1] == 1)
			s.remoteBits.AppendBit(s.noisy(bits[0]) == 1)
		} else {
			if basis {
				if err := core.ApplyGate(id, quantum.Hadamard, 0); err != nil {
					return fmt.Errorf("measuring round %d: %w", i, err)
				}
			}
			bits, err := core.Measure(id, "qkd")
			if err != nil {
				return fmt.Errorf("measuring round %d: %w", i, err)
			}
			s.remoteBits.AppendBit(s.noisy(bits[0]) == 1)
		}
		if err := core.RemoveState(id); err != nil {
			return fmt.Errorf("releasing round %d: %w", i, err)
		}
	}
	s.phase = PhaseMeasured
	return nil
}

func (s *Session) noisy(bit byte) byte {
	if s.opts.NoiseRate > 0 && s.opts.Rand.Float64() < s.opts.NoiseRate {
		return bit ^ 1
	}
	return bit
}

// sift keeps the rounds where both sides chose the same basis. For E91 the
// discarded rounds double as the Bell-correlation check: outcomes measured in
// mismatched bases must be uncorrelated, so strong agreement there means the
// source is not producing genuine entanglement.
func (s *Session) sift() error {
	mask := s.localBases.XNor(s.remoteBases)
	s.siftedLocal = s.localBits.Select(mask)
	s.siftedRemote = s.remoteBits.Select(mask)

	if s.opts.Protocol == E91 {
		discardA := s.localBits.Select(mask.Not())
		discardB := s.remoteBits.Select(mask.Not())
		if n := discardA.Size(); n > 0 {
			agree := float64(n-discardA.XOr(discardB).CountOnes()) / float64(n)
			if math.Abs(agree-0.5) > 0.25 {
				return s.abort(fmt.Sprintf("Bell correlation check failed (agreement %.2f)", agree))
			}
		}
	}
	s.phase = PhaseSifted
	return nil
}

// estimateQBER publicly compares a random sample of the sifted bits. The
// shuffle seed is shared over the classical channel so both sides sacrifice
// the same positions. Exceeding the protocol's tolerated error rate is
// treated as evidence of eavesdropping and fails the session closed.
func (s *Session) estimateQBER() error {
	n := s.siftedLocal.Size()
	k := int(s.opts.SampleProportion * float64(n))
	if k == 0 || n-k == 0 {
		return s.abort("too few sifted bits to estimate error rate")
	}

	seed := int64(s.opts.Rand.Uint64())
	a := bitarray.NewDense(s.siftedLocal.Data(), n)
	b := bitarray.NewDense(s.siftedRemote.Data(), n)
	a.Shuffle(rand.New(rand.NewSource(seed)))
	b.Shuffle(rand.New(rand.NewSource(seed)))

	sampledA, err := a.Slice(n-k, n)
	if err != nil {
		return err
	}
	sampledB, err := b.Slice(n-k, n)
	if err != nil {
		return err
	}
	s.qber = float64(sampledA.XOr(sampledB).CountOnes()) / float64(k)
	if s.qber > s.p.maxQBER {
		return s.abort(fmt.Sprintf("QBER %.4f exceeds %v tolerance %.4f",
			s.qber, s.opts.Protocol, s.p.maxQBER))
	}

	if s.unleakedLocal, err = a.Slice(0, n-k); err != nil {
		return err
	}
	if s.unleakedRemote, err = b.Slice(0, n-k); err != nil {
		return err
	}
	s.leakage = maxEveInfo(s.qber, n-k)
	s.phase = PhaseErrorEstimated
	return nil
}

// maxEveInfo bounds the bits of information an eavesdropper could have
// gained from a quantum exchange of n bits observed at the given error rate.
// See https://link.springer.com/article/10.1007/BF00191318.
func maxEveInfo(qber float64, n int) float64 {
	return 2 * math.Sqrt2 * qber * float64(n)
}

// reconcile runs the configured error-correction pass and then confirms both
// sides converged, standing in for the usual key-confirmation hash exchange.
// Divergence after reconciliation fails the session closed.
func (s *Session) reconcile() error {
	res, err := s.opts.Reconciler.Reconcile(s.unleakedLocal, s.unleakedRemote)
	if err != nil {
		return fmt.Errorf("reconciling session %s: %w", s.id, err)
	}
	if !res.a.Equal(res.b) {
		return s.abort("reconciliation failed to converge")
	}
	s.reconciled = res.a
	s.leakage += res.bitLeakage
	s.phase = PhaseReconciled
	return nil
}

// finalize compresses the reconciled bits through a Toeplitz universal-hash
// extractor sized by the leakage estimate, so the final key is always
// strictly shorter than the sifted string. When leakage accounting leaves no
// extractable bits the session aborts rather than emitting a weak key.
func (s *Session) finalize() error {
	n := s.reconciled.Size()
	m := n - int(math.Ceil(s.leakage+2*math.Log(1/s.opts.EpsilonPrivacy)))
	if m <= 0 {
		return s.abort("insufficient secret bits after leakage accounting")
	}
	if m > s.opts.KeyLength {
		m = s.opts.KeyLength
	}
	seed := bitarray.NewDense(s.opts.Rand.Bytes(bitarray.BytesFor(m+n-1)), m+n-1)
	t := toeplitz{diags: seed, m: m, n: n}
	key, err := t.Mul(s.reconciled)
	if err != nil {
		return fmt.Errorf("finalizing session %s: %w", s.id, err)
	}
	s.finalKey = key
	s.phase = PhaseKeyFinalized
	return nil
}
