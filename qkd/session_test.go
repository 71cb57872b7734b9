package qkd

import (
	"errors"
	"testing"

	"github.com/quantsec/qsc/quantum"
)

func testEngine(t *testing.T) *quantum.Core {
	t.Helper()
	cfg := quantum.DefaultConfig()
	cfg.EnableHardware = false
	core, err := quantum.New(cfg, nil)
	if err != nil {
		t.Fatalf("constructing core: %v", err)
	}
	return core
}

func TestSessionProducesKey(t *testing.T) {
	tcs := []struct {
		name       string
		protocol   Protocol
		reconciler Reconciler
	}{
		{"bb84 majority", BB84, nil},
		{"bb84 winnow", BB84, WinnowReconciler{}},
		{"e91", E91, nil},
		{"sarg04", SARG04, nil},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			sess, err := NewSession(SessionOpts{
				Protocol:   tc.protocol,
				Core:       testEngine(t),
				Reconciler: tc.reconciler,
			})
			if err != nil {
				t.Fatalf("constructing session: %v", err)
			}
			key, report, err := sess.Run()
			if err != nil {
				t.Fatalf("negotiating on a clean channel: %v", err)
			}
			if report.Phase != PhaseKeyFinalized {
				t.Errorf("ended in phase %v, want %v", report.Phase, PhaseKeyFinalized)
			}
			if key.Size() == 0 {
				t.Error("clean channel produced an empty key")
			}
			if key.Size() > DefaultKeyLength {
				t.Errorf("got %d key bits, requested %d", key.Size(), DefaultKeyLength)
			}
			if key.Size() >= report.SiftedBits {
				t.Errorf("final key (%d bits) not shorter than sifted string (%d bits)",
					key.Size(), report.SiftedBits)
			}
			if report.QBER != 0 {
				t.Errorf("observed QBER %v on a noiseless channel", report.QBER)
			}
			if report.FinalKeyBits != key.Size() {
				t.Errorf("report says %d key bits, key has %d", report.FinalKeyBits, key.Size())
			}
			p := tc.protocol.params()
			if report.RawBits != DefaultKeyLength*p.oversample {
				t.Errorf("exchanged %d raw bits, want %d", report.RawBits, DefaultKeyLength*p.oversample)
			}
			if report.Fidelity != p.fidelity {
				t.Errorf("got fidelity %v, want %v with zero QBER", report.Fidelity, p.fidelity)
			}
		})
	}
}

func TestSubThresholdNoiseMostlyNegotiates(t *testing.T) {
	// Noise well inside BB84's tolerance must not sink most sessions. A few
	// can still lose to an unlucky QBER sample or an even-error block, but
	// the majority have to finish with a key.
	const runs = 10
	finished := 0
	for i := 0; i < runs; i++ {
		sess, err := NewSession(SessionOpts{
			Core:      testEngine(t),
			NoiseRate: 0.005,
		})
		if err != nil {
			t.Fatalf("constructing session: %v", err)
		}
		key, report, err := sess.Run()
		if err != nil {
			continue
		}
		if report.Phase != PhaseKeyFinalized {
			t.Fatalf("run %d ended in phase %v without erroring", i, report.Phase)
		}
		if key.Size() == 0 {
			t.Fatalf("run %d finished with an empty key", i)
		}
		finished++
	}
	if finished < runs/2 {
		t.Errorf("only %d of %d sessions finished under sub-threshold noise", finished, runs)
	}
}

func TestNoisyChannelFailsClosed(t *testing.T) {
	sess, err := NewSession(SessionOpts{
		Core:      testEngine(t),
		NoiseRate: 0.3,
	})
	if err != nil {
		t.Fatalf("constructing session: %v", err)
	}
	key, report, err := sess.Run()
	if !errors.Is(err, ErrSecurityAbort) {
		t.Fatalf("got %v, want ErrSecurityAbort", err)
	}
	if key.Size() != 0 {
		t.Errorf("aborted session still returned %d key bits", key.Size())
	}
	if report.Phase != PhaseAborted {
		t.Errorf("ended in phase %v, want %v", report.Phase, PhaseAborted)
	}
	if report.Fidelity != 0 {
		t.Errorf("aborted session reported fidelity %v, want 0", report.Fidelity)
	}
	if report.QBER <= SARG04.params().maxQBER {
		t.Errorf("observed QBER %v, expected well above every protocol tolerance", report.QBER)
	}
}

func TestAbortedSessionStaysAborted(t *testing.T) {
	sess, err := NewSession(SessionOpts{
		Core:      testEngine(t),
		NoiseRate: 0.3,
	})
	if err != nil {
		t.Fatalf("constructing session: %v", err)
	}
	if _, _, err := sess.Run(); !errors.Is(err, ErrSecurityAbort) {
		t.Fatalf("got %v, want ErrSecurityAbort", err)
	}
	if err := sess.step(); !errors.Is(err, ErrSecurityAbort) {
		t.Errorf("stepping an aborted session: got %v, want ErrSecurityAbort", err)
	}
}

func TestNewSessionValidation(t *testing.T) {
	core := testEngine(t)
	narrow := func(t *testing.T) *quantum.Core {
		cfg := quantum.DefaultConfig()
		cfg.MaxQubits = 1
		cfg.EnableHardware = false
		c, err := quantum.New(cfg, nil)
		if err != nil {
			t.Fatalf("constructing core: %v", err)
		}
		return c
	}

	tcs := []struct {
		name string
		opts SessionOpts
	}{
		{"missing core", SessionOpts{}},
		{"negative key length", SessionOpts{Core: core, KeyLength: -1}},
		{"negative noise", SessionOpts{Core: core, NoiseRate: -0.1}},
		{"noise above one", SessionOpts{Core: core, NoiseRate: 1.1}},
		{"sample proportion too large", SessionOpts{Core: core, SampleProportion: 1}},
		{"sample proportion negative", SessionOpts{Core: core, SampleProportion: -0.5}},
		{"e91 narrow core", SessionOpts{Core: narrow(t), Protocol: E91}},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSession(tc.opts); err == nil {
				t.Error("NewSession accepted nonsensical options")
			}
		})
	}
}

func TestNewSessionDefaults(t *testing.T) {
	sess, err := NewSession(SessionOpts{Core: testEngine(t)})
	if err != nil {
		t.Fatalf("constructing session: %v", err)
	}
	if sess.opts.KeyLength != DefaultKeyLength {
		t.Errorf("got key length %d, want %d", sess.opts.KeyLength, DefaultKeyLength)
	}
	if sess.opts.SampleProportion != DefaultSampleProportion {
		t.Errorf("got sample proportion %v, want %v", sess.opts.SampleProportion, DefaultSampleProportion)
	}
	if sess.opts.EpsilonPrivacy != DefaultEpsilonPrivacy {
		t.Errorf("got epsilon %v, want %v", sess.opts.EpsilonPrivacy, DefaultEpsilonPrivacy)
	}
	if _, ok := sess.opts.Reconciler.(MajorityReconciler); !ok {
		t.Errorf("got reconciler %T, want MajorityReconciler", sess.opts.Reconciler)
	}
	if sess.Phase() != PhaseInitialized {
		t.Errorf("fresh session in phase %v, want %v", sess.Phase(), PhaseInitialized)
	}
	if sess.ID() == "" {
		t.Error("session has no id")
	}
}

func TestSessionsReleaseStates(t *testing.T) {
	core := testEngine(t)
	sess, err := NewSession(SessionOpts{Core: core})
	if err != nil {
		t.Fatalf("constructing session: %v", err)
	}
	if _, _, err := sess.Run(); err != nil {
		t.Fatalf("negotiating: %v", err)
	}
	// Every per-round state is removed after measurement, so another session
	// on the same core starts clean.
	again, err := NewSession(SessionOpts{Core: core})
	if err != nil {
		t.Fatalf("constructing second session: %v", err)
	}
	if _, _, err := again.Run(); err != nil {
		t.Fatalf("second negotiation on a shared core: %v", err)
	}
}

func TestPhaseString(t *testing.T) {
	for p, want := range map[Phase]string{
		PhaseInitialized:    "Initialized",
		PhasePrepared:       "Prepared",
		PhaseMeasured:       "Measured",
		PhaseSifted:         "Sifted",
		PhaseErrorEstimated: "ErrorEstimated",
		PhaseReconciled:     "Reconciled",
		PhaseKeyFinalized:   "KeyFinalized",
		PhaseAborted:        "Aborted",
		Phase(42):           "Phase(42)",
	} {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() == %q, want %q", int(p), got, want)
		}
	}
}

func TestProtocolString(t *testing.T) {
	for p, want := range map[Protocol]string{
		BB84: "BB84", E91: "E91", SARG04: "SARG04", Protocol(9): "unknown",
	} {
		if got := p.String(); got != want {
			t.Errorf("Protocol.String() == %q, want %q", got, want)
		}
	}
}
