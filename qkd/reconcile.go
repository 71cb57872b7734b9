package qkd

import (
	"errors"

	"github.com/quantsec/qsc/bitarray"
)

// DefaultBlockSize is the block width used by MajorityReconciler when none
// is configured.
const DefaultBlockSize = 4

// A MajorityReconciler is a simplified error-correction pass. The two sides
// split their strings into fixed-width blocks and publicly compare block
// parities. Blocks with matching parity are kept, minus their final bit to
// compensate the announced parity. Blocks with mismatched parity hold an odd
// number of errors; the first side announces its block's majority bit and
// both sides adopt it, so mismatched blocks always converge. Blocks with an
// even error count pass the parity screen undetected and are caught by the
// session's convergence check.
type MajorityReconciler struct {
	// BlockSize is the width of the comparison blocks. Defaults to
	// DefaultBlockSize.
	BlockSize int
}

// Reconcile implements the Reconciler interface.
func (m MajorityReconciler) Reconcile(a, b bitarray.Dense) (reconcileResult, error) {
	bs := m.BlockSize
	if bs == 0 {
		bs = DefaultBlockSize
	}
	if bs < 2 {
		return reconcileResult{}, errors.New("block size must be at least 2")
	}
	if a.Size() != b.Size() {
		return reconcileResult{}, errors.New("reconciling strings of unequal length")
	}

	var outA, outB bitarray.Dense
	var leakage float64
	for start := 0; start+bs <= a.Size(); start += bs {
		blockA, err := a.Slice(start, start+bs)
		if err != nil {
			return reconcileResult{}, err
		}
		blockB, err := b.Slice(start, start+bs)
		if err != nil {
			return reconcileResult{}, err
		}
		if blockA.Parity() == blockB.Parity() {
			for i := 0; i < bs-1; i++ {
				outA.AppendBit(blockA.Get(i))
				outB.AppendBit(blockB.Get(i))
			}
			continue
		}
		// The first side's majority bit is announced and adopted by both.
		// Neither that announcement nor the parity comparison is compensated
		// by a discard, so both count against the secret-bit budget.
		adopted := majority(blockA)
		outA.AppendBit(adopted)
		outB.AppendBit(adopted)
		leakage += 2
	}
	return reconcileResult{a: outA, b: outB, bitLeakage: leakage}, nil
}

// majority returns the most common bit value in d, breaking ties in favor
// of 1.
func majority(d bitarray.Dense) bool {
	return 2*d.CountOnes() >= d.Size()
}
