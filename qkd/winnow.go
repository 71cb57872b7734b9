package qkd

import (
	"errors"
	"fmt"
	"math/bits"
	"math/rand"

	"github.com/quantsec/qsc/bitarray"
)

// A WinnowReconciler implements the Reconciler interface via the Winnow
// algorithm, as described in https://arxiv.org/abs/quant-ph/0203096. Each
// iteration shuffles both strings with a shared seed, splits them into
// Hamming-code blocks, and repairs blocks whose total parities disagree by
// exchanging SECDED syndromes; the bits those announcements expose are then
// discarded, so the pass leaks nothing beyond what it removes.
type WinnowReconciler struct {
	// Iters gives the Hamming parity-bit count for each winnowing iteration,
	// i.e. an entry of h operates on blocks of 2^h bits. Defaults to
	// {3, 3, 4}.
	Iters []int

	// Rand drives the shared shuffles. Defaults to an unseeded source.
	Rand *rand.Rand
}

// Reconcile implements the Reconciler interface.
func (w WinnowReconciler) Reconcile(a, b bitarray.Dense) (reconcileResult, error) {
	if a.Size() != b.Size() {
		return reconcileResult{}, errors.New("reconciling strings of unequal length")
	}
	iters := w.Iters
	if iters == nil {
		iters = []int{3, 3, 4}
	}
	rnd := w.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(rand.Int63()))
	}

	var err error
	for _, hBits := range iters {
		if hBits < 2 {
			return reconcileResult{}, fmt.Errorf("winnow iteration needs at least 2 parity bits, got %d", hBits)
		}
		a, b, err = w.winnow(a, b, hBits, rnd)
		if err != nil {
			return reconcileResult{}, err
		}
	}
	return reconcileResult{a: a, b: b}, nil
}

func (w WinnowReconciler) winnow(a, b bitarray.Dense, hBits int, rnd *rand.Rand) (bitarray.Dense, bitarray.Dense, error) {
	bSize := 1 << hBits

	// A shared shuffle spreads adjacent errors across blocks. The tail that
	// doesn't fill a block is sacrificed.
	seed := rnd.Int63()
	a.Shuffle(rand.New(rand.NewSource(seed)))
	b.Shuffle(rand.New(rand.NewSource(seed)))
	whole := a.Size() - a.Size()%bSize
	a, err := a.Slice(0, whole)
	if err != nil {
		return bitarray.Empty(), bitarray.Empty(), err
	}
	if b, err = b.Slice(0, whole); err != nil {
		return bitarray.Empty(), bitarray.Empty(), err
	}

	synA, err := w.syndromes(a, hBits)
	if err != nil {
		return bitarray.Empty(), bitarray.Empty(), err
	}
	synB, err := w.syndromes(b, hBits)
	if err != nil {
		return bitarray.Empty(), bitarray.Empty(), err
	}

	// Blocks whose total parities disagree hold an odd number of errors;
	// those get the full syndrome treatment.
	todo := bitarray.Empty()
	for i := range synA {
		todo.AppendBit(synA[i].Get(hBits) != synB[i].Get(hBits))
	}

	for i := 0; i < todo.Size(); i++ {
		if !todo.Get(i) {
			continue
		}
		synSum := synA[i].XOr(synB[i])
		pos := 0
		for j := 0; j < hBits; j++ {
			if synSum.Get(j) {
				pos |= 1 << j
			}
		}
		pos-- // cardinal/ordinal correction
		if pos < 0 {
			pos = bSize - 1 // total parity flip
		}
		b.Flip(i*bSize + pos)
	}

	keep := privacyMask(todo, hBits)
	return a.Select(keep), b.Select(keep), nil
}

// privacyMask marks the bits to retain after an iteration: every block loses
// its final bit to pay for the total-parity comparison, and blocks that had
// full syndromes announced additionally lose the bits at Hamming parity
// positions.
func privacyMask(todo bitarray.Dense, hBits int) bitarray.Dense {
	keep := bitarray.Empty()
	n := 1 << hBits
	for i := 0; i < todo.Size(); i++ {
		if !todo.Get(i) {
			for j := 0; j < n-1; j++ {
				keep.AppendBit(true)
			}
			keep.AppendBit(false)
			continue
		}
		for j := 0; j < n; j++ {
			keep.AppendBit(bits.OnesCount(uint(j+1)) != 1)
		}
	}
	return keep
}

func (w WinnowReconciler) syndromes(x bitarray.Dense, hBits int) ([]bitarray.Dense, error) {
	var r []bitarray.Dense
	bSize := 1 << hBits
	for i := 0; i < x.Size(); i += bSize {
		block, err := x.Slice(i, i+bSize)
		if err != nil {
			return nil, err
		}
		syndrome, err := w.secded(block, hBits)
		if err != nil {
			return nil, err
		}
		r = append(r, syndrome)
	}
	return r, nil
}

func (w WinnowReconciler) secded(block bitarray.Dense, hBits int) (bitarray.Dense, error) {
	if block.Size() != 1<<hBits {
		return bitarray.Empty(), fmt.Errorf(
			"hamming SECDED with %d parity bits needs block of %d, got %d", hBits, 1<<hBits, block.Size())
	}
	r := bitarray.Empty()

	// The p-th hamming parity bit checks the parity of bits in strides of
	// 2^p. E.g. the 0th bit checks positions {0, 2, 4, ...}, the 1st checks
	// {1,2, 5,6, ...}, the 2nd {3,4,5,6, 11,12,13,14, ...}.
	for p := 0; p < hBits; p++ {
		stride := 1 << p
		parity := false
		for i := stride - 1; i < block.Size(); i += 2 * stride {
			for j := i; j < i+stride && j < block.Size(); j++ {
				parity = (block.Get(j) != parity)
			}
		}
		r.AppendBit(parity)
	}

	// Finish by inserting a total parity bit.
	r.AppendBit(block.Parity())

	return r, nil
}
