package bitarray

import (
	"bytes"
	"math/rand"
	"reflect"
	"testing"
)

func mustDense(t *testing.T, s string) Dense {
	t.Helper()
	d, err := FromString(s)
	if err != nil {
		t.Fatalf("bugged test setup: %v", err)
	}
	return d
}

func TestFromStringRejectsJunk(t *testing.T) {
	if _, err := FromString("0110x1"); err == nil {
		t.Error("FromString accepted a non-bit rune")
	}
}

func TestFromStringIgnoresGrouping(t *testing.T) {
	grouped, err := FromString(" 1010 1111\t01 ")
	if err != nil {
		t.Fatalf("FromString() == %v, want success", err)
	}
	if !grouped.Equal(mustDense(t, "1010111101")) {
		t.Errorf("FromString dropped or reordered grouped bits: %v", grouped)
	}
	if grouped.Size() != 10 {
		t.Errorf("grouped.Size() == %d, want 10", grouped.Size())
	}
}

func TestDenseGet(t *testing.T) {
	tcs := []struct {
		name  string
		data  Dense
		edata []bool
	}{
		{"aligned", mustDense(t, "10101010"), []bool{true, false, true, false, true, false, true, false}},
		{"multibyte",
			mustDense(t, "00000000 101"),
			[]bool{false, false, false, false, false, false, false, false, true, false, true}},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			var d []bool
			for i := 0; i < tc.data.Size(); i++ {
				d = append(d, tc.data.Get(i))
			}
			if !reflect.DeepEqual(d, tc.edata) {
				t.Errorf("t.Get() == %v, want %v", d, tc.edata)
			}
		})
	}
}

func TestDenseGetOutOfRange(t *testing.T) {
	d := mustDense(t, "111")
	for _, idx := range []int{-1, 3, 100} {
		if d.Get(idx) {
			t.Errorf("Get(%d) == true on a 3-bit array", idx)
		}
	}
}

func TestDenseAppend(t *testing.T) {
	tcs := []struct {
		name string
		a, b Dense
		eout Dense
	}{
		{
			name: "short",
			a:    mustDense(t, "101"),
			b:    mustDense(t, "111"),
			eout: mustDense(t, "101111"),
		}, {
			name: "aligned",
			a:    mustDense(t, "10101010"),
			b:    mustDense(t, "01010101"),
			eout: mustDense(t, "10101010 01010101"),
		}, {
			name: "unaligned",
			a:    mustDense(t, "10101010 01"),
			b:    mustDense(t, "01010101"),
			eout: mustDense(t, "10101010 01 01010101"),
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			tc.a.Append(tc.b)
			if tc.a.Size() != tc.eout.Size() {
				t.Errorf("got bit array of len %d, want %d", tc.a.Size(), tc.eout.Size())
			}
			if !bytes.Equal(tc.a.Data(), tc.eout.Data()) {
				t.Errorf("got %v, want %v", tc.a.Data(), tc.eout.Data())
			}
		})
	}
}

func TestNewDensePadsAndCopies(t *testing.T) {
	raw := []byte{0xff}
	d := NewDense(raw, 12)
	if d.Size() != 12 {
		t.Errorf("got bit array of len %d, want 12", d.Size())
	}
	raw[0] = 0
	if got := d.Data()[0]; got != 0xff {
		t.Errorf("mutating the source slice changed the array: got %#x, want 0xff", got)
	}
	if d.CountOnes() != 8 {
		t.Errorf("got %d ones, want 8", d.CountOnes())
	}
}

func TestNewDenseTruncatesTail(t *testing.T) {
	d := NewDense([]byte{0xff}, 3)
	if d.CountOnes() != 3 {
		t.Errorf("got %d ones, want 3", d.CountOnes())
	}
	if got := d.Data()[0]; got != 0x07 {
		t.Errorf("tail bits not cleared: got %#x, want 0x07", got)
	}
}

func TestBinaryOperators(t *testing.T) {
	tcs := []struct {
		name string
		a, b Dense
		eout Dense
		op   func(a, b Dense) Dense
	}{
		{
			name: "AND aligned",
			a:    mustDense(t, "10100000"),
			b:    mustDense(t, "01100000"),
			eout: mustDense(t, "00100000"),
			op:   Dense.And,
		}, {
			name: "AND short a",
			a:    mustDense(t, "101"),
			b:    mustDense(t, "01111000"),
			eout: mustDense(t, "001"),
			op:   Dense.And,
		}, {
			name: "AND short b",
			a:    mustDense(t, "01111000"),
			b:    mustDense(t, "101"),
			eout: mustDense(t, "001"),
			op:   Dense.And,
		},

		{
			name: "OR aligned",
			a:    mustDense(t, "10100000"),
			b:    mustDense(t, "01100000"),
			eout: mustDense(t, "11100000"),
			op:   Dense.Or,
		}, {
			name: "OR short a",
			a:    mustDense(t, "101"),
			b:    mustDense(t, "01111000"),
			eout: mustDense(t, "11111000"),
			op:   Dense.Or,
		},

		{
			name: "XOR aligned",
			a:    mustDense(t, "10100000"),
			b:    mustDense(t, "01100000"),
			eout: mustDense(t, "11000000"),
			op:   Dense.XOr,
		}, {
			name: "XOR short a",
			a:    mustDense(t, "101"),
			b:    mustDense(t, "01111000"),
			eout: mustDense(t, "11011000"),
			op:   Dense.XOr,
		},

		{
			name: "XNOR aligned",
			a:    mustDense(t, "10100000"),
			b:    mustDense(t, "01100000"),
			eout: mustDense(t, "00111111"),
			op:   Dense.XNor,
		}, {
			name: "XNOR short a",
			a:    mustDense(t, "101"),
			b:    mustDense(t, "01111000"),
			eout: mustDense(t, "00100111"),
			op:   Dense.XNor,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out := tc.op(tc.a, tc.b)
			if out.Size() != tc.eout.Size() {
				t.Errorf("got bit array of len %d, want %d", out.Size(), tc.eout.Size())
			}
			if !bytes.Equal(out.Data(), tc.eout.Data()) {
				t.Errorf("got %v, want %v", out.Data(), tc.eout.Data())
			}
		})
	}
}

func TestNot(t *testing.T) {
	d := mustDense(t, "10100011 110")
	want := mustDense(t, "01011100 001")
	out := d.Not()
	if !out.Equal(want) {
		t.Errorf("Not(%v) == %v, want %v", d.Data(), out.Data(), want.Data())
	}
}

func TestParity(t *testing.T) {
	tcs := []struct {
		name string
		data Dense
		eout bool
	}{
		{"short even", mustDense(t, "101"), false},
		{"short odd", mustDense(t, "111"), true},
		{"empty", mustDense(t, ""), false},
		{"multibyte even", mustDense(t, "1111 1111 11"), false},
		{"multibyte odd", mustDense(t, "1111 1111 10"), true},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if out := tc.data.Parity(); out != tc.eout {
				t.Errorf("Parity(%v) == %v, want %v", tc.data.Data(), out, tc.eout)
			}
		})
	}
}

func TestCountOnes(t *testing.T) {
	tcs := []struct {
		name string
		data Dense
		eout int
	}{
		{"short", mustDense(t, "101"), 2},
		{"empty", mustDense(t, ""), 0},
		{"multibyte one", mustDense(t, "1111 1111 11"), 10},
		{"multibyte two", mustDense(t, "1011 1011 10"), 7},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if out := tc.data.CountOnes(); out != tc.eout {
				t.Errorf("CountOnes(%v) == %v, want %v", tc.data.Data(), out, tc.eout)
			}
		})
	}
}

func TestDot(t *testing.T) {
	tcs := []struct {
		name string
		a, b Dense
		eout bool
	}{
		{"orthogonal", mustDense(t, "1010"), mustDense(t, "0101"), false},
		{"overlap one", mustDense(t, "1010"), mustDense(t, "1101"), true},
		{"overlap two", mustDense(t, "1110"), mustDense(t, "1101"), false},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if out := tc.a.Dot(tc.b); out != tc.eout {
				t.Errorf("Dot(%v, %v) == %v, want %v", tc.a.Data(), tc.b.Data(), out, tc.eout)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	tcs := []struct {
		name string
		data Dense
		mask Dense
		eout Dense
	}{
		{
			name: "all",
			data: mustDense(t, "101"),
			mask: mustDense(t, "111"),
			eout: mustDense(t, "101"),
		}, {
			name: "some",
			data: mustDense(t, "10100011"),
			mask: mustDense(t, "11111100"),
			eout: mustDense(t, "101000"),
		}, {
			name: "none",
			data: mustDense(t, "10100011 111"),
			mask: mustDense(t, "00000000 000"),
			eout: mustDense(t, ""),
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out := tc.data.Select(tc.mask)
			if out.Size() != tc.eout.Size() {
				t.Errorf("got bit array of len %d, want %d", out.Size(), tc.eout.Size())
			}
			if !bytes.Equal(out.Data(), tc.eout.Data()) {
				t.Errorf("Select(%v, %v) == %v, want %v", tc.data.Data(), tc.mask.Data(), out.Data(), tc.eout.Data())
			}
		})
	}
}

func TestSlice(t *testing.T) {
	tcs := []struct {
		name       string
		data       Dense
		start, end int
		eout       Dense
		wantErr    bool
	}{
		{
			name: "aligned",
			data: mustDense(t, "10100011 1100"),
			start: 0, end: 8,
			eout: mustDense(t, "10100011"),
		}, {
			name: "unaligned",
			data: mustDense(t, "10100011 1100"),
			start: 3, end: 10,
			eout: mustDense(t, "0001111"),
		}, {
			name: "empty",
			data: mustDense(t, "101"),
			start: 2, end: 2,
			eout: mustDense(t, ""),
		}, {
			name: "past end",
			data: mustDense(t, "101"),
			start: 0, end: 4,
			wantErr: true,
		}, {
			name: "inverted",
			data: mustDense(t, "101"),
			start: 2, end: 1,
			wantErr: true,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out, err := tc.data.Slice(tc.start, tc.end)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Slice(%d, %d) succeeded, want error", tc.start, tc.end)
				}
				return
			}
			if err != nil {
				t.Fatalf("Slice(%d, %d): %v", tc.start, tc.end, err)
			}
			if !out.Equal(tc.eout) {
				t.Errorf("Slice(%d, %d) == %v, want %v", tc.start, tc.end, out.Data(), tc.eout.Data())
			}
		})
	}
}

func TestShuffleSharedSeedsAgree(t *testing.T) {
	a := NewDense([]byte{0xde, 0xad, 0xbe, 0xef}, 30)
	b := NewDense(a.Data(), 30)
	a.Shuffle(rand.New(rand.NewSource(42)))
	b.Shuffle(rand.New(rand.NewSource(42)))
	if !a.Equal(b) {
		t.Errorf("identically seeded shuffles diverged: %v vs %v", a.Data(), b.Data())
	}
	if a.CountOnes() != 22 {
		t.Errorf("shuffle changed the number of set bits: got %d, want 22", a.CountOnes())
	}
}

func TestFlipRoundTrips(t *testing.T) {
	d := mustDense(t, "0000 0000 00")
	d.Flip(9)
	if !d.Get(9) {
		t.Fatal("Flip(9) left bit 9 clear")
	}
	d.Flip(9)
	if d.Get(9) {
		t.Fatal("double Flip(9) left bit 9 set")
	}
}

func TestBytesFor(t *testing.T) {
	tcs := []struct{ bits, want int }{
		{0, 0}, {1, 1}, {8, 1}, {9, 2}, {16, 2}, {17, 3},
	}
	for _, tc := range tcs {
		if got := BytesFor(tc.bits); got != tc.want {
			t.Errorf("BytesFor(%d) == %d, want %d", tc.bits, got, tc.want)
		}
	}
}
