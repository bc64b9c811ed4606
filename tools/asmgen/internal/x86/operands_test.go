// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseOperandCode(t *testing.T) {
	tests := []struct {
		In   string
		Want OperandCode
		OK   bool
	}{
		{In: "Ev", Want: OperandCode{MethodE, TypeV}, OK: true},
		{In: "Gb", Want: OperandCode{MethodG, TypeB}, OK: true},
		{In: "Wps", Want: OperandCode{MethodW, TypePS}, OK: true},
		{In: "Vdq", Want: OperandCode{MethodV, TypeDQ}, OK: true},
		{In: "Zy", Want: OperandCode{MethodZ, TypeY}, OK: true},
		{In: "Jz", Want: OperandCode{MethodJ, TypeZ}, OK: true},
		{In: "Jv", OK: false},
		{In: "Sv", OK: false},
		{In: "Kq", OK: false},
		{In: "E", OK: false},
		{In: "AL", OK: false},
	}

	for _, test := range tests {
		got, ok := ParseOperandCode(test.In)
		if ok != test.OK {
			t.Errorf("ParseOperandCode(%q): got ok %v, want %v", test.In, ok, test.OK)
			continue
		}

		if diff := cmp.Diff(test.Want, got); diff != "" {
			t.Errorf("ParseOperandCode(%q): (-want, +got)\n%s", test.In, diff)
		}

		if ok && got.String() != test.In {
			t.Errorf("ParseOperandCode(%q).String(): got %q", test.In, got.String())
		}
	}
}

func TestOperandTypeBits(t *testing.T) {
	type result struct {
		Bits int
		OK   bool
	}

	tests := []struct {
		Name string
		Type OperandType
		Want map[Width]result
	}{
		{
			Name: "b",
			Type: TypeB,
			Want: map[Width]result{Bits16: {8, true}, Bits32: {8, true}, Bits64: {8, true}},
		},
		{
			Name: "v",
			Type: TypeV,
			Want: map[Width]result{Bits16: {16, true}, Bits32: {32, true}, Bits64: {64, true}},
		},
		{
			Name: "z",
			Type: TypeZ,
			Want: map[Width]result{Bits16: {16, true}, Bits32: {32, true}, Bits64: {32, true}},
		},
		{
			Name: "y",
			Type: TypeY,
			Want: map[Width]result{Bits16: {0, false}, Bits32: {32, true}, Bits64: {64, true}},
		},
		{
			Name: "dq",
			Type: TypeDQ,
			Want: map[Width]result{Bits16: {128, true}, Bits32: {128, true}, Bits64: {128, true}},
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			got := make(map[Width]result)
			for size := range test.Want {
				bits, ok := test.Type.Bits(size)
				got[size] = result{bits, ok}
			}

			if diff := cmp.Diff(test.Want, got); diff != "" {
				t.Fatalf("%s.Bits(): (-want, +got)\n%s", test.Type, diff)
			}
		})
	}
}

func TestAddressingMethodClasses(t *testing.T) {
	var rm, modrm, registerOnly []string
	for m := MethodA; m <= MethodZ; m++ {
		if m.UsesRM() {
			rm = append(rm, m.String())
		}
		if m.UsesModRM() {
			modrm = append(modrm, m.String())
		}
		if m.RegisterOnly() {
			registerOnly = append(registerOnly, m.String())
		}
	}

	if diff := cmp.Diff([]string{"E", "M", "N", "Q", "R", "U", "W"}, rm); diff != "" {
		t.Errorf("UsesRM: (-want, +got)\n%s", diff)
	}

	if diff := cmp.Diff([]string{"C", "D", "E", "G", "M", "N", "P", "Q", "R", "S", "U", "V", "W"}, modrm); diff != "" {
		t.Errorf("UsesModRM: (-want, +got)\n%s", diff)
	}

	if diff := cmp.Diff([]string{"N", "R", "U"}, registerOnly); diff != "" {
		t.Errorf("RegisterOnly: (-want, +got)\n%s", diff)
	}
}

func TestPlaceREX(t *testing.T) {
	tests := []struct {
		Place Place
		Want  Place
		Bit   int
	}{
		{PlaceModReg, PlaceModRegREXR, REXBitR},
		{PlaceModRM, PlaceModRMREXB, REXBitB},
		{PlaceSIBBase, PlaceSIBBaseREXB, REXBitB},
		{PlaceSIBIndex, PlaceSIBIndexREXX, REXBitX},
		{PlaceOpcode1, PlaceOpcode1REXB, REXBitB},
		{PlaceOpcode2, PlaceOpcode2REXB, REXBitB},
	}

	for _, test := range tests {
		got := test.Place.WithREX()
		if got != test.Want {
			t.Errorf("%s.WithREX(): got %s, want %s", test.Place, got, test.Want)
			continue
		}

		if _, ok := test.Place.REXBit(); ok {
			t.Errorf("%s.REXBit(): got ok", test.Place)
		}

		bit, ok := got.REXBit()
		if !ok || bit != test.Bit {
			t.Errorf("%s.REXBit(): got %d, %v, want %d", got, bit, ok, test.Bit)
		}
	}

	if got := PlaceSIBScale.WithREX(); got != PlaceSIBScale {
		t.Errorf("%s.WithREX(): got %s", PlaceSIBScale, got)
	}
}
