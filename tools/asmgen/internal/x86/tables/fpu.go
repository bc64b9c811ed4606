// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package tables

import (
	"firefly-os.dev/tools/asmgen/internal/x86"
	"firefly-os.dev/tools/asmgen/internal/x86/desc"
)

// FloatingPoint returns descriptions of a
// subset of the x87 instructions.
//
// Intel x86 manuals, Volume 2D,
// Appendix A.4, Tables A-7 to A-22.
func FloatingPoint() []*desc.Description {
	t := newTable()

	// Memory forms use ModR/M groups that
	// only apply when mod is not 11. The
	// register forms with mod 11 are given
	// as two-byte opcodes below.
	// Their mnemonics carry the operand size,
	// as in external assemblers.
	groups := []struct {
		opcode  uint8
		name    string
		entries []string
	}{
		{0xd8, "FPD8", []string{"FADDS Md", "FMULS Md", "FCOMS Md", "FCOMPS Md", "FSUBS Md", "FSUBRS Md", "FDIVS Md", "FDIVRS Md"}},
		{0xd9, "FPD9", []string{0: "FLDS Md", 2: "FSTS Md", 3: "FSTPS Md", 5: "FLDCW Mw", 7: "FNSTCW Mw"}},
		{0xdd, "FPDD", []string{0: "FLDL Mq", 2: "FSTL Mq", 3: "FSTPL Mq"}},
	}

	for _, group := range groups {
		g := t.group(group.name)
		for reg, specs := range group.entries {
			if specs != "" {
				g.Add(uint8(reg), t.parse(specs), memory...)
			}
		}

		t.define("0x%02x %s", group.opcode, group.name)
	}

	// With ST as the destination, ST(0) is
	// written differently by external
	// assemblers, so it is not compared.
	for _, op := range []struct {
		opcode uint8
		name   string
	}{
		{0xc0, "FADD"},
		{0xc8, "FMUL"},
		{0xe0, "FSUB"},
		{0xe8, "FSUBR"},
		{0xf0, "FDIV"},
		{0xf8, "FDIVR"},
	} {
		d := t.define("0xd8 0x%02x %s ST ST(i)", op.opcode, op.name)
		d.Specs[4] = desc.Excluding{Spec: d.Specs[4], External: []x86.Argument{x86.ST0}}
	}

	t.define("0xd8 0xd0 FCOM ST(i)")
	t.define("0xd8 0xd8 FCOMP ST(i)")

	t.define("0xd9 0xc0 FLD ST(i)")
	t.define("0xd9 0xc8 FXCH ST(i)")
	t.define("0xd9 0xe0 FCHS")
	t.define("0xd9 0xe1 FABS")
	t.define("0xd9 0xe8 FLD1")
	t.define("0xd9 0xee FLDZ")
	t.define("0xd9 0xfa FSQRT")

	// External assemblers swap the names of
	// the reversed operations when the
	// destination is ST(i).
	t.define("0xdc 0xc0 FADD ST(i) ST")
	t.define("0xdc 0xc8 FMUL ST(i) ST")
	t.define("0xdc 0xe0 FSUBR ST(i) ST").External("fsub")
	t.define("0xdc 0xe8 FSUB ST(i) ST").External("fsubr")
	t.define("0xdc 0xf0 FDIVR ST(i) ST").External("fdiv")
	t.define("0xdc 0xf8 FDIV ST(i) ST").External("fdivr")

	t.define("0xdd 0xc0 FFREE ST(i)")
	t.define("0xdd 0xd0 FST ST(i)")
	t.define("0xdd 0xd8 FSTP ST(i)")

	t.define("0xde 0xc0 FADDP ST(i) ST")
	t.define("0xde 0xc8 FMULP ST(i) ST")
	t.define("0xde 0xd9 FCOMPP")
	t.define("0xde 0xe0 FSUBRP ST(i) ST").External("fsubp")
	t.define("0xde 0xe8 FSUBP ST(i) ST").External("fsubrp")
	t.define("0xde 0xf0 FDIVRP ST(i) ST").External("fdivp")
	t.define("0xde 0xf8 FDIVP ST(i) ST").External("fdivrp")

	t.define("0xdb 0xe2 FNCLEX")
	t.define("0xdb 0xe3 FNINIT")
	t.define("0xdf 0xe0 FNSTSW AX")

	return t.descs
}
