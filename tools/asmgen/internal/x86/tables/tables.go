// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package tables contains the built-in instruction
// descriptions: a subset of the one-byte and two-byte
// opcode maps and of the x87 opcode map.
//
// Intel x86 manuals, Volume 2D, Appendix A.
package tables

import (
	"fmt"
	"strings"

	"firefly-os.dev/tools/asmgen/internal/x86"
	"firefly-os.dev/tools/asmgen/internal/x86/desc"
)

// table accumulates descriptions and
// the groups they use.
type table struct {
	groups map[string]*desc.Group
	descs  []*desc.Description
}

func newTable() *table {
	return &table{groups: make(map[string]*desc.Group)}
}

// parse parses a space-separated list of
// tokens. The built-in tables are fixed,
// so a parse error is a bug.
func (t *table) parse(format string, args ...any) *desc.Description {
	s := fmt.Sprintf(format, args...)
	d := new(desc.Description)
	for _, field := range strings.Fields(s) {
		spec, err := desc.ParseSpec(field, t.groups)
		if err != nil {
			panic(fmt.Sprintf("invalid built-in description %q: %v", s, err))
		}

		d.Specs = append(d.Specs, spec)
	}

	return d
}

// define adds a description.
func (t *table) define(format string, args ...any) *desc.Description {
	d := t.parse(format, args...)
	t.descs = append(t.descs, d)
	return d
}

// group creates a ModR/M group.
func (t *table) group(name string) *desc.Group {
	g := desc.NewGroup(name)
	t.groups[name] = g
	return g
}

// memory lists the mod cases of
// memory operands.
var memory = []x86.ModCase{x86.Mod00, x86.Mod01, x86.Mod10}

var conditions = []string{"O", "NO", "B", "AE", "E", "NE", "BE", "A", "S", "NS", "P", "NP", "L", "GE", "LE", "G"}

// All returns every built-in description
// for a target with the given address
// width.
func All(addressWidth x86.Width) []*desc.Description {
	descs := GeneralPurpose(addressWidth)
	descs = append(descs, Media()...)
	descs = append(descs, FloatingPoint()...)
	return descs
}

// GeneralPurpose returns descriptions of
// general purpose instructions.
func GeneralPurpose(addressWidth x86.Width) []*desc.Description {
	t := newTable()

	arithmetic := []string{"ADD", "OR", "ADC", "SBB", "AND", "SUB", "XOR", "CMP"}
	group1 := t.group("GROUP1")
	for i, name := range arithmetic {
		base := i * 8
		t.define("0x%02x %s Eb Gb", base+0, name)
		t.define("0x%02x %s Ev Gv", base+1, name)
		t.define("0x%02x %s Gb Eb", base+2, name)
		t.define("0x%02x %s Gv Ev", base+3, name)
		t.define("0x%02x %s AL Ib", base+4, name)
		t.define("0x%02x %s rAX Iz", base+5, name)
		group1.Add(uint8(i), t.parse(name))
	}

	t.define("0x80 GROUP1 Eb Ib")
	t.define("0x81 GROUP1 Ev Iz")
	t.define("0x83 GROUP1 Ev Ib")

	t.define("0x50 PUSH Zv").Default64()
	t.define("0x58 POP Zv").Default64()
	t.define("0x68 PUSH Iz").Default64()
	t.define("0x6a PUSH Ib").Default64()
	t.group("GROUP1A").Add(0, t.parse("POP"))
	t.define("0x8f GROUP1A Ev").Default64()

	t.define("0x69 IMUL Gv Ev Iz")
	t.define("0x6b IMUL Gv Ev Ib")
	t.define("0x0f 0xaf IMUL Gv Ev")

	for i, cc := range conditions {
		t.define("0x%02x J%s Jb", 0x70+i, cc).Default64()
		t.define("0x0f 0x%02x J%s Jz", 0x80+i, cc).Default64()
		t.define("0x0f 0x%02x CMOV%s Gv Ev", 0x40+i, cc)
	}

	t.define("0x84 TEST Eb Gb")
	t.define("0x85 TEST Ev Gv")
	t.define("0xa8 TEST AL Ib")
	t.define("0xa9 TEST rAX Iz")
	t.define("0x86 XCHG Eb Gb")
	t.define("0x87 XCHG Ev Gv")

	t.define("0x88 MOV Eb Gb")
	t.define("0x89 MOV Ev Gv")
	t.define("0x8a MOV Gb Eb")
	t.define("0x8b MOV Gv Ev")
	t.define("0x8c MOV Ew Sw")
	mov := t.define("0x8e MOV Sw Ew")
	// Loading CS with MOV is undefined.
	mov.Specs[2] = desc.Excluding{Spec: mov.Specs[2], Args: []x86.Argument{x86.CS}}
	t.define("0x8d LEA Gv M")
	t.define("0xa0 MOV AL Ob")
	t.define("0xa1 MOV rAX Ov")
	t.define("0xa2 MOV Ob AL")
	t.define("0xa3 MOV Ov rAX")
	t.define("0xb0 MOV Zb Ib")
	t.define("0xb8 MOV Zv Iv")
	group11b := t.group("GROUP11B")
	group11b.Add(0, t.parse("MOV"))
	t.define("0xc6 GROUP11B Eb Ib")
	group11v := t.group("GROUP11V")
	group11v.Add(0, t.parse("MOV"))
	t.define("0xc7 GROUP11V Ev Iz")

	t.define("0x90 NOP")
	t.group("GROUPNOP").Add(0, t.parse("NOP"))
	t.define("0x0f 0x1f GROUPNOP Ev")

	t.define("0xa4 MOVSB")
	t.define("0xaa STOS Yb AL")
	t.define("0xab STOS Yv rAX")
	t.define("0xac LODS AL Xb")
	t.define("0xad LODS rAX Xv")

	shifts := map[uint8]string{0: "ROL", 1: "ROR", 2: "RCL", 3: "RCR", 4: "SHL", 5: "SHR", 7: "SAR"}
	group2 := t.group("GROUP2")
	for i := uint8(0); i < 8; i++ {
		if name, ok := shifts[i]; ok {
			group2.Add(i, t.parse(name))
		}
	}

	t.define("0xc0 GROUP2 Eb Ib")
	t.define("0xc1 GROUP2 Ev Ib")
	t.define("0xd0 GROUP2 Eb 1")
	t.define("0xd1 GROUP2 Ev 1")
	t.define("0xd2 GROUP2 Eb CL")
	t.define("0xd3 GROUP2 Ev CL")

	t.define("0xc2 RET Iw").Default64()
	t.define("0xc3 RET").Default64()
	t.define("0xc8 ENTER Iw Ib").Default64()
	t.define("0xc9 LEAVE").Default64()
	t.define("0xcc INT 3")
	t.define("0xcd INT Ib")
	t.define("0xe8 CALL Jz").Default64()
	t.define("0xe9 JMP Jz").Default64()
	t.define("0xeb JMP Jb").Default64()

	t.define("0xe4 IN AL Ib")
	t.define("0xe5 IN eAX Ib")
	t.define("0xec IN AL DX")
	t.define("0xed IN eAX DX")
	t.define("0xe6 OUT Ib AL")
	t.define("0xe7 OUT Ib eAX")
	t.define("0xee OUT DX AL")
	t.define("0xef OUT DX eAX")

	for i, name := range []string{"HLT", "CMC"} {
		t.define("0x%02x %s", 0xf4+i, name)
	}

	for i, name := range []string{"CLC", "STC", "CLI", "STI", "CLD", "STD"} {
		t.define("0x%02x %s", 0xf8+i, name)
	}

	unary := map[uint8]string{2: "NOT", 3: "NEG", 4: "MUL", 5: "IMUL", 6: "DIV", 7: "IDIV"}
	group3b := t.group("GROUP3B")
	group3v := t.group("GROUP3V")
	group3b.Add(0, t.parse("TEST Ib"))
	group3v.Add(0, t.parse("TEST Iz"))
	for i := uint8(2); i < 8; i++ {
		group3b.Add(i, t.parse(unary[i]))
		group3v.Add(i, t.parse(unary[i]))
	}

	t.define("0xf6 GROUP3B Eb")
	t.define("0xf7 GROUP3V Ev")

	t.group("GROUP4").Add(0, t.parse("INC")).Add(1, t.parse("DEC"))
	t.define("0xfe GROUP4 Eb")
	t.group("GROUP5").Add(0, t.parse("INC")).Add(1, t.parse("DEC"))
	t.define("0xff GROUP5 Ev")
	t.group("GROUP5B").Add(2, t.parse("CALL")).Add(4, t.parse("JMP")).Add(6, t.parse("PUSH"))
	t.define("0xff GROUP5B Ev").Default64()

	t.define("0x0f 0x05 SYSCALL")
	t.define("0x0f 0x0b UD2")
	t.define("0x0f 0x31 RDTSC")
	t.define("0x0f 0xa2 CPUID")
	t.define("0x0f 0xc8 BSWAP Zy")

	// System registers are moved at the
	// target's native width.
	size := "d"
	if addressWidth == x86.Bits64 {
		size = "q"
	}

	t.define("0x0f 0x20 MOV R%s C%s", size, size).Default64()
	t.define("0x0f 0x21 MOV R%s D%s", size, size).Default64()
	t.define("0x0f 0x22 MOV C%s R%s", size, size).Default64()
	t.define("0x0f 0x23 MOV D%s R%s", size, size).Default64()

	return t.descs
}

// Media returns descriptions of a subset
// of the MMX and SSE instructions.
func Media() []*desc.Description {
	t := newTable()
	t.define("0x0f 0x10 MOVUPS Vps Wps")
	t.define("0x0f 0x11 MOVUPS Wps Vps")
	t.define("0x66 0x0f 0x10 MOVUPD Vpd Wpd")
	t.define("0xf3 0x0f 0x10 MOVSS Vss Wss")
	t.define("0xf2 0x0f 0x10 MOVSD Vsd Wsd")
	t.define("0x0f 0x58 ADDPS Vps Wps")
	t.define("0x66 0x0f 0x58 ADDPD Vpd Wpd")
	t.define("0xf3 0x0f 0x58 ADDSS Vss Wss")
	t.define("0xf2 0x0f 0x58 ADDSD Vsd Wsd")
	t.define("0x66 0x0f 0x6f MOVDQA Vdq Wdq")
	t.define("0x66 0x0f 0x7f MOVDQA Wdq Vdq")
	t.define("0x66 0x0f 0xef PXOR Vdq Wdq")
	t.define("0x0f 0xef PXOR Pq Qq")

	return t.descs
}
