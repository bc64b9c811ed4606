// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86gen

import (
	"bytes"
	"errors"
	"testing"

	"golang.org/x/arch/x86/x86asm"

	"firefly-os.dev/tools/asmgen/internal/x86"
	"firefly-os.dev/tools/asmgen/internal/x86/desc"
)

func TestAssemble(t *testing.T) {
	sib := func(operandSize x86.Width, mod x86.ModCase, index SIBIndexCase, base SIBBaseCase) func(*Template) bool {
		return func(t *Template) bool {
			return t.AddressSize() == x86.Bits64 &&
				t.OperandSize() == operandSize &&
				t.Context.ModCase == mod &&
				t.Context.RMCase == RMSIB &&
				t.Context.SIBIndexCase == index &&
				t.Context.SIBBaseCase == base
		}
	}

	only := func(*Template) bool { return true }
	imm := func(v int64) x86.Argument { return x86.Immediate(v) }

	tests := []struct {
		Name    string
		Width   x86.Width
		Desc    *desc.Description
		Options []option
		Match   func(*Template) bool
		Args    []x86.Argument
		Want    []byte
		Op      x86asm.Op
	}{
		{
			Name:  "register form",
			Width: x86.Bits64,
			Desc:  addEvGv,
			Match: matches(x86.Bits64, x86.Bits32, x86.Mod11, RMNormal),
			Args:  []x86.Argument{x86.ECX, x86.EDX},
			Want:  []byte{0x01, 0xd1},
			Op:    x86asm.ADD,
		},
		{
			Name:  "register form with REX",
			Width: x86.Bits64,
			Desc:  addEvGv,
			Match: matches(x86.Bits64, x86.Bits64, x86.Mod11, RMNormal),
			Args:  []x86.Argument{x86.R9, x86.RAX},
			Want:  []byte{0x49, 0x01, 0xc1},
			Op:    x86asm.ADD,
		},
		{
			Name:  "register form with 16-bit operands",
			Width: x86.Bits64,
			Desc:  addEvGv,
			Match: matches(x86.Bits64, x86.Bits16, x86.Mod11, RMNormal),
			Args:  []x86.Argument{x86.CX, x86.DX},
			Want:  []byte{0x66, 0x01, 0xd1},
			Op:    x86asm.ADD,
		},
		{
			Name:  "operand size prefix before REX",
			Width: x86.Bits64,
			Desc:  addEvGv,
			Match: matches(x86.Bits64, x86.Bits16, x86.Mod11, RMNormal),
			Args:  []x86.Argument{x86.R8W, x86.R8W},
			Want:  []byte{0x66, 0x45, 0x01, 0xc0},
			Op:    x86asm.ADD,
		},
		{
			Name:  "mandatory prefix before REX",
			Width: x86.Bits64,
			Desc:  desc.New(desc.Byte(0x66), desc.Byte(0x0f), desc.Byte(0x6e), desc.Name("MOVD"), desc.Operand{Method: x86.MethodV, Type: x86.TypeY}, desc.Operand{Method: x86.MethodE, Type: x86.TypeY}),
			Match: matches(x86.Bits64, x86.Bits64, x86.Mod11, RMNormal),
			Args:  []x86.Argument{x86.XMMRegisters.Args[9], x86.RCX},
			Want:  []byte{0x66, 0x4c, 0x0f, 0x6e, 0xc9},
			Op:    x86asm.MOVQ,
		},
		{
			Name:  "indirect",
			Width: x86.Bits64,
			Desc:  addEvGv,
			Match: matches(x86.Bits64, x86.Bits32, x86.Mod00, RMNormal),
			Args:  []x86.Argument{x86.RBX, x86.EAX},
			Want:  []byte{0x01, 0x03},
			Op:    x86asm.ADD,
		},
		{
			Name:  "indirect with extended register",
			Width: x86.Bits64,
			Desc:  addEvGv,
			Match: matches(x86.Bits64, x86.Bits32, x86.Mod00, RMNormal),
			Args:  []x86.Argument{x86.R11, x86.R10D},
			Want:  []byte{0x45, 0x01, 0x13},
			Op:    x86asm.ADD,
		},
		{
			Name:  "indirect with disp8",
			Width: x86.Bits64,
			Desc:  addEvGv,
			Match: matches(x86.Bits64, x86.Bits32, x86.Mod01, RMNormal),
			Args:  []x86.Argument{imm(0x10), x86.RBP, x86.ECX},
			Want:  []byte{0x01, 0x4d, 0x10},
			Op:    x86asm.ADD,
		},
		{
			Name:  "indirect with disp32",
			Width: x86.Bits64,
			Desc:  addEvGv,
			Match: matches(x86.Bits64, x86.Bits32, x86.Mod10, RMNormal),
			Args:  []x86.Argument{imm(-4), x86.R13, x86.ECX},
			Want:  []byte{0x41, 0x01, 0x8d, 0xfc, 0xff, 0xff, 0xff},
			Op:    x86asm.ADD,
		},
		{
			Name:  "sib",
			Width: x86.Bits64,
			Desc:  addEvGv,
			Match: sib(x86.Bits32, x86.Mod00, IndexRegister, BaseRegister),
			Args:  []x86.Argument{x86.RAX, x86.RCX, x86.Scale4, x86.EDX},
			Want:  []byte{0x01, 0x14, 0x88},
			Op:    x86asm.ADD,
		},
		{
			Name:  "sib with extended index",
			Width: x86.Bits64,
			Desc:  addEvGv,
			Match: sib(x86.Bits32, x86.Mod00, IndexRegister, BaseRegister),
			Args:  []x86.Argument{x86.RAX, x86.R12, x86.Scale4, x86.EDX},
			Want:  []byte{0x42, 0x01, 0x14, 0xa0},
			Op:    x86asm.ADD,
		},
		{
			Name:  "sib without index",
			Width: x86.Bits64,
			Desc:  addEvGv,
			Match: sib(x86.Bits64, x86.Mod01, IndexNone, BaseRegister),
			Args:  []x86.Argument{imm(8), x86.RSP, x86.RAX},
			Want:  []byte{0x48, 0x01, 0x44, 0x24, 0x08},
			Op:    x86asm.ADD,
		},
		{
			Name:  "absolute",
			Width: x86.Bits64,
			Desc:  addEvGv,
			Match: sib(x86.Bits32, x86.Mod00, IndexNone, BaseSpecial),
			Args:  []x86.Argument{imm(0x12345678), x86.EAX},
			Want:  []byte{0x01, 0x04, 0x25, 0x78, 0x56, 0x34, 0x12},
			Op:    x86asm.ADD,
		},
		{
			Name:  "rip relative",
			Width: x86.Bits64,
			Desc:  addEvGv,
			Match: matches(x86.Bits64, x86.Bits32, x86.Mod00, RMSDWord),
			Args:  []x86.Argument{imm(0), x86.EAX},
			Want:  []byte{0x01, 0x05, 0x00, 0x00, 0x00, 0x00},
			Op:    x86asm.ADD,
		},
		{
			Name:    "32-bit addressing",
			Width:   x86.Bits64,
			Desc:    addEvGv,
			Options: []option{with16BitAddresses},
			Match:   matches(x86.Bits32, x86.Bits32, x86.Mod00, RMNormal),
			Args:    []x86.Argument{x86.EBX, x86.EAX},
			Want:    []byte{0x67, 0x01, 0x03},
			Op:      x86asm.ADD,
		},
		{
			Name:  "opcode register",
			Width: x86.Bits64,
			Desc:  desc.New(desc.Byte(0x50), desc.Name("PUSH"), Zv).Default64(),
			Match: func(t *Template) bool { return t.OperandSize() == x86.Bits64 },
			Args:  []x86.Argument{x86.R12},
			Want:  []byte{0x41, 0x54},
			Op:    x86asm.PUSH,
		},
		{
			Name:  "64-bit immediate",
			Width: x86.Bits64,
			Desc:  desc.New(desc.Byte(0xb8), desc.Name("MOV"), Zv, Iv),
			Match: func(t *Template) bool { return t.OperandSize() == x86.Bits64 },
			Args:  []x86.Argument{x86.RAX, imm(1)},
			Want:  []byte{0x48, 0xb8, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			Op:    x86asm.MOV,
		},
		{
			Name:  "byte register needing REX",
			Width: x86.Bits64,
			Desc:  desc.New(desc.Byte(0xb0), desc.Name("MOV"), Zb, Ib),
			Match: only,
			Args:  []x86.Argument{x86.SPL, imm(1)},
			Want:  []byte{0x40, 0xb4, 0x01},
			Op:    x86asm.MOV,
		},
		{
			Name:  "high byte register",
			Width: x86.Bits64,
			Desc:  desc.New(desc.Byte(0xb0), desc.Name("MOV"), Zb, Ib),
			Match: only,
			Args:  []x86.Argument{x86.AH, imm(-1)},
			Want:  []byte{0xb4, 0xff},
			Op:    x86asm.MOV,
		},
		{
			Name:  "stack register",
			Width: x86.Bits64,
			Desc:  desc.New(desc.Byte(0xd8), desc.Byte(0xc0), desc.Name("FADD"), desc.Stack{}, desc.Stack{Indexed: true}),
			Match: only,
			Args:  []x86.Argument{x86.ST3},
			Want:  []byte{0xd8, 0xc3},
			Op:    x86asm.FADD,
		},
		{
			Name:  "relative jump",
			Width: x86.Bits64,
			Desc:  desc.New(desc.Byte(0x74), desc.Name("JE"), Jb),
			Match: only,
			Args:  []x86.Argument{imm(5)},
			Want:  []byte{0x74, 0x05},
			Op:    x86asm.JE,
		},
		{
			Name:  "group opcode",
			Width: x86.Bits64,
			Desc:  desc.New(desc.Byte(0x83), desc.GroupRef{Group: desc.NewGroup("GROUP1").Add(7, desc.New(desc.Name("CMP")))}, Ev, Ib),
			Match: matches(x86.Bits64, x86.Bits64, x86.Mod11, RMNormal),
			Args:  []x86.Argument{x86.RSI, imm(-1)},
			Want:  []byte{0x48, 0x83, 0xfe, 0xff},
			Op:    x86asm.CMP,
		},
		{
			Name:  "32-bit target",
			Width: x86.Bits32,
			Desc:  addEvGv,
			Match: matches(x86.Bits32, x86.Bits16, x86.Mod10, RMNormal),
			Args:  []x86.Argument{imm(0x1000), x86.ESI, x86.DI},
			Want:  []byte{0x66, 0x01, 0xbe, 0x00, 0x10, 0x00, 0x00},
			Op:    x86asm.ADD,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			templates := templatesFor(t, test.Width, test.Desc, test.Options...)
			tmpl := find(t, templates, test.Match)
			got, err := NewAssembler(tmpl, test.Width).Assemble(test.Args...)
			if err != nil {
				t.Fatalf("%s.Assemble(%v): %v", tmpl, test.Args, err)
			}

			if !bytes.Equal(got, test.Want) {
				t.Fatalf("%s.Assemble(%v):\ngot:  % x\nwant: % x", tmpl, test.Args, got, test.Want)
			}

			inst, err := x86asm.Decode(got, int(test.Width))
			if err != nil {
				t.Fatalf("x86asm.Decode(% x): %v", got, err)
			}

			if inst.Len != len(got) || inst.Op != test.Op {
				t.Fatalf("x86asm.Decode(% x): got %v (%d bytes), want %v", got, inst, inst.Len, test.Op)
			}
		})
	}
}

func TestAssembleErrors(t *testing.T) {
	imm := func(v int64) x86.Argument { return x86.Immediate(v) }
	tests := []struct {
		Name         string
		Desc         *desc.Description
		Match        func(*Template) bool
		Args         []x86.Argument
		NotEncodable bool
	}{
		{
			Name:  "too few arguments",
			Desc:  addEvGv,
			Match: matches(x86.Bits64, x86.Bits32, x86.Mod11, RMNormal),
			Args:  []x86.Argument{x86.EAX},
		},
		{
			Name:  "wrong register class",
			Desc:  addEvGv,
			Match: matches(x86.Bits64, x86.Bits32, x86.Mod11, RMNormal),
			Args:  []x86.Argument{x86.EAX, x86.RAX},
		},
		{
			Name:  "immediate for register",
			Desc:  addEvGv,
			Match: matches(x86.Bits64, x86.Bits32, x86.Mod11, RMNormal),
			Args:  []x86.Argument{x86.EAX, imm(1)},
		},
		{
			Name:  "register for immediate",
			Desc:  desc.New(desc.Byte(0x04), desc.Name("ADD"), desc.Fixed{Register: x86.AL}, Ib),
			Match: func(*Template) bool { return true },
			Args:  []x86.Argument{x86.AL},
		},
		{
			Name:         "immediate too large",
			Desc:         desc.New(desc.Byte(0x04), desc.Name("ADD"), desc.Fixed{Register: x86.AL}, Ib),
			Match:        func(*Template) bool { return true },
			Args:         []x86.Argument{imm(0x100)},
			NotEncodable: true,
		},
		{
			Name:         "high byte with REX",
			Desc:         desc.New(desc.Byte(0x00), desc.Name("ADD"), Eb, Gb),
			Match:        matches(x86.Bits64, x86.Bits32, x86.Mod11, RMNormal),
			Args:         []x86.Argument{x86.AH, x86.R8L},
			NotEncodable: true,
		},
		{
			Name:         "high byte with SIL",
			Desc:         desc.New(desc.Byte(0x00), desc.Name("ADD"), Eb, Gb),
			Match:        matches(x86.Bits64, x86.Bits32, x86.Mod11, RMNormal),
			Args:         []x86.Argument{x86.SIL, x86.BH},
			NotEncodable: true,
		},
		{
			Name:         "rm needs SIB",
			Desc:         addEvGv,
			Match:        matches(x86.Bits64, x86.Bits32, x86.Mod00, RMNormal),
			Args:         []x86.Argument{x86.RSP, x86.EAX},
			NotEncodable: true,
		},
		{
			Name:         "rm needs SIB with REX",
			Desc:         addEvGv,
			Match:        matches(x86.Bits64, x86.Bits32, x86.Mod00, RMNormal),
			Args:         []x86.Argument{x86.R12, x86.EAX},
			NotEncodable: true,
		},
		{
			Name:         "rm needs displacement",
			Desc:         addEvGv,
			Match:        matches(x86.Bits64, x86.Bits32, x86.Mod00, RMNormal),
			Args:         []x86.Argument{x86.RBP, x86.EAX},
			NotEncodable: true,
		},
		{
			Name:         "rm needs displacement with REX",
			Desc:         addEvGv,
			Match:        matches(x86.Bits64, x86.Bits32, x86.Mod00, RMNormal),
			Args:         []x86.Argument{x86.R13, x86.EAX},
			NotEncodable: true,
		},
		{
			Name:  "base needs displacement",
			Desc:  addEvGv,
			Match: func(t *Template) bool {
				return t.AddressSize() == x86.Bits64 && t.OperandSize() == x86.Bits32 && t.Context.ModCase == x86.Mod00 &&
					t.Context.RMCase == RMSIB && t.Context.SIBIndexCase == IndexRegister && t.Context.SIBBaseCase == BaseRegister
			},
			Args:         []x86.Argument{x86.RBP, x86.RCX, x86.Scale1, x86.EAX},
			NotEncodable: true,
		},
		{
			Name:         "displacement too large",
			Desc:         addEvGv,
			Match:        matches(x86.Bits64, x86.Bits32, x86.Mod01, RMNormal),
			Args:         []x86.Argument{imm(0x80 << 1), x86.RAX, x86.EAX},
			NotEncodable: true,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			templates := templatesFor(t, x86.Bits64, test.Desc)
			tmpl := find(t, templates, test.Match)
			got, err := NewAssembler(tmpl, x86.Bits64).Assemble(test.Args...)
			if err == nil {
				t.Fatalf("%s.Assemble(%v): got % x, want error", tmpl, test.Args, got)
			}

			if errors.Is(err, ErrNotEncodable) != test.NotEncodable {
				t.Fatalf("%s.Assemble(%v): got error %v, want not encodable %v", tmpl, test.Args, err, test.NotEncodable)
			}
		})
	}
}

func TestAssemble32BitTarget(t *testing.T) {
	// Registers that need REX are rejected by
	// their class on 32-bit targets.
	templates := templatesFor(t, x86.Bits32, desc.New(desc.Byte(0xb0), desc.Name("MOV"), Zb, Ib))
	tmpl := find(t, templates, func(*Template) bool { return true })
	a := NewAssembler(tmpl, x86.Bits32)
	for _, reg := range []*x86.Register{x86.SPL, x86.R8L} {
		_, err := a.Assemble(reg, x86.Immediate(0))
		if !errors.Is(err, ErrNotEncodable) {
			t.Errorf("Assemble(%s): got error %v, want %v", reg, err, ErrNotEncodable)
		}
	}

	if got, err := a.Assemble(x86.BH, x86.Immediate(0)); err != nil || !bytes.Equal(got, []byte{0xb7, 0x00}) {
		t.Errorf("Assemble(bh): got % x, %v", got, err)
	}
}
