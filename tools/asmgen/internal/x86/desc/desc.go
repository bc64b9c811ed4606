// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package desc models instruction descriptions: ordered
// lists of tokens, each naming a mnemonic, an opcode
// byte, an operand, or a ModR/M opcode group.
//
// Descriptions are consumed by visitors. Visit is the
// only place that switches over the kinds of token,
// so adding a token kind means changing Visit and the
// Visitor interface together.
package desc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"firefly-os.dev/tools/asmgen/internal/x86"
)

// ErrUnexpectedSpec is returned when a
// description contains a token Visit
// does not know how to dispatch.
var ErrUnexpectedSpec = errors.New("unexpected specification")

// Spec is one token in an instruction
// description. The set of token kinds
// is closed.
type Spec interface {
	isSpec()
	String() string
}

// Name is the instruction mnemonic.
type Name string

// Byte is a literal opcode or
// instruction-selection prefix byte.
type Byte x86.HexByte

// Operand is an explicit operand,
// written as an operand code, such
// as "Ev".
type Operand x86.OperandCode

// Method is an operand given only by
// its addressing method, such as the
// "M" in "LEA Gv, M".
type Method x86.AddressingMethod

// Type is a bare operand type, which
// only affects the external operand
// size suffix.
type Type x86.OperandType

// Fixed is an implicit register
// operand, such as AL or DX.
type Fixed struct {
	Register *x86.Register
}

// Varying is an implicit general
// purpose register whose size follows
// the operand size, such as "eAX"
// or "rAX".
type Varying struct {
	Prefix byte // 'e' or 'r'.
	Reg    byte
}

// Stack is an x87 FPU stack operand.
// The stack top ST is implicit, while
// ST(i) is a parameter encoded in the
// opcode byte.
type Stack struct {
	Indexed bool
}

// Integer is an implicit immediate,
// such as the 1 in "SHL Eb, 1".
type Integer int64

// GroupRef marks the description as
// using a ModR/M opcode group.
type GroupRef struct {
	Group *Group
}

// Excluding wraps an operand token with
// test argument exclusions.
type Excluding struct {
	Spec     Spec
	Args     []x86.Argument // Never used in tests.
	External []x86.Argument // Not used when testing with an external assembler.
}

// Range wraps a numeric operand token
// with an inclusive range of legal
// test arguments.
type Range struct {
	Spec     Spec
	Min, Max int64
}

func (Name) isSpec()      {}
func (Byte) isSpec()      {}
func (Operand) isSpec()   {}
func (Method) isSpec()    {}
func (Type) isSpec()      {}
func (Fixed) isSpec()     {}
func (Varying) isSpec()   {}
func (Stack) isSpec()     {}
func (Integer) isSpec()   {}
func (GroupRef) isSpec()  {}
func (Excluding) isSpec() {}
func (Range) isSpec()     {}

func (n Name) String() string     { return string(n) }
func (b Byte) String() string     { return "0x" + x86.HexByte(b).String() }
func (o Operand) String() string  { return x86.OperandCode(o).String() }
func (m Method) String() string   { return x86.AddressingMethod(m).String() }
func (t Type) String() string     { return x86.OperandType(t).String() }
func (f Fixed) String() string    { return strings.ToUpper(f.Register.Name) }
func (v Varying) String() string  { return string(v.Prefix) + strings.ToUpper(x86.GeneralRegisters16.Args[v.Reg].String()) }
func (i Integer) String() string  { return strconv.FormatInt(int64(i), 10) }
func (g GroupRef) String() string { return g.Group.Name }

func (s Stack) String() string {
	if s.Indexed {
		return "ST(i)"
	}

	return "ST"
}

func (e Excluding) String() string {
	return fmt.Sprintf("%s excluding %v external %v", e.Spec, e.Args, e.External)
}

func (r Range) String() string {
	return fmt.Sprintf("%s in [%d, %d]", r.Spec, r.Min, r.Max)
}

// Resolve returns the register named
// by v for the given operand size.
func (v Varying) Resolve(operandSize x86.Width) *x86.Register {
	if v.Prefix == 'e' && operandSize == x86.Bits64 {
		operandSize = x86.Bits32
	}

	return x86.GeneralRegisters(int(operandSize)).Args[v.Reg].(*x86.Register)
}

// Description is an ordered list of
// tokens describing one instruction
// family, plus its size attributes.
type Description struct {
	Specs []Spec

	// ExternalName overrides the mnemonic
	// used by external assemblers.
	ExternalName string

	// DefaultOperandSize is 64 for instructions
	// that default to 64-bit operands in 64-bit
	// mode, such as PUSH, and zero otherwise.
	DefaultOperandSize x86.Width

	// RequiredOperandSize and RequiredAddressSize
	// fix the size attribute when non-zero.
	RequiredOperandSize x86.Width
	RequiredAddressSize x86.Width
}

// New returns a description with the
// given tokens.
func New(specs ...Spec) *Description {
	return &Description{Specs: specs}
}

// External sets the external name.
func (d *Description) External(name string) *Description {
	d.ExternalName = name
	return d
}

// Default64 marks the description as
// defaulting to 64-bit operands.
func (d *Description) Default64() *Description {
	d.DefaultOperandSize = x86.Bits64
	return d
}

// OperandSize fixes the operand size.
func (d *Description) OperandSize(w x86.Width) *Description {
	d.RequiredOperandSize = w
	return d
}

// AddressSize fixes the address size.
func (d *Description) AddressSize(w x86.Width) *Description {
	d.RequiredAddressSize = w
	return d
}

// Mnemonic returns the first mnemonic
// in d, or the empty string.
func (d *Description) Mnemonic() string {
	for _, s := range d.Specs {
		if n, ok := s.(Name); ok {
			return string(n)
		}
	}

	return ""
}

// Mnemonics returns every mnemonic d
// can produce, including those of any
// group it refers to.
func (d *Description) Mnemonics() []string {
	var out []string
	for _, s := range d.Specs {
		switch s := s.(type) {
		case Name:
			out = append(out, string(s))
		case GroupRef:
			// Group entries do not refer to
			// further groups.
			for _, e := range s.Group.entries {
				if name := e.desc.Mnemonic(); name != "" {
					out = append(out, name)
				}
			}
		}
	}

	return out
}

func (d *Description) String() string {
	parts := make([]string, len(d.Specs))
	for i, s := range d.Specs {
		parts[i] = s.String()
	}

	return strings.Join(parts, " ")
}

// Group is a ModR/M opcode group: the
// instructions sharing an opcode and
// distinguished by ModR/M.reg, and
// possibly by ModR/M.mod.
type Group struct {
	Name    string
	entries []groupEntry
}

type groupEntry struct {
	opcode uint8
	mods   []x86.ModCase // Empty for all mod cases.
	desc   *Description
}

// NewGroup returns an empty group.
func NewGroup(name string) *Group {
	return &Group{Name: name}
}

// Add adds an entry for the given ModR/M.reg
// value. If mods is empty, the entry applies to
// every mod case.
func (g *Group) Add(opcode uint8, d *Description, mods ...x86.ModCase) *Group {
	g.entries = append(g.entries, groupEntry{opcode: opcode, mods: mods, desc: d})
	return g
}

// Lookup returns the entry for the given
// ModR/M.reg value and mod case, or nil.
func (g *Group) Lookup(opcode uint8, mod x86.ModCase) *Description {
	for _, e := range g.entries {
		if e.opcode != opcode {
			continue
		}

		if len(e.mods) == 0 {
			return e.desc
		}

		for _, m := range e.mods {
			if m == mod {
				return e.desc
			}
		}
	}

	return nil
}

// Descriptions returns the group's
// entries in the order they were added.
func (g *Group) Descriptions() []*Description {
	out := make([]*Description, len(g.entries))
	for i, e := range g.entries {
		out[i] = e.desc
	}

	return out
}

func (g *Group) String() string { return g.Name }
