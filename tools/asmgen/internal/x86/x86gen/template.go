// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86gen

import (
	"fmt"
	"strings"

	"firefly-os.dev/tools/asmgen/internal/x86"
	"firefly-os.dev/tools/asmgen/internal/x86/desc"
)

// ImplicitOperand is an operand fixed by
// the instruction, such as the AL in
// "ADD AL, Ib".
type ImplicitOperand struct {
	Name        string
	Designation desc.Designation
}

// Template is one fully resolved
// encoding variant of an instruction:
// the opcode bytes, the fixed ModR/M and
// SIB fields, and the parameters that
// fill in the rest.
type Template struct {
	Serial      int
	Description *desc.Description
	Mnemonic    string // Upper case, as written in the description.
	Context     Context

	// Prefix is an instruction-selection
	// prefix, such as the F3 in MOVSS.
	Prefix    x86.HexByte
	HasPrefix bool

	Opcode1    x86.HexByte
	Opcode2    x86.HexByte
	HasOpcode2 bool

	HasModRM bool
	HasSIB   bool

	Implicit   []ImplicitOperand
	Parameters []*Parameter

	suffix       string // External operand size suffix.
	namePrefix   string // "m_" or "rip_" for displacement-only addressing.
	externalName string
	internalName string
	redundant    bool
	canonical    *Template
}

// AddressSize returns the template's
// address size attribute.
func (t *Template) AddressSize() x86.Width { return t.Context.AddressSize }

// OperandSize returns the template's
// operand size attribute.
func (t *Template) OperandSize() x86.Width { return t.Context.OperandSize }

// InternalName is the canonical name,
// made from the mnemonic, any memory
// addressing prefix, and the implicit
// operands.
func (t *Template) InternalName() string { return t.internalName }

// ExternalName is the mnemonic an
// external assembler uses, including
// any operand size suffix.
func (t *Template) ExternalName() string { return t.externalName + t.suffix }

// MethodName is the name used for the
// template's assembler method. Redundant
// templates get a distinct name.
func (t *Template) MethodName() string {
	if t.redundant {
		return fmt.Sprintf("%s_r%d", t.internalName, t.Serial)
	}

	return t.internalName
}

// IsRedundant returns whether t encodes
// the same operation as an earlier
// template.
func (t *Template) IsRedundant() bool { return t.redundant }

// Canonical returns the template t is
// redundant with, or t itself.
func (t *Template) Canonical() *Template {
	if t.canonical != nil {
		return t.canonical
	}

	return t
}

// computeNames fills in the internal
// and external names once the template
// has been built.
func (t *Template) computeNames() {
	var b strings.Builder
	b.WriteString(t.namePrefix)
	b.WriteString(strings.ToLower(t.Mnemonic))
	for _, op := range t.Implicit {
		if op.Designation == desc.Source {
			b.WriteString("__")
		} else {
			b.WriteString("_")
		}

		b.WriteString(strings.ToLower(op.Name))
	}

	t.internalName = b.String()
	if t.externalName == "" {
		t.externalName = strings.ToLower(t.Mnemonic)
	}
}

// IsRedundantWith returns whether t and
// other would present the same assembler
// method: the same name and the same
// parameter types in the same order.
func (t *Template) IsRedundantWith(other *Template) bool {
	if t.internalName != other.internalName || len(t.Parameters) != len(other.Parameters) {
		return false
	}

	for i, p := range t.Parameters {
		if p.Type() != other.Parameters[i].Type() {
			return false
		}
	}

	return true
}

// ComputeRedundancyWith checks whether t
// and other are redundant. If so, the
// template created later is marked as
// redundant with the earlier one. A
// template without a serial number is
// always the later one.
//
// The result does not depend on the
// order of t and other, and repeated
// calls have no further effect.
func (t *Template) ComputeRedundancyWith(other *Template) bool {
	if t == other || !t.IsRedundantWith(other) {
		return false
	}

	first, second := t, other
	if later(t, other) {
		first, second = other, t
	}

	second.redundant = true
	if second.canonical == nil {
		second.canonical = first.Canonical()
	}

	return true
}

// later returns whether a was created
// after b.
func later(a, b *Template) bool {
	switch {
	case a.Serial == 0:
		return true
	case b.Serial == 0:
		return false
	}

	return a.Serial > b.Serial
}

func (t *Template) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s [", t.Serial, t.MethodName())
	if t.HasPrefix {
		fmt.Fprintf(&b, "%s ", t.Prefix)
	}

	fmt.Fprintf(&b, "%s", t.Opcode1)
	if t.HasOpcode2 {
		fmt.Fprintf(&b, " %s", t.Opcode2)
	}

	b.WriteString("]")
	if t.HasModRM {
		if t.Context.HasGroupOpcode {
			fmt.Fprintf(&b, " /%d", t.Context.GroupOpcode)
		}

		fmt.Fprintf(&b, " mod=%s rm=%s", t.Context.ModCase, t.Context.RMCase)
		if t.HasSIB {
			fmt.Fprintf(&b, " index=%s base=%s", t.Context.SIBIndexCase, t.Context.SIBBaseCase)
		}
	}

	fmt.Fprintf(&b, " a%d o%d", t.AddressSize(), t.OperandSize())
	for _, p := range t.Parameters {
		fmt.Fprintf(&b, " %s:%s", p.Name, p.Type())
	}

	return b.String()
}
