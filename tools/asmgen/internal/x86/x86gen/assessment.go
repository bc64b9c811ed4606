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

// Assessment summarises a description
// before enumeration: which variant
// dimensions apply to it.
type Assessment struct {
	AddressSizeVariants bool        // Has a memory operand.
	OperandSizeVariants bool        // Has an operand whose size follows the operand size.
	ModRM               bool        // Needs a ModR/M byte.
	Group               *desc.Group // Any ModR/M opcode group.
	Jump                bool        // Is a jump, by its mnemonic.
}

func (a *Assessment) String() string {
	var flags []string
	if a.AddressSizeVariants {
		flags = append(flags, "address size variants")
	}
	if a.OperandSizeVariants {
		flags = append(flags, "operand size variants")
	}
	if a.ModRM {
		flags = append(flags, "ModR/M")
	}
	if a.Group != nil {
		flags = append(flags, "group "+a.Group.Name)
	}
	if a.Jump {
		flags = append(flags, "jump")
	}

	return "{" + strings.Join(flags, ", ") + "}"
}

// Assess scans d and any group entries
// it refers to.
func Assess(d *desc.Description) (*Assessment, error) {
	a := new(Assessment)
	_, err := desc.Visit((*assessor)(a), d, desc.Destination)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// assessor is the visitor for Assess.
type assessor Assessment

var _ desc.Visitor = (*assessor)(nil)

func (a *assessor) VisitName(name string) error {
	if strings.HasPrefix(name, "J") || strings.HasPrefix(name, "j") {
		a.Jump = true
	}

	return nil
}

func (a *assessor) VisitByte(b x86.HexByte) error { return nil }

func (a *assessor) VisitOperand(code x86.OperandCode, d desc.Designation, c desc.Constraints) error {
	if err := a.VisitMethod(code.Method, d, c); err != nil {
		return err
	}

	return a.VisitType(code.Type)
}

func (a *assessor) VisitMethod(m x86.AddressingMethod, d desc.Designation, c desc.Constraints) error {
	switch m {
	case x86.MethodE, x86.MethodM, x86.MethodQ, x86.MethodW:
		a.AddressSizeVariants = true
		a.ModRM = true
	case x86.MethodC, x86.MethodD, x86.MethodG, x86.MethodN, x86.MethodP,
		x86.MethodR, x86.MethodS, x86.MethodU, x86.MethodV:
		a.ModRM = true
	case x86.MethodA, x86.MethodO:
		a.AddressSizeVariants = true
	}

	return nil
}

func (a *assessor) VisitType(t x86.OperandType) error {
	// Pseudo-descriptors are sized by the
	// mode, but still get operand size
	// variants.
	if t.VariesWithOperandSize() || t == x86.TypeS {
		a.OperandSizeVariants = true
	}

	return nil
}

func (a *assessor) VisitFixed(r *x86.Register, d desc.Designation) error { return nil }

func (a *assessor) VisitVarying(v desc.Varying, d desc.Designation) error {
	a.OperandSizeVariants = true
	return nil
}

func (a *assessor) VisitStack(s desc.Stack, d desc.Designation, c desc.Constraints) error {
	return nil
}

func (a *assessor) VisitInteger(n int64, d desc.Designation) error { return nil }

func (a *assessor) VisitGroup(g *desc.Group) error {
	if a.Group != nil && a.Group != g {
		return fmt.Errorf("%w: groups %s and %s in one description", ErrMalformedDescription, a.Group.Name, g.Name)
	}

	a.Group = g
	a.ModRM = true
	for _, d := range g.Descriptions() {
		for _, s := range d.Specs {
			if ref, ok := s.(desc.GroupRef); ok {
				return fmt.Errorf("%w: group %s has an entry referring to group %s", ErrMalformedDescription, g.Name, ref.Group.Name)
			}
		}

		_, err := desc.Visit(a, d, desc.Destination)
		if err != nil {
			return err
		}
	}

	return nil
}
