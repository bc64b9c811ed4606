// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package desc

import (
	"fmt"

	"firefly-os.dev/tools/asmgen/internal/x86"
)

// Designation is the role of an operand,
// given by its position among the
// description's operands.
type Designation uint8

const (
	Destination Designation = iota
	Source
	Other
)

func (d Designation) next() Designation {
	if d == Other {
		return Other
	}

	return d + 1
}

func (d Designation) String() string {
	switch d {
	case Destination:
		return "destination"
	case Source:
		return "source"
	default:
		return "other"
	}
}

// Constraints holds the test argument
// metadata attached to an operand by
// Excluding and Range tokens.
type Constraints struct {
	Excluded         []x86.Argument
	ExcludedExternal []x86.Argument
	HasRange         bool
	Min, Max         int64
}

// Visitor receives the tokens of a
// description, one call per token.
//
// Returning an error stops the visit.
// Visit returns the error unchanged, so
// visitors may use sentinel errors to
// abandon a description.
type Visitor interface {
	VisitName(name string) error
	VisitByte(b x86.HexByte) error
	VisitOperand(code x86.OperandCode, d Designation, c Constraints) error
	VisitMethod(m x86.AddressingMethod, d Designation, c Constraints) error
	VisitType(t x86.OperandType) error
	VisitFixed(r *x86.Register, d Designation) error
	VisitVarying(v Varying, d Designation) error
	VisitStack(s Stack, d Designation, c Constraints) error
	VisitInteger(n int64, d Designation) error
	VisitGroup(g *Group) error
}

// Visit passes each token of d to v in
// order, starting with the designation
// from. It returns the designation of
// the next operand, so a second
// description, such as a group entry,
// can continue where d ended.
func Visit(v Visitor, d *Description, from Designation) (Designation, error) {
	designation := from
	for _, s := range d.Specs {
		advanced, err := visit(v, s, designation, Constraints{})
		if err != nil {
			return designation, err
		}

		if advanced {
			designation = designation.next()
		}
	}

	return designation, nil
}

// visit dispatches a single token,
// reporting whether it was an operand.
func visit(v Visitor, s Spec, d Designation, c Constraints) (advanced bool, err error) {
	switch s := s.(type) {
	case Name:
		return false, v.VisitName(string(s))
	case Byte:
		return false, v.VisitByte(x86.HexByte(s))
	case Operand:
		return true, v.VisitOperand(x86.OperandCode(s), d, c)
	case Method:
		return true, v.VisitMethod(x86.AddressingMethod(s), d, c)
	case Type:
		return false, v.VisitType(x86.OperandType(s))
	case Fixed:
		return true, v.VisitFixed(s.Register, d)
	case Varying:
		return true, v.VisitVarying(s, d)
	case Stack:
		return true, v.VisitStack(s, d, c)
	case Integer:
		return true, v.VisitInteger(int64(s), d)
	case GroupRef:
		return false, v.VisitGroup(s.Group)
	case Excluding:
		c.Excluded = append(c.Excluded, s.Args...)
		c.ExcludedExternal = append(c.ExcludedExternal, s.External...)
		return visit(v, s.Spec, d, c)
	case Range:
		c.HasRange = true
		c.Min, c.Max = s.Min, s.Max
		return visit(v, s.Spec, d, c)
	default:
		return false, fmt.Errorf("%w: %T", ErrUnexpectedSpec, s)
	}
}
