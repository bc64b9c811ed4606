// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86gen

import (
	"fmt"

	"golang.org/x/exp/slices"

	"firefly-os.dev/tools/asmgen/internal/x86"
)

// ParameterKind categorises a parameter.
type ParameterKind uint8

const (
	KindNumeric      ParameterKind = iota // An immediate.
	KindEnumerable                        // A member of a register class.
	KindAddress                           // An absolute address.
	KindOffset                            // A relative offset.
	KindDisplacement                      // A memory displacement.
)

func (k ParameterKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindEnumerable:
		return "enumerable"
	case KindAddress:
		return "address"
	case KindOffset:
		return "offset"
	case KindDisplacement:
		return "displacement"
	}

	return fmt.Sprintf("ParameterKind(%d)", k)
}

// Parameter is an explicit operand of a
// template: a value supplied when the
// instruction is assembled.
type Parameter struct {
	Kind  ParameterKind
	Place x86.Place
	Name  string

	// Bits is the size of a non-enumerable
	// parameter's value.
	Bits int

	// Class is the set of values of an
	// enumerable parameter.
	Class *x86.RegisterClass

	// Excluded arguments are never used in
	// tests. ExcludedExternal arguments are
	// not used when comparing with an
	// external assembler.
	Excluded         []x86.Argument
	ExcludedExternal []x86.Argument

	// HasRange limits numeric test arguments
	// to [Min, Max].
	HasRange bool
	Min, Max int64

	target x86.Width
}

// Type returns the name of the
// parameter's type, such as "imm8"
// or "GeneralRegister64".
func (p *Parameter) Type() string {
	switch p.Kind {
	case KindNumeric:
		return fmt.Sprintf("imm%d", p.Bits)
	case KindEnumerable:
		return p.Class.Name
	case KindAddress:
		return fmt.Sprintf("addr%d", p.Bits)
	case KindOffset:
		return fmt.Sprintf("rel%d", p.Bits)
	case KindDisplacement:
		return fmt.Sprintf("disp%d", p.Bits)
	}

	return "unknown"
}

func (p *Parameter) String() string {
	return fmt.Sprintf("%s %s (%s)", p.Name, p.Type(), p.Place)
}

// check returns ErrNotEncodable if arg
// has the right type but cannot be used
// for p, and a different error if arg
// has the wrong type.
func (p *Parameter) check(arg x86.Argument) error {
	if p.Kind == KindEnumerable {
		if !slices.Contains(p.Class.Args, arg) {
			return fmt.Errorf("argument %v is not a %s", arg, p.Class.Name)
		}

		if r, ok := arg.(*x86.Register); ok && !r.Supports(p.target) {
			return fmt.Errorf("%w: %s is not available with %d-bit addressing", ErrNotEncodable, r.Name, p.target)
		}

		return nil
	}

	imm, ok := arg.(x86.Immediate)
	if !ok {
		return fmt.Errorf("argument %v (%T) is not a numeric value", arg, arg)
	}

	if !imm.FitsIn(p.Bits) {
		return fmt.Errorf("%w: %v does not fit in %d bits", ErrNotEncodable, imm, p.Bits)
	}

	return nil
}

// numericTestValues returns interesting
// values that fit in bits.
func numericTestValues(bits int) []int64 {
	values := []int64{0, 1, -1, 0x7f, -0x80}
	if bits >= 16 {
		values = append(values, 0x7fff, -0x8000)
	}
	if bits >= 32 {
		values = append(values, 0x12345678, 0x7fffffff, -0x80000000)
	}
	if bits >= 64 {
		values = append(values, 0x123456789abcdef0)
	}

	return values
}

// LegalTestArguments returns arguments
// that should be accepted for p.
func (p *Parameter) LegalTestArguments() []x86.Argument {
	var candidates []x86.Argument
	switch {
	case p.Kind == KindEnumerable:
		candidates = p.Class.Supported(p.target)
	case p.HasRange:
		candidates = []x86.Argument{x86.Immediate(p.Min)}
		if mid := p.Min + (p.Max-p.Min)/2; mid != p.Min && mid != p.Max {
			candidates = append(candidates, x86.Immediate(mid))
		}
		if p.Max != p.Min {
			candidates = append(candidates, x86.Immediate(p.Max))
		}
	default:
		for _, v := range numericTestValues(p.Bits) {
			candidates = append(candidates, x86.Immediate(v))
		}
	}

	out := candidates[:0:0]
	for _, arg := range candidates {
		if !slices.Contains(p.Excluded, arg) {
			out = append(out, arg)
		}
	}

	return out
}

// IllegalTestArguments returns arguments
// that should be rejected for p.
func (p *Parameter) IllegalTestArguments() []x86.Argument {
	if p.Kind == KindEnumerable {
		return nil
	}

	if p.HasRange {
		return []x86.Argument{x86.Immediate(p.Min - 1), x86.Immediate(p.Max + 1)}
	}

	if p.Bits < 64 {
		return []x86.Argument{x86.Immediate(int64(1) << p.Bits)}
	}

	return nil
}

// ExternallyTestable returns whether arg
// may be used when comparing with an
// external assembler.
func (p *Parameter) ExternallyTestable(arg x86.Argument) bool {
	return !slices.Contains(p.Excluded, arg) && !slices.Contains(p.ExcludedExternal, arg)
}
