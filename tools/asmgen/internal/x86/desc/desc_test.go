// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package desc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"firefly-os.dev/tools/asmgen/internal/x86"
)

// recorder is a Visitor that records
// each call as a string.
type recorder struct {
	calls []string
	fail  string
}

func (r *recorder) record(format string, v ...any) error {
	call := fmt.Sprintf(format, v...)
	r.calls = append(r.calls, call)
	if call == r.fail {
		return errors.New("stop")
	}

	return nil
}

func (r *recorder) VisitName(name string) error { return r.record("name %s", name) }
func (r *recorder) VisitByte(b x86.HexByte) error {
	return r.record("byte %s", b)
}
func (r *recorder) VisitOperand(code x86.OperandCode, d Designation, c Constraints) error {
	if c.HasRange {
		return r.record("operand %s %s [%d, %d]", code, d, c.Min, c.Max)
	}

	if len(c.Excluded) != 0 || len(c.ExcludedExternal) != 0 {
		return r.record("operand %s %s excluding %v %v", code, d, c.Excluded, c.ExcludedExternal)
	}

	return r.record("operand %s %s", code, d)
}
func (r *recorder) VisitMethod(m x86.AddressingMethod, d Designation, c Constraints) error {
	return r.record("method %s %s", m, d)
}
func (r *recorder) VisitType(t x86.OperandType) error { return r.record("type %s", t) }
func (r *recorder) VisitFixed(reg *x86.Register, d Designation) error {
	return r.record("fixed %s %s", reg, d)
}
func (r *recorder) VisitVarying(v Varying, d Designation) error {
	return r.record("varying %s %s", v, d)
}
func (r *recorder) VisitStack(s Stack, d Designation, c Constraints) error {
	return r.record("stack %s %s", s, d)
}
func (r *recorder) VisitInteger(n int64, d Designation) error {
	return r.record("integer %d %s", n, d)
}
func (r *recorder) VisitGroup(g *Group) error { return r.record("group %s", g) }

// unknown is a token Visit cannot dispatch.
type unknown struct{}

func (unknown) isSpec()        {}
func (unknown) String() string { return "?" }

func TestVisit(t *testing.T) {
	grp := NewGroup("GRP")
	tests := []struct {
		Name string
		Desc *Description
		From Designation
		Want []string
		Next Designation
	}{
		{
			Name: "two operands",
			Desc: New(Byte(0x01), Name("ADD"), Operand{x86.MethodE, x86.TypeV}, Operand{x86.MethodG, x86.TypeV}),
			Want: []string{
				"byte 01",
				"name ADD",
				"operand Ev destination",
				"operand Gv source",
			},
			Next: Other,
		},
		{
			Name: "implicit operands",
			Desc: New(Byte(0xd3), Name("SHL"), Operand{x86.MethodE, x86.TypeV}, Fixed{Register: x86.CL}),
			Want: []string{
				"byte d3",
				"name SHL",
				"operand Ev destination",
				"fixed cl source",
			},
			Next: Other,
		},
		{
			Name: "three operands",
			Desc: New(Byte(0x69), Name("IMUL"), Operand{x86.MethodG, x86.TypeV}, Operand{x86.MethodE, x86.TypeV}, Operand{x86.MethodI, x86.TypeZ}),
			Want: []string{
				"byte 69",
				"name IMUL",
				"operand Gv destination",
				"operand Ev source",
				"operand Iz other",
			},
			Next: Other,
		},
		{
			Name: "continued",
			Desc: New(Name("ROL"), Integer(1)),
			From: Source,
			Want: []string{
				"name ROL",
				"integer 1 source",
			},
			Next: Other,
		},
		{
			Name: "group and type",
			Desc: New(Byte(0x0f), Byte(0xc7), GroupRef{Group: grp}, Type(x86.TypeQ)),
			Want: []string{
				"byte 0f",
				"byte c7",
				"group GRP",
				"type q",
			},
			Next: Destination,
		},
		{
			Name: "constraints",
			Desc: New(Name("INT"), Range{Spec: Operand{x86.MethodI, x86.TypeB}, Min: 1, Max: 255}, Excluding{Spec: Operand{x86.MethodE, x86.TypeW}, Args: []x86.Argument{x86.CS}}),
			Want: []string{
				"name INT",
				"operand Ib destination [1, 255]",
				"operand Ew source excluding [cs] []",
			},
			Next: Other,
		},
		{
			Name: "stack and varying",
			Desc: New(Name("FADD"), Stack{}, Stack{Indexed: true}, Varying{Prefix: 'r', Reg: 0}),
			Want: []string{
				"name FADD",
				"stack ST destination",
				"stack ST(i) source",
				"varying rAX other",
			},
			Next: Other,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			var r recorder
			next, err := Visit(&r, test.Desc, test.From)
			if err != nil {
				t.Fatalf("Visit(): got unexpected error: %v", err)
			}

			if diff := cmp.Diff(test.Want, r.calls); diff != "" {
				t.Fatalf("Visit(): (-want, +got)\n%s", diff)
			}

			if next != test.Next {
				t.Fatalf("Visit(): got next designation %s, want %s", next, test.Next)
			}
		})
	}
}

func TestVisitErrors(t *testing.T) {
	d := New(Name("ADD"), unknown{}, Operand{x86.MethodE, x86.TypeV})
	var r recorder
	_, err := Visit(&r, d, Destination)
	if !errors.Is(err, ErrUnexpectedSpec) {
		t.Fatalf("Visit(): got error %v, want %v", err, ErrUnexpectedSpec)
	}

	if diff := cmp.Diff([]string{"name ADD"}, r.calls); diff != "" {
		t.Fatalf("Visit(): (-want, +got)\n%s", diff)
	}

	// Visitor errors stop the visit.
	r = recorder{fail: "operand Ev destination"}
	d = New(Name("ADD"), Operand{x86.MethodE, x86.TypeV}, Operand{x86.MethodG, x86.TypeV})
	if _, err := Visit(&r, d, Destination); err == nil {
		t.Fatalf("Visit(): got no error")
	}

	if len(r.calls) != 2 {
		t.Fatalf("Visit(): got %d calls, want 2", len(r.calls))
	}
}

func TestGroup(t *testing.T) {
	add := New(Name("ADD"))
	fld := New(Name("FLD"), Method(x86.MethodM), Type(x86.TypeD))
	fldReg := New(Name("FLDR"))
	g := NewGroup("GRP").
		Add(0, add).
		Add(1, fld, x86.Mod00, x86.Mod01, x86.Mod10).
		Add(1, fldReg, x86.Mod11)

	tests := []struct {
		Opcode uint8
		Mod    x86.ModCase
		Want   *Description
	}{
		{0, x86.Mod00, add},
		{0, x86.Mod11, add},
		{1, x86.Mod01, fld},
		{1, x86.Mod11, fldReg},
		{2, x86.Mod00, nil},
	}

	for _, test := range tests {
		if got := g.Lookup(test.Opcode, test.Mod); got != test.Want {
			t.Errorf("Lookup(%d, %s): got %v, want %v", test.Opcode, test.Mod, got, test.Want)
		}
	}

	d := New(Byte(0x80), GroupRef{Group: g}, Operand{x86.MethodE, x86.TypeB})
	if diff := cmp.Diff([]string{"ADD", "FLD", "FLDR"}, d.Mnemonics()); diff != "" {
		t.Errorf("Mnemonics(): (-want, +got)\n%s", diff)
	}

	if got := d.Mnemonic(); got != "" {
		t.Errorf("Mnemonic(): got %q, want empty", got)
	}

	// Entries referring to groups are not
	// followed.
	self := NewGroup("SELF")
	self.Add(0, New(GroupRef{Group: self}, Name("INC")))
	d = New(Byte(0xff), GroupRef{Group: self})
	if diff := cmp.Diff([]string{"INC"}, d.Mnemonics()); diff != "" {
		t.Errorf("Mnemonics(): (-want, +got)\n%s", diff)
	}
}

func TestVaryingResolve(t *testing.T) {
	tests := []struct {
		Varying Varying
		Size    x86.Width
		Want    *x86.Register
	}{
		{Varying{'e', 0}, x86.Bits16, x86.AX},
		{Varying{'e', 0}, x86.Bits32, x86.EAX},
		{Varying{'e', 0}, x86.Bits64, x86.EAX},
		{Varying{'r', 2}, x86.Bits64, x86.RDX},
		{Varying{'r', 7}, x86.Bits16, x86.DI},
	}

	for _, test := range tests {
		if got := test.Varying.Resolve(test.Size); got != test.Want {
			t.Errorf("%s.Resolve(%d): got %s, want %s", test.Varying, test.Size, got, test.Want)
		}
	}
}
