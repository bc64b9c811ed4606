// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package verify

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"

	"firefly-os.dev/tools/asmgen/internal/x86"
	"firefly-os.dev/tools/asmgen/internal/x86/desc"
	"firefly-os.dev/tools/asmgen/internal/x86/x86gen"
)

func TestDecode(t *testing.T) {
	inst, err := Decode([]byte{0x49, 0x01, 0xc1}, x86.Bits64)
	if err != nil {
		t.Fatalf("Decode(): %v", err)
	}

	if inst.Op != x86asm.ADD {
		t.Fatalf("Decode(): got %v, want ADD", inst)
	}

	// Trailing bytes are an error.
	if _, err := Decode([]byte{0x01, 0xc1, 0x90}, x86.Bits64); err == nil {
		t.Fatalf("Decode(): got no error for trailing bytes")
	}

	if _, err := Decode([]byte{0x0f}, x86.Bits64); err == nil {
		t.Fatalf("Decode(): got no error for truncated instruction")
	}
}

func templates(t *testing.T, width x86.Width, descs ...*desc.Description) []*x86gen.Template {
	t.Helper()
	cfg, err := x86gen.NewConfig(width)
	if err != nil {
		t.Fatal(err)
	}

	c := x86gen.NewCreator(cfg)
	for _, d := range descs {
		if err := c.CreateTemplates(d); err != nil {
			t.Fatalf("CreateTemplates(%s): %v", d, err)
		}
	}

	return c.Templates()
}

func TestSamples(t *testing.T) {
	tests := []struct {
		Name string
		Desc *desc.Description
		Want int
	}{
		{
			Name: "no parameters",
			Desc: desc.New(desc.Byte(0xf4), desc.Name("HLT")),
			Want: 1,
		},
		{
			Name: "immediate",
			Desc: desc.New(desc.Byte(0x04), desc.Name("ADD"), desc.Fixed{Register: x86.AL}, desc.Operand{Method: x86.MethodI, Type: x86.TypeB}),
			Want: 5,
		},
		{
			// Each register class is cut
			// down to eight registers.
			Name: "registers",
			Desc: desc.New(desc.Byte(0x0f), desc.Byte(0x10), desc.Name("MOVUPS"),
				desc.Operand{Method: x86.MethodV, Type: x86.TypePS},
				desc.Operand{Method: x86.MethodU, Type: x86.TypePS}),
			Want: 15,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			ts := templates(t, x86.Bits64, test.Desc)
			if len(ts) != 1 {
				t.Fatalf("got %d templates, want 1", len(ts))
			}

			samples := Samples(ts[0])
			if len(samples) != test.Want {
				t.Fatalf("Samples(%s): got %d samples, want %d", ts[0], len(samples), test.Want)
			}

			for _, sample := range samples {
				if len(sample) != len(ts[0].Parameters) {
					t.Fatalf("Samples(%s): got sample %v with %d arguments", ts[0], sample, len(sample))
				}
			}
		})
	}
}

func TestCheck(t *testing.T) {
	op := func(m x86.AddressingMethod, t x86.OperandType) desc.Spec {
		return desc.Operand{Method: m, Type: t}
	}

	descs := []*desc.Description{
		desc.New(desc.Byte(0x01), desc.Name("ADD"), op(x86.MethodE, x86.TypeV), op(x86.MethodG, x86.TypeV)),
		desc.New(desc.Byte(0x50), desc.Name("PUSH"), op(x86.MethodZ, x86.TypeV)).Default64(),
		desc.New(desc.Byte(0xb8), desc.Name("MOV"), op(x86.MethodZ, x86.TypeV), op(x86.MethodI, x86.TypeV)),
		desc.New(desc.Byte(0xd8), desc.Byte(0xc0), desc.Name("FADD"), desc.Stack{}, desc.Stack{Indexed: true}),
		desc.New(desc.Byte(0x0f), desc.Byte(0x58), desc.Name("ADDPS"), op(x86.MethodV, x86.TypePS), op(x86.MethodW, x86.TypePS)),
	}

	for _, width := range []x86.Width{x86.Bits32, x86.Bits64} {
		ts := templates(t, width, descs...)
		report, err := Check(ts, width)
		if err != nil {
			t.Fatalf("%d-bit: Check(): %v", width, err)
		}

		for _, f := range report.Failures {
			t.Errorf("%d-bit: %s", width, f)
		}

		if report.Templates != len(ts) || report.Encoded == 0 {
			t.Errorf("%d-bit: got report %+v for %d templates", width, report, len(ts))
		}

		if report.NotEncodable != 0 {
			t.Errorf("%d-bit: got %d sample arguments that could not be encoded", width, report.NotEncodable)
		}
	}
}
