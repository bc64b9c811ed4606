// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package verify checks assembled instructions by
// decoding them with an independent disassembler.
package verify

import (
	"errors"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
	"golang.org/x/exp/slices"

	"firefly-os.dev/tools/asmgen/internal/x86"
	"firefly-os.dev/tools/asmgen/internal/x86/x86gen"
)

// maxSamples limits the number of values
// tried for each parameter.
const maxSamples = 8

// Decode decodes code as a single
// instruction in the given mode, and
// checks that it uses every byte.
func Decode(code []byte, mode x86.Width) (x86asm.Inst, error) {
	inst, err := x86asm.Decode(code, int(mode))
	if err != nil {
		return inst, fmt.Errorf("failed to decode % x: %v", code, err)
	}

	if inst.Len != len(code) {
		return inst, fmt.Errorf("decoded % x as %d-byte %v, want %d bytes", code, inst.Len, inst, len(code))
	}

	return inst, nil
}

// Failure records an instruction that
// did not decode as expected.
type Failure struct {
	Template *x86gen.Template
	Args     []x86.Argument
	Code     []byte
	Err      error
}

func (f *Failure) String() string {
	return fmt.Sprintf("%s %v: % x: %v", f.Template.MethodName(), f.Args, f.Code, f.Err)
}

// Report summarises a check.
type Report struct {
	Templates    int
	Encoded      int
	NotEncodable int
	Failures     []*Failure
}

// Samples returns argument lists for t:
// the first legal argument for each
// parameter, then each parameter varied
// over its legal arguments in turn.
func Samples(t *x86gen.Template) [][]x86.Argument {
	legal := make([][]x86.Argument, len(t.Parameters))
	base := make([]x86.Argument, len(t.Parameters))
	for i, p := range t.Parameters {
		legal[i] = p.LegalTestArguments()
		if len(legal[i]) == 0 {
			return nil
		}

		if len(legal[i]) > maxSamples {
			legal[i] = legal[i][:maxSamples]
		}

		base[i] = legal[i][0]
	}

	samples := [][]x86.Argument{base}
	for i := range t.Parameters {
		for _, arg := range legal[i][1:] {
			sample := slices.Clone(base)
			sample[i] = arg
			samples = append(samples, sample)
		}
	}

	return samples
}

// Check assembles sample arguments for
// each template and decodes the result.
func Check(templates []*x86gen.Template, addressWidth x86.Width) (*Report, error) {
	r := &Report{Templates: len(templates)}
	for _, t := range templates {
		a := x86gen.NewAssembler(t, addressWidth)
		for _, args := range Samples(t) {
			code, err := a.Assemble(args...)
			if errors.Is(err, x86gen.ErrNotEncodable) {
				r.NotEncodable++
				continue
			}

			if err != nil {
				return nil, err
			}

			r.Encoded++
			_, err = Decode(code, addressWidth)
			if err != nil {
				r.Failures = append(r.Failures, &Failure{Template: t, Args: args, Code: code, Err: err})
			}
		}
	}

	return r, nil
}
