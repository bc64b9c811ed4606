// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86gen

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"firefly-os.dev/tools/asmgen/internal/x86"
)

// ErrNotEncodable is returned when a set of
// arguments of the right types has no
// valid encoding with a template.
var ErrNotEncodable = errors.New("arguments cannot be encoded")

// Assembler encodes instructions using a
// single template.
type Assembler struct {
	t            *Template
	addressWidth x86.Width
}

// NewAssembler returns an assembler for t,
// which was created for a target with the
// given address width.
func NewAssembler(t *Template, addressWidth x86.Width) *Assembler {
	return &Assembler{t: t, addressWidth: addressWidth}
}

// Template returns the assembler's
// template.
func (a *Assembler) Template() *Template { return a.t }

// Assemble encodes the instruction with
// the given arguments, one for each of
// the template's parameters.
//
// If the arguments have the right types
// but cannot be encoded, Assemble returns
// an error wrapping ErrNotEncodable.
func (a *Assembler) Assemble(args ...x86.Argument) ([]byte, error) {
	t := a.t
	if len(args) != len(t.Parameters) {
		return nil, fmt.Errorf("%s: got %d arguments, want %d", t.MethodName(), len(args), len(t.Parameters))
	}

	var rex x86.REX
	if t.OperandSize() == x86.Bits64 && t.Description.DefaultOperandSize != x86.Bits64 {
		rex.SetBit(x86.REXBitW)
	}

	opcode1, opcode2 := byte(t.Opcode1), byte(t.Opcode2)

	var modrm x86.ModRM
	if t.HasModRM {
		modrm.SetMod(byte(t.Context.ModCase))
		if t.Context.HasGroupOpcode {
			modrm.SetReg(t.Context.GroupOpcode)
		}

		modrm.SetRM(t.Context.RMCase.RM())
	}

	var sib x86.SIB
	if t.HasSIB {
		if t.Context.SIBBaseCase == BaseSpecial {
			sib.SetBase(x86.SIBbaseNone)
		}

		if t.Context.SIBIndexCase == IndexNone {
			sib.SetIndex(x86.SIBindexNone)
		}
	}

	var (
		appended  []byte
		displaced bool
		needREX   bool
		forbidREX bool
	)

	for i, p := range t.Parameters {
		arg := args[i]
		if err := p.check(arg); err != nil {
			return nil, fmt.Errorf("%s: parameter %s: %w", t.MethodName(), p.Name, err)
		}

		if r, ok := arg.(*x86.Register); ok {
			needREX = needREX || r.NeedsREX()
			forbidREX = forbidREX || r.High
		}

		v := arg.Value()
		if bit, ok := p.Place.REXBit(); ok {
			if v > 15 {
				return nil, fmt.Errorf("%s: parameter %s: %w: %v", t.MethodName(), p.Name, ErrNotEncodable, arg)
			}

			if (v>>3)&1 == 1 {
				rex.SetBit(bit)
			}
		} else if p.Place != x86.PlaceAppend && v > 7 {
			return nil, fmt.Errorf("%s: parameter %s: %w: %v needs a REX prefix", t.MethodName(), p.Name, ErrNotEncodable, arg)
		}

		field := byte(v) & 7
		switch p.Place {
		case x86.PlaceModReg, x86.PlaceModRegREXR:
			modrm.SetReg(field)
		case x86.PlaceModRM, x86.PlaceModRMREXB:
			modrm.SetRM(field)
		case x86.PlaceSIBBase, x86.PlaceSIBBaseREXB:
			sib.SetBase(field)
		case x86.PlaceSIBIndex, x86.PlaceSIBIndexREXX:
			sib.SetIndex(field)
		case x86.PlaceSIBScale:
			sib.SetScale(field)
		case x86.PlaceOpcode1, x86.PlaceOpcode1REXB:
			opcode1 += field
		case x86.PlaceOpcode2, x86.PlaceOpcode2REXB:
			opcode2 += field
		case x86.PlaceAppend:
			appended = appendValue(appended, v, p.Bits)
			if p.Kind == KindDisplacement {
				displaced = true
			}
		default:
			return nil, fmt.Errorf("%s: parameter %s has invalid place %s", t.MethodName(), p.Name, p.Place)
		}
	}

	if needREX {
		rex.SetOn()
	}

	if rex.On() && (forbidREX || a.addressWidth != x86.Bits64) {
		return nil, fmt.Errorf("%s: %w: REX prefix %s cannot be used with %v", t.MethodName(), ErrNotEncodable, rex, args)
	}

	if err := a.checkMemory(modrm, sib, rex, displaced); err != nil {
		return nil, fmt.Errorf("%s: %w", t.MethodName(), err)
	}

	var b bytes.Buffer
	if t.AddressSize() != a.addressWidth {
		b.WriteByte(byte(x86.PrefixAddressSize))
	}

	if t.OperandSize() == x86.Bits16 {
		b.WriteByte(byte(x86.PrefixOperandSize))
	}

	if t.HasPrefix {
		b.WriteByte(byte(t.Prefix))
	}

	// REX must immediately precede the
	// opcode.
	if rex.On() {
		b.WriteByte(byte(rex))
	}

	b.WriteByte(opcode1)
	if t.HasOpcode2 {
		b.WriteByte(opcode2)
	}

	if t.HasModRM {
		b.WriteByte(byte(modrm))
	}

	if t.HasSIB {
		b.WriteByte(byte(sib))
	}

	b.Write(appended)

	return b.Bytes(), nil
}

// checkMemory rejects combinations of field
// values that the processor interprets as a
// different addressing form from the one
// the template describes.
//
// Intel x86 manuals, Volume 2A,
// Section 2.1.5, Tables 2-1 to 2-3.
func (a *Assembler) checkMemory(modrm x86.ModRM, sib x86.SIB, rex x86.REX, displaced bool) error {
	t := a.t
	if !t.HasModRM || modrm.Mod() == byte(x86.Mod11) {
		return nil
	}

	if t.AddressSize() == x86.Bits16 {
		if modrm.Mod() == byte(x86.Mod00) && modrm.RM() == x86.ModRMrmDisplacementOnly16 && !displaced {
			return fmt.Errorf("%w: r/m %03b with mod 00 needs a displacement", ErrNotEncodable, modrm.RM())
		}

		return nil
	}

	if modrm.RM() == x86.ModRMrmSIB && !t.HasSIB {
		return fmt.Errorf("%w: r/m %03b needs a SIB byte", ErrNotEncodable, modrm.RM())
	}

	if modrm.Mod() == byte(x86.Mod00) && modrm.RM() == x86.ModRMrmDisplacementOnly32 && !displaced {
		return fmt.Errorf("%w: r/m %03b with mod 00 needs a displacement", ErrNotEncodable, modrm.RM())
	}

	if !t.HasSIB {
		return nil
	}

	if modrm.Mod() == byte(x86.Mod00) && sib.Base() == x86.SIBbaseNone && !displaced {
		return fmt.Errorf("%w: SIB base %03b with mod 00 needs a displacement", ErrNotEncodable, sib.Base())
	}

	if t.Context.SIBIndexCase == IndexRegister && sib.Index() == x86.SIBindexNone && !rex.X() {
		return fmt.Errorf("%w: SIB index %03b means no index", ErrNotEncodable, sib.Index())
	}

	return nil
}

// appendValue appends the low bits of
// v, in little-endian order.
func appendValue(b []byte, v int64, bits int) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return append(b, buf[:bits/8]...)
}
