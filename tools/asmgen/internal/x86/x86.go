// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package x86 contains the byte-level vocabulary
// used to describe and encode x86 instructions.
package x86

import (
	"fmt"
	"strconv"
	"strings"
)

// Width is an operand size or an
// address size, as a number of bits.
type Width uint8

const (
	Bits8  Width = 8
	Bits16 Width = 16
	Bits32 Width = 32
	Bits64 Width = 64
)

// Half returns the width half the size
// of w. This is how the address size
// prefix is interpreted.
func (w Width) Half() Width { return w / 2 }

// Bytes returns the number of bytes
// needed to hold a value of width w.
func (w Width) Bytes() int { return int(w) / 8 }

func (w Width) String() string { return strconv.Itoa(int(w)) }

// HexByte is one of the 256 byte values,
// used for opcodes and prefixes.
type HexByte uint8

// Symbol returns the symbolic name for b,
// such as "_0F".
func (b HexByte) Symbol() string { return fmt.Sprintf("_%02X", uint8(b)) }

func (b HexByte) String() string { return fmt.Sprintf("%02x", uint8(b)) }

// ParseHexByte parses a byte written as
// "0x0f", "0F", or "_0F".
func ParseHexByte(s string) (HexByte, error) {
	t := strings.TrimPrefix(s, "_")
	t = strings.TrimPrefix(strings.TrimPrefix(t, "0x"), "0X")
	if len(t) != 2 {
		return 0, fmt.Errorf("invalid byte %q: want two hex digits", s)
	}

	v, err := strconv.ParseUint(t, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q: %v", s, err)
	}

	return HexByte(v), nil
}

// Intel x86 manuals, Volume 2A,
// Section 2.1.1, Table 2-1.
const (
	PrefixOperandSize HexByte = 0x66
	PrefixAddressSize HexByte = 0x67
	PrefixREP         HexByte = 0xf3
	PrefixREPNE       HexByte = 0xf2
	PrefixREXBase     HexByte = 0x40
)

// Field describes a bit field within
// a ModR/M or SIB byte.
type Field struct {
	Name  string
	Shift uint8
	Width uint8
}

var (
	FieldMod   = Field{Name: "mod", Shift: 6, Width: 2}
	FieldReg   = Field{Name: "reg", Shift: 3, Width: 3}
	FieldRM    = Field{Name: "rm", Shift: 0, Width: 3}
	FieldScale = Field{Name: "scale", Shift: 6, Width: 2}
	FieldIndex = Field{Name: "index", Shift: 3, Width: 3}
	FieldBase  = Field{Name: "base", Shift: 0, Width: 3}
)

// Mask returns the field's bits in
// position.
func (f Field) Mask() byte { return byte((1<<f.Width)-1) << f.Shift }

// Extract returns the field's value
// within b.
func (f Field) Extract(b byte) byte { return (b & f.Mask()) >> f.Shift }

// Insert returns b with the field set
// to v. Bits of v beyond the field's
// width are discarded.
func (f Field) Insert(b, v byte) byte { return (b &^ f.Mask()) | ((v << f.Shift) & f.Mask()) }

func (f Field) String() string { return f.Name }

// The bit positions of the REX
// prefix extension bits.
//
// Intel x86 manuals, Volume 2A,
// Section 2.2.1.2, Table 2-4.
//
// 	| 7  6  5  4   3  2  1  0 |
// 	+-------------------------|
// 	| 0  1  0  0   W  R  X  B |
const (
	REXBitB = 0
	REXBitX = 1
	REXBitR = 2
	REXBitW = 3
)

// REX provides helper functionality
// for reading and writing a REX
// prefix byte.
type REX byte

func (r REX) On() bool       { return ((r >> 6) & 1) == 1 }
func (r REX) W() bool        { return ((r >> REXBitW) & 1) == 1 }
func (r REX) R() bool        { return ((r >> REXBitR) & 1) == 1 }
func (r REX) X() bool        { return ((r >> REXBitX) & 1) == 1 }
func (r REX) B() bool        { return ((r >> REXBitB) & 1) == 1 }
func (r *REX) SetOn()        { *r |= REX(PrefixREXBase) }

// SetBit sets the given extension
// bit, turning the prefix on.
func (r *REX) SetBit(bit int) { *r |= REX(PrefixREXBase) | (1 << bit) }

func (r REX) String() string {
	out := make([]byte, 8)
	for i := range out {
		switch {
		case (r>>(7-i))&1 == 0:
			out[i] = '0'
		case i < 4:
			out[i] = '1'
		default:
			out[i] = "WRXB"[i-4]
		}
	}

	return string(out)
}

// ModCase is the value of the ModR/M
// mod field, which selects between
// register operands and the three
// kinds of memory operand.
type ModCase uint8

const (
	Mod00 ModCase = iota // Register indirect, no displacement.
	Mod01                // 8-bit displacement.
	Mod10                // 16-bit or 32-bit displacement.
	Mod11                // Register direct.
)

// ModCases lists the mod cases in
// enumeration order.
var ModCases = []ModCase{Mod00, Mod01, Mod10, Mod11}

func (m ModCase) String() string { return fmt.Sprintf("%02b", uint8(m)) }

// ModRM provides helper functionality
// for reading and writing a ModR/M
// byte.
type ModRM byte

// Section 2.1.5, table 2.2, Effective address column.
const (
	ModRMrmSIB                = 0b100
	ModRMrmDisplacementOnly32 = 0b101
	ModRMrmDisplacementOnly16 = 0b110
)

func (m ModRM) Mod() byte      { return FieldMod.Extract(byte(m)) }
func (m ModRM) Reg() byte      { return FieldReg.Extract(byte(m)) }
func (m ModRM) RM() byte       { return FieldRM.Extract(byte(m)) }
func (m *ModRM) SetMod(b byte) { *m = ModRM(FieldMod.Insert(byte(*m), b)) }
func (m *ModRM) SetReg(b byte) { *m = ModRM(FieldReg.Insert(byte(*m), b)) }
func (m *ModRM) SetRM(b byte)  { *m = ModRM(FieldRM.Insert(byte(*m), b)) }

func (m ModRM) String() string {
	return fmt.Sprintf("{Mod: %02b, Reg: %03b, R/M: %03b}", m.Mod(), m.Reg(), m.RM())
}

// SIB provides helper functionality
// for reading and writing a SIB
// byte.
type SIB byte

// Section 2.1.5, table 2.3.
const (
	SIBindexNone = 0b100
	SIBbaseNone  = 0b101
)

func (s SIB) Scale() byte      { return FieldScale.Extract(byte(s)) }
func (s SIB) Index() byte      { return FieldIndex.Extract(byte(s)) }
func (s SIB) Base() byte       { return FieldBase.Extract(byte(s)) }
func (s *SIB) SetScale(b byte) { *s = SIB(FieldScale.Insert(byte(*s), b)) }
func (s *SIB) SetIndex(b byte) { *s = SIB(FieldIndex.Insert(byte(*s), b)) }
func (s *SIB) SetBase(b byte)  { *s = SIB(FieldBase.Insert(byte(*s), b)) }

func (s SIB) String() string {
	return fmt.Sprintf("{Scale: %02b, Index: %03b, Base: %03b}", s.Scale(), s.Index(), s.Base())
}
