// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86

import (
	"encoding/json"
	"fmt"
)

// AddressingMethod is the upper-case
// letter in an operand code, which says
// where the operand is encoded.
//
// Intel x86 manuals, Volume 2D,
// Appendix A.2.1. Z is an extension
// for a register encoded in the low
// three bits of the opcode byte.
type AddressingMethod uint8

const (
	_       AddressingMethod = iota
	MethodA                  // Direct address, no ModR/M.
	MethodC                  // ModR/M reg selects a control register.
	MethodD                  // ModR/M reg selects a debug register.
	MethodE                  // ModR/M r/m selects a general register or memory.
	MethodG                  // ModR/M reg selects a general register.
	MethodI                  // Immediate data.
	MethodJ                  // Relative offset added to the instruction pointer.
	MethodM                  // ModR/M r/m refers to memory only.
	MethodN                  // ModR/M r/m selects an MMX register.
	MethodO                  // Absolute memory offset, no ModR/M.
	MethodP                  // ModR/M reg selects an MMX register.
	MethodQ                  // ModR/M r/m selects an MMX register or memory.
	MethodR                  // ModR/M r/m selects a general register only.
	MethodS                  // ModR/M reg selects a segment register.
	MethodU                  // ModR/M r/m selects an XMM register.
	MethodV                  // ModR/M reg selects an XMM register.
	MethodW                  // ModR/M r/m selects an XMM register or memory.
	MethodX                  // Memory addressed by DS:rSI.
	MethodY                  // Memory addressed by ES:rDI.
	MethodZ                  // Opcode low bits select a general register.
)

var methodLetters = "?ACDEGIJMNOPQRSUVWXYZ"

// ParseAddressingMethod parses a single
// addressing method letter.
func ParseAddressingMethod(s string) (AddressingMethod, bool) {
	if len(s) != 1 {
		return 0, false
	}

	for i := 1; i < len(methodLetters); i++ {
		if methodLetters[i] == s[0] {
			return AddressingMethod(i), true
		}
	}

	return 0, false
}

func (m AddressingMethod) String() string {
	if m == 0 || int(m) >= len(methodLetters) {
		return fmt.Sprintf("AddressingMethod(%d)", m)
	}

	return methodLetters[m : m+1]
}

// UsesModRM returns whether the method
// implies a ModR/M byte.
func (m AddressingMethod) UsesModRM() bool {
	switch m {
	case MethodC, MethodD, MethodE, MethodG, MethodM, MethodN, MethodP,
		MethodQ, MethodR, MethodS, MethodU, MethodV, MethodW:
		return true
	}

	return false
}

// UsesRM returns whether the operand is
// encoded in the ModR/M r/m field.
func (m AddressingMethod) UsesRM() bool {
	switch m {
	case MethodE, MethodM, MethodN, MethodQ, MethodR, MethodU, MethodW:
		return true
	}

	return false
}

// RegisterOnly returns whether an r/m
// operand must be a register.
func (m AddressingMethod) RegisterOnly() bool {
	return m == MethodN || m == MethodR || m == MethodU
}

// MemoryOnly returns whether an r/m
// operand must be a memory reference.
func (m AddressingMethod) MemoryOnly() bool {
	return m == MethodM
}

func (m AddressingMethod) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// OperandType is the lower-case suffix
// of an operand code, which gives the
// operand's size.
//
// Intel x86 manuals, Volume 2D,
// Appendix A.2.2.
type OperandType uint8

const (
	_        OperandType = iota
	TypeB                // Byte.
	TypeW                // Word.
	TypeD                // Doubleword.
	TypeQ                // Quadword.
	TypeDQ               // Double quadword.
	TypeV                // Word, doubleword, or quadword, by operand size.
	TypeZ                // Word for 16-bit operand size, otherwise doubleword.
	TypeY                // Doubleword or quadword, by operand size.
	TypeP                // 32-bit or 48-bit pointer, by operand size.
	TypeS                // 6-byte or 10-byte pseudo-descriptor.
	TypePS               // 128-bit packed single precision.
	TypePD               // 128-bit packed double precision.
	TypeSS               // Scalar single precision.
	TypeSD               // Scalar double precision.
	TypePI               // Quadword MMX register.
)

var operandTypeNames = [...]string{
	TypeB:  "b",
	TypeW:  "w",
	TypeD:  "d",
	TypeQ:  "q",
	TypeDQ: "dq",
	TypeV:  "v",
	TypeZ:  "z",
	TypeY:  "y",
	TypeP:  "p",
	TypeS:  "s",
	TypePS: "ps",
	TypePD: "pd",
	TypeSS: "ss",
	TypeSD: "sd",
	TypePI: "pi",
}

// ParseOperandType parses an operand
// type suffix, such as "v".
func ParseOperandType(s string) (OperandType, bool) {
	for i, name := range operandTypeNames {
		if i != 0 && name == s {
			return OperandType(i), true
		}
	}

	return 0, false
}

func (t OperandType) String() string {
	if t == 0 || int(t) >= len(operandTypeNames) {
		return fmt.Sprintf("OperandType(%d)", t)
	}

	return operandTypeNames[t]
}

func (t OperandType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// VariesWithOperandSize returns whether
// the type's size depends on the
// operand size attribute.
func (t OperandType) VariesWithOperandSize() bool {
	switch t {
	case TypeV, TypeZ, TypeY, TypeP:
		return true
	}

	return false
}

// Bits returns the size of an operand
// of type t, given the operand size.
// Types y and z only have a subset of
// sizes; ok is false when the operand
// size is not one of them.
func (t OperandType) Bits(operandSize Width) (bits int, ok bool) {
	switch t {
	case TypeB:
		return 8, true
	case TypeW:
		return 16, true
	case TypeD, TypeSS:
		return 32, true
	case TypeQ, TypePI, TypeSD:
		return 64, true
	case TypeDQ, TypePS, TypePD:
		return 128, true
	case TypeV:
		return int(operandSize), true
	case TypeZ:
		if operandSize == Bits16 {
			return 16, true
		}

		return 32, true
	case TypeY:
		switch operandSize {
		case Bits32, Bits64:
			return int(operandSize), true
		}

		return 0, false
	case TypeP:
		return int(operandSize) + 16, true
	case TypeS:
		return 80, true
	}

	return 0, false
}

// OperandCode combines an addressing
// method and an operand type, such as
// "Ev".
type OperandCode struct {
	Method AddressingMethod
	Type   OperandType
}

// operandCodes lists the valid types for
// each addressing method.
var operandCodes = map[AddressingMethod][]OperandType{
	MethodA: {TypeP},
	MethodC: {TypeD, TypeQ},
	MethodD: {TypeD, TypeQ},
	MethodE: {TypeB, TypeW, TypeD, TypeQ, TypeV, TypeY},
	MethodG: {TypeB, TypeW, TypeD, TypeQ, TypeV, TypeY, TypeZ},
	MethodI: {TypeB, TypeW, TypeD, TypeV, TypeZ},
	MethodJ: {TypeB, TypeZ},
	MethodM: {TypeB, TypeW, TypeD, TypeQ, TypeDQ, TypeP, TypeS, TypeV, TypeY},
	MethodN: {TypeQ},
	MethodO: {TypeB, TypeV},
	MethodP: {TypeD, TypeQ, TypePI},
	MethodQ: {TypeD, TypeQ, TypePI},
	MethodR: {TypeD, TypeQ, TypeV, TypeY},
	MethodS: {TypeW},
	MethodU: {TypePS, TypePD, TypeDQ, TypeQ},
	MethodV: {TypePS, TypePD, TypeSS, TypeSD, TypeDQ, TypeQ, TypeD, TypeY},
	MethodW: {TypePS, TypePD, TypeSS, TypeSD, TypeDQ, TypeQ, TypeD},
	MethodX: {TypeB, TypeV, TypeZ},
	MethodY: {TypeB, TypeV, TypeZ},
	MethodZ: {TypeB, TypeV, TypeY},
}

// ParseOperandCode parses an operand
// code, such as "Ev" or "Wps".
func ParseOperandCode(s string) (OperandCode, bool) {
	if len(s) < 2 {
		return OperandCode{}, false
	}

	m, ok := ParseAddressingMethod(s[:1])
	if !ok {
		return OperandCode{}, false
	}

	t, ok := ParseOperandType(s[1:])
	if !ok {
		return OperandCode{}, false
	}

	code := OperandCode{Method: m, Type: t}
	if !code.Valid() {
		return OperandCode{}, false
	}

	return code, true
}

// Valid returns whether c is one of
// the legal operand codes.
func (c OperandCode) Valid() bool {
	for _, t := range operandCodes[c.Method] {
		if t == c.Type {
			return true
		}
	}

	return false
}

func (c OperandCode) String() string {
	return c.Method.String() + c.Type.String()
}

// Place is where a parameter's value
// is stored in the encoded instruction.
//
// Places ending in REX* also set the
// corresponding REX bit when the fourth
// bit of the value is set.
type Place uint8

const (
	_ Place = iota
	PlaceModReg
	PlaceModRegREXR
	PlaceModRM
	PlaceModRMREXB
	PlaceSIBBase
	PlaceSIBBaseREXB
	PlaceSIBIndex
	PlaceSIBIndexREXX
	PlaceSIBScale
	PlaceAppend
	PlaceOpcode1
	PlaceOpcode1REXB
	PlaceOpcode2
	PlaceOpcode2REXB
)

var placeNames = [...]string{
	PlaceModReg:       "ModR/M.reg",
	PlaceModRegREXR:   "ModR/M.reg+REX.R",
	PlaceModRM:        "ModR/M.rm",
	PlaceModRMREXB:    "ModR/M.rm+REX.B",
	PlaceSIBBase:      "SIB.base",
	PlaceSIBBaseREXB:  "SIB.base+REX.B",
	PlaceSIBIndex:     "SIB.index",
	PlaceSIBIndexREXX: "SIB.index+REX.X",
	PlaceSIBScale:     "SIB.scale",
	PlaceAppend:       "append",
	PlaceOpcode1:      "opcode1",
	PlaceOpcode1REXB:  "opcode1+REX.B",
	PlaceOpcode2:      "opcode2",
	PlaceOpcode2REXB:  "opcode2+REX.B",
}

func (p Place) String() string {
	if p == 0 || int(p) >= len(placeNames) {
		return fmt.Sprintf("Place(%d)", p)
	}

	return placeNames[p]
}

func (p Place) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// REXBit returns the REX bit the place
// extends, if any.
func (p Place) REXBit() (bit int, ok bool) {
	switch p {
	case PlaceModRegREXR:
		return REXBitR, true
	case PlaceModRMREXB, PlaceSIBBaseREXB, PlaceOpcode1REXB, PlaceOpcode2REXB:
		return REXBitB, true
	case PlaceSIBIndexREXX:
		return REXBitX, true
	}

	return 0, false
}

// WithREX returns the variant of p that
// also sets a REX bit, or p if there is
// no such variant.
func (p Place) WithREX() Place {
	switch p {
	case PlaceModReg:
		return PlaceModRegREXR
	case PlaceModRM:
		return PlaceModRMREXB
	case PlaceSIBBase:
		return PlaceSIBBaseREXB
	case PlaceSIBIndex:
		return PlaceSIBIndexREXX
	case PlaceOpcode1:
		return PlaceOpcode1REXB
	case PlaceOpcode2:
		return PlaceOpcode2REXB
	}

	return p
}
