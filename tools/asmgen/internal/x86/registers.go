// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Argument is a value that can be
// passed for an instruction parameter.
type Argument interface {
	// Value returns the number stored in
	// the parameter's place.
	Value() int64
	String() string
}

// RegisterType categorises registers.
type RegisterType uint8

const (
	_ RegisterType = iota
	TypeGeneralPurpose
	TypeSegment
	TypeControl
	TypeDebug
	TypeX87
	TypeMMX
	TypeXMM
)

func (t RegisterType) String() string {
	switch t {
	case TypeGeneralPurpose:
		return "general purpose"
	case TypeSegment:
		return "segment"
	case TypeControl:
		return "control"
	case TypeDebug:
		return "debug"
	case TypeX87:
		return "x87"
	case TypeMMX:
		return "mmx"
	case TypeXMM:
		return "xmm"
	default:
		return fmt.Sprintf("RegisterType(%d)", t)
	}
}

// Register contains information about
// an x86 register.
type Register struct {
	Name    string
	Type    RegisterType
	Bits    int
	Reg     byte  // The 4-bit encoding of the register.
	MinMode Width // Any CPU mode requirements as a number of bits.
	High    bool  // AH, CH, DH, and BH, which cannot be used with a REX prefix.
}

var _ Argument = (*Register)(nil)

func (r *Register) Value() int64   { return int64(r.Reg) }
func (r *Register) String() string { return r.Name }

func (r *Register) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Name)
}

// Supports returns whether r can be
// used with the given target width.
func (r *Register) Supports(mode Width) bool {
	return r.MinMode == 0 || mode >= r.MinMode
}

// NeedsREX returns whether r can only
// be encoded with a REX prefix present,
// even if no REX bit is set.
func (r *Register) NeedsREX() bool {
	return r.Type == TypeGeneralPurpose && r.Bits == 8 && !r.High && r.Reg >= 4 && r.Reg <= 7
}

func reg(name string, typ RegisterType, bits int, num byte) *Register {
	r := &Register{Name: name, Type: typ, Bits: bits, Reg: num}
	if num > 7 {
		r.MinMode = Bits64
	}

	return r
}

var (
	// 8-bit registers.
	AL   = reg("al", TypeGeneralPurpose, 8, 0)
	CL   = reg("cl", TypeGeneralPurpose, 8, 1)
	DL   = reg("dl", TypeGeneralPurpose, 8, 2)
	BL   = reg("bl", TypeGeneralPurpose, 8, 3)
	AH   = &Register{Name: "ah", Type: TypeGeneralPurpose, Bits: 8, Reg: 4, High: true}
	CH   = &Register{Name: "ch", Type: TypeGeneralPurpose, Bits: 8, Reg: 5, High: true}
	DH   = &Register{Name: "dh", Type: TypeGeneralPurpose, Bits: 8, Reg: 6, High: true}
	BH   = &Register{Name: "bh", Type: TypeGeneralPurpose, Bits: 8, Reg: 7, High: true}
	SPL  = &Register{Name: "spl", Type: TypeGeneralPurpose, Bits: 8, Reg: 4, MinMode: Bits64}
	BPL  = &Register{Name: "bpl", Type: TypeGeneralPurpose, Bits: 8, Reg: 5, MinMode: Bits64}
	SIL  = &Register{Name: "sil", Type: TypeGeneralPurpose, Bits: 8, Reg: 6, MinMode: Bits64}
	DIL  = &Register{Name: "dil", Type: TypeGeneralPurpose, Bits: 8, Reg: 7, MinMode: Bits64}
	R8L  = reg("r8l", TypeGeneralPurpose, 8, 8)
	R9L  = reg("r9l", TypeGeneralPurpose, 8, 9)
	R10L = reg("r10l", TypeGeneralPurpose, 8, 10)
	R11L = reg("r11l", TypeGeneralPurpose, 8, 11)
	R12L = reg("r12l", TypeGeneralPurpose, 8, 12)
	R13L = reg("r13l", TypeGeneralPurpose, 8, 13)
	R14L = reg("r14l", TypeGeneralPurpose, 8, 14)
	R15L = reg("r15l", TypeGeneralPurpose, 8, 15)

	// 16-bit registers.
	AX   = reg("ax", TypeGeneralPurpose, 16, 0)
	CX   = reg("cx", TypeGeneralPurpose, 16, 1)
	DX   = reg("dx", TypeGeneralPurpose, 16, 2)
	BX   = reg("bx", TypeGeneralPurpose, 16, 3)
	SP   = reg("sp", TypeGeneralPurpose, 16, 4)
	BP   = reg("bp", TypeGeneralPurpose, 16, 5)
	SI   = reg("si", TypeGeneralPurpose, 16, 6)
	DI   = reg("di", TypeGeneralPurpose, 16, 7)
	R8W  = reg("r8w", TypeGeneralPurpose, 16, 8)
	R9W  = reg("r9w", TypeGeneralPurpose, 16, 9)
	R10W = reg("r10w", TypeGeneralPurpose, 16, 10)
	R11W = reg("r11w", TypeGeneralPurpose, 16, 11)
	R12W = reg("r12w", TypeGeneralPurpose, 16, 12)
	R13W = reg("r13w", TypeGeneralPurpose, 16, 13)
	R14W = reg("r14w", TypeGeneralPurpose, 16, 14)
	R15W = reg("r15w", TypeGeneralPurpose, 16, 15)

	// 32-bit registers.
	EAX  = reg("eax", TypeGeneralPurpose, 32, 0)
	ECX  = reg("ecx", TypeGeneralPurpose, 32, 1)
	EDX  = reg("edx", TypeGeneralPurpose, 32, 2)
	EBX  = reg("ebx", TypeGeneralPurpose, 32, 3)
	ESP  = reg("esp", TypeGeneralPurpose, 32, 4)
	EBP  = reg("ebp", TypeGeneralPurpose, 32, 5)
	ESI  = reg("esi", TypeGeneralPurpose, 32, 6)
	EDI  = reg("edi", TypeGeneralPurpose, 32, 7)
	R8D  = reg("r8d", TypeGeneralPurpose, 32, 8)
	R9D  = reg("r9d", TypeGeneralPurpose, 32, 9)
	R10D = reg("r10d", TypeGeneralPurpose, 32, 10)
	R11D = reg("r11d", TypeGeneralPurpose, 32, 11)
	R12D = reg("r12d", TypeGeneralPurpose, 32, 12)
	R13D = reg("r13d", TypeGeneralPurpose, 32, 13)
	R14D = reg("r14d", TypeGeneralPurpose, 32, 14)
	R15D = reg("r15d", TypeGeneralPurpose, 32, 15)

	// 64-bit registers.
	RAX = &Register{Name: "rax", Type: TypeGeneralPurpose, Bits: 64, Reg: 0, MinMode: Bits64}
	RCX = &Register{Name: "rcx", Type: TypeGeneralPurpose, Bits: 64, Reg: 1, MinMode: Bits64}
	RDX = &Register{Name: "rdx", Type: TypeGeneralPurpose, Bits: 64, Reg: 2, MinMode: Bits64}
	RBX = &Register{Name: "rbx", Type: TypeGeneralPurpose, Bits: 64, Reg: 3, MinMode: Bits64}
	RSP = &Register{Name: "rsp", Type: TypeGeneralPurpose, Bits: 64, Reg: 4, MinMode: Bits64}
	RBP = &Register{Name: "rbp", Type: TypeGeneralPurpose, Bits: 64, Reg: 5, MinMode: Bits64}
	RSI = &Register{Name: "rsi", Type: TypeGeneralPurpose, Bits: 64, Reg: 6, MinMode: Bits64}
	RDI = &Register{Name: "rdi", Type: TypeGeneralPurpose, Bits: 64, Reg: 7, MinMode: Bits64}
	R8  = reg("r8", TypeGeneralPurpose, 64, 8)
	R9  = reg("r9", TypeGeneralPurpose, 64, 9)
	R10 = reg("r10", TypeGeneralPurpose, 64, 10)
	R11 = reg("r11", TypeGeneralPurpose, 64, 11)
	R12 = reg("r12", TypeGeneralPurpose, 64, 12)
	R13 = reg("r13", TypeGeneralPurpose, 64, 13)
	R14 = reg("r14", TypeGeneralPurpose, 64, 14)
	R15 = reg("r15", TypeGeneralPurpose, 64, 15)

	// Segment registers.
	ES = reg("es", TypeSegment, 16, 0)
	CS = reg("cs", TypeSegment, 16, 1)
	SS = reg("ss", TypeSegment, 16, 2)
	DS = reg("ds", TypeSegment, 16, 3)
	FS = reg("fs", TypeSegment, 16, 4)
	GS = reg("gs", TypeSegment, 16, 5)

	// x87 FPU stack.
	ST0 = reg("st(0)", TypeX87, 80, 0)
	ST1 = reg("st(1)", TypeX87, 80, 1)
	ST2 = reg("st(2)", TypeX87, 80, 2)
	ST3 = reg("st(3)", TypeX87, 80, 3)
	ST4 = reg("st(4)", TypeX87, 80, 4)
	ST5 = reg("st(5)", TypeX87, 80, 5)
	ST6 = reg("st(6)", TypeX87, 80, 6)
	ST7 = reg("st(7)", TypeX87, 80, 7)

	// Control registers.
	CR0 = reg("cr0", TypeControl, 64, 0)
	CR2 = reg("cr2", TypeControl, 64, 2)
	CR3 = reg("cr3", TypeControl, 64, 3)
	CR4 = reg("cr4", TypeControl, 64, 4)
	CR8 = reg("cr8", TypeControl, 64, 8)

	// Debug registers.
	DR0 = reg("dr0", TypeDebug, 64, 0)
	DR1 = reg("dr1", TypeDebug, 64, 1)
	DR2 = reg("dr2", TypeDebug, 64, 2)
	DR3 = reg("dr3", TypeDebug, 64, 3)
	DR6 = reg("dr6", TypeDebug, 64, 6)
	DR7 = reg("dr7", TypeDebug, 64, 7)
)

// Scale is the multiplier applied to
// a SIB index register.
type Scale uint8

const (
	Scale1 Scale = iota
	Scale2
	Scale4
	Scale8
)

func (s Scale) Value() int64   { return int64(s) }
func (s Scale) String() string { return strconv.Itoa(1 << s) }

// Address16 is one of the eight register
// combinations of 16-bit addressing,
// selected by ModR/M.rm.
//
// Intel x86 manuals, Volume 2A,
// Section 2.1.5, Table 2-1.
type Address16 uint8

const (
	AddressBXSI Address16 = iota
	AddressBXDI
	AddressBPSI
	AddressBPDI
	AddressSI
	AddressDI
	AddressBP
	AddressBX
)

var address16Names = [...]string{"bx+si", "bx+di", "bp+si", "bp+di", "si", "di", "bp", "bx"}

func (a Address16) Value() int64   { return int64(a) }
func (a Address16) String() string { return address16Names[a&7] }

// Immediate is a numeric argument, such
// as an immediate, a displacement, or a
// relative offset.
type Immediate int64

func (i Immediate) Value() int64 { return int64(i) }

func (i Immediate) String() string {
	if i < 10 {
		return strconv.FormatInt(int64(i), 10)
	}

	return "0x" + strconv.FormatInt(int64(i), 16)
}

// FitsIn returns whether i can be stored
// in the given number of bits, either as
// a signed or an unsigned value.
func (i Immediate) FitsIn(bits int) bool {
	if bits >= 64 {
		return true
	}

	min := -(int64(1) << (bits - 1))
	max := int64(1)<<bits - 1
	return min <= int64(i) && int64(i) <= max
}

// RegisterClass is a named, ordered set
// of arguments, such as the 64-bit
// general purpose registers.
type RegisterClass struct {
	Name string
	Args []Argument
}

func (c *RegisterClass) String() string { return c.Name }

// Lookup returns the class member with
// the given name.
func (c *RegisterClass) Lookup(name string) (Argument, bool) {
	name = normalizeName(name)
	for _, arg := range c.Args {
		if arg.String() == name {
			return arg, true
		}
	}

	return nil, false
}

// Supported returns the members of c
// that can be used with the given
// target width.
func (c *RegisterClass) Supported(mode Width) []Argument {
	out := make([]Argument, 0, len(c.Args))
	for _, arg := range c.Args {
		if r, ok := arg.(*Register); ok && !r.Supports(mode) {
			continue
		}

		out = append(out, arg)
	}

	return out
}

func class(name string, regs ...*Register) *RegisterClass {
	args := make([]Argument, len(regs))
	for i, r := range regs {
		args[i] = r
	}

	return &RegisterClass{Name: name, Args: args}
}

var (
	registers8  = []*Register{AL, CL, DL, BL, AH, CH, DH, BH, SPL, BPL, SIL, DIL, R8L, R9L, R10L, R11L, R12L, R13L, R14L, R15L}
	registers16 = []*Register{AX, CX, DX, BX, SP, BP, SI, DI, R8W, R9W, R10W, R11W, R12W, R13W, R14W, R15W}
	registers32 = []*Register{EAX, ECX, EDX, EBX, ESP, EBP, ESI, EDI, R8D, R9D, R10D, R11D, R12D, R13D, R14D, R15D}
	registers64 = []*Register{RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15}

	GeneralRegisters8  = class("GeneralRegister8", registers8...)
	GeneralRegisters16 = class("GeneralRegister16", registers16...)
	GeneralRegisters32 = class("GeneralRegister32", registers32...)
	GeneralRegisters64 = class("GeneralRegister64", registers64...)

	IndirectRegisters32 = class("IndirectRegister32", registers32...)
	IndirectRegisters64 = class("IndirectRegister64", registers64...)
	BaseRegisters32     = class("BaseRegister32", registers32...)
	BaseRegisters64     = class("BaseRegister64", registers64...)
	IndexRegisters32    = class("IndexRegister32", EAX, ECX, EDX, EBX, EBP, ESI, EDI, R8D, R9D, R10D, R11D, R12D, R13D, R14D, R15D)
	IndexRegisters64    = class("IndexRegister64", RAX, RCX, RDX, RBX, RBP, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15)

	IndirectRegisters16 = &RegisterClass{
		Name: "IndirectRegister16",
		Args: []Argument{AddressBXSI, AddressBXDI, AddressBPSI, AddressBPDI, AddressSI, AddressDI, AddressBP, AddressBX},
	}

	Scales = &RegisterClass{Name: "Scale", Args: []Argument{Scale1, Scale2, Scale4, Scale8}}

	SegmentRegisters  = class("SegmentRegister", ES, CS, SS, DS, FS, GS)
	StackRegisters    = class("FPStackRegister", ST0, ST1, ST2, ST3, ST4, ST5, ST6, ST7)
	ControlRegisters  = class("ControlRegister", CR0, CR2, CR3, CR4, CR8)
	DebugRegisters    = class("DebugRegister", DR0, DR1, DR2, DR3, DR6, DR7)
	MMXRegisters      = &RegisterClass{Name: "MMXRegister"}
	XMMRegisters      = &RegisterClass{Name: "XMMRegister"}
	RegistersByName   = make(map[string]*Register)
	registerClassSets = []*RegisterClass{
		GeneralRegisters8, GeneralRegisters16, GeneralRegisters32, GeneralRegisters64,
		SegmentRegisters, StackRegisters, ControlRegisters, DebugRegisters,
		MMXRegisters, XMMRegisters,
	}
)

func init() {
	for i := byte(0); i < 8; i++ {
		MMXRegisters.Args = append(MMXRegisters.Args, reg(fmt.Sprintf("mm%d", i), TypeMMX, 64, i))
	}

	for i := byte(0); i < 16; i++ {
		XMMRegisters.Args = append(XMMRegisters.Args, reg(fmt.Sprintf("xmm%d", i), TypeXMM, 128, i))
	}

	for _, c := range registerClassSets {
		for _, arg := range c.Args {
			r := arg.(*Register)
			if RegistersByName[r.Name] != nil {
				panic("register " + r.Name + " defined twice")
			}

			RegistersByName[r.Name] = r
		}
	}
}

// GeneralRegisters returns the class
// of general purpose registers with
// the given size.
func GeneralRegisters(bits int) *RegisterClass {
	switch bits {
	case 8:
		return GeneralRegisters8
	case 16:
		return GeneralRegisters16
	case 32:
		return GeneralRegisters32
	case 64:
		return GeneralRegisters64
	}

	return nil
}

// IndirectRegisters returns the class
// of registers usable in ModR/M.rm for
// a memory reference with the given
// address size.
func IndirectRegisters(addressSize Width) *RegisterClass {
	switch addressSize {
	case Bits16:
		return IndirectRegisters16
	case Bits32:
		return IndirectRegisters32
	}

	return IndirectRegisters64
}

// BaseRegisters returns the class of
// SIB base registers.
func BaseRegisters(addressSize Width) *RegisterClass {
	if addressSize == Bits32 {
		return BaseRegisters32
	}

	return BaseRegisters64
}

// IndexRegisters returns the class of
// SIB index registers.
func IndexRegisters(addressSize Width) *RegisterClass {
	if addressSize == Bits32 {
		return IndexRegisters32
	}

	return IndexRegisters64
}

// ParseRegister parses a register name,
// accepting "st0" and "st(0)" alike.
func ParseRegister(s string) (*Register, error) {
	r, ok := RegistersByName[normalizeName(s)]
	if !ok {
		return nil, fmt.Errorf("invalid register %q", s)
	}

	return r, nil
}

func normalizeName(s string) string {
	name := strings.ToLower(s)
	if len(name) == 3 && strings.HasPrefix(name, "st") {
		name = "st(" + name[2:] + ")"
	}

	return name
}
