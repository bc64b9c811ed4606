// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package desc

import (
	"fmt"
	"strconv"
	"strings"

	"firefly-os.dev/tools/asmgen/internal/x86"
)

var varyingRegisters = []string{"AX", "CX", "DX", "BX", "SP", "BP", "SI", "DI"}

// ParseSpec parses a single description
// token, as written in the opcode maps:
//
//   - "0x0f": an opcode byte
//   - "Ev", "Ib": an operand code
//   - "M": an addressing method alone
//   - "v": an operand type alone
//   - "AL", "DX", "ES": a fixed register
//   - "eAX", "rSP": a varying register
//   - "ST", "ST(i)": the x87 stack
//   - "1": an implicit integer
//   - a name in groups: a ModR/M group
//   - anything else upper case: a mnemonic
func ParseSpec(s string, groups map[string]*Group) (Spec, error) {
	if s == "" {
		return nil, fmt.Errorf("invalid specification: empty token")
	}

	if g, ok := groups[s]; ok {
		return GroupRef{Group: g}, nil
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		b, err := x86.ParseHexByte(s)
		if err != nil {
			return nil, err
		}

		return Byte(b), nil
	}

	switch s {
	case "ST":
		return Stack{}, nil
	case "ST(i)":
		return Stack{Indexed: true}, nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Integer(n), nil
	}

	if len(s) == 3 && (s[0] == 'e' || s[0] == 'r') {
		for i, name := range varyingRegisters {
			if s[1:] == name {
				return Varying{Prefix: s[0], Reg: byte(i)}, nil
			}
		}
	}

	if code, ok := x86.ParseOperandCode(s); ok {
		return Operand(code), nil
	}

	if m, ok := x86.ParseAddressingMethod(s); ok {
		return Method(m), nil
	}

	if t, ok := x86.ParseOperandType(s); ok {
		return Type(t), nil
	}

	if r, ok := x86.RegistersByName[strings.ToLower(s)]; ok && s == strings.ToUpper(s) {
		return Fixed{Register: r}, nil
	}

	for _, c := range s {
		if !('A' <= c && c <= 'Z') && !('0' <= c && c <= '9') && c != '_' {
			return nil, fmt.Errorf("invalid specification %q", s)
		}
	}

	return Name(s), nil
}

// ParseArgument parses an argument used
// in test exclusion lists. Registers are
// given by name, and anything else is
// parsed as an integer.
func ParseArgument(s string) (x86.Argument, error) {
	if r, err := x86.ParseRegister(s); err == nil {
		return r, nil
	}

	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid argument %q: not a register or integer", s)
	}

	return x86.Immediate(n), nil
}
