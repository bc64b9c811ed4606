// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86gen

import (
	"fmt"

	"firefly-os.dev/tools/asmgen/internal/x86"
)

// RMCase selects how ModR/M.rm is used
// for a memory operand.
type RMCase uint8

const (
	RMNormal RMCase = iota // rm names a register or register-indirect form.
	RMSIB                  // rm is 100, a SIB byte follows.
	RMSWord                // rm is 110 with mod 00 and 16-bit addressing: disp16 only.
	RMSDWord               // rm is 101 with mod 00: disp32 only, or RIP-relative.
)

// RMCases lists the r/m cases in
// enumeration order.
var RMCases = []RMCase{RMNormal, RMSIB, RMSWord, RMSDWord}

// RM returns the fixed value of the
// r/m field for c. For RMNormal, the
// field is filled by a parameter.
func (c RMCase) RM() byte {
	switch c {
	case RMSIB:
		return x86.ModRMrmSIB
	case RMSWord:
		return x86.ModRMrmDisplacementOnly16
	case RMSDWord:
		return x86.ModRMrmDisplacementOnly32
	}

	return 0
}

func (c RMCase) String() string {
	switch c {
	case RMNormal:
		return "normal"
	case RMSIB:
		return "sib"
	case RMSWord:
		return "sword"
	case RMSDWord:
		return "sdword"
	}

	return fmt.Sprintf("RMCase(%d)", c)
}

// SIBIndexCase says whether the SIB
// index is a register.
type SIBIndexCase uint8

const (
	IndexRegister SIBIndexCase = iota
	IndexNone                  // index is 100.
)

var SIBIndexCases = []SIBIndexCase{IndexRegister, IndexNone}

func (c SIBIndexCase) String() string {
	if c == IndexNone {
		return "none"
	}

	return "register"
}

// SIBBaseCase says whether the SIB base
// is a register.
type SIBBaseCase uint8

const (
	BaseRegister SIBBaseCase = iota
	BaseSpecial              // base is 101 with mod 00: disp32, no base.
)

var SIBBaseCases = []SIBBaseCase{BaseRegister, BaseSpecial}

func (c SIBBaseCase) String() string {
	if c == BaseSpecial {
		return "special"
	}

	return "register"
}

// Context is the set of choices made
// while enumerating the variants of a
// description.
//
// Context is a value type: assigning it
// takes a snapshot, so a choice made in
// one branch of the enumeration is never
// seen by a sibling branch.
type Context struct {
	AddressSize x86.Width
	OperandSize x86.Width

	// The fields below are only meaningful
	// for instructions with a ModR/M byte.
	ModCase        x86.ModCase
	GroupOpcode    uint8
	HasGroupOpcode bool
	RMCase         RMCase
	SIBIndexCase   SIBIndexCase
	SIBBaseCase    SIBBaseCase
}

func (c Context) String() string {
	s := fmt.Sprintf("address size %d, operand size %d, mod %s", c.AddressSize, c.OperandSize, c.ModCase)
	if c.HasGroupOpcode {
		s += fmt.Sprintf(", group opcode /%d", c.GroupOpcode)
	}

	s += ", rm " + c.RMCase.String()
	if c.RMCase == RMSIB {
		s += fmt.Sprintf(", sib index %s, sib base %s", c.SIBIndexCase, c.SIBBaseCase)
	}

	return s
}
