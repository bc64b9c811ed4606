// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86gen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"firefly-os.dev/tools/asmgen/internal/x86"
	"firefly-os.dev/tools/asmgen/internal/x86/desc"
)

var (
	// ErrMalformedDescription is returned for
	// descriptions that cannot describe a valid
	// instruction under any context.
	ErrMalformedDescription = errors.New("malformed description")

	// ErrSuffixConflict is returned when two
	// operands imply different operand size
	// suffixes.
	ErrSuffixConflict = errors.New("conflicting operand size suffixes")

	// errNotNeeded abandons a template whose
	// context makes no sense for its
	// description.
	errNotNeeded = errors.New("template not needed")
)

// builder fills in a template by
// visiting its description under a
// fixed context.
type builder struct {
	cfg        *Config
	assessment *Assessment
	ctx        Context
	t          *Template
	bytes      int // Opcode bytes seen so far.
	group      *desc.Group
	suffixType x86.OperandType
}

var _ desc.Visitor = (*builder)(nil)

// build creates the template for d in
// ctx. If the context does not apply to
// d, ok is false and err is nil.
func build(cfg *Config, a *Assessment, d *desc.Description, ctx Context) (t *Template, ok bool, err error) {
	b := &builder{
		cfg:        cfg,
		assessment: a,
		ctx:        ctx,
		t: &Template{
			Description: d,
			Context:     ctx,
			HasModRM:    a.ModRM,
			HasSIB:      a.ModRM && ctx.RMCase == RMSIB && ctx.ModCase != x86.Mod11,
		},
	}

	err = b.run(d)
	if errors.Is(err, errNotNeeded) {
		return nil, false, nil
	}

	if err != nil {
		name := b.t.Mnemonic
		if name == "" {
			name = d.String()
		}

		return nil, false, fmt.Errorf("%s [%s]: %w", name, ctx, err)
	}

	return b.t, true, nil
}

func (b *builder) run(d *desc.Description) error {
	next, err := desc.Visit(b, d, desc.Destination)
	if err != nil {
		return err
	}

	if b.group != nil {
		if !b.ctx.HasGroupOpcode {
			return fmt.Errorf("%w: no group opcode chosen for group %s", ErrMalformedDescription, b.group.Name)
		}

		entry := b.group.Lookup(b.ctx.GroupOpcode, b.ctx.ModCase)
		if entry == nil {
			return errNotNeeded
		}

		if entry.ExternalName != "" {
			b.t.externalName = entry.ExternalName
		}

		_, err = desc.Visit(b, entry, next)
		if err != nil {
			return err
		}
	}

	if b.t.Mnemonic == "" {
		return fmt.Errorf("%w: no mnemonic", ErrMalformedDescription)
	}

	if b.bytes == 0 {
		return fmt.Errorf("%w: no opcode", ErrMalformedDescription)
	}

	if d.ExternalName != "" {
		b.t.externalName = d.ExternalName
	}

	places := make(map[x86.Place]*Parameter)
	names := make(map[string]int)
	for _, p := range b.t.Parameters {
		if p.Place != x86.PlaceAppend {
			if prev := places[p.Place]; prev != nil {
				return fmt.Errorf("%w: parameters %s and %s both use %s", ErrMalformedDescription, prev.Name, p.Name, p.Place)
			}

			places[p.Place] = p
		}

		// Numbered names keep parameter
		// names unique.
		names[p.Name]++
		if n := names[p.Name]; n > 1 {
			p.Name += "_" + strconv.Itoa(n)
		}
	}

	b.t.computeNames()

	return nil
}

func (b *builder) addParameter(p *Parameter) {
	p.target = b.cfg.addressWidth
	b.t.Parameters = append(b.t.Parameters, p)
}

// place returns p, or its REX variant
// when the target has REX prefixes.
func (b *builder) place(p x86.Place) x86.Place {
	if b.cfg.addressWidth == x86.Bits64 {
		return p.WithREX()
	}

	return p
}

// opcodePlace is where a register
// encoded in the opcode goes: the last
// opcode byte seen so far.
func (b *builder) opcodePlace() x86.Place {
	if b.bytes >= 2 {
		return x86.PlaceOpcode2
	}

	return x86.PlaceOpcode1
}

// setSuffix records the external operand
// size suffix implied by an operand type.
func (b *builder) setSuffix(t x86.OperandType) error {
	var suffix string
	switch t {
	case x86.TypeB:
		suffix = "b"
	case x86.TypeV, x86.TypeZ, x86.TypeY:
		switch b.ctx.OperandSize {
		case x86.Bits16:
			if t == x86.TypeY {
				return errNotNeeded
			}

			suffix = "w"
		case x86.Bits32:
			suffix = "l"
		case x86.Bits64:
			suffix = "q"
		}
	default:
		return nil
	}

	if b.t.suffix != "" && b.t.suffix != suffix {
		return fmt.Errorf("%w: %s implies %q after %s implied %q", ErrSuffixConflict, t, suffix, b.suffixType, b.t.suffix)
	}

	b.t.suffix = suffix
	b.suffixType = t

	return nil
}

// bits returns the size of an operand of
// type t, abandoning the template if the
// operand size does not apply.
func (b *builder) bits(t x86.OperandType) (int, error) {
	bits, ok := t.Bits(b.ctx.OperandSize)
	if !ok {
		return 0, errNotNeeded
	}

	return bits, nil
}

func (b *builder) VisitName(name string) error {
	b.t.Mnemonic = name
	return nil
}

func (b *builder) VisitByte(v x86.HexByte) error {
	switch b.bytes {
	case 0:
		b.t.Opcode1 = v
	case 1:
		b.t.Opcode2 = v
		b.t.HasOpcode2 = true
	case 2:
		// The first byte was an instruction
		// selection prefix.
		if b.t.Opcode1 == x86.PrefixOperandSize && b.ctx.OperandSize == x86.Bits16 {
			return errNotNeeded
		}

		b.t.Prefix, b.t.HasPrefix = b.t.Opcode1, true
		b.t.Opcode1, b.t.Opcode2 = b.t.Opcode2, v
	default:
		return fmt.Errorf("%w: too many opcode bytes", ErrMalformedDescription)
	}

	b.bytes++

	return nil
}

func (b *builder) VisitOperand(code x86.OperandCode, d desc.Designation, c desc.Constraints) error {
	switch code.Method {
	case x86.MethodE, x86.MethodG, x86.MethodM, x86.MethodO, x86.MethodR, x86.MethodX, x86.MethodY, x86.MethodZ:
		if err := b.setSuffix(code.Type); err != nil {
			return err
		}
	}

	switch code.Method {
	case x86.MethodA:
		if b.cfg.addressWidth == x86.Bits64 {
			return errNotNeeded
		}

		bits, err := b.bits(code.Type)
		if err != nil {
			return err
		}

		b.addParameter(&Parameter{Kind: KindAddress, Place: x86.PlaceAppend, Name: "addr", Bits: bits - 16})
		b.addParameter(&Parameter{Kind: KindNumeric, Place: x86.PlaceAppend, Name: "selector", Bits: 16})
	case x86.MethodC:
		return b.addRegister(x86.ControlRegisters, b.place(x86.PlaceModReg), "reg", c)
	case x86.MethodD:
		return b.addRegister(x86.DebugRegisters, b.place(x86.PlaceModReg), "reg", c)
	case x86.MethodG:
		bits, err := b.bits(code.Type)
		if err != nil {
			return err
		}

		return b.addRegister(x86.GeneralRegisters(bits), b.place(x86.PlaceModReg), "reg", c)
	case x86.MethodP:
		return b.addRegister(x86.MMXRegisters, x86.PlaceModReg, "reg", c)
	case x86.MethodS:
		return b.addRegister(x86.SegmentRegisters, x86.PlaceModReg, "reg", c)
	case x86.MethodV:
		return b.addRegister(x86.XMMRegisters, b.place(x86.PlaceModReg), "reg", c)
	case x86.MethodE, x86.MethodM, x86.MethodN, x86.MethodQ, x86.MethodR, x86.MethodU, x86.MethodW:
		return b.addRM(code, c)
	case x86.MethodI:
		bits, err := b.bits(code.Type)
		if err != nil {
			return err
		}

		p := &Parameter{Kind: KindNumeric, Place: x86.PlaceAppend, Bits: bits}
		p.Name = strings.ToLower(p.Type())
		b.constrain(p, c)
		b.addParameter(p)
	case x86.MethodJ:
		bits, err := b.bits(code.Type)
		if err != nil {
			return err
		}

		p := &Parameter{Kind: KindOffset, Place: x86.PlaceAppend, Bits: bits}
		p.Name = strings.ToLower(p.Type())
		b.constrain(p, c)
		b.addParameter(p)
	case x86.MethodO:
		p := &Parameter{Kind: KindAddress, Place: x86.PlaceAppend, Bits: int(b.ctx.AddressSize)}
		p.Name = strings.ToLower(p.Type())
		b.constrain(p, c)
		b.addParameter(p)
	case x86.MethodX, x86.MethodY:
		// String operands are addressed
		// through rSI and rDI.
	case x86.MethodZ:
		bits, err := b.bits(code.Type)
		if err != nil {
			return err
		}

		return b.addRegister(x86.GeneralRegisters(bits), b.place(b.opcodePlace()), "reg", c)
	default:
		return fmt.Errorf("%w: unsupported operand %s", ErrMalformedDescription, code)
	}

	return nil
}

func (b *builder) VisitMethod(m x86.AddressingMethod, d desc.Designation, c desc.Constraints) error {
	switch m {
	case x86.MethodM:
		return b.addMemory(c)
	case x86.MethodX, x86.MethodY:
		return nil
	}

	return fmt.Errorf("%w: addressing method %s needs an operand type", ErrMalformedDescription, m)
}

func (b *builder) VisitType(t x86.OperandType) error {
	return b.setSuffix(t)
}

func (b *builder) VisitFixed(r *x86.Register, d desc.Designation) error {
	b.t.Implicit = append(b.t.Implicit, ImplicitOperand{Name: r.Name, Designation: d})
	return nil
}

func (b *builder) VisitVarying(v desc.Varying, d desc.Designation) error {
	// eAX and friends have no 64-bit form.
	if v.Prefix == 'e' && b.ctx.OperandSize == x86.Bits64 {
		return errNotNeeded
	}

	r := v.Resolve(b.ctx.OperandSize)
	if err := b.setSuffix(x86.TypeV); err != nil {
		return err
	}

	b.t.Implicit = append(b.t.Implicit, ImplicitOperand{Name: r.Name, Designation: d})

	return nil
}

func (b *builder) VisitStack(s desc.Stack, d desc.Designation, c desc.Constraints) error {
	if !s.Indexed {
		b.t.Implicit = append(b.t.Implicit, ImplicitOperand{Name: "st", Designation: d})
		return nil
	}

	return b.addRegister(x86.StackRegisters, b.opcodePlace(), "st_i", c)
}

// VisitInteger records an implicit integer.
// It is part of the name, but is not
// encoded.
func (b *builder) VisitInteger(n int64, d desc.Designation) error {
	b.t.Implicit = append(b.t.Implicit, ImplicitOperand{Name: strconv.FormatInt(n, 10), Designation: d})
	return nil
}

func (b *builder) VisitGroup(g *desc.Group) error {
	if b.group != nil {
		return fmt.Errorf("%w: nested group %s", ErrMalformedDescription, g.Name)
	}

	b.group = g

	return nil
}

func (b *builder) constrain(p *Parameter, c desc.Constraints) {
	p.Excluded = append(p.Excluded, c.Excluded...)
	p.ExcludedExternal = append(p.ExcludedExternal, c.ExcludedExternal...)
	p.HasRange, p.Min, p.Max = c.HasRange, c.Min, c.Max
}

func (b *builder) addRegister(class *x86.RegisterClass, place x86.Place, name string, c desc.Constraints) error {
	if class == nil {
		return fmt.Errorf("%w: no register class for %s", ErrMalformedDescription, name)
	}

	p := &Parameter{Kind: KindEnumerable, Place: place, Name: name, Class: class}
	b.constrain(p, c)
	b.addParameter(p)

	return nil
}

// addRM adds the parameters for an
// operand in ModR/M.rm: a register in
// mod 11 and a memory reference
// otherwise.
func (b *builder) addRM(code x86.OperandCode, c desc.Constraints) error {
	if b.ctx.ModCase != x86.Mod11 {
		if code.Method.RegisterOnly() {
			return errNotNeeded
		}

		return b.addMemory(c)
	}

	if code.Method.MemoryOnly() {
		return errNotNeeded
	}

	var class *x86.RegisterClass
	place := b.place(x86.PlaceModRM)
	switch code.Method {
	case x86.MethodE, x86.MethodR:
		bits, err := b.bits(code.Type)
		if err != nil {
			return err
		}

		class = x86.GeneralRegisters(bits)
	case x86.MethodN, x86.MethodQ:
		class = x86.MMXRegisters
		place = x86.PlaceModRM
	case x86.MethodU, x86.MethodW:
		class = x86.XMMRegisters
	}

	return b.addRegister(class, place, "rm", c)
}

// exclude adds the members of class whose
// low three bits are one of values to
// the parameter's exclusions.
func exclude(p *Parameter, values ...int64) {
	for _, arg := range p.Class.Args {
		for _, v := range values {
			if arg.Value()&7 == v {
				p.Excluded = append(p.Excluded, arg)
			}
		}
	}
}

func (b *builder) displacement(bits int) {
	p := &Parameter{Kind: KindDisplacement, Place: x86.PlaceAppend, Bits: bits}
	p.Name = p.Type()
	b.addParameter(p)
}

// addMemory adds the parameters for a
// memory reference, following the mod,
// r/m, and SIB cases in the context.
//
// Intel x86 manuals, Volume 2A,
// Section 2.1.5, Tables 2-1 to 2-3.
func (b *builder) addMemory(c desc.Constraints) error {
	ctx := b.ctx
	if ctx.ModCase == x86.Mod11 {
		return errNotNeeded
	}

	if ctx.AddressSize == x86.Bits16 {
		switch ctx.RMCase {
		case RMNormal:
		case RMSWord:
			b.t.namePrefix = "m_"
			b.displacement(16)
			return nil
		default:
			return errNotNeeded
		}

		switch ctx.ModCase {
		case x86.Mod01:
			b.displacement(8)
		case x86.Mod10:
			b.displacement(16)
		}

		p := &Parameter{Kind: KindEnumerable, Place: x86.PlaceModRM, Name: "rm", Class: x86.IndirectRegisters16}
		b.constrain(p, c)
		if ctx.ModCase == x86.Mod00 {
			exclude(p, x86.ModRMrmDisplacementOnly16)
		}

		b.addParameter(p)

		return nil
	}

	switch ctx.RMCase {
	case RMNormal:
		switch ctx.ModCase {
		case x86.Mod01:
			b.displacement(8)
		case x86.Mod10:
			b.displacement(32)
		}

		p := &Parameter{Kind: KindEnumerable, Place: b.place(x86.PlaceModRM), Name: "rm", Class: x86.IndirectRegisters(ctx.AddressSize)}
		b.constrain(p, c)
		exclude(p, x86.ModRMrmSIB)
		if ctx.ModCase == x86.Mod00 {
			exclude(p, x86.ModRMrmDisplacementOnly32)
		}

		b.addParameter(p)
	case RMSIB:
		switch {
		case ctx.ModCase == x86.Mod01:
			b.displacement(8)
		case ctx.ModCase == x86.Mod10:
			b.displacement(32)
		case ctx.SIBBaseCase == BaseSpecial:
			b.t.namePrefix = "m_"
			b.displacement(32)
		}

		if ctx.SIBBaseCase == BaseRegister {
			p := &Parameter{Kind: KindEnumerable, Place: b.place(x86.PlaceSIBBase), Name: "base", Class: x86.BaseRegisters(ctx.AddressSize)}
			b.constrain(p, c)
			if ctx.ModCase == x86.Mod00 {
				exclude(p, x86.SIBbaseNone)
			}

			b.addParameter(p)
		}

		if ctx.SIBIndexCase == IndexRegister {
			p := &Parameter{Kind: KindEnumerable, Place: b.place(x86.PlaceSIBIndex), Name: "index", Class: x86.IndexRegisters(ctx.AddressSize)}
			b.constrain(p, c)
			b.addParameter(p)
			b.addParameter(&Parameter{Kind: KindEnumerable, Place: x86.PlaceSIBScale, Name: "scale", Class: x86.Scales})
		}
	case RMSDWord:
		if b.cfg.addressWidth == x86.Bits64 {
			b.t.namePrefix = "rip_"
		} else {
			b.t.namePrefix = "m_"
		}

		b.displacement(32)
	default:
		return errNotNeeded
	}

	return nil
}
