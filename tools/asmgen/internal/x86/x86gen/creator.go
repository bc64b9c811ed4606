// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86gen

import (
	"fmt"
	"io"
	"log"

	"firefly-os.dev/tools/asmgen/internal/x86"
	"firefly-os.dev/tools/asmgen/internal/x86/desc"
)

// Creator enumerates the templates for
// a sequence of descriptions.
//
// Templates are numbered in creation
// order, starting at 1. A template that
// is redundant with an earlier one is
// dropped, or kept and marked as such
// if the config allows it.
type Creator struct {
	cfg       Config
	templates []*Template
	byName    map[string][]*Template
	serial    int
	log       *log.Logger

	// Per-description statistics.
	pruned    int
	redundant int
}

// NewCreator returns a creator using cfg.
// cfg cannot be changed afterwards.
func NewCreator(cfg *Config) *Creator {
	return newCreator(cfg.freeze())
}

func newCreator(cfg Config) *Creator {
	return &Creator{
		cfg:    cfg,
		byName: make(map[string][]*Template),
		log:    log.New(io.Discard, "", 0),
	}
}

// SetLogger enables logging of the
// work done for each description.
func (c *Creator) SetLogger(l *log.Logger) {
	c.log = l
}

// Templates returns the templates
// created so far, in serial order.
func (c *Creator) Templates() []*Template {
	return c.templates
}

// CreateTemplates creates every template
// for d. It returns an error if d is
// malformed.
func (c *Creator) CreateTemplates(d *desc.Description) error {
	a, err := Assess(d)
	if err != nil {
		return fmt.Errorf("%s: %w", d, err)
	}

	c.pruned, c.redundant = 0, 0
	before := len(c.templates)
	var ctx Context
	for _, addressSize := range c.addressSizes(d, a) {
		ctx.AddressSize = addressSize
		for _, operandSize := range c.operandSizes(d, a) {
			ctx.OperandSize = operandSize
			if !a.ModRM {
				err = c.create(d, a, ctx)
			} else {
				err = c.createModCases(d, a, ctx)
			}

			if err != nil {
				return err
			}
		}
	}

	c.log.Printf("%s: %s: %d templates, %d pruned, %d redundant", d, a, len(c.templates)-before, c.pruned, c.redundant)

	return nil
}

// addressSizes returns the address sizes
// to enumerate for d.
func (c *Creator) addressSizes(d *desc.Description, a *Assessment) []x86.Width {
	width := c.cfg.addressWidth
	if d.RequiredAddressSize != 0 {
		if d.RequiredAddressSize != width && !c.cfg.support16BitAddresses {
			return nil
		}

		return []x86.Width{d.RequiredAddressSize}
	}

	sizes := []x86.Width{width}
	if a.AddressSizeVariants && c.cfg.support16BitAddresses {
		sizes = append(sizes, width.Half())
	}

	return sizes
}

// operandSizes returns the operand sizes
// to enumerate for d.
func (c *Creator) operandSizes(d *desc.Description, a *Assessment) []x86.Width {
	if d.RequiredOperandSize != 0 {
		return []x86.Width{d.RequiredOperandSize}
	}

	default64 := d.DefaultOperandSize == x86.Bits64 && c.cfg.addressWidth == x86.Bits64
	if !a.OperandSizeVariants {
		if default64 {
			return []x86.Width{x86.Bits64}
		}

		return []x86.Width{x86.Bits32}
	}

	var sizes []x86.Width
	if !default64 {
		sizes = append(sizes, x86.Bits32)
	}

	if c.cfg.addressWidth == x86.Bits64 {
		sizes = append(sizes, x86.Bits64)
	}

	if !a.Jump || c.cfg.support16BitOffsets {
		sizes = append(sizes, x86.Bits16)
	}

	return sizes
}

func (c *Creator) createModCases(d *desc.Description, a *Assessment, ctx Context) error {
	for _, mod := range x86.ModCases {
		ctx.ModCase = mod
		if a.Group == nil {
			if err := c.createRMCases(d, a, ctx); err != nil {
				return err
			}

			continue
		}

		ctx.HasGroupOpcode = true
		for op := uint8(0); op < 8; op++ {
			if a.Group.Lookup(op, mod) == nil {
				continue
			}

			ctx.GroupOpcode = op
			if err := c.createRMCases(d, a, ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

func (c *Creator) createRMCases(d *desc.Description, a *Assessment, ctx Context) error {
	for _, rm := range RMCases {
		ctx.RMCase = rm
		if ctx.ModCase == x86.Mod11 {
			if rm != RMNormal {
				continue
			}

			if err := c.create(d, a, ctx); err != nil {
				return err
			}

			continue
		}

		switch rm {
		case RMSIB:
			if ctx.AddressSize == x86.Bits16 {
				continue
			}

			if err := c.createSIBCases(d, a, ctx); err != nil {
				return err
			}

			continue
		case RMSWord:
			if ctx.ModCase != x86.Mod00 || ctx.AddressSize != x86.Bits16 {
				continue
			}
		case RMSDWord:
			if ctx.ModCase != x86.Mod00 || ctx.AddressSize == x86.Bits16 {
				continue
			}
		}

		if err := c.create(d, a, ctx); err != nil {
			return err
		}
	}

	return nil
}

func (c *Creator) createSIBCases(d *desc.Description, a *Assessment, ctx Context) error {
	for _, index := range SIBIndexCases {
		ctx.SIBIndexCase = index
		for _, base := range SIBBaseCases {
			if base == BaseSpecial && ctx.ModCase != x86.Mod00 {
				continue
			}

			ctx.SIBBaseCase = base
			if err := c.create(d, a, ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// create builds a single template and
// keeps it unless it is redundant.
func (c *Creator) create(d *desc.Description, a *Assessment, ctx Context) error {
	t, ok, err := build(&c.cfg, a, d, ctx)
	if err != nil {
		return err
	}

	if !ok {
		c.pruned++
		return nil
	}

	for _, prev := range c.byName[t.internalName] {
		if t.ComputeRedundancyWith(prev) {
			c.redundant++
			break
		}
	}

	if t.redundant && !c.cfg.redundantTemplates {
		return nil
	}

	c.serial++
	t.Serial = c.serial
	c.templates = append(c.templates, t)
	c.byName[t.internalName] = append(c.byName[t.internalName], t)

	return nil
}
