// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86gen

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"firefly-os.dev/tools/asmgen/internal/x86"
)

// jsonTemplate is the JSON form of a
// template, one per line.
type jsonTemplate struct {
	Serial      int             `json:"serial"`
	Method      string          `json:"method"`
	External    string          `json:"external"`
	Redundant   bool            `json:"redundant,omitempty"`
	Canonical   int             `json:"canonical,omitempty"`
	Prefix      string          `json:"prefix,omitempty"`
	Opcode      []string        `json:"opcode"`
	AddressSize int             `json:"addressSize"`
	OperandSize int             `json:"operandSize"`
	Mod         string          `json:"mod,omitempty"`
	GroupOpcode *uint8          `json:"groupOpcode,omitempty"`
	RM          string          `json:"rm,omitempty"`
	SIBIndex    string          `json:"sibIndex,omitempty"`
	SIBBase     string          `json:"sibBase,omitempty"`
	Parameters  []jsonParameter `json:"parameters,omitempty"`
	Description string          `json:"description"`
}

type jsonParameter struct {
	Name  string    `json:"name"`
	Kind  string    `json:"kind"`
	Type  string    `json:"type"`
	Place x86.Place `json:"place"`
}

// WriteJSON writes the templates as a
// sequence of JSON objects.
func WriteJSON(w io.Writer, templates []*Template) error {
	jw := json.NewEncoder(w)
	jw.SetEscapeHTML(false)
	for _, t := range templates {
		jt := jsonTemplate{
			Serial:      t.Serial,
			Method:      t.MethodName(),
			External:    t.ExternalName(),
			Redundant:   t.IsRedundant(),
			Opcode:      []string{t.Opcode1.String()},
			AddressSize: int(t.AddressSize()),
			OperandSize: int(t.OperandSize()),
			Description: t.Description.String(),
		}

		if t.IsRedundant() {
			jt.Canonical = t.Canonical().Serial
		}

		if t.HasPrefix {
			jt.Prefix = t.Prefix.String()
		}

		if t.HasOpcode2 {
			jt.Opcode = append(jt.Opcode, t.Opcode2.String())
		}

		if t.HasModRM {
			jt.Mod = t.Context.ModCase.String()
			jt.RM = t.Context.RMCase.String()
			if t.Context.HasGroupOpcode {
				op := t.Context.GroupOpcode
				jt.GroupOpcode = &op
			}

			if t.HasSIB {
				jt.SIBIndex = t.Context.SIBIndexCase.String()
				jt.SIBBase = t.Context.SIBBaseCase.String()
			}
		}

		for _, p := range t.Parameters {
			jt.Parameters = append(jt.Parameters, jsonParameter{
				Name:  p.Name,
				Kind:  p.Kind.String(),
				Type:  p.Type(),
				Place: p.Place,
			})
		}

		err := jw.Encode(jt)
		if err != nil {
			return err
		}
	}

	return nil
}

// WriteListing writes a table with one
// template per line.
func WriteListing(w io.Writer, templates []*Template) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	for _, t := range templates {
		fmt.Fprintf(tw, "%d\t%s\t%s\t", t.Serial, t.MethodName(), t.ExternalName())
		if t.HasPrefix {
			fmt.Fprintf(tw, "%s ", t.Prefix)
		}

		fmt.Fprintf(tw, "%s", t.Opcode1)
		if t.HasOpcode2 {
			fmt.Fprintf(tw, " %s", t.Opcode2)
		}

		fmt.Fprintf(tw, "\ta%d o%d\t", t.AddressSize(), t.OperandSize())
		if t.HasModRM {
			if t.Context.HasGroupOpcode {
				fmt.Fprintf(tw, "/%d ", t.Context.GroupOpcode)
			}

			fmt.Fprintf(tw, "mod=%s rm=%s", t.Context.ModCase, t.Context.RMCase)
			if t.HasSIB {
				fmt.Fprintf(tw, " index=%s base=%s", t.Context.SIBIndexCase, t.Context.SIBBaseCase)
			}
		}

		fmt.Fprint(tw, "\t")
		for i, p := range t.Parameters {
			if i > 0 {
				fmt.Fprint(tw, ", ")
			}

			fmt.Fprintf(tw, "%s %s", p.Type(), p.Name)
		}

		fmt.Fprintln(tw)
	}

	return tw.Flush()
}
