// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package desc

import (
	"fmt"
	"io"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"firefly-os.dev/tools/asmgen/internal/x86"
)

// FormatVersion is the version of the
// table format written by this package.
// Tables with a different major version
// are rejected.
const FormatVersion = "v1.0.0"

// Table is a set of descriptions and
// the groups they refer to.
type Table struct {
	Groups       map[string]*Group
	Descriptions []*Description
}

// The YAML form of a table:
//
//	format: v1.0.0
//	groups:
//	  grp1:
//	    - reg: 0
//	      specs: [ADD]
//	descriptions:
//	  - specs: ["0x83", grp1, Ev, Ib]
//	  - specs: ["0xd8", "0xc0", FADD, ST, {spec: "ST(i)", exclude-external: [st0]}]
//	    external-name: fadd
type yamlTable struct {
	Format       string                      `yaml:"format"`
	Groups       map[string][]yamlGroupEntry `yaml:"groups"`
	Descriptions []yamlDescription           `yaml:"descriptions"`
}

type yamlGroupEntry struct {
	Reg  uint8 `yaml:"reg"`
	Mods []int `yaml:"mods"`

	yamlDescription `yaml:",inline"`
}

type yamlDescription struct {
	Specs               []yamlSpec `yaml:"specs"`
	ExternalName        string     `yaml:"external-name"`
	DefaultOperandSize  int        `yaml:"default-operand-size"`
	RequiredOperandSize int        `yaml:"operand-size"`
	RequiredAddressSize int        `yaml:"address-size"`
}

// yamlSpec is either a plain token or
// a mapping wrapping a token with test
// argument constraints.
type yamlSpec struct {
	Spec            string   `yaml:"spec"`
	Exclude         []string `yaml:"exclude"`
	ExcludeExternal []string `yaml:"exclude-external"`
	Range           []int64  `yaml:"range"`
}

func (s *yamlSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		s.Spec = value.Value
		return nil
	}

	type plain yamlSpec
	return value.Decode((*plain)(s))
}

// LoadYAML reads a description table.
func LoadYAML(r io.Reader) (*Table, error) {
	var raw yamlTable
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse description table: %v", err)
	}

	if !semver.IsValid(raw.Format) {
		return nil, fmt.Errorf("invalid description table: format %q is not a valid version", raw.Format)
	}

	if semver.Major(raw.Format) != semver.Major(FormatVersion) {
		return nil, fmt.Errorf("invalid description table: format %s is not compatible with %s", raw.Format, FormatVersion)
	}

	table := &Table{Groups: make(map[string]*Group)}

	// Groups are created before any
	// description is parsed, so a group
	// entry naming a group is reported
	// rather than read as a mnemonic.
	for name := range raw.Groups {
		table.Groups[name] = NewGroup(name)
	}

	for name, entries := range raw.Groups {
		g := table.Groups[name]
		for i, entry := range entries {
			if entry.Reg > 7 {
				return nil, fmt.Errorf("invalid group %s entry %d: reg %d out of range", name, i, entry.Reg)
			}

			d, err := entry.yamlDescription.parse(table.Groups)
			if err != nil {
				return nil, fmt.Errorf("invalid group %s entry %d: %v", name, i, err)
			}

			for _, spec := range d.Specs {
				if ref, ok := spec.(GroupRef); ok {
					return nil, fmt.Errorf("invalid group %s entry %d: refers to group %s", name, i, ref.Group.Name)
				}
			}

			mods := make([]x86.ModCase, len(entry.Mods))
			for j, m := range entry.Mods {
				if m < 0 || m > 3 {
					return nil, fmt.Errorf("invalid group %s entry %d: mod %d out of range", name, i, m)
				}

				mods[j] = x86.ModCase(m)
			}

			g.Add(entry.Reg, d, mods...)
		}
	}

	for i, raw := range raw.Descriptions {
		d, err := raw.parse(table.Groups)
		if err != nil {
			return nil, fmt.Errorf("invalid description %d: %v", i, err)
		}

		table.Descriptions = append(table.Descriptions, d)
	}

	return table, nil
}

func (raw *yamlDescription) parse(groups map[string]*Group) (*Description, error) {
	d := &Description{ExternalName: raw.ExternalName}
	sizes := []struct {
		in  int
		out *x86.Width
	}{
		{raw.DefaultOperandSize, &d.DefaultOperandSize},
		{raw.RequiredOperandSize, &d.RequiredOperandSize},
		{raw.RequiredAddressSize, &d.RequiredAddressSize},
	}

	for _, size := range sizes {
		switch size.in {
		case 0, 16, 32, 64:
			*size.out = x86.Width(size.in)
		default:
			return nil, fmt.Errorf("invalid size %d", size.in)
		}
	}

	for _, raw := range raw.Specs {
		s, err := raw.parse(groups)
		if err != nil {
			return nil, err
		}

		d.Specs = append(d.Specs, s)
	}

	return d, nil
}

func (raw *yamlSpec) parse(groups map[string]*Group) (Spec, error) {
	s, err := ParseSpec(raw.Spec, groups)
	if err != nil {
		return nil, err
	}

	if len(raw.Exclude) != 0 || len(raw.ExcludeExternal) != 0 {
		e := Excluding{Spec: s}
		for _, a := range raw.Exclude {
			arg, err := ParseArgument(a)
			if err != nil {
				return nil, err
			}

			e.Args = append(e.Args, arg)
		}

		for _, a := range raw.ExcludeExternal {
			arg, err := ParseArgument(a)
			if err != nil {
				return nil, err
			}

			e.External = append(e.External, arg)
		}

		s = e
	}

	switch len(raw.Range) {
	case 0:
	case 2:
		if raw.Range[0] > raw.Range[1] {
			return nil, fmt.Errorf("invalid range [%d, %d] for %s", raw.Range[0], raw.Range[1], raw.Spec)
		}

		s = Range{Spec: s, Min: raw.Range[0], Max: raw.Range[1]}
	default:
		return nil, fmt.Errorf("invalid range for %s: want two values, got %d", raw.Spec, len(raw.Range))
	}

	return s, nil
}
