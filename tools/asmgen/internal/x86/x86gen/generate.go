// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86gen

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"golang.org/x/sync/errgroup"

	"firefly-os.dev/tools/asmgen/internal/x86/desc"
)

// Family is a set of descriptions that
// share mnemonics, directly or through
// their groups. Redundancy can only
// occur within a family.
type Family struct {
	Mnemonics    []string
	Descriptions []*desc.Description
}

// Families partitions descs into families,
// ordered by their first description.
// Descriptions keep their relative order.
func Families(descs []*desc.Description) []*Family {
	// Union-find over description indices,
	// joined through shared mnemonics.
	parent := make([]int, len(descs))
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}

		return i
	}

	owner := make(map[string]int)
	for i, d := range descs {
		for _, m := range d.Mnemonics() {
			j, ok := owner[m]
			if !ok {
				owner[m] = i
				continue
			}

			a, b := find(i), find(j)
			if a == b {
				continue
			}

			// The root is always the earliest
			// description.
			if a < b {
				parent[b] = a
			} else {
				parent[a] = b
			}
		}
	}

	var families []*Family
	byRoot := make(map[int]*Family)
	for i, d := range descs {
		root := find(i)
		f := byRoot[root]
		if f == nil {
			f = new(Family)
			byRoot[root] = f
			families = append(families, f)
		}

		f.Descriptions = append(f.Descriptions, d)
	}

	seen := make(map[string]bool)
	for _, f := range families {
		for _, d := range f.Descriptions {
			for _, m := range d.Mnemonics() {
				if !seen[m] {
					seen[m] = true
					f.Mnemonics = append(f.Mnemonics, m)
				}
			}
		}
	}

	return families
}

// Generate creates the templates for descs,
// running one creator per family in
// parallel. The result is ordered by
// family and then by creation order,
// with serial numbers starting at 1.
//
// If logger is not nil, each creator
// logs its progress to it.
func Generate(ctx context.Context, cfg *Config, descs []*desc.Description, logger *log.Logger) ([]*Template, error) {
	frozen := cfg.freeze()
	families := Families(descs)
	results := make([][]*Template, len(families))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range families {
		i, f := i, f
		g.Go(func() error {
			c := newCreator(frozen)
			if logger != nil {
				c.SetLogger(logger)
			}

			for _, d := range f.Descriptions {
				if err := ctx.Err(); err != nil {
					return err
				}

				if err := c.CreateTemplates(d); err != nil {
					return err
				}
			}

			results[i] = c.Templates()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to generate templates: %w", err)
	}

	var templates []*Template
	for _, r := range results {
		for _, t := range r {
			t.Serial = len(templates) + 1
			templates = append(templates, t)
		}
	}

	return templates, nil
}
