// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86gen

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"rsc.io/diff"

	"firefly-os.dev/tools/asmgen/internal/x86"
	"firefly-os.dev/tools/asmgen/internal/x86/desc"
)

func listingTemplates(t *testing.T) []*Template {
	c := newTestCreator(t, x86.Bits64)
	for _, d := range []*desc.Description{
		desc.New(desc.Byte(0x04), desc.Name("ADD"), desc.Fixed{Register: x86.AL}, Ib),
		desc.New(desc.Byte(0x05), desc.Name("ADD"), desc.Varying{Prefix: 'r', Reg: 0}, Iz),
	} {
		if err := c.CreateTemplates(d); err != nil {
			t.Fatalf("CreateTemplates(%s): %v", d, err)
		}
	}

	return c.Templates()
}

func TestWriteListing(t *testing.T) {
	var buf bytes.Buffer
	err := WriteListing(&buf, listingTemplates(t))
	if err != nil {
		t.Fatalf("WriteListing(): %v", err)
	}

	want := strings.Join([]string{
		"1 add_al  add  04 a64 o32  imm8 imm8",
		"2 add_eax addl 05 a64 o32  imm32 imm32",
		"3 add_rax addq 05 a64 o64  imm32 imm32",
		"4 add_ax  addw 05 a64 o16  imm16 imm16",
		"",
	}, "\n")

	if got := buf.String(); got != want {
		t.Fatalf("WriteListing():\n%s", diff.Format(got, want))
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSON(&buf, listingTemplates(t))
	if err != nil {
		t.Fatalf("WriteJSON(): %v", err)
	}

	first, _, _ := strings.Cut(buf.String(), "\n")
	want := `{"serial":1,"method":"add_al","external":"add","opcode":["04"],"addressSize":64,"operandSize":32,` +
		`"parameters":[{"name":"imm8","kind":"numeric","type":"imm8","place":"append"}],"description":"0x04 ADD AL Ib"}`
	if first != want {
		t.Fatalf("WriteJSON():\n%s", diff.Format(first, want))
	}
}

func TestWriteJSONRedundant(t *testing.T) {
	templates := templatesFor(t, x86.Bits64, addEvGv, with16BitAddresses, withRedundant)
	var buf bytes.Buffer
	err := WriteJSON(&buf, templates)
	if err != nil {
		t.Fatalf("WriteJSON(): %v", err)
	}

	var redundant int
	s := bufio.NewScanner(&buf)
	for s.Scan() {
		var jt struct {
			Serial    int    `json:"serial"`
			Method    string `json:"method"`
			Redundant bool   `json:"redundant"`
			Canonical int    `json:"canonical"`
			Mod       string `json:"mod"`
			RM        string `json:"rm"`
		}

		if err := json.Unmarshal(s.Bytes(), &jt); err != nil {
			t.Fatalf("json.Unmarshal(%s): %v", s.Bytes(), err)
		}

		tmpl := templates[jt.Serial-1]
		if jt.Method != tmpl.MethodName() {
			t.Errorf("template %d: got method %q, want %q", jt.Serial, jt.Method, tmpl.MethodName())
		}

		if jt.Mod == "" || jt.RM == "" {
			t.Errorf("template %d: missing ModR/M fields", jt.Serial)
		}

		if !jt.Redundant {
			continue
		}

		redundant++
		if jt.Canonical != tmpl.Canonical().Serial {
			t.Errorf("template %d: got canonical %d, want %d", jt.Serial, jt.Canonical, tmpl.Canonical().Serial)
		}
	}

	if err := s.Err(); err != nil {
		t.Fatal(err)
	}

	if redundant != 9 {
		t.Fatalf("WriteJSON(): got %d redundant templates, want 9", redundant)
	}
}
