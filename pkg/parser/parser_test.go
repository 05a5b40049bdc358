// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpgraph-dev/rpgraph/pkg/graph"
)

func writeFixture(t *testing.T, name, content string) (fullPath, relPath string) {
	t.Helper()
	dir := t.TempDir()
	full := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full, name
}

const goFixture = `package sample

import "fmt"

func Add(a, b int) int {
	return a + b
}

type Greeter struct {
	Name string
}

func (g *Greeter) Greet() string {
	msg := fmt.Sprintf("hi %s", g.Name)
	return helper(msg)
}

func helper(s string) string {
	return s
}
`

func TestParseFileGo(t *testing.T) {
	full, rel := writeFixture(t, "sample.go", goFixture)
	p := New()

	entities, err := p.ParseFile(full, rel)
	require.NoError(t, err)
	require.NotEmpty(t, entities)

	var names []string
	for _, e := range entities {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "Add")
	assert.Contains(t, names, "Greeter")
	assert.Contains(t, names, "Greet")
	assert.Contains(t, names, "helper")

	for _, e := range entities {
		if e.Name == "Greet" {
			assert.Equal(t, graph.KindMethod, e.Kind)
			assert.Equal(t, "Greeter", e.ParentClass)
			assert.Contains(t, e.Calls, "Sprintf")
			assert.Contains(t, e.Calls, "helper")
		}
	}
}

const pythonFixture = `import os


class Service:
    def __init__(self):
        self.name = "svc"

    def run(self):
        return helper()


def helper():
    return os.getpid()
`

func TestParseFilePython(t *testing.T) {
	full, rel := writeFixture(t, "sample.py", pythonFixture)
	p := New()

	entities, err := p.ParseFile(full, rel)
	require.NoError(t, err)

	byName := map[string]RawEntity{}
	for _, e := range entities {
		byName[e.Name] = e
	}

	require.Contains(t, byName, "Service")
	assert.Equal(t, graph.KindClass, byName["Service"].Kind)

	require.Contains(t, byName, "run")
	assert.Equal(t, graph.KindMethod, byName["run"].Kind)
	assert.Equal(t, "Service", byName["run"].ParentClass)
	assert.Contains(t, byName["run"].Calls, "helper")

	require.Contains(t, byName, "helper")
	assert.Equal(t, graph.KindFunction, byName["helper"].Kind)
}

const tsxFixture = `import React from "react";

export function useCounter() {
  return 0;
}

export const Button = () => {
  return useCounter();
};

class AuthStore {
  login() {
    return fetchToken();
  }
}
`

func TestParseFileTypeScriptClassification(t *testing.T) {
	full, rel := writeFixture(t, "sample.tsx", tsxFixture)
	p := New()

	entities, err := p.ParseFile(full, rel)
	require.NoError(t, err)

	byName := map[string]RawEntity{}
	for _, e := range entities {
		byName[e.Name] = e
	}

	require.Contains(t, byName, "useCounter")
	assert.Equal(t, graph.KindHook, byName["useCounter"].Kind)

	require.Contains(t, byName, "Button")
	assert.Equal(t, graph.KindComponent, byName["Button"].Kind)

	require.Contains(t, byName, "AuthStore")
	assert.Equal(t, graph.KindStore, byName["AuthStore"].Kind)
}

const tsInterfaceFixture = `export interface Animal {
  name: string;
}

export interface Dog extends Animal {
  bark(): void;
}
`

func TestParseFileTypeScriptInterfaceExtendsIsInherits(t *testing.T) {
	full, rel := writeFixture(t, "sample.ts", tsInterfaceFixture)
	p := New()

	entities, err := p.ParseFile(full, rel)
	require.NoError(t, err)

	byName := map[string]RawEntity{}
	for _, e := range entities {
		byName[e.Name] = e
	}

	require.Contains(t, byName, "Animal")
	assert.Equal(t, graph.KindClass, byName["Animal"].Kind)
	assert.Empty(t, byName["Animal"].Inherits)

	require.Contains(t, byName, "Dog")
	assert.Equal(t, graph.KindClass, byName["Dog"].Kind)
	assert.Equal(t, []string{"Animal"}, byName["Dog"].Inherits)
}

func TestParseFileJavaScriptHasNoInterfaces(t *testing.T) {
	full, rel := writeFixture(t, "sample.js", tsInterfaceFixture)
	p := New()

	entities, err := p.ParseFile(full, rel)
	require.NoError(t, err)
	assert.Empty(t, entities, "interface syntax is not valid JavaScript; the JS grammar should yield no entities for it")
}

func TestParseFileUnsupportedLanguageSkips(t *testing.T) {
	full, rel := writeFixture(t, "README.md", "# hi\n")
	p := New()

	entities, err := p.ParseFile(full, rel)
	require.NoError(t, err)
	assert.Nil(t, entities)
}

func TestParseFilesParallelMatchesSequential(t *testing.T) {
	p := New()
	var files []SourceFile
	for i := 0; i < 25; i++ {
		full, rel := writeFixture(t, "f.go", goFixture)
		files = append(files, SourceFile{FullPath: full, RelPath: rel})
	}

	var progressed int
	entities, errs := ParseFilesParallel(context.Background(), p, files, 4, func(done, total int) {
		progressed = done
		assert.Equal(t, len(files), total)
	})

	assert.Empty(t, errs)
	assert.Equal(t, len(files), progressed)
	assert.Len(t, entities, 4*len(files))
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, LangGo, DetectLanguage("a/b.go"))
	assert.Equal(t, LangPython, DetectLanguage("a/b.py"))
	assert.Equal(t, LangTypeScript, DetectLanguage("a/b.tsx"))
	assert.Equal(t, LangJavaScript, DetectLanguage("a/b.jsx"))
	assert.Equal(t, LangUnknown, DetectLanguage("a/b.rb"))
}
