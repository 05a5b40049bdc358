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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rpgraph-dev/rpgraph/pkg/graph"
)

// walkGo extracts top-level functions, methods, and type declarations from a
// Go source tree, plus the calls made from within each function body and the
// file's import paths.
func walkGo(root *sitter.Node, content []byte, file string) []RawEntity {
	imports := goImports(root, content)
	var entities []RawEntity

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "function_declaration":
			entities = append(entities, goFunction(child, content, file, "", imports))
		case "method_declaration":
			recv := goReceiverType(child, content)
			entities = append(entities, goFunction(child, content, file, recv, imports))
		case "type_declaration":
			entities = append(entities, goTypeSpecs(child, content, file)...)
		}
	}
	return entities
}

func goImports(root *sitter.Node, content []byte) []string {
	var paths []string
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "import_declaration" {
			continue
		}
		collectImportSpecs(child, content, &paths)
	}
	return paths
}

func collectImportSpecs(node *sitter.Node, content []byte, out *[]string) {
	if node.Type() == "import_spec" {
		if pathNode := node.ChildByFieldName("path"); pathNode != nil {
			*out = append(*out, strings.Trim(nodeText(pathNode, content), `"`))
		}
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectImportSpecs(node.Child(i), content, out)
	}
}

func goReceiverType(method *sitter.Node, content []byte) string {
	params := method.ChildByFieldName("receiver")
	if params == nil {
		return ""
	}
	text := nodeText(params, content)
	text = strings.Trim(text, "()")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimPrefix(fields[len(fields)-1], "*")
}

func goFunction(node *sitter.Node, content []byte, file, receiver string, imports []string) RawEntity {
	nameNode := node.ChildByFieldName("name")
	name := nodeText(nameNode, content)
	start, end := lineRange(node)

	kind := graph.KindFunction
	if receiver != "" {
		kind = graph.KindMethod
	}

	body := node.ChildByFieldName("body")
	calls := goCallsWithin(body, content)

	return RawEntity{
		Kind:        kind,
		Name:        name,
		File:        file,
		LineStart:   start,
		LineEnd:     end,
		ParentClass: receiver,
		Signature:   goSignature(node, content),
		Calls:       calls,
		Imports:     imports,
	}
}

func goSignature(node *sitter.Node, content []byte) string {
	nameNode := node.ChildByFieldName("name")
	params := node.ChildByFieldName("parameters")
	result := node.ChildByFieldName("result")

	var b strings.Builder
	b.WriteString("func ")
	b.WriteString(nodeText(nameNode, content))
	b.WriteString(nodeText(params, content))
	if result != nil {
		b.WriteString(" ")
		b.WriteString(nodeText(result, content))
	}
	return b.String()
}

// goCallsWithin recursively scans body for call_expression nodes, returning
// the bare callee name (for selector calls such as "fmt.Sprintf", only the
// selected field, "Sprintf").
func goCallsWithin(node *sitter.Node, content []byte) []string {
	if node == nil {
		return nil
	}
	var calls []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "call_expression" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				calls = append(calls, goCalleeName(fn, content))
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return calls
}

func goCalleeName(node *sitter.Node, content []byte) string {
	switch node.Type() {
	case "selector_expression":
		if field := node.ChildByFieldName("field"); field != nil {
			return nodeText(field, content)
		}
	}
	return nodeText(node, content)
}

func goTypeSpecs(decl *sitter.Node, content []byte, file string) []RawEntity {
	var entities []RawEntity
	for i := 0; i < int(decl.ChildCount()); i++ {
		spec := decl.Child(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		start, end := lineRange(spec)
		entities = append(entities, RawEntity{
			Kind:      graph.KindClass,
			Name:      nodeText(nameNode, content),
			File:      file,
			LineStart: start,
			LineEnd:   end,
		})
	}
	return entities
}
