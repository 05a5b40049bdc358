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
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rpgraph-dev/rpgraph/pkg/graph"
)

// walkECMAScript extracts functions, arrow-function bindings, and classes
// from a JavaScript or TypeScript tree, classifying React-style names as
// Component/Hook kinds the way a convention-driven analyzer would (capitalized
// name => component, "use"-prefixed => hook). typescript gates TS-only
// grammar productions (interface_declaration) that don't exist in the
// JavaScript grammar's node set.
func walkECMAScript(root *sitter.Node, content []byte, file string, typescript bool) []RawEntity {
	imports := ecmaImports(root, content)
	var entities []RawEntity

	var walk func(n *sitter.Node, parentClass string)
	walk = func(n *sitter.Node, parentClass string) {
		switch n.Type() {
		case "function_declaration", "method_definition":
			entities = append(entities, ecmaFunction(n, content, file, parentClass, imports))
			return
		case "lexical_declaration", "variable_declaration":
			if e, ok := ecmaArrowBinding(n, content, file, imports); ok {
				entities = append(entities, e)
				return
			}
		case "class_declaration":
			entities = append(entities, ecmaClass(n, content, file, imports)...)
			return
		case "interface_declaration":
			if typescript {
				entities = append(entities, ecmaInterface(n, content, file))
				return
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), parentClass)
		}
	}
	walk(root, "")
	return entities
}

// ecmaInterface extracts a TypeScript interface_declaration as a Class-kind
// entity; an "extends" heritage clause (extends_type_clause wrapping one or
// more type_identifier children) becomes Inherits, the same signal a class's
// superclass contributes.
func ecmaInterface(node *sitter.Node, content []byte, file string) RawEntity {
	nameNode := node.ChildByFieldName("name")
	name := nodeText(nameNode, content)
	start, end := lineRange(node)

	var bases []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "extends_type_clause" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			if t := child.Child(j); t.Type() == "type_identifier" {
				bases = append(bases, nodeText(t, content))
			}
		}
	}

	return RawEntity{
		Kind: graph.KindClass, Name: name, File: file,
		LineStart: start, LineEnd: end, Inherits: bases,
	}
}

func ecmaClass(node *sitter.Node, content []byte, file string, imports []string) []RawEntity {
	nameNode := node.ChildByFieldName("name")
	name := nodeText(nameNode, content)
	start, end := lineRange(node)

	var bases []string
	if heritage := node.ChildByFieldName("superclass"); heritage != nil {
		bases = append(bases, nodeText(heritage, content))
	}

	kind := classifyName(name)
	classEntity := RawEntity{
		Kind: kind, Name: name, File: file,
		LineStart: start, LineEnd: end, Inherits: bases,
	}
	entities := []RawEntity{classEntity}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			member := body.Child(i)
			if member.Type() == "method_definition" {
				entities = append(entities, ecmaFunction(member, content, file, name, imports))
			}
		}
	}
	return entities
}

func ecmaFunction(node *sitter.Node, content []byte, file, parentClass string, imports []string) RawEntity {
	nameNode := node.ChildByFieldName("name")
	name := nodeText(nameNode, content)
	start, end := lineRange(node)

	kind := graph.KindFunction
	if parentClass != "" {
		kind = graph.KindMethod
	} else {
		kind = classifyName(name)
	}

	body := node.ChildByFieldName("body")
	calls := ecmaCallsWithin(body, content)

	return RawEntity{
		Kind: kind, Name: name, File: file,
		LineStart: start, LineEnd: end, ParentClass: parentClass,
		Calls: calls, Imports: imports,
	}
}

// ecmaArrowBinding recognizes `const Name = (...) => {...}` / `function`
// bindings, the dominant pattern for React components and hooks.
func ecmaArrowBinding(node *sitter.Node, content []byte, file string, imports []string) (RawEntity, bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		declarator := node.Child(i)
		if declarator.Type() != "variable_declarator" {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		valueNode := declarator.ChildByFieldName("value")
		if nameNode == nil || valueNode == nil {
			continue
		}
		if valueNode.Type() != "arrow_function" && valueNode.Type() != "function_expression" {
			continue
		}
		name := nodeText(nameNode, content)
		start, end := lineRange(node)
		body := valueNode.ChildByFieldName("body")
		return RawEntity{
			Kind:      classifyName(name),
			Name:      name,
			File:      file,
			LineStart: start,
			LineEnd:   end,
			Calls:     ecmaCallsWithin(body, content),
			Imports:   imports,
		}, true
	}
	return RawEntity{}, false
}

func ecmaCallsWithin(node *sitter.Node, content []byte) []string {
	if node == nil {
		return nil
	}
	var calls []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "call_expression" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				calls = append(calls, ecmaCalleeName(fn, content))
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return calls
}

func ecmaCalleeName(node *sitter.Node, content []byte) string {
	if node.Type() == "member_expression" {
		if prop := node.ChildByFieldName("property"); prop != nil {
			return nodeText(prop, content)
		}
	}
	return nodeText(node, content)
}

func ecmaImports(root *sitter.Node, content []byte) []string {
	var sources []string
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "import_statement" {
			continue
		}
		if src := child.ChildByFieldName("source"); src != nil {
			sources = append(sources, trimQuotes(nodeText(src, content)))
		}
	}
	return sources
}

func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'' || s[0] == '`') {
		return s[1 : len(s)-1]
	}
	return s
}

// classifyName applies the same naming-convention heuristics a framework-aware
// analyzer uses to tell components, hooks, and plain functions apart:
// PascalCase names are components, "use"-prefixed camelCase names are hooks,
// anything ending in "Store"/"Slice" is a store, everything else is a
// function.
func classifyName(name string) graph.EntityKind {
	if name == "" {
		return graph.KindFunction
	}
	switch {
	case hasSuffix(name, "Store") || hasSuffix(name, "Slice"):
		return graph.KindStore
	case len(name) > 3 && name[:3] == "use" && unicode.IsUpper(rune(name[3])):
		return graph.KindHook
	case unicode.IsUpper(rune(name[0])):
		return graph.KindComponent
	default:
		return graph.KindFunction
	}
}

func hasSuffix(name, suffix string) bool {
	if len(name) < len(suffix) {
		return false
	}
	return name[len(name)-len(suffix):] == suffix
}
