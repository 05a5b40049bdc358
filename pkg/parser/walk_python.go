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
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rpgraph-dev/rpgraph/pkg/graph"
)

// walkPython extracts module-level and class-level functions/methods, class
// definitions (with their base-class list as Inherits), imports, and the
// calls made from each function body.
func walkPython(root *sitter.Node, content []byte, file string) []RawEntity {
	imports := pythonImports(root, content)
	return pythonBlock(root, content, file, "", imports)
}

// pythonBlock walks the direct children of a module or class body, recursing
// into every class definition it meets, so nested classes and their methods
// are extracted too (methods take the innermost class as ParentClass).
func pythonBlock(node *sitter.Node, content []byte, file, parentClass string, imports []string) []RawEntity {
	var entities []RawEntity
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_definition":
			entities = append(entities, pythonFunction(child, content, file, parentClass, imports))
		case "class_definition":
			entities = append(entities, pythonClass(child, content, file, imports)...)
		}
	}
	return entities
}

func pythonClass(node *sitter.Node, content []byte, file string, imports []string) []RawEntity {
	nameNode := node.ChildByFieldName("name")
	name := nodeText(nameNode, content)
	start, end := lineRange(node)

	bases := pythonBaseClasses(node, content)

	classEntity := RawEntity{
		Kind:      graph.KindClass,
		Name:      name,
		File:      file,
		LineStart: start,
		LineEnd:   end,
		Inherits:  bases,
	}

	entities := []RawEntity{classEntity}
	if body := node.ChildByFieldName("body"); body != nil {
		entities = append(entities, pythonBlock(body, content, file, name, imports)...)
	}
	return entities
}

func pythonBaseClasses(node *sitter.Node, content []byte) []string {
	superclasses := node.ChildByFieldName("superclasses")
	if superclasses == nil {
		return nil
	}
	var bases []string
	for i := 0; i < int(superclasses.ChildCount()); i++ {
		arg := superclasses.Child(i)
		switch arg.Type() {
		case "identifier", "attribute":
			bases = append(bases, nodeText(arg, content))
		}
	}
	return bases
}

func pythonFunction(node *sitter.Node, content []byte, file, parentClass string, imports []string) RawEntity {
	nameNode := node.ChildByFieldName("name")
	start, end := lineRange(node)

	kind := graph.KindFunction
	if parentClass != "" {
		kind = graph.KindMethod
	}

	body := node.ChildByFieldName("body")
	calls := pythonCallsWithin(body, content)

	return RawEntity{
		Kind:        kind,
		Name:        nodeText(nameNode, content),
		File:        file,
		LineStart:   start,
		LineEnd:     end,
		ParentClass: parentClass,
		Calls:       calls,
		Imports:     imports,
	}
}

func pythonCallsWithin(node *sitter.Node, content []byte) []string {
	if node == nil {
		return nil
	}
	var calls []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "call" {
			if fn := n.ChildByFieldName("function"); fn != nil {
				calls = append(calls, pythonCalleeName(fn, content))
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return calls
}

func pythonCalleeName(node *sitter.Node, content []byte) string {
	if node.Type() == "attribute" {
		if attr := node.ChildByFieldName("attribute"); attr != nil {
			return nodeText(attr, content)
		}
	}
	return nodeText(node, content)
}

func pythonImports(root *sitter.Node, content []byte) []string {
	var modules []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement", "import_from_statement":
			for i := 0; i < int(n.ChildCount()); i++ {
				c := n.Child(i)
				switch c.Type() {
				case "dotted_name", "aliased_import":
					modules = append(modules, nodeText(c, content))
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return modules
}
