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

// Package grounding is C3: it binds the raw symbolic names a parser attaches
// to an entity (Deps.Calls/Inherits/Imports) to concrete entity IDs already
// present in the graph, emitting DependencyEdges for every unambiguous match
// and silently dropping names that resolve to zero or more than one
// candidate.
package grounding

import (
	"sort"
	"strings"

	"github.com/rpgraph-dev/rpgraph/pkg/graph"
)

// nameIndex maps a bare entity name to every entity ID carrying that name,
// used to resolve an unqualified call/inherit site to a unique candidate.
type nameIndex map[string][]string

func buildNameIndex(g *graph.Graph) nameIndex {
	idx := make(nameIndex)
	for id, e := range g.Entities {
		idx[e.Name] = append(idx[e.Name], id)
	}
	for name := range idx {
		sort.Strings(idx[name])
	}
	return idx
}

// resolveOne resolves a single raw symbolic name to exactly one entity ID.
// A direct ID match always wins; otherwise the name must identify exactly
// one entity by bare name or resolution is refused (returns "", false).
func resolveOne(g *graph.Graph, idx nameIndex, raw string) (string, bool) {
	if _, ok := g.Entities[raw]; ok {
		return raw, true
	}
	candidates := idx[raw]
	if len(candidates) == 1 {
		return candidates[0], true
	}
	return "", false
}

// ResolveDependencies walks every entity's raw Deps and emits a
// DependencyEdge for each Call/Inherit that resolves unambiguously. Imports
// are resolved against Module entities whose extension-less file path ends
// with the imported specifier, after a leading "./" or "/" and a trailing
// "/index" are stripped; no other rewriting is done, so a dotted specifier
// such as "services.auth" is looked up as written. This is the only
// grounding available without executing a module resolver. Edges already
// present in the graph are not duplicated; the graph's own entity ID is
// never proposed as its own dependency (no self-edges).
//
// broadcastImports mirrors encoding.broadcast_imports: when false (the
// default), an entity's imports are only grounded if it already has at
// least one resolved invokes/inherits edge — AST-grounded call-site
// evidence the import actually matters to this entity, not just to the
// file it lives in. When true, every entity's imports are grounded
// regardless of call-site evidence.
func ResolveDependencies(g *graph.Graph, broadcastImports bool) {
	idx := buildNameIndex(g)
	moduleIdx := buildModuleIndex(g)

	existing := make(map[graph.DependencyEdge]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		existing[e] = struct{}{}
	}

	ids := make([]string, 0, len(g.Entities))
	for id := range g.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var newEdges []graph.DependencyEdge
	for _, id := range ids {
		e := g.Entities[id]
		hasEvidence := false
		for _, call := range e.Deps.Calls {
			if target, ok := resolveOne(g, idx, call); ok && target != id {
				newEdges = append(newEdges, graph.DependencyEdge{Source: id, Target: target, Kind: graph.EdgeInvokes})
				hasEvidence = true
			}
		}
		for _, base := range e.Deps.Inherits {
			if target, ok := resolveOne(g, idx, base); ok && target != id {
				newEdges = append(newEdges, graph.DependencyEdge{Source: id, Target: target, Kind: graph.EdgeInherits})
				hasEvidence = true
			}
		}
		if !broadcastImports && !hasEvidence {
			continue
		}
		for _, imp := range e.Deps.Imports {
			if target, ok := resolveImport(moduleIdx, imp); ok && target != id {
				newEdges = append(newEdges, graph.DependencyEdge{Source: id, Target: target, Kind: graph.EdgeImports})
			}
		}
	}

	for _, edge := range newEdges {
		if _, ok := existing[edge]; ok {
			continue
		}
		existing[edge] = struct{}{}
		g.Edges = append(g.Edges, edge)
	}
}

// buildModuleIndex maps every path suffix of a Module entity's file (split on
// "/", suffixes taken right to left) to that Module's entity ID, so an
// import specifier like "services/auth" or "auth" can find the module at
// "services/auth.py".
func buildModuleIndex(g *graph.Graph) map[string][]string {
	idx := make(map[string][]string)
	for id, e := range g.Entities {
		if e.Kind != graph.KindModule {
			continue
		}
		stem := strings.TrimSuffix(e.File, pathExt(e.File))
		segments := strings.Split(stem, "/")
		for i := range segments {
			suffix := strings.Join(segments[i:], "/")
			idx[suffix] = append(idx[suffix], id)
		}
	}
	for k := range idx {
		sort.Strings(idx[k])
	}
	return idx
}

func pathExt(p string) string {
	for i := len(p) - 1; i >= 0 && p[i] != '/'; i-- {
		if p[i] == '.' {
			return p[i:]
		}
	}
	return ""
}

func resolveImport(moduleIdx map[string][]string, raw string) (string, bool) {
	key := strings.TrimPrefix(strings.TrimPrefix(raw, "./"), "/")
	key = strings.TrimSuffix(key, "/index")
	candidates := moduleIdx[key]
	if len(candidates) == 1 {
		return candidates[0], true
	}
	return "", false
}

// GroundHierarchy performs a consistency sweep over the hierarchy tree after
// structural or semantic assignment: every node's entity list is filtered
// down to IDs that still exist in the graph, which matters after deletions
// (pkg/evolution) leave stale references behind.
func GroundHierarchy(g *graph.Graph) {
	names := make([]string, 0, len(g.Hierarchy))
	for name := range g.Hierarchy {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		groundNode(g, g.Hierarchy[name])
	}
}

func groundNode(g *graph.Graph, node *graph.HierarchyNode) {
	if node == nil {
		return
	}
	kept := node.Entities[:0]
	for _, id := range node.Entities {
		if _, ok := g.Entities[id]; ok {
			kept = append(kept, id)
		}
	}
	node.Entities = kept

	childNames := make([]string, 0, len(node.Children))
	for name := range node.Children {
		childNames = append(childNames, name)
	}
	sort.Strings(childNames)
	for _, name := range childNames {
		groundNode(g, node.Children[name])
	}
}
