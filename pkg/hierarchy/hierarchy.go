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

// Package hierarchy layers the externally-supplied semantic hierarchy (C4,
// the part not driven by file-path structure) on top of a graph: applying a
// caller-provided name-to-path assignment map, and flagging entities whose
// semantic features have drifted far enough from the union of the features
// of the other entities on the same node to warrant re-routing. Drift is not
// measured against the node's AggregatedFeatures, and entities in child
// nodes do not take part in it.
package hierarchy

import (
	"sort"

	"github.com/rpgraph-dev/rpgraph/pkg/graph"
)

// ApplyHierarchy resolves each (key, path) assignment against the graph and
// inserts the resolved entity into the node identified by path. key is tried
// first as a literal entity ID, then as a bare name; an unknown or ambiguous
// (more than one entity sharing that name) key is skipped rather than
// erroring, matching the front-end's tolerant stance on unresolved
// references. When the resolved entity is a Module, every other entity in
// the same file is assigned the same path, since hierarchy placement is
// file-level granularity, not per-symbol.
func ApplyHierarchy(g *graph.Graph, assignments map[string]string) {
	idx := buildNameIndex(g)

	keys := make([]string, 0, len(assignments))
	for k := range assignments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		path := assignments[key]
		id, ok := resolveKey(g, idx, key)
		if !ok {
			continue
		}

		entity := g.Entities[id]
		if entity.Kind == graph.KindModule {
			for _, siblingID := range g.FileIndex[entity.File] {
				g.InsertIntoHierarchy(path, siblingID)
				if sibling := g.Entities[siblingID]; sibling != nil {
					sibling.HierarchyPath = path
				}
			}
			continue
		}
		g.InsertIntoHierarchy(path, id)
		entity.HierarchyPath = path
	}
}

func buildNameIndex(g *graph.Graph) map[string][]string {
	idx := make(map[string][]string)
	for id, e := range g.Entities {
		idx[e.Name] = append(idx[e.Name], id)
	}
	return idx
}

func resolveKey(g *graph.Graph, idx map[string][]string, key string) (string, bool) {
	if _, ok := g.Entities[key]; ok {
		return key, true
	}
	candidates := idx[key]
	if len(candidates) == 1 {
		return candidates[0], true
	}
	return "", false
}

// Jaccard returns the Jaccard distance (1 - |intersection| / |union|)
// between two feature sets. Two empty sets are considered identical
// (distance 0); one empty and one non-empty set are maximally distant.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := toSet(a)
	setB := toSet(b)

	intersection := 0
	union := make(map[string]struct{}, len(setA)+len(setB))
	for f := range setA {
		union[f] = struct{}{}
		if _, ok := setB[f]; ok {
			intersection++
		}
	}
	for f := range setB {
		union[f] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	return 1 - float64(intersection)/float64(len(union))
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}

// DetectDrift scans every hierarchy node and returns the IDs of entities
// whose own semantic_features have drifted past threshold (Jaccard
// distance) from the rest of their node's membership — signalling that the
// entity's current placement may no longer reflect what it actually does.
// Module entities are excluded: their features are an aggregate of their
// file's siblings, not an independent signal.
func DetectDrift(g *graph.Graph, threshold float64) []string {
	var drifted []string

	names := make([]string, 0, len(g.Hierarchy))
	for name := range g.Hierarchy {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		walkDrift(g, g.Hierarchy[name], threshold, &drifted)
	}
	sort.Strings(drifted)
	return drifted
}

func walkDrift(g *graph.Graph, node *graph.HierarchyNode, threshold float64, out *[]string) {
	if node == nil {
		return
	}
	for _, id := range node.Entities {
		e := g.Entities[id]
		if e == nil || e.Kind == graph.KindModule {
			continue
		}
		rest := siblingFeatures(g, node, id)
		if Jaccard(e.SemanticFeatures, rest) > threshold {
			*out = append(*out, id)
		}
	}

	childNames := make([]string, 0, len(node.Children))
	for name := range node.Children {
		childNames = append(childNames, name)
	}
	sort.Strings(childNames)
	for _, name := range childNames {
		walkDrift(g, node.Children[name], threshold, out)
	}
}

// siblingFeatures unions the semantic_features of every entity in node other
// than excludeID.
func siblingFeatures(g *graph.Graph, node *graph.HierarchyNode, excludeID string) []string {
	set := make(map[string]struct{})
	for _, id := range node.Entities {
		if id == excludeID {
			continue
		}
		if e := g.Entities[id]; e != nil {
			for _, f := range e.SemanticFeatures {
				set[f] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	return out
}
