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

package graph

import (
	"path"
	"sort"
	"strings"
	"time"
)

// CurrentVersion is the schema version stamped onto freshly built graphs.
// A major-version bump here is a breaking schema change; see pkg/persistence.
const CurrentVersion = "2.2.0"

// DefaultMaxHierarchyDepth caps the structural file-path fallback hierarchy
// when no config override is supplied.
const DefaultMaxHierarchyDepth = 3

// rootSegment names the synthetic top-level node used for files that live at
// the repository root (no directory component at all).
const rootSegment = "_root"

// New creates an empty graph for the given source language, stamped with
// CurrentVersion and the current time.
func New(language string) *Graph {
	now := time.Now().UTC()
	return &Graph{
		Version:   CurrentVersion,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  Metadata{Language: language},
		Entities:  make(map[string]*Entity),
		Edges:     make([]DependencyEdge, 0),
		Hierarchy: make(map[string]*HierarchyNode),
		FileIndex: make(map[string][]string),
	}
}

// InsertEntity upserts e into the graph, maintaining the file_index (I1) for
// both sides: entities[e.ID] and file_index[e.File] stay in agreement. The
// entity ID is deduplicated within its file's list.
func (g *Graph) InsertEntity(e *Entity) {
	if existing, ok := g.Entities[e.ID]; ok && existing.File != e.File {
		g.removeFromFileIndex(existing.File, existing.ID)
	}
	g.Entities[e.ID] = e

	ids := g.FileIndex[e.File]
	for _, id := range ids {
		if id == e.ID {
			return
		}
	}
	g.FileIndex[e.File] = append(ids, e.ID)
}

func (g *Graph) removeFromFileIndex(file, id string) {
	ids := g.FileIndex[file]
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	if len(out) == 0 {
		delete(g.FileIndex, file)
	} else {
		g.FileIndex[file] = out
	}
}

// CreateModuleEntities synthesizes one Module entity per file that already
// has at least one non-Module entity. Idempotent: files that already have a
// Module entity are left untouched.
func (g *Graph) CreateModuleEntities() {
	files := make([]string, 0, len(g.FileIndex))
	for file := range g.FileIndex {
		files = append(files, file)
	}
	sort.Strings(files)

	for _, file := range files {
		ids := g.FileIndex[file]

		hasModule := false
		maxLine := 1
		for _, id := range ids {
			e := g.Entities[id]
			if e == nil {
				continue
			}
			if e.Kind == KindModule {
				hasModule = true
			}
			if e.LineEnd > maxLine {
				maxLine = e.LineEnd
			}
		}
		if hasModule || len(ids) == 0 {
			continue
		}

		module := &Entity{
			ID:               file,
			Kind:             KindModule,
			Name:             moduleName(file),
			File:             file,
			LineStart:        1,
			LineEnd:          maxLine,
			SemanticFeatures: []string{},
		}
		g.InsertEntity(module)
	}
}

// moduleName derives a display name for a Module entity from its file path:
// the file stem without directory components or extension.
func moduleName(file string) string {
	base := path.Base(file)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// BuildFilePathHierarchy derives the structural 3-level (or maxDepth) fallback
// hierarchy from directory components of every file in file_index. Files
// shallower than maxDepth attach at the deepest extant synthetic node on
// their path; files at the repository root attach under a synthetic
// "_root" node. Node IDs are left unset (filled later by AssignHierarchyIDs);
// only Module entity IDs are attached at this stage.
func (g *Graph) BuildFilePathHierarchy(maxDepth int) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxHierarchyDepth
	}
	g.Hierarchy = make(map[string]*HierarchyNode)

	files := make([]string, 0, len(g.FileIndex))
	for file := range g.FileIndex {
		files = append(files, file)
	}
	sort.Strings(files)

	for _, file := range files {
		segments := directorySegments(file, maxDepth)
		leaf := g.ensureHierarchyPath(segments)

		moduleID := ""
		for _, id := range g.FileIndex[file] {
			if e := g.Entities[id]; e != nil && e.Kind == KindModule {
				moduleID = id
				break
			}
		}
		if moduleID != "" {
			leaf.AddEntity(moduleID)
		}
	}
}

// directorySegments returns the directory components of file, capped at
// maxDepth segments. Root-level files yield a single synthetic segment.
func directorySegments(file string, maxDepth int) []string {
	dir := path.Dir(file)
	if dir == "." || dir == "/" || dir == "" {
		return []string{rootSegment}
	}
	parts := strings.Split(dir, "/")
	if len(parts) > maxDepth {
		parts = parts[:maxDepth]
	}
	return parts
}

// ensureHierarchyPath creates-or-finds the chain of nodes named by segments
// under the graph's top-level hierarchy map, returning the leaf node.
func (g *Graph) ensureHierarchyPath(segments []string) *HierarchyNode {
	if len(segments) == 0 {
		return nil
	}
	top := segments[0]
	node, ok := g.Hierarchy[top]
	if !ok {
		node = NewHierarchyNode(top)
		g.Hierarchy[top] = node
	}
	for _, seg := range segments[1:] {
		child, ok := node.Children[seg]
		if !ok {
			child = NewHierarchyNode(seg)
			node.Children[seg] = child
		}
		node = child
	}
	return node
}

// InsertIntoHierarchy creates-or-finds the node identified by a "/"-separated
// path string and appends entityID to its entity list. Used both by the
// semantic hierarchy (paths like "Services/Auth") and by re-routing.
func (g *Graph) InsertIntoHierarchy(pathStr, entityID string) {
	segments := strings.Split(pathStr, "/")
	node := g.ensureHierarchyPath(segments)
	if node == nil {
		return
	}
	node.AddEntity(entityID)
	assignCanonicalIDs(node, segments)
}

// assignCanonicalIDs sets node.ID to the literal path string built from
// segments. Only the leaf node is touched; ancestor nodes keep whatever ID
// they already had.
func assignCanonicalIDs(node *HierarchyNode, segments []string) {
	node.ID = strings.Join(segments, "/")
}

// AssignHierarchyIDs walks the structural hierarchy tree built by
// BuildFilePathHierarchy, filling each node's ID to its canonical "h:" path,
// then propagates every Module entity's assignment to its file siblings and
// syncs every entity's hierarchy_path to the deepest node that contains it.
func (g *Graph) AssignHierarchyIDs() {
	names := make([]string, 0, len(g.Hierarchy))
	for name := range g.Hierarchy {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		assignStructuralIDs(g.Hierarchy[name], "h:"+name)
	}

	g.propagateModuleAssignments()
	g.syncHierarchyPaths()
}

// assignStructuralIDs recursively stamps id onto node and its descendants,
// skipping nodes that already carry a non-structural (semantic) ID.
func assignStructuralIDs(node *HierarchyNode, id string) {
	if node.ID == "" || strings.HasPrefix(node.ID, "h:") {
		node.ID = id
	}
	childNames := make([]string, 0, len(node.Children))
	for name := range node.Children {
		childNames = append(childNames, name)
	}
	sort.Strings(childNames)
	for _, name := range childNames {
		assignStructuralIDs(node.Children[name], id+"/"+name)
	}
}

// propagateModuleAssignments finds every Module entity attached to a
// hierarchy node and adds all of its file siblings to the same node,
// per the paper's file-level granularity rule (spec §9.1.2).
func (g *Graph) propagateModuleAssignments() {
	g.walkNodes(func(node *HierarchyNode) {
		for _, id := range append([]string(nil), node.Entities...) {
			e := g.Entities[id]
			if e == nil || e.Kind != KindModule {
				continue
			}
			for _, siblingID := range g.FileIndex[e.File] {
				node.AddEntity(siblingID)
			}
		}
	})
}

// syncHierarchyPaths sets every entity's hierarchy_path to the deepest
// (longest ID) hierarchy node whose entity list contains it, satisfying I4.
func (g *Graph) syncHierarchyPaths() {
	deepest := make(map[string]string)
	g.walkNodes(func(node *HierarchyNode) {
		for _, id := range node.Entities {
			if current, ok := deepest[id]; !ok || len(node.ID) > len(current) {
				deepest[id] = node.ID
			}
		}
	})
	for id, nodeID := range deepest {
		if e, ok := g.Entities[id]; ok {
			e.HierarchyPath = nodeID
		}
	}
}

// walkNodes applies fn to every node in the hierarchy tree, top-level nodes
// first in sorted name order, then recursing into children.
func (g *Graph) walkNodes(fn func(*HierarchyNode)) {
	names := make([]string, 0, len(g.Hierarchy))
	for name := range g.Hierarchy {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		walkNode(g.Hierarchy[name], fn)
	}
}

func walkNode(node *HierarchyNode, fn func(*HierarchyNode)) {
	if node == nil {
		return
	}
	fn(node)
	names := make([]string, 0, len(node.Children))
	for name := range node.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		walkNode(node.Children[name], fn)
	}
}

// AggregateHierarchyFeatures recomputes aggregated_features bottom-up: each
// node's set is the union of its own entities' semantic_features and its
// children's already-aggregated features.
func (g *Graph) AggregateHierarchyFeatures() {
	names := make([]string, 0, len(g.Hierarchy))
	for name := range g.Hierarchy {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g.aggregateNode(g.Hierarchy[name])
	}
}

func (g *Graph) aggregateNode(node *HierarchyNode) []string {
	set := make(map[string]struct{})
	for _, id := range node.Entities {
		if e := g.Entities[id]; e != nil {
			for _, f := range e.SemanticFeatures {
				set[f] = struct{}{}
			}
		}
	}

	childNames := make([]string, 0, len(node.Children))
	for name := range node.Children {
		childNames = append(childNames, name)
	}
	sort.Strings(childNames)
	for _, name := range childNames {
		for _, f := range g.aggregateNode(node.Children[name]) {
			set[f] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	node.AggregatedFeatures = out
	return out
}

// MaterializeContainmentEdges emits a Contains edge from each hierarchy node
// to each entity assigned to it, deduplicated against edges already present.
func (g *Graph) MaterializeContainmentEdges() {
	existing := make(map[DependencyEdge]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		existing[e] = struct{}{}
	}

	g.walkNodes(func(node *HierarchyNode) {
		if node.ID == "" {
			return
		}
		for _, id := range node.Entities {
			edge := DependencyEdge{Source: node.ID, Target: id, Kind: EdgeContains}
			if _, ok := existing[edge]; ok {
				continue
			}
			existing[edge] = struct{}{}
			g.Edges = append(g.Edges, edge)
		}
	})
}

// RefreshMetadata recomputes all derived counts: file/entity totals, the
// number of top-level functional areas, and the edge-kind breakdown.
func (g *Graph) RefreshMetadata() {
	g.Metadata.TotalFiles = len(g.FileIndex)
	g.Metadata.TotalEntities = len(g.Entities)
	g.Metadata.FunctionalAreas = len(g.Hierarchy)
	g.Metadata.TotalEdges = len(g.Edges)

	dependency, containment := 0, 0
	for _, e := range g.Edges {
		if e.Kind == EdgeContains {
			containment++
		} else {
			dependency++
		}
	}
	g.Metadata.DependencyEdges = dependency
	g.Metadata.ContainmentEdges = containment
	g.UpdatedAt = time.Now().UTC()
}

// SortEdges orders edges by (source, target, kind), matching the
// determinism invariant enforced at serialization time (I5).
func (g *Graph) SortEdges() {
	sort.Slice(g.Edges, func(i, j int) bool {
		return g.Edges[i].Less(g.Edges[j])
	})
}
