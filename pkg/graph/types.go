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

// Package graph holds the in-memory Repository Property Graph: entities keyed
// by stable ID, dependency and containment edges, the semantic hierarchy tree,
// the file index, and the mutation primitives every other package builds on.
package graph

import "time"

// EntityKind identifies the variant of code unit an Entity represents.
type EntityKind string

const (
	KindFunction   EntityKind = "function"
	KindClass      EntityKind = "class"
	KindMethod     EntityKind = "method"
	KindModule     EntityKind = "module"
	KindPage       EntityKind = "page"
	KindLayout     EntityKind = "layout"
	KindComponent  EntityKind = "component"
	KindHook       EntityKind = "hook"
	KindStore      EntityKind = "store"
	KindController EntityKind = "controller"
	KindModel      EntityKind = "model"
	KindService    EntityKind = "service"
	KindMiddleware EntityKind = "middleware"
	KindRoute      EntityKind = "route"
	KindTest       EntityKind = "test"
)

// EdgeKind identifies the relationship a DependencyEdge represents.
type EdgeKind string

const (
	EdgeInvokes  EdgeKind = "invokes"
	EdgeInherits EdgeKind = "inherits"
	EdgeImports  EdgeKind = "imports"
	EdgeContains EdgeKind = "contains"
)

// EntityDeps is the raw, unresolved dependency payload produced by the parser
// front-end: symbolic names exactly as they appear at call/import/inherit
// sites, before grounding binds them to concrete entity IDs.
type EntityDeps struct {
	Calls    []string `json:"calls,omitempty"`
	Inherits []string `json:"inherits,omitempty"`
	Imports  []string `json:"imports,omitempty"`
}

// Entity is a single code unit node in the graph: a function, class, method,
// module, or a framework-specific kind such as a component or route.
//
// ID is canonical: "<relative-file-path-with-forward-slashes>:<name>" for
// named entities, or exactly the file path for Module entities. Every
// reference to an entity elsewhere in the graph (file_index, edges, hierarchy
// entity lists, hierarchy_path) must spell the ID the same way.
type Entity struct {
	ID               string     `json:"id"`
	Kind             EntityKind `json:"kind"`
	Name             string     `json:"name"`
	File             string     `json:"file"`
	LineStart        int        `json:"line_start"`
	LineEnd          int        `json:"line_end"`
	ParentClass      string     `json:"parent_class,omitempty"`
	SemanticFeatures []string   `json:"semantic_features"`
	FeatureSource    string     `json:"feature_source,omitempty"`
	HierarchyPath    string     `json:"hierarchy_path"`
	Deps             EntityDeps `json:"deps"`
	Signature        string     `json:"signature,omitempty"`
}

// DependencyEdge is a directed edge between two IDs. Contains edges run from
// a hierarchy node ID to an entity ID; all other kinds run between entities.
type DependencyEdge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

// Less orders edges by (source, target, kind) for deterministic serialization.
func (e DependencyEdge) Less(other DependencyEdge) bool {
	if e.Source != other.Source {
		return e.Source < other.Source
	}
	if e.Target != other.Target {
		return e.Target < other.Target
	}
	return e.Kind < other.Kind
}

// HierarchyNode is one node of the 3-level semantic hierarchy (or the
// structural file-path fallback). Children are keyed by path segment name;
// Entities holds the IDs of entities assigned directly to this node.
type HierarchyNode struct {
	ID                 string                    `json:"id"`
	Name               string                    `json:"name"`
	Entities           []string                  `json:"entities"`
	Children           map[string]*HierarchyNode `json:"children"`
	AggregatedFeatures []string                  `json:"aggregated_features"`
}

// NewHierarchyNode creates an empty node with the given display name.
func NewHierarchyNode(name string) *HierarchyNode {
	return &HierarchyNode{
		Name:     name,
		Entities: []string{},
		Children: make(map[string]*HierarchyNode),
	}
}

// HasEntity reports whether id is already present in the node's entity list.
func (n *HierarchyNode) HasEntity(id string) bool {
	for _, existing := range n.Entities {
		if existing == id {
			return true
		}
	}
	return false
}

// AddEntity appends id to the node's entity list if not already present.
func (n *HierarchyNode) AddEntity(id string) {
	if !n.HasEntity(id) {
		n.Entities = append(n.Entities, id)
	}
}

// Metadata holds derived counts recomputed by RefreshMetadata.
type Metadata struct {
	Language         string `json:"language"`
	TotalFiles       int    `json:"total_files"`
	TotalEntities    int    `json:"total_entities"`
	FunctionalAreas  int    `json:"functional_areas"`
	TotalEdges       int    `json:"total_edges"`
	DependencyEdges  int    `json:"dependency_edges"`
	ContainmentEdges int    `json:"containment_edges"`
}

// Graph is the top-level Repository Property Graph object.
type Graph struct {
	Version   string                    `json:"version"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
	Metadata  Metadata                  `json:"metadata"`
	Entities  map[string]*Entity        `json:"entities"`
	Edges     []DependencyEdge          `json:"edges"`
	Hierarchy map[string]*HierarchyNode `json:"hierarchy"`
	FileIndex map[string][]string       `json:"file_index"`
}
