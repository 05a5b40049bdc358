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

package grounding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rpgraph-dev/rpgraph/pkg/graph"
)

func newFixtureGraph() *graph.Graph {
	g := graph.New("python")
	g.InsertEntity(&graph.Entity{
		ID: "a.py:main", Kind: graph.KindFunction, Name: "main", File: "a.py",
		Deps: graph.EntityDeps{Calls: []string{"helper", "ghost"}},
	})
	g.InsertEntity(&graph.Entity{
		ID: "b.py:helper", Kind: graph.KindFunction, Name: "helper", File: "b.py",
	})
	g.InsertEntity(&graph.Entity{
		ID: "c.py:helper", Kind: graph.KindFunction, Name: "helper", File: "c.py",
	})
	g.InsertEntity(&graph.Entity{
		ID: "d.py:Base", Kind: graph.KindClass, Name: "Base", File: "d.py",
	})
	g.InsertEntity(&graph.Entity{
		ID: "e.py:Child", Kind: graph.KindClass, Name: "Child", File: "e.py",
		Deps: graph.EntityDeps{Inherits: []string{"Base"}},
	})
	g.InsertEntity(&graph.Entity{
		ID: "services/auth.py", Kind: graph.KindModule, Name: "auth", File: "services/auth.py",
	})
	g.InsertEntity(&graph.Entity{
		ID: "main.py:run", Kind: graph.KindFunction, Name: "run", File: "main.py",
		Deps: graph.EntityDeps{Calls: []string{"helper_unique"}, Imports: []string{"services/auth"}},
	})
	g.InsertEntity(&graph.Entity{
		ID: "main.py:helper_unique", Kind: graph.KindFunction, Name: "helper_unique", File: "main.py",
	})
	return g
}

func TestResolveDependenciesAmbiguousCallDropped(t *testing.T) {
	g := newFixtureGraph()
	ResolveDependencies(g, false)

	found := false
	for _, e := range g.Edges {
		if e.Source == "a.py:main" && e.Kind == graph.EdgeInvokes {
			found = true
		}
	}
	assert.False(t, found, "call to an ambiguous name (two entities named helper) must not resolve")
}

func TestResolveDependenciesUnambiguousInherit(t *testing.T) {
	g := newFixtureGraph()
	ResolveDependencies(g, false)

	assert.Contains(t, g.Edges, graph.DependencyEdge{
		Source: "e.py:Child", Target: "d.py:Base", Kind: graph.EdgeInherits,
	})
}

func TestResolveDependenciesUnknownNameDropped(t *testing.T) {
	g := newFixtureGraph()
	ResolveDependencies(g, false)

	for _, e := range g.Edges {
		assert.NotEqual(t, "ghost", e.Target, "unknown call target must never produce an edge")
	}
}

func TestResolveDependenciesImportMatchesModuleSuffix(t *testing.T) {
	g := newFixtureGraph()
	ResolveDependencies(g, false)

	assert.Contains(t, g.Edges, graph.DependencyEdge{
		Source: "main.py:run", Target: "services/auth.py", Kind: graph.EdgeImports,
	})
}

func TestResolveDependenciesIsIdempotent(t *testing.T) {
	g := newFixtureGraph()
	ResolveDependencies(g, false)
	before := len(g.Edges)
	ResolveDependencies(g, false)
	assert.Equal(t, before, len(g.Edges), "re-running grounding must not duplicate edges")
}

func TestResolveDependenciesImportsNeedCallEvidenceByDefault(t *testing.T) {
	g := graph.New("python")
	g.InsertEntity(&graph.Entity{ID: "services/auth.py", Kind: graph.KindModule, Name: "auth", File: "services/auth.py"})
	g.InsertEntity(&graph.Entity{
		ID: "main.py:run", Kind: graph.KindFunction, Name: "run", File: "main.py",
		Deps: graph.EntityDeps{Imports: []string{"services/auth"}},
	})

	ResolveDependencies(g, false)
	assert.Empty(t, g.Edges, "an entity with no call/inherit evidence must not ground imports when broadcast_imports is off")

	ResolveDependencies(g, true)
	assert.Contains(t, g.Edges, graph.DependencyEdge{
		Source: "main.py:run", Target: "services/auth.py", Kind: graph.EdgeImports,
	}, "broadcast_imports=true grounds imports regardless of call-site evidence")
}

func TestGroundHierarchyDropsDanglingEntities(t *testing.T) {
	g := newFixtureGraph()
	node := graph.NewHierarchyNode("root")
	node.ID = "h:root"
	node.AddEntity("a.py:main")
	node.AddEntity("nonexistent.py:gone")
	g.Hierarchy["root"] = node

	GroundHierarchy(g)

	assert.True(t, node.HasEntity("a.py:main"))
	assert.False(t, node.HasEntity("nonexistent.py:gone"))
}
