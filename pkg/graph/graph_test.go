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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// verifyIntegrity checks I1 (file_index/entities agreement) and I2 (every
// edge endpoint resolves to a known entity or hierarchy node), mirroring the
// reference implementation's verify_graph_integrity helper.
func verifyIntegrity(t *testing.T, g *Graph) {
	t.Helper()
	for file, ids := range g.FileIndex {
		for _, id := range ids {
			e, ok := g.Entities[id]
			require.True(t, ok, "file_index references unknown entity %q", id)
			assert.Equal(t, file, e.File, "entity %q file mismatch with file_index", id)
		}
	}
	for id, e := range g.Entities {
		assert.Equal(t, id, e.ID, "entity map key must match entity.ID")
	}
	nodeIDs := make(map[string]struct{})
	g.walkNodes(func(n *HierarchyNode) { nodeIDs[n.ID] = struct{}{} })
	for _, edge := range g.Edges {
		_, targetOK := g.Entities[edge.Target]
		assert.True(t, targetOK, "edge target %q is not a known entity", edge.Target)
		_, sourceIsEntity := g.Entities[edge.Source]
		_, sourceIsNode := nodeIDs[edge.Source]
		assert.True(t, sourceIsEntity || (edge.Kind == EdgeContains && sourceIsNode),
			"edge source %q is not a known entity or hierarchy node", edge.Source)
	}
}

func buildFixture(t *testing.T) *Graph {
	t.Helper()
	g := New("python")

	g.InsertEntity(&Entity{
		ID: "services/auth.py:login", Kind: KindFunction, Name: "login",
		File: "services/auth.py", LineStart: 10, LineEnd: 20,
		SemanticFeatures: []string{"authenticates user"},
	})
	g.InsertEntity(&Entity{
		ID: "services/auth.py:logout", Kind: KindFunction, Name: "logout",
		File: "services/auth.py", LineStart: 22, LineEnd: 30,
		SemanticFeatures: []string{"ends session"},
	})
	g.InsertEntity(&Entity{
		ID: "services/payments/charge.py:Charge", Kind: KindClass, Name: "Charge",
		File: "services/payments/charge.py", LineStart: 1, LineEnd: 40,
		SemanticFeatures: []string{"processes payment"},
	})
	g.InsertEntity(&Entity{
		ID: "main.py:run", Kind: KindFunction, Name: "run",
		File: "main.py", LineStart: 1, LineEnd: 5,
	})
	return g
}

func TestInsertEntityMaintainsFileIndex(t *testing.T) {
	g := New("go")
	g.InsertEntity(&Entity{ID: "a.go:Foo", Kind: KindFunction, Name: "Foo", File: "a.go"})
	g.InsertEntity(&Entity{ID: "a.go:Foo", Kind: KindFunction, Name: "Foo", File: "a.go"})

	assert.Equal(t, []string{"a.go:Foo"}, g.FileIndex["a.go"])
	verifyIntegrity(t, g)
}

func TestInsertEntityMovesAcrossFiles(t *testing.T) {
	g := New("go")
	e := &Entity{ID: "a.go:Foo", Kind: KindFunction, Name: "Foo", File: "a.go"}
	g.InsertEntity(e)

	moved := &Entity{ID: "a.go:Foo", Kind: KindFunction, Name: "Foo", File: "b.go"}
	g.InsertEntity(moved)

	assert.NotContains(t, g.FileIndex, "a.go")
	assert.Equal(t, []string{"a.go:Foo"}, g.FileIndex["b.go"])
}

func TestCreateModuleEntitiesIsIdempotent(t *testing.T) {
	g := buildFixture(t)
	g.CreateModuleEntities()

	authModule, ok := g.Entities["services/auth.py"]
	require.True(t, ok)
	assert.Equal(t, KindModule, authModule.Kind)
	assert.Equal(t, "auth", authModule.Name)
	assert.Equal(t, 30, authModule.LineEnd)

	before := len(g.Entities)
	g.CreateModuleEntities()
	assert.Equal(t, before, len(g.Entities), "second call must not duplicate module entities")
}

func TestBuildFilePathHierarchyCapsDepth(t *testing.T) {
	g := buildFixture(t)
	g.InsertEntity(&Entity{
		ID: "services/payments/stripe/client.py:Pay", Kind: KindFunction, Name: "Pay",
		File: "services/payments/stripe/client.py", LineStart: 1, LineEnd: 3,
	})
	g.CreateModuleEntities()
	g.BuildFilePathHierarchy(2)

	services, ok := g.Hierarchy["services"]
	require.True(t, ok)
	payments, hasPayments := services.Children["payments"]
	require.True(t, hasPayments)
	assert.Empty(t, payments.Children, "a third directory level must not be created when maxDepth is 2")
	assert.True(t, payments.HasEntity("services/payments/stripe/client.py"), "deeper files attach at the capped node")

	root, ok := g.Hierarchy[rootSegment]
	require.True(t, ok, "root-level main.py must attach under the synthetic root node")
	assert.NotEmpty(t, root.Entities)
}

func TestAssignHierarchyIDsPropagatesModuleToSiblings(t *testing.T) {
	g := buildFixture(t)
	g.CreateModuleEntities()
	g.BuildFilePathHierarchy(DefaultMaxHierarchyDepth)
	g.AssignHierarchyIDs()

	for _, id := range []string{"services/auth.py:login", "services/auth.py:logout", "services/auth.py"} {
		e, ok := g.Entities[id]
		require.True(t, ok)
		assert.NotEmpty(t, e.HierarchyPath, "entity %q must have a hierarchy_path after AssignHierarchyIDs", id)
	}
}

func TestInsertIntoHierarchySemanticAssignment(t *testing.T) {
	g := buildFixture(t)
	g.CreateModuleEntities()
	g.BuildFilePathHierarchy(DefaultMaxHierarchyDepth)
	g.AssignHierarchyIDs()

	g.InsertIntoHierarchy("Services/Auth", "services/auth.py:login")

	node, ok := g.Hierarchy["Services"]
	require.True(t, ok)
	child, ok := node.Children["Auth"]
	require.True(t, ok)
	assert.Equal(t, "Services/Auth", child.ID)
	assert.True(t, child.HasEntity("services/auth.py:login"))
}

func TestAggregateHierarchyFeaturesUnionsBottomUp(t *testing.T) {
	g := buildFixture(t)
	g.CreateModuleEntities()
	g.BuildFilePathHierarchy(DefaultMaxHierarchyDepth)
	g.AssignHierarchyIDs()
	g.AggregateHierarchyFeatures()

	services := g.Hierarchy["services"]
	require.NotNil(t, services)
	assert.Contains(t, services.AggregatedFeatures, "authenticates user")
	assert.Contains(t, services.AggregatedFeatures, "ends session")
	assert.Contains(t, services.AggregatedFeatures, "processes payment")
}

func TestMaterializeContainmentEdgesDeduplicates(t *testing.T) {
	g := buildFixture(t)
	g.CreateModuleEntities()
	g.BuildFilePathHierarchy(DefaultMaxHierarchyDepth)
	g.AssignHierarchyIDs()

	g.MaterializeContainmentEdges()
	before := len(g.Edges)
	g.MaterializeContainmentEdges()
	assert.Equal(t, before, len(g.Edges), "re-running must not duplicate containment edges")

	for _, e := range g.Edges {
		assert.Equal(t, EdgeContains, e.Kind)
	}
}

func TestRefreshMetadataCounts(t *testing.T) {
	g := buildFixture(t)
	g.CreateModuleEntities()
	g.BuildFilePathHierarchy(DefaultMaxHierarchyDepth)
	g.AssignHierarchyIDs()
	g.MaterializeContainmentEdges()
	g.RefreshMetadata()

	assert.Equal(t, 3, g.Metadata.TotalFiles)
	assert.Equal(t, len(g.Entities), g.Metadata.TotalEntities)
	assert.Equal(t, len(g.Edges), g.Metadata.TotalEdges)
	assert.Equal(t, g.Metadata.TotalEdges, g.Metadata.ContainmentEdges+g.Metadata.DependencyEdges)
	verifyIntegrity(t, g)
}

func TestSortEdgesIsDeterministic(t *testing.T) {
	g := &Graph{Edges: []DependencyEdge{
		{Source: "b", Target: "x", Kind: EdgeInvokes},
		{Source: "a", Target: "y", Kind: EdgeImports},
		{Source: "a", Target: "x", Kind: EdgeInvokes},
	}}
	g.SortEdges()
	require.Len(t, g.Edges, 3)
	assert.Equal(t, "a", g.Edges[0].Source)
	assert.Equal(t, "x", g.Edges[0].Target)
	assert.Equal(t, "a", g.Edges[1].Source)
	assert.Equal(t, "y", g.Edges[1].Target)
	assert.Equal(t, "b", g.Edges[2].Source)
}
