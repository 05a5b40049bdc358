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

// Package evolution is C5: the incremental update primitives that keep a
// previously-built graph in sync with a changed repository without a full
// rebuild — deleting the entities of removed files and migrating the
// entities of renamed ones, while preserving every global invariant.
package evolution

import (
	"strings"

	"github.com/rpgraph-dev/rpgraph/pkg/graph"
)

// ApplyDeletions removes every entity belonging to any of files, along with
// their file_index entries and any edge that references them, and returns
// the number of entities removed. Hierarchy node entity lists are left
// dangling on purpose; call grounding.GroundHierarchy afterward to sweep
// them, matching the reference pipeline's ordering.
func ApplyDeletions(g *graph.Graph, files []string) int {
	doomed := make(map[string]struct{})
	for _, file := range files {
		for _, id := range g.FileIndex[file] {
			doomed[id] = struct{}{}
		}
		delete(g.FileIndex, file)
	}

	for id := range doomed {
		delete(g.Entities, id)
	}

	if len(doomed) > 0 {
		edges := g.Edges[:0]
		for _, e := range g.Edges {
			if _, gone := doomed[e.Source]; gone {
				continue
			}
			if _, gone := doomed[e.Target]; gone {
				continue
			}
			edges = append(edges, e)
		}
		g.Edges = edges
	}

	return len(doomed)
}

// ApplyRenames migrates every entity of each old-path -> new-path rename:
// file_index keys, entity.File, entity.ID (recomputed for the new path),
// and every edge and hierarchy-node reference to the old ID. It returns the
// number of files migrated and the number of entities whose ID changed.
func ApplyRenames(g *graph.Graph, renames map[string]string) (filesMigrated, entitiesRenamed int) {
	idRemap := make(map[string]string)

	for oldFile, newFile := range renames {
		ids, ok := g.FileIndex[oldFile]
		if !ok {
			continue
		}
		filesMigrated++

		newIDs := make([]string, 0, len(ids))
		for _, oldID := range ids {
			e := g.Entities[oldID]
			if e == nil {
				continue
			}
			newID := renameEntityID(oldID, oldFile, newFile)

			delete(g.Entities, oldID)
			e.ID = newID
			e.File = newFile
			g.Entities[newID] = e

			if newID != oldID {
				idRemap[oldID] = newID
				entitiesRenamed++
			}
			newIDs = append(newIDs, newID)
		}

		delete(g.FileIndex, oldFile)
		g.FileIndex[newFile] = newIDs
	}

	if len(idRemap) == 0 {
		return filesMigrated, entitiesRenamed
	}

	for i, e := range g.Edges {
		if remapped, ok := idRemap[e.Source]; ok {
			g.Edges[i].Source = remapped
		}
		if remapped, ok := idRemap[e.Target]; ok {
			g.Edges[i].Target = remapped
		}
	}

	for _, node := range g.Hierarchy {
		remapNodeEntities(node, idRemap)
	}

	return filesMigrated, entitiesRenamed
}

// renameEntityID rewrites the file-path prefix of an entity ID to reflect a
// file rename, preserving the ":<name>" suffix for named entities. Module
// entity IDs equal their file path, so they become exactly newFile.
func renameEntityID(oldID, oldFile, newFile string) string {
	if oldID == oldFile {
		return newFile
	}
	if suffix, ok := strings.CutPrefix(oldID, oldFile+":"); ok {
		return newFile + ":" + suffix
	}
	return oldID
}

func remapNodeEntities(node *graph.HierarchyNode, idRemap map[string]string) {
	if node == nil {
		return
	}
	for i, id := range node.Entities {
		if remapped, ok := idRemap[id]; ok {
			node.Entities[i] = remapped
		}
	}
	for _, child := range node.Children {
		remapNodeEntities(child, idRemap)
	}
}
