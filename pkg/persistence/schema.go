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

// Package persistence is C6: schema versioning, forward migration, and the
// on-disk .rpg/graph.json encoding (plain or zstd-compressed, detected by
// magic bytes on read).
package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/rpgraph-dev/rpgraph/pkg/graph"
)

// zstdMagic is the four-byte frame magic number zstd prefixes every frame
// with; its presence on read is how FromJSON tells a compressed file from a
// plain one without needing a side-channel flag.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ValidateVersion reports whether a persisted graph's version string is
// loadable by this build: only the major version component must match
// graph.CurrentVersion. Minor/patch differences are handled by Migrate.
func ValidateVersion(version string) error {
	want, err := parseSemver(graph.CurrentVersion)
	if err != nil {
		return err
	}
	got, err := parseSemver(version)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", version, err)
	}
	if got.major != want.major {
		return fmt.Errorf("incompatible schema version %q: major version %d does not match supported major version %d", version, got.major, want.major)
	}
	return nil
}

type semver struct{ major, minor, patch int }

func parseSemver(s string) (semver, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return semver{}, fmt.Errorf("expected MAJOR.MINOR.PATCH, got %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return semver{}, fmt.Errorf("non-numeric version component %q", p)
		}
		nums[i] = n
	}
	return semver{major: nums[0], minor: nums[1], patch: nums[2]}, nil
}

func (v semver) less(other semver) bool {
	if v.major != other.major {
		return v.major < other.major
	}
	if v.minor != other.minor {
		return v.minor < other.minor
	}
	return v.patch < other.patch
}

// Migrate brings a graph loaded from an older minor/patch version forward to
// graph.CurrentVersion. The only migration currently defined normalizes
// Windows-style backslash path separators (pre-2.2.0 graphs written on
// Windows) to the forward-slash form every ID and path in this schema
// requires; it is skipped entirely when no backslash is found.
func Migrate(g *graph.Graph) error {
	v, err := parseSemver(g.Version)
	if err != nil {
		return err
	}
	target, _ := parseSemver(graph.CurrentVersion)

	if v.less(semver{major: 2, minor: 2, patch: 0}) {
		migrateNormalizeSeparators(g)
	}

	if v.less(target) {
		g.Version = graph.CurrentVersion
	}
	return nil
}

// migrateNormalizeSeparators rewrites every backslash-containing ID, file
// path, edge endpoint, and hierarchy entity reference to use forward
// slashes, rebuilding the entities/file_index maps under their new keys.
func migrateNormalizeSeparators(g *graph.Graph) {
	idRemap := make(map[string]string)
	for id, e := range g.Entities {
		newID := strings.ReplaceAll(id, "\\", "/")
		e.File = strings.ReplaceAll(e.File, "\\", "/")
		if newID != id {
			idRemap[id] = newID
			e.ID = newID
		}
	}
	if len(idRemap) == 0 {
		return
	}

	newEntities := make(map[string]*graph.Entity, len(g.Entities))
	for id, e := range g.Entities {
		newID := id
		if remapped, ok := idRemap[id]; ok {
			newID = remapped
		}
		newEntities[newID] = e
	}
	g.Entities = newEntities

	newFileIndex := make(map[string][]string, len(g.FileIndex))
	for file, ids := range g.FileIndex {
		newFile := strings.ReplaceAll(file, "\\", "/")
		newIDs := make([]string, len(ids))
		for i, id := range ids {
			if remapped, ok := idRemap[id]; ok {
				newIDs[i] = remapped
			} else {
				newIDs[i] = id
			}
		}
		newFileIndex[newFile] = newIDs
	}
	g.FileIndex = newFileIndex

	for i, e := range g.Edges {
		if remapped, ok := idRemap[e.Source]; ok {
			g.Edges[i].Source = remapped
		}
		if remapped, ok := idRemap[e.Target]; ok {
			g.Edges[i].Target = remapped
		}
	}

	for _, node := range g.Hierarchy {
		remapHierarchyIDs(node, idRemap)
	}
}

func remapHierarchyIDs(node *graph.HierarchyNode, idRemap map[string]string) {
	if node == nil {
		return
	}
	for i, id := range node.Entities {
		if remapped, ok := idRemap[id]; ok {
			node.Entities[i] = remapped
		}
	}
	for _, child := range node.Children {
		remapHierarchyIDs(child, idRemap)
	}
}

// ToJSON serializes g deterministically: edges are sorted by
// (source, target, kind) before encoding so byte-identical graphs always
// produce byte-identical output (I5). When compress is true the output is a
// zstd frame.
func ToJSON(g *graph.Graph, compress bool) ([]byte, error) {
	clone := *g
	clone.Edges = append([]graph.DependencyEdge(nil), g.Edges...)
	(&clone).SortEdges()

	plain, err := json.MarshalIndent(&clone, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	if !compress {
		return plain, nil
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer encoder.Close()
	return encoder.EncodeAll(plain, nil), nil
}

// FromJSON decodes a persisted graph, transparently decompressing it first
// if its leading bytes carry the zstd frame magic number, then validating
// and migrating its schema version forward.
func FromJSON(data []byte) (*graph.Graph, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer decoder.Close()
		plain, err := decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress graph: %w", err)
		}
		data = plain
	}

	var g graph.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}

	if err := ValidateVersion(g.Version); err != nil {
		return nil, err
	}
	if err := Migrate(&g); err != nil {
		return nil, fmt.Errorf("migrate graph: %w", err)
	}
	return &g, nil
}
