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
	"path"
	"path/filepath"
	"strings"

	"github.com/rpgraph-dev/rpgraph/pkg/graph"
)

// RawEntity is the front-end's output: a code unit located in a file, with
// its dependencies still expressed as the bare symbolic names found at the
// call/inherit/import sites. Grounding (pkg/grounding) resolves those names
// into concrete entity IDs.
type RawEntity struct {
	Kind          graph.EntityKind
	Name          string
	File          string
	LineStart     int
	LineEnd       int
	ParentClass   string
	Signature     string
	Calls         []string
	Inherits      []string
	Imports       []string
}

// IntoEntity builds the canonical graph.Entity for this raw entity. File
// entities (Kind == graph.KindModule) get an ID equal to their path; every
// other kind gets "<file>:<name>".
func (r RawEntity) IntoEntity() *graph.Entity {
	id := r.File
	if r.Kind != graph.KindModule {
		id = r.File + ":" + r.Name
	}
	return &graph.Entity{
		ID:               id,
		Kind:             r.Kind,
		Name:             r.Name,
		File:             r.File,
		LineStart:        r.LineStart,
		LineEnd:          r.LineEnd,
		ParentClass:      r.ParentClass,
		Signature:        r.Signature,
		SemanticFeatures: []string{},
		Deps: graph.EntityDeps{
			Calls:    dedupeNonEmpty(r.Calls),
			Inherits: dedupeNonEmpty(r.Inherits),
			Imports:  dedupeNonEmpty(r.Imports),
		},
	}
}

func dedupeNonEmpty(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// toSlash normalizes a filesystem path to the posix-style, forward-slash
// relative path the ID scheme requires (I6).
func toSlash(p string) string {
	return path.Clean(filepath.ToSlash(p))
}
