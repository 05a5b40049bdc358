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

// Package semantic is C7's parsing half: turning an LLM's pipe-delimited
// "name | feature, feature" response lines into normalized feature sets
// attached to entities, and aggregating them up to the Module level. Calling
// the LLM itself is out of scope here — this package only parses what comes
// back.
package semantic

import (
	"sort"
	"strings"

	"github.com/rpgraph-dev/rpgraph/pkg/graph"
)

// FeatureLine is one parsed "name | feature, feature, ..." line. Features may
// be empty: a stub entity the model named but described with nothing is
// still recorded, not discarded.
type FeatureLine struct {
	Name     string
	Features []string
}

// StripThinkBlocks removes every paired "<think>...</think>" span from s. An
// unterminated "<think>" (no matching close tag before the end of input)
// truncates the string at the opening tag, since everything after it is
// reasoning scratch space rather than the answer.
func StripThinkBlocks(s string) string {
	const open, close = "<think>", "</think>"
	var b strings.Builder
	for {
		start := strings.Index(s, open)
		if start == -1 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:start])
		rest := s[start+len(open):]
		end := strings.Index(rest, close)
		if end == -1 {
			break
		}
		s = rest[end+len(close):]
	}
	return b.String()
}

// ParseLineFeatures parses raw model output into one FeatureLine per
// "name | features" line. Blank lines, comment lines ("#"), and fenced code
// block markers ("```") are skipped; a line with no pipe is skipped as
// unparseable rather than guessed at.
func ParseLineFeatures(raw string) []FeatureLine {
	var lines []FeatureLine
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "```") {
			continue
		}
		idx := strings.Index(line, "|")
		if idx == -1 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		if name == "" {
			continue
		}
		rawFeatures := strings.Split(line[idx+1:], ",")
		features := make([]string, 0, len(rawFeatures))
		for _, f := range rawFeatures {
			f = strings.ToLower(strings.TrimSpace(f))
			if f != "" {
				features = append(features, f)
			}
		}
		lines = append(lines, FeatureLine{Name: name, Features: features})
	}
	return lines
}

// NormalizeFeatures trims, lowercases, sorts, and de-duplicates a feature
// list, dropping any entries that are empty after trimming.
func NormalizeFeatures(features []string) []string {
	cleaned := make([]string, 0, len(features))
	for _, f := range features {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			cleaned = append(cleaned, f)
		}
	}
	sort.Strings(cleaned)

	out := cleaned[:0]
	var prev string
	for i, f := range cleaned {
		if i == 0 || f != prev {
			out = append(out, f)
		}
		prev = f
	}
	return out
}

// ApplyFeatures matches each FeatureLine to an entity by exact name and sets
// its SemanticFeatures (normalized) and FeatureSource. Lines matching no
// entity, or matching more than one (ambiguous bare name across files), are
// skipped.
func ApplyFeatures(g *graph.Graph, lines []FeatureLine, source string) {
	byName := make(map[string][]string)
	for id, e := range g.Entities {
		byName[e.Name] = append(byName[e.Name], id)
	}

	for _, line := range lines {
		candidates := byName[line.Name]
		if len(candidates) != 1 {
			continue
		}
		e := g.Entities[candidates[0]]
		e.SemanticFeatures = NormalizeFeatures(line.Features)
		e.FeatureSource = source
	}
}

// AggregateModuleFeatures sets each Module entity's SemanticFeatures to the
// sorted, deduplicated union of every non-Module sibling's features in the
// same file. Files where no sibling has any feature are left untouched.
func AggregateModuleFeatures(g *graph.Graph) {
	for _, ids := range g.FileIndex {
		var moduleID string
		set := make(map[string]struct{})

		for _, id := range ids {
			e := g.Entities[id]
			if e == nil {
				continue
			}
			if e.Kind == graph.KindModule {
				moduleID = id
				continue
			}
			for _, f := range e.SemanticFeatures {
				set[f] = struct{}{}
			}
		}

		if moduleID == "" || len(set) == 0 {
			continue
		}
		features := make([]string, 0, len(set))
		for f := range set {
			features = append(features, f)
		}
		sort.Strings(features)
		g.Entities[moduleID].SemanticFeatures = features
	}
}
