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

// Package main implements the rpgraph CLI for building and inspecting a
// repository property graph.
//
// Usage:
//
//	rpgraph build [path]                       Parse a repository and write .rpg/graph.json
//	rpgraph status [path]                      Print summary metadata for an existing graph
//	rpgraph apply-hierarchy <path> <file.json> Apply a semantic hierarchy assignment map
//	rpgraph evolve <path> <changeset.json>     Apply deletions/renames to an existing graph
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/rpgraph-dev/rpgraph/internal/ui"
	"github.com/rpgraph-dev/rpgraph/pkg/config"
	"github.com/rpgraph-dev/rpgraph/pkg/evolution"
	"github.com/rpgraph-dev/rpgraph/pkg/graph"
	"github.com/rpgraph-dev/rpgraph/pkg/grounding"
	"github.com/rpgraph-dev/rpgraph/pkg/hierarchy"
	"github.com/rpgraph-dev/rpgraph/pkg/parser"
	"github.com/rpgraph-dev/rpgraph/pkg/persistence"
	"github.com/rpgraph-dev/rpgraph/pkg/semantic"
	"github.com/schollz/progressbar/v3"
)

var (
	version = "dev"
	commit  = "unknown"
)

// excludedDirs are never descended into while discovering source files.
var excludedDirs = map[string]struct{}{
	".git": {}, ".rpg": {}, "node_modules": {}, "vendor": {}, "dist": {}, "build": {},
}

func main() {
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()
	ui.InitColors(*noColor)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "build":
		err = runBuild(args[1:])
	case "status":
		err = runStatus(args[1:])
	case "apply-hierarchy":
		err = runApplyHierarchy(args[1:])
	case "evolve":
		err = runEvolve(args[1:])
	case "version":
		fmt.Printf("rpgraph %s (%s)\n", version, commit)
		return
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		ui.Warningf("%v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rpgraph <build|status|apply-hierarchy|evolve|version> [path] [file.json]")
}

func targetPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// runBuild discovers source files under root, parses them in parallel,
// grounds their dependencies, derives the file-path hierarchy, and persists
// the resulting graph to "<root>/.rpg/graph.json".
func runBuild(args []string) error {
	root, err := filepath.Abs(targetPath(args))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ui.Header("Discovering source files")
	files, err := discoverFiles(root)
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}
	if len(files) == 0 {
		ui.Warning("no recognized source files found")
		return nil
	}
	ui.Infof("found %d candidate files", len(files))

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("parsing"),
		progressbar.OptionShowCount(),
	)

	p := parser.New()
	rawEntities, fileErrors := parser.ParseFilesParallel(context.Background(), p, files, numWorkers(), func(done, total int) {
		_ = bar.Set(done)
	})
	_ = bar.Finish()

	for _, fe := range fileErrors {
		ui.Warningf("parse error in %s: %v", fe.RelPath, fe.Err)
	}

	g := graph.New(dominantLanguage(files))
	for _, re := range rawEntities {
		g.InsertEntity(re.IntoEntity())
	}

	ui.Header("Building graph")
	runPipeline(g, cfg)

	data, err := persistence.ToJSON(g, cfg.Storage.Compress)
	if err != nil {
		return fmt.Errorf("serialize graph: %w", err)
	}

	outDir := filepath.Join(root, ".rpg")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create .rpg directory: %w", err)
	}
	outPath := filepath.Join(outDir, "graph.json")
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}

	ui.Successf("wrote %s", outPath)
	fmt.Printf("%s %s\n", ui.Label("Entities:"), ui.CountText(g.Metadata.TotalEntities))
	fmt.Printf("%s    %s\n", ui.Label("Files:"), ui.CountText(g.Metadata.TotalFiles))
	fmt.Printf("%s    %s\n", ui.Label("Edges:"), ui.CountText(g.Metadata.TotalEdges))
	return nil
}

// runPipeline applies the full build ordering onto a freshly parsed graph:
// synthesize Module entities, derive the structural hierarchy, ground
// dependencies and the hierarchy, then finalize aggregates and metadata.
func runPipeline(g *graph.Graph, cfg config.Config) {
	g.CreateModuleEntities()
	g.BuildFilePathHierarchy(cfg.Encoding.MaxHierarchyDepth)
	grounding.ResolveDependencies(g, cfg.Encoding.BroadcastImports)
	g.AssignHierarchyIDs()
	g.AggregateHierarchyFeatures()
	g.MaterializeContainmentEdges()
	grounding.GroundHierarchy(g)
	semantic.AggregateModuleFeatures(g)
	g.RefreshMetadata()
}

func numWorkers() int {
	if n := os.Getenv("RPG_PARSE_WORKERS"); n != "" {
		return parseIntOrDefault(n, 4)
	}
	return 4
}

func parseIntOrDefault(s string, def int) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 {
		return def
	}
	return n
}

func discoverFiles(root string) ([]parser.SourceFile, error) {
	var files []parser.SourceFile
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if _, skip := excludedDirs[info.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if parser.DetectLanguage(rel) == parser.LangUnknown {
			return nil
		}
		files = append(files, parser.SourceFile{FullPath: path, RelPath: rel})
		return nil
	})
	return files, err
}

func dominantLanguage(files []parser.SourceFile) string {
	counts := make(map[parser.Language]int)
	for _, f := range files {
		counts[parser.DetectLanguage(f.RelPath)]++
	}
	var best parser.Language
	bestCount := -1
	for lang, count := range counts {
		if count > bestCount {
			best, bestCount = lang, count
		}
	}
	return string(best)
}

func runStatus(args []string) error {
	root, err := filepath.Abs(targetPath(args))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	graphPath := filepath.Join(root, ".rpg", "graph.json")
	data, err := os.ReadFile(graphPath)
	if err != nil {
		return fmt.Errorf("read %s: %w (run 'rpgraph build' first)", graphPath, err)
	}

	g, err := persistence.FromJSON(data)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	ui.Header("Graph Status")
	fmt.Printf("%s    %s\n", ui.Label("Version:"), g.Version)
	fmt.Printf("%s   %s\n", ui.Label("Language:"), g.Metadata.Language)
	fmt.Printf("%s      %s\n", ui.Label("Files:"), ui.CountText(g.Metadata.TotalFiles))
	fmt.Printf("%s   %s\n", ui.Label("Entities:"), ui.CountText(g.Metadata.TotalEntities))
	fmt.Printf("%s      %s\n", ui.Label("Edges:"), ui.CountText(g.Metadata.TotalEdges))
	fmt.Printf("%s Updated: %s\n", ui.DimText(""), g.UpdatedAt.Format(time.RFC3339))
	return nil
}

// runApplyHierarchy loads an existing graph, applies a semantic
// name-to-hierarchy-path assignment map read from a JSON file, and writes
// the graph back. The assignment file format is a flat
// {"entity name or ID": "Hierarchy/Path"} object.
func runApplyHierarchy(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: rpgraph apply-hierarchy <path> <assignments.json>")
	}
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	graphPath := filepath.Join(root, ".rpg", "graph.json")
	data, err := os.ReadFile(graphPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", graphPath, err)
	}
	g, err := persistence.FromJSON(data)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	assignmentData, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read assignments: %w", err)
	}
	var assignments map[string]string
	if err := json.Unmarshal(assignmentData, &assignments); err != nil {
		return fmt.Errorf("parse assignments: %w", err)
	}

	hierarchy.ApplyHierarchy(g, assignments)
	grounding.GroundHierarchy(g)
	g.AggregateHierarchyFeatures()
	g.MaterializeContainmentEdges()
	g.RefreshMetadata()

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	out, err := persistence.ToJSON(g, cfg.Storage.Compress)
	if err != nil {
		return fmt.Errorf("serialize graph: %w", err)
	}
	if err := os.WriteFile(graphPath, out, 0o644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}

	ui.Successf("applied %d hierarchy assignments", len(assignments))
	return nil
}

// changeset is the on-disk format for "rpgraph evolve": files deleted
// outright, and files renamed (old path -> new path).
type changeset struct {
	Deleted []string          `json:"deleted"`
	Renamed map[string]string `json:"renamed"`
}

// runEvolve applies a changeset of deletions and renames to an existing
// graph in place, without re-parsing the whole repository.
func runEvolve(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: rpgraph evolve <path> <changeset.json>")
	}
	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	graphPath := filepath.Join(root, ".rpg", "graph.json")
	data, err := os.ReadFile(graphPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", graphPath, err)
	}
	g, err := persistence.FromJSON(data)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	changesData, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read changeset: %w", err)
	}
	var cs changeset
	if err := json.Unmarshal(changesData, &cs); err != nil {
		return fmt.Errorf("parse changeset: %w", err)
	}

	removed := evolution.ApplyDeletions(g, cs.Deleted)
	filesMigrated, entitiesRenamed := evolution.ApplyRenames(g, cs.Renamed)
	grounding.GroundHierarchy(g)
	g.RefreshMetadata()

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	out, err := persistence.ToJSON(g, cfg.Storage.Compress)
	if err != nil {
		return fmt.Errorf("serialize graph: %w", err)
	}
	if err := os.WriteFile(graphPath, out, 0o644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}

	ui.Successf("removed %d entities, migrated %d files (%d entities renamed)", removed, filesMigrated, entitiesRenamed)
	return nil
}
