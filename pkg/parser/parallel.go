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
	"context"
	"sync"
	"sync/atomic"
)

// SourceFile identifies one file to parse: FullPath is where to read it from
// disk, RelPath is its posix-style path relative to the repository root (the
// value that ends up as Entity.File).
type SourceFile struct {
	FullPath string
	RelPath  string
}

// FileError pairs a file with the error encountered parsing it.
type FileError struct {
	RelPath string
	Err     error
}

// ProgressFunc is invoked after each file finishes parsing, with the number
// of files completed so far and the total file count.
type ProgressFunc func(done, total int)

// sequentialThreshold is the file-count floor below which ParseFilesParallel
// falls back to a single goroutine: pool/channel overhead dominates for tiny
// batches.
const sequentialThreshold = 10

// ParseFilesParallel parses files across numWorkers goroutines (or
// sequentially for small batches or numWorkers<=1) and returns every
// extracted entity plus the per-file errors encountered. Parsing is the only
// concurrent stage of the pipeline; every later stage mutates shared graph
// state and runs single-threaded.
func ParseFilesParallel(ctx context.Context, p *Parser, files []SourceFile, numWorkers int, onProgress ProgressFunc) ([]RawEntity, []FileError) {
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) < sequentialThreshold || numWorkers <= 1 {
		return parseFilesSequential(ctx, p, files, onProgress)
	}

	jobs := make(chan int, len(files))

	type fileResult struct {
		entities []RawEntity
		err      *FileError
	}
	results := make([]fileResult, len(files))

	var progressCount int64
	total := len(files)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				f := files[i]
				entities, err := p.ParseFile(f.FullPath, f.RelPath)
				if err != nil {
					results[i] = fileResult{err: &FileError{RelPath: f.RelPath, Err: err}}
				} else {
					results[i] = fileResult{entities: entities}
				}

				done := atomic.AddInt64(&progressCount, 1)
				if onProgress != nil {
					onProgress(int(done), total)
				}
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var entities []RawEntity
	var errs []FileError
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, *r.err)
			continue
		}
		entities = append(entities, r.entities...)
	}
	return entities, errs
}

func parseFilesSequential(ctx context.Context, p *Parser, files []SourceFile, onProgress ProgressFunc) ([]RawEntity, []FileError) {
	var entities []RawEntity
	var errs []FileError

	for i, f := range files {
		select {
		case <-ctx.Done():
			return entities, errs
		default:
		}

		fe, err := p.ParseFile(f.FullPath, f.RelPath)
		if err != nil {
			errs = append(errs, FileError{RelPath: f.RelPath, Err: err})
		} else {
			entities = append(entities, fe...)
		}
		if onProgress != nil {
			onProgress(i+1, len(files))
		}
	}
	return entities, errs
}
