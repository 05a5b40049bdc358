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
	"fmt"
	"os"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// maxSourceBytes caps how much of an oversized file is handed to Tree-sitter;
// files larger than this are truncated rather than skipped outright.
const maxSourceBytes = 2 << 20 // 2MiB

// Parser walks source files with Tree-sitter and extracts RawEntity values.
// Parsers are not thread-safe, so one sync.Pool per grammar is kept and
// ParseFile borrows a parser from it for each file and returns it afterwards.
type Parser struct {
	goPool     sync.Pool
	pyPool     sync.Pool
	jsPool     sync.Pool
	tsPool     sync.Pool
	initOnce   sync.Once
	truncated  int
	errorNodes int
	mu         sync.Mutex
}

// New creates a Parser with lazily-initialized grammar pools.
func New() *Parser {
	return &Parser{}
}

func (p *Parser) initPools() {
	p.initOnce.Do(func() {
		p.goPool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(golang.GetLanguage())
			return parser
		}
		p.pyPool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(python.GetLanguage())
			return parser
		}
		p.jsPool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(javascript.GetLanguage())
			return parser
		}
		p.tsPool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(typescript.GetLanguage())
			return parser
		}
	})
}

func (p *Parser) poolFor(lang Language) *sync.Pool {
	switch lang {
	case LangGo:
		return &p.goPool
	case LangPython:
		return &p.pyPool
	case LangJavaScript:
		return &p.jsPool
	case LangTypeScript:
		return &p.tsPool
	default:
		return nil
	}
}

// TruncatedCount reports how many files were truncated to maxSourceBytes
// before parsing.
func (p *Parser) TruncatedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.truncated
}

// ErrorNodeCount reports the total number of Tree-sitter ERROR nodes seen
// across every file parsed so far. Tree-sitter is error-tolerant, so a
// nonzero count does not stop extraction; it is purely a diagnostic signal
// that some source the grammar saw was malformed or used a construct the
// grammar doesn't recognize.
func (p *Parser) ErrorNodeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errorNodes
}

// ParseFile reads, parses, and extracts entities from a single source file.
// Files in an unrecognized language return (nil, nil): the front-end is
// silently tolerant of unsupported inputs, matching its treatment elsewhere
// of partial or best-effort results.
func (p *Parser) ParseFile(fullPath, relPath string) ([]RawEntity, error) {
	p.initPools()

	lang := DetectLanguage(relPath)
	pool := p.poolFor(lang)
	if pool == nil {
		return nil, nil
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(content) > maxSourceBytes {
		p.mu.Lock()
		p.truncated++
		p.mu.Unlock()
		content = content[:maxSourceBytes]
	}

	parserObj := pool.Get()
	sp, ok := parserObj.(*sitter.Parser)
	if !ok {
		return nil, fmt.Errorf("invalid parser type from %s pool", lang)
	}
	defer pool.Put(sp)

	tree, err := sp.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	file := toSlash(relPath)
	root := tree.RootNode()

	if n := countErrors(root); n > 0 {
		p.mu.Lock()
		p.errorNodes += n
		p.mu.Unlock()
	}

	switch lang {
	case LangGo:
		return walkGo(root, content, file), nil
	case LangPython:
		return walkPython(root, content, file), nil
	case LangJavaScript, LangTypeScript:
		return walkECMAScript(root, content, file, lang == LangTypeScript), nil
	default:
		return nil, nil
	}
}

// countErrors counts ERROR nodes in the AST; Tree-sitter is error-tolerant so
// this is informational only.
func countErrors(node *sitter.Node) int {
	count := 0
	if node.Type() == "ERROR" {
		count++
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		count += countErrors(node.Child(i))
	}
	return count
}

// nodeText returns the source slice covered by node.
func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}

// lineRange converts a node's 0-indexed Tree-sitter points into 1-indexed
// inclusive line numbers.
func lineRange(node *sitter.Node) (start, end int) {
	return int(node.StartPoint().Row) + 1, int(node.EndPoint().Row) + 1
}
