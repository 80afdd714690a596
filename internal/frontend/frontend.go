/*
Copyright 2026 The HLQL Compiler Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package frontend declares the external collaborators the compiler
// core depends on but does not implement itself: the parser, the IR
// compiler, the SQL generator, and the schema adapter. The core is
// tested and demoed against memfrontend, a small in-memory stand-in
// for all four.
package frontend

import (
	"github.com/dbplatform/hlqlcompiler/internal/ast"
	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/schema"
	"github.com/dbplatform/hlqlcompiler/internal/sertypes"
)

// Parser turns raw source text into the closed ast.Node set the
// dispatcher switches on. A single call to ParseBlock corresponds to
// one client EXECUTE/PARSE message, which may itself contain several
// statements; the statement modes operate over its result.
type Parser interface {
	ParseBlock(source string) ([]ast.Node, error)
}

// Source is a handle over one compile request's text. Normalized
// carries the constant-extracted form the server caches on; Original
// is the text as the client sent it. FirstExtra, when set, is the
// index of the first server-injected parameter — user-originating
// parameters are those before it.
type Source struct {
	normalized string
	original   string
	firstExtra *int
}

// SourceFromString builds a Source whose normalized and original text
// coincide.
func SourceFromString(text string) *Source {
	return &Source{normalized: text, original: text}
}

// NormalizedSource builds a Source carrying both forms plus the
// injected-parameter boundary (negative firstExtra means none).
func NormalizedSource(normalized, original string, firstExtra int) *Source {
	s := &Source{normalized: normalized, original: original}
	if firstExtra >= 0 {
		fe := firstExtra
		s.firstExtra = &fe
	}
	return s
}

// Text returns the normalized form.
func (s *Source) Text() string { return s.normalized }

// OriginalText returns the client-sent form.
func (s *Source) OriginalText() string { return s.original }

// FirstExtra returns the index of the first server-injected parameter,
// or nil when every parameter is user-originating.
func (s *Source) FirstExtra() *int { return s.firstExtra }

// IROptions carries the per-call knobs the IR compiler needs beyond
// what ast.Query itself holds.
type IROptions struct {
	Modaliases       map[string]string
	InferCardinality bool
	ImplicitLimit    int64
	JSONParameters   bool

	// ApplyQueryRewrites is cleared during bootstrap and schema
	// reflection, where access-policy rewrites must not fire.
	ApplyQueryRewrites bool
}

// IR is the compiled intermediate representation of one Query node:
// opaque to the rest of the core beyond the fields the unit assembler
// and type-descriptor builder consume.
type IR struct {
	Cardinality  enums.Cardinality
	HasDML       bool
	StmtCount    int
	OutType      sertypes.Type
	Params       []sertypes.Param
	Capabilities enums.Capability
}

// IRCompiler compiles a single Query node's text into an IR, resolving
// names against the given schema snapshot and modaliases.
type IRCompiler interface {
	CompileQuery(q *ast.Query, snap schema.Snapshot, opts IROptions) (*IR, error)
}

// SQLGenerator lowers a compiled IR into one or more backend SQL
// statements.
type SQLGenerator interface {
	CompileIRToSQL(ir *IR, pretty bool) (statements [][]byte, err error)
}

// ProposedStatement is one diff-derived step a SchemaAdapter's
// StatementsFromDelta emits for the interactive migration path —
// enough to build a dbstate.ProposedMigrationStep from.
type ProposedStatement struct {
	Op                schema.DeltaOp
	Confidence        float64
	Prompt            string
	DataSafe          bool
	RequiredUserInput [][2]string
}

// ReflectionArg is one named argument to a reflection-helper call.
type ReflectionArg struct {
	Name  string
	Value string
}

// ReflectionWrite is one reflection step a DDL commit produces: the
// canonical reflection fragment plus the argument values to run it
// with. The DDL path hashes Text to find or create the backing helper
// function.
type ReflectionWrite struct {
	Text string
	Args []ReflectionArg
}

// SchemaAdapter is the external schema engine: everything the
// compiler needs beyond reading an existing schema.Snapshot. The
// engine's own implementation lives outside this module; this is its
// contract.
type SchemaAdapter interface {
	ApplyDelta(base schema.Snapshot, delta *schema.Delta) (schema.Snapshot, error)
	Diff(src, tgt schema.Snapshot, guidance *schema.Guidance) (*schema.Delta, error)
	DDLFromDelta(src, tgt schema.Snapshot, delta *schema.Delta) (string, error)
	StatementsFromDelta(src, tgt schema.Snapshot, delta *schema.Delta) ([]ProposedStatement, error)
	ApplySDL(base schema.Snapshot, sdl string) (schema.Snapshot, error)
	WriteReflection(delta *schema.Delta, snap schema.Snapshot) ([]ReflectionWrite, error)
	BuildDeltaFromDDL(cmd *ast.DDLCommand, current schema.Snapshot, modaliases map[string]string) (*schema.Delta, error)
	ReflectionGenerationTag(snap schema.Snapshot) string
}
