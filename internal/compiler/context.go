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

// Package compiler implements the statement dispatcher: it routes each
// parsed ast.Node to the compiler path for its kind and assembles the
// resulting effects into QueryUnits. A single Compile call runs to
// completion without yielding; it performs no I/O.
package compiler

import (
	"github.com/dbplatform/hlqlcompiler/internal/config"
	"github.com/dbplatform/hlqlcompiler/internal/dbstate"
	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/frontend"
	"github.com/dbplatform/hlqlcompiler/internal/sertypes"
)

// Context carries every piece of state and every external collaborator
// one Compile call needs. It is built once per request; the only
// mutable state it reaches is the connection state it references.
type Context struct {
	Parser        frontend.Parser
	IRCompiler    frontend.IRCompiler
	SQLGenerator  frontend.SQLGenerator
	SchemaAdapter frontend.SchemaAdapter

	ConnState *dbstate.CompilerConnectionState
	Registry  *config.Registry

	ProtocolVersion sertypes.ProtocolVersion

	// OutputFormat is the requested wire output format; it feeds the
	// sql_hash derivation. The query path does not use it to add or
	// drop the implicit id/__tid__/__tname__ shape fields.
	OutputFormat enums.OutputFormat

	// InputFormat and InputLanguage describe how parameters arrive and
	// which language the source text is written in.
	InputFormat   enums.InputFormat
	InputLanguage enums.InputLanguage

	// InlineTypenames makes output descriptors carry display-name
	// annotations. InlineTypeIDs is carried on the context, but no
	// compile path reads it.
	InlineTypenames bool
	InlineTypeIDs   bool

	// ImplicitLimit, when non-zero, caps every result set that does not
	// state its own limit.
	ImplicitLimit int64

	// JSONParameters marks requests whose parameters arrive as one JSON
	// document rather than positionally.
	JSONParameters bool

	// Bootstrap suppresses the session-state-table side effects while
	// the server is creating the very tables they would write to.
	// Internal marks compiles issued by the server itself (schema
	// reflection), which skip query rewrites.
	Bootstrap bool
	Internal  bool

	// Source, when set, is the request's text handle; its FirstExtra
	// boundary excludes server-injected parameters from the input
	// descriptor.
	Source *frontend.Source

	// ClientCache holds compiled type descriptors keyed by the
	// request's cache key; it survives across Compile calls for the
	// life of the connection.
	ClientCache *dbstate.ClientSchemaCache
}

// NewContext builds a Context with a fresh, empty client cache.
func NewContext(parser frontend.Parser, ir frontend.IRCompiler, gen frontend.SQLGenerator, adapter frontend.SchemaAdapter, conn *dbstate.CompilerConnectionState, registry *config.Registry, pv sertypes.ProtocolVersion) *Context {
	return &Context{
		Parser:          parser,
		IRCompiler:      ir,
		SQLGenerator:    gen,
		SchemaAdapter:   adapter,
		ConnState:       conn,
		Registry:        registry,
		ProtocolVersion: pv,
		ClientCache:     dbstate.NewClientSchemaCache(),
	}
}
