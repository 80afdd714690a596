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

package compiler

import (
	"crypto/sha1"

	"github.com/google/uuid"

	"github.com/dbplatform/hlqlcompiler/internal/ast"
	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/frontend"
	"github.com/dbplatform/hlqlcompiler/internal/queryunit"
	"github.com/dbplatform/hlqlcompiler/internal/sertypes"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// compileQuery resolves a query against the current schema and
// modaliases, compiles it to IR, lowers the IR to SQL, and builds the
// type descriptors for its parameters and output shape.
func compileQuery(ctx *Context, q *ast.Query) (*Result, error) {
	tx := ctx.ConnState.CurrentTx()
	snap := tx.Current().UserSchema

	modaliases := map[string]string{}
	tx.Current().Modaliases.ForEach(func(k, v string) bool {
		modaliases[k] = v
		return true
	})

	opts := frontend.IROptions{
		Modaliases:         modaliases,
		InferCardinality:   true,
		ImplicitLimit:      ctx.ImplicitLimit,
		JSONParameters:     ctx.JSONParameters,
		ApplyQueryRewrites: !ctx.Bootstrap && !ctx.Internal,
	}
	if q.ImplicitLimit != 0 {
		opts.ImplicitLimit = q.ImplicitLimit
	}

	ir, err := ctx.IRCompiler.CompileQuery(q, snap, opts)
	if err != nil {
		return nil, vterrors.QueryErrorAt(vterrors.Context{Line: q.Ctx.Line, Column: q.Ctx.Column, Text: q.Ctx.Text}, "%s", err)
	}

	if q.ExpectedOne && !ir.Cardinality.IsSingleton() {
		return nil, vterrors.ResultCardinalityMismatchf("query may return more than one element but a single result was requested")
	}

	sqlStmts, err := ctx.SQLGenerator.CompileIRToSQL(ir, false)
	if err != nil {
		return nil, vterrors.InternalErrorf("sql generation failed: %s", err)
	}

	outData, outID, err := sertypes.Describe(ir.OutType, ctx.ProtocolVersion, sertypes.WithInlineTypenames(ctx.InlineTypenames))
	if err != nil {
		return nil, vterrors.InternalErrorf("output type descriptor failed: %s", err)
	}

	// Server-injected parameters (implicit limit, access-policy
	// globals) sit past the source's FirstExtra boundary and are not
	// part of the client-visible input shape.
	params := ir.Params
	if ctx.Source != nil {
		if fe := ctx.Source.FirstExtra(); fe != nil && *fe < len(params) {
			params = params[:*fe]
		}
	}

	inData, inID, err := sertypes.DescribeParams(params, ctx.ProtocolVersion)
	if err != nil {
		return nil, vterrors.InternalErrorf("input type descriptor failed: %s", err)
	}

	unit := queryunit.New()
	unit.SQL = sqlStmts
	unit.Cardinality = ir.Cardinality
	unit.Capabilities = ir.Capabilities
	unit.OutTypeID = outID
	unit.OutTypeData = outData
	unit.InTypeID = inID
	unit.InTypeData = inData
	unit.InTypeArgs = paramArgs(params)

	// A unit is only cacheable as a prepared statement when it carries
	// no side effects on session/config state.
	if ir.Capabilities&(enums.CapSessionConfig|enums.CapDDL|enums.CapTransaction|enums.CapPersistentConfig) == 0 {
		unit.Cacheable = true
		unit.SQLHash = sqlHash(sqlStmts, ctx.OutputFormat, inID, outID)
	}

	return &Result{Kind: ResultQuery, Query: &QueryResult{Cardinality: ir.Cardinality}, Unit: unit}, nil
}

// paramArgs projects the descriptor-relevant facts of each parameter
// into the unit's argument list. An array parameter additionally
// carries its element type id so the binary protocol can encode the
// array body without re-parsing the descriptor.
func paramArgs(params []sertypes.Param) []queryunit.Param {
	if len(params) == 0 {
		return nil
	}
	out := make([]queryunit.Param, len(params))
	for i, p := range params {
		out[i] = queryunit.Param{Name: p.Name, Required: p.Required}
		if coll, ok := p.Type.(*sertypes.Collection); ok && coll.CollKind == sertypes.KindArray && len(coll.Subtypes) == 1 {
			if el, ok := coll.Subtypes[0].(*sertypes.Scalar); ok {
				id := el.ID
				out[i].ArrayElementTypeID = &id
			}
		}
	}
	return out
}

// sqlHash is the prepared-statement cache key: it must depend on
// everything that changes the compiled unit's shape, not just the
// source text, so the output format and both type-descriptor ids are
// folded in alongside the statements.
func sqlHash(stmts [][]byte, format enums.OutputFormat, inID, outID uuid.UUID) []byte {
	h := sha1.New()
	for _, s := range stmts {
		h.Write(s)
	}
	h.Write([]byte{byte(format)})
	h.Write(inID[:])
	h.Write(outID[:])
	return h.Sum(nil)
}
