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
	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/queryunit"
	"github.com/dbplatform/hlqlcompiler/internal/sertypes"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
	"github.com/dbplatform/hlqlcompiler/internal/vtlog"
)

// Compile parses source into statements, applies the declared
// multi-statement mode, dispatches each statement, checks its
// capabilities against what the caller allows, folds its effects into
// the accumulator unit, validates each closed unit, and returns the
// sequence in source order. It never suspends mid-call.
func Compile(ctx *Context, source string, mode StatementMode, allowed enums.Capability) ([]*queryunit.QueryUnit, error) {
	nodes, err := ctx.Parser.ParseBlock(source)
	if err != nil {
		return nil, vterrors.QuerySyntaxErrorf("parse error: %s", err)
	}

	switch mode {
	case ModeSingle:
		if len(nodes) != 1 {
			return nil, vterrors.ProtocolErrorf("expected exactly one statement, got %d", len(nodes))
		}
	case ModeSkipFirst:
		if len(nodes) < 1 {
			return nil, vterrors.ProtocolErrorf("expected at least one statement to skip")
		}
		nodes = nodes[1:]
	case ModeAll:
		// no restriction
	}

	var units []*queryunit.QueryUnit
	var cur *queryunit.QueryUnit

	closeCur := func() error {
		if cur == nil {
			return nil
		}
		if err := cur.Validate(); err != nil {
			vtlog.Errorf("internal invariant violation assembling unit: %s", err)
			return err
		}
		units = append(units, cur)
		cur = nil
		return nil
	}

	for _, node := range nodes {
		res, err := Dispatch(ctx, node)
		if err != nil {
			return nil, err
		}

		if bit, title, unauthorized := enums.FirstUnauthorized(res.Unit.Capabilities, allowed); unauthorized {
			return nil, vterrors.QueryErrorAt(
				vterrors.Context{Line: node.SourceContext().Line, Text: node.SourceContext().Text},
				"%s (capability 0x%x) is not allowed in this context", title, uint64(bit),
			)
		}

		// Parameters bind to exactly one statement; a script has no
		// way to route them.
		if mode != ModeSingle && res.Kind == ResultQuery && res.Unit.InTypeID != sertypes.EmptyTupleID {
			return nil, vterrors.QueryErrorAt(
				vterrors.Context{Line: node.SourceContext().Line, Text: node.SourceContext().Text},
				"cannot use query parameters in scripts",
			)
		}

		if res.SingleUnit && cur != nil {
			if err := closeCur(); err != nil {
				return nil, err
			}
		}
		if cur == nil {
			cur = queryunit.New()
		}

		if !res.Unit.IsTransactional {
			if !res.SingleUnit {
				return nil, vterrors.InternalErrorf("a non-transactional result must demand single_unit")
			}
			cur.IsTransactional = false
		}

		cur.Status = []byte(node.Kind().String())
		cur.Capabilities |= res.Unit.Capabilities
		foldResult(cur, res, mode)

		if res.SingleUnit {
			if err := closeCur(); err != nil {
				return nil, err
			}
		}
	}
	if err := closeCur(); err != nil {
		return nil, err
	}

	if mode == ModeSingle && len(units) != 1 {
		return nil, vterrors.InternalErrorf("single-statement mode produced %d units, expected exactly 1", len(units))
	}

	return units, nil
}

// foldResult copies res's kind-specific effects into cur. Every branch
// appends res.Unit.SQL; everything past that differs by kind, and for
// ResultQuery also by mode — only single-statement mode preserves the
// query's own cardinality/codec/cacheable facts, since those describe
// one statement's result shape and stop being meaningful once more
// than one statement shares a unit.
func foldResult(cur *queryunit.QueryUnit, res *Result, mode StatementMode) {
	cur.SQL = append(cur.SQL, res.Unit.SQL...)

	switch res.Kind {
	case ResultQuery:
		if mode == ModeSingle {
			cur.SQLHash = res.Unit.SQLHash
			cur.Cardinality = res.Unit.Cardinality
			cur.Cacheable = res.Unit.Cacheable
			cur.InTypeID = res.Unit.InTypeID
			cur.InTypeData = res.Unit.InTypeData
			cur.OutTypeID = res.Unit.OutTypeID
			cur.OutTypeData = res.Unit.OutTypeData
			cur.InTypeArgs = res.Unit.InTypeArgs
		}

	case ResultDDL:
		if res.Unit.CreateDB != nil {
			cur.CreateDB = res.Unit.CreateDB
		}
		if res.Unit.DropDB != nil {
			cur.DropDB = res.Unit.DropDB
		}
		cur.HasRoleDDL = cur.HasRoleDDL || res.Unit.HasRoleDDL
		if res.Unit.DDLStmtID != nil {
			cur.DDLStmtID = res.Unit.DDLStmtID
		}
		if res.Unit.CachedReflection != nil {
			cur.CachedReflection = res.Unit.CachedReflection
		}

	case ResultTxControl:
		cur.Cacheable = false
		if res.Unit.Modaliases != nil {
			cur.Modaliases = res.Unit.Modaliases
		}
		if res.Unit.TxID != nil {
			cur.TxID = res.Unit.TxID
		}
		cur.TxCommit = cur.TxCommit || res.Unit.TxCommit
		cur.TxRollback = cur.TxRollback || res.Unit.TxRollback
		cur.TxSavepointRollback = cur.TxSavepointRollback || res.Unit.TxSavepointRollback

	case ResultMigrationControl:
		cur.Cacheable = false
		if res.Unit.Modaliases != nil {
			cur.Modaliases = res.Unit.Modaliases
		}
		if res.Unit.TxID != nil {
			cur.TxID = res.Unit.TxID
		}
		cur.TxCommit = cur.TxCommit || res.Unit.TxCommit
		cur.TxRollback = cur.TxRollback || res.Unit.TxRollback
		cur.TxSavepointRollback = cur.TxSavepointRollback || res.Unit.TxSavepointRollback
		if res.Unit.CachedReflection != nil {
			cur.CachedReflection = res.Unit.CachedReflection
		}

	case ResultSessionState:
		cur.Cacheable = false
		cur.SystemConfig = cur.SystemConfig || res.Unit.SystemConfig
		cur.DatabaseConfig = cur.DatabaseConfig || res.Unit.DatabaseConfig
		cur.BackendConfig = cur.BackendConfig || res.Unit.BackendConfig
		cur.ConfigRequiresRestart = cur.ConfigRequiresRestart || res.Unit.ConfigRequiresRestart
		cur.ConfigOps = append(cur.ConfigOps, res.Unit.ConfigOps...)
		if res.Unit.Modaliases != nil {
			cur.Modaliases = res.Unit.Modaliases
		}
	}
}
