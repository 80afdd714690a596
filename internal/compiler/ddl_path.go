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
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dbplatform/hlqlcompiler/internal/ast"
	"github.com/dbplatform/hlqlcompiler/internal/dbstate"
	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/frontend"
	"github.com/dbplatform/hlqlcompiler/internal/queryunit"
	"github.com/dbplatform/hlqlcompiler/internal/schema"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// compileDDL handles a single, non-migration schema-mutating
// statement: build its delta, dry-run it on the current schema to
// canonicalize, commit the new schema to the transaction, and emit the
// schema-storage block the backend must persist.
func compileDDL(ctx *Context, cmd *ast.DDLCommand) (*Result, error) {
	tx := ctx.ConnState.CurrentTx()
	cur := tx.Current()

	modaliases := map[string]string{}
	cur.Modaliases.ForEach(func(k, v string) bool { modaliases[k] = v; return true })

	delta, err := ctx.SchemaAdapter.BuildDeltaFromDDL(cmd, cur.UserSchema, modaliases)
	if err != nil {
		return nil, vterrors.QueryErrorAt(vterrors.Context{Line: cmd.Ctx.Line, Text: cmd.Ctx.Text}, "invalid schema definition: %s", err)
	}

	// Inside an open migration block, user-written DDL joins the
	// block's accepted commands instead of executing: the block's
	// COMMIT replays the whole list in one shot.
	if mig := tx.Migration(); mig != nil {
		next := mig
		for _, op := range delta.Ops {
			next = next.WithAcceptedOp(op)
		}
		ctx.ConnState.SetCurrentTx(tx.WithMigration(next))
		unit := queryunit.New()
		unit.Capabilities = enums.CapDDL
		unit.SQL = [][]byte{[]byte("-- ddl accepted into the open migration block")}
		return &Result{Kind: ResultDDL, DDL: &DDLResult{}, Unit: unit}, nil
	}

	// Apply before mutating any connection state: a failure here must
	// leave the transaction's schema untouched.
	newSchema, err := ctx.SchemaAdapter.ApplyDelta(cur.UserSchema, delta)
	if err != nil {
		return nil, vterrors.SchemaErrorf(vterrors.Context{Line: cmd.Ctx.Line, Text: cmd.Ctx.Text}, err, "failed to apply schema delta")
	}

	writes, err := ctx.SchemaAdapter.WriteReflection(delta, newSchema)
	if err != nil {
		return nil, vterrors.InternalErrorf("reflection write failed: %s", err)
	}

	isGlobal := isGlobalDDL(cmd.Action)
	if isGlobal {
		tx = tx.UpdateGlobalSchema(newSchema)
	} else {
		tx = tx.UpdateUserSchema(newSchema)
	}

	sqls, newCache := reflectionBlock(tx.Current().CachedReflection, writes)
	tx = tx.UpdateCachedReflection(newCache)
	ctx.ConnState.SetCurrentTx(tx)
	ctx.ClientCache.Invalidate()

	unit := queryunit.New()
	unit.Capabilities = enums.CapDDL
	unit.IsTransactional = !isGlobal
	unit.SQL = sqls
	if len(unit.SQL) == 0 {
		unit.SQL = [][]byte{[]byte("-- ddl with no reflection writes")}
	}
	if cache, updated := tx.CachedReflectionIfUpdated(); updated {
		unit.CachedReflection = cache.Serialize()
	}
	if isGlobal {
		stmtID := delta.Ops[0].QualifiedName()
		unit.DDLStmtID = &stmtID
	}
	for _, op := range delta.Ops {
		if op.Kind == schema.KindRole {
			unit.HasRoleDDL = true
		}
	}
	switch cmd.Action {
	case ast.DDLCreateDatabase:
		name := delta.Ops[0].Name
		unit.CreateDB = &name
	case ast.DDLDropDatabase:
		name := delta.Ops[0].Name
		unit.DropDB = &name
	}

	// A database-name or role-DDL side effect must be the fleet-visible
	// last word of its unit, so it closes the unit it lands in.
	singleUnit := unit.DropDB != nil || unit.CreateDB != nil || unit.HasRoleDDL

	return &Result{Kind: ResultDDL, DDL: &DDLResult{IsGlobal: isGlobal}, Unit: unit, SingleUnit: singleUnit}, nil
}

// reflectionBlock renders the schema-storage statements for a set of
// reflection writes. Each write's canonical text is hashed; the first
// time a hash is seen on this connection a helper function is created
// for it and recorded in the reflection cache, and every occurrence
// appends a call to the helper with the write's argument values.
func reflectionBlock(cache dbstate.ReflectionCache, writes []frontend.ReflectionWrite) ([][]byte, dbstate.ReflectionCache) {
	var sqls [][]byte
	for _, w := range writes {
		sum := sha1.Sum([]byte(w.Text))
		digest := hex.EncodeToString(sum[:])
		argNames, ok := cache.Get(digest)
		if !ok {
			argNames = make([]string, len(w.Args))
			for i, a := range w.Args {
				argNames[i] = a.Name
			}
			sqls = append(sqls, reflectionHelperDDL(digest, argNames, w.Text))
			cache = cache.Set(digest, argNames)
		}
		sqls = append(sqls, reflectionHelperCall(digest, argNames, w.Args))
	}
	return sqls, cache
}

func reflectionHelperDDL(digest string, argNames []string, body string) []byte {
	params := make([]string, len(argNames))
	for i, n := range argNames {
		params[i] = fmt.Sprintf("%s text", quoteIdent(n))
	}
	return []byte(fmt.Sprintf(
		"CREATE OR REPLACE FUNCTION edgedbstd.__rh_%s(%s) RETURNS void AS $$%s$$ LANGUAGE sql",
		digest, strings.Join(params, ", "), body,
	))
}

func reflectionHelperCall(digest string, argNames []string, args []frontend.ReflectionArg) []byte {
	byName := make(map[string]string, len(args))
	for _, a := range args {
		byName[a.Name] = a.Value
	}
	vals := make([]string, len(argNames))
	for i, n := range argNames {
		vals[i] = quoteLiteral(byName[n])
	}
	return []byte(fmt.Sprintf("SELECT edgedbstd.__rh_%s(%s)", digest, strings.Join(vals, ", ")))
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func isGlobalDDL(action ast.DDLAction) bool {
	switch action {
	case ast.DDLCreateDatabase, ast.DDLDropDatabase, ast.DDLCreateRole, ast.DDLAlterRole, ast.DDLDropRole:
		return true
	default:
		return false
	}
}
