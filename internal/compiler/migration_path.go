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
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dbplatform/hlqlcompiler/internal/ast"
	"github.com/dbplatform/hlqlcompiler/internal/dbstate"
	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/queryunit"
	"github.com/dbplatform/hlqlcompiler/internal/schema"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// compileMigration drives the START/POPULATE/DESCRIBE/ALTER/COMMIT/
// ABORT migration block attached to the current transaction, plus the
// direct CREATE MIGRATION and DROP MIGRATION forms that bypass the
// interactive loop.
//
// A block opened in the implicit transaction opens a real backend
// transaction around itself; a block opened inside an explicit
// transaction brackets itself with an auto-declared savepoint instead.
// COMMIT/ABORT close the bracket the same way it was opened.
func compileMigration(ctx *Context, cmd *ast.MigrationCommand) (*Result, error) {
	tx := ctx.ConnState.CurrentTx()

	switch cmd.Action {
	case ast.MigrationStart, ast.MigrationStartRewrite:
		if tx.Migration() != nil {
			return nil, vterrors.QueryErrorAt(errCtx(cmd), "already in a migration block")
		}
		cur := tx.Current().UserSchema
		var target schema.Snapshot
		var err error
		if cmd.Action == ast.MigrationStartRewrite {
			target = cur
		} else {
			target, err = ctx.SchemaAdapter.ApplySDL(cur, cmd.TargetSDL)
			if err != nil {
				return nil, vterrors.SchemaSyntaxErrorf(errCtx(cmd), err, "invalid migration target SDL")
			}
		}

		unit := queryunit.New()
		unit.Capabilities = enums.CapDDL

		mig := dbstate.NewMigrationState(cur, target)
		mig.ParentMigration = headMigration(cur)
		if tx.IsImplicit() {
			started, err := ctx.ConnState.StartTx()
			if err != nil {
				return nil, err
			}
			unit.SQL = [][]byte{[]byte("START TRANSACTION")}
			id := started.ID()
			unit.TxID = &id
		} else {
			mig.InitialSavepoint = freshSavepointName()
			ctx.ConnState.DeclareSavepoint(mig.InitialSavepoint)
			unit.SQL = [][]byte{[]byte("SAVEPOINT " + mig.InitialSavepoint)}
		}
		tx = ctx.ConnState.CurrentTx()
		ctx.ConnState.SetCurrentTx(tx.WithMigration(mig))
		return &Result{Kind: ResultMigrationControl, MigrationControl: &MigrationControlResult{}, Unit: unit, SingleUnit: true}, nil

	case ast.MigrationPopulate:
		// The statement set has no interactive "accept proposed"
		// command — acceptance is implicit: a step left standing
		// unrejected is folded into AcceptedOps the next time POPULATE
		// runs, which then proposes whatever comes after it. A client
		// that wants a different step runs ALTER CURRENT MIGRATION
		// REJECT PROPOSED first, which records Guidance and clears the
		// pending step before the next POPULATE proposes again.
		mig := tx.Migration()
		if mig == nil {
			return nil, vterrors.QueryErrorAt(errCtx(cmd), "not currently in a migration block")
		}
		if mig.Proposed != nil {
			mig = mig.WithAcceptedOp(mig.Proposed.Op)
		}
		progress, remaining, err := migrationRemaining(ctx, mig)
		if err != nil {
			return nil, err
		}
		if remaining.Empty() {
			ctx.ConnState.SetCurrentTx(tx.WithMigration(mig.WithProposed(nil)))
			return migrationUnit(nil, enums.CapDDL), nil
		}
		proposals, err := ctx.SchemaAdapter.StatementsFromDelta(progress, mig.TargetSchema, &schema.Delta{Ops: remaining.Ops[:1]})
		if err != nil {
			return nil, vterrors.InternalErrorf("failed to propose next migration step: %s", err)
		}
		if len(proposals) == 0 {
			return nil, vterrors.InternalErrorf("schema adapter proposed zero statements for a non-empty delta")
		}
		p := proposals[0]
		step := &dbstate.ProposedMigrationStep{
			Op: p.Op, Confidence: p.Confidence, Prompt: p.Prompt, DataSafe: p.DataSafe, RequiredUserInput: p.RequiredUserInput,
		}
		ctx.ConnState.SetCurrentTx(tx.WithMigration(mig.WithProposed(step)))
		return migrationUnit(nil, enums.CapDDL), nil

	case ast.MigrationDescribeDDL:
		mig := tx.Migration()
		if mig == nil {
			return nil, vterrors.QueryErrorAt(errCtx(cmd), "not currently in a migration block")
		}
		rendered, err := ctx.SchemaAdapter.DDLFromDelta(mig.StartSchema, mig.TargetSchema, &schema.Delta{Ops: mig.AcceptedOps})
		if err != nil {
			return nil, vterrors.InternalErrorf("failed to render migration ddl: %s", err)
		}
		return migrationUnit(&rendered, 0), nil

	case ast.MigrationDescribeJSON:
		mig := tx.Migration()
		if mig == nil {
			return nil, vterrors.QueryErrorAt(errCtx(cmd), "not currently in a migration block")
		}
		_, remaining, err := migrationRemaining(ctx, mig)
		if err != nil {
			return nil, err
		}
		rendered, err := describeMigrationJSON(ctx, mig, remaining)
		if err != nil {
			return nil, err
		}
		return migrationUnit(&rendered, 0), nil

	case ast.MigrationAlterRejectProposed:
		mig := tx.Migration()
		if mig == nil {
			return nil, vterrors.QueryErrorAt(errCtx(cmd), "not currently in a migration block")
		}
		if mig.Proposed == nil {
			return nil, vterrors.QueryErrorAt(errCtx(cmd), "no proposed statement to reject")
		}
		ctx.ConnState.SetCurrentTx(tx.WithMigration(mig.WithRejection()))
		return migrationUnit(nil, enums.CapDDL), nil

	case ast.MigrationCommit:
		mig := tx.Migration()
		if mig == nil {
			return nil, vterrors.QueryErrorAt(errCtx(cmd), "not currently in a migration block")
		}
		_, remaining, err := migrationRemaining(ctx, mig)
		if err != nil {
			return nil, err
		}
		if !mig.Complete(remaining) {
			return nil, vterrors.QueryErrorHint("run POPULATE MIGRATION and accept every proposed step first",
				"cannot commit incomplete migration")
		}

		// The committed delta is the accepted body plus a migration
		// record chained to the block's parent, applied against the
		// block's initial schema so a COMMIT failure leaves the
		// transaction on the pre-migration snapshot.
		accepted := append(append([]schema.DeltaOp{}, mig.AcceptedOps...), migrationRecordOp(mig))
		delta := &schema.Delta{Ops: accepted}
		newSchema, err := ctx.SchemaAdapter.ApplyDelta(mig.StartSchema, delta)
		if err != nil {
			return nil, vterrors.SchemaErrorf(errCtx(cmd), err, "failed to commit migration delta")
		}
		writes, err := ctx.SchemaAdapter.WriteReflection(delta, newSchema)
		if err != nil {
			return nil, vterrors.InternalErrorf("reflection write failed: %s", err)
		}

		tx = tx.UpdateUserSchema(newSchema).WithMigration(nil)
		sqls, newCache := reflectionBlock(tx.Current().CachedReflection, writes)
		tx = tx.UpdateCachedReflection(newCache)
		ctx.ConnState.SetCurrentTx(tx)
		ctx.ClientCache.Invalidate()

		unit := queryunit.New()
		unit.Capabilities = enums.CapDDL
		unit.SQL = sqls
		if cache, updated := tx.CachedReflectionIfUpdated(); updated {
			unit.CachedReflection = cache.Serialize()
		}
		if mig.InitialSavepoint == "" {
			committed, err := ctx.ConnState.CommitTx()
			if err != nil {
				return nil, err
			}
			unit.SQL = append(unit.SQL, []byte("COMMIT"))
			unit.TxCommit = true
			id := committed.ID()
			unit.TxID = &id
		} else {
			name := freshSavepointName()
			ctx.ConnState.DeclareSavepoint(name)
			unit.SQL = append(unit.SQL, []byte("SAVEPOINT "+name))
		}
		return &Result{Kind: ResultMigrationControl, MigrationControl: &MigrationControlResult{BlockClosed: true}, Unit: unit, SingleUnit: true}, nil

	case ast.MigrationAbort:
		mig := tx.Migration()
		if mig == nil {
			return nil, vterrors.QueryErrorAt(errCtx(cmd), "not currently in a migration block")
		}
		unit := queryunit.New()
		unit.Capabilities = enums.CapDDL
		if mig.InitialSavepoint == "" {
			if _, err := ctx.ConnState.RollbackTx(); err != nil {
				return nil, err
			}
			unit.SQL = [][]byte{[]byte("ROLLBACK")}
			unit.TxRollback = true
		} else {
			if _, err := ctx.ConnState.RollbackToSavepoint(mig.InitialSavepoint); err != nil {
				return nil, err
			}
			unit.SQL = [][]byte{[]byte("ROLLBACK TO SAVEPOINT " + mig.InitialSavepoint)}
			unit.TxSavepointRollback = true
			ctx.ConnState.SetCurrentTx(ctx.ConnState.CurrentTx().WithMigration(nil))
		}
		return &Result{Kind: ResultMigrationControl, MigrationControl: &MigrationControlResult{BlockClosed: true}, Unit: unit, SingleUnit: true}, nil

	case ast.MigrationCreateDirect:
		cur := tx.Current().UserSchema
		target, err := ctx.SchemaAdapter.ApplySDL(cur, cmd.TargetSDL)
		if err != nil {
			return nil, vterrors.SchemaSyntaxErrorf(errCtx(cmd), err, "invalid migration body")
		}
		delta, err := ctx.SchemaAdapter.Diff(cur, target, nil)
		if err != nil {
			return nil, vterrors.InternalErrorf("failed to diff direct migration: %s", err)
		}
		mig := dbstate.NewMigrationState(cur, target)
		mig.ParentMigration = headMigration(cur)
		mig.AcceptedOps = delta.Ops
		full := &schema.Delta{Ops: append(append([]schema.DeltaOp{}, delta.Ops...), migrationRecordOp(mig))}
		newSchema, err := ctx.SchemaAdapter.ApplyDelta(cur, full)
		if err != nil {
			return nil, vterrors.SchemaErrorf(errCtx(cmd), err, "failed to apply direct migration")
		}
		writes, err := ctx.SchemaAdapter.WriteReflection(full, newSchema)
		if err != nil {
			return nil, vterrors.InternalErrorf("reflection write failed: %s", err)
		}
		tx = tx.UpdateUserSchema(newSchema)
		sqls, newCache := reflectionBlock(tx.Current().CachedReflection, writes)
		tx = tx.UpdateCachedReflection(newCache)
		ctx.ConnState.SetCurrentTx(tx)
		ctx.ClientCache.Invalidate()

		unit := queryunit.New()
		unit.Capabilities = enums.CapDDL
		unit.SQL = sqls
		if len(unit.SQL) == 0 {
			unit.SQL = [][]byte{[]byte("-- empty migration committed")}
		}
		if cache, updated := tx.CachedReflectionIfUpdated(); updated {
			unit.CachedReflection = cache.Serialize()
		}
		return &Result{Kind: ResultMigrationControl, MigrationControl: &MigrationControlResult{BlockClosed: true}, Unit: unit, SingleUnit: true}, nil

	case ast.MigrationDrop:
		cur := tx.Current().UserSchema
		delta := &schema.Delta{Ops: []schema.DeltaOp{
			{Action: schema.ActionDrop, Kind: schema.KindMigration, ModuleName: "schema", Name: cmd.MigrationID},
		}}
		newSchema, err := ctx.SchemaAdapter.ApplyDelta(cur, delta)
		if err != nil {
			return nil, vterrors.SchemaErrorf(errCtx(cmd), err, "failed to drop migration %q", cmd.MigrationID)
		}
		ctx.ConnState.SetCurrentTx(tx.UpdateUserSchema(newSchema))
		unit := queryunit.New()
		unit.Capabilities = enums.CapDDL
		unit.SQL = [][]byte{[]byte("-- migration record dropped")}
		return &Result{Kind: ResultMigrationControl, MigrationControl: &MigrationControlResult{BlockClosed: true}, Unit: unit, SingleUnit: true}, nil

	default:
		return nil, vterrors.InternalErrorf("unknown migration action %d", cmd.Action)
	}
}

func errCtx(cmd *ast.MigrationCommand) vterrors.Context {
	return vterrors.Context{Line: cmd.Ctx.Line, Text: cmd.Ctx.Text}
}

func freshSavepointName() string {
	return "_migration_" + strings.ReplaceAll(uuid.New().String(), "-", "_")
}

// headMigration returns the name of the schema's newest migration
// record — the one no other record names as its parent — or "" when
// the schema has none. Migration records form a chain through
// Object.ParentMigration, so the head is found by walking that
// relation, not by comparing record names (which are content hashes
// and carry no order).
func headMigration(snap schema.Snapshot) string {
	migrations := snap.EnumerateByKind(schema.KindMigration)
	if len(migrations) == 0 {
		return ""
	}
	isParent := make(map[uuid.UUID]bool, len(migrations))
	for _, m := range migrations {
		if m.ParentMigration != (uuid.UUID{}) {
			isParent[m.ParentMigration] = true
		}
	}
	var heads []schema.Object
	for _, m := range migrations {
		if !isParent[m.ID] {
			heads = append(heads, m)
		}
	}
	if len(heads) == 0 {
		return ""
	}
	if len(heads) == 1 {
		return heads[0].Name
	}
	// A forked or partially-restored history has several chain tips;
	// pick the deepest one, with the name as a deterministic tiebreak.
	byID := make(map[uuid.UUID]schema.Object, len(migrations))
	for _, m := range migrations {
		byID[m.ID] = m
	}
	depth := func(m schema.Object) int {
		d := 0
		for m.ParentMigration != (uuid.UUID{}) {
			parent, ok := byID[m.ParentMigration]
			if !ok {
				break
			}
			d++
			m = parent
		}
		return d
	}
	sort.Slice(heads, func(i, j int) bool {
		di, dj := depth(heads[i]), depth(heads[j])
		if di != dj {
			return di > dj
		}
		return heads[i].Name < heads[j].Name
	})
	return heads[0].Name
}

// migrationRecordOp synthesizes the migration-history record committed
// alongside the accepted body: its name is derived from the body's
// content so re-running the same migration produces the same record.
func migrationRecordOp(mig *dbstate.MigrationState) schema.DeltaOp {
	h := sha1.New()
	h.Write([]byte(mig.ParentMigration))
	for _, op := range mig.AcceptedOps {
		fmt.Fprintf(h, "%d/%d/%s/%s;", op.Action, op.Kind, op.QualifiedName(), op.RenameTo)
	}
	name := "m1" + hex.EncodeToString(h.Sum(nil))
	fields := map[string]string{}
	if mig.ParentMigration != "" {
		fields["parent"] = mig.ParentMigration
	}
	return schema.DeltaOp{
		Action: schema.ActionCreate, Kind: schema.KindMigration,
		ModuleName: "schema", Name: name, Fields: fields,
	}
}

// migrationRemaining applies mig's accepted ops to its start schema to
// compute the in-progress schema, then diffs that against the target
// under the accumulated guidance to find what's left to propose.
func migrationRemaining(ctx *Context, mig *dbstate.MigrationState) (progress schema.Snapshot, remaining *schema.Delta, err error) {
	progress, err = ctx.SchemaAdapter.ApplyDelta(mig.StartSchema, &schema.Delta{Ops: mig.AcceptedOps})
	if err != nil {
		return nil, nil, vterrors.InternalErrorf("failed to replay accepted migration ops: %s", err)
	}
	if mig.TargetSchema == nil {
		return progress, &schema.Delta{}, nil
	}
	remaining, err = ctx.SchemaAdapter.Diff(progress, mig.TargetSchema, mig.Guidance)
	if err != nil {
		return nil, nil, vterrors.InternalErrorf("failed to diff migration progress: %s", err)
	}
	return progress, remaining, nil
}

// migrationUnit wraps a state-only migration statement (or a DESCRIBE
// rendering) into a result. DESCRIBE consumes no capability; the
// state-mutating commands consume DDL.
func migrationUnit(rendered *string, caps enums.Capability) *Result {
	unit := queryunit.New()
	unit.Capabilities = caps
	if rendered != nil {
		unit.SQL = [][]byte{[]byte(*rendered)}
	} else {
		unit.SQL = [][]byte{[]byte("-- migration state update, no backend statement")}
	}
	res := &MigrationControlResult{}
	if rendered != nil {
		res.Rendered = *rendered
	}
	return &Result{Kind: ResultMigrationControl, MigrationControl: res, Unit: unit, SingleUnit: true}
}

type proposedJSON struct {
	Statements        []statementJSON `json:"statements"`
	Confidence        float64         `json:"confidence"`
	Prompt            string          `json:"prompt"`
	OperationID       string          `json:"operation_id"`
	DataSafe          bool            `json:"data_safe"`
	RequiredUserInput [][2]string     `json:"required_user_input,omitempty"`
}

type statementJSON struct {
	Text string `json:"text"`
}

type migrationJSON struct {
	Parent    string        `json:"parent"`
	Complete  bool          `json:"complete"`
	Confirmed []string      `json:"confirmed"`
	Proposed  *proposedJSON `json:"proposed"`
}

// describeMigrationJSON renders the machine-readable migration status:
// the parent record, completeness, the confirmed statement texts, and
// the currently proposed step (null when nothing is pending).
func describeMigrationJSON(ctx *Context, mig *dbstate.MigrationState, remaining *schema.Delta) (string, error) {
	parent := mig.ParentMigration
	if parent == "" {
		parent = "initial"
	}

	confirmed := make([]string, 0, len(mig.AcceptedOps))
	for _, op := range mig.AcceptedOps {
		text, err := ctx.SchemaAdapter.DDLFromDelta(mig.StartSchema, mig.TargetSchema, &schema.Delta{Ops: []schema.DeltaOp{op}})
		if err != nil {
			return "", vterrors.InternalErrorf("failed to render confirmed migration step: %s", err)
		}
		confirmed = append(confirmed, strings.TrimSpace(text))
	}

	payload := migrationJSON{
		Parent:    parent,
		Complete:  mig.Complete(remaining),
		Confirmed: confirmed,
	}
	if p := mig.Proposed; p != nil {
		text, err := ctx.SchemaAdapter.DDLFromDelta(mig.StartSchema, mig.TargetSchema, &schema.Delta{Ops: []schema.DeltaOp{p.Op}})
		if err != nil {
			return "", vterrors.InternalErrorf("failed to render proposed migration step: %s", err)
		}
		payload.Proposed = &proposedJSON{
			Statements:        []statementJSON{{Text: strings.TrimSpace(text)}},
			Confidence:        p.Confidence,
			Prompt:            p.Prompt,
			OperationID:       fmt.Sprintf("%s %s %s", p.Op.Action, p.Op.Kind, p.Op.QualifiedName()),
			DataSafe:          p.DataSafe,
			RequiredUserInput: p.RequiredUserInput,
		}
	}

	blob, err := json.Marshal(payload)
	if err != nil {
		return "", vterrors.InternalErrorf("failed to render migration json: %s", err)
	}
	return string(blob), nil
}
