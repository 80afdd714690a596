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
	"fmt"

	"github.com/dbplatform/hlqlcompiler/internal/ast"
	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/queryunit"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// compileTxControl handles BEGIN/COMMIT/ROLLBACK and the three
// savepoint statements: each drives CompilerConnectionState directly
// and maps to exactly one backend transaction primitive.
func compileTxControl(ctx *Context, cmd *ast.TxControlCommand) (*Result, error) {
	unit := queryunit.New()
	unit.Capabilities = enums.CapTransaction

	switch cmd.Action {
	case ast.TxStart:
		tx, err := ctx.ConnState.StartTx()
		if err != nil {
			return nil, vterrors.TransactionErrorf("%s", err)
		}
		unit.SQL = [][]byte{isolationSQL(cmd)}
		id := tx.ID()
		unit.TxID = &id
		return &Result{Kind: ResultTxControl, TxControl: &TxControlResult{NewTxID: id}, Unit: unit, SingleUnit: true}, nil

	case ast.TxCommit:
		tx, err := ctx.ConnState.CommitTx()
		if err != nil {
			return nil, vterrors.TransactionErrorf("%s", err)
		}
		unit.SQL = [][]byte{[]byte("COMMIT")}
		unit.TxCommit = true
		id := tx.ID()
		unit.TxID = &id
		return &Result{Kind: ResultTxControl, TxControl: &TxControlResult{NewTxID: id, DidCommit: true}, Unit: unit, SingleUnit: true}, nil

	case ast.TxRollback:
		tx, err := ctx.ConnState.RollbackTx()
		if err != nil {
			return nil, vterrors.TransactionErrorf("%s", err)
		}
		unit.SQL = [][]byte{[]byte("ROLLBACK")}
		unit.TxRollback = true
		id := tx.ID()
		unit.TxID = &id
		return &Result{Kind: ResultTxControl, TxControl: &TxControlResult{NewTxID: id, DidRollback: true}, Unit: unit, SingleUnit: true}, nil

	case ast.TxDeclareSavepoint:
		if cmd.SavepointName == "" {
			return nil, vterrors.QueryErrorAt(vterrors.Context{Line: cmd.Ctx.Line, Text: cmd.Ctx.Text}, "savepoint declaration requires a name")
		}
		if ctx.ConnState.CurrentTx().IsImplicit() {
			return nil, vterrors.TransactionErrorf("savepoints can only be declared in a transaction block")
		}
		_, id := ctx.ConnState.DeclareSavepoint(cmd.SavepointName)
		// The savepoint's frame id is persisted alongside the backend
		// savepoint so a driver can resynchronize by id after a failure.
		if !ctx.Bootstrap {
			unit.SQL = append(unit.SQL, savepointUpsert(cmd.SavepointName, id))
		}
		unit.SQL = append(unit.SQL, []byte(fmt.Sprintf("SAVEPOINT %s", cmd.SavepointName)))
		unit.TxID = &id
		return &Result{Kind: ResultTxControl, TxControl: &TxControlResult{NewTxID: id}, Unit: unit, SingleUnit: true}, nil

	case ast.TxRollbackToSavepoint:
		if !ctx.ConnState.CanSyncToSavepoint(cmd.SavepointName) {
			return nil, vterrors.TransactionErrorf("no such savepoint: %q", cmd.SavepointName)
		}
		tx, err := ctx.ConnState.RollbackToSavepoint(cmd.SavepointName)
		if err != nil {
			return nil, vterrors.TransactionErrorf("%s", err)
		}
		unit.SQL = [][]byte{[]byte(fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", cmd.SavepointName))}
		unit.TxSavepointRollback = true
		id := tx.ID()
		unit.TxID = &id
		return &Result{Kind: ResultTxControl, TxControl: &TxControlResult{NewTxID: id}, Unit: unit, SingleUnit: true}, nil

	case ast.TxReleaseSavepoint:
		tx, err := ctx.ConnState.ReleaseSavepoint(cmd.SavepointName)
		if err != nil {
			return nil, vterrors.TransactionErrorf("%s", err)
		}
		unit.SQL = [][]byte{[]byte(fmt.Sprintf("RELEASE SAVEPOINT %s", cmd.SavepointName))}
		id := tx.ID()
		unit.TxID = &id
		return &Result{Kind: ResultTxControl, TxControl: &TxControlResult{NewTxID: id}, Unit: unit, SingleUnit: true}, nil

	default:
		return nil, vterrors.InternalErrorf("unknown transaction control action %d", cmd.Action)
	}
}

func savepointUpsert(name string, id int64) []byte {
	return []byte(fmt.Sprintf(
		"INSERT INTO %s (name, type, value) VALUES (%s, 'S', '%d') ON CONFLICT (name, type) DO UPDATE SET value = excluded.value",
		sessionStateTable, quoteLiteral(name), id,
	))
}

func isolationSQL(cmd *ast.TxControlCommand) []byte {
	s := "START TRANSACTION"
	switch cmd.Isolation {
	case ast.IsolationSerializable:
		s += " ISOLATION SERIALIZABLE"
	case ast.IsolationRepeatableRead:
		s += " ISOLATION REPEATABLE READ"
	}
	if cmd.ReadOnly {
		s += " READ ONLY"
	}
	if cmd.Deferrable {
		s += " DEFERRABLE"
	}
	return []byte(s)
}
