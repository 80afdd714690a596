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
)

// StatementMode is the closed set of multi-statement handling
// policies a client's PARSE/EXECUTE message declares.
type StatementMode int

const (
	// ModeAll compiles every statement in the block into one unit
	// sequence, the mode CREATE MIGRATION/migration scripts use.
	ModeAll StatementMode = iota
	// ModeSingle rejects a block containing anything but exactly one
	// statement.
	ModeSingle
	// ModeSkipFirst compiles every statement after the first, used
	// when the first statement of a script has already been compiled
	// and cached by a prior call.
	ModeSkipFirst
)

// ResultKind tags which compiler path produced a Result.
type ResultKind int

const (
	ResultQuery ResultKind = iota
	ResultDDL
	ResultTxControl
	ResultMigrationControl
	ResultSessionState
)

// Result is the tagged union every compiler path returns: exactly one
// of the pointer fields matching Kind is non-nil.
type Result struct {
	Kind ResultKind

	Query             *QueryResult
	DDL               *DDLResult
	TxControl         *TxControlResult
	MigrationControl  *MigrationControlResult
	SessionState      *SessionStateResult

	// Unit carries this one statement's own effects; the assembler
	// copies a kind-specific subset of its fields into the
	// accumulator unit it is building, it is never appended directly.
	Unit *queryunit.QueryUnit

	// SingleUnit forces the assembler to close the accumulator unit
	// immediately after folding this result in. Transaction and
	// migration control always set it: their effects (tx_id, the
	// commit/rollback flags) are singular per unit, and merging them
	// with a neighboring statement would lose one side's state. Query
	// and DDL default to false and may share a unit with an adjacent
	// compatible statement; DDL forces it back to true for CREATE/DROP
	// DATABASE and role DDL.
	SingleUnit bool
}

// QueryResult carries the compiled query's descriptor-relevant facts
// up from the query path for the unit assembler.
type QueryResult struct {
	Cardinality enums.Cardinality
}

// DDLResult carries whether the compiled DDL statement changed the
// global (role/database) schema rather than the per-database schema.
type DDLResult struct {
	IsGlobal bool
}

// TxControlResult carries the new transaction id the unit assembler
// must record on the unit, and whether this statement implies a
// backend commit/rollback.
type TxControlResult struct {
	NewTxID     int64
	DidCommit   bool
	DidRollback bool
}

// MigrationControlResult carries the migration-block status after the
// statement: whether the block is now closed (commit/abort) and, for
// DESCRIBE CURRENT MIGRATION, the rendered body.
type MigrationControlResult struct {
	BlockClosed bool
	Rendered    string
}

// SessionStateResult signals that the unit changed session-local
// state (modaliases or session config) that must be reflected back to
// the client out of band from SQL execution.
type SessionStateResult struct {
	ModaliasesChanged bool
	ConfigChanged     bool
}
