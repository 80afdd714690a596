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

package dbstate

import (
	"github.com/dbplatform/hlqlcompiler/internal/schema"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// TransactionState is one immutable snapshot of everything a
// transaction's current statement sees: the schema, the module alias
// map, the three config scopes, and the reflection-helper cache.
type TransactionState struct {
	UserSchema       schema.Snapshot
	GlobalSchema     schema.Snapshot
	Modaliases       StringMap
	SessionConfig    ConfigMap
	DatabaseConfig   ConfigMap
	SystemConfig     ConfigMap
	CachedReflection ReflectionCache
}

// savepoint is one checkpoint on a Transaction's savepoint stack: the
// state as it stood at the moment DECLARE SAVEPOINT name ran. It is
// never mutated after being pushed — ROLLBACK TO SAVEPOINT restores
// tx.current from it, it doesn't chase later writes.
type savepoint struct {
	id    int64
	name  string
	state TransactionState
}

// Transaction pairs a live, forward-moving TransactionState with a
// stack of named checkpoints taken from it. The bottom of the stack
// (index 0) is the transaction's own start-of-tx checkpoint, name "".
// DeclareSavepoint pushes a new checkpoint captured from current,
// RollbackToSavepoint resets current to a named checkpoint's captured
// state and discards any checkpoints pushed after it, and
// ReleaseSavepoint drops a named checkpoint without touching current.
type Transaction struct {
	id          int64
	implicit    bool
	checkpoints []savepoint
	current     TransactionState
	migration   *MigrationState
}

func newTransaction(id int64, implicit bool, base TransactionState) *Transaction {
	return &Transaction{
		id:          id,
		implicit:    implicit,
		checkpoints: []savepoint{{id: id, name: "", state: base}},
		current:     base,
	}
}

// clone returns a shallow copy of tx with its own checkpoint slice, so
// mutating methods never alias the caller's Transaction.
func (tx *Transaction) clone() *Transaction {
	next := &Transaction{id: tx.id, implicit: tx.implicit, migration: tx.migration, current: tx.current}
	next.checkpoints = make([]savepoint, len(tx.checkpoints))
	copy(next.checkpoints, tx.checkpoints)
	return next
}

// ID returns the transaction's id, assigned at StartTx/connection
// init time.
func (tx *Transaction) ID() int64 { return tx.id }

// IsImplicit reports whether this Transaction represents the
// connection's ambient, no-BEGIN-issued state rather than an explicit
// user transaction.
func (tx *Transaction) IsImplicit() bool { return tx.implicit }

// State0 returns the snapshot captured when the transaction was
// created. Rolling the transaction back returns the connection to it.
func (tx *Transaction) State0() TransactionState {
	return tx.checkpoints[0].state
}

// Current returns the transaction's live state.
func (tx *Transaction) Current() TransactionState {
	return tx.current
}

// Migration returns the transaction's in-progress migration state, if
// any.
func (tx *Transaction) Migration() *MigrationState { return tx.migration }

// WithMigration returns a copy of tx with its migration state replaced.
func (tx *Transaction) WithMigration(m *MigrationState) *Transaction {
	next := tx.clone()
	next.migration = m
	return next
}

func (tx *Transaction) withTop(fn func(TransactionState) TransactionState) *Transaction {
	next := tx.clone()
	next.current = fn(next.current)
	return next
}

// UpdateUserSchema returns a copy of tx with the current state's
// UserSchema replaced.
func (tx *Transaction) UpdateUserSchema(s schema.Snapshot) *Transaction {
	return tx.withTop(func(t TransactionState) TransactionState { t.UserSchema = s; return t })
}

// UpdateGlobalSchema returns a copy of tx with the current state's
// GlobalSchema replaced.
func (tx *Transaction) UpdateGlobalSchema(s schema.Snapshot) *Transaction {
	return tx.withTop(func(t TransactionState) TransactionState { t.GlobalSchema = s; return t })
}

// UpdateModaliases returns a copy of tx with the current state's
// Modaliases replaced.
func (tx *Transaction) UpdateModaliases(m StringMap) *Transaction {
	return tx.withTop(func(t TransactionState) TransactionState { t.Modaliases = m; return t })
}

// UpdateSessionConfig returns a copy of tx with the current state's
// SessionConfig replaced.
func (tx *Transaction) UpdateSessionConfig(c ConfigMap) *Transaction {
	return tx.withTop(func(t TransactionState) TransactionState { t.SessionConfig = c; return t })
}

// UpdateDatabaseConfig returns a copy of tx with the current state's
// DatabaseConfig replaced.
func (tx *Transaction) UpdateDatabaseConfig(c ConfigMap) *Transaction {
	return tx.withTop(func(t TransactionState) TransactionState { t.DatabaseConfig = c; return t })
}

// UpdateCachedReflection returns a copy of tx with the current state's
// CachedReflection replaced.
func (tx *Transaction) UpdateCachedReflection(c ReflectionCache) *Transaction {
	return tx.withTop(func(t TransactionState) TransactionState { t.CachedReflection = c; return t })
}

// CachedReflectionIfUpdated returns the live reflection-helper cache
// along with whether it differs from the cache captured when the
// transaction began. Callers persisting post-state into a compiled
// unit use this to skip re-serializing a cache that hasn't grown.
func (tx *Transaction) CachedReflectionIfUpdated() (ReflectionCache, bool) {
	cur := tx.current.CachedReflection
	start := tx.checkpoints[0].state.CachedReflection
	if cur.tree == start.tree {
		return ReflectionCache{}, false
	}
	return cur, true
}

// DeclareSavepoint pushes a new named checkpoint capturing the current
// live state. current itself is unchanged, so later writes land on the
// live state, not the checkpoint.
func (tx *Transaction) DeclareSavepoint(name string, id int64) *Transaction {
	next := tx.clone()
	next.checkpoints = append(next.checkpoints, savepoint{id: id, name: name, state: tx.current})
	return next
}

func (tx *Transaction) indexOfSavepoint(name string) int {
	for i := len(tx.checkpoints) - 1; i >= 0; i-- {
		if tx.checkpoints[i].name == name {
			return i
		}
	}
	return -1
}

func (tx *Transaction) indexOfSavepointID(id int64) int {
	for i := len(tx.checkpoints) - 1; i >= 0; i-- {
		if tx.checkpoints[i].id == id {
			return i
		}
	}
	return -1
}

// CanRollbackToSavepoint reports whether name names an existing
// savepoint, without mutating tx.
func (tx *Transaction) CanRollbackToSavepoint(name string) bool {
	return tx.indexOfSavepoint(name) >= 0
}

// RollbackToSavepoint resets current to the state captured when name
// was declared and discards every checkpoint pushed after it; name's
// own checkpoint stays on the stack so it can be rolled back to again.
// The restored checkpoint's id is returned so the connection can prune
// its savepoints log of every frame declared after it.
func (tx *Transaction) RollbackToSavepoint(name string) (*Transaction, int64, error) {
	idx := tx.indexOfSavepoint(name)
	if idx < 0 {
		return nil, 0, vterrors.TransactionErrorf("no such savepoint: %q", name)
	}
	return tx.rollbackToIndex(idx), tx.checkpoints[idx].id, nil
}

// RollbackToSavepointID is RollbackToSavepoint keyed by frame id
// instead of name, for driver-initiated resynchronization.
func (tx *Transaction) RollbackToSavepointID(id int64) (*Transaction, error) {
	idx := tx.indexOfSavepointID(id)
	if idx < 0 {
		return nil, vterrors.TransactionErrorf("no such savepoint id: %d", id)
	}
	return tx.rollbackToIndex(idx), nil
}

func (tx *Transaction) rollbackToIndex(idx int) *Transaction {
	next := tx.clone()
	next.checkpoints = next.checkpoints[:idx+1]
	next.current = next.checkpoints[idx].state
	return next
}

// ReleaseSavepoint removes the named checkpoint from the stack without
// changing current, returning the released frame's id.
func (tx *Transaction) ReleaseSavepoint(name string) (*Transaction, int64, error) {
	idx := tx.indexOfSavepoint(name)
	if idx < 0 {
		return nil, 0, vterrors.TransactionErrorf("no such savepoint: %q", name)
	}
	if idx == 0 {
		return nil, 0, vterrors.TransactionErrorf("cannot release the transaction's base savepoint")
	}
	id := tx.checkpoints[idx].id
	next := tx.clone()
	next.checkpoints = append(next.checkpoints[:idx], next.checkpoints[idx+1:]...)
	return next, id, nil
}
