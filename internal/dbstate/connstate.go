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
	"sync/atomic"
	"time"

	"github.com/dbplatform/hlqlcompiler/internal/schema"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// CompilerConnectionState is the per-connection state machine. At any
// moment it holds exactly one Transaction, either the implicit one
// standing in for "no BEGIN issued yet" or an explicit user
// transaction opened by START TRANSACTION.
//
// Transaction and savepoint ids are drawn from a counter seeded from
// wall-clock nanoseconds at connection-init time, so ids stay
// monotonically increasing within a connection and never repeat across
// the transactions it creates over its lifetime.
type CompilerConnectionState struct {
	txCounter int64
	current   *Transaction

	// savepointsLog records every savepoint declared on this
	// connection, keyed by frame id, across transactions. Each entry
	// keeps the owning transaction as it stood at declaration time —
	// checkpoint stack and implicit flag included — so out-of-band
	// resynchronization by id (SyncTx) can restore it faithfully when
	// a driver replays state onto a different worker.
	savepointsLog map[int64]savepointLogEntry

	// preTx is the connection-level state as it stood immediately
	// before the current explicit transaction opened, nil when the
	// connection is in its implicit transaction. RollbackTx restores
	// it; CommitTx clears it.
	preTx *TransactionState
}

// New returns a CompilerConnectionState with an implicit transaction
// wrapping the given base state.
func New(base TransactionState) *CompilerConnectionState {
	s := &CompilerConnectionState{
		txCounter:     time.Now().UnixNano(),
		savepointsLog: make(map[int64]savepointLogEntry),
	}
	id := s.newTxID()
	s.current = newTransaction(id, true, base)
	return s
}

func (s *CompilerConnectionState) newTxID() int64 {
	return atomic.AddInt64(&s.txCounter, 1)
}

// CurrentTx returns the connection's current transaction, implicit or
// explicit.
func (s *CompilerConnectionState) CurrentTx() *Transaction {
	return s.current
}

// StartTx opens an explicit transaction seeded from the current
// (implicit) state. Nested BEGIN is refused: an implicit transaction
// is promoted to explicit at most once.
func (s *CompilerConnectionState) StartTx() (*Transaction, error) {
	if !s.current.IsImplicit() {
		return nil, vterrors.TransactionErrorf("already in a transaction")
	}
	pre := s.current.Current()
	s.preTx = &pre
	id := s.newTxID()
	s.current = newTransaction(id, false, s.current.Current())
	return s.current, nil
}

// CommitTx folds the explicit transaction's final state back into the
// connection as a new implicit transaction and returns it.
func (s *CompilerConnectionState) CommitTx() (*Transaction, error) {
	if s.current.IsImplicit() {
		return nil, vterrors.TransactionErrorf("commit without a transaction")
	}
	id := s.newTxID()
	s.current = newTransaction(id, true, s.current.Current())
	s.preTx = nil
	return s.current, nil
}

// RollbackTx discards the explicit transaction's state and returns the
// connection to its state as of the last CommitTx (or connection
// init), as a fresh implicit transaction. A ROLLBACK outside a
// transaction block is allowed, matching backend semantics: it reseeds
// the implicit transaction from its own start state.
func (s *CompilerConnectionState) RollbackTx() (*Transaction, error) {
	base := s.current.State0()
	if s.preTx != nil {
		base = *s.preTx
	}
	id := s.newTxID()
	s.current = newTransaction(id, true, base)
	s.preTx = nil
	return s.current, nil
}

// savepointLogEntry is one record of the connection's savepoints log:
// the frame id plus the transaction that owned it when it was
// declared.
type savepointLogEntry struct {
	id int64
	tx *Transaction
}

// DeclareSavepoint pushes a savepoint onto the current transaction and
// records it, along with its owning transaction, in the connection's
// savepoints log.
func (s *CompilerConnectionState) DeclareSavepoint(name string) (*Transaction, int64) {
	id := s.newTxID()
	s.current = s.current.DeclareSavepoint(name, id)
	s.savepointsLog[id] = savepointLogEntry{id: id, tx: s.current}
	return s.current, id
}

// RollbackToSavepoint truncates the current transaction's stack back
// to name and drops every frame declared after the restored one from
// the savepoints log, releasing its memory eagerly.
func (s *CompilerConnectionState) RollbackToSavepoint(name string) (*Transaction, error) {
	next, restoredID, err := s.current.RollbackToSavepoint(name)
	if err != nil {
		return nil, err
	}
	s.current = next
	s.pruneLogAfter(restoredID)
	return s.current, nil
}

// ReleaseSavepoint drops name from the current transaction's stack and
// from the savepoints log.
func (s *CompilerConnectionState) ReleaseSavepoint(name string) (*Transaction, error) {
	next, id, err := s.current.ReleaseSavepoint(name)
	if err != nil {
		return nil, err
	}
	s.current = next
	delete(s.savepointsLog, id)
	return s.current, nil
}

func (s *CompilerConnectionState) pruneLogAfter(id int64) {
	for frameID := range s.savepointsLog {
		if frameID > id {
			delete(s.savepointsLog, frameID)
		}
	}
}

// CanSyncToSavepoint reports, without mutating connection state,
// whether a client-issued ROLLBACK TO SAVEPOINT name would succeed —
// a non-mutating probe for callers that want to check before
// committing to a resync.
func (s *CompilerConnectionState) CanSyncToSavepoint(name string) bool {
	return s.current.CanRollbackToSavepoint(name)
}

// SyncTx jumps straight to a savepoint id recorded in the connection's
// log, restoring that frame as the current state. Drivers use it to
// resynchronize a connection's compiler state across a worker boundary
// after an out-of-band rollback. The current transaction's own id is
// accepted as a no-op.
func (s *CompilerConnectionState) SyncTx(id int64) error {
	if s.current.ID() == id {
		return nil
	}
	if next, err := s.current.RollbackToSavepointID(id); err == nil {
		s.current = next
		s.pruneLogAfter(id)
		return nil
	}
	entry, ok := s.savepointsLog[id]
	if !ok {
		return vterrors.TransactionErrorf("no transaction or savepoint with id %d", id)
	}
	// The savepoint belongs to a transaction that is no longer
	// current: restore that transaction, rolled back to the frame, so
	// its explicit/implicit standing and remaining savepoints survive
	// the resync.
	restored, err := entry.tx.RollbackToSavepointID(id)
	if err != nil {
		return err
	}
	s.current = restored
	s.preTx = nil
	s.pruneLogAfter(id)
	return nil
}

// SetCurrentTx replaces the connection's current transaction outright
// — used by the migration path when it needs to attach/detach a
// MigrationState without going through the savepoint machinery.
func (s *CompilerConnectionState) SetCurrentTx(tx *Transaction) {
	s.current = tx
}

// CurrentUserSchema is a convenience accessor for tests and the CLI
// demo.
func (s *CompilerConnectionState) CurrentUserSchema() schema.Snapshot {
	return s.current.Current().UserSchema
}
