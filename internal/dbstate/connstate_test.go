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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbplatform/hlqlcompiler/internal/schema/memschema"
)

func baseState() TransactionState {
	return TransactionState{
		UserSchema:     memschema.Bootstrap(),
		Modaliases:     NewStringMap().Set("default", "default"),
		SessionConfig:  NewConfigMap(),
		DatabaseConfig: NewConfigMap(),
	}
}

func TestImplicitTxStartCommit(t *testing.T) {
	s := New(baseState())
	require.True(t, s.CurrentTx().IsImplicit())

	tx, err := s.StartTx()
	require.NoError(t, err)
	require.False(t, tx.IsImplicit())

	_, err = s.StartTx()
	require.Error(t, err, "nested BEGIN must be rejected")

	committed, err := s.CommitTx()
	require.NoError(t, err)
	assert.True(t, committed.IsImplicit())
}

func TestRollbackRestoresPreTxState(t *testing.T) {
	s := New(baseState())

	_, err := s.StartTx()
	require.NoError(t, err)
	s.current = s.current.UpdateModaliases(s.current.Current().Modaliases.Set("x", "y"))

	tx, err := s.RollbackTx()
	require.NoError(t, err)
	assert.True(t, tx.IsImplicit())
	_, ok := tx.Current().Modaliases.Get("x")
	assert.False(t, ok)
}

func TestRollbackOutsideTransactionBlockIsAllowed(t *testing.T) {
	s := New(baseState())
	s.current = s.current.UpdateModaliases(s.current.Current().Modaliases.Set("x", "y"))

	tx, err := s.RollbackTx()
	require.NoError(t, err, "ROLLBACK outside a transaction block is a reseed, not an error")
	assert.True(t, tx.IsImplicit())
	_, ok := tx.Current().Modaliases.Get("x")
	assert.False(t, ok, "the implicit transaction reseeds from its start state")
}

func TestSavepointRollbackDiscardsLaterWrites(t *testing.T) {
	s := New(baseState())
	_, err := s.StartTx()
	require.NoError(t, err)

	_, spID := s.DeclareSavepoint("sp1")
	assert.NotZero(t, spID)

	s.current = s.current.UpdateModaliases(s.current.Current().Modaliases.Set("foo", "bar"))
	_, ok := s.current.Current().Modaliases.Get("foo")
	require.True(t, ok)

	_, err = s.RollbackToSavepoint("sp1")
	require.NoError(t, err)
	_, ok = s.current.Current().Modaliases.Get("foo")
	assert.False(t, ok, "rollback to savepoint must discard writes made after it")
}

func TestReleaseUnknownSavepointErrors(t *testing.T) {
	s := New(baseState())
	_, err := s.StartTx()
	require.NoError(t, err)
	_, err = s.ReleaseSavepoint("nope")
	require.Error(t, err)
}

func TestCanSyncToSavepointIsNonMutating(t *testing.T) {
	s := New(baseState())
	_, err := s.StartTx()
	require.NoError(t, err)
	s.DeclareSavepoint("sp1")

	assert.True(t, s.CanSyncToSavepoint("sp1"))
	assert.False(t, s.CanSyncToSavepoint("nope"))

	// Probing must not have mutated the stack.
	assert.True(t, s.CurrentTx().CanRollbackToSavepoint("sp1"))
}

func TestSyncTxRejectsUnknownID(t *testing.T) {
	s := New(baseState())
	err := s.SyncTx(s.CurrentTx().ID() + 100)
	require.Error(t, err)
	require.NoError(t, s.SyncTx(s.CurrentTx().ID()))
}

func TestSyncTxJumpsToLoggedSavepoint(t *testing.T) {
	s := New(baseState())
	_, err := s.StartTx()
	require.NoError(t, err)

	_, spID := s.DeclareSavepoint("sp1")
	s.current = s.current.UpdateModaliases(s.current.Current().Modaliases.Set("foo", "bar"))

	require.NoError(t, s.SyncTx(spID))
	_, ok := s.current.Current().Modaliases.Get("foo")
	assert.False(t, ok, "syncing to a savepoint id must restore the frame declared under it")
}

func TestSyncTxJumpsAcrossTransactions(t *testing.T) {
	s := New(baseState())
	_, err := s.StartTx()
	require.NoError(t, err)
	_, spID := s.DeclareSavepoint("sp1")
	_, err = s.CommitTx()
	require.NoError(t, err)

	require.NoError(t, s.SyncTx(spID))
	assert.False(t, s.CurrentTx().IsImplicit(), "resync restores the owning transaction, explicit standing included")
	assert.True(t, s.CanSyncToSavepoint("sp1"), "the restored transaction keeps its savepoint stack")

	_, err = s.CommitTx()
	require.NoError(t, err, "a resynced explicit transaction still accepts COMMIT")
}

func TestRollbackToSavepointPrunesLaterLogEntries(t *testing.T) {
	s := New(baseState())
	_, err := s.StartTx()
	require.NoError(t, err)

	s.DeclareSavepoint("sp1")
	_, laterID := s.DeclareSavepoint("sp2")

	_, err = s.RollbackToSavepoint("sp1")
	require.NoError(t, err)

	err = s.SyncTx(laterID)
	require.Error(t, err, "frames declared after the restored savepoint must be dropped from the log")
}

func TestReflectionCacheUpdateDetection(t *testing.T) {
	s := New(baseState())
	tx := s.CurrentTx()
	_, updated := tx.CachedReflectionIfUpdated()
	assert.False(t, updated)

	tx = tx.UpdateCachedReflection(tx.Current().CachedReflection.Set("abc123", []string{"kind", "name"}))
	cache, updated := tx.CachedReflectionIfUpdated()
	require.True(t, updated)
	args, ok := cache.Get("abc123")
	require.True(t, ok)
	assert.Equal(t, []string{"kind", "name"}, args)
}
