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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbplatform/hlqlcompiler/internal/config"
	"github.com/dbplatform/hlqlcompiler/internal/dbstate"
	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/frontend"
	"github.com/dbplatform/hlqlcompiler/internal/frontend/memfrontend"
	"github.com/dbplatform/hlqlcompiler/internal/schema"
	"github.com/dbplatform/hlqlcompiler/internal/schema/memschema"
	"github.com/dbplatform/hlqlcompiler/internal/sertypes"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

func newTestContext() *Context {
	conn := dbstate.New(dbstate.TransactionState{
		UserSchema:     memschema.Bootstrap(),
		Modaliases:     dbstate.NewStringMap().Set("", "default"),
		SessionConfig:  dbstate.NewConfigMap(),
		DatabaseConfig: dbstate.NewConfigMap(),
	})
	return NewContext(
		memfrontend.Parser{}, memfrontend.IRCompiler{}, memfrontend.SQLGenerator{}, memfrontend.SchemaAdapter{},
		conn, config.DefaultRegistry, sertypes.ProtocolVersion{Major: 2, Minor: 0},
	)
}

func TestCompileSimpleQuery(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, "SELECT 1;", ModeSingle, enums.CapModifications|enums.CapSessionConfig|enums.CapTransaction|enums.CapDDL|enums.CapPersistentConfig)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, enums.CardinalityOne, units[0].Cardinality)
	assert.True(t, units[0].Cacheable)
	assert.NotEmpty(t, units[0].SQLHash)
}

func TestCompileQueryInScriptModeHasNoResultCardinality(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, "START TRANSACTION; SELECT 1; COMMIT;", ModeAll, enums.CapTransaction|enums.CapModifications)
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, enums.CardinalityNoResult, units[1].Cardinality, "a query folded into a script-mode unit carries no individual codec")
	assert.False(t, units[1].Cacheable)
}

func TestCompileInsertCarriesModificationCapability(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, "INSERT default::User;", ModeSingle, enums.CapModifications)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.True(t, units[0].Capabilities.Has(enums.CapModifications))
	assert.Equal(t, enums.CardinalityOne, units[0].Cardinality)
	assert.True(t, units[0].Cacheable)
}

func TestCompileRejectsUnauthorizedCapability(t *testing.T) {
	ctx := newTestContext()
	_, err := Compile(ctx, "INSERT default::User;", ModeAll, enums.CapSessionConfig)
	require.Error(t, err)
}

func TestCompileDDLEvolvesSchema(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, "CREATE TYPE default::User;", ModeAll, enums.CapDDL)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.True(t, units[0].HasDDL())

	_, ok := ctx.ConnState.CurrentUserSchema().LookupByQualifiedName("default::User")
	assert.True(t, ok)
}

func TestCompileTransactionLifecycle(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, "START TRANSACTION; SELECT 1; COMMIT;", ModeAll, enums.CapTransaction|enums.CapModifications)
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.True(t, ctx.ConnState.CurrentTx().IsImplicit())
}

func TestCompileSavepointRollback(t *testing.T) {
	ctx := newTestContext()
	_, err := Compile(ctx, "START TRANSACTION; DECLARE SAVEPOINT sp1; CREATE TYPE default::Ghost; ROLLBACK TO SAVEPOINT sp1;", ModeAll, enums.CapTransaction|enums.CapDDL)
	require.NoError(t, err)

	_, ok := ctx.ConnState.CurrentTx().Current().UserSchema.LookupByQualifiedName("default::Ghost")
	assert.False(t, ok, "savepoint rollback must discard the schema change made after it")
}

func TestCompileSessionSetAndReset(t *testing.T) {
	ctx := newTestContext()
	_, err := Compile(ctx, "SET ALIAS x AS MODULE default; RESET ALIAS x;", ModeAll, enums.CapSessionConfig)
	require.NoError(t, err)
	_, ok := ctx.ConnState.CurrentTx().Current().Modaliases.Get("x")
	assert.False(t, ok)
}

func TestCompileConfigureSession(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, "CONFIGURE SESSION SET allow_bare_ddl := true;", ModeAll, enums.CapSessionConfig)
	require.NoError(t, err)
	require.Len(t, units, 1)
	v, ok := ctx.ConnState.CurrentTx().Current().SessionConfig.Get("allow_bare_ddl")
	require.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestCompileConfigureRejectsSystemSettingAtSessionScope(t *testing.T) {
	ctx := newTestContext()
	_, err := Compile(ctx, "CONFIGURE SESSION SET shared_buffers := 1;", ModeAll, enums.CapSessionConfig)
	require.Error(t, err)
}

func TestCompileConfigureSystemRejectedInsideExplicitTransaction(t *testing.T) {
	ctx := newTestContext()
	_, err := Compile(ctx, "START TRANSACTION; CONFIGURE SYSTEM SET query_cache_mode := 'on';", ModeAll,
		enums.CapTransaction|enums.CapSessionConfig|enums.CapPersistentConfig)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction block")
}

func TestCompileConfigureSystemAllowedInImplicitTransaction(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, "CONFIGURE SYSTEM SET query_cache_mode := 'on';", ModeAll,
		enums.CapSessionConfig|enums.CapPersistentConfig)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.True(t, units[0].SystemConfig)
}

func TestCompileMigrationFullCycle(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, `
START MIGRATION TO { default::User; };
POPULATE MIGRATION;
POPULATE MIGRATION;
DESCRIBE CURRENT MIGRATION AS DDL;
COMMIT MIGRATION;
`, ModeAll, enums.CapDDL)
	require.NoError(t, err)
	require.Len(t, units, 5)

	_, ok := ctx.ConnState.CurrentTx().Current().UserSchema.LookupByQualifiedName("default::User")
	assert.True(t, ok)
	assert.Nil(t, ctx.ConnState.CurrentTx().Migration())
}

func TestCompileMigrationCommitBeforePopulateIsRejected(t *testing.T) {
	ctx := newTestContext()
	_, err := Compile(ctx, "START MIGRATION TO { default::User; }; COMMIT MIGRATION;", ModeAll, enums.CapDDL)
	require.Error(t, err)
}

func TestCompileMigrationRecordsChainToParent(t *testing.T) {
	ctx := newTestContext()
	_, err := Compile(ctx, "CREATE MIGRATION { default::First; };", ModeAll, enums.CapDDL)
	require.NoError(t, err)
	_, err = Compile(ctx, "CREATE MIGRATION { default::Second; };", ModeAll, enums.CapDDL)
	require.NoError(t, err)

	migrations := ctx.ConnState.CurrentUserSchema().EnumerateByKind(schema.KindMigration)
	require.Len(t, migrations, 2)

	var roots, chained int
	byID := map[uuid.UUID]schema.Object{}
	for _, m := range migrations {
		byID[m.ID] = m
	}
	for _, m := range migrations {
		if m.ParentMigration == (uuid.UUID{}) {
			roots++
			continue
		}
		chained++
		parent, ok := byID[m.ParentMigration]
		require.True(t, ok, "a migration's parent pointer must resolve within the schema")
		assert.Equal(t, uuid.UUID{}, parent.ParentMigration, "two records form a two-link chain")
	}
	assert.Equal(t, 1, roots)
	assert.Equal(t, 1, chained)
}

func TestCompileMigrationCreateDirect(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, "CREATE MIGRATION { default::Account; };", ModeAll, enums.CapDDL)
	require.NoError(t, err)
	require.Len(t, units, 1)
	_, ok := ctx.ConnState.CurrentTx().Current().UserSchema.LookupByQualifiedName("default::Account")
	assert.True(t, ok)
}

func TestCompileMigrationBracketsImplicitTransaction(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, `
START MIGRATION TO { default::User; };
POPULATE MIGRATION;
POPULATE MIGRATION;
COMMIT MIGRATION;
`, ModeAll, enums.CapDDL)
	require.NoError(t, err)
	require.Len(t, units, 4)

	require.NotEmpty(t, units[0].SQL)
	assert.Equal(t, "START TRANSACTION", string(units[0].SQL[0]), "a migration opened outside a transaction must open one")
	assert.NotNil(t, units[0].TxID)

	last := units[len(units)-1]
	assert.True(t, last.TxCommit, "committing the migration must commit the transaction it opened")
	assert.Equal(t, "COMMIT", string(last.SQL[len(last.SQL)-1]))
	assert.True(t, ctx.ConnState.CurrentTx().IsImplicit())
}

func TestCompileMigrationBracketsExplicitTransactionWithSavepoint(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, `
START TRANSACTION;
START MIGRATION TO { default::User; };
POPULATE MIGRATION;
POPULATE MIGRATION;
COMMIT MIGRATION;
`, ModeAll, enums.CapTransaction|enums.CapDDL)
	require.NoError(t, err)
	require.Len(t, units, 5)

	assert.Contains(t, string(units[1].SQL[0]), "SAVEPOINT", "a migration inside a transaction brackets itself with a savepoint")
	last := units[len(units)-1]
	assert.False(t, last.TxCommit, "the user's transaction stays open")
	assert.False(t, ctx.ConnState.CurrentTx().IsImplicit())
}

func TestCompileMigrationAbortRollsBack(t *testing.T) {
	ctx := newTestContext()
	_, err := Compile(ctx, "START MIGRATION TO { default::Ghost; }; POPULATE MIGRATION; ABORT MIGRATION;", ModeAll, enums.CapDDL)
	require.NoError(t, err)

	assert.True(t, ctx.ConnState.CurrentTx().IsImplicit())
	assert.Nil(t, ctx.ConnState.CurrentTx().Migration())
	_, ok := ctx.ConnState.CurrentUserSchema().LookupByQualifiedName("default::Ghost")
	assert.False(t, ok, "aborting the migration must discard its schema changes")
}

func TestCompileMigrationDescribeConsumesNoCapability(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, `
START MIGRATION TO { default::User; };
DESCRIBE CURRENT MIGRATION AS JSON;
ABORT MIGRATION;
`, ModeAll, enums.CapDDL)
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, enums.Capability(0), units[1].Capabilities)
}

func TestCompileDDLInsideMigrationJoinsBlock(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, `
START MIGRATION TO { default::User; };
CREATE TYPE default::User;
COMMIT MIGRATION;
`, ModeAll, enums.CapDDL)
	require.NoError(t, err)
	require.Len(t, units, 3)

	_, ok := ctx.ConnState.CurrentUserSchema().LookupByQualifiedName("default::User")
	assert.True(t, ok, "hand-written DDL satisfies the migration target")
}

func TestCompileMigrationCommandOutsideBlockIsRejected(t *testing.T) {
	ctx := newTestContext()
	_, err := Compile(ctx, "POPULATE MIGRATION;", ModeAll, enums.CapDDL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not currently in a migration block")
}

func TestCompileSavepointOutsideTransactionIsRejected(t *testing.T) {
	ctx := newTestContext()
	_, err := Compile(ctx, "DECLARE SAVEPOINT sp1;", ModeAll, enums.CapTransaction)
	require.Error(t, err)
}

func TestCompileSetModuleValidatesAgainstSchema(t *testing.T) {
	ctx := newTestContext()
	_, err := Compile(ctx, "SET MODULE nonexistent;", ModeAll, enums.CapSessionConfig)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestCompileDDLReusesReflectionHelper(t *testing.T) {
	ctx := newTestContext()
	units1, err := Compile(ctx, "CREATE TYPE default::A;", ModeAll, enums.CapDDL)
	require.NoError(t, err)
	units2, err := Compile(ctx, "CREATE TYPE default::B;", ModeAll, enums.CapDDL)
	require.NoError(t, err)

	// The first DDL creates the helper function and calls it; the
	// second sees it in the reflection cache and only calls.
	require.Len(t, units1[0].SQL, 2)
	require.Len(t, units2[0].SQL, 1)
	assert.Contains(t, string(units1[0].SQL[0]), "CREATE OR REPLACE FUNCTION")
	assert.Contains(t, string(units2[0].SQL[0]), "SELECT edgedbstd.__rh_")
}

func TestCompileSourceRetriesOriginalOnSyntaxError(t *testing.T) {
	ctx := newTestContext()
	src := frontend.NormalizedSource("SET ALIAS x", "SET ALIAS x AS MODULE default", -1)
	_, err := CompileSource(ctx, src, ModeAll, enums.CapSessionConfig)
	require.Error(t, err)
	assert.True(t, vterrors.Is(err, vterrors.CodeInternal), "a normalized form rejected while the original compiles is the compiler's own bug")
	assert.Contains(t, err.Error(), "normalized query is broken while original is valid")
}

func TestCompileSourceSurfacesOriginalErrorWhenBothFail(t *testing.T) {
	ctx := newTestContext()
	src := frontend.NormalizedSource("SET ALIAS x", "SET ALIAS y", -1)
	_, err := CompileSource(ctx, src, ModeAll, enums.CapSessionConfig)
	require.Error(t, err)
	assert.True(t, vterrors.IsSyntaxError(err))
}

func TestCompileModeSingleRejectsMultipleStatements(t *testing.T) {
	ctx := newTestContext()
	_, err := Compile(ctx, "SELECT 1; SELECT 2;", ModeSingle, enums.CapModifications)
	require.Error(t, err)
}

func TestCompileModeSkipFirst(t *testing.T) {
	ctx := newTestContext()
	units, err := Compile(ctx, "SELECT 1; SELECT 2;", ModeSkipFirst, enums.CapModifications)
	require.NoError(t, err)
	require.Len(t, units, 1)
}
