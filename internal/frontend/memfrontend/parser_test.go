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

package memfrontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbplatform/hlqlcompiler/internal/ast"
)

func TestParseBlockClassifiesEachStatementKind(t *testing.T) {
	src := `
START TRANSACTION ISOLATION SERIALIZABLE;
SELECT 1 LIMIT 1;
INSERT default::User { name := "a" };
CREATE TYPE default::User;
SET MODULE default;
CONFIGURE SESSION SET allow_bare_ddl := true;
START MIGRATION TO { default::User; };
COMMIT MIGRATION;
COMMIT;
`
	p := Parser{}
	nodes, err := p.ParseBlock(src)
	require.NoError(t, err)
	require.Len(t, nodes, 9)

	assert.Equal(t, ast.KindTxControlCommand, nodes[0].Kind())
	tx := nodes[0].(*ast.TxControlCommand)
	assert.Equal(t, ast.IsolationSerializable, tx.Isolation)

	assert.Equal(t, ast.KindQuery, nodes[1].Kind())
	assert.True(t, nodes[1].(*ast.Query).ExpectedOne)

	assert.Equal(t, ast.KindQuery, nodes[2].Kind())

	assert.Equal(t, ast.KindDDLCommand, nodes[3].Kind())
	assert.Equal(t, ast.DDLCreate, nodes[3].(*ast.DDLCommand).Action)

	assert.Equal(t, ast.KindSessionSetCommand, nodes[4].Kind())

	assert.Equal(t, ast.KindConfigureCommand, nodes[5].Kind())
	cfg := nodes[5].(*ast.ConfigureCommand)
	assert.Equal(t, "allow_bare_ddl", cfg.Setting)
	assert.Equal(t, "true", cfg.ValueText)

	assert.Equal(t, ast.KindMigrationCommand, nodes[6].Kind())
	mig := nodes[6].(*ast.MigrationCommand)
	assert.Equal(t, ast.MigrationStart, mig.Action)
	assert.Equal(t, "default::User;", mig.TargetSDL)

	assert.Equal(t, ast.MigrationCommit, nodes[7].(*ast.MigrationCommand).Action)
	assert.Equal(t, ast.TxCommit, nodes[8].(*ast.TxControlCommand).Action)
}
