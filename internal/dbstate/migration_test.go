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

	"github.com/dbplatform/hlqlcompiler/internal/schema"
	"github.com/dbplatform/hlqlcompiler/internal/schema/memschema"
)

func TestMigrationRejectionRecordsGuidance(t *testing.T) {
	base := memschema.Bootstrap()
	m := NewMigrationState(base, nil)

	op := schema.DeltaOp{Action: schema.ActionCreate, Kind: schema.KindObjectType, ModuleName: "default", Name: "User"}
	m = m.WithProposed(&ProposedMigrationStep{Op: op, Confidence: 1.0, Prompt: "create object type default::User?"})

	m = m.WithRejection()
	require.Nil(t, m.Proposed)
	_, banned := m.Guidance.BannedCreations[schema.GuidanceKey{Kind: schema.KindObjectType, Name: "default::User"}]
	assert.True(t, banned)
}

func TestMigrationAcceptedOpClearsProposed(t *testing.T) {
	base := memschema.Bootstrap()
	m := NewMigrationState(base, nil)
	op := schema.DeltaOp{Action: schema.ActionCreate, Kind: schema.KindObjectType, ModuleName: "default", Name: "User"}
	m = m.WithProposed(&ProposedMigrationStep{Op: op})
	m = m.WithAcceptedOp(op)
	assert.Nil(t, m.Proposed)
	require.Len(t, m.AcceptedOps, 1)
}

func TestMigrationCompleteRequiresNoProposalAndEmptyRemainder(t *testing.T) {
	m := NewMigrationState(memschema.Bootstrap(), nil)
	assert.True(t, m.Complete(&schema.Delta{}))

	m = m.WithProposed(&ProposedMigrationStep{})
	assert.False(t, m.Complete(&schema.Delta{}))
}
