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

package memschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbplatform/hlqlcompiler/internal/schema"
)

func TestDiffSelfIsEmpty(t *testing.T) {
	s := Bootstrap()
	delta, err := s.Diff(s, nil)
	require.NoError(t, err)
	assert.True(t, delta.Empty())
}

func TestDiffCreateAndApplyRoundTrip(t *testing.T) {
	base := Bootstrap()
	target := base.withObject(schema.Object{
		Kind: schema.KindObjectType, Module: "default", Name: "User",
		Fields: map[string]string{"abstract": "false"},
	})

	delta, err := base.Diff(target, nil)
	require.NoError(t, err)
	require.Len(t, delta.Ops, 1)
	assert.Equal(t, schema.ActionCreate, delta.Ops[0].Action)

	applied, err := base.Apply(delta)
	require.NoError(t, err)

	obj, ok := applied.LookupByQualifiedName("default::User")
	require.True(t, ok)
	assert.Equal(t, "User", obj.Name)

	backDiff, err := applied.Diff(target, nil)
	require.NoError(t, err)
	assert.True(t, backDiff.Empty())

	// base must be untouched: copy-on-write.
	_, stillAbsent := base.LookupByQualifiedName("default::User")
	assert.False(t, stillAbsent)
}

func TestDiffRespectsGuidance(t *testing.T) {
	base := Bootstrap()
	target := base.withObject(schema.Object{
		Kind: schema.KindObjectType, Module: "default", Name: "User",
	})

	guidance := schema.NewGuidance()
	guidance.BannedCreations[schema.GuidanceKey{Kind: schema.KindObjectType, Name: "default::User"}] = struct{}{}

	delta, err := base.Diff(target, guidance)
	require.NoError(t, err)
	assert.True(t, delta.Empty())
}

func TestDropMissingIsError(t *testing.T) {
	base := Bootstrap()
	delta := &schema.Delta{Ops: []schema.DeltaOp{
		{Action: schema.ActionDrop, Kind: schema.KindObjectType, ModuleName: "default", Name: "Ghost"},
	}}
	_, err := base.Apply(delta)
	require.Error(t, err)
}
