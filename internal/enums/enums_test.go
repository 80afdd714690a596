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

package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstUnauthorizedPicksLowestBit(t *testing.T) {
	used := CapModifications | CapDDL | CapPersistentConfig
	allowed := CapModifications

	bit, title, ok := FirstUnauthorized(used, allowed)
	require.True(t, ok)
	assert.Equal(t, CapDDL, bit, "the lowest unauthorized bit wins, deterministically")
	assert.Equal(t, "schema modification", title)
}

func TestFirstUnauthorizedFullyCovered(t *testing.T) {
	_, _, ok := FirstUnauthorized(CapTransaction, CapTransaction|CapDDL)
	assert.False(t, ok)
}

func TestCapWriteMembers(t *testing.T) {
	assert.True(t, CapWrite.Has(CapModifications))
	assert.True(t, CapWrite.Has(CapDDL))
	assert.True(t, CapWrite.Has(CapPersistentConfig))
	assert.False(t, CapWrite.Has(CapTransaction))
	assert.False(t, CapWrite.Has(CapSessionConfig))
}

func TestCardinalityWireCodes(t *testing.T) {
	assert.Equal(t, Cardinality(0x6e), CardinalityNoResult)
	assert.Equal(t, Cardinality(0x6f), CardinalityAtMostOne)
	assert.Equal(t, Cardinality(0x41), CardinalityOne)
	assert.Equal(t, Cardinality(0x6d), CardinalityMany)
	assert.Equal(t, Cardinality(0x4d), CardinalityAtLeastOne)

	assert.True(t, CardinalityOne.IsSingleton())
	assert.True(t, CardinalityAtMostOne.IsSingleton())
	assert.False(t, CardinalityMany.IsSingleton())
}
