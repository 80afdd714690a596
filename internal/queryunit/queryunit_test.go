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

package queryunit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbplatform/hlqlcompiler/internal/config"
	"github.com/dbplatform/hlqlcompiler/internal/enums"
)

func validSingletonUnit() *QueryUnit {
	u := New()
	u.SQL = [][]byte{[]byte("SELECT 1")}
	u.Cardinality = enums.CardinalityOne
	u.OutTypeID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("out"))
	u.SQLHash = []byte{0x01}
	u.Cacheable = true
	return u
}

func TestNewDefaults(t *testing.T) {
	u := New()
	assert.Equal(t, enums.CardinalityNoResult, u.Cardinality)
	assert.True(t, u.IsTransactional)
	assert.Equal(t, uuid.UUID{}, u.OutTypeID)
	assert.NotEmpty(t, u.InTypeData, "in-type defaults to the empty-tuple descriptor")
}

func TestValidateAcceptsSingletonUnit(t *testing.T) {
	require.NoError(t, validSingletonUnit().Validate())
}

func TestValidateRejectsEmptySQL(t *testing.T) {
	u := New()
	require.Error(t, u.Validate())
}

func TestValidateRejectsCacheableWithConfigOps(t *testing.T) {
	u := validSingletonUnit()
	u.ConfigOps = []config.Operation{{Setting: "x"}}
	require.Error(t, u.Validate())
}

func TestValidateRejectsCacheableWithModaliases(t *testing.T) {
	u := validSingletonUnit()
	u.Modaliases = map[string]string{"": "default"}
	require.Error(t, u.Validate())
}

func TestValidateSingletonInvariants(t *testing.T) {
	for name, mutate := range map[string]func(*QueryUnit){
		"two statements":   func(u *QueryUnit) { u.SQL = append(u.SQL, []byte("SELECT 2")) },
		"tx flag":          func(u *QueryUnit) { u.TxCommit = true },
		"null out type":    func(u *QueryUnit) { u.OutTypeID = uuid.UUID{} },
		"system config":    func(u *QueryUnit) { u.SystemConfig = true },
		"ddl capability":   func(u *QueryUnit) { u.Capabilities |= enums.CapDDL },
		"missing sql hash": func(u *QueryUnit) { u.SQLHash = nil },
	} {
		u := validSingletonUnit()
		mutate(u)
		assert.Error(t, u.Validate(), name)
	}
}
