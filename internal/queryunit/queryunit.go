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

// Package queryunit holds the QueryUnit record the unit assembler
// accumulates and, at the end of assembly, validates.
package queryunit

import (
	"github.com/google/uuid"

	"github.com/dbplatform/hlqlcompiler/internal/config"
	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/sertypes"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// Param is one element of QueryUnit.InTypeArgs: a named or positional
// parameter's wire-relevant shape.
type Param struct {
	Name               string
	Required           bool
	ArrayElementTypeID *uuid.UUID
}

// QueryUnit accumulates BEQL fragments, capability flags, transaction
// flags, cardinality, in/out type descriptors, and side-effect markers
// for one compiled unit.
type QueryUnit struct {
	SQL    [][]byte
	Status []byte

	// SQLHash is the content hash when the unit is cacheable as a
	// prepared statement, empty otherwise.
	SQLHash []byte

	IsTransactional bool
	Capabilities    enums.Capability

	HasSet     bool
	HasRoleDDL bool

	TxID                *int64
	TxCommit            bool
	TxRollback          bool
	TxSavepointRollback bool

	Cacheable bool

	CreateDB *string
	DropDB   *string

	DDLStmtID *string

	Cardinality enums.Cardinality

	InTypeID    uuid.UUID
	InTypeData  []byte
	OutTypeID   uuid.UUID
	OutTypeData []byte
	InTypeArgs  []Param

	SystemConfig          bool
	DatabaseConfig        bool
	BackendConfig         bool
	ConfigRequiresRestart bool
	ConfigOps             []config.Operation
	Modaliases            map[string]string

	UserSchema       []byte
	GlobalSchema     []byte
	CachedReflection []byte
}

// New returns a QueryUnit seeded with its defaults: out is the
// null-type descriptor, in is the empty-tuple descriptor, cardinality
// is NO_RESULT.
func New() *QueryUnit {
	return &QueryUnit{
		IsTransactional: true,
		Cardinality:     enums.CardinalityNoResult,
		OutTypeID:       sertypes.NullTypeID,
		OutTypeData:     sertypes.NullTypeDesc,
		InTypeID:        sertypes.EmptyTupleID,
		InTypeData:      sertypes.EmptyTupleDesc,
	}
}

// HasDDL reports whether this unit used the DDL capability.
func (u *QueryUnit) HasDDL() bool {
	return u.Capabilities.Has(enums.CapDDL)
}

// Validate checks the unit's structural invariants.
func (u *QueryUnit) Validate() error {
	if u.Cacheable {
		if len(u.ConfigOps) != 0 {
			return vterrors.InternalErrorf("cacheable unit must not carry config ops")
		}
		if u.Modaliases != nil {
			return vterrors.InternalErrorf("cacheable unit must not carry a modalias change")
		}
	}

	if len(u.SQL) == 0 {
		return vterrors.InternalErrorf("query unit has no sql statements")
	}

	if u.Cardinality != enums.CardinalityNoResult {
		if len(u.SQL) != 1 {
			return vterrors.InternalErrorf("singleton-cardinality unit must have exactly one statement")
		}
		if u.TxCommit || u.TxRollback || u.TxSavepointRollback || u.TxID != nil {
			return vterrors.InternalErrorf("singleton-cardinality unit must not carry transaction flags")
		}
		if u.OutTypeID == sertypes.NullTypeID {
			return vterrors.InternalErrorf("singleton-cardinality unit must have a non-null out-type id")
		}
		if u.SystemConfig || u.HasDDL() {
			return vterrors.InternalErrorf("singleton-cardinality unit must not carry system-config or ddl")
		}
		if len(u.SQLHash) == 0 {
			return vterrors.InternalErrorf("singleton-cardinality unit must have a sql_hash")
		}
	}

	return nil
}
