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

// Package dump declares the dump/restore contract: the data shapes a
// database dump or restore walk produces and consumes, and the rule
// deriving compatibility flags from a dump's declared format version.
// The dump and restore walks themselves are owned by the schema engine
// and backend compiler; this package is the Go-side contract the
// core's DDL/migration paths hand objects through, mirroring how
// internal/frontend declares the Parser/IRCompiler/SchemaAdapter
// contracts without implementing them.
package dump

import (
	"github.com/google/uuid"

	"github.com/dbplatform/hlqlcompiler/internal/queryunit"
	"github.com/dbplatform/hlqlcompiler/internal/schema"
)

// Version identifies the on-disk dump format a restore stream claims
// to be. Compatibility flags are derived from this value, never
// hand-set by a caller.
type Version struct {
	Major int
	Minor int
}

// Before reports whether v predates other.
func (v Version) Before(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

// CompatFlags are the compatibility switches a dump/restore walk
// derives from the declared Version.
type CompatFlags struct {
	// DumpWithExtraneousComputables is true for dumps produced before
	// computed pointers were excluded from the copy stream; a restore
	// reading such a dump must skip the extra columns it carries.
	DumpWithExtraneousComputables bool
	// DumpWithPtrItemID is true for dumps that still embed a pointer's
	// item id inline rather than resolving it through the id map.
	DumpWithPtrItemID bool
}

// dumpWithExtraneousComputablesBefore and dumpWithPtrItemIDBefore are
// the format versions at which each compatibility behavior was retired
// from new dumps; a dump declaring an older version still carries it.
var (
	dumpWithExtraneousComputablesBefore = Version{Major: 2, Minor: 0}
	dumpWithPtrItemIDBefore             = Version{Major: 1, Minor: 2}
)

// DeriveCompatFlags computes the compatibility switches for a dump's
// declared version. Columns known to have been elided in newer dumps
// are recorded (via the returned flags) so the copy stream reader can
// skip them.
func DeriveCompatFlags(v Version) CompatFlags {
	return CompatFlags{
		DumpWithExtraneousComputables: v.Before(dumpWithExtraneousComputablesBefore),
		DumpWithPtrItemID:             v.Before(dumpWithPtrItemIDBefore),
	}
}

// ObjectIDEntry is one (name, kind, id) triple in a dump's id table.
type ObjectIDEntry struct {
	Name  string
	Kind  schema.ObjectKind
	ID    uuid.UUID
	IDRaw [16]byte
}

// BlockDescriptor carries enough to stream one object's data out of
// the backend and describe its shape on the wire.
type BlockDescriptor struct {
	ObjectID      uuid.UUID
	ObjectClass   schema.ObjectKind
	Deps          []uuid.UUID
	TypeDescID    uuid.UUID
	TypeDescBytes []byte
	CopyStmtBytes []byte
}

// RestoreBlockDescriptor is the restore-side counterpart: the backend
// statement that accepts the corresponding BlockDescriptor's copy
// stream, plus the compatibility-derived column skip list.
type RestoreBlockDescriptor struct {
	ObjectID      uuid.UUID
	CopyStmtBytes []byte
	SkipColumns   []string
}

// Source is the external dump/restore collaborator's contract. Its
// implementation lives in the schema engine and backend compiler, not
// in this core; the core depends on it only through this interface,
// the same way frontend.go declares Parser/IRCompiler/SchemaAdapter.
type Source interface {
	// DescribeDatabaseDump returns the schema's DDL text, the dump's
	// object-id table, and one BlockDescriptor per dumped object.
	DescribeDatabaseDump(snapshotID uuid.UUID) (schemaDDL string, ids []ObjectIDEntry, blocks []BlockDescriptor, err error)

	// DescribeDatabaseRestore adapts a dump's schema DDL and blocks
	// into backend-executable units, a RestoreBlockDescriptor per
	// block, and the ordered list of backend table names the copy
	// stream must target.
	DescribeDatabaseRestore(snapshotID uuid.UUID, dumpVersion Version, schemaDDL string, ids []ObjectIDEntry, blocks []BlockDescriptor) (units []*queryunit.QueryUnit, restoreBlocks []RestoreBlockDescriptor, tableNames []string, err error)
}
