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

// Package schema defines the contract of the schema object model, an
// external collaborator of this module: the core treats a schema
// as an immutable, value-typed Snapshot and never mutates one in
// place. This package also provides memschema, a small in-memory
// Snapshot implementation used to bootstrap the standard schema, drive
// tests, and stand in for the real schema engine wherever this repo
// needs one.
package schema

import (
	"github.com/google/uuid"
)

// ObjectKind is the closed set of schema object kinds the core needs
// to reason about (module, object type, function, role, etc.).
type ObjectKind int

const (
	KindModule ObjectKind = iota
	KindObjectType
	KindProperty
	KindLink
	KindFunction
	KindRole
	KindDatabase
	KindMigration
	KindScalarType
)

func (k ObjectKind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindObjectType:
		return "object type"
	case KindProperty:
		return "property"
	case KindLink:
		return "link"
	case KindFunction:
		return "function"
	case KindRole:
		return "role"
	case KindDatabase:
		return "database"
	case KindMigration:
		return "migration"
	case KindScalarType:
		return "scalar type"
	default:
		return "unknown"
	}
}

// Object is one named schema object as the core sees it: enough
// structure to diff, describe, and generate DDL/reflection from,
// without depending on the full schema engine's internal object model.
type Object struct {
	ID            uuid.UUID
	Kind          ObjectKind
	Module        string
	Name          string
	Fields        map[string]string
	ParentMigration uuid.UUID // set only for KindMigration objects
}

// QualifiedName is "module::name".
func (o Object) QualifiedName() string {
	return o.Module + "::" + o.Name
}

// Snapshot is an immutable view of the schema at one point in time.
// Every mutation-like operation (Apply) returns a new Snapshot; none
// mutate the receiver.
type Snapshot interface {
	LookupByID(id uuid.UUID) (Object, bool)
	LookupByQualifiedName(qualifiedName string) (Object, bool)
	EnumerateByKind(kind ObjectKind) []Object
	ResolvePointer(owner Object, pointerName string) (Object, bool)
	Diff(target Snapshot, guidance *Guidance) (*Delta, error)
	Apply(delta *Delta) (Snapshot, error)
}

// Action is the closed set of delta operations.
type Action int

const (
	ActionCreate Action = iota
	ActionAlter
	ActionDrop
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "CREATE"
	case ActionAlter:
		return "ALTER"
	case ActionDrop:
		return "DROP"
	default:
		return "UNKNOWN"
	}
}

// DeltaOp is one canonical, adapter-friendly schema-mutation step, the
// glossary's "Delta".
type DeltaOp struct {
	Action     Action
	Kind       ObjectKind
	ModuleName string
	Name       string
	RenameTo   string // only meaningful for Action==ActionAlter
	Fields     map[string]string
}

// QualifiedName is "module::name" for the op's target object.
func (op DeltaOp) QualifiedName() string {
	return op.ModuleName + "::" + op.Name
}

// Delta is an ordered sequence of DeltaOps.
type Delta struct {
	Ops []DeltaOp
}

// Empty reports whether the delta has no operations — the gate COMMIT
// MIGRATION's completeness check relies on.
func (d *Delta) Empty() bool {
	return d == nil || len(d.Ops) == 0
}

// GuidanceKey identifies one (metaclass, classname) pair banned from a
// guided diff.
type GuidanceKey struct {
	Kind ObjectKind
	Name string
}

// Guidance is the triple of banned-operation sets a guided diff
// consults.
type Guidance struct {
	BannedCreations map[GuidanceKey]struct{}
	BannedAlters    map[GuidanceKey]string // value is the banned rename target, "" if none specified
	BannedDeletions map[GuidanceKey]struct{}
}

// NewGuidance returns an empty, ready-to-use Guidance.
func NewGuidance() *Guidance {
	return &Guidance{
		BannedCreations: map[GuidanceKey]struct{}{},
		BannedAlters:    map[GuidanceKey]string{},
		BannedDeletions: map[GuidanceKey]struct{}{},
	}
}
