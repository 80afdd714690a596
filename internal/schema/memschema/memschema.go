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

// Package memschema is a small, immutable, value-typed implementation
// of schema.Snapshot. It exists to bootstrap the standard schema, back
// tests, and drive the CLI demo in place of the real schema engine,
// which lives outside this module. Every Snapshot value is copy-on-write:
// Apply never mutates its receiver, it returns a new Snapshot whose
// backing map shares the unmodified entries with the original.
package memschema

import (
	"github.com/google/uuid"

	"github.com/dbplatform/hlqlcompiler/internal/schema"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// Snapshot is an immutable map-backed schema.Snapshot. The zero value
// is not useful; build one with New or Bootstrap.
type Snapshot struct {
	byID   map[uuid.UUID]schema.Object
	byName map[string]uuid.UUID
}

var _ schema.Snapshot = (*Snapshot)(nil)

// New returns an empty Snapshot.
func New() *Snapshot {
	return &Snapshot{byID: map[uuid.UUID]schema.Object{}, byName: map[string]uuid.UUID{}}
}

// idNamespace derives stable object ids from qualified names the same
// way the type-descriptor builder derives type ids, so a schema built
// twice from the same objects compares equal by id.
var idNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

func objectID(kind schema.ObjectKind, qualifiedName string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte(kind.String()+"::"+qualifiedName))
}

// Bootstrap returns the standard schema: the small set of built-in
// modules and scalar types every connection starts with; the process
// bootstrap builds it once and workers share it read-only.
func Bootstrap() *Snapshot {
	s := New()
	for _, name := range []string{"std", "default", "cfg", "sys", "schema"} {
		s = s.withObject(schema.Object{
			ID:     objectID(schema.KindModule, name),
			Kind:   schema.KindModule,
			Module: "",
			Name:   name,
		})
	}
	for _, name := range []string{"std::str", "std::int64", "std::uuid", "std::bool", "std::float64", "std::datetime"} {
		s = s.withObject(schema.Object{
			ID:     objectID(schema.KindScalarType, name),
			Kind:   schema.KindScalarType,
			Module: "std",
			Name:   name[len("std::"):],
		})
	}
	return s
}

func (s *Snapshot) withObject(o schema.Object) *Snapshot {
	next := &Snapshot{
		byID:   make(map[uuid.UUID]schema.Object, len(s.byID)+1),
		byName: make(map[string]uuid.UUID, len(s.byName)+1),
	}
	for k, v := range s.byID {
		next.byID[k] = v
	}
	for k, v := range s.byName {
		next.byName[k] = v
	}
	next.byID[o.ID] = o
	next.byName[o.QualifiedName()] = o.ID
	return next
}

func (s *Snapshot) withoutName(qualifiedName string) *Snapshot {
	id, ok := s.byName[qualifiedName]
	if !ok {
		return s
	}
	next := &Snapshot{
		byID:   make(map[uuid.UUID]schema.Object, len(s.byID)),
		byName: make(map[string]uuid.UUID, len(s.byName)),
	}
	for k, v := range s.byID {
		if k != id {
			next.byID[k] = v
		}
	}
	for k, v := range s.byName {
		if k != qualifiedName {
			next.byName[k] = v
		}
	}
	return next
}

// LookupByID implements schema.Snapshot.
func (s *Snapshot) LookupByID(id uuid.UUID) (schema.Object, bool) {
	o, ok := s.byID[id]
	return o, ok
}

// LookupByQualifiedName implements schema.Snapshot.
func (s *Snapshot) LookupByQualifiedName(qualifiedName string) (schema.Object, bool) {
	id, ok := s.byName[qualifiedName]
	if !ok {
		return schema.Object{}, false
	}
	return s.byID[id], true
}

// EnumerateByKind implements schema.Snapshot. Order is unspecified;
// callers that need determinism should sort the result.
func (s *Snapshot) EnumerateByKind(kind schema.ObjectKind) []schema.Object {
	var out []schema.Object
	for _, o := range s.byID {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}

// ResolvePointer implements schema.Snapshot: pointerName is looked up
// as "module::pointerName" scoped to owner's module, the way an
// unqualified link/property reference resolves against its host type.
func (s *Snapshot) ResolvePointer(owner schema.Object, pointerName string) (schema.Object, bool) {
	return s.LookupByQualifiedName(owner.Module + "::" + pointerName)
}

// Diff implements schema.Snapshot: it is a pure function of the two
// snapshots plus guidance, and diff(s, s) is always empty.
func (s *Snapshot) Diff(target schema.Snapshot, guidance *schema.Guidance) (*schema.Delta, error) {
	tgt, ok := target.(*Snapshot)
	if !ok {
		return nil, vterrors.InternalErrorf("diff target is not a memschema snapshot")
	}

	delta := &schema.Delta{}
	for name, id := range tgt.byName {
		tgtObj := tgt.byID[id]
		srcObj, existed := s.LookupByQualifiedName(name)
		if !existed {
			if bannedCreate(guidance, tgtObj) {
				continue
			}
			delta.Ops = append(delta.Ops, schema.DeltaOp{
				Action: schema.ActionCreate, Kind: tgtObj.Kind,
				ModuleName: tgtObj.Module, Name: tgtObj.Name, Fields: tgtObj.Fields,
			})
			continue
		}
		if !fieldsEqual(srcObj.Fields, tgtObj.Fields) {
			if bannedAlter(guidance, tgtObj) {
				continue
			}
			delta.Ops = append(delta.Ops, schema.DeltaOp{
				Action: schema.ActionAlter, Kind: tgtObj.Kind,
				ModuleName: tgtObj.Module, Name: tgtObj.Name, Fields: tgtObj.Fields,
			})
		}
	}
	for name, id := range s.byName {
		if _, stillThere := tgt.byName[name]; stillThere {
			continue
		}
		srcObj := s.byID[id]
		if bannedDrop(guidance, srcObj) {
			continue
		}
		delta.Ops = append(delta.Ops, schema.DeltaOp{
			Action: schema.ActionDrop, Kind: srcObj.Kind,
			ModuleName: srcObj.Module, Name: srcObj.Name,
		})
	}
	return delta, nil
}

func fieldsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func bannedCreate(g *schema.Guidance, o schema.Object) bool {
	if g == nil {
		return false
	}
	_, banned := g.BannedCreations[schema.GuidanceKey{Kind: o.Kind, Name: o.QualifiedName()}]
	return banned
}

func bannedAlter(g *schema.Guidance, o schema.Object) bool {
	if g == nil {
		return false
	}
	_, banned := g.BannedAlters[schema.GuidanceKey{Kind: o.Kind, Name: o.QualifiedName()}]
	return banned
}

func bannedDrop(g *schema.Guidance, o schema.Object) bool {
	if g == nil {
		return false
	}
	_, banned := g.BannedDeletions[schema.GuidanceKey{Kind: o.Kind, Name: o.QualifiedName()}]
	return banned
}

// Apply implements schema.Snapshot: it returns a new Snapshot with
// delta's ops applied in order, never mutating s.
func (s *Snapshot) Apply(delta *schema.Delta) (schema.Snapshot, error) {
	cur := s
	for _, op := range delta.Ops {
		switch op.Action {
		case schema.ActionCreate:
			if _, exists := cur.LookupByQualifiedName(op.QualifiedName()); exists {
				return nil, vterrors.SchemaErrorf(vterrors.Context{}, nil, "object %q already exists", op.QualifiedName())
			}
			obj := schema.Object{
				ID: objectID(op.Kind, op.QualifiedName()), Kind: op.Kind,
				Module: op.ModuleName, Name: op.Name, Fields: op.Fields,
			}
			// A migration record chains to its parent by id; the op
			// carries the parent's name.
			if op.Kind == schema.KindMigration {
				if parent, ok := op.Fields["parent"]; ok && parent != "" {
					parentObj, found := cur.LookupByQualifiedName(op.ModuleName + "::" + parent)
					if !found {
						return nil, vterrors.SchemaErrorf(vterrors.Context{}, nil, "parent migration %q does not exist", parent)
					}
					obj.ParentMigration = parentObj.ID
				}
			}
			cur = cur.withObject(obj)
		case schema.ActionAlter:
			existing, ok := cur.LookupByQualifiedName(op.QualifiedName())
			if !ok {
				return nil, vterrors.SchemaErrorf(vterrors.Context{}, nil, "object %q does not exist", op.QualifiedName())
			}
			name := op.Name
			if op.RenameTo != "" {
				cur = cur.withoutName(op.QualifiedName())
				name = op.RenameTo
			}
			existing.Name = name
			existing.Fields = op.Fields
			cur = cur.withObject(existing)
		case schema.ActionDrop:
			if _, ok := cur.LookupByQualifiedName(op.QualifiedName()); !ok {
				return nil, vterrors.SchemaErrorf(vterrors.Context{}, nil, "object %q does not exist", op.QualifiedName())
			}
			cur = cur.withoutName(op.QualifiedName())
		}
	}
	return cur, nil
}
