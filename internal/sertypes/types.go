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

package sertypes

import (
	"github.com/google/uuid"

	"github.com/dbplatform/hlqlcompiler/internal/enums"
)

// Kind is the closed set of encodable type shapes, mirroring the wire
// tag table.
type Kind int

const (
	KindScalar Kind = iota
	KindTuple
	KindArray
	KindRange
	KindObject
	KindInputShape
)

// Type is the minimal contract the descriptor builder needs from the
// (externally owned) schema object model: enough structure to encode a
// type and derive its id. Concrete schema types are expected to either
// implement this directly or be adapted to it at the call site.
type Type interface {
	Kind() Kind
}

// Scalar describes a schema scalar. Base is nil when this type IS its
// own topmost concrete base (a "base scalar", tag 0x02); otherwise Base
// names the base this scalar specializes (tag 0x03). EnumValues, when
// non-empty, makes this an enum (tag 0x07) instead.
type Scalar struct {
	ID         uuid.UUID
	Name       string
	Base       *Scalar
	EnumValues []string
}

func (*Scalar) Kind() Kind { return KindScalar }

// Collection is a tuple, named tuple, array, or range. SchemaName
// feeds the canonical-string id derivation ("tuple", "array", "range").
type Collection struct {
	CollKind     Kind // KindTuple, KindArray, or KindRange
	SchemaName   string
	Named        bool
	ElementNames []string // parallel to Subtypes, only when Named
	Subtypes     []Type
}

func (c *Collection) Kind() Kind { return c.CollKind }

// ShapeElement is one field of an object shape: either a natural
// pointer of the object type, or (when IsLinkProp is set) a property
// of the reverse link the shape is attached to.
type ShapeElement struct {
	Name        string
	Target      Type
	Cardinality enums.Cardinality
	IsLink      bool
	IsLinkProp  bool
}

// singular reports whether this element's cardinality is at most one,
// i.e. whether it is encoded directly rather than wrapped in a set.
func (e ShapeElement) singular() bool {
	return e.Cardinality == enums.CardinalityOne || e.Cardinality == enums.CardinalityAtMostOne
}

// Object describes a view shape over an object type (tag 0x01).
// MaterialID is the id of the object type this view renders (the
// "base_type_id" of the original algorithm, resolved by the schema
// engine before the type reaches the builder).
type Object struct {
	MaterialID    uuid.UUID
	HasImplicitID bool
	Elements      []ShapeElement
}

func (*Object) Kind() Kind { return KindObject }

// InputShapeField is one parameter shape field of an InputShape.
type InputShapeField struct {
	Name        string
	Subtype     Type // may itself be *InputShape, for nested input shapes
	Cardinality enums.Cardinality
}

// InputShape describes an input-shape codec (tag 0x08): the implicit
// object shape the backend expects for a structured query argument.
type InputShape struct {
	MaterialID uuid.UUID
	Fields     []InputShapeField
}

func (*InputShape) Kind() Kind { return KindInputShape }
