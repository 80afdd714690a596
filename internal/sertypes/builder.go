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
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// Builder accumulates the byte-encoded descriptor for a single describe
// call. Builders are scoped to one call: their buffers are the
// describe result and are not retained past it.
type Builder struct {
	buf      []byte
	annoBuf  []byte
	posOf    map[uuid.UUID]uint16 // write-once: one ordinal per type-id
	inlineTN bool
}

// NewBuilder constructs an empty Builder. inlineTypenames controls
// whether scalar specializations and enums get an annotation record
// appended (tag 0xff) carrying their display name.
func NewBuilder(inlineTypenames bool) *Builder {
	return &Builder{
		posOf:    make(map[uuid.UUID]uint16),
		inlineTN: inlineTypenames,
	}
}

func (b *Builder) registered(id uuid.UUID) (uint16, bool) {
	pos, ok := b.posOf[id]
	return pos, ok
}

func (b *Builder) register(id uuid.UUID) {
	if _, ok := b.posOf[id]; !ok {
		b.posOf[id] = uint16(len(b.posOf))
	}
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendInt32(buf []byte, v int32) []byte {
	return appendUint32(buf, uint32(v))
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// collectionTypeID derives the stable id for a tuple/array/range from
// its canonical structure string.
func collectionTypeID(kind, schemaName string, subtypeIDs []uuid.UUID, elementNames []string) uuid.UUID {
	if kind == "tuple" && len(subtypeIDs) == 0 {
		return EmptyTupleID
	}
	parts := make([]string, len(subtypeIDs))
	for i, id := range subtypeIDs {
		parts[i] = id.String()
	}
	canonical := schemaName + "\x00" + strings.Join(parts, ":")
	if len(elementNames) > 0 {
		canonical += "\x00" + strings.Join(elementNames, ":")
	}
	return uuid.NewSHA1(TypeIDNamespace, []byte(canonical))
}

// objectTypeID derives the stable id for an object view shape from
// its canonical structure string.
func objectTypeID(baseTypeID uuid.UUID, subtypeIDs []uuid.UUID, elementNames []string, linkProps, links []bool, hasImplicitFields bool) uuid.UUID {
	parts := make([]string, len(subtypeIDs))
	for i, id := range subtypeIDs {
		parts[i] = id.String()
	}
	canonical := baseTypeID.String() + "\x00" + strings.Join(parts, ":")
	if len(elementNames) > 0 {
		canonical += "\x00" + strings.Join(elementNames, ":")
	}
	canonical += fmt.Sprintf("%t;%v;%v", hasImplicitFields, linkProps, links)
	return uuid.NewSHA1(TypeIDNamespace, []byte(canonical))
}

// setTypeID derives the id for the "set of" wrapper around baseTypeID.
func setTypeID(baseTypeID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(TypeIDNamespace, []byte("set-of::"+baseTypeID.String()))
}

func (b *Builder) addAnnotation(id uuid.UUID, displayName string) {
	b.annoBuf = append(b.annoBuf, byte(TagAnnotation))
	b.annoBuf = append(b.annoBuf, id[:]...)
	b.annoBuf = appendString(b.annoBuf, displayName)
}

// describeSet wraps t in a "set of" node (tag 0x00) if not already
// registered, and returns the set's type-id.
func (b *Builder) describeSet(t Type, pv ProtocolVersion) (uuid.UUID, error) {
	innerID, err := b.describeType(t, pv, true, "")
	if err != nil {
		return uuid.UUID{}, err
	}
	setID := setTypeID(innerID)
	if _, ok := b.registered(setID); ok {
		return setID, nil
	}
	innerPos := b.posOf[innerID]
	b.buf = append(b.buf, byte(TagSet))
	b.buf = append(b.buf, setID[:]...)
	b.buf = appendUint16(b.buf, innerPos)
	b.register(setID)
	return setID, nil
}

// describeType is the recursive traversal at the core of Describe.
// followLinks controls whether Link-kind shape elements recurse into
// their target (true) or get collapsed to std::uuid (false, used by
// dump/restore-style "shallow" descriptions). nameFilter, when
// non-empty, restricts emitted shape elements to those whose name has
// that prefix, with the prefix stripped from the emitted name.
func (b *Builder) describeType(t Type, pv ProtocolVersion, followLinks bool, nameFilter string) (uuid.UUID, error) {
	switch v := t.(type) {
	case *Collection:
		return b.describeCollection(v, pv)
	case *Object:
		return b.describeObject(v, pv, followLinks, nameFilter)
	case *Scalar:
		return b.describeScalar(v, pv)
	default:
		return uuid.UUID{}, vterrors.InternalErrorf("cannot describe type of kind %v", t.Kind())
	}
}

func (b *Builder) describeCollection(c *Collection, pv ProtocolVersion) (uuid.UUID, error) {
	subtypeIDs := make([]uuid.UUID, len(c.Subtypes))
	for i, st := range c.Subtypes {
		id, err := b.describeType(st, pv, true, "")
		if err != nil {
			return uuid.UUID{}, err
		}
		subtypeIDs[i] = id
	}

	switch c.CollKind {
	case KindTuple:
		var elNames []string
		if c.Named {
			if len(c.ElementNames) != len(subtypeIDs) {
				return uuid.UUID{}, vterrors.InternalErrorf("named tuple element name count mismatch")
			}
			elNames = c.ElementNames
		}
		typeID := collectionTypeID(c.SchemaName, c.SchemaName, subtypeIDs, elNames)
		if _, ok := b.registered(typeID); ok {
			return typeID, nil
		}
		if c.Named {
			b.buf = append(b.buf, byte(TagNamedTuple))
			b.buf = append(b.buf, typeID[:]...)
			b.buf = appendUint16(b.buf, uint16(len(subtypeIDs)))
			for i, id := range subtypeIDs {
				b.buf = appendString(b.buf, c.ElementNames[i])
				b.buf = appendUint16(b.buf, b.posOf[id])
			}
		} else {
			b.buf = append(b.buf, byte(TagTuple))
			b.buf = append(b.buf, typeID[:]...)
			b.buf = appendUint16(b.buf, uint16(len(subtypeIDs)))
			for _, id := range subtypeIDs {
				b.buf = appendUint16(b.buf, b.posOf[id])
			}
		}
		b.register(typeID)
		return typeID, nil

	case KindArray:
		if len(subtypeIDs) != 1 {
			return uuid.UUID{}, vterrors.InternalErrorf("array must have exactly one subtype")
		}
		typeID := collectionTypeID(c.SchemaName, c.SchemaName, subtypeIDs, nil)
		if _, ok := b.registered(typeID); ok {
			return typeID, nil
		}
		b.buf = append(b.buf, byte(TagArray))
		b.buf = append(b.buf, typeID[:]...)
		b.buf = appendUint16(b.buf, b.posOf[subtypeIDs[0]])
		b.buf = appendUint16(b.buf, 1)   // ndims, always 1
		b.buf = appendInt32(b.buf, -1)   // dim cardinality, always unbound
		b.register(typeID)
		return typeID, nil

	case KindRange:
		if len(subtypeIDs) != 1 {
			return uuid.UUID{}, vterrors.InternalErrorf("range must have exactly one subtype")
		}
		typeID := collectionTypeID(c.SchemaName, c.SchemaName, subtypeIDs, nil)
		if _, ok := b.registered(typeID); ok {
			return typeID, nil
		}
		b.buf = append(b.buf, byte(TagRange))
		b.buf = append(b.buf, typeID[:]...)
		b.buf = appendUint16(b.buf, b.posOf[subtypeIDs[0]])
		b.register(typeID)
		return typeID, nil

	default:
		return uuid.UUID{}, vterrors.SchemaErrorf(vterrors.Context{}, nil, "unsupported collection kind %v", c.CollKind)
	}
}

func (b *Builder) describeScalar(s *Scalar, pv ProtocolVersion) (uuid.UUID, error) {
	if _, ok := b.registered(s.ID); ok {
		return s.ID, nil
	}

	if len(s.EnumValues) > 0 {
		b.buf = append(b.buf, byte(TagEnum))
		b.buf = append(b.buf, s.ID[:]...)
		b.buf = appendUint16(b.buf, uint16(len(s.EnumValues)))
		for _, v := range s.EnumValues {
			b.buf = appendString(b.buf, v)
		}
		if b.inlineTN {
			b.addAnnotation(s.ID, s.Name)
		}
	} else if s.Base == nil {
		b.buf = append(b.buf, byte(TagBaseScalar))
		b.buf = append(b.buf, s.ID[:]...)
	} else {
		baseID, err := b.describeScalar(s.Base, pv)
		if err != nil {
			return uuid.UUID{}, err
		}
		b.buf = append(b.buf, byte(TagScalar))
		b.buf = append(b.buf, s.ID[:]...)
		b.buf = appendUint16(b.buf, b.posOf[baseID])
		if b.inlineTN {
			b.addAnnotation(s.ID, s.Name)
		}
	}

	b.register(s.ID)
	return s.ID, nil
}

func (b *Builder) describeObject(o *Object, pv ProtocolVersion, followLinks bool, nameFilter string) (uuid.UUID, error) {
	var subtypeIDs []uuid.UUID
	var elementNames []string
	var linkProps, links []bool
	var cardinalities []enums.Cardinality

	for _, el := range o.Elements {
		name := el.Name
		if nameFilter != "" {
			if !strings.HasPrefix(name, nameFilter) {
				continue
			}
			name = strings.TrimPrefix(name, nameFilter)
		}

		var subtypeID uuid.UUID
		var err error
		if el.singular() {
			if el.IsLink && !followLinks {
				// A collapsed link is transmitted as the target's id
				// only, so a std::uuid base scalar stands in for the
				// link target.
				subtypeID = UUIDTypeID
				if _, ok := b.registered(subtypeID); !ok {
					b.buf = append(b.buf, byte(TagBaseScalar))
					b.buf = append(b.buf, subtypeID[:]...)
					b.register(subtypeID)
				}
			} else {
				subtypeID, err = b.describeType(el.Target, pv, followLinks, "")
				if err != nil {
					return uuid.UUID{}, err
				}
			}
		} else {
			if el.IsLink && !followLinks {
				return uuid.UUID{}, vterrors.InternalErrorf("cannot describe multi links when follow_links=false")
			}
			subtypeID, err = b.describeSet(el.Target, pv)
			if err != nil {
				return uuid.UUID{}, err
			}
		}

		subtypeIDs = append(subtypeIDs, subtypeID)
		elementNames = append(elementNames, name)
		linkProps = append(linkProps, el.IsLinkProp)
		links = append(links, el.IsLink && !el.IsLinkProp)
		cardinalities = append(cardinalities, el.Cardinality)
	}

	typeID := objectTypeID(o.MaterialID, subtypeIDs, elementNames, linkProps, links, o.HasImplicitID)
	if _, ok := b.registered(typeID); ok {
		return typeID, nil
	}

	b.buf = append(b.buf, byte(TagShape))
	b.buf = append(b.buf, typeID[:]...)
	b.buf = appendUint16(b.buf, uint16(len(subtypeIDs)))

	for i, name := range elementNames {
		var flags Uint32Flag
		if linkProps[i] {
			flags |= FlagLinkProp
		}
		elID := subtypeIDs[i]
		switch {
		case (o.HasImplicitID && name == "id") || name == "__tid__":
			if elID != UUIDTypeID {
				return uuid.UUID{}, vterrors.InternalErrorf("%q is expected to be a std::uuid singleton", name)
			}
			flags |= FlagImplicit
		case name == "__tname__":
			if elID != StrTypeID {
				return uuid.UUID{}, vterrors.InternalErrorf("%q is expected to be a std::str singleton", name)
			}
			flags |= FlagImplicit
		}
		if links[i] {
			flags |= FlagLink
		}

		if pv.legacyShapeFlags() {
			b.buf = append(b.buf, byte(flags))
		} else {
			b.buf = appendUint32(b.buf, uint32(flags))
			b.buf = append(b.buf, byte(cardinalities[i]))
		}
		b.buf = appendString(b.buf, name)
		b.buf = appendUint16(b.buf, b.posOf[elID])
	}

	b.register(typeID)
	return typeID, nil
}

// DescribeInputShape encodes t as an input-shape codec. When t
// is an *InputShape, its fields are registered recursively — a field
// whose cardinality is MANY/AT_LEAST_ONE is wrapped via describeSet;
// otherwise it recurses into DescribeInputShape so nested input shapes
// get their own tag-0x08 node. Any other Type is treated as a leaf and
// encoded with the ordinary describeType traversal. When prepareState
// is true, fields are registered but the top-level shape node itself is
// not emitted — used to precompute ordinals of substructures ahead of
// the call that actually emits the enclosing shape.
func (b *Builder) DescribeInputShape(t Type, prepareState bool, pv ProtocolVersion) (uuid.UUID, error) {
	shape, ok := t.(*InputShape)
	if !ok {
		return b.describeType(t, pv, true, "")
	}

	elementNames := make([]string, 0, len(shape.Fields))
	subtypeIDs := make([]uuid.UUID, 0, len(shape.Fields))
	cardinalities := make([]enums.Cardinality, 0, len(shape.Fields))

	for _, f := range shape.Fields {
		var id uuid.UUID
		var err error
		if f.Cardinality == enums.CardinalityMany || f.Cardinality == enums.CardinalityAtLeastOne {
			id, err = b.describeSet(f.Subtype, pv)
		} else {
			id, err = b.DescribeInputShape(f.Subtype, false, pv)
		}
		if err != nil {
			return uuid.UUID{}, err
		}
		elementNames = append(elementNames, f.Name)
		subtypeIDs = append(subtypeIDs, id)
		cardinalities = append(cardinalities, f.Cardinality)
	}

	if prepareState {
		return uuid.UUID{}, nil
	}

	typeID := objectTypeID(shape.MaterialID, subtypeIDs, elementNames, nil, nil, false)
	if _, ok := b.registered(typeID); ok {
		return typeID, nil
	}

	b.buf = append(b.buf, byte(TagInputShape))
	b.buf = append(b.buf, typeID[:]...)
	b.buf = appendUint16(b.buf, uint16(len(subtypeIDs)))
	for i, name := range elementNames {
		b.buf = appendUint32(b.buf, 0) // flags
		b.buf = append(b.buf, byte(cardinalities[i]))
		b.buf = appendString(b.buf, name)
		b.buf = appendUint16(b.buf, b.posOf[subtypeIDs[i]])
	}
	b.register(typeID)
	return typeID, nil
}

// Describe encodes t (optionally following links, inlining display
// names as annotations, and filtering shape-element names by prefix)
// and returns the wire bytes plus the top-level type-id.
func Describe(t Type, pv ProtocolVersion, opts ...DescribeOption) ([]byte, uuid.UUID, error) {
	cfg := describeConfig{followLinks: true}
	for _, o := range opts {
		o(&cfg)
	}
	b := NewBuilder(cfg.inlineTypenames)
	id, err := b.describeType(t, pv, cfg.followLinks, cfg.nameFilter)
	if err != nil {
		return nil, uuid.UUID{}, err
	}
	out := append(append([]byte{}, b.buf...), b.annoBuf...)
	return out, id, nil
}

// DescribeOption configures a single Describe call.
type DescribeOption func(*describeConfig)

type describeConfig struct {
	followLinks     bool
	inlineTypenames bool
	nameFilter      string
}

func WithFollowLinks(v bool) DescribeOption { return func(c *describeConfig) { c.followLinks = v } }
func WithInlineTypenames(v bool) DescribeOption { return func(c *describeConfig) { c.inlineTypenames = v } }
func WithNameFilter(prefix string) DescribeOption {
	return func(c *describeConfig) { c.nameFilter = prefix }
}

// Param is one parameter of a describe_params call.
type Param struct {
	Name     string
	Type     Type
	Required bool
}

// DescribeParams builds the implicit shape descriptor for a parameter
// list. An empty list returns the canonical empty-tuple descriptor
// and id.
func DescribeParams(params []Param, pv ProtocolVersion) ([]byte, uuid.UUID, error) {
	if len(params) == 0 {
		return EmptyTupleDesc, EmptyTupleID, nil
	}

	b := NewBuilder(false)
	type encoded struct {
		name     string
		typeID   uuid.UUID
		required bool
	}
	rows := make([]encoded, 0, len(params))
	for _, p := range params {
		id, err := b.describeType(p.Type, pv, true, "")
		if err != nil {
			return nil, uuid.UUID{}, err
		}
		rows = append(rows, encoded{name: p.Name, typeID: id, required: p.Required})
	}

	bufEncoded := append([]byte{}, b.buf...)

	var full []byte
	full = append(full, bufEncoded...)
	full = append(full, byte(TagShape))
	full = append(full, NullTypeID[:]...) // placeholder, patched below
	full = appendUint16(full, uint16(len(rows)))
	for _, r := range rows {
		full = appendUint32(full, 0) // flags
		card := enums.CardinalityAtMostOne
		if r.required {
			card = enums.CardinalityOne
		}
		full = append(full, byte(card))
		full = appendString(full, r.name)
		full = appendUint16(full, b.posOf[r.typeID])
	}
	full = append(full, b.annoBuf...)

	paramsID := uuid.NewSHA1(TypeIDNamespace, full)
	idPos := len(bufEncoded) + 1
	copy(full[idPos:idPos+16], paramsID[:])

	return full, paramsID, nil
}
