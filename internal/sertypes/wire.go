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

// Package sertypes implements the type descriptor engine: it
// encodes a schema type into the wire's compact byte format and derives
// a stable 128-bit type-id for it.
package sertypes

import (
	"github.com/google/uuid"
)

// Tag is the single byte that opens every encoded type descriptor.
type Tag byte

const (
	TagSet        Tag = 0x00
	TagShape      Tag = 0x01
	TagBaseScalar Tag = 0x02
	TagScalar     Tag = 0x03
	TagTuple      Tag = 0x04
	TagNamedTuple Tag = 0x05
	TagArray      Tag = 0x06
	TagEnum       Tag = 0x07
	TagInputShape Tag = 0x08
	TagRange      Tag = 0x09
	TagAnnotation Tag = 0xff
)

// Shape element flag bits.
const (
	FlagImplicit Uint32Flag = 0x1
	FlagLinkProp Uint32Flag = 0x2
	FlagLink     Uint32Flag = 0x4
)

// Uint32Flag is the shape-element flags field; width depends on
// protocol version (see ProtocolVersion.legacyShapeFlags).
type Uint32Flag uint32

// ProtocolVersion gates the shape-element field layout: below
// (0, 11) flags are a single byte with no cardinality byte following;
// at or above, flags are a uint32 followed by a uint8 cardinality.
type ProtocolVersion struct {
	Major, Minor int
}

func (v ProtocolVersion) legacyShapeFlags() bool {
	return v.Major < 0 || (v.Major == 0 && v.Minor < 11)
}

// AtLeast reports whether v >= (major, minor).
func (v ProtocolVersion) AtLeast(major, minor int) bool {
	if v.Major != major {
		return v.Major > major
	}
	return v.Minor >= minor
}

// TypeIDNamespace is the namespace UUID every composite type-id is
// derived from via uuid5(TypeIDNamespace, canonicalString).
var TypeIDNamespace = uuid.MustParse("b50f4259-f5ba-5000-a0a5-a2b9e7c8c7d6")

// NullTypeID is the sentinel id for "no output type" (e.g. a DDL
// statement's out-type).
var NullTypeID = uuid.UUID{}

// NullTypeDesc is the empty descriptor paired with NullTypeID.
var NullTypeDesc = []byte{}

// UUIDTypeID and StrTypeID are the known ids of std::uuid and std::str,
// used to validate the implicit id/__tid__/__tname__ shape elements.
var (
	UUIDTypeID = knownTypeID("std::uuid")
	StrTypeID  = knownTypeID("std::str")
)

// EmptyTupleID and EmptyTupleDesc are the canonical empty-tuple
// descriptor pair, returned whenever a tuple has no subtypes and by
// DescribeParams on an empty parameter list.
var (
	EmptyTupleID   = knownTypeID("empty-tuple")
	EmptyTupleDesc = buildEmptyTupleDesc()
)

func buildEmptyTupleDesc() []byte {
	buf := []byte{byte(TagTuple)}
	buf = append(buf, EmptyTupleID[:]...)
	buf = append(buf, 0x00, 0x00) // uint16 n = 0
	return buf
}

// knownTypeID derives a stable id for a built-in, schema-assigned
// scalar or collection shape the same way the schema engine would
// (uuid5 over a fixed namespace and the type's qualified name). The
// schema object model itself is an external collaborator; this is
// the small slice of "known ids" the wire format needs regardless of
// which concrete schema is loaded.
func knownTypeID(qualifiedName string) uuid.UUID {
	return uuid.NewSHA1(TypeIDNamespace, []byte("known::"+qualifiedName))
}
