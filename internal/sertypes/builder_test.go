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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbplatform/hlqlcompiler/internal/enums"
)

var pvCurrent = ProtocolVersion{Major: 2, Minor: 0}

func int64Scalar() *Scalar {
	return &Scalar{ID: uuid.NewSHA1(TypeIDNamespace, []byte("known::std::int64")), Name: "std::int64"}
}

func strScalar() *Scalar {
	return &Scalar{ID: StrTypeID, Name: "std::str"}
}

func TestDescribeDeterministic(t *testing.T) {
	typ := int64Scalar()

	b1, id1, err := Describe(typ, pvCurrent)
	require.NoError(t, err)
	b2, id2, err := Describe(typ, pvCurrent)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	if diff := cmp.Diff(b1, b2); diff != "" {
		t.Fatalf("describe output not deterministic: %s", diff)
	}
}

func TestDescribeTupleDedupesRepeatedReference(t *testing.T) {
	i64 := int64Scalar()
	tup := &Collection{
		CollKind:   KindTuple,
		SchemaName: "tuple",
		Subtypes:   []Type{i64, i64},
	}

	_, id, err := Describe(tup, pvCurrent)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.UUID{}, id)
}

func TestDescribeEmptyTuple(t *testing.T) {
	tup := &Collection{CollKind: KindTuple, SchemaName: "tuple"}
	b, id, err := Describe(tup, pvCurrent)
	require.NoError(t, err)
	assert.Equal(t, EmptyTupleID, id)
	assert.Equal(t, EmptyTupleDesc, b)
}

func TestRoundTripParse(t *testing.T) {
	shape := &Object{
		MaterialID:    uuid.NewSHA1(TypeIDNamespace, []byte("known::default::User")),
		HasImplicitID: true,
		Elements: []ShapeElement{
			{Name: "id", Target: &Scalar{ID: UUIDTypeID, Name: "std::uuid"}, Cardinality: enums.CardinalityOne, IsLink: false},
			{Name: "name", Target: strScalar(), Cardinality: enums.CardinalityOne},
		},
	}

	data, id, err := Describe(shape, pvCurrent)
	require.NoError(t, err)

	parsed, err := Parse(data, pvCurrent)
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.Equal(t, id, parsed.TypeID)
	assert.Equal(t, TagShape, parsed.Tag)
	assert.Len(t, parsed.Fields, 2)
	assert.Equal(t, "id", parsed.Fields[0].Name)
}

func TestDescribeParamsEmpty(t *testing.T) {
	data, id, err := DescribeParams(nil, pvCurrent)
	require.NoError(t, err)
	assert.Equal(t, EmptyTupleID, id)
	assert.Equal(t, EmptyTupleDesc, data)
}

func TestDescribeParamsNonEmpty(t *testing.T) {
	params := []Param{
		{Name: "a", Type: int64Scalar(), Required: true},
		{Name: "b", Type: strScalar(), Required: false},
	}
	data, id, err := DescribeParams(params, pvCurrent)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.UUID{}, id)

	parsed, err := Parse(data, pvCurrent)
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.Len(t, parsed.Fields, 2)
	assert.Equal(t, enums.CardinalityOne, parsed.Fields[0].Cardinality)
	assert.Equal(t, enums.CardinalityAtMostOne, parsed.Fields[1].Cardinality)
}

func TestImplicitIDMustBeUUID(t *testing.T) {
	shape := &Object{
		MaterialID:    uuid.New(),
		HasImplicitID: true,
		Elements: []ShapeElement{
			{Name: "id", Target: strScalar(), Cardinality: enums.CardinalityOne},
		},
	}
	_, _, err := Describe(shape, pvCurrent)
	require.Error(t, err)
}

func TestCollapsedLinkEncodesUUIDScalar(t *testing.T) {
	target := &Object{
		MaterialID: uuid.NewSHA1(TypeIDNamespace, []byte("known::default::Friend")),
		Elements: []ShapeElement{
			{Name: "name", Target: strScalar(), Cardinality: enums.CardinalityOne},
		},
	}
	shape := &Object{
		MaterialID: uuid.NewSHA1(TypeIDNamespace, []byte("known::default::User")),
		Elements: []ShapeElement{
			{Name: "friend", Target: target, Cardinality: enums.CardinalityOne, IsLink: true},
		},
	}

	data, _, err := Describe(shape, pvCurrent, WithFollowLinks(false))
	require.NoError(t, err)

	parsed, err := Parse(data, pvCurrent)
	require.NoError(t, err)
	require.Len(t, parsed.Fields, 1)
	require.NotNil(t, parsed.Fields[0].Type)
	assert.Equal(t, TagBaseScalar, parsed.Fields[0].Type.Tag)
	assert.Equal(t, UUIDTypeID, parsed.Fields[0].Type.TypeID, "an unfollowed link collapses to the target's id")
}

func TestEnumDescriptorCarriesLabels(t *testing.T) {
	enum := &Scalar{
		ID:         uuid.NewSHA1(TypeIDNamespace, []byte("known::default::Color")),
		Name:       "default::Color",
		EnumValues: []string{"red", "green", "blue"},
	}
	data, id, err := Describe(enum, pvCurrent)
	require.NoError(t, err)

	parsed, err := Parse(data, pvCurrent)
	require.NoError(t, err)
	assert.Equal(t, id, parsed.TypeID)
	assert.Equal(t, TagEnum, parsed.Tag)
	assert.Equal(t, []string{"red", "green", "blue"}, parsed.EnumLabels)
}

func TestLegacyShapeFlagsProtocolGate(t *testing.T) {
	old := ProtocolVersion{Major: 0, Minor: 10}
	assert.True(t, old.legacyShapeFlags())
	assert.False(t, pvCurrent.legacyShapeFlags())
}
