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

	"github.com/google/uuid"

	"github.com/dbplatform/hlqlcompiler/internal/enums"
	"github.com/dbplatform/hlqlcompiler/internal/vterrors"
)

// DescriptorField is one element of a parsed shape/tuple/input-shape
// node.
type DescriptorField struct {
	Flags       Uint32Flag
	Cardinality enums.Cardinality
	Name        string
	Type        *Descriptor
}

// Descriptor is a node of the parsed descriptor tree.
type Descriptor struct {
	Tag            Tag
	TypeID         uuid.UUID
	Inner          *Descriptor // set / array / range element type
	NDims          uint16
	DimCardinality int32
	Fields         []DescriptorField
	EnumLabels     []string
	BaseOrdinal    *Descriptor // scalar specialization base
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int { return len(r.data) - r.pos }

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, vterrors.InternalErrorf("truncated type descriptor")
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) bytesN(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, vterrors.InternalErrorf("truncated type descriptor")
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.bytesN(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytesN(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

func (r *reader) uuid() (uuid.UUID, error) {
	b, err := r.bytesN(16)
	if err != nil {
		return uuid.UUID{}, err
	}
	var id uuid.UUID
	copy(id[:], b)
	return id, nil
}

func (r *reader) str() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	b, err := r.bytesN(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Parse decodes a type descriptor buffer produced by Describe (or
// DescribeParams/DescribeInputShape) and returns its top-level node.
// Unknown top-tag bytes in the annotation range [0x80, 0xff] are
// skipped rather than rejected, so newer peers can annotate freely.
func Parse(data []byte, pv ProtocolVersion) (*Descriptor, error) {
	if len(data) == 0 {
		return nil, nil
	}

	r := &reader{data: data}
	var ordinals []*Descriptor
	var top *Descriptor

	for r.remaining() > 0 {
		tagByte, err := r.byte()
		if err != nil {
			return nil, err
		}
		tag := Tag(tagByte)

		if tag >= 0x80 {
			if err := skipAnnotation(r, tag); err != nil {
				return nil, err
			}
			continue
		}

		node, err := parseNode(r, tag, pv, ordinals)
		if err != nil {
			return nil, err
		}
		ordinals = append(ordinals, node)
		top = node
	}

	return top, nil
}

func skipAnnotation(r *reader, tag Tag) error {
	if tag != TagAnnotation {
		// Unknown annotation-range tag: its payload shape is unknown,
		// so only the tag byte is consumed and parsing resumes at the
		// next byte.
		return nil
	}
	if _, err := r.uuid(); err != nil {
		return err
	}
	if _, err := r.str(); err != nil {
		return err
	}
	return nil
}

func parseNode(r *reader, tag Tag, pv ProtocolVersion, ordinals []*Descriptor) (*Descriptor, error) {
	id, err := r.uuid()
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagSet, TagArray, TagRange:
		innerOrd, err := r.uint16()
		if err != nil {
			return nil, err
		}
		node := &Descriptor{Tag: tag, TypeID: id, Inner: ordinals[innerOrd]}
		if tag == TagArray {
			ndims, err := r.uint16()
			if err != nil {
				return nil, err
			}
			dimCard, err := r.int32()
			if err != nil {
				return nil, err
			}
			node.NDims = ndims
			node.DimCardinality = dimCard
		}
		return node, nil

	case TagBaseScalar:
		return &Descriptor{Tag: tag, TypeID: id}, nil

	case TagScalar:
		baseOrd, err := r.uint16()
		if err != nil {
			return nil, err
		}
		return &Descriptor{Tag: tag, TypeID: id, BaseOrdinal: ordinals[baseOrd]}, nil

	case TagTuple:
		n, err := r.uint16()
		if err != nil {
			return nil, err
		}
		fields := make([]DescriptorField, n)
		for i := range fields {
			ord, err := r.uint16()
			if err != nil {
				return nil, err
			}
			fields[i] = DescriptorField{Type: ordinals[ord]}
		}
		return &Descriptor{Tag: tag, TypeID: id, Fields: fields}, nil

	case TagNamedTuple:
		n, err := r.uint16()
		if err != nil {
			return nil, err
		}
		fields := make([]DescriptorField, n)
		for i := range fields {
			name, err := r.str()
			if err != nil {
				return nil, err
			}
			ord, err := r.uint16()
			if err != nil {
				return nil, err
			}
			fields[i] = DescriptorField{Name: name, Type: ordinals[ord]}
		}
		return &Descriptor{Tag: tag, TypeID: id, Fields: fields}, nil

	case TagEnum:
		n, err := r.uint16()
		if err != nil {
			return nil, err
		}
		labels := make([]string, n)
		for i := range labels {
			s, err := r.str()
			if err != nil {
				return nil, err
			}
			labels[i] = s
		}
		return &Descriptor{Tag: tag, TypeID: id, EnumLabels: labels}, nil

	case TagShape, TagInputShape:
		n, err := r.uint16()
		if err != nil {
			return nil, err
		}
		fields := make([]DescriptorField, n)
		for i := range fields {
			var flags Uint32Flag
			var card enums.Cardinality
			if pv.legacyShapeFlags() {
				b, err := r.byte()
				if err != nil {
					return nil, err
				}
				flags = Uint32Flag(b)
			} else {
				f, err := r.uint32()
				if err != nil {
					return nil, err
				}
				flags = Uint32Flag(f)
				cb, err := r.byte()
				if err != nil {
					return nil, err
				}
				card = enums.Cardinality(cb)
			}
			name, err := r.str()
			if err != nil {
				return nil, err
			}
			ord, err := r.uint16()
			if err != nil {
				return nil, err
			}
			fields[i] = DescriptorField{Flags: flags, Cardinality: card, Name: name, Type: ordinals[ord]}
		}
		return &Descriptor{Tag: tag, TypeID: id, Fields: fields}, nil

	default:
		return nil, vterrors.InternalErrorf("unknown type descriptor tag 0x%02x", byte(tag))
	}
}
