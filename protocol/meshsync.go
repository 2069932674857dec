package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Mesh sync frame layout, per logical group, all little-endian:
//
//	vertices       flat float32 array
//	edges          flat uint32 index array
//	transforms     N x 16 float32, row-major, apply transposed
//	vertex counts  N x uint32
//	edge counts    N x uint32
//	object names   N x 64-byte null-padded UTF-8 slots
//	identities     N x 16 bytes, slot-aligned with the name table
//
// The object count is always derived from the name table length divided by
// the slot width, never from the transform buffer.

const (
	// keep in sync with the engine's MAX_NAME_LEN
	MaxNameLen = 64

	IdentityLen = 16

	TransformFloats = 16
)

type MeshSyncGroup struct {
	Vertices     []float32
	Edges        []uint32
	Transforms   []float32
	VertexCounts []uint32
	EdgeCounts   []uint32
	Names        []byte
	Identities   []byte
}

// ObjectCount derives the slot count from the name table.
func (self *MeshSyncGroup) ObjectCount() int {
	return len(self.Names) / MaxNameLen
}

// Name returns the decoded name for a slot, empty when the slot is unused.
func (self *MeshSyncGroup) Name(i int) string {
	start := i * MaxNameLen
	end := start + MaxNameLen
	if start < 0 || len(self.Names) < end {
		return ""
	}
	slot := self.Names[start:end]
	for j, b := range slot {
		if b == 0 {
			return string(slot[:j])
		}
	}
	return string(slot)
}

// Identity returns the 16 byte identity for a slot.
// false when the identity table is short for this slot.
func (self *MeshSyncGroup) Identity(i int) ([IdentityLen]byte, bool) {
	var id [IdentityLen]byte
	start := i * IdentityLen
	end := start + IdentityLen
	if start < 0 || len(self.Identities) < end {
		return id, false
	}
	copy(id[:], self.Identities[start:end])
	return id, true
}

// Transform returns the 16 floats for a slot in engine (row-major) order.
// false when the transform buffer is short for this slot.
func (self *MeshSyncGroup) Transform(i int) ([]float32, bool) {
	start := i * TransformFloats
	end := start + TransformFloats
	if start < 0 || len(self.Transforms) < end {
		return nil, false
	}
	return self.Transforms[start:end], true
}

type MeshSyncBatch struct {
	Groups []MeshSyncGroup
}

// frame: u32 group count, then per group seven u32-length-prefixed sections
// in the layout order above

func EncodeMeshSync(batch *MeshSyncBatch) []byte {
	buf := []byte{}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(batch.Groups)))
	for i := range batch.Groups {
		group := &batch.Groups[i]
		buf = appendFloatSection(buf, group.Vertices)
		buf = appendUintSection(buf, group.Edges)
		buf = appendFloatSection(buf, group.Transforms)
		buf = appendUintSection(buf, group.VertexCounts)
		buf = appendUintSection(buf, group.EdgeCounts)
		buf = appendByteSection(buf, group.Names)
		buf = appendByteSection(buf, group.Identities)
	}
	return buf
}

func DecodeMeshSync(frame []byte) (*MeshSyncBatch, error) {
	r := &frameReader{buf: frame}
	groupCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	batch := &MeshSyncBatch{}
	for i := 0; i < int(groupCount); i += 1 {
		group := MeshSyncGroup{}
		if group.Vertices, err = r.floatSection(); err != nil {
			return nil, fmt.Errorf("group %d vertices: %w", i, err)
		}
		if group.Edges, err = r.uintSection(); err != nil {
			return nil, fmt.Errorf("group %d edges: %w", i, err)
		}
		if group.Transforms, err = r.floatSection(); err != nil {
			return nil, fmt.Errorf("group %d transforms: %w", i, err)
		}
		if group.VertexCounts, err = r.uintSection(); err != nil {
			return nil, fmt.Errorf("group %d vertex counts: %w", i, err)
		}
		if group.EdgeCounts, err = r.uintSection(); err != nil {
			return nil, fmt.Errorf("group %d edge counts: %w", i, err)
		}
		if group.Names, err = r.byteSection(); err != nil {
			return nil, fmt.Errorf("group %d names: %w", i, err)
		}
		if group.Identities, err = r.byteSection(); err != nil {
			return nil, fmt.Errorf("group %d identities: %w", i, err)
		}
		batch.Groups = append(batch.Groups, group)
	}
	return batch, nil
}

func appendByteSection(buf []byte, section []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(section)))
	return append(buf, section...)
}

func appendFloatSection(buf []byte, values []float32) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(4*len(values)))
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

func appendUintSection(buf []byte, values []uint32) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(4*len(values)))
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	return buf
}

type frameReader struct {
	buf []byte
	i   int
}

func (self *frameReader) uint32() (uint32, error) {
	if len(self.buf) < self.i+4 {
		return 0, fmt.Errorf("short frame at %d", self.i)
	}
	v := binary.LittleEndian.Uint32(self.buf[self.i:])
	self.i += 4
	return v, nil
}

func (self *frameReader) byteSection() ([]byte, error) {
	n, err := self.uint32()
	if err != nil {
		return nil, err
	}
	if uint32(len(self.buf)-self.i) < n {
		return nil, fmt.Errorf("section length %d exceeds frame at %d", n, self.i)
	}
	section := self.buf[self.i : self.i+int(n)]
	self.i += int(n)
	return section, nil
}

func (self *frameReader) floatSection() ([]float32, error) {
	section, err := self.byteSection()
	if err != nil {
		return nil, err
	}
	values := make([]float32, len(section)/4)
	for j := range values {
		values[j] = math.Float32frombits(binary.LittleEndian.Uint32(section[4*j:]))
	}
	return values, nil
}

func (self *frameReader) uintSection() ([]uint32, error) {
	section, err := self.byteSection()
	if err != nil {
		return nil, err
	}
	values := make([]uint32, len(section)/4)
	for j := range values {
		values[j] = binary.LittleEndian.Uint32(section[4*j:])
	}
	return values, nil
}
