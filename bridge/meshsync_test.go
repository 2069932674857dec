package bridge

import (
	"bytes"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/nwierzbowski/pivot-blender-bridge/protocol"
)

func chairBatch(identity Id, transform Matrix4) *protocol.MeshSyncBatch {
	names := make([]byte, protocol.MaxNameLen)
	copy(names, "Chair")
	return &protocol.MeshSyncBatch{
		Groups: []protocol.MeshSyncGroup{
			{
				Transforms:   transform[:],
				VertexCounts: []uint32{0},
				EdgeCounts:   []uint32{0},
				Names:        names,
				Identities:   identity.Bytes(),
			},
		},
	}
}

func TestMeshSyncApplyIdentityMatrix(t *testing.T) {
	scene := NewScene()
	obj, _ := scene.NewObject("Chair", true)
	identity := RequireIdFromBytes(bytes.Repeat([]byte{0x01}, 16))
	scene.AssociateIdentity(identity, obj)
	obj.WorldMatrix = Matrix4{}

	// full wire round trip: encode, decode, apply
	frame := protocol.EncodeMeshSync(chairBatch(identity, IdentityMatrix4()))
	batch, err := protocol.DecodeMeshSync(frame)
	assert.Equal(t, nil, err)

	sync := NewMeshTransformSync(scene)
	applied := sync.Apply(batch)
	assert.Equal(t, 1, applied)
	// transpose of identity is identity
	assert.Equal(t, IdentityMatrix4(), obj.WorldMatrix)
	assert.Equal(t, uint64(1), obj.MeshVersion)
}

func TestMeshSyncAppliesTransposed(t *testing.T) {
	scene := NewScene()
	obj, _ := scene.NewObject("Chair", true)
	identity := NewId()
	scene.AssociateIdentity(identity, obj)

	// row-major translation of (5, 6, 7)
	m := IdentityMatrix4()
	m[3] = 5
	m[7] = 6
	m[11] = 7

	sync := NewMeshTransformSync(scene)
	sync.Apply(chairBatch(identity, m))

	assert.Equal(t, Vec3(5, 6, 7), obj.WorldMatrix.Translation())
}

func TestMeshSyncSkipsUnresolvedIdentity(t *testing.T) {
	scene := NewScene()
	sync := NewMeshTransformSync(scene)

	// no host object for this identity: silently skipped, no error
	applied := sync.Apply(chairBatch(NewId(), IdentityMatrix4()))
	assert.Equal(t, 0, applied)
}

func TestMeshSyncSkipsEmptySlots(t *testing.T) {
	scene := NewScene()
	obj, _ := scene.NewObject("Chair", true)
	identity := NewId()
	scene.AssociateIdentity(identity, obj)

	// slot 0 empty, slot 1 is the chair
	names := make([]byte, 2*protocol.MaxNameLen)
	copy(names[protocol.MaxNameLen:], "Chair")
	identities := make([]byte, 2*protocol.IdentityLen)
	copy(identities[protocol.IdentityLen:], identity.Bytes())
	transform := IdentityMatrix4()
	transforms := append(make([]float32, protocol.TransformFloats), transform[:]...)

	batch := &protocol.MeshSyncBatch{
		Groups: []protocol.MeshSyncGroup{
			{
				Transforms: transforms,
				Names:      names,
				Identities: identities,
			},
		},
	}
	applied := NewMeshTransformSync(scene).Apply(batch)
	assert.Equal(t, 1, applied)
	assert.Equal(t, IdentityMatrix4(), obj.WorldMatrix)
}

func TestMeshSyncCountFromNameTable(t *testing.T) {
	scene := NewScene()
	obj, _ := scene.NewObject("Chair", true)
	identity := NewId()
	scene.AssociateIdentity(identity, obj)
	other, _ := scene.NewObject("Sofa", true)
	otherIdentity := NewId()
	scene.AssociateIdentity(otherIdentity, other)

	// two name/identity slots but only one transform: the count comes
	// from the name table and the short transform slot is skipped
	names := make([]byte, 2*protocol.MaxNameLen)
	copy(names, "Chair")
	copy(names[protocol.MaxNameLen:], "Sofa")
	transform := IdentityMatrix4()

	batch := &protocol.MeshSyncBatch{
		Groups: []protocol.MeshSyncGroup{
			{
				Transforms: transform[:],
				Names:      names,
				Identities: append(identity.Bytes(), otherIdentity.Bytes()...),
			},
		},
	}
	applied := NewMeshTransformSync(scene).Apply(batch)
	assert.Equal(t, 1, applied)
	assert.Equal(t, uint64(1), obj.MeshVersion)
	assert.Equal(t, uint64(0), other.MeshVersion)
}

func TestMeshSyncShortIdentitySlot(t *testing.T) {
	scene := NewScene()
	obj, _ := scene.NewObject("Chair", true)
	scene.AssociateIdentity(NewId(), obj)

	names := make([]byte, protocol.MaxNameLen)
	copy(names, "Chair")
	transform := IdentityMatrix4()
	batch := &protocol.MeshSyncBatch{
		Groups: []protocol.MeshSyncGroup{
			{
				Transforms: transform[:],
				Names:      names,
				Identities: []byte{0x01, 0x02}, // short
			},
		},
	}
	applied := NewMeshTransformSync(scene).Apply(batch)
	assert.Equal(t, 0, applied)
}
