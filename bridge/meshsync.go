package bridge

import (
	"github.com/golang/glog"

	"github.com/nwierzbowski/pivot-blender-bridge/protocol"
)

// MeshTransformSync applies engine-pushed transform batches to the scene.
// Runs once per poll tick; depends only on the identity cache.
type MeshTransformSync struct {
	scene *Scene
}

func NewMeshTransformSync(scene *Scene) *MeshTransformSync {
	return &MeshTransformSync{
		scene: scene,
	}
}

// Apply walks every group in the batch in slot order and assigns world
// transforms to the objects it can resolve. Returns the number of objects
// updated.
//
// Per-slot anomalies are skipped without aborting the batch:
//   - empty name slot: unused slot
//   - short identity or transform slot: decode anomaly
//   - unresolved identity: object not created host-side yet; the engine
//     resends on a later tick if still relevant
func (self *MeshTransformSync) Apply(batch *protocol.MeshSyncBatch) int {
	applied := 0
	identities := self.scene.Identities()
	for i := range batch.Groups {
		group := &batch.Groups[i]
		// slot count comes from the name table, never the transform buffer
		objectCount := group.ObjectCount()
		for slot := 0; slot < objectCount; slot += 1 {
			if group.Name(slot) == "" {
				continue
			}
			idBytes, ok := group.Identity(slot)
			if !ok {
				glog.V(2).Infof("[ms]short identity slot %d\n", slot)
				continue
			}
			obj, ok := identities.ObjectById(Id(idBytes))
			if !ok {
				// not created host-side yet
				continue
			}
			floats, ok := group.Transform(slot)
			if !ok {
				glog.V(2).Infof("[ms]short transform slot %d (%s)\n", slot, obj.Name)
				continue
			}
			m, _ := Matrix4FromSlice(floats)
			// engine emits row-major; host wants the transpose
			obj.WorldMatrix = m.Transposed()
			obj.TouchMesh()
			applied += 1
		}
	}
	glog.V(2).Infof("[ms]applied %d\n", applied)
	return applied
}
