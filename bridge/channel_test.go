package bridge

import (
	"github.com/nwierzbowski/pivot-blender-bridge/protocol"
)

// scripted in-process engine channel
type testChannel struct {
	commands []*protocol.Command
	batches  []*protocol.MeshSyncBatch

	// when set, Send fails without a response
	failWith error
	// when set, Send returns ok=false with this error
	reject string
}

func (self *testChannel) Send(command *protocol.Command) (*protocol.Response, error) {
	if self.failWith != nil {
		return nil, self.failWith
	}
	self.commands = append(self.commands, command)
	if self.reject != "" {
		return &protocol.Response{
			Ok:    false,
			Error: self.reject,
		}, nil
	}
	return &protocol.Response{
		Ok: true,
	}, nil
}

func (self *testChannel) PollMeshSync() (*protocol.MeshSyncBatch, bool) {
	if len(self.batches) == 0 {
		return nil, false
	}
	batch := self.batches[0]
	self.batches = self.batches[1:]
	return batch, true
}

func newTestBridge() (*Bridge, *testChannel) {
	scene := NewScene()
	channel := &testChannel{}
	return NewBridge(scene, channel, nil), channel
}

// creates a managed group under the scene root with mesh member objects
func addTestGroup(b *Bridge, name string, memberNames ...string) []*Object {
	collection, ok := b.Registry().GetOrCreateGroupCollection(nil, name, b.Scene().Root())
	if !ok {
		panic("could not create group collection " + name)
	}
	objects := []*Object{}
	for _, memberName := range memberNames {
		obj, err := b.Scene().NewObject(memberName, true)
		if err != nil {
			panic(err)
		}
		b.Scene().EnsureIdentity(obj)
		b.Registry().AssignObjectToGroup(obj, collection)
		objects = append(objects, obj)
	}
	return objects
}
