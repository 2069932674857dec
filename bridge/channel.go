package bridge

import (
	"errors"

	"github.com/nwierzbowski/pivot-blender-bridge/protocol"
)

// returned by channel implementations when the engine process is not
// reachable. Callers treat this as a neutral failure: log, leave local
// state unchanged, try again on the next relevant event.
var ErrChannelUnavailable = errors.New("engine channel unavailable")

// EngineChannel is the bridge's only view of the native engine process.
// How the channel is established (websocket, shared memory, in-process
// fake) is the adapter's concern; the bridge is constructor-injected with
// this interface and never reaches for a communicator itself.
//
// Send is synchronous with at most one outstanding call per invocation
// site. PollMeshSync never blocks: it returns (nil, false) when the engine
// has nothing new.
type EngineChannel interface {
	Send(command *protocol.Command) (*protocol.Response, error)
	PollMeshSync() (*protocol.MeshSyncBatch, bool)
}
