package bridge

import (
	"sort"

	"github.com/golang/glog"

	"golang.org/x/exp/maps"

	"github.com/nwierzbowski/pivot-blender-bridge/protocol"
)

// SyncStateTracker keeps the per-group, per-attribute expected engine
// state: the last value this bridge believes the engine acknowledged.
// Absence of an entry means "never synced" and is treated as needing sync.
//
// The expected membership baseline lives here too: both maps describe what
// the engine last acknowledged and are reseeded together on undo/redo
// reconciliation. Expected state is transient; the durable record is the
// tag set on the host collections.
type SyncStateTracker struct {
	scene    *Scene
	registry *GroupRegistry
	channel  EngineChannel

	// group name -> attr name -> last acknowledged value.
	// written only after a successful command round trip.
	expected map[string]map[string]string

	// group name -> member identities last acknowledged by the engine
	expectedMembers map[string]MemberSet
}

func NewSyncStateTracker(scene *Scene, registry *GroupRegistry, channel EngineChannel) *SyncStateTracker {
	return &SyncStateTracker{
		scene:           scene,
		registry:        registry,
		channel:         channel,
		expected:        map[string]map[string]string{},
		expectedMembers: map[string]MemberSet{},
	}
}

func (self *SyncStateTracker) Expected(groupName string, attrName string) (string, bool) {
	value, ok := self.expected[groupName][attrName]
	return value, ok
}

func (self *SyncStateTracker) setExpected(groupName string, attrName string, value string) {
	attrs, ok := self.expected[groupName]
	if !ok {
		attrs = map[string]string{}
		self.expected[groupName] = attrs
	}
	attrs[attrName] = value
}

// SeedExpected records a value as engine-acknowledged outside the normal
// command path, after a confirmed round trip (e.g. a batched
// classification) acknowledged it.
func (self *SyncStateTracker) SeedExpected(groupName string, attrName string, value string) {
	self.setExpected(groupName, attrName, value)
}

func (self *SyncStateTracker) ExpectedMembers(groupName string) (MemberSet, bool) {
	members, ok := self.expectedMembers[groupName]
	return members, ok
}

func (self *SyncStateTracker) SetExpectedMembers(groupName string, members MemberSet) {
	self.expectedMembers[groupName] = members
}

// ExpectedMemberGroups returns the group names that have a membership
// baseline, sorted for deterministic iteration.
func (self *SyncStateTracker) ExpectedMemberGroups() []string {
	names := maps.Keys(self.expectedMembers)
	sort.Strings(names)
	return names
}

func (self *SyncStateTracker) RenameGroup(oldName string, newName string) {
	if attrs, ok := self.expected[oldName]; ok {
		delete(self.expected, oldName)
		self.expected[newName] = attrs
	}
	if members, ok := self.expectedMembers[oldName]; ok {
		delete(self.expectedMembers, oldName)
		self.expectedMembers[newName] = members
	}
}

func (self *SyncStateTracker) DropGroups(names []string) {
	for _, name := range names {
		delete(self.expected, name)
		delete(self.expectedMembers, name)
	}
}

// Reset drops all expected state, forcing conservative resync.
func (self *SyncStateTracker) Reset() {
	maps.Clear(self.expected)
	maps.Clear(self.expectedMembers)
}

// SetAttribute sets an attribute for an object with optional group and
// engine propagation. When both are requested and the object belongs to a
// group, a single group-level command goes to the engine first; only on
// success does any local state change. A failed command leaves the host
// and the expected state exactly as they were.
func (self *SyncStateTracker) SetAttribute(obj *Object, attrName string, value string, updateGroup bool, updateEngine bool) bool {
	if obj == nil {
		return false
	}

	groupName, hasGroup := self.registry.GroupName(obj)

	if updateGroup && updateEngine && hasGroup {
		if !self.sendGroupAttributeCommand(protocol.CommandSetGroupAttr, groupName, attrName, value) {
			return false
		}
	}

	if current, _ := obj.Attribute(attrName); current != value {
		obj.SetAttribute(attrName, value)
	}

	if updateGroup && hasGroup {
		self.propagateToGroup(obj, groupName, attrName, value)
		self.setExpected(groupName, attrName, value)
	} else if updateEngine && hasGroup {
		self.setExpected(groupName, attrName, value)
	}

	return true
}

// propagateToGroup writes the value to every other member of the group.
// Group members are expected homogeneous for syncable attributes.
func (self *SyncStateTracker) propagateToGroup(source *Object, groupName string, attrName string, value string) {
	collection, ok := self.scene.Collection(groupName)
	if !ok {
		return
	}
	for _, obj := range collection.Objects() {
		if obj == source {
			continue
		}
		if current, _ := obj.Attribute(attrName); current != value {
			obj.SetAttribute(attrName, value)
		}
	}
}

func (self *SyncStateTracker) sendGroupAttributeCommand(commandId int, groupName string, attrName string, value string) bool {
	response, err := self.channel.Send(&protocol.Command{
		Id:        commandId,
		Op:        protocol.OpSetGroupAttr,
		GroupName: groupName,
		Attr:      attrName,
		Value:     value,
	})
	if err != nil {
		glog.Infof("[st]%s %s=%s send error = %s\n", groupName, attrName, value, err)
		return false
	}
	if !response.Ok {
		glog.Infof("[st]%s %s=%s rejected = %s\n", groupName, attrName, value, response.Error)
		return false
	}
	return true
}

// NeedsAttributeSync reports whether the object's current value drifted
// from the expected engine state for its group. Missing expected entries
// do not count as drift here; `SyncSceneAfterUndo` treats them as needing
// sync conservatively.
func (self *SyncStateTracker) NeedsAttributeSync(obj *Object, attrName string) bool {
	groupName, hasGroup := self.registry.GroupName(obj)
	if !hasGroup {
		return false
	}
	expected, ok := self.Expected(groupName, attrName)
	if !ok {
		return false
	}
	current, _ := obj.Attribute(attrName)
	return current != expected
}

// NeedsSync reports whether any syncable attribute on the object drifted.
func (self *SyncStateTracker) NeedsSync(obj *Object) bool {
	for _, attrName := range SyncableAttributes {
		if self.NeedsAttributeSync(obj, attrName) {
			return true
		}
	}
	return false
}

// SyncAttributeWithEngine pushes the object's current value to the engine
// and records it as expected on success, closing the drift.
func (self *SyncStateTracker) SyncAttributeWithEngine(obj *Object, attrName string) bool {
	groupName, hasGroup := self.registry.GroupName(obj)
	if !hasGroup {
		return false
	}
	value, _ := obj.Attribute(attrName)
	if !self.sendGroupAttributeCommand(protocol.CommandSyncObject, groupName, attrName, value) {
		return false
	}
	self.setExpected(groupName, attrName, value)
	return true
}

// SyncObjectAttributes syncs every drifted syncable attribute on the
// object. Returns the number actually synchronized.
func (self *SyncStateTracker) SyncObjectAttributes(obj *Object) int {
	synced := 0
	for _, attrName := range SyncableAttributes {
		if self.NeedsAttributeSync(obj, attrName) {
			if self.SyncAttributeWithEngine(obj, attrName) {
				synced += 1
			}
		}
	}
	return synced
}

// SyncSceneAfterUndo re-aligns the engine with the host after an undo or
// redo. Each distinct (group, attribute) pair is synced at most once,
// since group members are homogeneous. Attributes with no expected entry
// are conservatively synced, which seeds the entry on first success.
// Returns (pairs synced, groups touched).
func (self *SyncStateTracker) SyncSceneAfterUndo(objects []*Object) (int, int) {
	syncedPairs := map[[2]string]bool{}
	groupsTouched := map[string]bool{}

	for _, obj := range objects {
		groupName, hasGroup := self.registry.GroupName(obj)
		if !hasGroup {
			continue
		}

		for _, attrName := range SyncableAttributes {
			pair := [2]string{groupName, attrName}
			if syncedPairs[pair] {
				continue
			}

			_, hasExpected := self.Expected(groupName, attrName)
			needs := !hasExpected || self.NeedsAttributeSync(obj, attrName)
			if needs && self.SyncAttributeWithEngine(obj, attrName) {
				syncedPairs[pair] = true
				groupsTouched[groupName] = true
			}
		}
	}

	glog.V(1).Infof("[st]undo sync pairs=%d groups=%d\n", len(syncedPairs), len(groupsTouched))
	return len(syncedPairs), len(groupsTouched)
}
