package bridge

import (
	"github.com/golang/glog"
)

// ChangeDetector inspects one batch of host mutation events per pass and
// decides, cheaply, which groups drifted out of sync with the engine.
//
// A pass runs three stages in fixed order:
//  1. hierarchy diff: current membership vs the engine-acknowledged
//     baseline
//  2. mesh/transform diff: selected mesh objects in known, non-orphaned
//     groups, filtered through the scale heuristic
//  3. orphan + color enforcement
//
// Stages 1 and 2 are skipped together when the pass originated from the
// bridge's own classification write, to avoid feedback loops.
type ChangeDetector struct {
	scene    *Scene
	registry *GroupRegistry
	tracker  *SyncStateTracker

	// object name -> last seen scale, so the scale-change check is O(1)
	previousScales map[string]Vector3
}

func NewChangeDetector(scene *Scene, registry *GroupRegistry, tracker *SyncStateTracker) *ChangeDetector {
	return &ChangeDetector{
		scene:          scene,
		registry:       registry,
		tracker:        tracker,
		previousScales: map[string]Vector3{},
	}
}

// Run executes one detector pass. `classificationOrigin` marks a pass
// caused by the bridge's own classification write.
func (self *ChangeDetector) Run(events []ChangeEvent, classificationOrigin bool) {
	if !classificationOrigin {
		self.detectHierarchyChanges()
		self.unsyncMeshChanges(events)
	}
	self.enforceOrphansAndColors()
}

// stage 1: any group whose current member set differs from the set last
// acknowledged by the engine is unsynced.
func (self *ChangeDetector) detectHierarchyChanges() {
	currentSnapshot := self.registry.MembershipSnapshot()
	for _, groupName := range self.tracker.ExpectedMemberGroups() {
		// orphaned groups are visually distinguished but never re-marked
		if self.registry.IsOrphaned(groupName) {
			continue
		}
		expectedMembers, _ := self.tracker.ExpectedMembers(groupName)
		currentMembers := currentSnapshot[groupName]
		if !sameMembers(expectedMembers, currentMembers) {
			glog.V(2).Infof("[det]hierarchy drift %s\n", groupName)
			self.registry.MarkGroupUnsynced(groupName)
		}
	}
}

func sameMembers(a MemberSet, b MemberSet) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b[id] {
			return false
		}
	}
	return true
}

// stage 2: scan the event batch once against the selected mesh objects
// that belong to a known, non-orphaned group. A candidate event marks its
// group unsynced when any of:
//   - the group has no membership baseline yet
//   - the event is a geometry change
//   - the object's scale changed since last observed
//   - the event is transform-only, scale unchanged, and the group has more
//     than one member (multi-member groups must re-derive relative
//     placement on any member's move; single-member groups need not)
func (self *ChangeDetector) unsyncMeshChanges(events []ChangeEvent) {
	selected := self.scene.SelectedMeshObjects()
	if len(selected) == 0 {
		return
	}

	currentSnapshot := self.registry.MembershipSnapshot()

	type candidate struct {
		obj       *Object
		groupName string
	}
	candidates := map[Id]candidate{}
	for _, obj := range selected {
		if obj.Identity.IsZero() {
			continue
		}
		groupName, ok := self.registry.GroupName(obj)
		if !ok || self.registry.IsOrphaned(groupName) {
			continue
		}
		candidates[obj.Identity] = candidate{
			obj:       obj,
			groupName: groupName,
		}
	}

	for _, event := range events {
		if event.Kind != ChangeGeometry && event.Kind != ChangeTransform {
			continue
		}
		c, ok := candidates[event.Target]
		if !ok {
			continue
		}

		expectedMembers, hasBaseline := self.tracker.ExpectedMembers(c.groupName)
		memberCount := len(expectedMembers)
		if !hasBaseline {
			memberCount = len(currentSnapshot[c.groupName])
		}

		currentScale := c.obj.Scale
		previousScale, seen := self.previousScales[c.obj.Name]
		scaleChanged := seen && currentScale != previousScale

		markUnsynced := !hasBaseline ||
			event.Kind == ChangeGeometry ||
			scaleChanged ||
			(event.Kind == ChangeTransform && !scaleChanged && 1 < memberCount)

		if markUnsynced {
			glog.V(2).Infof("[det]%s drift %s (%s)\n", event.Kind, c.groupName, c.obj.Name)
			self.registry.MarkGroupUnsynced(c.groupName)
		}
	}

	// roll the scale cache forward for the objects we looked at
	for _, c := range candidates {
		self.previousScales[c.obj.Name] = c.obj.Scale
	}
}

// stage 3
func (self *ChangeDetector) enforceOrphansAndColors() {
	self.registry.UpdateOrphanedGroups()
	self.registry.UpdateColors()
}

// ClearScaleCache drops the last-seen scales, e.g. around undo/redo where
// stale scales would misreport changes.
func (self *ChangeDetector) ClearScaleCache() {
	for name := range self.previousScales {
		delete(self.previousScales, name)
	}
}

// RefreshScaleCache reseeds the cache from the current scene so the next
// pass compares against post-reconciliation scales.
func (self *ChangeDetector) RefreshScaleCache() {
	self.ClearScaleCache()
	for _, obj := range self.scene.SelectedMeshObjects() {
		self.previousScales[obj.Name] = obj.Scale
	}
}
