package bridge

import (
	"time"

	"github.com/golang/glog"

	"github.com/nwierzbowski/pivot-blender-bridge/protocol"
)

type BridgeSettings struct {
	// poll interval the host adapter should drive OnTick at
	TickInterval time.Duration

	// cap on mesh sync batches drained per tick, so a burst from the
	// engine cannot stall the host thread
	MaxMeshSyncBatchesPerTick int
}

func DefaultBridgeSettings() *BridgeSettings {
	return &BridgeSettings{
		TickInterval:              10 * time.Millisecond,
		MaxMeshSyncBatchesPerTick: 4,
	}
}

// Bridge is the top-level controller that owns all bridge state: the group
// registry, the sync state tracker, the change detector, and the mesh
// transform sync. The host adapter owns the actual callback registration
// and drives the two entry points:
//
//	OnSceneMutation(events)  once per host mutation batch
//	OnTick()                 on the poll timer
//
// plus OnUndoBegin/OnUndoEnd/OnRedoEnd around undo/redo.
//
// All entry points must be called from the host's single scripting thread;
// neither trigger source overlaps, so bridge state carries no locks. The
// engine channel is the only component with internal concurrency.
type Bridge struct {
	scene    *Scene
	registry *GroupRegistry
	tracker  *SyncStateTracker
	detector *ChangeDetector
	meshSync *MeshTransformSync
	channel  EngineChannel
	settings *BridgeSettings

	classifier Classifier

	// set by BeginClassificationPass and consumed at the top of the next
	// mutation pass. Assumes the host never interleaves mutation
	// notifications inside a single classification write; that host
	// behavior is unverified, and if it ever does, passes undercount the
	// skip (they run the full diff, which is safe but redundant).
	classificationPass bool
}

func NewBridge(scene *Scene, channel EngineChannel, settings *BridgeSettings) *Bridge {
	if settings == nil {
		settings = DefaultBridgeSettings()
	}
	registry := NewGroupRegistry(scene)
	tracker := NewSyncStateTracker(scene, registry, channel)
	return &Bridge{
		scene:    scene,
		registry: registry,
		tracker:  tracker,
		detector: NewChangeDetector(scene, registry, tracker),
		meshSync: NewMeshTransformSync(scene),
		channel:  channel,
		settings: settings,
	}
}

func (self *Bridge) Scene() *Scene {
	return self.scene
}

func (self *Bridge) Registry() *GroupRegistry {
	return self.registry
}

func (self *Bridge) Tracker() *SyncStateTracker {
	return self.tracker
}

func (self *Bridge) Detector() *ChangeDetector {
	return self.detector
}

func (self *Bridge) Settings() *BridgeSettings {
	return self.settings
}

func (self *Bridge) SetClassifier(classifier Classifier) {
	self.classifier = classifier
}

// BeginClassificationPass flags the next mutation pass as originating from
// the bridge's own classification write, so the detector does not re-mark
// groups the bridge just synced.
func (self *Bridge) BeginClassificationPass() {
	self.classificationPass = true
}

// OnSceneMutation runs one detector pass over a host mutation batch.
func (self *Bridge) OnSceneMutation(events []ChangeEvent) {
	classificationOrigin := self.classificationPass
	self.classificationPass = false
	self.detector.Run(events, classificationOrigin)
}

// OnTick drains pending mesh sync batches from the engine and applies
// them. Non-blocking; returns the number of objects updated.
func (self *Bridge) OnTick() int {
	applied := 0
	for i := 0; i < self.settings.MaxMeshSyncBatchesPerTick; i += 1 {
		batch, ok := self.channel.PollMeshSync()
		if !ok {
			break
		}
		applied += self.meshSync.Apply(batch)
	}
	return applied
}

func (self *Bridge) OnUndoBegin() {
	// scales recorded before the undo describe a state that is about to
	// be rewritten
	self.detector.ClearScaleCache()
}

// OnUndoEnd reconciles expected engine state with the restored scene:
// every (group, attribute) pair is pushed at most once and reseeded.
func (self *Bridge) OnUndoEnd() {
	self.reconcileAfterHistory()
}

func (self *Bridge) OnRedoEnd() {
	self.reconcileAfterHistory()
}

func (self *Bridge) reconcileAfterHistory() {
	pairs, groups := self.tracker.SyncSceneAfterUndo(self.scene.Objects())
	glog.V(1).Infof("[det]history reconcile pairs=%d groups=%d\n", pairs, groups)
	self.detector.RefreshScaleCache()
}

// MarkGroupSynced records a confirmed engine round trip for the group:
// flips the sync flag and captures the membership baseline the hierarchy
// diff compares against.
func (self *Bridge) MarkGroupSynced(groupName string) {
	self.registry.MarkGroupSynced(groupName)
	snapshot := self.registry.MembershipSnapshot()
	self.tracker.SetExpectedMembers(groupName, snapshot[groupName])
}

func (self *Bridge) MarkGroupUnsynced(groupName string) {
	self.registry.MarkGroupUnsynced(groupName)
}

// DropGroups stops tracking the named groups everywhere: registry,
// expected state, and membership baselines.
func (self *Bridge) DropGroups(names []string) {
	self.registry.DropGroups(names)
	self.tracker.DropGroups(names)
}

// OnCollectionRenamed migrates all per-name state when the host renames a
// group's backing collection.
func (self *Bridge) OnCollectionRenamed(collection *Collection) {
	if oldName, newName, renamed := self.registry.OnCollectionRenamed(collection); renamed {
		self.tracker.RenameGroup(oldName, newName)
	}
}

// Classify runs the injected classifier over the objects and applies the
// resulting assignments.
func (self *Bridge) Classify(objects []*Object, root *Collection) (int, bool) {
	if self.classifier == nil {
		return 0, false
	}
	assignments, err := self.classifier.ClassifyAndApply(objects, root)
	if err != nil {
		glog.Infof("[det]classify error = %s\n", err)
		return 0, false
	}
	return self.ApplyClassifications(assignments, root)
}

// ApplyClassifications links classified objects into their group
// collections, then pushes all (group, surface type) pairs to the engine
// in one batched command. On success every touched group is marked synced
// and its expected state seeded; on failure the host keeps the new
// grouping but the groups stay unsynced, so the drift is visible and
// repairable.
//
// Returns (groups touched, engine acknowledged).
func (self *Bridge) ApplyClassifications(assignments []GroupAssignment, root *Collection) (int, bool) {
	if len(assignments) == 0 {
		return 0, true
	}

	surfaceTypes := map[string]string{}
	order := []string{}
	for _, assignment := range assignments {
		collection, ok := self.registry.GetOrCreateGroupCollection(assignment.Object, assignment.GroupName, root)
		if !ok {
			continue
		}
		self.registry.AssignObjectToGroup(assignment.Object, collection)
		self.scene.EnsureIdentity(assignment.Object)
		assignment.Object.SetAttribute(AttrSurfaceType, assignment.SurfaceType)
		collection.SetSurfaceTypeTag(assignment.SurfaceType)
		if _, seen := surfaceTypes[assignment.GroupName]; !seen {
			order = append(order, assignment.GroupName)
		}
		surfaceTypes[assignment.GroupName] = assignment.SurfaceType
	}

	if len(order) == 0 {
		return 0, false
	}

	// flagged only once a group was actually touched, so a fully failed
	// apply does not make the next user mutation pass skip its diff
	self.BeginClassificationPass()

	classifications := []protocol.Classification{}
	for _, groupName := range order {
		classifications = append(classifications, protocol.Classification{
			GroupName:   groupName,
			SurfaceType: surfaceTypes[groupName],
		})
	}

	response, err := self.channel.Send(&protocol.Command{
		Id:              protocol.CommandSyncGroupClassifications,
		Op:              protocol.OpSyncGroupClassifications,
		Classifications: classifications,
	})
	if err != nil || !response.Ok {
		if err != nil {
			glog.Infof("[det]classification batch send error = %s\n", err)
		} else {
			glog.Infof("[det]classification batch rejected = %s\n", response.Error)
		}
		for _, groupName := range order {
			self.registry.MarkGroupUnsynced(groupName)
		}
		return len(order), false
	}

	for _, groupName := range order {
		self.MarkGroupSynced(groupName)
		self.tracker.SeedExpected(groupName, AttrSurfaceType, surfaceTypes[groupName])
	}
	return len(order), true
}
