package bridge

import (
	"sort"
	"strings"

	"github.com/golang/glog"

	"golang.org/x/exp/maps"
)

// group names with this prefix signal a group promoted from a collection the
// user already had, rather than one created by classification
const DerivedGroupPrefix = "COL_"

type MemberSet = map[Id]bool

// GroupRegistry discovers and tags collections as logical groups, computes
// membership snapshots, and owns orphan detection and the visual sync
// markers. Registry mutations are best-effort: host-link failures
// (duplicate names) report "not performed" instead of raising.
type GroupRegistry struct {
	scene *Scene

	// set when the host scene designates a dedicated objects collection,
	// otherwise groups live directly under the scene root
	objectsRoot *Collection

	// every group name this registry has ever managed in this session
	managed map[string]bool

	// monotonic until explicitly cleared
	orphaned map[string]bool

	// collection -> last seen name, for rename migration
	lastNames map[*Collection]string
}

func NewGroupRegistry(scene *Scene) *GroupRegistry {
	return &GroupRegistry{
		scene:     scene,
		managed:   map[string]bool{},
		orphaned:  map[string]bool{},
		lastNames: map[*Collection]string{},
	}
}

func (self *GroupRegistry) SetObjectsRoot(root *Collection) {
	self.objectsRoot = root
}

func (self *GroupRegistry) ObjectsRoot() *Collection {
	if self.objectsRoot != nil {
		return self.objectsRoot
	}
	return self.scene.Root()
}

// GroupName returns the managed group the object belongs to, looking at the
// object's containing collections.
func (self *GroupRegistry) GroupName(obj *Object) (string, bool) {
	if obj == nil {
		return "", false
	}
	for _, collection := range obj.Collections() {
		if self.managed[collection.Name()] {
			return collection.Name(), true
		}
	}
	return "", false
}

// IterGroupCollections returns the live collections for every managed group
// name that still resolves.
func (self *GroupRegistry) IterGroupCollections() []*Collection {
	names := maps.Keys(self.managed)
	sort.Strings(names)
	collections := []*Collection{}
	for _, name := range names {
		if collection, ok := self.scene.Collection(name); ok {
			collections = append(collections, collection)
		}
	}
	return collections
}

func (self *GroupRegistry) AdoptGroups(names []string) {
	for _, name := range names {
		self.managed[name] = true
		if collection, ok := self.scene.Collection(name); ok {
			self.lastNames[collection] = name
		}
	}
}

func (self *GroupRegistry) ManagedGroupNames() []string {
	names := maps.Keys(self.managed)
	sort.Strings(names)
	return names
}

func (self *GroupRegistry) IsManaged(name string) bool {
	return self.managed[name]
}

func (self *GroupRegistry) HasGroups() bool {
	return 0 < len(self.managed)
}

// MembershipSnapshot rebuilds the full group -> member identity mapping.
// O(total members across managed groups).
func (self *GroupRegistry) MembershipSnapshot() map[string]MemberSet {
	snapshot := map[string]MemberSet{}
	for _, collection := range self.IterGroupCollections() {
		members := MemberSet{}
		for _, obj := range collection.Objects() {
			if !obj.Identity.IsZero() {
				members[obj.Identity] = true
			}
		}
		snapshot[collection.Name()] = members
	}
	return snapshot
}

// GetOrCreateGroupCollection returns the collection backing `name` under
// `root`, creating or promoting one if needed:
//  1. reuse an existing tagged child of root
//  2. for collection-derived names, promote and rename the seed object's
//     existing top-level collection
//  3. otherwise create a new collection and link it under root
//
// The result is tagged with the group name and an initial synced flag of
// true. Returns false when the host link step fails.
func (self *GroupRegistry) GetOrCreateGroupCollection(seed *Object, name string, root *Collection) (*Collection, bool) {
	for _, child := range root.Children() {
		if tag, ok := child.GroupTag(); ok && tag == name {
			self.adopt(child, name)
			return child, true
		}
	}

	if strings.HasPrefix(name, DerivedGroupPrefix) && seed != nil {
		if top := self.findTopCollectionFor(seed, root); top != nil {
			if err := self.scene.RenameCollection(top, name); err != nil {
				glog.V(1).Infof("[reg]promote %s failed = %s\n", name, err)
				return nil, false
			}
			self.tagGroup(top, name)
			return top, true
		}
	}

	collection, err := self.scene.NewCollection(name)
	if err != nil {
		glog.V(1).Infof("[reg]create %s failed = %s\n", name, err)
		return nil, false
	}
	if err := root.LinkChild(collection); err != nil {
		glog.V(1).Infof("[reg]link %s failed = %s\n", name, err)
		return nil, false
	}
	self.tagGroup(collection, name)
	return collection, true
}

func (self *GroupRegistry) tagGroup(collection *Collection, name string) {
	collection.SetGroupTag(name)
	collection.SetSyncedTag(true)
	self.adopt(collection, name)
}

func (self *GroupRegistry) adopt(collection *Collection, name string) {
	self.managed[name] = true
	self.lastNames[collection] = name
}

func (self *GroupRegistry) findTopCollectionFor(obj *Object, root *Collection) *Collection {
	for _, child := range root.Children() {
		if child.ContainsObject(obj) {
			return child
		}
	}
	return nil
}

// AssignObjectToGroup links the object into the group collection and
// unlinks it from every other managed group collection. An object belongs
// to at most one group at a time.
func (self *GroupRegistry) AssignObjectToGroup(obj *Object, collection *Collection) {
	for _, other := range self.IterGroupCollections() {
		if other != collection {
			other.UnlinkObject(obj)
		}
	}
	collection.LinkObject(obj)
}

// UpdateOrphanedGroups marks managed groups orphaned when their collection
// is missing, no longer under the objects root, or holds no mesh objects.
// Monotonic: groups are never un-orphaned here.
func (self *GroupRegistry) UpdateOrphanedGroups() {
	root := self.ObjectsRoot()
	for name := range self.managed {
		if self.orphaned[name] {
			continue
		}
		collection, ok := self.scene.Collection(name)
		if !ok {
			glog.Infof("[reg]orphaned %s (missing)\n", name)
			self.orphaned[name] = true
			continue
		}
		if !root.HasChild(collection) || !collection.HasMeshObjects() {
			glog.Infof("[reg]orphaned %s\n", name)
			self.orphaned[name] = true
		}
	}
}

func (self *GroupRegistry) IsOrphaned(name string) bool {
	return self.orphaned[name]
}

func (self *GroupRegistry) OrphanedGroups() []string {
	names := maps.Keys(self.orphaned)
	sort.Strings(names)
	return names
}

// ClearOrphans resets the orphan set after out-of-band reconciliation.
func (self *GroupRegistry) ClearOrphans() {
	maps.Clear(self.orphaned)
}

// DropGroups stops managing the named groups.
func (self *GroupRegistry) DropGroups(names []string) {
	for _, name := range names {
		delete(self.managed, name)
		delete(self.orphaned, name)
		if collection, ok := self.scene.Collection(name); ok {
			delete(self.lastNames, collection)
			collection.DeleteTag(TagGroupName)
		}
	}
}

// sync flag primitives. The flag lives as a tag on the backing collection
// so it survives with the host file.

func (self *GroupRegistry) GroupSynced(name string) bool {
	if collection, ok := self.scene.Collection(name); ok {
		return collection.SyncedTag()
	}
	return false
}

func (self *GroupRegistry) MarkGroupUnsynced(name string) {
	if collection, ok := self.scene.Collection(name); ok {
		if collection.SyncedTag() {
			glog.V(1).Infof("[reg]unsynced %s\n", name)
		}
		collection.SetSyncedTag(false)
	}
}

func (self *GroupRegistry) MarkGroupSynced(name string) {
	if collection, ok := self.scene.Collection(name); ok {
		collection.SetSyncedTag(true)
	}
}

// UpdateColors reconciles every managed group's color tag against its sync
// flag and orphan status. Writes are skipped when the tag already matches.
// Returns the number of host writes performed.
func (self *GroupRegistry) UpdateColors() int {
	writes := 0
	for _, collection := range self.IterGroupCollections() {
		var correct string
		switch {
		case self.orphaned[collection.Name()]:
			correct = ColorTagNone
		case collection.SyncedTag():
			correct = ColorTagSynced
		default:
			correct = ColorTagNeedsSync
		}
		if collection.ColorTag() != correct {
			collection.SetColorTag(correct)
			writes += 1
		}
	}
	return writes
}

// OnCollectionRenamed migrates managed-name bookkeeping when the host
// renames a group's backing collection. The sync flag travels with the
// collection's tags; the managed and orphan sets are keyed by name and
// migrate here. Returns the old and new names when a managed group moved.
func (self *GroupRegistry) OnCollectionRenamed(collection *Collection) (string, string, bool) {
	oldName, tracked := self.lastNames[collection]
	newName := collection.Name()
	self.lastNames[collection] = newName
	if !tracked || oldName == newName || !self.managed[oldName] {
		return "", "", false
	}

	glog.Infof("[reg]rename %s -> %s\n", oldName, newName)
	delete(self.managed, oldName)
	self.managed[newName] = true
	if self.orphaned[oldName] {
		delete(self.orphaned, oldName)
		self.orphaned[newName] = true
	}
	collection.SetGroupTag(newName)
	return oldName, newName, true
}
