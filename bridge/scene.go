package bridge

import (
	"fmt"
)

// Host-side scene model. The bridge does not talk to the host API directly;
// a host adapter maintains this model and calls the bridge entry points
// (see `Bridge`). Durable bridge state is persisted as key/value tags on
// collections, which the adapter writes through to the host file.

// known tag keys. tags are the durable record; everything else the bridge
// tracks can be rebuilt from them.
const (
	TagGroupName          = "pivot_group"
	TagSynced             = "pivot_synced"
	TagSurfaceType        = "pivot_surface_type"
	TagClassificationRoot = "pivot_classification_root"
)

// host collection color tag values
const (
	ColorTagNone      = "NONE"
	ColorTagNeedsSync = "COLOR_03"
	ColorTagSynced    = "COLOR_04"
)

// object attributes pushed to the engine per group
const AttrSurfaceType = "surface_type"

// SyncableAttributes are the object attributes kept homogeneous across a
// group and mirrored into the engine.
var SyncableAttributes = []string{
	AttrSurfaceType,
}

type Object struct {
	scene *Scene

	Name     string
	Mesh     bool
	Selected bool

	// zero until the object is first associated with engine-side state
	Identity Id

	Scale       Vector3
	WorldMatrix Matrix4

	// bumped whenever the engine pushes a new transform, so the adapter
	// knows to refresh the host's geometry/display state
	MeshVersion uint64

	attrs       map[string]string
	collections map[*Collection]bool
	parent      *Object
	children    []*Object
}

func (self *Object) Parent() *Object {
	return self.parent
}

func (self *Object) SetParent(parent *Object) {
	if self.parent != nil {
		for i, child := range self.parent.children {
			if child == self {
				self.parent.children = append(self.parent.children[:i], self.parent.children[i+1:]...)
				break
			}
		}
	}
	self.parent = parent
	if parent != nil {
		parent.children = append(parent.children, self)
	}
}

func (self *Object) Children() []*Object {
	return self.children
}

// the object and all transitive children
func (self *Object) SubtreeObjects() []*Object {
	objects := []*Object{self}
	for _, child := range self.children {
		objects = append(objects, child.SubtreeObjects()...)
	}
	return objects
}

func (self *Object) Attribute(name string) (string, bool) {
	value, ok := self.attrs[name]
	return value, ok
}

func (self *Object) SetAttribute(name string, value string) {
	if self.attrs == nil {
		self.attrs = map[string]string{}
	}
	self.attrs[name] = value
}

func (self *Object) SurfaceType() (string, bool) {
	return self.Attribute(AttrSurfaceType)
}

// collections the object is directly linked to
func (self *Object) Collections() []*Collection {
	collections := []*Collection{}
	for collection := range self.collections {
		collections = append(collections, collection)
	}
	return collections
}

func (self *Object) TouchMesh() {
	self.MeshVersion += 1
}

type Collection struct {
	scene *Scene

	name     string
	children []*Collection
	objects  []*Object
	tags     map[string]string
	colorTag string
	parent   *Collection
}

func (self *Collection) Name() string {
	return self.name
}

func (self *Collection) Children() []*Collection {
	return self.children
}

func (self *Collection) Objects() []*Object {
	return self.objects
}

// direct and nested objects
func (self *Collection) AllObjects() []*Object {
	objects := []*Object{}
	objects = append(objects, self.objects...)
	for _, child := range self.children {
		objects = append(objects, child.AllObjects()...)
	}
	return objects
}

func (self *Collection) Tag(key string) (string, bool) {
	value, ok := self.tags[key]
	return value, ok
}

func (self *Collection) SetTag(key string, value string) {
	if self.tags == nil {
		self.tags = map[string]string{}
	}
	self.tags[key] = value
}

func (self *Collection) DeleteTag(key string) {
	delete(self.tags, key)
}

// typed accessors for the known tags

func (self *Collection) GroupTag() (string, bool) {
	return self.Tag(TagGroupName)
}

func (self *Collection) SetGroupTag(name string) {
	self.SetTag(TagGroupName, name)
}

func (self *Collection) SyncedTag() bool {
	value, ok := self.Tag(TagSynced)
	return ok && value == "true"
}

func (self *Collection) SetSyncedTag(synced bool) {
	if synced {
		self.SetTag(TagSynced, "true")
	} else {
		self.SetTag(TagSynced, "false")
	}
}

func (self *Collection) SurfaceTypeTag() (string, bool) {
	return self.Tag(TagSurfaceType)
}

func (self *Collection) SetSurfaceTypeTag(surfaceType string) {
	self.SetTag(TagSurfaceType, surfaceType)
}

func (self *Collection) ClassificationRootTag() bool {
	_, ok := self.Tag(TagClassificationRoot)
	return ok
}

func (self *Collection) ColorTag() string {
	return self.colorTag
}

func (self *Collection) SetColorTag(colorTag string) {
	self.colorTag = colorTag
}

// LinkChild links `child` under this collection.
// Fails when a different child with the same name is already linked,
// mirroring the host's duplicate name rejection.
func (self *Collection) LinkChild(child *Collection) error {
	for _, existing := range self.children {
		if existing == child {
			return nil
		}
		if existing.name == child.name {
			return fmt.Errorf("duplicate child collection name %s", child.name)
		}
	}
	if child.parent != nil {
		child.parent.unlinkChild(child)
	}
	child.parent = self
	self.children = append(self.children, child)
	return nil
}

func (self *Collection) unlinkChild(child *Collection) {
	for i, existing := range self.children {
		if existing == child {
			self.children = append(self.children[:i], self.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

func (self *Collection) HasChild(child *Collection) bool {
	for _, existing := range self.children {
		if existing == child {
			return true
		}
	}
	return false
}

func (self *Collection) LinkObject(obj *Object) {
	if obj.collections[self] {
		return
	}
	if obj.collections == nil {
		obj.collections = map[*Collection]bool{}
	}
	obj.collections[self] = true
	self.objects = append(self.objects, obj)
}

func (self *Collection) UnlinkObject(obj *Object) {
	if !obj.collections[self] {
		return
	}
	delete(obj.collections, self)
	for i, existing := range self.objects {
		if existing == obj {
			self.objects = append(self.objects[:i], self.objects[i+1:]...)
			return
		}
	}
}

func (self *Collection) ContainsObject(obj *Object) bool {
	if obj.collections[self] {
		return true
	}
	for _, child := range self.children {
		if child.ContainsObject(obj) {
			return true
		}
	}
	return false
}

func (self *Collection) HasMeshObjects() bool {
	for _, obj := range self.objects {
		if obj.Mesh {
			return true
		}
	}
	for _, child := range self.children {
		if child.HasMeshObjects() {
			return true
		}
	}
	return false
}

type Scene struct {
	root        *Collection
	collections map[string]*Collection
	objects     map[string]*Object
	identities  *IdentityCache
}

func NewScene() *Scene {
	scene := &Scene{
		collections: map[string]*Collection{},
		objects:     map[string]*Object{},
		identities:  NewIdentityCache(),
	}
	scene.root = &Collection{
		scene:    scene,
		name:     "Scene Collection",
		colorTag: ColorTagNone,
	}
	return scene
}

func (self *Scene) Root() *Collection {
	return self.root
}

func (self *Scene) Identities() *IdentityCache {
	return self.identities
}

func (self *Scene) Collection(name string) (*Collection, bool) {
	collection, ok := self.collections[name]
	return collection, ok
}

func (self *Scene) Object(name string) (*Object, bool) {
	obj, ok := self.objects[name]
	return obj, ok
}

func (self *Scene) Objects() []*Object {
	objects := []*Object{}
	for _, obj := range self.objects {
		objects = append(objects, obj)
	}
	return objects
}

func (self *Scene) SelectedMeshObjects() []*Object {
	objects := []*Object{}
	for _, obj := range self.objects {
		if obj.Selected && obj.Mesh {
			objects = append(objects, obj)
		}
	}
	return objects
}

func (self *Scene) NewCollection(name string) (*Collection, error) {
	if _, ok := self.collections[name]; ok {
		return nil, fmt.Errorf("duplicate collection name %s", name)
	}
	collection := &Collection{
		scene:    self,
		name:     name,
		colorTag: ColorTagNone,
	}
	self.collections[name] = collection
	return collection, nil
}

func (self *Scene) RenameCollection(collection *Collection, newName string) error {
	if collection.name == newName {
		return nil
	}
	if _, ok := self.collections[newName]; ok {
		return fmt.Errorf("duplicate collection name %s", newName)
	}
	delete(self.collections, collection.name)
	collection.name = newName
	self.collections[newName] = collection
	return nil
}

func (self *Scene) RemoveCollection(collection *Collection) {
	if collection.parent != nil {
		collection.parent.unlinkChild(collection)
	}
	for _, obj := range append([]*Object{}, collection.objects...) {
		collection.UnlinkObject(obj)
	}
	delete(self.collections, collection.name)
}

func (self *Scene) NewObject(name string, mesh bool) (*Object, error) {
	if _, ok := self.objects[name]; ok {
		return nil, fmt.Errorf("duplicate object name %s", name)
	}
	obj := &Object{
		scene:       self,
		Name:        name,
		Mesh:        mesh,
		Scale:       Vec3(1, 1, 1),
		WorldMatrix: IdentityMatrix4(),
	}
	self.objects[name] = obj
	return obj, nil
}

func (self *Scene) RemoveObject(obj *Object) {
	for _, collection := range obj.Collections() {
		collection.UnlinkObject(obj)
	}
	self.identities.Forget(obj)
	delete(self.objects, obj.Name)
}

// EnsureIdentity associates the object with engine-side state,
// generating a fresh identity if it never had one.
func (self *Scene) EnsureIdentity(obj *Object) Id {
	if !obj.Identity.IsZero() {
		return obj.Identity
	}
	id := NewId()
	self.identities.Associate(id, obj)
	return id
}

// AssociateIdentity adopts an engine-assigned identity for the object.
func (self *Scene) AssociateIdentity(id Id, obj *Object) {
	self.identities.Associate(id, obj)
}
