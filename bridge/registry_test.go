package bridge

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestGroupNameLookup(t *testing.T) {
	b, _ := newTestBridge()
	objects := addTestGroup(b, "Tables", "table1")

	name, ok := b.Registry().GroupName(objects[0])
	assert.Equal(t, true, ok)
	assert.Equal(t, "Tables", name)

	loose, _ := b.Scene().NewObject("loose", true)
	_, ok = b.Registry().GroupName(loose)
	assert.Equal(t, false, ok)
}

func TestAssignObjectToGroupUnlinksOthers(t *testing.T) {
	b, _ := newTestBridge()
	objects := addTestGroup(b, "Tables", "table1")
	addTestGroup(b, "Chairs", "chair1")

	chairs, _ := b.Scene().Collection("Chairs")
	b.Registry().AssignObjectToGroup(objects[0], chairs)

	name, ok := b.Registry().GroupName(objects[0])
	assert.Equal(t, true, ok)
	assert.Equal(t, "Chairs", name)

	tables, _ := b.Scene().Collection("Tables")
	assert.Equal(t, false, tables.ContainsObject(objects[0]))
}

func TestMembershipSnapshot(t *testing.T) {
	b, _ := newTestBridge()
	objects := addTestGroup(b, "Tables", "table1", "table2")

	snapshot := b.Registry().MembershipSnapshot()
	assert.Equal(t, 1, len(snapshot))
	assert.Equal(t, 2, len(snapshot["Tables"]))
	assert.Equal(t, true, snapshot["Tables"][objects[0].Identity])
	assert.Equal(t, true, snapshot["Tables"][objects[1].Identity])
}

func TestGetOrCreateGroupCollectionReuse(t *testing.T) {
	b, _ := newTestBridge()
	root := b.Scene().Root()

	created, ok := b.Registry().GetOrCreateGroupCollection(nil, "Tables", root)
	assert.Equal(t, true, ok)
	assert.Equal(t, true, created.SyncedTag())
	tag, _ := created.GroupTag()
	assert.Equal(t, "Tables", tag)

	reused, ok := b.Registry().GetOrCreateGroupCollection(nil, "Tables", root)
	assert.Equal(t, true, ok)
	assert.Equal(t, created, reused)
}

func TestGetOrCreateGroupCollectionPromotesDerived(t *testing.T) {
	b, _ := newTestBridge()
	scene := b.Scene()
	root := scene.Root()

	// the user already organized the seed into a top-level collection
	legacy, _ := scene.NewCollection("Legacy")
	assert.Equal(t, nil, root.LinkChild(legacy))
	seed, _ := scene.NewObject("seed", true)
	legacy.LinkObject(seed)

	promoted, ok := b.Registry().GetOrCreateGroupCollection(seed, DerivedGroupPrefix+"Legacy", root)
	assert.Equal(t, true, ok)
	assert.Equal(t, legacy, promoted)
	assert.Equal(t, DerivedGroupPrefix+"Legacy", promoted.Name())
	assert.Equal(t, true, b.Registry().IsManaged(DerivedGroupPrefix+"Legacy"))
}

func TestGetOrCreateGroupCollectionLinkFailure(t *testing.T) {
	b, _ := newTestBridge()
	scene := b.Scene()
	root := scene.Root()

	// an unmanaged collection already occupies the name
	_, err := scene.NewCollection("Tables")
	assert.Equal(t, nil, err)

	_, ok := b.Registry().GetOrCreateGroupCollection(nil, "Tables", root)
	assert.Equal(t, false, ok)
}

func TestOrphanMonotonicity(t *testing.T) {
	b, _ := newTestBridge()
	objects := addTestGroup(b, "Tables", "table1")

	b.Registry().UpdateOrphanedGroups()
	assert.Equal(t, false, b.Registry().IsOrphaned("Tables"))

	// losing the last mesh member orphans the group
	tables, _ := b.Scene().Collection("Tables")
	tables.UnlinkObject(objects[0])
	b.Registry().UpdateOrphanedGroups()
	assert.Equal(t, true, b.Registry().IsOrphaned("Tables"))

	// regaining members does not un-orphan automatically
	tables.LinkObject(objects[0])
	b.Registry().UpdateOrphanedGroups()
	assert.Equal(t, true, b.Registry().IsOrphaned("Tables"))

	b.Registry().ClearOrphans()
	b.Registry().UpdateOrphanedGroups()
	assert.Equal(t, false, b.Registry().IsOrphaned("Tables"))
}

func TestOrphanWhenMissingOrUnrooted(t *testing.T) {
	b, _ := newTestBridge()
	addTestGroup(b, "Tables", "table1")
	addTestGroup(b, "Chairs", "chair1")

	tables, _ := b.Scene().Collection("Tables")
	b.Scene().RemoveCollection(tables)

	// move Chairs out from under the objects root
	elsewhere, _ := b.Scene().NewCollection("Elsewhere")
	chairs, _ := b.Scene().Collection("Chairs")
	assert.Equal(t, nil, elsewhere.LinkChild(chairs))

	b.Registry().UpdateOrphanedGroups()
	assert.Equal(t, true, b.Registry().IsOrphaned("Tables"))
	assert.Equal(t, true, b.Registry().IsOrphaned("Chairs"))
}

func TestUpdateColors(t *testing.T) {
	b, _ := newTestBridge()
	addTestGroup(b, "Tables", "table1")
	addTestGroup(b, "Chairs", "chair1")

	tables, _ := b.Scene().Collection("Tables")
	chairs, _ := b.Scene().Collection("Chairs")

	writes := b.Registry().UpdateColors()
	assert.Equal(t, 2, writes)
	assert.Equal(t, ColorTagSynced, tables.ColorTag())
	assert.Equal(t, ColorTagSynced, chairs.ColorTag())

	// redundant host writes are skipped
	writes = b.Registry().UpdateColors()
	assert.Equal(t, 0, writes)

	b.Registry().MarkGroupUnsynced("Tables")
	writes = b.Registry().UpdateColors()
	assert.Equal(t, 1, writes)
	assert.Equal(t, ColorTagNeedsSync, tables.ColorTag())

	// orphaned wins over the sync flag
	chairObjects := chairs.Objects()
	chairs.UnlinkObject(chairObjects[0])
	b.Registry().UpdateOrphanedGroups()
	writes = b.Registry().UpdateColors()
	assert.Equal(t, 1, writes)
	assert.Equal(t, ColorTagNone, chairs.ColorTag())
}

func TestRenameMigration(t *testing.T) {
	b, _ := newTestBridge()
	objects := addTestGroup(b, "Tables", "table1")

	b.Tracker().SeedExpected("Tables", AttrSurfaceType, "floor")
	b.MarkGroupSynced("Tables")

	tables, _ := b.Scene().Collection("Tables")
	assert.Equal(t, nil, b.Scene().RenameCollection(tables, "Desks"))
	b.OnCollectionRenamed(tables)

	assert.Equal(t, false, b.Registry().IsManaged("Tables"))
	assert.Equal(t, true, b.Registry().IsManaged("Desks"))

	name, ok := b.Registry().GroupName(objects[0])
	assert.Equal(t, true, ok)
	assert.Equal(t, "Desks", name)

	// expected state and membership baseline follow the new name
	expected, ok := b.Tracker().Expected("Desks", AttrSurfaceType)
	assert.Equal(t, true, ok)
	assert.Equal(t, "floor", expected)
	_, ok = b.Tracker().Expected("Tables", AttrSurfaceType)
	assert.Equal(t, false, ok)

	members, ok := b.Tracker().ExpectedMembers("Desks")
	assert.Equal(t, true, ok)
	assert.Equal(t, 1, len(members))
}

func TestRenameMigratesOrphanStatus(t *testing.T) {
	b, _ := newTestBridge()
	objects := addTestGroup(b, "Tables", "table1")

	tables, _ := b.Scene().Collection("Tables")
	tables.UnlinkObject(objects[0])
	b.Registry().UpdateOrphanedGroups()
	assert.Equal(t, true, b.Registry().IsOrphaned("Tables"))

	assert.Equal(t, nil, b.Scene().RenameCollection(tables, "Desks"))
	b.OnCollectionRenamed(tables)
	assert.Equal(t, true, b.Registry().IsOrphaned("Desks"))
	assert.Equal(t, false, b.Registry().IsOrphaned("Tables"))
}

func TestDropGroups(t *testing.T) {
	b, _ := newTestBridge()
	addTestGroup(b, "Tables", "table1")
	b.Tracker().SeedExpected("Tables", AttrSurfaceType, "floor")
	b.MarkGroupSynced("Tables")

	b.DropGroups([]string{"Tables"})
	assert.Equal(t, false, b.Registry().IsManaged("Tables"))
	_, ok := b.Tracker().Expected("Tables", AttrSurfaceType)
	assert.Equal(t, false, ok)
	_, ok = b.Tracker().ExpectedMembers("Tables")
	assert.Equal(t, false, ok)

	tables, _ := b.Scene().Collection("Tables")
	_, ok = tables.GroupTag()
	assert.Equal(t, false, ok)
}
