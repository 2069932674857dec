package bridge

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestQualifyingForSelectionCollections(t *testing.T) {
	scene := NewScene()
	root := scene.Root()

	furniture, _ := scene.NewCollection("Furniture")
	assert.Equal(t, nil, root.LinkChild(furniture))
	chair, _ := scene.NewObject("chair", true)
	lamp, _ := scene.NewObject("lamp", false)
	furniture.LinkObject(chair)
	furniture.LinkObject(lamp)

	decor, _ := scene.NewCollection("Decor")
	assert.Equal(t, nil, root.LinkChild(decor))
	plant, _ := scene.NewObject("plant", true)
	decor.LinkObject(plant)

	// selecting the lamp pulls in the whole furniture cluster
	qualifying := QualifyingForSelection([]*Object{lamp}, root)
	assert.Equal(t, 2, len(qualifying))
	assert.Equal(t, true, SelectionHasQualifying([]*Object{lamp}, root))

	// nothing selected in decor's cluster
	assert.Equal(t, false, SelectionHasQualifying(nil, root))
}

func TestQualifyingSkipsBookkeepingCollections(t *testing.T) {
	scene := NewScene()
	root := scene.Root()

	managed, _ := scene.NewCollection("Tables")
	managed.SetTag(TagClassificationRoot, "true")
	assert.Equal(t, nil, root.LinkChild(managed))
	table, _ := scene.NewObject("table", true)
	managed.LinkObject(table)

	assert.Equal(t, false, SelectionHasQualifying([]*Object{table}, root))
}

func TestQualifyingForSelectionObjectSubtrees(t *testing.T) {
	scene := NewScene()
	root := scene.Root()

	parent, _ := scene.NewObject("parent", false)
	child, _ := scene.NewObject("child", true)
	child.SetParent(parent)
	root.LinkObject(parent)
	root.LinkObject(child)

	// selecting the non-mesh parent qualifies the subtree because a
	// child carries a mesh
	qualifying := QualifyingForSelection([]*Object{parent}, root)
	assert.Equal(t, 2, len(qualifying))
}

func TestQualifyingRequiresMeshes(t *testing.T) {
	scene := NewScene()
	root := scene.Root()

	empties, _ := scene.NewCollection("Empties")
	assert.Equal(t, nil, root.LinkChild(empties))
	e1, _ := scene.NewObject("e1", false)
	empties.LinkObject(e1)

	assert.Equal(t, false, SelectionHasQualifying([]*Object{e1}, root))
	assert.Equal(t, 0, len(QualifyingForSelection([]*Object{e1}, root)))
}
