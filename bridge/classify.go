package bridge

// Selection qualification and classification application. The actual
// classification algorithm runs in the engine; a Classifier collaborator
// produces group assignments and the bridge applies them to the scene and
// pushes them over the channel in one batch.

// GroupAssignment is one classified object: which logical group it landed
// in and the surface type the engine derived for that group.
type GroupAssignment struct {
	Object      *Object
	GroupName   string
	SurfaceType string
}

// Classifier is the out-of-scope classification engine. Implementations
// may call back into the engine process or run host-side heuristics.
type Classifier interface {
	ClassifyAndApply(objects []*Object, root *Collection) ([]GroupAssignment, error)
}

// SelectionHasQualifying reports whether the selection touches at least
// one candidate cluster under root that contains a mesh. Mirrors
// QualifyingForSelection without materializing the object lists.
func SelectionHasQualifying(selected []*Object, root *Collection) bool {
	return 0 < len(qualifyingForSelection(selected, root, true))
}

// QualifyingForSelection expands the selection to whole candidate
// clusters: any child collection of root (skipping the bridge's own
// bookkeeping collections) or root-level object subtree that contains both
// a selected object and a mesh.
func QualifyingForSelection(selected []*Object, root *Collection) []*Object {
	return qualifyingForSelection(selected, root, false)
}

func qualifyingForSelection(selected []*Object, root *Collection, firstOnly bool) []*Object {
	if len(selected) == 0 || root == nil {
		return nil
	}

	selectedSet := map[*Object]bool{}
	for _, obj := range selected {
		selectedSet[obj] = true
	}

	anyMesh := false
	for _, obj := range root.AllObjects() {
		if obj.Mesh {
			anyMesh = true
			break
		}
	}
	if !anyMesh {
		return nil
	}

	qualifying := []*Object{}

	clusterQualifies := func(members []*Object) bool {
		hasSelected := false
		hasMesh := false
		for _, member := range members {
			if selectedSet[member] {
				hasSelected = true
			}
			if member.Mesh {
				hasMesh = true
			}
			if hasSelected && hasMesh {
				return true
			}
		}
		return false
	}

	for _, child := range root.Children() {
		// skip collections the bridge uses for classification bookkeeping
		if child.ClassificationRootTag() {
			continue
		}
		members := child.AllObjects()
		if clusterQualifies(members) {
			qualifying = append(qualifying, members...)
			if firstOnly {
				return qualifying
			}
		}
	}

	for _, rootObj := range root.Objects() {
		members := rootObj.SubtreeObjects()
		if clusterQualifies(members) {
			qualifying = append(qualifying, members...)
			if firstOnly {
				return qualifying
			}
		}
	}

	return qualifying
}
