package bridge

// IdentityCache is the bidirectional identity <-> object index used on the
// mesh sync hot path. O(1) both directions, no string parsing.
//
// All access happens on the single scheduling thread (see the concurrency
// notes on `Bridge`), so there is no lock here.
type IdentityCache struct {
	byId map[Id]*Object
	ids  map[*Object]Id
}

func NewIdentityCache() *IdentityCache {
	return &IdentityCache{
		byId: map[Id]*Object{},
		ids:  map[*Object]Id{},
	}
}

// Associate binds the identity to the object, replacing any previous
// binding of either side.
func (self *IdentityCache) Associate(id Id, obj *Object) {
	if id.IsZero() || obj == nil {
		return
	}
	if previous, ok := self.byId[id]; ok && previous != obj {
		delete(self.ids, previous)
		previous.Identity = Id{}
	}
	if previousId, ok := self.ids[obj]; ok && previousId != id {
		delete(self.byId, previousId)
	}
	self.byId[id] = obj
	self.ids[obj] = id
	obj.Identity = id
}

func (self *IdentityCache) ObjectById(id Id) (*Object, bool) {
	obj, ok := self.byId[id]
	return obj, ok
}

func (self *IdentityCache) IdOf(obj *Object) (Id, bool) {
	id, ok := self.ids[obj]
	return id, ok
}

func (self *IdentityCache) Forget(obj *Object) {
	if id, ok := self.ids[obj]; ok {
		delete(self.byId, id)
		delete(self.ids, obj)
	}
}

func (self *IdentityCache) Len() int {
	return len(self.byId)
}
