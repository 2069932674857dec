package bridge

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestIdentityCache(t *testing.T) {
	scene := NewScene()
	cache := scene.Identities()

	a, _ := scene.NewObject("a", true)
	b, _ := scene.NewObject("b", true)

	idA := NewId()
	cache.Associate(idA, a)

	obj, ok := cache.ObjectById(idA)
	assert.Equal(t, true, ok)
	assert.Equal(t, a, obj)

	id, ok := cache.IdOf(a)
	assert.Equal(t, true, ok)
	assert.Equal(t, idA, id)
	assert.Equal(t, idA, a.Identity)

	// rebinding the identity to another object evicts the first
	cache.Associate(idA, b)
	obj, ok = cache.ObjectById(idA)
	assert.Equal(t, true, ok)
	assert.Equal(t, b, obj)
	_, ok = cache.IdOf(a)
	assert.Equal(t, false, ok)
	assert.Equal(t, true, a.Identity.IsZero())

	// rebinding the object to a new identity drops the old index entry
	idB := NewId()
	cache.Associate(idB, b)
	_, ok = cache.ObjectById(idA)
	assert.Equal(t, false, ok)
	obj, ok = cache.ObjectById(idB)
	assert.Equal(t, true, ok)
	assert.Equal(t, b, obj)

	cache.Forget(b)
	_, ok = cache.ObjectById(idB)
	assert.Equal(t, false, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestIdentityCacheIgnoresZero(t *testing.T) {
	scene := NewScene()
	cache := scene.Identities()
	obj, _ := scene.NewObject("a", true)

	cache.Associate(Id{}, obj)
	assert.Equal(t, 0, cache.Len())
}

func TestIdRoundTrip(t *testing.T) {
	id := NewId()
	parsed, err := ParseId(id.String())
	assert.Equal(t, nil, err)
	assert.Equal(t, id, parsed)

	fromBytes, err := IdFromBytes(id.Bytes())
	assert.Equal(t, nil, err)
	assert.Equal(t, id, fromBytes)

	_, err = IdFromBytes([]byte{1, 2, 3})
	assert.NotEqual(t, nil, err)
}
