package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGetVariantNoAnnotations(t *testing.T) {
	inv := NewInventory()
	inv.PutVariant("C1", &Variant{ImageRef: "img://x", MaxInstances: 3})

	v, ok := inv.GetVariant("C1", nil)
	require.True(t, ok)
	assert.Equal(t, 3, v.MaxInstances)
}

func TestAnnotationIsolation(t *testing.T) {
	inv := NewInventory()
	inv.PutVariant("C1", &Variant{ImageRef: "img://x", MaxInstances: 1})
	inv.PutVariant("C1", &Variant{ImageRef: "img://x", Annotations: map[string]string{"k": "v"}, MaxInstances: 5})

	base, ok := inv.GetVariant("C1", nil)
	require.True(t, ok)
	assert.Equal(t, 1, base.MaxInstances)

	annotated, ok := inv.GetVariant("C1", map[string]string{"k": "v"})
	require.True(t, ok)
	assert.Equal(t, 5, annotated.MaxInstances)

	assert.Len(t, inv.Components(), 2)
}

func TestRemoveVariant(t *testing.T) {
	inv := NewInventory()
	inv.PutVariant("C1", &Variant{ImageRef: "img://x", MaxInstances: 1})
	require.True(t, inv.RemoveVariant("C1", nil))
	_, ok := inv.GetVariant("C1", nil)
	assert.False(t, ok)
	assert.False(t, inv.RemoveVariant("C1", nil))
}

func TestAnnotationKeyOrderIndependent(t *testing.T) {
	inv := NewInventory()
	inv.PutVariant("C1", &Variant{Annotations: map[string]string{"a": "1", "b": "2"}, MaxInstances: 1})
	v, ok := inv.GetVariant("C1", map[string]string{"b": "2", "a": "1"})
	require.True(t, ok)
	assert.Equal(t, 1, v.MaxInstances)
}

func TestProviderLifecycle(t *testing.T) {
	inv := NewInventory()
	inv.PutProvider("P1", &Provider{ImageRef: "img://p", LinkName: "default", ContractID: "wasi:keyvalue"})
	assert.Len(t, inv.Providers(), 1)
	require.True(t, inv.RemoveProvider("P1", "default"))
	assert.Empty(t, inv.Providers())
	assert.False(t, inv.RemoveProvider("P1", "default"))
}
