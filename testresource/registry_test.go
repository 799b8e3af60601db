package testresource

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestRegistryPushBackOrderAndClear(t *testing.T) {
	alloc := newMallocFreeAllocator()
	var reg registry

	require.True(t, reg.empty())

	n1, err := reg.pushBack(0, alloc)
	require.NoError(t, err)
	n2, err := reg.pushBack(1, alloc)
	require.NoError(t, err)
	n3, err := reg.pushBack(2, alloc)
	require.NoError(t, err)

	require.False(t, reg.empty())
	require.Equal(t, n1, reg.head)
	require.Equal(t, n3, reg.tail)

	var indices []int64
	for n := reg.head; n != nil; n = n.next {
		indices = append(indices, n.index)
	}
	require.Equal(t, []int64{0, 1, 2}, indices)

	_ = n2
	reg.clear(alloc)
	require.True(t, reg.empty())
	require.Nil(t, reg.head)
	require.Nil(t, reg.tail)
}

func TestRegistryRemoveMiddle(t *testing.T) {
	alloc := newMallocFreeAllocator()
	var reg registry

	n1, _ := reg.pushBack(0, alloc)
	n2, _ := reg.pushBack(1, alloc)
	n3, _ := reg.pushBack(2, alloc)

	reg.remove(n2)
	alloc.Deallocate(unsafe.Pointer(n2), 0, 0)

	var indices []int64
	for n := reg.head; n != nil; n = n.next {
		indices = append(indices, n.index)
	}
	require.Equal(t, []int64{0, 2}, indices)
	require.Equal(t, n1, reg.head)
	require.Equal(t, n3, reg.tail)

	reg.clear(alloc)
}

func TestRegistryRemoveHeadAndTail(t *testing.T) {
	alloc := newMallocFreeAllocator()
	var reg registry

	n1, _ := reg.pushBack(0, alloc)
	n2, _ := reg.pushBack(1, alloc)

	reg.remove(n1)
	require.Equal(t, n2, reg.head)
	require.Equal(t, n2, reg.tail)

	reg.remove(n2)
	require.True(t, reg.empty())
}
