package testresource

import "unsafe"

// registryNode is one entry in a resource's live-block registry. Nodes are
// themselves allocated from the owning resource's upstream allocator, never
// from the resource being instrumented.
type registryNode struct {
	index      int64
	next, prev *registryNode

	// outer is the block's outer buffer pointer, recorded so an optional
	// debug-mode scan can re-verify every live block's canaries by walking
	// the registry alone, without needing the caller's pointer back.
	outer unsafe.Pointer
}

// registry is the doubly-linked intrusive list of currently-live blocks
// owned by one TestResource. Insertion is always at the tail and removal is
// O(1) given the node pointer, which the block's header stores.
type registry struct {
	head, tail *registryNode
}

func (r *registry) empty() bool {
	return r.head == nil
}

// pushBack allocates a new node from upstream, appends it to the tail, and
// returns it. The node's index is recorded for reporter use; the caller sets
// the node's outer pointer afterwards. The registry itself only needs to
// know a block exists and where it sits in allocation order.
func (r *registry) pushBack(index int64, upstream UpstreamAllocator) (*registryNode, error) {
	raw, err := upstream.Allocate(int(unsafe.Sizeof(registryNode{})), uint(unsafe.Alignof(registryNode{})))
	if err != nil {
		return nil, cerrorsWrapOOM(err)
	}
	node := (*registryNode)(raw)
	*node = registryNode{index: index}

	if r.tail == nil {
		r.head = node
		r.tail = node
	} else {
		node.prev = r.tail
		r.tail.next = node
		r.tail = node
	}
	return node, nil
}

// remove unlinks node from the registry in O(1); the caller is responsible
// for returning it to upstream.
func (r *registry) remove(node *registryNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		r.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		r.tail = node.prev
	}
	node.next, node.prev = nil, nil
}

// clear walks every remaining node, returning each to upstream. Used only
// during resource release: any blocks still registered at this point are
// leaks, and clear discards the bookkeeping for them without touching the
// leaked user buffers themselves.
func (r *registry) clear(upstream UpstreamAllocator) {
	node := r.head
	for node != nil {
		next := node.next
		upstream.Deallocate(unsafe.Pointer(node), int(unsafe.Sizeof(registryNode{})), uint(unsafe.Alignof(registryNode{})))
		node = next
	}
	r.head, r.tail = nil, nil
}
