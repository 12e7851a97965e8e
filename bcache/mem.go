package bcache

// Allocator provides the memory behind buffers.
type Allocator interface {
	Alloc(size uint64) ([]byte, error)
	Free(data []byte) error
}

type heapAllocator struct{}

// HeapAllocator allocates buffers on the Go heap.
func HeapAllocator() Allocator {
	return heapAllocator{}
}

func (heapAllocator) Alloc(size uint64) ([]byte, error) {
	return make([]byte, size), nil
}

func (heapAllocator) Free(data []byte) error {
	return nil
}
