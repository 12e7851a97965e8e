//go:build !unix

package bcache

func defaultAllocator() Allocator {
	return heapAllocator{}
}
