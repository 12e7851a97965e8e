//go:build unix

package bcache

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"github.com/mit-pdos/go-bcache/common"
	"github.com/mit-pdos/go-bcache/util"
)

// mmapAllocator backs every buffer with its own anonymous mapping, so
// freed buffer memory goes straight back to the system.
type mmapAllocator struct{}

func MmapAllocator() Allocator {
	return mmapAllocator{}
}

func (mmapAllocator) Alloc(size uint64) ([]byte, error) {
	n := util.RoundUp(size, common.PAGESIZE) * common.PAGESIZE
	data, err := unix.Mmap(-1, 0, int(n), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %d bytes", n)
	}
	return data[:size], nil
}

func (mmapAllocator) Free(data []byte) error {
	return errors.Wrap(unix.Munmap(data[:cap(data)]), "munmap")
}

func defaultAllocator() Allocator {
	return mmapAllocator{}
}
