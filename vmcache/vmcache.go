// vmcache is the second-level cache that sits behind the buffer cache.
//
// It holds block contents beyond the buffer pool's capacity, keyed by
// device byte offset and, optionally, by inode offset. It may discard
// entries at any time; discarded entries are reported through Reclaimed.
package vmcache

//go:generate mockgen -source vmcache.go -destination vmcache_mocks.go -package vmcache

import (
	"fmt"

	"github.com/mit-pdos/go-bcache/common"
)

type Status int

const (
	OK Status = iota
	// Unsupported means the cache cannot hold blocks at all; callers
	// should stop using it.
	Unsupported
	// OutOfMemory means this block was not stored. Later registrations
	// may succeed.
	OutOfMemory
	Failed
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Unsupported:
		return "unsupported"
	case OutOfMemory:
		return "out of memory"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Result is the outcome of a registration. Err is set only for Failed.
type Result struct {
	Status Status
	Err    error
}

type Flags uint8

const (
	// FlagOnce marks an entry that is dropped after it is mapped once.
	FlagOnce Flags = 1 << iota
)

// Block names a discarded entry by its device byte offset.
type Block struct {
	Dev common.Dev
	Off uint64
}

type Cache interface {
	// Map returns a private copy of the size-byte block at (dev, off), or
	// of the block registered for (ino, inoOff) on dev when ino is not
	// NULLINUM and the device lookup misses.
	Map(dev common.Dev, off uint64, ino common.Inum, inoOff uint64, size uint64) ([]byte, bool)

	// Register stores a copy of data for (dev, off) and, if ino is not
	// NULLINUM, also for (ino, inoOff).
	Register(data []byte, dev common.Dev, off uint64, ino common.Inum, inoOff uint64, flags Flags) Result

	// Forget drops entries of dev starting within [off, off+size).
	Forget(dev common.Dev, off uint64, size uint64)

	// Clear drops every entry of dev.
	Clear(dev common.Dev)

	// Reclaimed returns and resets the list of entries the cache
	// discarded on its own since the last call.
	Reclaimed() []Block
}
