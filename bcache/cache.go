// bcache is a block buffer cache for a file-system server.
//
// A Cache owns a fixed-size pool of buffers. Every block the file system
// touches is fetched with GetBlock, which returns an exclusively held
// buffer, and handed back with PutBlock. Unreferenced buffers sit on an LRU
// chain; misses evict from its front, writing back the victim's device
// first if the victim is dirty. Blocks are found through a hash index keyed
// by block number.
//
// Behind the pool sits an optional second-level cache (vmcache.Cache):
// released blocks are registered with it, and misses try it before going
// to the transport.
//
// The pool resizes itself from file-system occupancy reported through
// ChangeBlockUsage and SetBlockUsage, but only while no buffer is held.
//
// A Cache is not safe for concurrent use.
package bcache

import (
	"github.com/cockroachdb/errors"

	"github.com/mit-pdos/go-bcache/common"
	"github.com/mit-pdos/go-bcache/disk"
	"github.com/mit-pdos/go-bcache/util"
	"github.com/mit-pdos/go-bcache/vmcache"
)

var (
	ErrIO = errors.New("bcache: I/O error")
	// ErrNotCached is returned by a Peek fetch of a block that is in
	// neither cache. It is an outcome, not a failure.
	ErrNotCached = errors.New("bcache: block not cached")
)

type Cache struct {
	cfg  Config
	tr   disk.Transport
	vm   vmcache.Cache
	vmOK bool

	bufs  []Buf
	hash  []int
	front int
	rear  int
	inUse uint64
	bs    uint64

	fsTotal    uint64
	fsUsed     uint64
	usageDelta int64
	warnHigh   bool
	warnLow    bool

	resizing      bool
	resizePending bool

	fakeBlock uint64

	stats Stats
}

// MkCache builds a cache over tr. vm may be nil. Invalid configurations
// are fatal.
func MkCache(tr disk.Transport, vm vmcache.Cache, cfg Config) *Cache {
	if cfg.Mem == nil {
		cfg.Mem = SystemMemory
	}
	if cfg.Alloc == nil {
		cfg.Alloc = defaultAllocator()
	}
	if err := cfg.validate(); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "bcache: bad config"))
	}
	c := &Cache{
		cfg:      cfg,
		tr:       tr,
		vm:       vm,
		front:    none,
		rear:     none,
		warnHigh: true,
		warnLow:  true,
	}
	c.SetBlockSize(cfg.BlockSize)
	return c
}

func (c *Cache) warn(format string, a ...interface{}) {
	if !c.cfg.Quiet {
		util.DPrintf(1, format, a...)
	}
}

func (c *Cache) mayUseVM(bs uint64) bool {
	return c.cfg.UseVM && c.vm != nil && bs%c.cfg.PageSize == 0
}

func (c *Cache) BlockSize() uint64 {
	return c.bs
}

func (c *Cache) NumBufs() uint64 {
	return uint64(len(c.bufs))
}

// InUse reports the number of buffers with a reference.
func (c *Cache) InUse() uint64 {
	return c.inUse
}

// VMActive reports whether the second-level cache is in use.
func (c *Cache) VMActive() bool {
	return c.vmOK
}

func (c *Cache) off(blkno uint64) uint64 {
	return blkno * c.bs
}

// detach drops b's identity and memory. b keeps its place (or absence) in
// the LRU chain.
func (c *Cache) detach(b *Buf) {
	if b.dev != common.NODEV {
		c.hashRemove(b)
	}
	if b.owned && b.Data != nil {
		if err := c.cfg.Alloc.Free(b.Data); err != nil {
			c.warn("bcache: free buffer %d: %v\n", b.idx, err)
		}
	}
	b.Data = nil
	b.owned = false
	b.size = 0
	b.dev = common.NODEV
	b.dirty = false
	b.needsRegister = false
	b.evicted = false
	b.ino = common.NULLINUM
	b.inoOff = 0
}

// evict writes back b's device if b is dirty, then detaches b.
func (c *Cache) evict(b *Buf) {
	if b.dev == common.NODEV {
		c.detach(b)
		return
	}
	if b.dirty {
		if err := c.Flush(b.dev); err != nil {
			c.warn("bcache: flush dev %d: %v\n", b.dev, err)
		}
		if b.dirty {
			c.warn("bcache: dropping unwritable block %d of dev %d\n", b.blkno, b.dev)
		}
	}
	c.detach(b)
	c.stats.Evictions++
}

// BufPool rebuilds the pool with n unassigned buffers. Dirty buffers are
// written back first. Rebuilding while any buffer is held is fatal.
func (c *Cache) BufPool(n uint64) {
	if n < c.cfg.MinBufs {
		panic(errors.AssertionFailedf("bcache: pool of %d buffers, need at least %d", n, c.cfg.MinBufs))
	}
	for i := range c.bufs {
		if c.bufs[i].count > 0 {
			panic(errors.AssertionFailedf("bcache: rebuild with block %d of dev %d in use",
				c.bufs[i].blkno, c.bufs[i].dev))
		}
	}
	if err := c.flushDirty(); err != nil {
		c.warn("bcache: flush before rebuild: %v\n", err)
	}
	for i := range c.bufs {
		c.detach(&c.bufs[i])
	}

	c.bufs = make([]Buf, n)
	c.hash = make([]int, n)
	c.front = none
	c.rear = none
	c.inUse = 0
	for i := range c.bufs {
		b := &c.bufs[i]
		b.idx = i
		b.hnext = none
		c.hash[i] = none
		c.lruRear(b)
	}
	util.DPrintf(5, "bcache: pool of %d buffers of %d bytes\n", n, c.bs)
}

// freeUnused releases the memory of every unreferenced buffer.
func (c *Cache) freeUnused() {
	freed, bytes := 0, uint64(0)
	for i := range c.bufs {
		b := &c.bufs[i]
		if b.count == 0 && b.size > 0 {
			freed++
			bytes += b.size
			c.evict(b)
		}
	}
	c.warn("bcache: freed %d blocks, %d bytes; %d in use\n", freed, bytes, c.inUse)
}

func (c *Cache) allocData(size uint64) []byte {
	data, err := c.cfg.Alloc.Alloc(size)
	if err == nil {
		return data
	}
	c.warn("bcache: alloc %d bytes: %v\n", size, err)
	c.freeUnused()
	data, err = c.cfg.Alloc.Alloc(size)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "bcache: alloc %d bytes after freeing", size))
	}
	return data
}
