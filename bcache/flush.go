package bcache

import (
	"math"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/mit-pdos/go-bcache/common"
)

func (c *Cache) MarkDirty(b *Buf) {
	b.SetDirty()
}

func (c *Cache) MarkClean(b *Buf) {
	b.setClean()
}

func (c *Cache) IsClean(b *Buf) bool {
	return !b.dirty
}

// Flush writes back every dirty, unreferenced buffer of dev.
func (c *Cache) Flush(dev common.Dev) error {
	dirty := make([]*Buf, 0, len(c.bufs))
	for i := range c.bufs {
		b := &c.bufs[i]
		if b.dev == dev && b.dirty && b.count == 0 {
			dirty = append(dirty, b)
		}
	}
	c.stats.Flushes++
	if len(dirty) == 0 {
		return nil
	}
	return c.rwScattered(dev, dirty, write)
}

func (c *Cache) dirtyDevs() []common.Dev {
	devs := make(map[common.Dev]bool)
	for i := range c.bufs {
		b := &c.bufs[i]
		if b.dev != common.NODEV && b.dirty {
			devs[b.dev] = true
		}
	}
	ds := maps.Keys(devs)
	slices.Sort(ds)
	return ds
}

func (c *Cache) flushDirty() error {
	var firstErr error
	for _, dev := range c.dirtyDevs() {
		if err := c.Flush(dev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FlushAll flushes every device with dirty buffers. Since the file system
// holds no buffers across a sync, it is also when a deferred resize is
// most likely to go through.
func (c *Cache) FlushAll() error {
	err := c.flushDirty()
	if c.resizePending {
		c.reevaluate()
	}
	return err
}

// Invalidate drops every buffer of dev without writing it back, and clears
// dev from the second-level cache. Holding a buffer of dev is fatal.
func (c *Cache) Invalidate(dev common.Dev) {
	for i := range c.bufs {
		b := &c.bufs[i]
		if b.dev != dev {
			continue
		}
		if b.count > 0 {
			panic(errors.AssertionFailedf("bcache: invalidate dev %d with block %d in use", dev, b.blkno))
		}
		c.detach(b)
	}
	// even when disabled: it may have been disabled after blocks were
	// handed over
	if c.vm != nil {
		c.vm.Clear(dev)
	}
}

// FreeBlock tells the cache the file system freed blkno: its content no
// longer needs to be written or kept.
func (c *Cache) FreeBlock(dev common.Dev, blkno uint64) {
	if b := c.lookup(dev, blkno); b != nil {
		b.setClean()
		if b.count == 0 {
			c.detach(b)
			c.lruRemove(b)
			c.lruFront(b)
		}
	}
	if c.vmOK {
		c.vm.Forget(dev, c.off(blkno), c.bs)
	}
}

// ZeroBlockIno publishes a zero-filled block for byte inoOff of inode ino
// to the second-level cache, so a hole in a file can be mapped without a
// device block behind it.
func (c *Cache) ZeroBlockIno(dev common.Dev, ino common.Inum, inoOff uint64) {
	if !c.vmOK {
		return
	}
	// above every offset the device could have
	if c.fakeBlock == 0 || c.fakeBlock == math.MaxUint64/c.bs+1 {
		c.fakeBlock = (math.MaxInt64 + 1) / c.bs
	}
	b, _, err := c.getBlock(dev, c.fakeBlock, NoRead, ino, inoOff, c.bs)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "bcache: zero block"))
	}
	for i := range b.Data {
		b.Data[i] = 0
	}
	c.PutBlock(b, OneShot)
	c.fakeBlock++
}
