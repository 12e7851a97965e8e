package bcache

import (
	"github.com/cockroachdb/errors"

	"github.com/mit-pdos/go-bcache/common"
)

type Mode int

const (
	// Normal reads the block from the transport on a miss.
	Normal Mode = iota
	// NoRead skips the read; the caller overwrites the whole block.
	NoRead
	// Peek returns the block only if it is in the pool or the
	// second-level cache.
	Peek
)

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case NoRead:
		return "noread"
	case Peek:
		return "peek"
	}
	return "mode?"
}

func (c *Cache) GetBlock(dev common.Dev, blkno uint64, mode Mode) (*Buf, error) {
	b, _, err := c.getBlock(dev, blkno, mode, common.NULLINUM, 0, c.bs)
	return b, err
}

// GetBlockIno is GetBlock for a block that also backs byte inoOff of
// inode ino, so the second-level cache can find it by either key.
func (c *Cache) GetBlockIno(dev common.Dev, blkno uint64, mode Mode, ino common.Inum, inoOff uint64) (*Buf, error) {
	b, _, err := c.getBlock(dev, blkno, mode, ino, inoOff, c.bs)
	return b, err
}

// GetPartialBlock fetches a block of which only the first size bytes
// exist, such as the last block of a device.
func (c *Cache) GetPartialBlock(dev common.Dev, blkno uint64, mode Mode, size uint64) (*Buf, error) {
	b, _, err := c.getBlock(dev, blkno, mode, common.NULLINUM, 0, size)
	return b, err
}

func (c *Cache) setIno(b *Buf, ino common.Inum, inoOff uint64) {
	if ino == common.NULLINUM {
		return
	}
	if b.ino != ino || b.inoOff != inoOff {
		b.ino = ino
		b.inoOff = inoOff
		b.needsRegister = true
	}
}

// drainReclaimed marks pool copies of blocks the second-level cache gave
// up as stale, unless they are held or dirty.
func (c *Cache) drainReclaimed() {
	if !c.vmOK {
		return
	}
	for _, r := range c.vm.Reclaimed() {
		if r.Off%c.bs != 0 {
			continue
		}
		b := c.lookup(r.Dev, r.Off/c.bs)
		if b != nil && b.count == 0 && !b.dirty {
			b.evicted = true
		}
	}
}

// getBlock returns a held buffer for (dev, blkno) and whether its content
// was already valid (in the pool or the second-level cache).
func (c *Cache) getBlock(dev common.Dev, blkno uint64, mode Mode, ino common.Inum, inoOff uint64, size uint64) (*Buf, bool, error) {
	if dev == common.NODEV {
		panic(errors.AssertionFailedf("bcache: get of block %d without device", blkno))
	}
	if c.bs == 0 || size == 0 || size > c.bs {
		panic(errors.AssertionFailedf("bcache: get of %d bytes with block size %d", size, c.bs))
	}
	c.drainReclaimed()

	b := c.lookup(dev, blkno)
	if b != nil && !b.evicted {
		if b.size != size {
			return nil, false, errors.Wrapf(ErrIO, "block %d of dev %d has %d bytes, want %d",
				blkno, dev, b.size, size)
		}
		if b.count == 0 {
			c.lruRemove(b)
			c.inUse++
			b.locked = true
		}
		b.count++
		c.setIno(b, ino, inoOff)
		c.stats.Hits++
		return b, true, nil
	}

	victim := b
	if victim == nil {
		if c.front == none {
			panic(errors.AssertionFailedf("bcache: all %d buffers in use", len(c.bufs)))
		}
		victim = &c.bufs[c.front]
	}
	c.lruRemove(victim)
	c.inUse++
	if victim.evicted {
		c.detach(victim)
	} else {
		c.evict(victim)
	}

	b = victim
	b.dev = dev
	b.blkno = blkno
	b.ino = ino
	b.inoOff = inoOff
	c.hashInsert(b)
	b.count = 1
	b.locked = true

	if mode != NoRead && c.vmOK {
		if data, ok := c.vm.Map(dev, c.off(blkno), ino, inoOff, size); ok {
			b.Data = data
			b.size = size
			c.stats.VMHits++
			return b, true, nil
		}
	}

	c.stats.Misses++
	if mode == Peek {
		c.PutBlock(b, OneShot)
		return nil, false, ErrNotCached
	}

	b.Data = c.allocData(size)
	b.size = size
	b.owned = true
	b.needsRegister = true

	if mode == Normal {
		n, err := c.tr.Read(dev, c.off(blkno), b.Data)
		c.stats.Reads++
		if err == nil && n != size {
			err = errors.Wrapf(ErrIO, "short read of %d bytes", n)
		}
		if err != nil {
			c.detach(b)
			c.PutBlock(b, PutNormal)
			return nil, false, errors.Wrapf(err, "read block %d of dev %d", blkno, dev)
		}
	}
	return b, false, nil
}
