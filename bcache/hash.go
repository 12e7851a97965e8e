package bcache

import (
	"github.com/mit-pdos/go-bcache/common"
)

// Buckets are chosen by block number alone: blocks of one device are dense
// and modulo spreads them evenly.
func (c *Cache) bucket(blkno uint64) int {
	return int(blkno % uint64(len(c.hash)))
}

func (c *Cache) lookup(dev common.Dev, blkno uint64) *Buf {
	for i := c.hash[c.bucket(blkno)]; i != none; i = c.bufs[i].hnext {
		b := &c.bufs[i]
		if b.dev == dev && b.blkno == blkno {
			return b
		}
	}
	return nil
}

func (c *Cache) hashInsert(b *Buf) {
	h := c.bucket(b.blkno)
	b.hnext = c.hash[h]
	c.hash[h] = b.idx
}

func (c *Cache) hashRemove(b *Buf) {
	h := c.bucket(b.blkno)
	if c.hash[h] == b.idx {
		c.hash[h] = b.hnext
		b.hnext = none
		return
	}
	for i := c.hash[h]; i != none; i = c.bufs[i].hnext {
		if c.bufs[i].hnext == b.idx {
			c.bufs[i].hnext = b.hnext
			b.hnext = none
			return
		}
	}
	panic("hashRemove")
}

// IsCached reports whether (dev, blkno) holds valid content, without
// taking a reference.
func (c *Cache) IsCached(dev common.Dev, blkno uint64) bool {
	b := c.lookup(dev, blkno)
	return b != nil && !b.evicted
}
