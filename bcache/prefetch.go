package bcache

import (
	"github.com/mit-pdos/go-bcache/common"
	"github.com/mit-pdos/go-bcache/util"
)

// ReadaheadLimit is the most blocks one read-ahead may take: bounded by
// MaxPrefetch, by what fits in one transport request, by a quarter of the
// pool and by the buffers not currently held.
func (c *Cache) ReadaheadLimit() uint64 {
	nbufs := uint64(len(c.bufs))
	limit := c.cfg.MaxPrefetch
	limit = util.Min(limit, c.cfg.MaxIovecs/util.RoundUp(c.bs, c.cfg.PageSize))
	limit = util.Min(limit, nbufs/4)
	limit = util.Min(limit, nbufs-c.inUse)
	return util.Max(limit, 1)
}

type bitmap []uint64

func mkBitmap(n uint64) bitmap {
	return make(bitmap, util.RoundUp(n, 64))
}

func (m bitmap) set(i uint64) {
	m[i/64] |= 1 << (i % 64)
}

func (m bitmap) get(i uint64) bool {
	return m[i/64]&(1<<(i%64)) != 0
}

// selectPrefetch picks the contiguous range around blocks[0] to read:
// the blocks listed directly below and above it, at most limit in total.
func selectPrefetch(blocks []uint64, maxPrefetch uint64, limit uint64) (uint64, uint64) {
	anchor := blocks[0]
	before := mkBitmap(maxPrefetch)
	after := mkBitmap(maxPrefetch)
	for _, blk := range blocks[1:] {
		if blk < anchor && anchor-blk <= maxPrefetch {
			before.set(anchor - blk - 1)
		} else if blk > anchor && blk-anchor <= maxPrefetch {
			after.set(blk - anchor - 1)
		}
	}
	nbefore := uint64(0)
	for nbefore < maxPrefetch && before.get(nbefore) {
		nbefore++
	}
	nafter := uint64(0)
	for nafter < maxPrefetch && after.get(nafter) {
		nafter++
	}
	n := util.Min(nbefore+1+nafter, limit)
	n = util.Min(n, maxPrefetch)
	base := anchor - util.Min(nbefore, n-1)
	return base, n
}

// Prefetch reads ahead the blocks of dev worth reading along with
// blocks[0], which the caller needs most.
func (c *Cache) Prefetch(dev common.Dev, blocks []uint64) {
	if len(blocks) == 0 {
		return
	}
	base, n := selectPrefetch(blocks, c.cfg.MaxPrefetch, c.ReadaheadLimit())
	util.DPrintf(10, "bcache: prefetch dev %d anchor %d: %d blocks from %d\n", dev, blocks[0], n, base)
	c.Readahead(dev, base, n, c.bs)
}

// Readahead loads n blocks of dev starting at base into the pool with one
// batched read. The last block has lastSize bytes. It is best effort:
// blocks that cannot be obtained are skipped and errors are only logged.
func (c *Cache) Readahead(dev common.Dev, base uint64, n uint64, lastSize uint64) {
	n = util.Min(n, c.cfg.MaxPrefetch)
	if lastSize == 0 || lastSize > c.bs {
		lastSize = c.bs
	}
	batch := make([]*Buf, 0, n)
	for i := uint64(0); i < n; i++ {
		size := c.bs
		if i == n-1 {
			size = lastSize
		}
		if c.front == none {
			break
		}
		b, cached, err := c.getBlock(dev, base+i, NoRead, common.NULLINUM, 0, size)
		if err != nil {
			break
		}
		if cached {
			c.PutBlock(b, PutNormal)
			continue
		}
		if b.dirty {
			panic("Readahead")
		}
		batch = append(batch, b)
	}
	if len(batch) == 0 {
		return
	}
	if err := c.rwScattered(dev, batch, read); err != nil {
		util.DPrintf(5, "bcache: readahead dev %d: %v\n", dev, err)
	}
}
