package bcache

import (
	"github.com/cockroachdb/errors"

	"github.com/mit-pdos/go-bcache/util"
)

// BandKB is how far, in KB, block usage may drift before the pool size is
// re-evaluated.
const BandKB = 10 * 1024

// Buffers used when the memory probe fails.
const fallbackBufs = 1024

// HeuristicBufs sizes the pool for a file system of total blocks, used of
// them in use: 40·sqrt(used KB) KB but no more than half the file system
// and no more than a tenth of reclaimable memory, and never below minBufs.
func HeuristicBufs(total, used, blockSize, minBufs, reclaimable uint64) uint64 {
	usedKB := used * blockSize / 1024
	totalKB := total * blockSize / 1024
	kbFS := util.Min(util.SqrtApprox(usedKB)*40, totalKB/2)
	kbCache := util.Min(reclaimable/1024/10, kbFS)
	return util.Max(kbCache*1024/blockSize, minBufs)
}

func (c *Cache) heuristicBufs() uint64 {
	mem, err := c.cfg.Mem()
	if err != nil {
		c.warn("bcache: memory probe: %v; using %d buffers\n", err, fallbackBufs)
		return util.Max(fallbackBufs, c.cfg.MinBufs)
	}
	return HeuristicBufs(c.fsTotal, c.fsUsed, c.bs, c.cfg.MinBufs, mem)
}

// reevaluate resizes the pool if the heuristic is more than 10% off the
// current size. A resize needs an idle pool; otherwise it is left pending.
//
// Rebuilding flushes, and flushing may come back here through FlushAll;
// the resizing flag stops that.
func (c *Cache) reevaluate() {
	if c.resizing || c.fsTotal == 0 || c.cfg.NumBufs > 0 {
		return
	}
	if c.inUse > 0 {
		c.resizePending = true
		return
	}
	c.resizePending = false
	bufs := c.heuristicBufs()
	cur := uint64(len(c.bufs))
	d := util.Max(bufs, cur) - util.Min(bufs, cur)
	if d*100/cur <= 10 {
		return
	}
	util.DPrintf(5, "bcache: resize %d -> %d buffers (%d of %d blocks used)\n",
		cur, bufs, c.fsUsed, c.fsTotal)
	c.resizing = true
	c.BufPool(bufs)
	c.resizing = false
	c.stats.Resizes++
}

// SetBlockSize switches the cache to blocks of bs bytes. Dirty blocks are
// written back at the old size, then the pool is rebuilt at its minimum
// (or fixed) size and sized by the heuristic. No buffer may be held.
func (c *Cache) SetBlockSize(bs uint64) {
	if err := c.cfg.checkBlockSize(bs); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "bcache: set block size"))
	}
	n := c.cfg.MinBufs
	if c.cfg.NumBufs > 0 {
		n = c.cfg.NumBufs
	}
	c.resizing = true
	c.BufPool(n)
	c.resizing = false
	// the pool holds no blocks now, so no offset depends on the old size
	c.bs = bs
	c.fakeBlock = 0
	c.reevaluate()
	c.vmOK = c.mayUseVM(bs)
}

// ChangeBlockUsage records that the file system allocated (delta > 0) or
// freed blocks. The pool size is re-evaluated once usage has moved by more
// than BandKB since the last evaluation, or right away if a resize is
// pending.
func (c *Cache) ChangeBlockUsage(delta int64) {
	if delta > 0 {
		if uint64(delta) > c.fsTotal-c.fsUsed {
			if c.warnHigh {
				c.warn("bcache: block usage overflow\n")
				c.warnHigh = false
			}
			delta = int64(c.fsTotal - c.fsUsed)
		} else {
			c.warnHigh = true
		}
	} else if delta < 0 {
		if uint64(-delta) > c.fsUsed {
			if c.warnLow {
				c.warn("bcache: block usage underflow\n")
				c.warnLow = false
			}
			delta = -int64(c.fsUsed)
		} else {
			c.warnLow = true
		}
	}
	c.fsUsed = uint64(int64(c.fsUsed) + delta)
	c.usageDelta += delta

	kb := c.usageDelta * int64(c.bs) / 1024
	if !c.resizePending && kb <= BandKB && kb >= -BandKB {
		return
	}
	if c.inUse > 0 {
		c.resizePending = true
		return
	}
	c.usageDelta = 0
	c.reevaluate()
}

// SetBlockUsage records the file system's size and usage, in blocks, and
// re-evaluates the pool size.
func (c *Cache) SetBlockUsage(total, used uint64) {
	c.fsTotal = total
	c.fsUsed = util.Min(used, total)
	c.usageDelta = 0
	c.reevaluate()
}

// Usage reports the file system's size and usage, in blocks.
func (c *Cache) Usage() (uint64, uint64) {
	return c.fsTotal, c.fsUsed
}
