package bcache

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/mit-pdos/go-bcache/common"
	"github.com/mit-pdos/go-bcache/util"
)

type direction int

const (
	read direction = iota
	write
)

func (d direction) String() string {
	if d == read {
		return "read"
	}
	return "write"
}

// rwScattered transfers bufs, all of dev, in runs of consecutive blocks,
// one Gather or Scatter per run.
//
// Reads expect held buffers and release every one of them: serviced ones
// with their new content, the rest invalidated. Writes clean the buffers
// written; after a run that makes no progress the remaining buffers are
// left dirty.
func (c *Cache) rwScattered(dev common.Dev, bufs []*Buf, dir direction) error {
	if dir == write {
		sort.Slice(bufs, func(i, j int) bool { return bufs[i].blkno < bufs[j].blkno })
	}
	ps := c.cfg.PageSize
	var firstErr error
	for len(bufs) > 0 {
		iov := make([][]byte, 0, c.cfg.MaxIovecs)
		nblocks := 0
		for ; nblocks < len(bufs); nblocks++ {
			b := bufs[nblocks]
			if b.blkno != bufs[0].blkno+uint64(nblocks) {
				break
			}
			perBlock := util.RoundUp(b.size, ps)
			if uint64(len(iov))+perBlock > c.cfg.MaxIovecs {
				break
			}
			for p := uint64(0); p < perBlock; p++ {
				iov = append(iov, b.Data[p*ps:util.Min((p+1)*ps, b.size)])
			}
		}
		if nblocks == 0 {
			panic(errors.AssertionFailedf("bcache: block %d does not fit in one request", bufs[0].blkno))
		}

		off := c.off(bufs[0].blkno)
		var n uint64
		var err error
		if dir == read {
			n, err = c.tr.Gather(dev, off, iov)
			c.stats.Gathers++
		} else {
			n, err = c.tr.Scatter(dev, off, iov)
			c.stats.Scatters++
		}
		if err != nil {
			c.warn("bcache: %s error on dev %d, block %d: %v\n", dir, dev, bufs[0].blkno, err)
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "%s block %d of dev %d", dir, bufs[0].blkno, dev)
			}
		}

		i := 0
		for ; i < nblocks; i++ {
			b := bufs[i]
			if n < b.size {
				if i == 0 {
					c.detach(b)
				}
				if firstErr == nil {
					firstErr = errors.Wrapf(ErrIO, "short %s at block %d of dev %d", dir, b.blkno, dev)
				}
				break
			}
			if dir == read {
				c.PutBlock(b, PutNormal)
			} else {
				b.setClean()
			}
			n -= b.size
		}
		failed := i < nblocks
		bufs = bufs[i:]

		if dir == read && failed {
			// the device will not give us more now
			for _, b := range bufs {
				c.detach(b)
				c.PutBlock(b, PutNormal)
			}
			break
		}
		if dir == write && i == 0 {
			break
		}
	}
	return firstErr
}
