package bcache

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	goose "github.com/tchajed/goose/machine/disk"
	"go.uber.org/mock/gomock"

	"github.com/mit-pdos/go-bcache/common"
	"github.com/mit-pdos/go-bcache/disk"
)

const gb = 1 << 30

func TestHeuristicBufs(t *testing.T) {
	assert := assert.New(t)
	// 1 GB used of 4 GB: 40·sqrt(1048576) KB = 40 MB
	assert.Equal(uint64(10240), HeuristicBufs(1<<20, 1<<18, 4096, 6, 8*gb))
	// half the file system
	assert.Equal(uint64(50), HeuristicBufs(100, 50, 4096, 6, 8*gb))
	// a tenth of memory
	assert.Equal(uint64(256), HeuristicBufs(1<<20, 1<<18, 4096, 6, 10<<20))
	assert.Equal(uint64(6), HeuristicBufs(1<<20, 0, 4096, 6, 8*gb))
	assert.Equal(uint64(6), HeuristicBufs(0, 0, 4096, 6, 8*gb))
}

type probe struct {
	mem   uint64
	err   error
	calls int
}

func (p *probe) probe() (uint64, error) {
	p.calls++
	return p.mem, p.err
}

func mkHeuristicCache(t *testing.T, p *probe) *Cache {
	drv := disk.MkDriver()
	assert.NoError(t, drv.Attach(dev, disk.MkGooseDevice(goose.NewMemDisk(64), 64)))
	cfg := DefaultConfig()
	cfg.Mem = p.probe
	cfg.Alloc = HeapAllocator()
	cfg.Quiet = true
	return MkCache(drv, nil, cfg)
}

func TestResize(t *testing.T) {
	assert := assert.New(t)
	p := &probe{mem: 8 * gb}
	c := mkHeuristicCache(t, p)
	assert.Equal(uint64(6), c.NumBufs())
	assert.Equal(0, p.calls, "no heuristic before usage is known")

	c.SetBlockUsage(100, 50)
	assert.Equal(uint64(50), c.NumBufs())
	assert.Equal(uint64(1), c.Stats().Resizes)
	checkInvariants(assert, c)

	// within 10%: no rebuild
	c.SetBlockUsage(104, 52)
	assert.Equal(uint64(50), c.NumBufs())
	assert.Equal(uint64(1), c.Stats().Resizes)
}

func TestResizeDeferredWhileHeld(t *testing.T) {
	assert := assert.New(t)
	p := &probe{mem: 8 * gb}
	c := mkHeuristicCache(t, p)

	b, err := c.GetBlock(dev, 1, Normal)
	assert.NoError(err)
	c.SetBlockUsage(100, 50)
	assert.Equal(uint64(6), c.NumBufs(), "deferred")
	assert.True(c.resizePending)
	assert.Equal(0, p.calls)

	// still held: accounting updates keep deferring
	c.ChangeBlockUsage(1)
	assert.Equal(uint64(6), c.NumBufs())

	c.PutBlock(b, PutNormal)
	c.ChangeBlockUsage(1)
	assert.Equal(uint64(50), c.NumBufs())
	assert.False(c.resizePending)
	checkInvariants(assert, c)
}

func TestResizeOnFlushAll(t *testing.T) {
	assert := assert.New(t)
	p := &probe{mem: 8 * gb}
	c := mkHeuristicCache(t, p)

	b, err := c.GetBlock(dev, 1, Normal)
	assert.NoError(err)
	c.SetBlockUsage(100, 50)
	fill(b, 1)
	c.MarkDirty(b)
	c.PutBlock(b, PutNormal)

	assert.NoError(c.FlushAll())
	assert.Equal(uint64(50), c.NumBufs())
	assert.Equal(uint64(1), c.Stats().Scatters)

	b, err = c.GetBlock(dev, 1, Normal)
	assert.NoError(err)
	assert.Equal(filled(4096, 1), b.Data)
	c.PutBlock(b, PutNormal)
}

func TestUsageBand(t *testing.T) {
	assert := assert.New(t)
	p := &probe{mem: 8 * gb}
	c := mkHeuristicCache(t, p)
	c.SetBlockUsage(1<<20, 1<<18)
	assert.Equal(uint64(10240), c.NumBufs())
	assert.Equal(1, p.calls)

	// 10 MB of 4 KB blocks is 2560 blocks
	c.ChangeBlockUsage(100)
	c.ChangeBlockUsage(2400)
	assert.Equal(1, p.calls)
	c.ChangeBlockUsage(100)
	assert.Equal(2, p.calls)
	c.ChangeBlockUsage(-2000)
	assert.Equal(2, p.calls)

	total, used := c.Usage()
	assert.Equal(uint64(1<<20), total)
	assert.Equal(uint64(1<<18+600), used)
}

func TestUsageClamped(t *testing.T) {
	assert := assert.New(t)
	c := mkHeuristicCache(t, &probe{mem: 8 * gb})
	c.SetBlockUsage(100, 90)
	c.ChangeBlockUsage(50)
	_, used := c.Usage()
	assert.Equal(uint64(100), used)
	c.ChangeBlockUsage(-500)
	_, used = c.Usage()
	assert.Equal(uint64(0), used)
}

func TestProbeFailure(t *testing.T) {
	assert := assert.New(t)
	c := mkHeuristicCache(t, &probe{err: errors.New("no stats")})
	c.SetBlockUsage(1<<20, 1<<18)
	assert.Equal(uint64(fallbackBufs), c.NumBufs())
}

func TestFixedPoolIgnoresHeuristic(t *testing.T) {
	assert := assert.New(t)
	p := &probe{mem: 8 * gb}
	drv := disk.MkDriver()
	cfg := testConfig()
	cfg.Mem = p.probe
	c := MkCache(drv, nil, cfg)
	c.SetBlockUsage(1<<20, 1<<18)
	assert.Equal(uint64(8), c.NumBufs())
	assert.Equal(0, p.calls)
}

func TestSetBlockSize(t *testing.T) {
	assert := assert.New(t)
	p := &probe{mem: 8 * gb}
	c := mkHeuristicCache(t, p)
	c.SetBlockUsage(100, 50)
	assert.Equal(uint64(50), c.NumBufs())

	c.SetBlockSize(1024)
	assert.Equal(uint64(1024), c.BlockSize())
	// half of a 100 KB file system
	assert.Equal(uint64(50), c.NumBufs())
	assert.Equal(uint64(2), c.Stats().Resizes)

	b, err := c.GetBlock(dev, 1, Normal)
	assert.NoError(err)
	assert.Panics(func() { c.SetBlockSize(4096) })
	c.PutBlock(b, PutNormal)
}

func TestSetBlockSizeWritesBackAtOldSize(t *testing.T) {
	assert := assert.New(t)
	c, tr := mkMockCache(t, testConfig())
	dirtyBlocks(assert, c, 3)

	tr.EXPECT().Scatter(dev, uint64(3*1024), gomock.Len(1)).DoAndReturn(
		func(dev common.Dev, off uint64, iov [][]byte) (uint64, error) {
			assert.Equal(filled(1024, 3), iov[0])
			return 1024, nil
		})
	c.SetBlockSize(4096)
	assert.Equal(uint64(4096), c.BlockSize())
	assert.Equal(uint64(8), c.NumBufs(), "a fixed pool keeps its size")
	assert.False(c.IsCached(dev, 3))
	assert.Empty(c.dirtyDevs())
	checkInvariants(assert, c)

	// from now on offsets use the new size
	dirtyBlocks(assert, c, 3)
	tr.EXPECT().Scatter(dev, uint64(3*4096), gomock.Len(1)).DoAndReturn(
		func(dev common.Dev, off uint64, iov [][]byte) (uint64, error) {
			assert.Equal(filled(4096, 3), iov[0])
			return 4096, nil
		})
	assert.NoError(c.Flush(dev))
}

func TestSetBlockSizeTooLarge(t *testing.T) {
	assert := assert.New(t)
	c, _ := mkMockCache(t, testConfig())
	dirtyBlocks(assert, c, 1)
	assert.Panics(func() { c.SetBlockSize(65 * 4096) })
	assert.Panics(func() { c.SetBlockSize(0) })
	// refused before anything was written or dropped
	assert.Equal(uint64(1024), c.BlockSize())
	assert.True(c.IsCached(dev, 1))
	assert.Equal([]common.Dev{dev}, c.dirtyDevs())
}

func TestResizeWritesBackDirty(t *testing.T) {
	assert := assert.New(t)
	p := &probe{mem: 8 * gb}
	cfg := DefaultConfig()
	cfg.Mem = p.probe
	cfg.Alloc = HeapAllocator()
	cfg.Quiet = true
	c, tr := mkMockCache(t, cfg)
	assert.Equal(uint64(6), c.NumBufs())
	dirtyBlocks(assert, c, 4, 2, 1)

	gomock.InOrder(
		tr.EXPECT().Scatter(dev, uint64(4096), gomock.Len(2)).DoAndReturn(
			func(dev common.Dev, off uint64, iov [][]byte) (uint64, error) {
				assert.Equal(filled(4096, 1), iov[0])
				assert.Equal(filled(4096, 2), iov[1])
				return 8192, nil
			}),
		tr.EXPECT().Scatter(dev, uint64(4*4096), gomock.Len(1)).DoAndReturn(
			func(dev common.Dev, off uint64, iov [][]byte) (uint64, error) {
				assert.Equal(filled(4096, 4), iov[0])
				return 4096, nil
			}),
	)
	c.SetBlockUsage(100, 50)
	assert.Equal(uint64(50), c.NumBufs())
	assert.Equal(uint64(1), c.Stats().Resizes)
	assert.Empty(c.dirtyDevs())
	for _, n := range []uint64{1, 2, 4} {
		assert.False(c.IsCached(dev, n))
	}
	checkInvariants(assert, c)
}
