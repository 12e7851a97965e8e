package bcache

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	goose "github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/go-bcache/common"
	"github.com/mit-pdos/go-bcache/disk"
)

const dev common.Dev = 1
const dev2 common.Dev = 2

type bufKey struct {
	dev   common.Dev
	blkno uint64
}

// checkInvariants walks the whole pool.
func checkInvariants(assert *assert.Assertions, c *Cache) {
	inLRU := make(map[int]int)
	prev := none
	for i := c.front; i != none; i = c.bufs[i].next {
		inLRU[i]++
		if !assert.Equal(1, inLRU[i], "LRU cycle at %d", i) {
			return
		}
		assert.Equal(prev, c.bufs[i].prev, "prev link of %d", i)
		prev = i
	}
	assert.Equal(prev, c.rear)

	seen := make(map[bufKey]int)
	inUse := uint64(0)
	for i := range c.bufs {
		b := &c.bufs[i]
		assert.Equal(i, b.idx)
		if b.count > 0 {
			inUse++
			assert.Zero(inLRU[i], "held buffer %d on LRU", i)
			assert.True(b.locked)
		} else {
			assert.Equal(1, inLRU[i], "free buffer %d not on LRU", i)
			assert.False(b.locked)
		}
		if b.dev == common.NODEV {
			assert.Zero(b.size)
			assert.Nil(b.Data)
			assert.False(b.dirty)
		} else {
			seen[bufKey{b.dev, b.blkno}]++
			assert.Equal(b.size, uint64(len(b.Data)))
		}
		if b.dirty {
			assert.NotEqual(common.NODEV, b.dev)
			assert.NotZero(b.size)
		}
	}
	for k, n := range seen {
		assert.Equal(1, n, "block %v cached %d times", k, n)
	}
	assert.Equal(inUse, c.inUse)

	hashed := 0
	for h, head := range c.hash {
		for i := head; i != none; i = c.bufs[i].hnext {
			assert.NotEqual(common.NODEV, c.bufs[i].dev)
			assert.Equal(h, c.bucket(c.bufs[i].blkno))
			hashed++
		}
	}
	assert.Equal(len(seen), hashed)
}

func fill(b *Buf, v byte) {
	for i := range b.Data {
		b.Data[i] = v + byte(i)
	}
}

func filled(n uint64, v byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = v + byte(i)
	}
	return p
}

type CacheSuite struct {
	suite.Suite
	drv *disk.Driver
	c   *Cache
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BlockSize = 1024
	cfg.NumBufs = 8
	cfg.Quiet = true
	return cfg
}

func (suite *CacheSuite) SetupTest() {
	suite.drv = disk.MkDriver()
	suite.NoError(suite.drv.Attach(dev, disk.MkGooseDevice(goose.NewMemDisk(64), 64)))
	suite.NoError(suite.drv.Attach(dev2, disk.MkGooseDevice(goose.NewMemDisk(64), 64)))
	suite.c = MkCache(suite.drv, nil, testConfig())
}

func (suite *CacheSuite) TearDownTest() {
	checkInvariants(suite.Assert(), suite.c)
}

func TestCache(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (suite *CacheSuite) get(blkno uint64) *Buf {
	b, err := suite.c.GetBlock(dev, blkno, Normal)
	suite.Require().NoError(err)
	return b
}

func (suite *CacheSuite) TestRoundTrip() {
	c := suite.c
	b := suite.get(5)
	suite.Equal(make([]byte, 1024), b.Data)
	suite.Equal(dev, b.Dev())
	suite.Equal(uint64(5), b.Blkno())
	fill(b, 5)
	c.MarkDirty(b)
	c.PutBlock(b, PutNormal)
	checkInvariants(suite.Assert(), c)

	b = suite.get(5)
	suite.Equal(filled(1024, 5), b.Data)
	suite.False(c.IsClean(b))
	c.PutBlock(b, PutNormal)
	suite.Equal(uint64(1), c.Stats().Hits)

	suite.NoError(c.Flush(dev))
	c.Invalidate(dev)
	suite.False(c.IsCached(dev, 5))

	b = suite.get(5)
	suite.Equal(filled(1024, 5), b.Data)
	suite.True(c.IsClean(b))
	c.PutBlock(b, PutNormal)
}

func (suite *CacheSuite) TestHitTakesReference() {
	c := suite.c
	b1 := suite.get(1)
	b2 := suite.get(1)
	suite.Same(b1, b2)
	suite.Equal(uint64(1), c.InUse())
	c.PutBlock(b1, PutNormal)
	suite.Equal(uint64(1), c.InUse())
	checkInvariants(suite.Assert(), c)
	c.PutBlock(b2, PutNormal)
	suite.Equal(uint64(0), c.InUse())
}

func (suite *CacheSuite) TestPeek() {
	c := suite.c
	b, err := c.GetBlock(dev, 3, Peek)
	suite.Nil(b)
	suite.True(errors.Is(err, ErrNotCached))
	suite.False(c.IsCached(dev, 3))
	// the probed buffer is back at the front, unassigned
	suite.Equal(common.NODEV, c.bufs[c.front].dev)
	checkInvariants(suite.Assert(), c)

	b = suite.get(3)
	c.PutBlock(b, PutNormal)
	b, err = c.GetBlock(dev, 3, Peek)
	suite.NoError(err)
	suite.Equal(uint64(3), b.Blkno())
	c.PutBlock(b, PutNormal)
}

func (suite *CacheSuite) TestNoRead() {
	c := suite.c
	b, err := c.GetBlock(dev, 9, NoRead)
	suite.NoError(err)
	suite.Equal(uint64(0), c.Stats().Reads)
	suite.Equal(uint64(1024), b.Size())
	c.PutBlock(b, PutNormal)
}

func (suite *CacheSuite) TestPartialBlock() {
	c := suite.c
	b, err := c.GetPartialBlock(dev, 63, Normal, 100)
	suite.NoError(err)
	suite.Equal(uint64(100), b.Size())
	suite.Len(b.Data, 100)
	c.PutBlock(b, PutNormal)

	_, err = c.GetBlock(dev, 63, Normal)
	suite.True(errors.Is(err, ErrIO))
	suite.Equal(uint64(0), c.InUse())
}

func (suite *CacheSuite) TestIno() {
	c := suite.c
	b, err := c.GetBlockIno(dev, 4, Normal, 12, 8192)
	suite.NoError(err)
	ino, off := b.Ino()
	suite.Equal(common.Inum(12), ino)
	suite.Equal(uint64(8192), off)
	c.PutBlock(b, PutNormal)

	b, err = c.GetBlockIno(dev, 4, Normal, 13, 0)
	suite.NoError(err)
	ino, _ = b.Ino()
	suite.Equal(common.Inum(13), ino)
	suite.True(b.needsRegister)
	c.PutBlock(b, PutNormal)
}

func (suite *CacheSuite) TestFlushIdempotent() {
	c := suite.c
	for _, n := range []uint64{3, 1, 2} {
		b := suite.get(n)
		fill(b, byte(n))
		c.MarkDirty(b)
		c.PutBlock(b, PutNormal)
	}
	suite.NoError(c.Flush(dev))
	suite.Equal(uint64(1), c.Stats().Scatters, "one run for 1..3")
	suite.NoError(c.Flush(dev))
	suite.Equal(uint64(1), c.Stats().Scatters)
}

func (suite *CacheSuite) TestMarkClean() {
	c := suite.c
	b := suite.get(4)
	fill(b, 4)
	c.MarkDirty(b)
	suite.False(c.IsClean(b))
	// the change is dropped: nothing to write back
	c.MarkClean(b)
	suite.True(c.IsClean(b))
	c.PutBlock(b, PutNormal)

	suite.NoError(c.FlushAll())
	suite.Equal(uint64(0), c.Stats().Scatters)
	c.Invalidate(dev)
	b = suite.get(4)
	suite.Equal(make([]byte, 1024), b.Data)
	c.PutBlock(b, PutNormal)
}

func (suite *CacheSuite) TestFlushSkipsHeld() {
	c := suite.c
	b := suite.get(1)
	fill(b, 1)
	c.MarkDirty(b)
	suite.NoError(c.Flush(dev))
	suite.Equal(uint64(0), c.Stats().Scatters)
	c.PutBlock(b, PutNormal)
	suite.NoError(c.Flush(dev))
	suite.Equal(uint64(1), c.Stats().Scatters)
}

func (suite *CacheSuite) TestEvictionWritesBack() {
	c := suite.c
	b := suite.get(0)
	fill(b, 7)
	c.MarkDirty(b)
	c.PutBlock(b, PutNormal)
	for n := uint64(10); n < 18; n++ {
		c.PutBlock(suite.get(n), PutNormal)
	}
	suite.False(c.IsCached(dev, 0))
	suite.Equal(uint64(1), c.Stats().Scatters)

	b = suite.get(0)
	suite.Equal(filled(1024, 7), b.Data)
	c.PutBlock(b, PutNormal)
}

func (suite *CacheSuite) TestOneShot() {
	c := suite.c
	b := suite.get(2)
	fill(b, 2)
	c.MarkDirty(b)
	c.PutBlock(b, OneShot)
	suite.False(c.IsCached(dev, 2))
	suite.Equal(uint64(1), c.Stats().Scatters, "dirty one-shot block is written")
	suite.Equal(common.NODEV, c.bufs[c.front].dev)

	b = suite.get(2)
	suite.Equal(filled(1024, 2), b.Data)
	c.PutBlock(b, PutNormal)
}

func (suite *CacheSuite) TestFreeBlock() {
	c := suite.c
	b := suite.get(6)
	fill(b, 6)
	c.MarkDirty(b)
	c.PutBlock(b, PutNormal)
	c.FreeBlock(dev, 6)
	suite.False(c.IsCached(dev, 6))
	suite.NoError(c.Flush(dev))
	suite.Equal(uint64(0), c.Stats().Scatters)

	// held: only cleaned
	b = suite.get(7)
	c.MarkDirty(b)
	c.FreeBlock(dev, 7)
	suite.True(c.IsClean(b))
	suite.True(c.IsCached(dev, 7))
	c.PutBlock(b, PutNormal)
}

func (suite *CacheSuite) TestFlushAll() {
	c := suite.c
	for _, d := range []common.Dev{dev, dev2} {
		b, err := c.GetBlock(d, 1, Normal)
		suite.NoError(err)
		fill(b, byte(d))
		c.MarkDirty(b)
		c.PutBlock(b, PutNormal)
	}
	suite.NoError(c.FlushAll())
	suite.Equal(uint64(2), c.Stats().Scatters)
	suite.Empty(c.dirtyDevs())

	c.Invalidate(dev2)
	b, err := c.GetBlock(dev2, 1, Normal)
	suite.NoError(err)
	suite.Equal(filled(1024, byte(dev2)), b.Data)
	c.PutBlock(b, PutNormal)
}

func (suite *CacheSuite) TestInvalidateHeld() {
	c := suite.c
	b := suite.get(1)
	suite.Panics(func() { c.Invalidate(dev) })
	c.PutBlock(b, PutNormal)
}

func (suite *CacheSuite) TestPutUnheld() {
	c := suite.c
	b := suite.get(1)
	c.PutBlock(b, PutNormal)
	suite.Panics(func() { c.PutBlock(b, PutNormal) })
	c.PutBlock(nil, PutNormal)
}

func (suite *CacheSuite) TestPoolExhausted() {
	c := suite.c
	var held []*Buf
	for n := uint64(0); n < 8; n++ {
		held = append(held, suite.get(n))
	}
	suite.Panics(func() { c.GetBlock(dev, 8, Normal) })
	suite.Panics(func() { c.BufPool(16) })
	// a hit still works
	b := suite.get(3)
	c.PutBlock(b, PutNormal)
	for _, b := range held {
		c.PutBlock(b, PutNormal)
	}
}

func (suite *CacheSuite) TestBufPool() {
	c := suite.c
	b := suite.get(1)
	fill(b, 1)
	c.MarkDirty(b)
	c.PutBlock(b, PutNormal)

	c.BufPool(12)
	suite.Equal(uint64(12), c.NumBufs())
	suite.False(c.IsCached(dev, 1))
	suite.Equal(uint64(1), c.Stats().Scatters, "dirty buffers written before rebuild")
	suite.Panics(func() { c.BufPool(2) })

	b = suite.get(1)
	suite.Equal(filled(1024, 1), b.Data)
	c.PutBlock(b, PutNormal)
}

func (suite *CacheSuite) TestBnum() {
	c := suite.c
	b := suite.get(1)
	b.BnumPut(16, 0xdeadbeef)
	suite.True(b.IsDirty())
	suite.Equal(common.Bnum(0xdeadbeef), b.BnumGet(16))
	c.PutBlock(b, PutNormal)
}

func (suite *CacheSuite) TestMarkDirtyUnassigned() {
	suite.Panics(func() { new(Buf).SetDirty() })
}

type failingAllocator struct {
	Allocator
	fail int
}

func (a *failingAllocator) Alloc(size uint64) ([]byte, error) {
	if a.fail > 0 {
		a.fail--
		return nil, errors.New("no memory")
	}
	return a.Allocator.Alloc(size)
}

func TestAllocRetry(t *testing.T) {
	assert := assert.New(t)
	drv := disk.MkDriver()
	assert.NoError(drv.Attach(dev, disk.MkGooseDevice(goose.NewMemDisk(16), 16)))
	a := &failingAllocator{Allocator: HeapAllocator()}
	cfg := testConfig()
	cfg.Alloc = a
	c := MkCache(drv, nil, cfg)

	for n := uint64(0); n < 4; n++ {
		b, err := c.GetBlock(dev, n, Normal)
		assert.NoError(err)
		c.PutBlock(b, PutNormal)
	}
	held, err := c.GetBlock(dev, 10, Normal)
	assert.NoError(err)

	a.fail = 1
	b, err := c.GetBlock(dev, 11, Normal)
	assert.NoError(err)
	for n := uint64(0); n < 4; n++ {
		assert.False(c.IsCached(dev, n), "unreferenced blocks freed")
	}
	assert.True(c.IsCached(dev, 10))
	c.PutBlock(b, PutNormal)
	checkInvariants(assert, c)

	a.fail = 2
	assert.Panics(func() { c.GetBlock(dev, 12, Normal) })
	c.PutBlock(held, PutNormal)
}

func TestBadConfig(t *testing.T) {
	drv := disk.MkDriver()
	cfg := testConfig()
	cfg.NumBufs = 3
	assert.Panics(t, func() { MkCache(drv, nil, cfg) })

	cfg = testConfig()
	cfg.BlockSize = 1 << 20 // 256 pages
	assert.Panics(t, func() { MkCache(drv, nil, cfg) })

	cfg = testConfig()
	cfg.BlockSize = 0
	assert.Panics(t, func() { MkCache(drv, nil, cfg) })
}

func TestMmapAllocator(t *testing.T) {
	assert := assert.New(t)
	a := defaultAllocator()
	data, err := a.Alloc(1000)
	assert.NoError(err)
	assert.Len(data, 1000)
	assert.Equal(make([]byte, 1000), data)
	data[999] = 1
	assert.NoError(a.Free(data))
}
