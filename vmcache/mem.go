package vmcache

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-bcache/common"
	"github.com/mit-pdos/go-bcache/util"
)

var _ Cache = (*MemCache)(nil)

type entry struct {
	dev    common.Dev
	off    uint64
	ino    common.Inum
	inoOff uint64
	data   []byte
	once   bool
}

type inoKey struct {
	dev    common.Dev
	ino    common.Inum
	inoOff uint64
}

// MemCache is an in-process Cache bounded by total bytes. Ristretto decides
// admission and eviction; its eviction callback feeds Reclaimed.
type MemCache struct {
	store *ristretto.Cache[string, *entry]

	mu        *sync.Mutex
	devs      map[common.Dev]map[uint64]*entry
	inodes    map[inoKey]*entry
	reclaimed []Block
}

// MkMemCache builds a cache holding up to maxBytes of block data. With
// maxBytes 0 the cache is disabled and every registration reports
// Unsupported.
func MkMemCache(maxBytes uint64) (*MemCache, error) {
	c := &MemCache{
		mu:     new(sync.Mutex),
		devs:   make(map[common.Dev]map[uint64]*entry),
		inodes: make(map[inoKey]*entry),
	}
	if maxBytes == 0 {
		return c, nil
	}
	// ten counters per block that fits
	counters := util.Max(int64(maxBytes/common.PAGESIZE)*10, 1000)
	store, err := ristretto.NewCache(&ristretto.Config[string, *entry]{
		NumCounters: counters,
		MaxCost:     int64(maxBytes),
		BufferItems: 64,
		OnEvict: func(item *ristretto.Item[*entry]) {
			c.unindex(item.Value, true)
		},
		OnReject: func(item *ristretto.Item[*entry]) {
			c.unindex(item.Value, false)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "vmcache: ristretto")
	}
	c.store = store
	return c, nil
}

func blockKey(dev common.Dev, off uint64) string {
	enc := marshal.NewEnc(16)
	enc.PutInt(uint64(dev))
	enc.PutInt(off)
	return string(enc.Finish())
}

func (c *MemCache) Enabled() bool {
	return c.store != nil
}

// unindex drops e from the indexes unless it was already replaced.
func (c *MemCache) unindex(e *entry, reclaimed bool) {
	if e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	offs := c.devs[e.dev]
	if offs[e.off] == e {
		delete(offs, e.off)
		if len(offs) == 0 {
			delete(c.devs, e.dev)
		}
	}
	if e.ino != common.NULLINUM {
		k := inoKey{e.dev, e.ino, e.inoOff}
		if c.inodes[k] == e {
			delete(c.inodes, k)
		}
	}
	if reclaimed {
		c.reclaimed = append(c.reclaimed, Block{Dev: e.dev, Off: e.off})
	}
}

func (c *MemCache) index(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	offs, ok := c.devs[e.dev]
	if !ok {
		offs = make(map[uint64]*entry)
		c.devs[e.dev] = offs
	}
	offs[e.off] = e
	if e.ino != common.NULLINUM {
		c.inodes[inoKey{e.dev, e.ino, e.inoOff}] = e
	}
}

func (c *MemCache) byInode(dev common.Dev, ino common.Inum, inoOff uint64) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.inodes[inoKey{dev, ino, inoOff}]
	return e, ok
}

func (c *MemCache) Map(dev common.Dev, off uint64, ino common.Inum, inoOff uint64, size uint64) ([]byte, bool) {
	if c.store == nil {
		return nil, false
	}
	key := blockKey(dev, off)
	e, ok := c.store.Get(key)
	if !ok && ino != common.NULLINUM {
		var ie *entry
		ie, ok = c.byInode(dev, ino, inoOff)
		if ok {
			key = blockKey(ie.dev, ie.off)
			e, ok = c.store.Get(key)
			if ok && e != ie {
				ok = false
			}
		}
	}
	if !ok || uint64(len(e.data)) != size {
		return nil, false
	}
	data := util.CloneByteSlice(e.data)
	if e.once {
		c.store.Del(key)
		c.store.Wait()
		c.unindex(e, false)
	}
	return data, true
}

func (c *MemCache) Register(data []byte, dev common.Dev, off uint64, ino common.Inum, inoOff uint64, flags Flags) Result {
	if c.store == nil {
		return Result{Status: Unsupported}
	}
	if len(data) == 0 || dev == common.NODEV {
		return Result{
			Status: Failed,
			Err:    errors.Newf("vmcache: bad registration dev %d off %d len %d", dev, off, len(data)),
		}
	}
	e := &entry{
		dev:    dev,
		off:    off,
		ino:    ino,
		inoOff: inoOff,
		data:   util.CloneByteSlice(data),
		once:   flags&FlagOnce != 0,
	}
	// indexed first: ristretto decides admission inside Wait, and OnReject
	// must find the entry to drop it
	c.index(e)
	key := blockKey(dev, off)
	if !c.store.Set(key, e, int64(len(data))) {
		c.unindex(e, false)
		return Result{Status: OutOfMemory}
	}
	c.store.Wait()
	if _, ok := c.store.Get(key); !ok {
		c.unindex(e, false)
		return Result{Status: OutOfMemory}
	}
	return Result{Status: OK}
}

func (c *MemCache) Forget(dev common.Dev, off uint64, size uint64) {
	if c.store == nil {
		return
	}
	var drop []*entry
	c.mu.Lock()
	for o, e := range c.devs[dev] {
		if o >= off && o-off < size {
			drop = append(drop, e)
		}
	}
	c.mu.Unlock()
	c.drop(drop)
}

func (c *MemCache) Clear(dev common.Dev) {
	if c.store == nil {
		return
	}
	var drop []*entry
	c.mu.Lock()
	for _, e := range c.devs[dev] {
		drop = append(drop, e)
	}
	c.mu.Unlock()
	c.drop(drop)
}

func (c *MemCache) drop(es []*entry) {
	for _, e := range es {
		c.store.Del(blockKey(e.dev, e.off))
	}
	c.store.Wait()
	for _, e := range es {
		c.unindex(e, false)
	}
}

func (c *MemCache) Reclaimed() []Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.reclaimed
	c.reclaimed = nil
	return r
}

// Len reports the number of indexed entries.
func (c *MemCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, offs := range c.devs {
		n += len(offs)
	}
	return n
}

func (c *MemCache) Close() {
	if c.store != nil {
		c.store.Close()
	}
}
