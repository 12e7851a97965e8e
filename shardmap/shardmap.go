// shardmap is a sparse, sharded map from chunk number to chunk contents.
//
// It stores the contents of the RAM device: chunks that were never written
// are absent and read as zeroes. Each shard has its own RWMutex so
// concurrent transfers to different chunks do not serialize.
package shardmap

import (
	"sort"
	"sync"

	"github.com/mit-pdos/go-bcache/util"
)

type Update struct {
	Addr  uint64
	Block []byte
}

type mapShard struct {
	mu    *sync.RWMutex
	state map[uint64][]byte
}

type BlockMap struct {
	shards []*mapShard
}

const NSHARD uint64 = 64

func mkMapShard() *mapShard {
	return &mapShard{
		mu:    new(sync.RWMutex),
		state: make(map[uint64][]byte),
	}
}

func MkBlockMap() *BlockMap {
	shards := make([]*mapShard, 0, NSHARD)
	for i := uint64(0); i < NSHARD; i++ {
		shards = append(shards, mkMapShard())
	}
	return &BlockMap{shards: shards}
}

func (bmap *BlockMap) GetShardNo(addr uint64) uint64 {
	return addr % NSHARD
}

func (bmap *BlockMap) GetShard(addr uint64) *mapShard {
	return bmap.shards[bmap.GetShardNo(addr)]
}

// Read returns a private copy of the chunk at addr.
func (bmap *BlockMap) Read(addr uint64) ([]byte, bool) {
	shard := bmap.GetShard(addr)
	shard.mu.RLock()
	blk0, ok := shard.state[addr]
	var blk []byte
	if ok {
		blk = util.CloneByteSlice(blk0)
	}
	shard.mu.RUnlock()
	return blk, ok
}

// Write stores blk at addr; the map takes ownership of blk.
func (bmap *BlockMap) Write(addr uint64, blk []byte) {
	shard := bmap.GetShard(addr)
	shard.mu.Lock()
	shard.state[addr] = blk
	shard.mu.Unlock()
}

func (bmap *BlockMap) Delete(addr uint64) {
	shard := bmap.GetShard(addr)
	shard.mu.Lock()
	delete(shard.state, addr)
	shard.mu.Unlock()
}

// MultiWrite installs all updates atomically with respect to readers of
// the same shards. Shards are locked in ascending order.
func (bmap *BlockMap) MultiWrite(bufs []Update) {
	if len(bufs) == 0 {
		return
	}
	shardnolist := make([]uint64, 0, len(bufs))
	for _, b := range bufs {
		shardnolist = append(shardnolist, bmap.GetShardNo(b.Addr))
	}
	sort.Slice(shardnolist, func(i, j int) bool { return shardnolist[i] < shardnolist[j] })
	uniq := shardnolist[:1]
	for _, sno := range shardnolist[1:] {
		if sno != uniq[len(uniq)-1] {
			uniq = append(uniq, sno)
		}
	}

	for _, sno := range uniq {
		bmap.shards[sno].mu.Lock()
	}
	for _, buf := range bufs {
		bmap.GetShard(buf.Addr).state[buf.Addr] = buf.Block
	}
	for _, sno := range uniq {
		bmap.shards[sno].mu.Unlock()
	}
}

// Len reports the number of chunks present.
func (bmap *BlockMap) Len() uint64 {
	n := uint64(0)
	for _, shard := range bmap.shards {
		shard.mu.RLock()
		n += uint64(len(shard.state))
		shard.mu.RUnlock()
	}
	return n
}
