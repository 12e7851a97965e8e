// lockmap is a sharded map of exclusive locks keyed by uint64.
//
// The disk driver uses it to serialize transfers to the same device when
// several caches share one driver: LockMap.Acquire(dev) blocks until no
// other transfer on dev is in flight, LockMap.Release(dev) lets the next one
// in.
//
// Only held (or waited-for) keys have state. Key k lives in shard
// k % NSHARD, so transfers to different devices rarely contend on a shard
// mutex.
package lockmap

import (
	"sync"
)

type holder struct {
	held    bool
	cond    *sync.Cond
	waiters uint64
}

type shard struct {
	mu      *sync.Mutex
	holders map[uint64]*holder
}

func mkShard() *shard {
	mu := new(sync.Mutex)
	return &shard{
		mu:      mu,
		holders: make(map[uint64]*holder),
	}
}

func (s *shard) acquire(key uint64) {
	s.mu.Lock()
	h, ok := s.holders[key]
	if !ok {
		h = &holder{cond: sync.NewCond(s.mu)}
		s.holders[key] = h
	}
	for h.held {
		h.waiters += 1
		h.cond.Wait()
		h.waiters -= 1
	}
	h.held = true
	s.mu.Unlock()
}

func (s *shard) release(key uint64) {
	s.mu.Lock()
	h, ok := s.holders[key]
	if !ok || !h.held {
		s.mu.Unlock()
		panic("lockmap: release of unheld key")
	}
	h.held = false
	if h.waiters > 0 {
		h.cond.Signal()
	} else {
		delete(s.holders, key)
	}
	s.mu.Unlock()
}

const NSHARD uint64 = 43

type LockMap struct {
	shards []*shard
}

func MkLockMap() *LockMap {
	shards := make([]*shard, 0, NSHARD)
	for i := uint64(0); i < NSHARD; i++ {
		shards = append(shards, mkShard())
	}
	return &LockMap{shards: shards}
}

func (lmap *LockMap) Acquire(key uint64) {
	lmap.shards[key%NSHARD].acquire(key)
}

func (lmap *LockMap) Release(key uint64) {
	lmap.shards[key%NSHARD].release(key)
}
