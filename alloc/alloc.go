package alloc

import (
	"sync"

	"github.com/mit-pdos/go-bcache/bcache"
	"github.com/mit-pdos/go-bcache/common"
	"github.com/mit-pdos/go-bcache/util"
)

// UsageObserver is told how many numbers were allocated (delta > 0) or
// freed. The buffer cache implements it to size itself.
type UsageObserver interface {
	ChangeBlockUsage(delta int64)
}

// Alloc uses a bit map to allocate and free numbers. Bit 0 corresponds to
// number 0, bit 1 to 1, and so on; number 0 is never handed out. The bit
// map lives in blocks start..start+len-1 of dev and is accessed through the
// buffer cache.
type Alloc struct {
	lock  *sync.Mutex // protects next
	cache *bcache.Cache
	dev   common.Dev
	start uint64
	len   uint64
	max   uint64
	next  uint64 // first number to try
	obs   UsageObserver
}

// MkAlloc manages numbers below max with the bit map at blocks
// start..start+len-1 of dev. obs may be nil.
func MkAlloc(cache *bcache.Cache, dev common.Dev, start uint64, len uint64, max uint64, obs UsageObserver) *Alloc {
	if max > len*cache.BlockSize()*8 {
		panic("MkAlloc")
	}
	a := &Alloc{
		lock:  new(sync.Mutex),
		cache: cache,
		dev:   dev,
		start: start,
		len:   len,
		max:   max,
		next:  1,
		obs:   obs,
	}
	return a
}

func (a *Alloc) bitsPerBlock() uint64 {
	return a.cache.BlockSize() * 8
}

func popCnt(b byte) uint64 {
	var count uint64
	var x = b
	for i := uint64(0); i < 8; i++ {
		count += uint64(x & 1)
		x = x >> 1
	}
	return count
}

// Format clears the bit map, leaving only number 0 used.
func (a *Alloc) Format() error {
	a.lock.Lock()
	defer a.lock.Unlock()
	for i := uint64(0); i < a.len; i++ {
		b, err := a.cache.GetBlock(a.dev, a.start+i, bcache.NoRead)
		if err != nil {
			return err
		}
		for j := range b.Data {
			b.Data[j] = 0
		}
		if i == 0 {
			b.Data[0] = 1
		}
		a.cache.MarkDirty(b)
		a.cache.PutBlock(b, bcache.PutNormal)
	}
	a.next = 1
	return nil
}

// update runs f on the bit map block holding number n and the bit offset of
// n within it. f reports whether it changed the block.
func (a *Alloc) update(n uint64, f func(b *bcache.Buf, bit uint64) bool) error {
	bpb := a.bitsPerBlock()
	b, err := a.cache.GetBlock(a.dev, a.start+n/bpb, bcache.Normal)
	if err != nil {
		return err
	}
	if f(b, n%bpb) {
		a.cache.MarkDirty(b)
	}
	a.cache.PutBlock(b, bcache.PutNormal)
	return nil
}

// findFree scans the bit map block holding next for a free bit at or
// after next, sets it and returns its number.
func (a *Alloc) findFree(next uint64) (uint64, bool, error) {
	bpb := a.bitsPerBlock()
	end := util.Min((next/bpb+1)*bpb, a.max)
	var num uint64
	found := false
	err := a.update(next, func(b *bcache.Buf, bit uint64) bool {
		for n := next; n < end; n, bit = n+1, bit+1 {
			if n != 0 && b.Data[bit/8]&(1<<(bit%8)) == 0 {
				b.Data[bit/8] |= 1 << (bit % 8)
				num = n
				found = true
				return true
			}
		}
		return false
	})
	return num, found, err
}

// AllocNum returns a free number, or 0 if there is none.
func (a *Alloc) AllocNum() (uint64, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	bpb := a.bitsPerBlock()
	next := a.next
	for scanned := uint64(0); scanned <= a.max; {
		if next >= a.max {
			next = 0
		}
		num, ok, err := a.findFree(next)
		if err != nil {
			return 0, err
		}
		if ok {
			a.next = num + 1
			if a.obs != nil {
				a.obs.ChangeBlockUsage(1)
			}
			util.DPrintf(10, "alloc: %d\n", num)
			return num, nil
		}
		step := util.Min((next/bpb+1)*bpb, a.max) - next
		scanned += step
		next += step
	}
	return common.NULLBNUM, nil
}

func (a *Alloc) FreeNum(num uint64) error {
	if num == 0 || num >= a.max {
		panic("FreeNum")
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	err := a.update(num, func(b *bcache.Buf, bit uint64) bool {
		if b.Data[bit/8]&(1<<(bit%8)) == 0 {
			panic("FreeNum")
		}
		b.Data[bit/8] &= ^(1 << (bit % 8))
		return true
	})
	if err != nil {
		return err
	}
	if a.obs != nil {
		a.obs.ChangeBlockUsage(-1)
	}
	return nil
}

// MarkUsed sets the bit for num without reporting it; usage found this way
// is reported as a whole through Usage.
func (a *Alloc) MarkUsed(num uint64) error {
	if num >= a.max {
		panic("MarkUsed")
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.update(num, func(b *bcache.Buf, bit uint64) bool {
		if b.Data[bit/8]&(1<<(bit%8)) != 0 {
			return false
		}
		b.Data[bit/8] |= 1 << (bit % 8)
		return true
	})
}

// Usage reports how many numbers can be allocated in total and how many
// are allocated.
func (a *Alloc) Usage() (uint64, uint64, error) {
	free, err := a.NumFree()
	if err != nil {
		return 0, 0, err
	}
	return a.max - 1, a.max - 1 - free, nil
}

func (a *Alloc) NumFree() (uint64, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	bpb := a.bitsPerBlock()
	used := uint64(0)
	for i := uint64(0); i < a.len && i*bpb < a.max; i++ {
		b, err := a.cache.GetBlock(a.dev, a.start+i, bcache.Normal)
		if err != nil {
			return 0, err
		}
		nbytes := util.Min(util.RoundUp(a.max-i*bpb, 8), uint64(len(b.Data)))
		for _, x := range b.Data[:nbytes] {
			used += popCnt(x)
		}
		a.cache.PutBlock(b, bcache.PutNormal)
	}
	return a.max - used, nil
}
