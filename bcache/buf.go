package bcache

import (
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-bcache/common"
)

const none = -1

// A Buf holds one block of a device. Callers get one from GetBlock, may
// read and modify Data while they hold it, and hand it back with PutBlock.
type Buf struct {
	Data []byte

	dev   common.Dev
	blkno uint64
	size  uint64

	count  uint64
	locked bool

	dirty         bool
	needsRegister bool // second-level cache has not seen this content
	evicted       bool // second-level cache dropped the block
	owned         bool // Data came from the allocator

	ino    common.Inum
	inoOff uint64

	idx   int
	prev  int
	next  int
	hnext int
}

func (b *Buf) Dev() common.Dev {
	return b.dev
}

func (b *Buf) Blkno() uint64 {
	return b.blkno
}

// Size is the number of valid bytes, less than the block size only for the
// last block of a device.
func (b *Buf) Size() uint64 {
	return b.size
}

func (b *Buf) Ino() (common.Inum, uint64) {
	return b.ino, b.inoOff
}

func (b *Buf) IsDirty() bool {
	return b.dirty
}

func (b *Buf) SetDirty() {
	if b.dev == common.NODEV || b.size == 0 {
		panic("SetDirty")
	}
	b.dirty = true
	b.needsRegister = true
}

func (b *Buf) setClean() {
	b.dirty = false
}

func (b *Buf) BnumGet(off uint64) common.Bnum {
	dec := marshal.NewDec(b.Data[off : off+8])
	return common.Bnum(dec.GetInt())
}

func (b *Buf) BnumPut(off uint64, v common.Bnum) {
	enc := marshal.NewEnc(8)
	enc.PutInt(uint64(v))
	copy(b.Data[off:off+8], enc.Finish())
	b.SetDirty()
}
