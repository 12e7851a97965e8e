package bcache

import (
	"github.com/cockroachdb/errors"

	"github.com/mit-pdos/go-bcache/common"
	"github.com/mit-pdos/go-bcache/vmcache"
)

type PutHint int

const (
	PutNormal PutHint = iota
	// OneShot marks a block not expected to be used again soon: it goes
	// to the front of the LRU chain and loses its identity.
	OneShot
)

// PutBlock releases a reference taken by a GetBlock call. A nil buffer is
// ignored.
func (c *Cache) PutBlock(b *Buf, hint PutHint) {
	if b == nil {
		return
	}
	if b.count == 0 {
		panic(errors.AssertionFailedf("bcache: put of unheld block %d of dev %d", b.blkno, b.dev))
	}
	b.count--
	if b.count > 0 {
		return
	}
	c.inUse--

	dev := b.dev
	if dev == common.NODEV || hint == OneShot || c.tr.Volatile(dev) {
		c.lruFront(b)
	} else {
		c.lruRear(b)
	}
	b.locked = false

	if hint == OneShot && b.dirty {
		if err := c.rwScattered(dev, []*Buf{b}, write); err != nil {
			c.warn("bcache: write back one-shot block %d of dev %d: %v\n", b.blkno, dev, err)
		}
	}

	if c.vmOK && b.needsRegister && b.dev != common.NODEV && b.size > 0 {
		c.register(b, hint)
	}
	b.needsRegister = false

	if hint == OneShot {
		c.detach(b)
	}
}

func (c *Cache) register(b *Buf, hint PutHint) {
	var flags vmcache.Flags
	if hint == OneShot {
		flags |= vmcache.FlagOnce
	}
	res := c.vm.Register(b.Data, b.dev, c.off(b.blkno), b.ino, b.inoOff, flags)
	switch res.Status {
	case vmcache.OK:
	case vmcache.Unsupported:
		c.warn("bcache: second-level cache unsupported, disabling it\n")
		c.vmOK = false
		c.cfg.UseVM = false
	case vmcache.OutOfMemory:
		// an older copy may still be there
		c.vm.Forget(b.dev, c.off(b.blkno), b.size)
		c.warn("bcache: second-level cache out of memory for block %d of dev %d\n", b.blkno, b.dev)
	default:
		err := res.Err
		if err == nil {
			err = errors.New(res.Status.String())
		}
		panic(errors.NewAssertionErrorWithWrappedErrf(err,
			"bcache: register block %d of dev %d", b.blkno, b.dev))
	}
}
