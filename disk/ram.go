package disk

import (
	"github.com/mit-pdos/go-bcache/common"
	"github.com/mit-pdos/go-bcache/shardmap"
)

var _ Device = (*ramDevice)(nil)

// ramDevice is a sparse in-memory device. The cache keeps its blocks cold
// since rereading them costs no disk I/O.
type ramDevice struct {
	chunks *shardmap.BlockMap
	size   uint64
}

func MkRamDevice(size uint64) *ramDevice {
	return &ramDevice{chunks: shardmap.MkBlockMap(), size: size}
}

func (d *ramDevice) chunkSize() uint64 {
	return common.PAGESIZE
}

func (d *ramDevice) readChunk(n uint64, buf []byte) error {
	blk, ok := d.chunks.Read(n)
	if !ok {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	copy(buf, blk)
	return nil
}

func (d *ramDevice) writeChunks(chunks []chunk) error {
	ups := make([]shardmap.Update, 0, len(chunks))
	for _, c := range chunks {
		ups = append(ups, shardmap.Update{Addr: c.n, Block: c.data})
	}
	d.chunks.MultiWrite(ups)
	return nil
}

func (d *ramDevice) ReadAt(p []byte, off uint64) (uint64, error) {
	return chunkedRead(d, d.size, p, off)
}

func (d *ramDevice) WriteAt(p []byte, off uint64) (uint64, error) {
	return chunkedWrite(d, d.size, p, off)
}

func (d *ramDevice) Size() uint64 { return d.size }

func (d *ramDevice) Sync() error { return nil }

func (d *ramDevice) Close() error { return nil }

func (d *ramDevice) Volatile() bool { return true }
