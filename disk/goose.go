package disk

import (
	goose "github.com/tchajed/goose/machine/disk"
)

var _ Device = (*gooseDevice)(nil)

// gooseDevice exposes a goose block disk as a byte-addressed device.
// Transfers that do not cover whole goose blocks read-modify-write them.
type gooseDevice struct {
	d    goose.Disk
	size uint64
}

// MkGooseDevice wraps d, which must hold numBlocks blocks of
// goose.BlockSize bytes.
func MkGooseDevice(d goose.Disk, numBlocks uint64) *gooseDevice {
	return &gooseDevice{d: d, size: numBlocks * goose.BlockSize}
}

func (g *gooseDevice) chunkSize() uint64 {
	return goose.BlockSize
}

func (g *gooseDevice) readChunk(n uint64, buf []byte) error {
	blk := g.d.Read(n)
	copy(buf, blk)
	return nil
}

func (g *gooseDevice) writeChunks(chunks []chunk) error {
	for _, c := range chunks {
		g.d.Write(c.n, c.data)
	}
	return nil
}

func (g *gooseDevice) ReadAt(p []byte, off uint64) (uint64, error) {
	return chunkedRead(g, g.size, p, off)
}

func (g *gooseDevice) WriteAt(p []byte, off uint64) (uint64, error) {
	return chunkedWrite(g, g.size, p, off)
}

func (g *gooseDevice) Size() uint64 { return g.size }

func (g *gooseDevice) Sync() error {
	g.d.Barrier()
	return nil
}

func (g *gooseDevice) Close() error {
	g.d.Close()
	return nil
}
