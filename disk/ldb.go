package disk

import (
	"github.com/cockroachdb/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-bcache/common"
)

var _ Device = (*ldbDevice)(nil)

// ldbDevice persists device contents in a LevelDB database, one key per
// page-sized chunk.
type ldbDevice struct {
	db   *leveldb.DB
	size uint64
	wo   *opt.WriteOptions
}

// MkLdbDevice opens (or creates) the database at path. With sync set,
// every write is synced to stable storage before it returns.
func MkLdbDevice(path string, size uint64, sync bool) (*ldbDevice, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb %s", path)
	}
	return &ldbDevice{db: db, size: size, wo: &opt.WriteOptions{Sync: sync}}, nil
}

func chunkKey(n uint64) []byte {
	enc := marshal.NewEnc(8)
	enc.PutInt(n)
	return enc.Finish()
}

func (d *ldbDevice) chunkSize() uint64 {
	return common.PAGESIZE
}

func (d *ldbDevice) readChunk(n uint64, buf []byte) error {
	v, err := d.db.Get(chunkKey(n), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "get chunk %d", n)
	}
	copy(buf, v)
	return nil
}

func (d *ldbDevice) writeChunks(chunks []chunk) error {
	batch := new(leveldb.Batch)
	for _, c := range chunks {
		batch.Put(chunkKey(c.n), c.data)
	}
	return errors.Wrap(d.db.Write(batch, d.wo), "write chunks")
}

func (d *ldbDevice) ReadAt(p []byte, off uint64) (uint64, error) {
	return chunkedRead(d, d.size, p, off)
}

func (d *ldbDevice) WriteAt(p []byte, off uint64) (uint64, error) {
	return chunkedWrite(d, d.size, p, off)
}

func (d *ldbDevice) Size() uint64 { return d.size }

// Sync is a no-op: durability is decided per write by the sync option.
func (d *ldbDevice) Sync() error { return nil }

func (d *ldbDevice) Close() error {
	return errors.Wrap(d.db.Close(), "close leveldb")
}
