package bcache

import (
	"github.com/cockroachdb/errors"
	"github.com/pbnjay/memory"

	"github.com/mit-pdos/go-bcache/common"
	"github.com/mit-pdos/go-bcache/disk"
	"github.com/mit-pdos/go-bcache/util"
)

// MemProbe reports how many bytes of system memory the cache could claim
// (free plus reclaimable).
type MemProbe func() (uint64, error)

type Config struct {
	BlockSize uint64
	// NumBufs fixes the pool size. With 0 the pool is sized by the
	// heuristic once file-system usage is known.
	NumBufs     uint64
	MinBufs     uint64
	MaxPrefetch uint64
	// MaxIovecs bounds the page fragments in one Gather or Scatter.
	MaxIovecs uint64
	PageSize  uint64
	UseVM     bool
	Quiet     bool
	Mem       MemProbe
	Alloc     Allocator
}

func DefaultConfig() Config {
	return Config{
		BlockSize:   common.PAGESIZE,
		MinBufs:     6,
		MaxPrefetch: 64,
		MaxIovecs:   disk.MaxIovecs,
		PageSize:    common.PAGESIZE,
		UseVM:       true,
		Mem:         SystemMemory,
		Alloc:       defaultAllocator(),
	}
}

// SystemMemory probes physical memory. The whole of it counts as
// reclaimable.
func SystemMemory() (uint64, error) {
	total := memory.TotalMemory()
	if total == 0 {
		return 0, errors.New("bcache: cannot determine system memory")
	}
	return total, nil
}

func (cfg Config) validate() error {
	if cfg.BlockSize == 0 || cfg.PageSize == 0 {
		return errors.Newf("bcache: block size %d, page size %d", cfg.BlockSize, cfg.PageSize)
	}
	if cfg.MinBufs == 0 || cfg.MaxPrefetch == 0 {
		return errors.Newf("bcache: min bufs %d, max prefetch %d", cfg.MinBufs, cfg.MaxPrefetch)
	}
	if cfg.NumBufs != 0 && cfg.NumBufs < cfg.MinBufs {
		return errors.Newf("bcache: %d buffers, need at least %d", cfg.NumBufs, cfg.MinBufs)
	}
	return cfg.checkBlockSize(cfg.BlockSize)
}

// checkBlockSize reports whether one block of bs bytes fits in a single
// transport request.
func (cfg Config) checkBlockSize(bs uint64) error {
	if bs == 0 {
		return errors.New("bcache: block size 0")
	}
	if util.RoundUp(bs, cfg.PageSize) > cfg.MaxIovecs {
		return errors.Newf("bcache: block of %d bytes needs more than %d iovecs",
			bs, cfg.MaxIovecs)
	}
	return nil
}
