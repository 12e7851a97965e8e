package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
	goose "github.com/tchajed/goose/machine/disk"
	"github.com/urfave/cli/v2"

	"github.com/mit-pdos/go-bcache/alloc"
	"github.com/mit-pdos/go-bcache/bcache"
	"github.com/mit-pdos/go-bcache/common"
	"github.com/mit-pdos/go-bcache/disk"
	"github.com/mit-pdos/go-bcache/util"
	"github.com/mit-pdos/go-bcache/vmcache"
)

var Bench = cli.Command{
	Action: bench,
	Name:   "bench",
	Usage:  "fills a device through the cache, reads it back at random and verifies it",
	Flags: []cli.Flag{
		&deviceFlag,
		&pathFlag,
		&blocksFlag,
		&blockSizeFlag,
		&bufsFlag,
		&opsFlag,
		&vmFlag,
		&seedFlag,
	},
}

var (
	deviceFlag = cli.StringFlag{
		Name:  "device",
		Usage: "kind of device: ram, file, ldb or goose",
		Value: "ram",
	}
	pathFlag = cli.StringFlag{
		Name:  "path",
		Usage: "backing file or directory for the file and ldb devices",
	}
	blocksFlag = cli.Uint64Flag{
		Name:  "blocks",
		Usage: "size of the device in blocks",
		Value: 4096,
	}
	blockSizeFlag = cli.Uint64Flag{
		Name:  "block-size",
		Usage: "block size in bytes",
		Value: common.PAGESIZE,
	}
	bufsFlag = cli.Uint64Flag{
		Name:  "bufs",
		Usage: "fixed number of buffers, sized by usage if 0",
		Value: 0,
	}
	opsFlag = cli.IntFlag{
		Name:  "ops",
		Usage: "number of random reads",
		Value: 10000,
	}
	vmFlag = cli.Uint64Flag{
		Name:  "vm",
		Usage: "size of the second-level cache in MB, disabled if 0",
		Value: 0,
	}
	seedFlag = cli.Int64Flag{
		Name:  "seed",
		Usage: "seed for the random read pattern",
		Value: 1,
	}
)

const benchDev common.Dev = 1

func openDevice(kind string, path string, size uint64) (disk.Device, error) {
	switch kind {
	case "ram":
		return disk.MkRamDevice(size), nil
	case "goose":
		n := util.RoundUp(size, goose.BlockSize)
		return disk.MkGooseDevice(goose.NewMemDisk(n), n), nil
	case "file", "ldb":
		if path == "" {
			return nil, errors.Newf("device %s needs --%s", kind, pathFlag.Name)
		}
		if kind == "file" {
			return disk.MkFileDevice(path, size)
		}
		return disk.MkLdbDevice(path, size, false)
	}
	return nil, errors.Newf("unknown device %q", kind)
}

// fill stamps block num so verify can tell it apart from every other block.
func fill(b *bcache.Buf, num uint64, seed int64) {
	for i := range b.Data {
		b.Data[i] = byte(num + uint64(i) + uint64(seed))
	}
	b.BnumPut(0, num)
}

func verify(b *bcache.Buf, num uint64, seed int64) error {
	if got := b.BnumGet(0); got != num {
		return errors.Newf("block %d holds stamp %d", num, got)
	}
	for i := 8; i < len(b.Data); i++ {
		if b.Data[i] != byte(num+uint64(i)+uint64(seed)) {
			return errors.Newf("block %d differs at byte %d", num, i)
		}
	}
	return nil
}

type benchParams struct {
	device    string
	path      string
	blocks    uint64
	blockSize uint64
	bufs      uint64
	ops       int
	vmMB      uint64
	seed      int64
}

type benchResult struct {
	written   int
	freed     int
	fillTime  time.Duration
	readTime  time.Duration
	startBufs uint64
	endBufs   uint64
	vmActive  bool
	total     uint64
	used      uint64
	stats     bcache.Stats
}

func bench(context *cli.Context) error {
	res, err := runBench(benchParams{
		device:    context.String(deviceFlag.Name),
		path:      context.String(pathFlag.Name),
		blocks:    context.Uint64(blocksFlag.Name),
		blockSize: context.Uint64(blockSizeFlag.Name),
		bufs:      context.Uint64(bufsFlag.Name),
		ops:       context.Int(opsFlag.Name),
		vmMB:      context.Uint64(vmFlag.Name),
		seed:      context.Int64(seedFlag.Name),
	})
	if err != nil {
		return err
	}
	s := res.stats
	fmt.Printf("Written:      %d blocks in %v\n", res.written, res.fillTime)
	fmt.Printf("Read:         %d blocks in %v\n", context.Int(opsFlag.Name), res.readTime)
	fmt.Printf("Usage:        %d of %d blocks\n", res.used, res.total)
	fmt.Printf("Buffers:      %d at start, %d at end\n", res.startBufs, res.endBufs)
	fmt.Printf("Second-level: %v\n", res.vmActive)
	fmt.Printf("Hits:         %d (%d from the second-level cache)\n", s.Hits+s.VMHits, s.VMHits)
	fmt.Printf("Misses:       %d\n", s.Misses)
	fmt.Printf("I/O:          %d reads, %d gathers, %d scatters\n", s.Reads, s.Gathers, s.Scatters)
	fmt.Printf("Evictions:    %d, flushes %d, resizes %d\n", s.Evictions, s.Flushes, s.Resizes)
	return nil
}

func runBench(params benchParams) (benchResult, error) {
	var res benchResult
	bs := params.blockSize

	cfg := bcache.DefaultConfig()
	cfg.BlockSize = bs
	cfg.NumBufs = params.bufs
	if bs == 0 || util.RoundUp(bs, cfg.PageSize) > cfg.MaxIovecs {
		return res, errors.Newf("block size %d not supported", bs)
	}
	if cfg.NumBufs != 0 && cfg.NumBufs < cfg.MinBufs {
		return res, errors.Newf("need at least %d buffers", cfg.MinBufs)
	}
	// one bit map block covers bs*8 blocks
	mapBlocks := util.RoundUp(params.blocks, bs*8)
	if params.blocks <= mapBlocks+1 {
		return res, errors.Newf("device of %d blocks is too small", params.blocks)
	}

	device, err := openDevice(params.device, params.path, params.blocks*bs)
	if err != nil {
		return res, errors.Wrapf(err, "open %s device", params.device)
	}
	driver := disk.MkDriver()
	defer driver.Close()
	if err := driver.Attach(benchDev, device); err != nil {
		device.Close()
		return res, err
	}

	var vm vmcache.Cache
	if params.vmMB > 0 {
		mem, err := vmcache.MkMemCache(params.vmMB << 20)
		if err != nil {
			return res, err
		}
		defer mem.Close()
		vm = mem
	}
	cfg.UseVM = vm != nil

	start := time.Now()
	cache := bcache.MkCache(driver, vm, cfg)
	a := alloc.MkAlloc(cache, benchDev, 0, mapBlocks, params.blocks, cache)
	if err := a.Format(); err != nil {
		return res, err
	}
	for i := uint64(1); i < mapBlocks; i++ {
		if err := a.MarkUsed(i); err != nil {
			return res, err
		}
	}
	total, used, err := a.Usage()
	if err != nil {
		return res, err
	}
	cache.SetBlockUsage(total, used)
	res.startBufs = cache.NumBufs()

	// fill every free block
	var nums []uint64
	for {
		num, err := a.AllocNum()
		if err != nil {
			return res, err
		}
		if num == 0 {
			break
		}
		b, err := cache.GetBlock(benchDev, num, bcache.NoRead)
		if err != nil {
			return res, err
		}
		fill(b, num, params.seed)
		cache.PutBlock(b, bcache.PutNormal)
		nums = append(nums, num)
	}
	if err := cache.FlushAll(); err != nil {
		return res, err
	}
	res.written = len(nums)
	res.fillTime = time.Since(start)

	// random reads, each miss preceded by a prefetch of its successors
	start = time.Now()
	r := rand.New(rand.NewSource(params.seed))
	for i := 0; i < params.ops; i++ {
		k := r.Intn(len(nums))
		if !cache.IsCached(benchDev, nums[k]) {
			want := []uint64{nums[k]}
			for j := k + 1; j < len(nums) && uint64(j-k) < cfg.MaxPrefetch; j++ {
				want = append(want, nums[j])
			}
			cache.Prefetch(benchDev, want)
		}
		b, err := cache.GetBlock(benchDev, nums[k], bcache.Normal)
		if err != nil {
			return res, err
		}
		err = verify(b, nums[k], params.seed)
		cache.PutBlock(b, bcache.PutNormal)
		if err != nil {
			return res, err
		}
	}
	res.readTime = time.Since(start)

	// give back a quarter of the blocks
	for i := 0; i < len(nums); i += 4 {
		if err := a.FreeNum(nums[i]); err != nil {
			return res, err
		}
		cache.FreeBlock(benchDev, nums[i])
		res.freed++
	}
	if err := cache.FlushAll(); err != nil {
		return res, err
	}
	if err := driver.Sync(); err != nil {
		return res, err
	}

	res.total, res.used = cache.Usage()
	res.endBufs = cache.NumBufs()
	res.vmActive = cache.VMActive()
	res.stats = cache.Stats()
	return res, nil
}
