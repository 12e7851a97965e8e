package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v2"

	"github.com/mit-pdos/go-bcache/bcache"
)

var Heuristic = cli.Command{
	Action: heuristic,
	Name:   "heuristic",
	Usage:  "prints the number of buffers the cache would use for a file system",
	Flags: []cli.Flag{
		&totalFlag,
		&usedFlag,
		&blockSizeFlag,
		&minBufsFlag,
		&memFlag,
	},
}

var (
	totalFlag = cli.Uint64Flag{
		Name:     "total",
		Usage:    "size of the file system in blocks",
		Required: true,
	}
	usedFlag = cli.Uint64Flag{
		Name:     "used",
		Usage:    "blocks in use",
		Required: true,
	}
	minBufsFlag = cli.Uint64Flag{
		Name:  "min-bufs",
		Usage: "lower bound on the number of buffers",
		Value: bcache.DefaultConfig().MinBufs,
	}
	memFlag = cli.Uint64Flag{
		Name:  "mem",
		Usage: "reclaimable memory in MB, probed from the system if 0",
		Value: 0,
	}
)

func heuristic(context *cli.Context) error {
	total := context.Uint64(totalFlag.Name)
	used := context.Uint64(usedFlag.Name)
	bs := context.Uint64(blockSizeFlag.Name)
	if bs == 0 {
		return errors.New("block size must be positive")
	}
	if used > total {
		return errors.Newf("%d blocks used out of %d", used, total)
	}

	mem := context.Uint64(memFlag.Name) << 20
	if mem == 0 {
		var err error
		mem, err = bcache.SystemMemory()
		if err != nil {
			return err
		}
	}

	bufs := bcache.HeuristicBufs(total, used, bs, context.Uint64(minBufsFlag.Name), mem)
	fmt.Printf("File system:  %d of %d blocks of %d bytes used\n", used, total, bs)
	fmt.Printf("Memory:       %d MB reclaimable\n", mem>>20)
	fmt.Printf("Buffers:      %d (%d KB)\n", bufs, bufs*bs/1024)
	return nil
}
