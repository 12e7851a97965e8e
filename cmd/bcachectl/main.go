package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mit-pdos/go-bcache/util"
)

// Run using
//  go run ./cmd/bcachectl <command> <flags>

var (
	debugFlag = cli.Uint64Flag{
		Name:  "debug",
		Usage: "highest level of debug messages to print",
		Value: 1,
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "bcachectl",
		Usage: "exercise the block buffer cache",
		Flags: []cli.Flag{
			&debugFlag,
		},
		Before: func(context *cli.Context) error {
			util.Debug = context.Uint64(debugFlag.Name)
			return nil
		},
		Commands: []*cli.Command{
			&Bench,
			&Heuristic,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
