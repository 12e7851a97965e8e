package common

import (
	"github.com/tchajed/goose/machine/disk"
)

// Dev identifies a block device. NODEV marks a buffer without an identity.
type Dev uint64

type Inum uint64
type Bnum = uint64

const (
	NODEV    Dev  = 0
	NULLINUM Inum = 0 // no inode association
	NULLBNUM Bnum = 0
)

// PAGESIZE is the granularity of buffer memory and of the I/O vectors
// handed to the transport.
const PAGESIZE uint64 = disk.BlockSize
