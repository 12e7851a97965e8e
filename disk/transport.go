package disk

//go:generate mockgen -source transport.go -destination transport_mocks.go -package disk

import (
	"github.com/mit-pdos/go-bcache/common"
)

// MaxIovecs is the largest I/O vector a single Gather or Scatter accepts.
const MaxIovecs uint64 = 64

// Transport moves bytes between buffer memory and block devices.
//
// All calls are synchronous. They return the number of bytes transferred;
// a count short of the request means the device stopped early (end of
// device or an error, which is returned alongside).
type Transport interface {
	// Read reads len(buf) bytes from dev at byte offset off.
	Read(dev common.Dev, off uint64, buf []byte) (uint64, error)

	// Write writes buf to dev at byte offset off.
	Write(dev common.Dev, off uint64, buf []byte) (uint64, error)

	// Gather reads consecutive device bytes starting at off into the
	// vector elements, in order.
	Gather(dev common.Dev, off uint64, iov [][]byte) (uint64, error)

	// Scatter writes the vector elements, in order, to consecutive device
	// bytes starting at off.
	Scatter(dev common.Dev, off uint64, iov [][]byte) (uint64, error)

	// Volatile reports whether dev is RAM-backed, so its blocks are cheap
	// to reload and not worth keeping warm.
	Volatile(dev common.Dev) bool
}
