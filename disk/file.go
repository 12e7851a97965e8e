package disk

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

var _ Device = (*fileDevice)(nil)

type fileDevice struct {
	fd   int
	size uint64
}

// MkFileDevice opens (creating if needed) the file or block special file
// at path as a device of size bytes. Regular files are resized to size.
func MkFileDevice(path string, size uint64) (*fileDevice, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if (stat.Mode&unix.S_IFMT) == unix.S_IFREG && uint64(stat.Size) != size {
		err = unix.Ftruncate(fd, int64(size))
		if err != nil {
			unix.Close(fd)
			return nil, errors.Wrapf(err, "truncate %s", path)
		}
	}
	return &fileDevice{fd: fd, size: size}, nil
}

func (d *fileDevice) ReadAt(p []byte, off uint64) (uint64, error) {
	if off >= d.size {
		return 0, nil
	}
	if uint64(len(p)) > d.size-off {
		p = p[:d.size-off]
	}
	done := uint64(0)
	for done < uint64(len(p)) {
		n, err := unix.Pread(d.fd, p[done:], int64(off+done))
		if err != nil {
			return done, errors.Wrapf(err, "pread at %d", off+done)
		}
		if n == 0 {
			// sparse tail of a block special file that is smaller than
			// advertised
			break
		}
		done += uint64(n)
	}
	return done, nil
}

func (d *fileDevice) WriteAt(p []byte, off uint64) (uint64, error) {
	if off >= d.size {
		return 0, nil
	}
	if uint64(len(p)) > d.size-off {
		p = p[:d.size-off]
	}
	done := uint64(0)
	for done < uint64(len(p)) {
		n, err := unix.Pwrite(d.fd, p[done:], int64(off+done))
		if err != nil {
			return done, errors.Wrapf(err, "pwrite at %d", off+done)
		}
		done += uint64(n)
	}
	return done, nil
}

func (d *fileDevice) Size() uint64 {
	return d.size
}

func (d *fileDevice) Sync() error {
	// NOTE: on macOS, this flushes to the drive but doesn't actually issue a
	// disk barrier; the correct replacement is F_FULLFSYNC.
	return errors.Wrap(unix.Fsync(d.fd), "fsync")
}

func (d *fileDevice) Close() error {
	return errors.Wrap(unix.Close(d.fd), "close")
}
