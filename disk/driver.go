package disk

import (
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/mit-pdos/go-bcache/common"
	"github.com/mit-pdos/go-bcache/lockmap"
	"github.com/mit-pdos/go-bcache/util"
)

var (
	ErrNoDevice      = errors.New("disk: no such device")
	ErrDeviceExists  = errors.New("disk: device already attached")
	ErrTooManyIovecs = errors.New("disk: too many iovecs")
)

var _ Transport = (*Driver)(nil)

// Driver is the Transport over a table of attached devices. Transfers to
// one device are serialized; transfers to different devices may proceed in
// parallel.
type Driver struct {
	mu    *sync.RWMutex
	devs  map[common.Dev]Device
	locks *lockmap.LockMap
}

func MkDriver() *Driver {
	return &Driver{
		mu:    new(sync.RWMutex),
		devs:  make(map[common.Dev]Device),
		locks: lockmap.MkLockMap(),
	}
}

func (d *Driver) Attach(dev common.Dev, device Device) error {
	if dev == common.NODEV {
		return errors.Wrapf(ErrNoDevice, "attach %d", dev)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.devs[dev]; ok {
		return errors.Wrapf(ErrDeviceExists, "attach %d", dev)
	}
	d.devs[dev] = device
	util.DPrintf(5, "disk: attach %d (%d bytes)\n", dev, device.Size())
	return nil
}

// Detach removes dev from the table and returns it without closing it.
func (d *Driver) Detach(dev common.Dev) (Device, error) {
	d.mu.Lock()
	device, ok := d.devs[dev]
	if !ok {
		d.mu.Unlock()
		return nil, errors.Wrapf(ErrNoDevice, "detach %d", dev)
	}
	delete(d.devs, dev)
	d.mu.Unlock()

	// wait out any transfer still in flight
	d.locks.Acquire(uint64(dev))
	d.locks.Release(uint64(dev))
	return device, nil
}

// Devices lists the attached device numbers in ascending order.
func (d *Driver) Devices() []common.Dev {
	d.mu.RLock()
	devs := maps.Keys(d.devs)
	d.mu.RUnlock()
	slices.Sort(devs)
	return devs
}

// Sync syncs every attached device and reports the first failure.
func (d *Driver) Sync() error {
	for _, dev := range d.Devices() {
		err := d.withDevice(dev, func(device Device) error {
			return device.Sync()
		})
		if err != nil {
			return errors.Wrapf(err, "sync %d", dev)
		}
	}
	return nil
}

// Close detaches and closes every device.
func (d *Driver) Close() error {
	var firstErr error
	for _, dev := range d.Devices() {
		device, err := d.Detach(dev)
		if err == nil {
			err = device.Close()
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *Driver) lookup(dev common.Dev) (Device, error) {
	d.mu.RLock()
	device, ok := d.devs[dev]
	d.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNoDevice, "device %d", dev)
	}
	return device, nil
}

func (d *Driver) withDevice(dev common.Dev, f func(Device) error) error {
	device, err := d.lookup(dev)
	if err != nil {
		return err
	}
	d.locks.Acquire(uint64(dev))
	defer d.locks.Release(uint64(dev))
	return f(device)
}

func (d *Driver) Read(dev common.Dev, off uint64, buf []byte) (uint64, error) {
	var n uint64
	err := d.withDevice(dev, func(device Device) error {
		var err error
		n, err = device.ReadAt(buf, off)
		return err
	})
	return n, err
}

func (d *Driver) Write(dev common.Dev, off uint64, buf []byte) (uint64, error) {
	var n uint64
	err := d.withDevice(dev, func(device Device) error {
		var err error
		n, err = device.WriteAt(buf, off)
		return err
	})
	return n, err
}

type transferFunc func(device Device, p []byte, off uint64) (uint64, error)

// vector runs xfer over the iovecs back to back, stopping at the first
// short transfer.
func (d *Driver) vector(dev common.Dev, off uint64, iov [][]byte, xfer transferFunc) (uint64, error) {
	if uint64(len(iov)) > MaxIovecs {
		return 0, errors.Wrapf(ErrTooManyIovecs, "%d iovecs", len(iov))
	}
	total := uint64(0)
	err := d.withDevice(dev, func(device Device) error {
		for _, v := range iov {
			n, err := xfer(device, v, off+total)
			total += n
			if err != nil {
				return err
			}
			if n < uint64(len(v)) {
				break
			}
		}
		return nil
	})
	return total, err
}

func (d *Driver) Gather(dev common.Dev, off uint64, iov [][]byte) (uint64, error) {
	return d.vector(dev, off, iov, Device.ReadAt)
}

func (d *Driver) Scatter(dev common.Dev, off uint64, iov [][]byte) (uint64, error) {
	return d.vector(dev, off, iov, Device.WriteAt)
}

func (d *Driver) Volatile(dev common.Dev) bool {
	device, err := d.lookup(dev)
	if err != nil {
		return false
	}
	v, ok := device.(volatileDevice)
	return ok && v.Volatile()
}
