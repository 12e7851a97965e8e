package disk

// Device is a byte-addressed block device attached to a Driver.
//
// Transfers past Size() are truncated: the returned count is short and the
// error is nil.
type Device interface {
	ReadAt(p []byte, off uint64) (uint64, error)
	WriteAt(p []byte, off uint64) (uint64, error)

	// Size reports how big the device is, in bytes
	Size() uint64

	// Sync ensures written data is persisted.
	Sync() error

	// Close releases any resources used by the device and makes it
	// unusable.
	Close() error
}

// volatileDevice is implemented by devices whose contents do not survive
// a restart.
type volatileDevice interface {
	Volatile() bool
}
