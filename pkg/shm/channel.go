// Package shm implements a single-slot, seqlock-style shared memory channel.
//
// Layout: 8-byte version (int64), 4-byte payload size (int32), payload bytes.
// An even version means the slot is stable; an odd version means a write is in
// progress. Readers copy the payload between two version loads and discard the
// copy when the loads disagree. There is one legitimate writer per channel by
// convention; the protocol does not arbitrate between concurrent writers.
package shm

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"github.com/edsrzf/mmap-go"
	"main/pkg/exception"
)

const (
	versionOffset = 0
	sizeOffset    = 8
	payloadOffset = 12

	// MaxPayload is the payload capacity of a channel region.
	MaxPayload = 16 * 1024

	regionSize = payloadOffset + MaxPayload
)

// DefaultDir returns the directory backing named channels. Linux keeps named
// shared memory under /dev/shm; anywhere else a regular temp file is mapped,
// which still gives every attached process the same backing pages.
func DefaultDir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// Channel is one mapped shared memory slot.
type Channel struct {
	file *os.File
	mem  mmap.MMap
	path string
}

// Create opens the named channel, creating the backing region if it does not
// exist yet. The first process to create a name is its owner; creation is
// idempotent, so owner and late attachers may race through Create safely.
func Create(name string) (*Channel, error) {
	if name == "" {
		return nil, exception.ErrEmptyName
	}
	return CreateAt(filepath.Join(DefaultDir(), name))
}

// Attach opens an existing named channel and fails if it was never created.
func Attach(name string) (*Channel, error) {
	if name == "" {
		return nil, exception.ErrEmptyName
	}
	return openAt(filepath.Join(DefaultDir(), name), false)
}

// CreateAt opens a channel at an explicit path, creating it if needed.
func CreateAt(path string) (*Channel, error) {
	return openAt(path, true)
}

// AttachAt opens an existing channel at an explicit path.
func AttachAt(path string) (*Channel, error) {
	return openAt(path, false)
}

func openAt(path string, create bool) (*Channel, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() < regionSize {
		if !create {
			file.Close()
			return nil, exception.ErrRegionTooSmall
		}
		if err := file.Truncate(regionSize); err != nil {
			file.Close()
			return nil, err
		}
	}

	mem, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &Channel{file: file, mem: mem, path: path}, nil
}

// Path returns the backing file path.
func (c *Channel) Path() string {
	return c.path
}

func (c *Channel) version() *int64 {
	return (*int64)(unsafe.Pointer(&c.mem[versionOffset]))
}

func (c *Channel) size() *int32 {
	return (*int32)(unsafe.Pointer(&c.mem[sizeOffset]))
}

// Write publishes a payload. The version goes odd before any byte of the slot
// changes and even again only after the full payload is in place, so readers
// can never observe a torn record as valid.
func (c *Channel) Write(payload []byte) error {
	if c == nil || c.mem == nil {
		return exception.ErrChannelClosed
	}
	if len(payload) > MaxPayload {
		return exception.ErrPayloadTooLarge
	}

	v := atomic.LoadInt64(c.version())
	if v%2 != 0 {
		v++
	}
	atomic.StoreInt64(c.version(), v+1)
	atomic.StoreInt32(c.size(), int32(len(payload)))
	copy(c.mem[payloadOffset:payloadOffset+len(payload)], payload)
	atomic.StoreInt64(c.version(), v+2)
	return nil
}

// Read copies the current payload into dst and returns it, or (nil, false)
// when the slot is empty or a write is in flight. A torn read is an expected
// condition under a concurrent writer, never an error; callers retry on the
// next poll. dst is grown when too small.
func (c *Channel) Read(dst []byte) ([]byte, bool) {
	if c == nil || c.mem == nil {
		return nil, false
	}

	v1 := atomic.LoadInt64(c.version())
	if v1%2 != 0 {
		return nil, false
	}
	size := int(atomic.LoadInt32(c.size()))
	if size <= 0 || size > MaxPayload {
		return nil, false
	}
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]
	copy(dst, c.mem[payloadOffset:payloadOffset+size])

	v2 := atomic.LoadInt64(c.version())
	if v1 != v2 || v2%2 != 0 {
		return nil, false
	}
	return dst, true
}

// Clear resets the slot to the empty state. Request-channel consumers call it
// after handling a record, turning the channel into a single-slot mailbox.
// Size drops to zero before the version so a bracketing reader can never pair
// the cleared version with stale payload bytes.
func (c *Channel) Clear() {
	if c == nil || c.mem == nil {
		return
	}
	atomic.StoreInt32(c.size(), 0)
	atomic.StoreInt64(c.version(), 0)
}

// Close unmaps the region. The backing object stays alive for other processes.
func (c *Channel) Close() error {
	if c == nil || c.mem == nil {
		return nil
	}
	err := c.mem.Unmap()
	c.mem = nil
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Unlink removes the backing object. Only the owner should call it, and only
// once every attached process is done; the region is never removed implicitly.
func (c *Channel) Unlink() error {
	return os.Remove(c.path)
}
