// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package block

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NewFromPath returns a new Device opened read-only from the specified path.
func NewFromPath(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}

	return &Device{
		f:         f,
		ownedFile: true,
	}, nil
}

// IsBlock returns true if the device is backed by a kernel block device
// (as opposed to a regular file used as a disk image).
func (d *Device) IsBlock() (bool, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(d.f.Fd()), &st); err != nil {
		return false, err
	}

	return st.Mode&unix.S_IFMT == unix.S_IFBLK, nil
}

// GetSize returns the device size in bytes.
//
// For a block device the size comes from the BLKGETSIZE64 ioctl; for a
// regular file (a disk image) it falls back to the file size.
func (d *Device) GetSize() (uint64, error) {
	isBlock, err := d.IsBlock()
	if err != nil {
		return 0, err
	}

	if !isBlock {
		st, err := d.f.Stat()
		if err != nil {
			return 0, err
		}

		return uint64(st.Size()), nil
	}

	var devsize uint64
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&devsize))); errno != 0 {
		return 0, errno
	}

	return devsize, nil
}

// GetSectorSize returns the device sector size in bytes.
func (d *Device) GetSectorSize() uint {
	var size uint

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), uintptr(unix.BLKSSZGET), uintptr(unsafe.Pointer(&size))); errno != 0 {
		return DefaultSectorSize
	}

	return size
}

// GetDevNo returns the device number of the blockdevice.
//
// For a regular file the device number is zero.
func (d *Device) GetDevNo() (DevNo, error) {
	if d.devNo != 0 {
		return DevNo(d.devNo), nil
	}

	var st unix.Stat_t
	if err := unix.Fstat(int(d.f.Fd()), &st); err != nil {
		return 0, err
	}

	d.devNo = st.Rdev

	return DevNo(d.devNo), nil
}

// Lock (and block until the lock is acquired) for the block device.
func (d *Device) Lock(exclusive bool) error {
	return d.lock(exclusive, 0)
}

// TryLock (and return an error if failed).
func (d *Device) TryLock(exclusive bool) error {
	return d.lock(exclusive, unix.LOCK_NB)
}

// Unlock releases any lock.
func (d *Device) Unlock() error {
	for {
		if err := unix.Flock(int(d.f.Fd()), unix.LOCK_UN); !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

func (d *Device) lock(exclusive bool, flag int) error {
	if exclusive {
		flag |= unix.LOCK_EX
	} else {
		flag |= unix.LOCK_SH
	}

	for {
		if err := unix.Flock(int(d.f.Fd()), flag); !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

// Major returns the major number of the device.
func (n DevNo) Major() uint32 {
	return unix.Major(uint64(n))
}

// Minor returns the minor number of the device.
func (n DevNo) Minor() uint32 {
	return unix.Minor(uint64(n))
}

// String returns the "major:minor" form of the device number.
func (n DevNo) String() string {
	return fmt.Sprintf("%d:%d", n.Major(), n.Minor())
}
