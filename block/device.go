// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package block provides access to kernel block devices.
package block

import "os"

// Device wraps blockdevice operations.
type Device struct {
	f *os.File

	ownedFile bool
	devNo     uint64
}

// NewFromFile returns a new Device from the specified file.
//
// The file is not owned by the Device and is not closed by Close.
func NewFromFile(f *os.File) *Device {
	return &Device{f: f}
}

// Close the device if it owns the underlying file.
func (d *Device) Close() error {
	if d.ownedFile {
		return d.f.Close()
	}

	return nil
}

// DefaultSectorSize is the fallback sector size in bytes.
const DefaultSectorSize = 512

// DevNo is a kernel device number (major:minor identity).
//
// DevNo values are totally ordered and hashable, so they can serve as
// map keys for device sets.
type DevNo uint64
