// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package blockdev

import "errors"

// Common errors. All are wrapped with the offending devnode path when
// surfaced.
var (
	// ErrNotBlockDevice is returned when a path does not resolve to a
	// kernel block device.
	ErrNotBlockDevice = errors.New("not a block device")

	// ErrDeviceTooSmall is returned for candidate devices below MinDevSize.
	ErrDeviceTooSmall = errors.New("device too small")

	// ErrNotZeroed is returned when claiming a device with foreign content
	// without the force flag.
	ErrNotZeroed = errors.New("device not zeroed")

	// ErrForeignPool is returned when a candidate device already belongs
	// to a different pool.
	ErrForeignPool = errors.New("device already belongs to another pool")

	// ErrMDAUnwritten is returned when reading metadata from a device
	// whose MDA slots have never been written.
	ErrMDAUnwritten = errors.New("neither MDA region is in use")

	// ErrMDACRC is returned when the stored MDA payload fails its CRC.
	ErrMDACRC = errors.New("MDA CRC mismatch")

	// ErrMetadataTooLarge is returned when a metadata payload exceeds the
	// fixed MDA slot capacity.
	ErrMetadataTooLarge = errors.New("metadata too large for MDA slot")
)
