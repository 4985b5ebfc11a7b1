// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package sector provides typed sector arithmetic for block-device layout math.
//
// Sector counts and sector offsets are distinct types so that layout
// calculations cannot silently mix units; conversion to bytes happens only
// at the point of an actual read or write.
package sector

// Size is the sector size in bytes.
const Size = 512

// Sectors is a count of sectors.
type Sectors uint64

// Offset is a position on a device, in sectors.
type Offset uint64

// Bytes returns the count as a byte count.
func (s Sectors) Bytes() uint64 {
	return uint64(s) * Size
}

// Bytes returns the offset as a byte offset.
func (o Offset) Bytes() int64 {
	return int64(o) * Size
}

// Add advances the offset by a sector count.
func (o Offset) Add(s Sectors) Offset {
	return o + Offset(s)
}

// FromBytes returns the number of whole sectors in b bytes.
func FromBytes(b uint64) Sectors {
	return Sectors(b / Size)
}
