// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package sigblock

import (
	"fmt"
	"time"

	"github.com/ignatenkobrain/stratisd/sector"
)

// MDA size constraints, in sectors. The region is split into two equal
// slots, so the size must be even.
const (
	MinMDASectors = 2048
	MaxMDASectors = 65536
)

// ReservedSectors is the statically reserved space between the head
// metadata area and the usable region.
const ReservedSectors = 6144

// MDA describes one of the two redundant metadata-area slots.
type MDA struct {
	// Offset of the slot within the metadata-area region.
	Offset sector.Offset
	// Length is the fixed slot capacity.
	Length sector.Sectors

	// Used is the number of bytes written by the last update.
	Used uint64
	// LastUpdated is the time of the last update; the zero time means
	// the slot has never been written.
	LastUpdated time.Time
	// CRC of the last written payload.
	CRC uint32
}

// MDAPair is the pair of alternating metadata-area slots.
type MDAPair struct {
	Slots [2]MDA
}

// MostRecent returns the slot with the latest update timestamp.
func (p *MDAPair) MostRecent() *MDA {
	if p.Slots[1].LastUpdated.After(p.Slots[0].LastUpdated) {
		return &p.Slots[1]
	}

	return &p.Slots[0]
}

// LeastRecent returns the stale slot, the one the next update must target.
func (p *MDAPair) LeastRecent() *MDA {
	if p.Slots[1].LastUpdated.After(p.Slots[0].LastUpdated) {
		return &p.Slots[0]
	}

	return &p.Slots[1]
}

// ValidateMDASize checks a metadata-area size against format constraints.
func ValidateMDASize(size sector.Sectors) error {
	if size%2 != 0 {
		return fmt.Errorf("%w: %d sectors is not an even number", ErrMDASize, size)
	}

	if size < MinMDASectors {
		return fmt.Errorf("%w: %d sectors, minimum %d", ErrMDASize, size, MinMDASectors)
	}

	if size > MaxMDASectors {
		return fmt.Errorf("%w: %d sectors, maximum %d", ErrMDASize, size, MaxMDASectors)
	}

	return nil
}
