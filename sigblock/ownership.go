// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package sigblock

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/google/uuid"
	"github.com/siderolabs/go-pointer"

	"github.com/ignatenkobrain/stratisd/sector"
)

// Kind classifies the ownership of a device from its header contents.
type Kind int

// Ownership classification variants.
const (
	// Unowned means the first 4K of the device are zeroed.
	Unowned Kind = iota
	// Theirs means the header holds unrecognized non-zero content.
	Theirs
	// Ours means a valid signature record is present.
	Ours
)

func (k Kind) String() string {
	switch k {
	case Unowned:
		return "unowned"
	case Theirs:
		return "theirs"
	case Ours:
		return "ours"
	default:
		return "unknown"
	}
}

// DevOwnership is the result of classifying a device header.
type DevOwnership struct {
	Kind Kind

	// Pool is the owning pool UUID; set only when Kind is Ours.
	Pool *uuid.UUID
}

// DetermineOwnership classifies a device from its first 4096 bytes.
//
// Probing never writes. Unrecognized non-zero content is not an error (it
// is simply foreign); a recognizable signature that fails validation is.
func DetermineOwnership(buf []byte) (DevOwnership, error) {
	if len(buf) < HeaderSize {
		return DevOwnership{}, fmt.Errorf("ownership probe needs %d bytes, got %d", HeaderSize, len(buf))
	}

	buf = buf[:HeaderSize]

	if isZero(buf) {
		return DevOwnership{Kind: Unowned}, nil
	}

	sig := buf[sector.Size : 2*sector.Size]

	if !bytes.Equal(sig[magicOffset:magicOffset+len(magic)], magic) {
		return DevOwnership{Kind: Theirs}, nil
	}

	if stored := binary.LittleEndian.Uint32(sig[crcOffset:]); stored != crc32.ChecksumIEEE(sig[magicOffset:]) {
		return DevOwnership{}, fmt.Errorf("%w: header CRC mismatch", ErrCorrupt)
	}

	poolUUID, err := uuid.FromBytes(sig[poolOffset : poolOffset+16])
	if err != nil {
		return DevOwnership{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return DevOwnership{
		Kind: Ours,
		Pool: pointer.To(poolUUID),
	}, nil
}

func isZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}

	return true
}
