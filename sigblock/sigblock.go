// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package sigblock implements the on-disk signature record identifying a
// device as pool-owned.
//
// The signature record lives in sector 1 of the 8-sector static header at
// both the head and the tail of a claimed device. It carries the pool and
// device identity, the device geometry, and the bookkeeping for the pair of
// redundant metadata-area (MDA) slots.
package sigblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/google/uuid"

	"github.com/ignatenkobrain/stratisd/sector"
)

// StaticHdrSectors is the size of the static header at the head and tail
// of a claimed device. Sector 0 is reserved (always zero), sector 1 holds
// the signature record, sectors 2-7 are padding.
const StaticHdrSectors = 8

// HeaderSize is the number of bytes inspected to classify device ownership.
const HeaderSize = 4096

// magic identifies a signature sector; it sits at byte 4, right after the CRC.
var magic = []byte("!Stra0tis\x86\xff\x02")

// Signature sector layout, little-endian. The CRC at offset 0 covers
// everything after itself, zero padding included.
const (
	crcOffset      = 0
	magicOffset    = 4
	totalOffset    = 20
	poolOffset     = 28
	devOffset      = 44
	mdaSizeOffset  = 60
	reservedOffset = 68
	slotOffset     = 76
	slotSize       = 28
)

// Common errors.
var (
	// ErrCorrupt marks a signature that is recognizable but fails
	// validation; discovery treats this as fatal rather than skipping.
	ErrCorrupt = errors.New("corrupt signature block")

	// ErrMDASize marks a metadata-area size violating format constraints.
	ErrMDASize = errors.New("invalid MDA size")
)

// SigBlock is the signature record for a claimed device.
type SigBlock struct {
	PoolUUID uuid.UUID
	DevUUID  uuid.UUID

	// TotalSize is the device size in sectors, as probed from the device.
	TotalSize sector.Sectors
	// MDASize is the size of the metadata-area region in sectors.
	MDASize sector.Sectors
	// ReservedSize is the statically reserved space in sectors.
	ReservedSize sector.Sectors

	MDA MDAPair
}

// New constructs a fresh signature record for a device being claimed.
//
// Both MDA slots start out never-written (zero timestamp sentinel).
func New(poolUUID, devUUID uuid.UUID, mdaSize sector.Sectors, totalSize sector.Sectors) *SigBlock {
	half := mdaSize / 2

	return &SigBlock{
		PoolUUID:     poolUUID,
		DevUUID:      devUUID,
		TotalSize:    totalSize,
		MDASize:      mdaSize,
		ReservedSize: ReservedSectors,
		MDA: MDAPair{
			Slots: [2]MDA{
				{Offset: 0, Length: half},
				{Offset: sector.Offset(half), Length: half},
			},
		},
	}
}

// Write serializes the record into buf as the signature sector of a static
// header starting at the given sector offset within buf.
func (sb *SigBlock) Write(buf []byte, base sector.Offset) {
	sig := buf[base.Add(1).Bytes() : base.Add(2).Bytes()]

	for i := range sig {
		sig[i] = 0
	}

	copy(sig[magicOffset:], magic)
	binary.LittleEndian.PutUint64(sig[totalOffset:], uint64(sb.TotalSize))
	copy(sig[poolOffset:], sb.PoolUUID[:])
	copy(sig[devOffset:], sb.DevUUID[:])
	binary.LittleEndian.PutUint64(sig[mdaSizeOffset:], uint64(sb.MDASize))
	binary.LittleEndian.PutUint64(sig[reservedOffset:], uint64(sb.ReservedSize))

	for i, slot := range sb.MDA.Slots {
		writeSlot(sig[slotOffset+i*slotSize:], &slot)
	}

	binary.LittleEndian.PutUint32(sig[crcOffset:], crc32.ChecksumIEEE(sig[magicOffset:]))
}

// Read deserializes and validates a signature record from the static header
// starting at the given sector offset within buf.
//
// totalSize is the device size in sectors as probed from the device itself;
// the record is rejected if it claims more sectors than the device has, and
// the probed value wins in the returned record.
func Read(buf []byte, base sector.Offset, totalSize sector.Sectors) (*SigBlock, error) {
	sig := buf[base.Add(1).Bytes() : base.Add(2).Bytes()]

	if !bytes.Equal(sig[magicOffset:magicOffset+len(magic)], magic) {
		return nil, fmt.Errorf("%w: magic mismatch", ErrCorrupt)
	}

	if stored := binary.LittleEndian.Uint32(sig[crcOffset:]); stored != crc32.ChecksumIEEE(sig[magicOffset:]) {
		return nil, fmt.Errorf("%w: header CRC mismatch", ErrCorrupt)
	}

	storedTotal := sector.Sectors(binary.LittleEndian.Uint64(sig[totalOffset:]))
	if storedTotal > totalSize {
		return nil, fmt.Errorf("%w: header claims %d sectors, device has %d", ErrCorrupt, storedTotal, totalSize)
	}

	mdaSize := sector.Sectors(binary.LittleEndian.Uint64(sig[mdaSizeOffset:]))
	if err := ValidateMDASize(mdaSize); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	poolUUID, err := uuid.FromBytes(sig[poolOffset : poolOffset+16])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	devUUID, err := uuid.FromBytes(sig[devOffset : devOffset+16])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	sb := &SigBlock{
		PoolUUID:     poolUUID,
		DevUUID:      devUUID,
		TotalSize:    totalSize,
		MDASize:      mdaSize,
		ReservedSize: sector.Sectors(binary.LittleEndian.Uint64(sig[reservedOffset:])),
	}

	if minimum := 2*sector.Sectors(StaticHdrSectors) + 2*sb.MDASize + sb.ReservedSize; sb.TotalSize < minimum {
		return nil, fmt.Errorf("%w: %d sectors cannot hold the %d-sector reserved layout", ErrCorrupt, sb.TotalSize, minimum)
	}

	half := mdaSize / 2

	for i := range sb.MDA.Slots {
		slot := readSlot(sig[slotOffset+i*slotSize:])
		slot.Offset = sector.Offset(half) * sector.Offset(i)
		slot.Length = half

		if slot.Used > half.Bytes() {
			return nil, fmt.Errorf("%w: MDA slot %d used %d bytes exceeds capacity %d", ErrCorrupt, i, slot.Used, half.Bytes())
		}

		sb.MDA.Slots[i] = slot
	}

	return sb, nil
}

func writeSlot(buf []byte, slot *MDA) {
	binary.LittleEndian.PutUint32(buf[0:], slot.CRC)
	binary.LittleEndian.PutUint64(buf[8:], slot.Used)

	if !slot.LastUpdated.IsZero() {
		binary.LittleEndian.PutUint64(buf[16:], uint64(slot.LastUpdated.Unix()))
		binary.LittleEndian.PutUint32(buf[24:], uint32(slot.LastUpdated.Nanosecond()))
	}
}

func readSlot(buf []byte) MDA {
	slot := MDA{
		CRC:  binary.LittleEndian.Uint32(buf[0:]),
		Used: binary.LittleEndian.Uint64(buf[8:]),
	}

	sec := binary.LittleEndian.Uint64(buf[16:])
	nsec := binary.LittleEndian.Uint32(buf[24:])

	if sec != 0 || nsec != 0 {
		slot.LastUpdated = time.Unix(int64(sec), int64(nsec)).UTC()
	}

	return slot
}
