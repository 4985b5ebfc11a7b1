// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package blockdev

import (
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ignatenkobrain/stratisd/internal/ioutil"
	"github.com/ignatenkobrain/stratisd/sector"
	"github.com/ignatenkobrain/stratisd/sigblock"
)

// DStr returns the "major:minor" device string for this blockdev.
func (bd *BlockDev) DStr() string {
	return bd.Dev.String()
}

// ReadState reads the metadata payload from the most recently written MDA
// slot and verifies it against the stored CRC.
func (bd *BlockDev) ReadState() ([]byte, error) {
	slot := bd.Sigblock.MDA.MostRecent()

	if slot.LastUpdated.IsZero() {
		return nil, fmt.Errorf("%s: %w", bd.Devnode, ErrMDAUnwritten)
	}

	f, err := os.OpenFile(bd.Devnode, os.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", bd.Devnode, err)
	}

	defer f.Close() //nolint:errcheck

	buf := make([]byte, slot.Used)

	if err := ioutil.ReadFullAt(f, buf, slot.Offset.Add(sigblock.StaticHdrSectors).Bytes()); err != nil {
		return nil, fmt.Errorf("reading MDA from %s: %w", bd.Devnode, err)
	}

	if crc32.ChecksumIEEE(buf) != slot.CRC {
		return nil, fmt.Errorf("%s: %w", bd.Devnode, ErrMDACRC)
	}

	return buf, nil
}

// writeState writes the metadata payload to the least recently updated MDA
// slot, in both the head region and its tail mirror. The other slot keeps
// the last-known-good copy until the signature block is rewritten to point
// at the new one.
func (bd *BlockDev) writeState(t time.Time, metadata []byte) error {
	slot := bd.Sigblock.MDA.LeastRecent()

	if uint64(len(metadata)) > slot.Length.Bytes() {
		return fmt.Errorf("%s: %w: %d bytes, capacity %d", bd.Devnode, ErrMetadataTooLarge, len(metadata), slot.Length.Bytes())
	}

	slot.CRC = crc32.ChecksumIEEE(metadata)
	slot.Used = uint64(len(metadata))
	slot.LastUpdated = t

	f, err := os.OpenFile(bd.Devnode, os.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", bd.Devnode, err)
	}

	defer f.Close() //nolint:errcheck

	if _, err := f.WriteAt(metadata, slot.Offset.Add(sigblock.StaticHdrSectors).Bytes()); err != nil {
		return fmt.Errorf("writing MDA to %s: %w", bd.Devnode, err)
	}

	tailBase := sector.Offset(bd.Sigblock.TotalSize - bd.auxBDASize())

	if _, err := f.WriteAt(metadata, (tailBase + slot.Offset).Bytes()); err != nil {
		return fmt.Errorf("writing tail MDA to %s: %w", bd.Devnode, err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", bd.Devnode, err)
	}

	return nil
}

// WriteSigblock writes the signature record to sector 1 of the static
// header at both the head and the tail of the device.
func (bd *BlockDev) WriteSigblock() error {
	buf := make([]byte, sector.Sectors(sigblock.StaticHdrSectors).Bytes())
	bd.Sigblock.Write(buf, 0)

	return bd.writeHdrBuf(buf)
}

// WipeSigblock zeroes both static headers, reverting the device to an
// Unowned-detectable state. MDA payloads are not erased.
func (bd *BlockDev) WipeSigblock() error {
	buf := make([]byte, sector.Sectors(sigblock.StaticHdrSectors).Bytes())

	return bd.writeHdrBuf(buf)
}

func (bd *BlockDev) writeHdrBuf(buf []byte) error {
	f, err := os.OpenFile(bd.Devnode, os.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", bd.Devnode, err)
	}

	defer f.Close() //nolint:errcheck

	if _, err := f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("writing header to %s: %w", bd.Devnode, err)
	}

	tailHdr := sector.Offset(bd.Sigblock.TotalSize - sigblock.StaticHdrSectors)

	if _, err := f.WriteAt(buf, tailHdr.Bytes()); err != nil {
		return fmt.Errorf("writing tail header to %s: %w", bd.Devnode, err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", bd.Devnode, err)
	}

	return nil
}

// SaveState persists a new metadata payload: the payload goes to the stale
// MDA slot first, then the signature block is rewritten to mark that slot
// current. If the process dies between the two writes the signature still
// points at the previous, still-valid slot.
func (bd *BlockDev) SaveState(t time.Time, metadata []byte) error {
	if err := bd.writeState(t, metadata); err != nil {
		return err
	}

	return bd.WriteSigblock()
}
