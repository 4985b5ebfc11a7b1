// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package blockdev manages the block devices backing a storage pool:
// discovery, ownership arbitration, claiming, and the redundant on-disk
// metadata protocol.
//
// Every operation opens the device node fresh and closes it before
// returning; no state is held between calls beyond the in-memory BlockDev
// record. The package provides no serialization between callers touching
// the same device: the alternating-slot metadata scheme protects against
// this process crashing mid-write, not against concurrent writers.
package blockdev

import (
	"github.com/ignatenkobrain/stratisd/block"
	"github.com/ignatenkobrain/stratisd/sector"
	"github.com/ignatenkobrain/stratisd/sigblock"
)

// MinDevSize is the minimum size in bytes of a device admitted to a pool.
const MinDevSize = 1 << 30

// Devices is a deduplicated set of block devices, keyed by kernel device
// number with the devnode path each device was resolved through.
type Devices map[block.DevNo]string

// BlockDev is the runtime handle for a claimed device.
type BlockDev struct {
	// Dev is the kernel device number.
	Dev block.DevNo
	// Devnode is the device node path.
	Devnode string
	// Sigblock is the on-disk signature record for the device.
	Sigblock *sigblock.SigBlock
}

// BlockDevSave is the minimal persistable summary of a claimed device,
// for inclusion in higher-level pool metadata.
type BlockDevSave struct {
	Devnode   string
	TotalSize sector.Sectors
}

// ToSave projects the device into its persistable summary.
func (bd *BlockDev) ToSave() BlockDevSave {
	return BlockDevSave{
		Devnode:   bd.Devnode,
		TotalSize: bd.Sigblock.TotalSize,
	}
}

// mainBDASize is the size of the reserved region at the head of the device.
func (bd *BlockDev) mainBDASize() sector.Sectors {
	return sigblock.StaticHdrSectors + bd.Sigblock.MDASize + bd.Sigblock.ReservedSize
}

// auxBDASize is the size of the mirrored region at the tail of the device.
func (bd *BlockDev) auxBDASize() sector.Sectors {
	return sigblock.StaticHdrSectors + bd.Sigblock.MDASize
}

// AvailRange returns the sector range available to upper layers.
func (bd *BlockDev) AvailRange() (sector.Offset, sector.Sectors) {
	start := bd.mainBDASize()
	length := bd.Sigblock.TotalSize - start - bd.auxBDASize()

	return sector.Offset(start), length
}
