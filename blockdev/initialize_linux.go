// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package blockdev

import (
	"fmt"
	"os"
	"slices"

	"github.com/google/uuid"
	"github.com/siderolabs/gen/maps"
	"github.com/siderolabs/gen/xslices"
	"github.com/siderolabs/go-pointer"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/ignatenkobrain/stratisd/block"
	"github.com/ignatenkobrain/stratisd/internal/ioutil"
	"github.com/ignatenkobrain/stratisd/sector"
	"github.com/ignatenkobrain/stratisd/sigblock"
)

// devInfo is the per-candidate information gathered before any device is
// admitted to the pool.
type devInfo struct {
	dev       block.DevNo
	devnode   string
	size      uint64
	ownership sigblock.DevOwnership
}

// Initialize claims a set of devices for a pool.
//
// All candidates are validated before anything is written: an invalid MDA
// size, an unreadable candidate, an undersized device, foreign content
// without force, or membership in another pool each fail the whole batch
// with nothing written. Devices already owned by this pool are skipped and
// excluded from the result.
//
// Claiming is not transactional across devices: a write failure aborts the
// call, but devices claimed earlier in the batch are not rolled back;
// cleanup is the caller's responsibility.
//
// Returns the freshly claimed devices keyed by devnode path.
func Initialize(poolUUID uuid.UUID, devices Devices, mdaSize sector.Sectors, force bool, opts ...Option) (map[string]*BlockDev, error) {
	options := applyOptions(opts...)

	if err := sigblock.ValidateMDASize(mdaSize); err != nil {
		return nil, err
	}

	devs := maps.Keys(devices)
	slices.Sort(devs)

	infos := make([]devInfo, 0, len(devs))

	for _, dev := range devs {
		info, err := gatherDevInfo(dev, devices[dev], options)
		if err != nil {
			return nil, err
		}

		infos = append(infos, info)
	}

	admitted, err := filterDevs(infos, poolUUID, force)
	if err != nil {
		return nil, err
	}

	newBds := xslices.Map(admitted, func(info devInfo) *BlockDev {
		return &BlockDev{
			Dev:      info.dev,
			Devnode:  info.devnode,
			Sigblock: sigblock.New(poolUUID, uuid.New(), mdaSize, sector.FromBytes(info.size)),
		}
	})

	bds := make(map[string]*BlockDev, len(newBds))

	for _, bd := range newBds {
		if err := bd.WriteSigblock(); err != nil {
			// devices claimed before this point stay claimed
			return nil, err
		}

		options.Logger.Debug("claimed device",
			zap.String("devnode", bd.Devnode),
			zap.Stringer("pool", bd.Sigblock.PoolUUID),
			zap.Stringer("dev", bd.Sigblock.DevUUID),
		)

		bds[bd.Devnode] = bd
	}

	return bds, nil
}

// gatherDevInfo probes a single candidate: devnode writability, raw size,
// and ownership classification. Probing never writes.
func gatherDevInfo(dev block.DevNo, devnode string, options Options) (devInfo, error) {
	f, err := os.OpenFile(devnode, os.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return devInfo{}, fmt.Errorf("could not open %s: %w", devnode, err)
	}

	defer f.Close() //nolint:errcheck

	blk := block.NewFromFile(f)

	if !options.SkipLocking {
		if err := blk.TryLock(true); err != nil {
			return devInfo{}, fmt.Errorf("could not lock %s: %w", devnode, err)
		}

		defer blk.Unlock() //nolint:errcheck
	}

	size, err := blk.GetSize()
	if err != nil {
		return devInfo{}, fmt.Errorf("probing size of %s: %w", devnode, err)
	}

	buf := make([]byte, sigblock.HeaderSize)

	if err := ioutil.ReadFullAt(f, buf, 0); err != nil {
		return devInfo{}, fmt.Errorf("reading header of %s: %w", devnode, err)
	}

	ownership, err := sigblock.DetermineOwnership(buf)
	if err != nil {
		return devInfo{}, fmt.Errorf("%w for device %s", err, devnode)
	}

	return devInfo{
		dev:       dev,
		devnode:   devnode,
		size:      size,
		ownership: ownership,
	}, nil
}

// filterDevs decides admission for every candidate; any inappropriate
// device fails the whole batch, since partial pool initialization is worse
// than total failure.
func filterDevs(infos []devInfo, poolUUID uuid.UUID, force bool) ([]devInfo, error) {
	var admitted []devInfo

	for _, info := range infos {
		if info.size < MinDevSize {
			return nil, fmt.Errorf("%s: %w: %d bytes, minimum %d", info.devnode, ErrDeviceTooSmall, info.size, MinDevSize)
		}

		switch info.ownership.Kind {
		case sigblock.Unowned:
			admitted = append(admitted, info)
		case sigblock.Theirs:
			if !force {
				return nil, fmt.Errorf("%s: %w (first %d bytes)", info.devnode, ErrNotZeroed, sigblock.HeaderSize)
			}

			admitted = append(admitted, info)
		case sigblock.Ours:
			if owner := pointer.SafeDeref(info.ownership.Pool); owner != poolUUID {
				return nil, fmt.Errorf("%s: %w (pool %s)", info.devnode, ErrForeignPool, owner)
			}

			// already a member, nothing to do
		}
	}

	return admitted, nil
}
