// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package blockdev

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/ignatenkobrain/stratisd/block"
	"github.com/ignatenkobrain/stratisd/internal/ioutil"
	"github.com/ignatenkobrain/stratisd/sector"
	"github.com/ignatenkobrain/stratisd/sigblock"
)

// FindAll discovers all claimed block devices on the system.
//
// Returns a map of pool UUIDs to maps of device UUIDs to blockdevs.
//
// The scan is best-effort per entry: device nodes that cannot be opened,
// are not block devices (or disk images), or carry no recognizable
// signature are skipped. A recognizable signature that fails validation
// aborts the whole scan, since a corrupt pool member must not be silently
// dropped from the pool view.
func FindAll(opts ...Option) (map[uuid.UUID]map[uuid.UUID]*BlockDev, error) {
	options := applyOptions(opts...)

	entries, err := os.ReadDir(options.DevDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", options.DevDir, err)
	}

	poolMap := map[uuid.UUID]map[uuid.UUID]*BlockDev{}

	for _, entry := range entries {
		devnode := filepath.Join(options.DevDir, entry.Name())

		bd, err := setup(devnode, options)
		if err != nil {
			return nil, err
		}

		if bd == nil {
			continue
		}

		pool, ok := poolMap[bd.Sigblock.PoolUUID]
		if !ok {
			pool = map[uuid.UUID]*BlockDev{}
			poolMap[bd.Sigblock.PoolUUID] = pool
		}

		pool[bd.Sigblock.DevUUID] = bd
	}

	return poolMap, nil
}

// setup inspects a single devnode and returns a BlockDev if it carries a
// valid signature belonging to some pool, nil if the entry is not a pool
// member, and an error if the entry looks like a pool member but fails
// validation.
func setup(devnode string, options Options) (*BlockDev, error) {
	f, err := os.OpenFile(devnode, os.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		options.Logger.Debug("skipping unopenable entry", zap.String("devnode", devnode), zap.Error(err))

		return nil, nil //nolint:nilnil
	}

	defer f.Close() //nolint:errcheck

	st, err := f.Stat()
	if err != nil {
		options.Logger.Debug("skipping unstattable entry", zap.String("devnode", devnode), zap.Error(err))

		return nil, nil //nolint:nilnil
	}

	sysStat := st.Sys().(*syscall.Stat_t) //nolint:errcheck,forcetypeassert // we know it's a syscall.Stat_t

	switch sysStat.Mode & unix.S_IFMT {
	case unix.S_IFBLK, unix.S_IFREG:
	default:
		return nil, nil //nolint:nilnil
	}

	dev := block.NewFromFile(f)

	if !options.SkipLocking {
		if err := dev.TryLock(false); err != nil {
			options.Logger.Debug("skipping busy device", zap.String("devnode", devnode), zap.Error(err))

			return nil, nil //nolint:nilnil
		}

		defer dev.Unlock() //nolint:errcheck
	}

	buf := make([]byte, sigblock.HeaderSize)

	if err := ioutil.ReadFullAt(f, buf, 0); err != nil {
		options.Logger.Debug("skipping unreadable device", zap.String("devnode", devnode), zap.Error(err))

		return nil, nil //nolint:nilnil
	}

	ownership, err := sigblock.DetermineOwnership(buf)
	if err != nil {
		return nil, fmt.Errorf("%w for devnode %s", err, devnode)
	}

	if ownership.Kind != sigblock.Ours {
		options.Logger.Debug("skipping device", zap.String("devnode", devnode), zap.Stringer("ownership", ownership.Kind))

		return nil, nil //nolint:nilnil
	}

	size, err := dev.GetSize()
	if err != nil {
		return nil, fmt.Errorf("probing size of %s: %w", devnode, err)
	}

	sb, err := sigblock.Read(buf, 0, sector.FromBytes(size))
	if err != nil {
		return nil, fmt.Errorf("%w for devnode %s", err, devnode)
	}

	devNo, err := dev.GetDevNo()
	if err != nil {
		return nil, fmt.Errorf("could not get device number of %s: %w", devnode, err)
	}

	return &BlockDev{
		Dev:      devNo,
		Devnode:  devnode,
		Sigblock: sb,
	}, nil
}
