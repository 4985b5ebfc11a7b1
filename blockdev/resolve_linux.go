// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package blockdev

import (
	"fmt"

	"github.com/ignatenkobrain/stratisd/block"
)

// ResolveDevices resolves devnode paths to a deduplicated device set.
//
// The same device may be reachable through several symlinked paths;
// duplicates collapse silently, keeping the first path seen. Any path
// that cannot be resolved to a block device fails the whole call.
func ResolveDevices(paths []string) (Devices, error) {
	devices := make(Devices, len(paths))

	for _, path := range paths {
		devNo, err := resolveDevice(path)
		if err != nil {
			return nil, err
		}

		if _, ok := devices[devNo]; !ok {
			devices[devNo] = path
		}
	}

	return devices, nil
}

func resolveDevice(path string) (block.DevNo, error) {
	dev, err := block.NewFromPath(path)
	if err != nil {
		return 0, fmt.Errorf("could not open %s: %w", path, err)
	}

	defer dev.Close() //nolint:errcheck

	isBlock, err := dev.IsBlock()
	if err != nil {
		return 0, fmt.Errorf("could not stat %s: %w", path, err)
	}

	if !isBlock {
		return 0, fmt.Errorf("%s: %w", path, ErrNotBlockDevice)
	}

	return dev.GetDevNo()
}
