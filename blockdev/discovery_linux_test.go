// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package blockdev_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ignatenkobrain/stratisd/blockdev"
	"github.com/ignatenkobrain/stratisd/sigblock"
)

func TestFindAll(t *testing.T) {
	logger := zaptest.NewLogger(t)

	dir := t.TempDir()

	poolA := uuid.New()
	poolB := uuid.New()

	a1 := claim(t, makeImage(t, dir, "a1.raw", GiB), poolA, sigblock.MinMDASectors)
	a2 := claim(t, makeImage(t, dir, "a2.raw", GiB), poolA, sigblock.MinMDASectors)
	b1 := claim(t, makeImage(t, dir, "b1.raw", 2*GiB), poolB, sigblock.MaxMDASectors)

	// entries that are not pool members are skipped
	makeImage(t, dir, "zeroed.raw", GiB)
	writeAt(t, makeImage(t, dir, "junk.raw", GiB), 0, []byte("some other filesystem"))
	makeImage(t, dir, "tiny.raw", 1024)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	poolMap, err := blockdev.FindAll(blockdev.WithLogger(logger), blockdev.WithDevDir(dir))
	require.NoError(t, err)

	require.Len(t, poolMap, 2)
	require.Len(t, poolMap[poolA], 2)
	require.Len(t, poolMap[poolB], 1)

	for _, expected := range []*blockdev.BlockDev{a1, a2, b1} {
		found, ok := poolMap[expected.Sigblock.PoolUUID][expected.Sigblock.DevUUID]
		require.True(t, ok, "device %s not discovered", expected.Devnode)

		assert.Equal(t, expected.Devnode, found.Devnode)
		assert.Equal(t, expected.Sigblock.TotalSize, found.Sigblock.TotalSize)
		assert.Equal(t, expected.Sigblock.MDASize, found.Sigblock.MDASize)
	}
}

func TestFindAllCorrupt(t *testing.T) {
	dir := t.TempDir()

	bd := claim(t, makeImage(t, dir, "a.raw", GiB), uuid.New(), sigblock.MinMDASectors)

	// flip one bit inside the CRC-covered part of the signature sector
	f, err := os.OpenFile(bd.Devnode, os.O_RDWR, 0)
	require.NoError(t, err)

	b := make([]byte, 1)
	_, err = f.ReadAt(b, 512+30)
	require.NoError(t, err)

	b[0] ^= 0x80

	_, err = f.WriteAt(b, 512+30)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = blockdev.FindAll(blockdev.WithLogger(zaptest.NewLogger(t)), blockdev.WithDevDir(dir))
	assert.ErrorIs(t, err, sigblock.ErrCorrupt)
}

func TestResolveDevices(t *testing.T) {
	dir := t.TempDir()

	t.Run("regular file", func(t *testing.T) {
		devnode := makeImage(t, dir, "image.raw", GiB)

		_, err := blockdev.ResolveDevices([]string{devnode})
		assert.ErrorIs(t, err, blockdev.ErrNotBlockDevice)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := blockdev.ResolveDevices([]string{filepath.Join(dir, "no-such-device")})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}
