// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package sigblock_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatenkobrain/stratisd/sector"
	"github.com/ignatenkobrain/stratisd/sigblock"
)

const totalSectors = sector.Sectors(2097152) // 1 GiB

func TestRoundtrip(t *testing.T) {
	poolUUID := uuid.MustParse("7b6e3ec2-18ee-42f4-bde4-d32d1742a0eb")
	devUUID := uuid.MustParse("d1e56bbc-7a24-4c11-b57d-24c4f8d87c3f")

	sb := sigblock.New(poolUUID, devUUID, sigblock.MinMDASectors, totalSectors)
	sb.MDA.Slots[0].Used = 1000
	sb.MDA.Slots[0].CRC = 0xdeadbeef
	sb.MDA.Slots[0].LastUpdated = time.Unix(1700000000, 123456789).UTC()

	buf := make([]byte, sigblock.HeaderSize)
	sb.Write(buf, 0)

	read, err := sigblock.Read(buf, 0, totalSectors)
	require.NoError(t, err)

	assert.Equal(t, poolUUID, read.PoolUUID)
	assert.Equal(t, devUUID, read.DevUUID)
	assert.Equal(t, totalSectors, read.TotalSize)
	assert.Equal(t, sector.Sectors(sigblock.MinMDASectors), read.MDASize)
	assert.Equal(t, sector.Sectors(sigblock.ReservedSectors), read.ReservedSize)

	assert.Equal(t, sb.MDA.Slots[0], read.MDA.Slots[0])
	assert.True(t, read.MDA.Slots[1].LastUpdated.IsZero())
	assert.Equal(t, sector.Offset(sigblock.MinMDASectors/2), read.MDA.Slots[1].Offset)
	assert.Equal(t, sector.Sectors(sigblock.MinMDASectors/2), read.MDA.Slots[1].Length)
}

func TestReadRejects(t *testing.T) {
	for _, test := range []struct { //nolint:govet
		name string

		mangle func(sb *sigblock.SigBlock, buf []byte)
		total  sector.Sectors
	}{
		{
			name: "magic mismatch",
			mangle: func(_ *sigblock.SigBlock, buf []byte) {
				buf[512+4] ^= 0xff
			},
			total: totalSectors,
		},
		{
			name: "header CRC mismatch",
			mangle: func(_ *sigblock.SigBlock, buf []byte) {
				buf[512+100] ^= 0x01
			},
			total: totalSectors,
		},
		{
			name:   "header claims more sectors than the device has",
			mangle: func(_ *sigblock.SigBlock, _ []byte) {},
			total:  totalSectors / 2,
		},
		{
			name: "invalid MDA size",
			mangle: func(sb *sigblock.SigBlock, buf []byte) {
				sb.MDASize = 3
				sb.Write(buf, 0)
			},
			total: totalSectors,
		},
		{
			name: "slot used exceeds capacity",
			mangle: func(sb *sigblock.SigBlock, buf []byte) {
				sb.MDA.Slots[0].Used = sb.MDASize.Bytes()
				sb.MDA.Slots[0].LastUpdated = time.Unix(1700000000, 0)
				sb.Write(buf, 0)
			},
			total: totalSectors,
		},
		{
			name: "device cannot hold the layout",
			mangle: func(sb *sigblock.SigBlock, buf []byte) {
				sb.TotalSize = sigblock.MinMDASectors
				sb.Write(buf, 0)
			},
			total: sigblock.MinMDASectors,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			sb := sigblock.New(uuid.New(), uuid.New(), sigblock.MinMDASectors, totalSectors)

			buf := make([]byte, sigblock.HeaderSize)
			sb.Write(buf, 0)

			test.mangle(sb, buf)

			_, err := sigblock.Read(buf, 0, test.total)
			assert.ErrorIs(t, err, sigblock.ErrCorrupt)
		})
	}
}

func TestValidateMDASize(t *testing.T) {
	for _, test := range []struct {
		size sector.Sectors
		ok   bool
	}{
		{sigblock.MinMDASectors, true},
		{sigblock.MinMDASectors + 2, true},
		{sigblock.MaxMDASectors, true},
		{sigblock.MinMDASectors + 1, false}, // odd
		{sigblock.MinMDASectors - 2, false}, // too small
		{sigblock.MaxMDASectors + 2, false}, // too large
		{0, false},
	} {
		err := sigblock.ValidateMDASize(test.size)

		if test.ok {
			assert.NoError(t, err, "size=%d", test.size)
		} else {
			assert.ErrorIs(t, err, sigblock.ErrMDASize, "size=%d", test.size)
		}
	}
}

func TestMDAPairRecency(t *testing.T) {
	var pair sigblock.MDAPair

	// both never written: slot 0 wins the tiebreak
	assert.Same(t, &pair.Slots[0], pair.MostRecent())
	assert.Same(t, &pair.Slots[1], pair.LeastRecent())

	pair.Slots[1].LastUpdated = time.Unix(1700000000, 0)

	assert.Same(t, &pair.Slots[1], pair.MostRecent())
	assert.Same(t, &pair.Slots[0], pair.LeastRecent())

	pair.Slots[0].LastUpdated = time.Unix(1700000001, 0)

	assert.Same(t, &pair.Slots[0], pair.MostRecent())
	assert.Same(t, &pair.Slots[1], pair.LeastRecent())
}
