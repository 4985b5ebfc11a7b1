// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package sigblock_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/siderolabs/go-pointer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatenkobrain/stratisd/sigblock"
)

func TestDetermineOwnership(t *testing.T) {
	poolUUID := uuid.MustParse("7b6e3ec2-18ee-42f4-bde4-d32d1742a0eb")

	signed := make([]byte, sigblock.HeaderSize)
	sigblock.New(poolUUID, uuid.New(), sigblock.MinMDASectors, totalSectors).Write(signed, 0)

	junk := make([]byte, sigblock.HeaderSize)
	for i := range junk {
		junk[i] = byte(i)
	}

	// non-zero content outside the signature sector only
	stray := make([]byte, sigblock.HeaderSize)
	stray[2048] = 0xff

	corrupt := make([]byte, sigblock.HeaderSize)
	copy(corrupt, signed)
	corrupt[512+40] ^= 0x01

	for _, test := range []struct { //nolint:govet
		name string
		buf  []byte

		expected    sigblock.DevOwnership
		expectError bool
	}{
		{
			name:     "zeroed",
			buf:      make([]byte, sigblock.HeaderSize),
			expected: sigblock.DevOwnership{Kind: sigblock.Unowned},
		},
		{
			name:     "foreign content",
			buf:      junk,
			expected: sigblock.DevOwnership{Kind: sigblock.Theirs},
		},
		{
			name:     "stray bytes outside the signature sector",
			buf:      stray,
			expected: sigblock.DevOwnership{Kind: sigblock.Theirs},
		},
		{
			name: "valid signature",
			buf:  signed,
			expected: sigblock.DevOwnership{
				Kind: sigblock.Ours,
				Pool: pointer.To(poolUUID),
			},
		},
		{
			name:        "recognizable but malformed",
			buf:         corrupt,
			expectError: true,
		},
		{
			name:        "short buffer",
			buf:         make([]byte, 512),
			expectError: true,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			ownership, err := sigblock.DetermineOwnership(test.buf)

			if test.expectError {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expected, ownership)
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "unowned", sigblock.Unowned.String())
	assert.Equal(t, "theirs", sigblock.Theirs.String())
	assert.Equal(t, "ours", sigblock.Ours.String())
}
