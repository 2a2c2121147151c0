// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"inscriber/bitcoin"
)

func TestSatPoint(t *testing.T) {
	t.Run("NewSatPointFromString", func(t *testing.T) {
		tests := []struct {
			value   string
			invalid bool
		}{
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:0:0", false},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:12:10000", false},
			{"0000000000000000000000000000000000000000000000000000000000000000:0:0", false},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:0", true},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da", true},
			{"not-a-txid:0:0", true},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:x:0", true},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:0:-1", true},
		}
		for _, test := range tests {
			satPoint, err := bitcoin.NewSatPointFromString(test.value)
			if test.invalid {
				require.Error(t, err)
				require.ErrorIs(t, err, bitcoin.ErrMalformedSatPoint)
			} else {
				require.NoError(t, err)
				require.EqualValues(t, test.value, satPoint.String())
			}
		}
	})

	t.Run("NewOutPointFromString", func(t *testing.T) {
		tests := []struct {
			value   string
			invalid bool
		}{
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:0", false},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:12", false},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da", true},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:0:0", true},
			{"not-a-txid:0", true},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:x", true},
		}
		for _, test := range tests {
			outPoint, err := bitcoin.NewOutPointFromString(test.value)
			if test.invalid {
				require.Error(t, err)
				require.ErrorIs(t, err, bitcoin.ErrMalformedOutPoint)
			} else {
				require.NoError(t, err)
				require.EqualValues(t, test.value, outPoint.String())
			}
		}
	})

	t.Run("Compare", func(t *testing.T) {
		a, err := bitcoin.NewSatPointFromString("521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:1:100")
		require.NoError(t, err)

		tests := []struct {
			value    string
			expected int
		}{
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:1:100", 0},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:1:99", 1},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:1:101", -1},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:0:100", 1},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da:2:100", -1},
		}
		for _, test := range tests {
			b, err := bitcoin.NewSatPointFromString(test.value)
			require.NoError(t, err)
			require.EqualValues(t, test.expected, a.Compare(*b))
		}
	})
}
