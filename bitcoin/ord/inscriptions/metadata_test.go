// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"inscriber/bitcoin/ord/inscriptions"
)

func TestMetadata(t *testing.T) {
	t.Run("json round trip", func(t *testing.T) {
		raw := []byte(`{"attributes":["rare","blue"],"name":"alpha"}`)

		metadata, err := inscriptions.MetadataFromJSON(raw)
		require.NoError(t, err)
		require.NotEmpty(t, metadata)

		restored, err := inscriptions.MetadataToJSON(metadata)
		require.NoError(t, err)
		require.JSONEq(t, string(raw), string(restored))
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := inscriptions.MetadataFromJSON([]byte(`{"name":`))
		require.Error(t, err)
	})

	t.Run("invalid cbor", func(t *testing.T) {
		_, err := inscriptions.MetadataToJSON([]byte{0xff, 0xff})
		require.Error(t, err)
	})
}
