// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"encoding/json"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// metadataDecMode decodes CBOR maps into map[string]any so that decoded
// metadata is always JSON encodable.
var metadataDecMode = func() cbor.DecMode {
	mode, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		panic(err)
	}

	return mode
}()

// MetadataFromJSON converts JSON document into CBOR bytes for the metadata field.
func MetadataFromJSON(raw []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	return cbor.Marshal(doc)
}

// MetadataToJSON converts CBOR metadata field bytes into JSON document.
func MetadataToJSON(metadata []byte) ([]byte, error) {
	var doc any
	if err := metadataDecMode.Unmarshal(metadata, &doc); err != nil {
		return nil, err
	}

	return json.Marshal(doc)
}
