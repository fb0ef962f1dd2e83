// SPDX-License-Identifier: Apache-2.0

package configschema

import (
	"encoding/json"

	"github.com/pgslice/pgslice/pkg/manifest"
)

// ParseManifestDoc decodes and lightly validates a manifest document read
// back from an archive.
func ParseManifestDoc(data []byte) (*manifest.Manifest, error) {
	if err := Validate(ManifestJSONSchema, data); err != nil {
		return nil, err
	}
	var m manifest.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
