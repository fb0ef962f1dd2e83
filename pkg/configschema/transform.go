// SPDX-License-Identifier: Apache-2.0

package configschema

import "encoding/json"

// TransformSpec is one entry of the top-level transforms registry: a class
// name plus its class-specific configuration.
type TransformSpec struct {
	Class  string          `json:"class"`
	Config json.RawMessage `json:"config,omitempty"`
}

// TransformTableDoc maps column name to the name of a registered transform.
type TransformTableDoc struct {
	Columns map[string]string `json:"columns"`
}

// TransformDoc is the "Transform JSON" document of spec.md §6.
type TransformDoc struct {
	Transforms map[string]TransformSpec     `json:"transforms"`
	Tables     map[string]TransformTableDoc `json:"tables"`
}

// ParseTransformDoc decodes and lightly validates a transform document.
func ParseTransformDoc(data []byte) (*TransformDoc, error) {
	if err := Validate(TransformJSONSchema, data); err != nil {
		return nil, err
	}
	var doc TransformDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
