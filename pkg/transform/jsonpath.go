// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"encoding/json"
	"fmt"

	"github.com/ohler55/ojg/jp"
)

func init() {
	Register("JsonPath", buildJsonPath)
}

type jsonPathElement struct {
	path        string
	transform   string
	expr        jp.Expr
	transformer Transformer
}

// jsonPathTransformer parses its input as JSON, applies a named transform
// to the value found at each configured path, and serializes the result
// back to JSON text. Each matched value must be null or a string.
type jsonPathTransformer struct {
	parts []jsonPathElement
}

func (t jsonPathTransformer) Transform(text *string) (*string, error) {
	if text == nil {
		return nil, nil
	}

	var value any
	if err := json.Unmarshal([]byte(*text), &value); err != nil {
		return nil, ConfigError{Class: "JsonPath", Cause: err}
	}

	for _, part := range t.parts {
		matches := part.expr.Get(value)
		for _, match := range matches {
			var input *string
			switch v := match.(type) {
			case nil:
				input = nil
			case string:
				input = &v
			default:
				return nil, NotStringError{Path: part.path}
			}

			out, err := part.transformer.Transform(input)
			if err != nil {
				return nil, err
			}

			var replacement any
			if out != nil {
				replacement = *out
			}
			if err := part.expr.Set(value, replacement); err != nil {
				return nil, ConfigError{Class: "JsonPath", Cause: err}
			}
		}
	}

	out, err := json.Marshal(value)
	if err != nil {
		return nil, ConfigError{Class: "JsonPath", Cause: err}
	}
	result := string(out)
	return &result, nil
}

func buildJsonPath(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	var elements []struct {
		Path      string `json:"path"`
		Transform string `json:"transform"`
	}
	if err := json.Unmarshal(config, &elements); err != nil {
		return nil, ConfigError{Class: "JsonPath", Cause: err}
	}

	parts := make([]jsonPathElement, 0, len(elements))
	for _, el := range elements {
		expr, err := jp.ParseString(el.Path)
		if err != nil {
			return nil, ConfigError{Class: "JsonPath", Cause: fmt.Errorf("path %q: %w", el.Path, err)}
		}
		inner, err := ctx.GetTransform(el.Transform)
		if err != nil {
			return nil, err
		}
		parts = append(parts, jsonPathElement{path: el.Path, transform: el.Transform, expr: expr, transformer: inner})
	}

	return jsonPathTransformer{parts: parts}, nil
}
