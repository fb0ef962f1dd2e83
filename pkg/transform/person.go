// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"encoding/json"
	"strings"
)

func init() {
	Register("GivenName", buildGivenName)
	Register("Surname", buildSurname)
}

// nameTransformer replaces text with a deterministically chosen name from a
// fixed list, re-cased to match the input's apparent casing.
type nameTransformer struct {
	names  []string
	pepper []byte
}

func (t nameTransformer) Transform(text *string) (*string, error) {
	if text == nil {
		return nil, nil
	}
	rnd := createRandom(append([]byte(strings.ToUpper(*text)), t.pepper...))
	name := t.names[rnd.Intn(len(t.names))]
	c := detectWordCase(lettersOnly(*text))
	if c != caseTitle {
		name = applyWordCase(name, c)
	}
	return &name, nil
}

func buildGivenName(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	return nameTransformer{names: splitLines(givenNameData), pepper: pepper}, nil
}

func buildSurname(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	return nameTransformer{names: splitLines(surnameData), pepper: pepper}, nil
}
