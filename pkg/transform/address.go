// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"encoding/json"
	"fmt"
)

func init() {
	Register("AddressLine1", buildAddressLine1)
	Register("AddressLine2", buildAddressLine2)
	Register("City", buildCity)
	Register("Geozip", buildGeozip)
	Register("UsState", buildUsState)
}

// addressLine1Transformer replaces text with a random house number and a
// deterministically chosen street name.
type addressLine1Transformer struct {
	streets []string
	pepper  []byte
}

func (t addressLine1Transformer) Transform(text *string) (*string, error) {
	if text == nil || *text == "" {
		return text, nil
	}
	rnd := createRandom(append([]byte(*text), t.pepper...))
	street := t.streets[rnd.Intn(len(t.streets))]
	c := detectWordCase(lettersOnly(*text))
	if c != caseTitle {
		street = applyWordCase(street, c)
	}
	n := rnd.Intn(9999) + 1
	result := fmt.Sprintf("%d %s", n, street)
	return &result, nil
}

func buildAddressLine1(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	return addressLine1Transformer{streets: splitLines(streetData), pepper: pepper}, nil
}

// addressLine2Transformer replaces text with a random unit number.
type addressLine2Transformer struct {
	pepper []byte
}

func (t addressLine2Transformer) Transform(text *string) (*string, error) {
	if text == nil || *text == "" {
		return text, nil
	}
	rnd := createRandom(append([]byte(*text), t.pepper...))
	n := rnd.Intn(999) + 1
	result := fmt.Sprintf("#%d", n)
	return &result, nil
}

func buildAddressLine2(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	return addressLine2Transformer{pepper: pepper}, nil
}

// cityTransformer replaces text with a deterministically chosen city name,
// re-cased to match the input.
type cityTransformer struct {
	cities []string
	pepper []byte
}

func (t cityTransformer) Transform(text *string) (*string, error) {
	if text == nil || *text == "" {
		return text, nil
	}
	rnd := createRandom(append([]byte(*text), t.pepper...))
	city := t.cities[rnd.Intn(len(t.cities))]
	c := detectWordCase(lettersOnly(*text))
	if c == caseTitle {
		return &city, nil
	}
	city = applyWordCase(city, c)
	return &city, nil
}

func buildCity(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	return cityTransformer{cities: splitLines(cityData), pepper: pepper}, nil
}

// geozipTransformer replaces a zip code with another zip code drawn from
// the same three-digit geographic prefix when one is known, otherwise from
// the full list, preserving the broad region a zip code implies.
type geozipTransformer struct {
	byGeozip map[string][]string
	all      []string
	pepper   []byte
}

func (t geozipTransformer) Transform(text *string) (*string, error) {
	if text == nil {
		return nil, nil
	}
	rnd := createRandom(append([]byte(*text), t.pepper...))

	var choices []string
	if len(*text) >= 3 {
		choices = t.byGeozip[(*text)[0:3]]
	}
	if len(choices) == 0 {
		choices = t.all
	}
	result := fmt.Sprintf("%05s", choices[rnd.Intn(len(choices))])
	return &result, nil
}

func buildGeozip(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	zips := splitLines(zipData)
	return geozipTransformer{byGeozip: geozipGroups(zips), all: zips, pepper: pepper}, nil
}

// usStateTransformer replaces text with a deterministically chosen US state
// name, or its two-letter abbreviation when configured.
type usStateTransformer struct {
	states []string
	pepper []byte
}

func (t usStateTransformer) Transform(text *string) (*string, error) {
	if text == nil || *text == "" {
		return text, nil
	}
	rnd := createRandom(append([]byte(*text), t.pepper...))
	state := t.states[rnd.Intn(len(t.states))]
	c := detectWordCase(lettersOnly(*text))
	state = applyWordCase(state, c)
	return &state, nil
}

func buildUsState(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	var params struct {
		Abbr bool `json:"abbr"`
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &params); err != nil {
			return nil, ConfigError{Class: "UsState", Cause: err}
		}
	}
	states := splitLines(usStateData)
	if params.Abbr {
		states = splitLines(usStateAbbrData)
	}
	return usStateTransformer{states: states, pepper: pepper}, nil
}
