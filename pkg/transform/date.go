// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"encoding/json"
	"time"
)

func init() {
	Register("DateYear", buildDateYear)
}

const dateOnlyLayout = "2006-01-02"

// dateYearTransformer replaces a date with another date drawn uniformly
// from the same calendar year, preserving the year but nothing else.
type dateYearTransformer struct {
	pepper []byte
}

func (t dateYearTransformer) Transform(text *string) (*string, error) {
	if text == nil {
		return nil, nil
	}
	date, err := time.Parse(dateOnlyLayout, *text)
	if err != nil {
		return nil, ConfigError{Class: "DateYear", Cause: err}
	}

	rnd := createRandom(append([]byte(*text), t.pepper...))

	yearStart := time.Date(date.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	nextYearStart := time.Date(date.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	days := int(nextYearStart.Sub(yearStart).Hours() / 24)

	result := yearStart.AddDate(0, 0, rnd.Intn(days)).Format(dateOnlyLayout)
	return &result, nil
}

func buildDateYear(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	return dateYearTransformer{pepper: pepper}, nil
}
