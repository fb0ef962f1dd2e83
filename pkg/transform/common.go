// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/json"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

func init() {
	Register("Null", buildNull)
	Register("Const", buildConst)
	Register("Compose", buildCompose)
	Register("Replace", buildReplace)
	Register("IncrementingConst", buildIncrementingConst)
}

// seedFrom hashes input with MD5 and takes the top 8 bytes as a seed,
// matching bytes_hash_int/create_random: same input always yields the same
// pseudo-random stream, independent of process or run.
func seedFrom(input []byte) int64 {
	sum := md5.Sum(input)
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

func createRandom(input []byte) *rand.Rand {
	return rand.New(rand.NewSource(seedFrom(input)))
}

// nullTransformer always produces nil, regardless of input.
type nullTransformer struct{}

func (nullTransformer) Transform(text *string) (*string, error) {
	return nil, nil
}

func buildNull(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	return nullTransformer{}, nil
}

// constTransformer replaces any non-nil value with a fixed string.
type constTransformer struct {
	value *string
}

func (t constTransformer) Transform(text *string) (*string, error) {
	if text == nil {
		return nil, nil
	}
	return t.value, nil
}

func buildConst(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	var params struct {
		Value *string `json:"value"`
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &params); err != nil {
			return nil, ConfigError{Class: "Const", Cause: err}
		}
	}
	return constTransformer{value: params.Value}, nil
}

// composeTransformer runs a fixed list of named transforms in sequence,
// feeding each one's output to the next.
type composeTransformer struct {
	transforms []Transformer
}

func (t composeTransformer) Transform(text *string) (*string, error) {
	var err error
	for _, inner := range t.transforms {
		text, err = inner.Transform(text)
		if err != nil {
			return nil, err
		}
	}
	return text, nil
}

func buildCompose(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	var names []string
	if err := json.Unmarshal(config, &names); err != nil {
		return nil, ConfigError{Class: "Compose", Cause: err}
	}
	transforms := make([]Transformer, 0, len(names))
	for _, name := range names {
		inner, err := ctx.GetTransform(name)
		if err != nil {
			return nil, err
		}
		transforms = append(transforms, inner)
	}
	return composeTransformer{transforms: transforms}, nil
}

// replaceTransformer performs a case-insensitive literal substring
// substitution.
type replaceTransformer struct {
	old *regexp.Regexp
	new string
}

func (t replaceTransformer) Transform(text *string) (*string, error) {
	if text == nil {
		return nil, nil
	}
	result := t.old.ReplaceAllLiteralString(*text, t.new)
	return &result, nil
}

func buildReplace(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	var params struct {
		Old string `json:"old"`
		New string `json:"new"`
	}
	if err := json.Unmarshal(config, &params); err != nil {
		return nil, ConfigError{Class: "Replace", Cause: err}
	}
	old, err := regexp.Compile("(?i)" + regexp.QuoteMeta(params.Old))
	if err != nil {
		return nil, ConfigError{Class: "Replace", Cause: err}
	}
	return replaceTransformer{old: old, new: params.New}, nil
}

// incrementingConstTransformer replaces non-empty text with "<value> <n>",
// where n increments on every call, unless the text contains an exclude
// substring, in which case it passes through unchanged.
type incrementingConstTransformer struct {
	mu      *sync.Mutex
	count   *int
	value   string
	exclude *string
}

func (t incrementingConstTransformer) Transform(text *string) (*string, error) {
	if text == nil || *text == "" {
		return text, nil
	}
	if t.exclude != nil && strings.Contains(*text, *t.exclude) {
		return text, nil
	}

	t.mu.Lock()
	*t.count++
	n := *t.count
	t.mu.Unlock()

	result := t.value + " " + strconv.Itoa(n)
	return &result, nil
}

func buildIncrementingConst(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	var params struct {
		Value   string  `json:"value"`
		Exclude *string `json:"exclude"`
	}
	if err := json.Unmarshal(config, &params); err != nil {
		return nil, ConfigError{Class: "IncrementingConst", Cause: err}
	}
	count := 0
	return incrementingConstTransformer{
		mu:      &sync.Mutex{},
		count:   &count,
		value:   params.Value,
		exclude: params.Exclude,
	}, nil
}
