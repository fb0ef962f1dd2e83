// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"strings"
	"unicode"
)

func init() {
	Register("Alphanumeric", buildAlphanumeric)
}

// charCategory classifies one rune for case- and digit-preserving
// transforms.
type charCategory int

const (
	categoryOther charCategory = iota
	categoryUpper
	categoryLower
	categoryNumber
)

func charCategoryOf(r rune) charCategory {
	switch {
	case unicode.IsUpper(r) || unicode.IsTitle(r):
		return categoryUpper
	case unicode.IsLower(r):
		return categoryLower
	case unicode.IsDigit(r) || unicode.IsNumber(r):
		return categoryNumber
	default:
		return categoryOther
	}
}

func stringCategories(s string) map[charCategory]bool {
	out := map[charCategory]bool{}
	for _, r := range s {
		out[charCategoryOf(r)] = true
	}
	return out
}

// lettersOnly strips everything but ASCII letters, mirroring Char.letters,
// which word-case detection uses to ignore surrounding punctuation/digits.
func lettersOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// wordCase is the detected casing pattern of a word, used to re-case a
// replacement word the same way.
type wordCase int

const (
	caseOther wordCase = iota
	caseUpper
	caseLower
	caseTitle
)

func detectWordCase(s string) wordCase {
	if s == "" {
		return caseOther
	}
	runes := []rune(s)
	categories := make([]charCategory, len(runes))
	for i, r := range runes {
		categories[i] = charCategoryOf(r)
	}

	allUpper, allLower := true, true
	for _, c := range categories {
		if c != categoryUpper {
			allUpper = false
		}
		if c != categoryLower {
			allLower = false
		}
	}
	if allUpper {
		return caseUpper
	}
	if allLower {
		return caseLower
	}
	if categories[0] == categoryUpper {
		rest := true
		for _, c := range categories[1:] {
			if c != categoryLower {
				rest = false
				break
			}
		}
		if rest {
			return caseTitle
		}
	}
	return caseOther
}

func applyWordCase(s string, c wordCase) string {
	switch c {
	case caseUpper:
		return strings.ToUpper(s)
	case caseLower:
		return strings.ToLower(s)
	case caseTitle:
		if s == "" {
			return s
		}
		runes := []rune(s)
		return strings.ToUpper(string(runes[0])) + strings.ToLower(string(runes[1:]))
	default:
		return s
	}
}

// alphanumericTransformer scrambles each character of text within its own
// category (upper stays upper, digit stays digit), or, in unique mode,
// encrypts the whole string with a keyed format-preserving cipher (see
// fpeAlphanumeric for the inputs on which that mapping is one-to-one).
type alphanumericTransformer struct {
	unique bool
	pepper []byte
}

func (t alphanumericTransformer) Transform(text *string) (*string, error) {
	if text == nil {
		return nil, nil
	}
	var result string
	if t.unique {
		result = fpeAlphanumeric(*text, t.pepper)
	} else {
		result = t.scramble(*text)
	}
	return &result, nil
}

func (t alphanumericTransformer) scramble(text string) string {
	rnd := createRandom(append([]byte(strings.ToUpper(text)), t.pepper...))
	runes := []rune(text)
	out := make([]rune, len(runes))
	for i, r := range runes {
		switch charCategoryOf(r) {
		case categoryUpper:
			out[i] = rune('A' + rnd.Intn(26))
		case categoryLower:
			out[i] = rune('a' + rnd.Intn(26))
		case categoryNumber:
			out[i] = rune('0' + rnd.Intn(10))
		default:
			out[i] = r
		}
	}
	return string(out)
}

func buildAlphanumeric(ctx *Context, pepper []byte, config json.RawMessage) (Transformer, error) {
	var params struct {
		Unique bool `json:"unique"`
	}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &params); err != nil {
			return nil, ConfigError{Class: "Alphanumeric", Cause: err}
		}
	}
	return alphanumericTransformer{unique: params.Unique, pepper: pepper}, nil
}

// fpeAlphanumeric deterministically maps text to a same-length alphanumeric
// string for a given pepper, using the same alphabet categories
// (upper/lower/digit) present in the input, via a Feistel network keyed
// with HMAC-SHA256. This plays the role pyffx's format-preserving
// encryption plays in the original. The mapping is one-to-one among
// same-length inputs whose characters all lie in the same detected
// alphabet. Characters outside upper/lower/digit are folded onto the
// alphabet by code point modulo its size, so such inputs can collide (for
// example "A-1" and "AJ1"), as can inputs whose detected alphabets differ.
func fpeAlphanumeric(text string, pepper []byte) string {
	categories := stringCategories(text)
	alphabet := ""
	if categories[categoryUpper] {
		alphabet += "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	}
	if categories[categoryLower] {
		alphabet += "abcdefghijklmnopqrstuvwxyz"
	}
	if categories[categoryNumber] {
		alphabet += "0123456789"
	}
	if alphabet == "" {
		alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	}

	runes := []rune(text)
	indices := make([]int, len(runes))
	for i, r := range runes {
		idx := strings.IndexRune(alphabet, r)
		if idx < 0 {
			idx = int(uint32(r)) % len(alphabet)
		}
		indices[i] = idx
	}

	encrypted := feistelEncrypt(indices, len(alphabet), pepper)

	out := make([]rune, len(encrypted))
	for i, v := range encrypted {
		out[i] = rune(alphabet[v])
	}
	return string(out)
}

// feistelEncrypt runs a balanced Feistel network over a sequence of digits
// in base `radix`, producing a permutation of the same length keyed by key.
// Odd-length inputs are split into halves of unequal length that swap
// lengths from round to round; no digit is left out of the rounds, and
// each round stays invertible.
func feistelEncrypt(digits []int, radix int, key []byte) []int {
	const rounds = 8
	n := len(digits)
	if n < 2 {
		return append([]int(nil), digits...)
	}

	half := n / 2
	left := append([]int(nil), digits[:half]...)
	right := append([]int(nil), digits[half:]...)

	for round := 0; round < rounds; round++ {
		f := feistelRound(right, radix, key, round)
		newRight := make([]int, len(left))
		for i := range left {
			newRight[i] = (left[i] + f[i%len(f)]) % radix
		}
		left, right = right, newRight
	}

	result := make([]int, 0, n)
	result = append(result, left...)
	result = append(result, right...)
	return result
}

func feistelRound(block []int, radix int, key []byte, round int) []int {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte{byte(round)})
	for _, d := range block {
		mac.Write([]byte{byte(d)})
	}
	sum := mac.Sum(nil)

	out := make([]int, len(block))
	for i := range block {
		out[i] = int(sum[i%len(sum)]) % radix
	}
	return out
}
