// Package codec implements the reversible masking applied to archived chapter
// content. It hides text from casual inspection and is not encryption.
package codec

import (
	"strconv"
	"unicode/utf16"
)

// keySuffixLen is how many trailing characters of a chapter id form its key.
const keySuffixLen = 8

// Transform XORs every UTF-16 code unit of text with (i + key) mod 256, where i
// is the unit's index. Applying it twice with the same key returns the input.
func Transform(text string, key int) string {
	if text == "" {
		return ""
	}
	units := utf16.Encode([]rune(text))
	offset := ((key % 256) + 256) % 256
	for i, u := range units {
		units[i] = u ^ uint16((i+offset)%256)
	}
	return string(utf16.Decode(units))
}

// KeyFromID derives the transform key from the last eight characters of a
// chapter id read as a decimal number. Ids whose suffix is not numeric map to 0.
func KeyFromID(id string) int {
	runes := []rune(id)
	if len(runes) > keySuffixLen {
		runes = runes[len(runes)-keySuffixLen:]
	}
	n, err := strconv.ParseInt(string(runes), 10, 64)
	if err != nil {
		return 0
	}
	return int(n % 256)
}

// Encode masks chapter content for storage.
func Encode(content, chapterID string) string {
	return Transform(content, KeyFromID(chapterID))
}

// Decode reverses Encode.
func Decode(content, chapterID string) string {
	return Transform(content, KeyFromID(chapterID))
}
