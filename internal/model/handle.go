package model

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidHandle is returned when a handle is empty after normalization
// or contains characters that cannot appear in an account handle.
var ErrInvalidHandle = errors.New("invalid handle")

// maxHandleLength is the longest handle accepted by NormalizeHandle.
const maxHandleLength = 64

// NormalizeHandle converts user or source supplied handles into their
// canonical form: surrounding whitespace and a leading "@" are removed,
// the result is NFKC normalized and case folded.
//
// Two handles that differ only in letter case or Unicode compatibility form
// therefore map to the same registry key.
func NormalizeHandle(raw string) (string, error) {
	h := strings.TrimSpace(raw)
	h = strings.TrimPrefix(h, "@")
	h = norm.NFKC.String(h)
	h = cases.Fold().String(h)

	if h == "" || len(h) > maxHandleLength {
		return "", ErrInvalidHandle
	}
	for _, r := range h {
		if !isHandleRune(r) {
			return "", ErrInvalidHandle
		}
	}
	return h, nil
}

// MustNormalizeHandle is like NormalizeHandle but returns the trimmed input
// when normalization fails. It is intended for logging and display only.
func MustNormalizeHandle(raw string) string {
	h, err := NormalizeHandle(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return h
}

// isHandleRune reports whether r may appear in a handle.
// Letters and digits of any script are allowed, plus "." and "_".
func isHandleRune(r rune) bool {
	switch {
	case r == '.' || r == '_':
		return true
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r > 0x7f:
		return !isSpaceOrPunct(r)
	default:
		return false
	}
}

func isSpaceOrPunct(r rune) bool {
	return strings.ContainsRune(" \t\r\n 　/\\@#:;,!?\"'()[]{}<>", r)
}
