package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// SHA256Hex is the cache key for structure identifiers.
func SHA256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// ShortHash is a stable 16-char prefix of SHA256Hex, used for webhook paths.
func ShortHash(s string) string {
	return SHA256Hex(s)[:16]
}

// Truncate cuts s to at most n bytes on a rune boundary and appends "…" when cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

// FirstLine returns the trimmed first non-empty line of s.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}
