package payload

import (
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

// ParseDisplayText decodes a front-panel display reply: pairs of hex digits,
// each pair one byte of UTF-8 text. A malformed byte count or stray
// non-hex character is a soft failure; callers leave the attribute unset.
func ParseDisplayText(param string) (string, error) {
	if param == "" {
		return "", nil
	}
	if len(param)%2 != 0 {
		return "", fmt.Errorf("display text has odd digit count %d", len(param))
	}

	raw, err := hex.DecodeString(param)
	if err != nil {
		return "", fmt.Errorf("display text is not hex encoded: %w", err)
	}

	if !utf8.Valid(raw) {
		// Some firmwares pad with stray bytes; degrade to the valid prefix.
		raw = raw[:validUTF8Prefix(raw)]
	}
	return string(raw), nil
}

// validUTF8Prefix returns the length of the longest valid UTF-8 prefix of b.
func validUTF8Prefix(b []byte) int {
	n := 0
	for n < len(b) {
		r, size := utf8.DecodeRune(b[n:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		n += size
	}
	return n
}
