package pdx

import (
	"golang.org/x/text/encoding/charmap"
)

// Charset is the character encoding of a game's text dialect. It is
// chosen by the caller, never inferred from the data.
type Charset uint8

const (
	UTF8 Charset = iota
	Latin1
)

func (c Charset) String() string {
	if c == Latin1 {
		return "iso-8859-1"
	}
	return "utf-8"
}

// Decode converts raw bytes in this charset to a Go string.
func (c Charset) Decode(b []byte) string {
	if c != Latin1 {
		return string(b)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// Encode converts s to raw bytes in this charset. Runes outside
// Latin-1 are replaced by '?'.
func (c Charset) Encode(s string) []byte {
	if c != Latin1 {
		return []byte(s)
	}
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := charmap.ISO8859_1.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return out
}
