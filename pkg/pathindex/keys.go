// ABOUTME: Order-preserving encoding for reverse-reference keys
// ABOUTME: Escaped target path, 0x00 terminator, big-endian element handle

package pathindex

import (
	"encoding/binary"
	"fmt"
)

// encodeRefKey builds (target, handle) so that all keys of one target are
// contiguous and ordered by handle
func encodeRefKey(target string, h Handle) []byte {
	out := make([]byte, 0, len(target)+9)
	out = append(out, escapeString([]byte(target))...)
	out = append(out, 0)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(h))
	return append(out, buf[:]...)
}

// refKeyPrefix is the common prefix of every key of target
func refKeyPrefix(target string) []byte {
	out := escapeString([]byte(target))
	return append(out[:len(out):len(out)], 0)
}

// decodeRefKey reverses encodeRefKey
func decodeRefKey(key []byte) (string, Handle, error) {
	if len(key) < 9 {
		return "", 0, fmt.Errorf("pathindex: short reference key (%d bytes)", len(key))
	}
	end := len(key) - 9
	if key[end] != 0 {
		return "", 0, fmt.Errorf("pathindex: missing terminator in reference key")
	}
	target := unescapeString(key[:end])
	return string(target), Handle(binary.BigEndian.Uint64(key[end+1:])), nil
}

// escapeString escapes 0x00, 0xFE and 0xFF for embedding in keys
func escapeString(s []byte) []byte {
	escapes := 0
	for _, b := range s {
		if b == 0 || b >= 0xFE {
			escapes++
		}
	}

	if escapes == 0 {
		return s
	}

	out := make([]byte, 0, len(s)+escapes)
	for _, b := range s {
		if b == 0 || b >= 0xFE {
			out = append(out, 0xFE, b)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// unescapeString reverses escapeString
func unescapeString(s []byte) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0xFE && i+1 < len(s) {
			out = append(out, s[i+1])
			i++
		} else {
			out = append(out, s[i])
		}
	}
	return out
}
