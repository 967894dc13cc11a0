// File: protocol/util.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// URL codec, path validation and file-system helpers for the HTTP layer.

package protocol

import (
	"fmt"
	"os"
	"strings"
)

// Split cuts src on sep, skipping empty fields.
func Split(src, sep string) []string {
	var out []string
	for _, part := range strings.Split(src, sep) {
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '-' || c == '_' || c == '~':
		return true
	}
	return false
}

// URLEncode percent-encodes every byte outside the RFC 3986 unreserved
// set. With spaceToPlus, a space encodes as '+', the form-encoding rule
// for query strings.
func URLEncode(s string, spaceToPlus bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		if c == ' ' && spaceToPlus {
			b.WriteByte('+')
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func hexToInt(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// URLDecode reverses URLEncode. With plusToSpace, '+' decodes to a
// space; that holds for query-string values only, never for paths.
// Malformed escapes pass through verbatim.
func URLDecode(s string, plusToSpace bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '+' && plusToSpace {
			b.WriteByte(' ')
			continue
		}
		if c == '%' && i+2 < len(s) {
			hi, lo := hexToInt(s[i+1]), hexToInt(s[i+2])
			if hi >= 0 && lo >= 0 {
				b.WriteByte(byte(hi<<4 | lo))
				i += 2
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ValidPath rejects request paths whose running directory depth drops
// below the virtual root: every plain segment descends one level, every
// ".." ascends one. "/../etc/passwd" fails on the first segment.
func ValidPath(path string) bool {
	level := 0
	for _, dir := range Split(path, "/") {
		if dir == ".." {
			level--
			if level < 0 {
				return false
			}
			continue
		}
		level++
	}
	return true
}

// ReadFile loads a file's full contents.
func ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// WriteFile replaces a file's contents.
func WriteFile(name string, data []byte) error {
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// IsRegular reports whether name exists and is a regular file.
func IsRegular(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.Mode().IsRegular()
}

// IsDirectory reports whether name exists and is a directory.
func IsDirectory(name string) bool {
	info, err := os.Stat(name)
	return err == nil && info.IsDir()
}
