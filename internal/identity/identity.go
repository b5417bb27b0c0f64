// Package identity assigns storage-safe identifiers to incoming uploads.
//
// An identifier has the form <token>[.<ext>] where token is 32 lowercase hex
// characters drawn from crypto/rand and ext is the lowercase extension of the
// declared filename. The identifier is both the primary key of the file record
// and the file name of the raw bytes.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
)

// TokenBytes is the entropy of the random part of an identifier.
const TokenBytes = 16

const maxExtLen = 16

var (
	extPattern = regexp.MustCompile(`^[a-z0-9]{1,16}$`)
	idPattern  = regexp.MustCompile(`^[0-9a-f]{32}(\.[a-z0-9]{1,16})?$`)
)

// New returns a fresh identifier for an upload declared as filename.
func New(filename string) (string, error) {
	return NewFrom(rand.Reader, filename)
}

// NewFrom is New with an explicit randomness source.
func NewFrom(r io.Reader, filename string) (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random token: %w", err)
	}
	token := hex.EncodeToString(buf)
	if ext := Extension(filename); ext != "" {
		return token + "." + ext, nil
	}
	return token, nil
}

// Extension returns the lowercase extension of filename without the dot.
// Extensions that are empty, too long or contain anything but [a-z0-9] are dropped.
func Extension(filename string) string {
	// Client paths may use either separator.
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return ""
	}
	ext := strings.ToLower(base[i+1:])
	if len(ext) > maxExtLen || !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}

// Valid reports whether id has the shape produced by New.
func Valid(id string) bool {
	return idPattern.MatchString(id)
}
