// Package media is the content store for uploaded recordings: digest
// computation, derived object names, and durable writes under a single
// directory tree.
package media

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// allowedExtensions is the upload allow-list. Anything else is rejected
// before any bytes are stored.
var allowedExtensions = map[string]struct{}{
	"webm": {},
	"mp4":  {},
	"mov":  {},
}

// Digests holds both integrity digests of an asset, hex encoded.
type Digests struct {
	MD5    string
	SHA256 string
}

// ComputeDigests hashes the exact bytes that will be written to disk.
func ComputeDigests(data []byte) Digests {
	md5Sum := md5.Sum(data)
	shaSum := sha256.Sum256(data)
	return Digests{
		MD5:    hex.EncodeToString(md5Sum[:]),
		SHA256: hex.EncodeToString(shaSum[:]),
	}
}

// Extension returns the lowercased filename extension without the dot.
func Extension(filename string) string {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	return strings.ToLower(ext)
}

// Allowed reports whether the filename carries an allow-listed extension.
func Allowed(filename string) bool {
	_, ok := allowedExtensions[Extension(filename)]
	return ok
}

// ObjectName derives the storage filename: {session}_{md5 prefix}.{ext}.
// The session id is sanitized so it cannot escape the store directory.
func ObjectName(sessionID, md5Hex, originalFilename string) string {
	prefix := md5Hex
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("%s_%s.%s", sanitize(sessionID), prefix, Extension(originalFilename))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// Store writes assets under a base directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save writes the asset and returns the absolute-ish path recorded in the
// media row. The write is durable before Save returns.
func (s *Store) Save(name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create asset: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write asset: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("sync asset: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close asset: %w", err)
	}
	return path, nil
}
