// Package checksum digests note snapshots so unchanged edits can be
// detected and skipped without a write.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
)

// Snapshot returns the hex-encoded SHA-256 digest of a note's persisted
// fields. Fields are NUL-separated so boundary shifts change the digest.
func Snapshot(title, body string, tags []string) string {
	h := sha256.New()
	_, _ = io.WriteString(h, title)
	h.Write([]byte{0})
	_, _ = io.WriteString(h, body)
	h.Write([]byte{0})
	_, _ = io.WriteString(h, strings.Join(tags, ","))
	return hex.EncodeToString(h.Sum(nil))
}
