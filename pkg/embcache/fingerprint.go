package embcache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// headBytes is how much of the file content contributes to the fingerprint.
const headBytes = 1 << 20 // 1 MiB

// Fingerprint derives a deterministic cache key for an audio file from its
// size, modification time, and the hash of its first 1 MiB of content.
//
// If the file cannot be read or stat'ed, the key degrades to a hash of the
// path string alone. That still yields a deterministic key, so callers never
// need to treat fingerprinting as fallible.
func Fingerprint(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return pathFingerprint(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return pathFingerprint(path)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.CopyN(h, f, headBytes); err != nil && err != io.EOF {
		return pathFingerprint(path)
	}
	contentHash := hex.EncodeToString(h.Sum(nil))

	combined := fmt.Sprintf("%d_%d_%s", info.Size(), info.ModTime().UnixNano(), contentHash)
	sum := md5.Sum([]byte(combined))
	return hex.EncodeToString(sum[:])
}

func pathFingerprint(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}
