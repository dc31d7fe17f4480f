package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// hashWriter hashes everything written through it.
type hashWriter struct {
	w io.Writer
	h hash.Hash
}

func newHashWriter(w io.Writer) *hashWriter {
	return &hashWriter{w: w, h: sha256.New()}
}

func (hw *hashWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.h.Write(p[:n])
	return n, err
}

func (hw *hashWriter) Sum() string {
	return hex.EncodeToString(hw.h.Sum(nil))
}

// hashBytes is the content hash stored as the last import hash.
func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
