// Package fingerprint derives deterministic keys from face detections:
// a quantized-embedding key for frame-local deduplication and a difference
// hash for near-duplicate screenshot suppression.
package fingerprint

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
)

// Key returns a frame-local deduplication key for an embedding. Values are
// quantized to 5 decimal places so repeated detections of the same face map
// to the same key despite floating-point jitter, then hashed. Bounding
// boxes are deliberately not part of the key: they shift frame-to-frame for
// a stationary face, the embedding does not.
func Key(embedding []float32) string {
	h := fnv.New64a()
	var buf [8]byte
	for _, v := range embedding {
		q := int64(math.Round(float64(v) * 1e5))
		binary.LittleEndian.PutUint64(buf[:], uint64(q))
		h.Write(buf[:])
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
