package fingerprint

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// DHash computes a 64-bit difference hash of an encoded image. Two frames
// of the same scene hash within a few bits of each other, which is enough
// to skip saving back-to-back screenshots of the same person.
func DHash(imageData []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %w", err)
	}
	return DHashImage(img), nil
}

// DHashImage computes the difference hash of a decoded image: resize to
// 9x8 grayscale, then set one bit per horizontal neighbor comparison.
func DHashImage(img image.Image) uint64 {
	const w, h = 9, 8

	small := image.NewGray(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Over, nil)

	var hash uint64
	bit := 63
	for y := 0; y < h; y++ {
		for x := 0; x < w-1; x++ {
			if small.GrayAt(x, y).Y > small.GrayAt(x+1, y).Y {
				hash |= 1 << uint(bit)
			}
			bit--
		}
	}
	return hash
}

// HammingDistance counts differing bits between two 64-bit hashes.
func HammingDistance(hash1, hash2 uint64) int {
	xor := hash1 ^ hash2
	distance := 0
	for xor != 0 {
		distance++
		xor &= xor - 1 // Clear lowest set bit
	}
	return distance
}

// Similar returns true if two hashes are within the given threshold.
// A threshold of 10 is typically used for near-duplicate detection.
func Similar(hash1, hash2 uint64, threshold int) bool {
	return HammingDistance(hash1, hash2) <= threshold
}
