package media

import (
	"fmt"
	"image"
	"math/bits"

	"github.com/disintegration/imaging"
)

// DifferenceHash computes a 64-bit dHash: the image is reduced to 9x8
// grayscale and each bit records whether a pixel is brighter than its
// right neighbour.
func DifferenceHash(img image.Image) uint64 {
	small := imaging.Grayscale(imaging.Resize(img, 9, 8, imaging.Box))

	var hash uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			left := small.NRGBAAt(x, y).R
			right := small.NRGBAAt(x+1, y).R
			hash <<= 1
			if left > right {
				hash |= 1
			}
		}
	}
	return hash
}

// FormatHash renders a hash as 16 lowercase hex digits.
func FormatHash(hash uint64) string {
	return fmt.Sprintf("%016x", hash)
}

// hammingDistance counts the differing bits of two hashes.
func hammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
