// Package lattice provides the checkerboard used to alternate the sign of
// dithered colour corrections.
package lattice

// BlockSize is the edge length, in pixels, of one lattice cell.
const BlockSize = 6

// IsEven reports whether pixel (i, j) lies on an even cell of the
// BlockSize checkerboard. It is defined for every integer pair.
func IsEven(i, j int) bool {
	return (floorDiv(i, BlockSize)+floorDiv(j, BlockSize))%2 == 0
}

// Sign returns +1 on even cells and -1 on odd ones.
func Sign(i, j int) float64 {
	if IsEven(i, j) {
		return 1
	}
	return -1
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
