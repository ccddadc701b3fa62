//go:build !race

package authkit

// Work factor 10 keeps hashing around the 50-100ms range on current
// hardware, slow enough to blunt offline guessing.
func passwordHashCost() int {
	return 10
}
