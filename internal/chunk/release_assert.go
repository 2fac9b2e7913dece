//go:build !memimage_debug

package chunk

// AssertValid is a no-op in release builds; see debug_assert.go.
func AssertValid(g *Graph) {}
