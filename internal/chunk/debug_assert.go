//go:build memimage_debug

package chunk

// AssertValid panics if g fails Validate. Build with
// -tags memimage_debug to enable; the release build (release_assert.go)
// is a no-op, so a failed invariant only ever surfaces through the
// ordinary Save/Load error return.
func AssertValid(g *Graph) {
	if err := g.Validate(); err != nil {
		panic(err)
	}
}
