// Package walker implements the reflection-driven traversal skeleton:
// given (memory, type descriptor, callbacks), dispatch into the right
// callback based on the descriptor's kind, recursing into fields of
// structures, elements of arrays, and the pointee of pointers. The
// walker performs no I/O and holds no state beyond a small context
// stack used for diagnostics.
package walker

// Context carries diagnostic information through a walk: current depth,
// the member name being visited, and a link to the parent frame.
type Context struct {
	Depth      int
	MemberName string
	Parent     *Context
}

// Child returns a new Context one level deeper, naming member.
func (c Context) Child(member string) Context {
	return Context{Depth: c.Depth + 1, MemberName: member, Parent: &c}
}

// Path renders the full dotted member path from root to this frame, for
// error messages and debug logging.
func (c Context) Path() string {
	if c.Parent == nil {
		return c.MemberName
	}
	parent := c.Parent.Path()
	if parent == "" {
		return c.MemberName
	}
	if c.MemberName == "" {
		return parent
	}
	return parent + "." + c.MemberName
}
