// Package fingerprint computes the session fingerprint embedded in
// every image header: a hash of everything about the producing process
// that a load must match exactly before it can trust a raw byte
// reinterpretation — operating system, architecture, pointer width,
// byte order, and this module's own layout revision. Both load paths
// refuse to proceed on a mismatch.
package fingerprint

import (
	"runtime"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// layoutSalt changes whenever this package's own notion of "layout" is
// revised, so stale caches of this binary's own images don't collide
// with a future, incompatible revision.
const layoutSalt = "memimage-v1"

// Fingerprint identifies the (platform, pointer width, byte order,
// struct-packing convention) tuple an in-place image was produced under.
type Fingerprint uint64

// Current computes the fingerprint of the running process.
func Current() Fingerprint {
	var probe uint16 = 0x0102
	littleEndian := *(*byte)(unsafe.Pointer(&probe)) == 0x02

	h := xxhash.New()
	_, _ = h.WriteString(runtime.GOOS)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(runtime.GOARCH)
	_, _ = h.WriteString("|")
	writeUint(h, uint64(unsafe.Sizeof(uintptr(0))))
	_, _ = h.WriteString("|")
	if littleEndian {
		_, _ = h.WriteString("LE")
	} else {
		_, _ = h.WriteString("BE")
	}
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(layoutSalt)
	return Fingerprint(h.Sum64())
}

// Matches reports whether want describes the same session shape Current
// would compute right now. The load paths in internal/imageio compare
// against Current directly rather than calling Matches.
func Matches(want Fingerprint) bool {
	return want == Current()
}

func writeUint(h *xxhash.Digest, v uint64) {
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(v)
		v >>= 8
	}
	_, _ = h.Write(buf[:])
}
