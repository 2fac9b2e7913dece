package header

import "errors"

// ErrTruncatedHeader is returned when fewer than Size bytes are available.
var ErrTruncatedHeader = errors.New("memimage: truncated header")

// ErrCorruptHeader is returned when the header's checksum does not
// match its contents.
var ErrCorruptHeader = errors.New("memimage: header checksum mismatch")
