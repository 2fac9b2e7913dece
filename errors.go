package memimage

import (
	"errors"

	"github.com/polaris-sw/memimage/internal/chunk"
	"github.com/polaris-sw/memimage/internal/imageio"
)

// Sentinel errors, one per failure condition. Match with errors.Is;
// Save/Load may wrap them with call-site context. ErrFailedToOpenFile
// and ErrFailedToReadStream are not returned by this package's own
// functions: a failed read surfaces as the underlying I/O error,
// wrapped with context.
var (
	ErrFailedToOpenFile   = errors.New("memimage: failed to open file")
	ErrFailedToReadStream = errors.New("memimage: failed to read stream")
	ErrBufferTooSmall     = imageio.ErrBufferTooSmall
	ErrInvalidAlignment   = imageio.ErrInvalidAlignment
	ErrObjectOfWrongType  = imageio.ErrObjectOfWrongType
	ErrSessionMismatch    = imageio.ErrSessionMismatch
	ErrBadPointer         = chunk.ErrBadPointer
	ErrUnknownType        = imageio.ErrUnknownType
)
