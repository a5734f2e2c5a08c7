package vmdk

import "errors"

// Sentinel error kinds returned by the header parser and transcoder. The
// CLI surfaces these as a single "<kind>: <context>" line, so each is
// wrapped with fmt.Errorf("%w: ...") at the call site rather than carrying
// its own message.
var (
	// ErrBadMagic means the source's magicNumber field was not "KDMV".
	ErrBadMagic = errors.New("BadMagic")

	// ErrCorruptHeader means the EOL sentinel bytes did not match, or a
	// numeric header field was out of range.
	ErrCorruptHeader = errors.New("CorruptHeader")

	// ErrUnsupportedInput means the source's compressAlgorithm was not 0;
	// only uncompressed monolithic-sparse input is accepted.
	ErrUnsupportedInput = errors.New("UnsupportedInput")

	// ErrResizeTooSmall means the requested target capacity is smaller
	// than the source's capacity.
	ErrResizeTooSmall = errors.New("ResizeTooSmall")

	// ErrInternalAlignment means a sector-alignment assertion failed at a
	// write boundary, indicating a bug in the transcoder rather than bad
	// input. The pass aborts immediately and leaves the partial output in
	// place for debugging.
	ErrInternalAlignment = errors.New("InternalAlignment")
)
