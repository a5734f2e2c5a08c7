package vmdk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ParseHeader reads the first 512 bytes of r and decodes a SparseHeader,
// validating the fields the transcoder depends on: the magic number, the
// EOL corruption sentinels, and that the source is uncompressed
// monolithic-sparse (compressAlgorithm == 0).
func ParseHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, SectorSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read sparse header: %w", err)
	}

	hdr := new(Header)
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, hdr); err != nil {
		return nil, fmt.Errorf("decode sparse header: %w", err)
	}

	if hdr.MagicNumber != Magic {
		return nil, fmt.Errorf("%w: magic number %#x", ErrBadMagic, hdr.MagicNumber)
	}

	if [4]byte{hdr.SingleEndLineChar, hdr.NonEndLineChar, hdr.DoubleEndLineChar1, hdr.DoubleEndLineChar2} != eolSentinel {
		return nil, fmt.Errorf("%w: end-of-line sentinel mismatch", ErrCorruptHeader)
	}

	if hdr.CompressAlgorithm != 0 {
		return nil, fmt.Errorf("%w: compressAlgorithm %d", ErrUnsupportedInput, hdr.CompressAlgorithm)
	}

	return hdr, nil
}

// Bytes encodes the header back into its 512-byte on-disk representation.
func (h *Header) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(SectorSize)
	// A Header is a fixed-width struct of exactly SectorSize bytes; this
	// can never fail.
	_ = binary.Write(buf, binary.LittleEndian, h)
	return buf.Bytes()
}

// streamOptimizedHeader builds the output SparseHeader for a stream-
// optimized VMDK of the given capacity, copying the source's grain
// geometry (grainSize, numGTEsPerGT) and overhead. gdOffset is left as a
// placeholder (0) to be filled in once the grain directory's final
// position is known; the footer header is a byte-identical copy with
// gdOffset set.
func streamOptimizedHeader(src *Header, capacity uint64) *Header {
	return &Header{
		MagicNumber:        Magic,
		Version:            StreamVersion,
		Flags:              StreamFlags,
		Capacity:           capacity,
		GrainSize:          src.GrainSize,
		DescriptorOffset:   src.DescriptorOffset,
		DescriptorSize:     src.DescriptorSize,
		NumGTEsPerGT:       src.NumGTEsPerGT,
		RGDOffset:          0,
		GDOffset:           0,
		OverHead:           src.OverHead,
		UncleanShutdown:    src.UncleanShutdown,
		SingleEndLineChar:  eolSentinel[0],
		NonEndLineChar:     eolSentinel[1],
		DoubleEndLineChar1: eolSentinel[2],
		DoubleEndLineChar2: eolSentinel[3],
		CompressAlgorithm:  DeflateAlgorithm,
	}
}
