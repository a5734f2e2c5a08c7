package vmdk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validHeader() *Header {
	return &Header{
		MagicNumber:        Magic,
		Version:            1,
		Flags:              3,
		Capacity:           2048,
		GrainSize:          SectorsPerGrain,
		DescriptorOffset:   1,
		DescriptorSize:     20,
		NumGTEsPerGT:       TableMaxRows,
		RGDOffset:          0,
		GDOffset:           21,
		OverHead:           64,
		UncleanShutdown:    0,
		SingleEndLineChar:  eolSentinel[0],
		NonEndLineChar:     eolSentinel[1],
		DoubleEndLineChar1: eolSentinel[2],
		DoubleEndLineChar2: eolSentinel[3],
		CompressAlgorithm:  0,
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	hdr := validHeader()
	encoded := hdr.Bytes()
	assert.Len(t, encoded, SectorSize)

	decoded, err := ParseHeader(bytes.NewReader(encoded))
	assert.NoError(t, err)
	assert.Equal(t, hdr, decoded)
}

func TestParseHeaderBadMagic(t *testing.T) {
	hdr := validHeader()
	hdr.MagicNumber = 0xdeadbeef

	_, err := ParseHeader(bytes.NewReader(hdr.Bytes()))
	assert.True(t, errors.Is(err, ErrBadMagic))
}

func TestParseHeaderCorruptEOL(t *testing.T) {
	hdr := validHeader()
	hdr.SingleEndLineChar = 'x'

	_, err := ParseHeader(bytes.NewReader(hdr.Bytes()))
	assert.True(t, errors.Is(err, ErrCorruptHeader))
}

func TestParseHeaderUnsupportedCompression(t *testing.T) {
	hdr := validHeader()
	hdr.CompressAlgorithm = 1

	_, err := ParseHeader(bytes.NewReader(hdr.Bytes()))
	assert.True(t, errors.Is(err, ErrUnsupportedInput))
}

func TestParseHeaderShortRead(t *testing.T) {
	_, err := ParseHeader(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)
}
