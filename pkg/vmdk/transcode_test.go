package vmdk

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"io/ioutil"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fixture is a tiny synthetic monolithic-sparse VMDK: two grain tables of
// four entries each, a grain of two sectors, one table fully populated and
// the other entirely absent (a zero grain directory entry), enough to
// exercise both branches of the transcoder's grain-table loop without
// building anything close to a real multi-gigabyte disk.
type fixture struct {
	bytes     []byte
	srcHdr    Header
	grainData [][]byte // one entry per populated grain, in GTE order
}

func buildFixture(t *testing.T) *fixture {
	t.Helper()

	const (
		grainSectors = 2
		gtEntries    = 4
	)

	grains := make([][]byte, gtEntries)
	for i := range grains {
		g := bytes.Repeat([]byte{byte(0xA0 + i)}, grainSectors*SectorSize)
		grains[i] = g
	}

	buf := make([]byte, 0, 16*SectorSize)

	// Reserve sectors 0 (header) and 1 (descriptor placeholder); grain
	// data starts at sector 2.
	buf = append(buf, make([]byte, 2*SectorSize)...)
	grainOffsets := make([]uint32, gtEntries)
	for i, g := range grains {
		grainOffsets[i] = uint32(len(buf) / SectorSize)
		buf = append(buf, g...)
	}

	gtSector := uint32(len(buf) / SectorSize)
	gtBytes := encodeUint32LE(grainOffsets)
	buf = append(buf, PadToSector(gtBytes)...)

	gdSector := uint32(len(buf) / SectorSize)
	gdBytes := encodeUint32LE([]uint32{gtSector, 0})
	buf = append(buf, PadToSector(gdBytes)...)

	hdr := Header{
		MagicNumber:        Magic,
		Version:            1,
		Flags:              3,
		Capacity:           uint64(grainSectors * gtEntries * 2), // two tables
		GrainSize:          grainSectors,
		DescriptorOffset:   1,
		DescriptorSize:     1,
		NumGTEsPerGT:       gtEntries,
		RGDOffset:          0,
		GDOffset:           uint64(gdSector),
		OverHead:           4,
		UncleanShutdown:    0,
		SingleEndLineChar:  eolSentinel[0],
		NonEndLineChar:     eolSentinel[1],
		DoubleEndLineChar1: eolSentinel[2],
		DoubleEndLineChar2: eolSentinel[3],
		CompressAlgorithm:  0,
	}
	copy(buf[0:SectorSize], hdr.Bytes())

	return &fixture{bytes: buf, srcHdr: hdr, grainData: grains}
}

type countingProgress struct {
	n int64
}

func (p *countingProgress) Increment(n int64) { p.n += n }

func TestTranscodeEndToEnd(t *testing.T) {
	fx := buildFixture(t)
	src := bytes.NewReader(fx.bytes)
	var dst bytes.Buffer

	progress := &countingProgress{}
	result, err := Transcode(context.Background(), src, &dst, 1, progress)
	assert.NoError(t, err)
	assert.EqualValues(t, 4, progress.n)
	assert.EqualValues(t, 4, result.GrainCount)

	out := dst.Bytes()
	assert.GreaterOrEqual(t, len(out), SectorSize)

	leadHdr, err := ParseHeader(bytes.NewReader(out))
	assert.NoError(t, err)
	assert.EqualValues(t, Magic, leadHdr.MagicNumber)
	assert.EqualValues(t, DeflateAlgorithm, leadHdr.CompressAlgorithm)

	minCapacity := uint64(1) * 1024 * 1024 * 1024 / SectorSize
	assert.GreaterOrEqual(t, result.Capacity, minCapacity)
	assert.GreaterOrEqual(t, result.Capacity, fx.srcHdr.Capacity)

	// The footer is the last full sector of the output before the EOS
	// marker; walk backward from the end to find it.
	eosStart := len(out) - SectorSize
	footerStart := eosStart - SectorSize
	footerMarkerStart := footerStart - SectorSize

	footerMarkerType := binary.LittleEndian.Uint32(out[footerMarkerStart+12 : footerMarkerStart+16])
	assert.EqualValues(t, MarkerFooter, footerMarkerType)

	eosMarkerType := binary.LittleEndian.Uint32(out[eosStart+12 : eosStart+16])
	assert.EqualValues(t, MarkerEOS, eosMarkerType)

	footerHdr, err := ParseHeader(bytes.NewReader(out[footerStart:]))
	assert.NoError(t, err)

	leadCopy := *leadHdr
	footerCopy := *footerHdr
	leadCopy.GDOffset = 0
	footerCopy.GDOffset = 0
	assert.Equal(t, leadCopy, footerCopy)

	gdOffset := footerHdr.GDOffset
	sectorsInGT := fx.srcHdr.GrainSize * uint64(fx.srcHdr.NumGTEsPerGT)
	wantGDEs := (result.Capacity + sectorsInGT - 1) / sectorsInGT
	gdMarkerStart := (int(gdOffset) - 1) * SectorSize
	assert.Equal(t, uint32(MarkerGD), binary.LittleEndian.Uint32(out[gdMarkerStart+12:gdMarkerStart+16]))

	gdStart := int(gdOffset) * SectorSize
	newGD := make([]uint32, wantGDEs)
	assert.NoError(t, binary.Read(bytes.NewReader(out[gdStart:]), binary.LittleEndian, newGD))

	// The first emitted grain table corresponds to the fixture's populated
	// table; decompress each of its grains and compare against the
	// source data to confirm the pass is lossless.
	firstGTOffset := newGD[0]
	assert.NotZero(t, firstGTOffset)

	gt := make([]uint32, fx.srcHdr.NumGTEsPerGT)
	assert.NoError(t, binary.Read(bytes.NewReader(out[int(firstGTOffset)*SectorSize:]), binary.LittleEndian, gt))

	for i, gte := range gt {
		assert.NotZero(t, gte)
		markerStart := int(gte) * SectorSize
		size := binary.LittleEndian.Uint32(out[markerStart+8 : markerStart+12])
		compressed := out[markerStart+12 : markerStart+12+int(size)]

		zr, err := zlib.NewReader(bytes.NewReader(compressed))
		assert.NoError(t, err)
		plain, err := ioutil.ReadAll(zr)
		assert.NoError(t, err)
		assert.Equal(t, fx.grainData[i], plain)
	}

	// The second grain directory entry stays zero: the fixture's second
	// table was entirely absent from the source.
	assert.Zero(t, newGD[1])
}

func TestTranscodeRejectsResizeTooSmall(t *testing.T) {
	fx := buildFixture(t)
	src := bytes.NewReader(fx.bytes)
	var dst bytes.Buffer

	_, err := Transcode(context.Background(), src, &dst, 0, nil)
	assert.True(t, errors.Is(err, ErrResizeTooSmall))
}

func TestTranscodeRejectsBadMagic(t *testing.T) {
	fx := buildFixture(t)
	corrupt := append([]byte(nil), fx.bytes...)
	binary.LittleEndian.PutUint32(corrupt[0:4], 0)

	_, err := Transcode(context.Background(), bytes.NewReader(corrupt), ioutil.Discard, 1, nil)
	assert.True(t, errors.Is(err, ErrBadMagic))
}

func TestTranscodeCancellation(t *testing.T) {
	fx := buildFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Transcode(ctx, bytes.NewReader(fx.bytes), ioutil.Discard, 1, nil)
	assert.Error(t, err)
}
