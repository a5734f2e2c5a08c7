package vmdk

import (
	"bytes"
	"encoding/binary"
)

// Marker types, set in the third field of a control marker (type 0 EOS,
// type 1 grain table, type 2 grain directory, type 3 footer).
const (
	MarkerEOS    = 0
	MarkerGT     = 1
	MarkerGD     = 2
	MarkerFooter = 3
)

// PadToSector returns b followed by the minimal number of zero bytes needed
// to reach a SectorSize boundary. A zero-length input is returned unchanged.
func PadToSector(b []byte) []byte {
	rem := len(b) % SectorSize
	if rem == 0 {
		return b
	}
	padded := make([]byte, len(b)+SectorSize-rem)
	copy(padded, b)
	return padded
}

// controlMarker is the fixed 512-byte layout shared by GT, GD, footer, and
// EOS markers: a 16-byte header of {val, size, type} followed by zero
// padding out to a full sector.
type controlMarker struct {
	Val  uint64
	Size uint32
	Type uint32
	Pad  [496]byte
}

// MakeControlMarker packs a 512-byte control marker. For GT/GD/footer
// markers, sizeSectors is the size, in sectors, of the entity that follows;
// for an EOS marker it is zero.
func MakeControlMarker(markerType uint32, sizeSectors uint64) [SectorSize]byte {
	m := controlMarker{Val: sizeSectors, Type: markerType}
	var out [SectorSize]byte
	buf := bytes.NewBuffer(out[:0])
	// controlMarker can never fail to encode: it is a fixed-width struct
	// of exactly SectorSize bytes.
	_ = binary.Write(buf, binary.LittleEndian, &m)
	copy(out[:], buf.Bytes())
	return out
}

// grainMarkerHeader is the 12-byte prefix of a grain marker: the guest LBA
// the grain belongs to, in sectors, and the length of the compressed
// payload that immediately follows.
type grainMarkerHeader struct {
	LBA  uint64
	Size uint32
}

// MakeGrainMarker packs a grain marker: {lba, len(compressed)} followed by
// compressed, padded to a sector boundary.
func MakeGrainMarker(lba uint64, compressed []byte) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(12 + len(compressed))
	_ = binary.Write(buf, binary.LittleEndian, &grainMarkerHeader{LBA: lba, Size: uint32(len(compressed))})
	buf.Write(compressed)
	return PadToSector(buf.Bytes())
}
