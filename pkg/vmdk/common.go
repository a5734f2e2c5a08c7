// Package vmdk implements the sparse-to-stream-optimized VMDK transcoder:
// parsing a monolithic-sparse extent header and its grain directory/table
// hierarchy, and re-emitting a VMware-compatible stream-optimized VMDK with
// DEFLATE-compressed grains.
package vmdk

const (
	// Magic is the sparse-extent magic number, the ASCII bytes "KDMV" read
	// as a little-endian uint32.
	Magic = 0x564d444b

	// SectorSize is the fixed VMDK sector width in bytes. Every offset and
	// length field in a VMDK header, grain table, or marker is sector-counted.
	SectorSize = 0x200

	// GrainSize is the default grain size in bytes: 128 sectors, 64 KiB.
	GrainSize = 0x10000

	// SectorsPerGrain is GrainSize expressed in sectors.
	SectorsPerGrain = GrainSize / SectorSize

	// TableMaxRows is the default number of grain table entries per grain
	// table (numGTEsPerGT).
	TableMaxRows = 512

	// TableRowSize is the width in bytes of a single grain table entry.
	TableRowSize = 4

	// TableSectors is the on-disk size, in sectors, of one full grain table.
	TableSectors = TableMaxRows * TableRowSize / SectorSize

	// StreamVersion is the sparse-header version field for stream-optimized
	// output.
	StreamVersion = 3

	// StreamFlags is the sparse-header flags field for stream-optimized
	// output: new-line detection (bit 0), compressed (bit 16), markers (bit 17).
	StreamFlags = 0x30001

	// DeflateAlgorithm is the sparse-header compressAlgorithm value meaning
	// DEFLATE.
	DeflateAlgorithm = 1
)

// Header is the 512-byte sparse extent header that begins every monolithic
// and stream-optimized VMDK. Field order and widths mirror the on-disk
// layout exactly; encoding/binary packs it without inserting any padding
// between fields (several, such as Capacity at offset 12, are not naturally
// aligned), and the struct ends in an explicit padding array.
type Header struct {
	MagicNumber        uint32 // 0
	Version            uint32 // 4
	Flags              uint32 // 8
	Capacity           uint64 // 12
	GrainSize          uint64 // 20
	DescriptorOffset   uint64 // 28
	DescriptorSize     uint64 // 36
	NumGTEsPerGT       uint32 // 44
	RGDOffset          uint64 // 48
	GDOffset           uint64 // 56
	OverHead           uint64 // 64
	UncleanShutdown    byte   // 72
	SingleEndLineChar  byte   // 73
	NonEndLineChar     byte   // 74
	DoubleEndLineChar1 byte   // 75
	DoubleEndLineChar2 byte   // 76
	CompressAlgorithm  uint16 // 77
	Pad                [433]byte
}

// eolSentinel is the four-byte end-of-line marker used to detect an FTP
// ASCII-mode transfer that corrupted the binary header.
var eolSentinel = [4]byte{'\n', ' ', '\r', '\n'}
