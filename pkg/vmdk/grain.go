package vmdk

import (
	"encoding/binary"
	"fmt"
	"io"
)

// GrainTable is one grain table: numGTEsPerGT sector offsets, in guest-LBA
// order within the table.
type GrainTable []uint32

// totalGTs returns ceil(totalSectors / (grainSize*numGTEsPerGT)), the
// number of grain tables (and grain directory entries) needed to cover
// totalSectors sectors of capacity.
func totalGTs(totalSectors, grainSize uint64, numGTEsPerGT uint32) uint64 {
	sectorsInGT := grainSize * uint64(numGTEsPerGT)
	return (totalSectors + sectorsInGT - 1) / sectorsInGT
}

// LoadGrainTables follows hdr's grain directory to load every grain table
// referenced by it into memory, in grain-directory order. A zero GDE (an
// absent grain table) is materialized as an all-zero GrainTable rather
// than omitted, so callers can iterate tables and entries positionally.
func LoadGrainTables(r io.ReadSeeker, hdr *Header) ([]GrainTable, error) {
	n := totalGTs(hdr.Capacity, hdr.GrainSize, hdr.NumGTEsPerGT)

	if _, err := r.Seek(int64(hdr.GDOffset)*SectorSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek grain directory: %w", err)
	}

	gdes := make([]uint32, n)
	if err := binary.Read(r, binary.LittleEndian, gdes); err != nil {
		return nil, fmt.Errorf("read grain directory: %w", err)
	}

	tables := make([]GrainTable, len(gdes))
	for i, gde := range gdes {
		if gde == 0 {
			tables[i] = make(GrainTable, hdr.NumGTEsPerGT)
			continue
		}

		if _, err := r.Seek(int64(gde)*SectorSize, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek grain table %d: %w", i, err)
		}

		gt := make(GrainTable, hdr.NumGTEsPerGT)
		if err := binary.Read(r, binary.LittleEndian, gt); err != nil {
			return nil, fmt.Errorf("read grain table %d: %w", i, err)
		}
		tables[i] = gt
	}

	return tables, nil
}
