package vmdk

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mkova/mkova/pkg/vio"
)

// Result carries the facts the OVF generator needs about a completed
// transcode: the final (possibly grown) virtual capacity, and the total
// size in bytes of the emitted VMDK.
type Result struct {
	Capacity   uint64
	GrainCount int
	Bytes      int64
}

// ProgressReporter receives one Increment call per grain the transcoder
// finishes writing, so a caller can drive a progress bar. It is satisfied
// by *elog.pb and the nil-progress stand-in without either package
// importing the other.
type ProgressReporter interface {
	Increment(n int64)
}

// Transcode reads a monolithic-sparse VMDK from src (which must support
// random-access reads of populated grains) and writes a stream-optimized
// VMDK to dst, growing the virtual capacity to at least targetGiB
// gibibytes. It is a single forward pass: dst is never sought, only
// appended to, and src is seeked purely for random grain reads driven by
// the source's own grain directory.
//
// On any error the pass aborts immediately; it is the caller's
// responsibility (per the package's single-pass, non-resumable contract)
// to discard whatever partial bytes reached dst.
func Transcode(ctx context.Context, src io.ReadSeeker, dst io.Writer, targetGiB int, progress ProgressReporter) (*Result, error) {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek source to start: %w", err)
	}

	srcHdr, err := ParseHeader(src)
	if err != nil {
		return nil, err
	}

	sectorsInGT := srcHdr.GrainSize * uint64(srcHdr.NumGTEsPerGT)
	newGTCount := (uint64(targetGiB)*1024*1024*1024/SectorSize + sectorsInGT - 1) / sectorsInGT
	capacity := newGTCount * sectorsInGT

	if capacity < srcHdr.Capacity {
		return nil, fmt.Errorf("%w: requested %d GiB yields %d sectors, source has %d",
			ErrResizeTooSmall, targetGiB, capacity, srcHdr.Capacity)
	}

	tables, err := LoadGrainTables(src, srcHdr)
	if err != nil {
		return nil, err
	}

	// cw gives us a position-queryable sink over dst without requiring dst
	// itself to be seekable: Seek(0, io.SeekCurrent) reports the running
	// byte count (or dst's own position when dst is an io.Seeker); any
	// other seek is rejected by the adapter.
	cw, err := vio.WriteSeeker(dst)
	if err != nil {
		return nil, fmt.Errorf("wrap destination writer: %w", err)
	}
	pos := func() int64 {
		p, _ := cw.Seek(0, io.SeekCurrent)
		return p
	}

	outHdr := streamOptimizedHeader(srcHdr, capacity)
	if _, err := cw.Write(outHdr.Bytes()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	if _, err := cw.Write(RenderDescriptor(capacity)); err != nil {
		return nil, fmt.Errorf("write descriptor: %w", err)
	}

	if padLen := int64(srcHdr.OverHead)*SectorSize - pos(); padLen > 0 {
		if _, err := cw.Write(make([]byte, padLen)); err != nil {
			return nil, fmt.Errorf("pad to overhead: %w", err)
		}
	} else if padLen < 0 {
		return nil, fmt.Errorf("%w: descriptor overruns overhead region", ErrInternalAlignment)
	}

	newGD := make([]uint32, 0, newGTCount)
	grainBuf := make([]byte, srcHdr.GrainSize*SectorSize)
	grainCount := 0
	inPtr := uint64(0)

	for gtIndex, gt := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if allZero(gt) {
			newGD = append(newGD, 0)
			inPtr += sectorsInGT
			continue
		}

		outGT := make(GrainTable, len(gt))
		for i, offset := range gt {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			if offset <= 1 {
				outGT[i] = 0
				inPtr += srcHdr.GrainSize
				continue
			}

			if _, err := src.Seek(int64(offset)*SectorSize, io.SeekStart); err != nil {
				return nil, fmt.Errorf("seek source grain: %w", err)
			}
			if _, err := io.ReadFull(src, grainBuf); err != nil {
				return nil, fmt.Errorf("read source grain: %w", err)
			}

			compressed, err := deflate(grainBuf)
			if err != nil {
				return nil, fmt.Errorf("compress grain: %w", err)
			}
			if len(compressed) > 0xFFFFFFFF-12 {
				return nil, fmt.Errorf("%w: compressed grain exceeds marker size field", ErrInternalAlignment)
			}

			if pos()%SectorSize != 0 {
				return nil, fmt.Errorf("%w: grain marker at non-sector-aligned offset %d", ErrInternalAlignment, pos())
			}
			outGT[i] = uint32(pos() / SectorSize)

			if _, err := cw.Write(MakeGrainMarker(inPtr, compressed)); err != nil {
				return nil, fmt.Errorf("write grain marker: %w", err)
			}

			inPtr += srcHdr.GrainSize
			grainCount++
			if progress != nil {
				progress.Increment(1)
			}
		}

		if pos()%SectorSize != 0 {
			return nil, fmt.Errorf("%w: grain table %d at non-sector-aligned offset %d", ErrInternalAlignment, gtIndex, pos())
		}

		gtBytes := PadToSector(encodeUint32LE(outGT))
		marker := MakeControlMarker(MarkerGT, uint64(len(gtBytes)/SectorSize))
		if _, err := cw.Write(marker[:]); err != nil {
			return nil, fmt.Errorf("write grain table marker: %w", err)
		}

		tablePos := uint32(pos() / SectorSize)
		if _, err := cw.Write(gtBytes); err != nil {
			return nil, fmt.Errorf("write grain table: %w", err)
		}
		newGD = append(newGD, tablePos)
	}

	for uint64(len(newGD)) < newGTCount {
		newGD = append(newGD, 0)
	}

	gdBytes := PadToSector(encodeUint32LE(newGD))
	gdMarker := MakeControlMarker(MarkerGD, uint64(len(gdBytes)/SectorSize))
	if _, err := cw.Write(gdMarker[:]); err != nil {
		return nil, fmt.Errorf("write grain directory marker: %w", err)
	}

	gdOffset := uint64(pos() / SectorSize)
	if _, err := cw.Write(gdBytes); err != nil {
		return nil, fmt.Errorf("write grain directory: %w", err)
	}

	footerMarker := MakeControlMarker(MarkerFooter, 1)
	if _, err := cw.Write(footerMarker[:]); err != nil {
		return nil, fmt.Errorf("write footer marker: %w", err)
	}

	footerHdr := *outHdr
	footerHdr.GDOffset = gdOffset
	if _, err := cw.Write(footerHdr.Bytes()); err != nil {
		return nil, fmt.Errorf("write footer: %w", err)
	}

	eosMarker := MakeControlMarker(MarkerEOS, 0)
	if _, err := cw.Write(eosMarker[:]); err != nil {
		return nil, fmt.Errorf("write eos marker: %w", err)
	}

	return &Result{Capacity: capacity, GrainCount: grainCount, Bytes: pos()}, nil
}

func allZero(gt GrainTable) bool {
	for _, x := range gt {
		if x != 0 {
			return false
		}
	}
	return true
}

func encodeUint32LE(vals []uint32) []byte {
	buf := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

// deflate compresses a grain with zlib at the default compression level.
// RFC 1950 zlib framing (not raw DEFLATE or gzip) is what VMware's own
// stream-optimized writer produces and what vmware-vdiskmanager expects
// on read.
func deflate(grain []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := zlib.NewWriter(buf)
	if _, err := w.Write(grain); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
