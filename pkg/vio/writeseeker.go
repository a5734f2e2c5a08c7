package vio

import (
	"errors"
	"io"
)

// writeSeeker adapts a plain io.Writer so its running write position can
// always be queried with Seek(0, io.SeekCurrent), whether or not the
// underlying writer supports seeking itself. mkova's transcoder is the only
// caller, and it only ever asks for the current position to check sector
// alignment — it never seeks backward, forward, or relative to the end — so
// that's the only case this adapter implements.
type writeSeeker struct {
	w io.Writer
	s io.Seeker
	k int64
}

func (ws *writeSeeker) Write(p []byte) (n int, err error) {
	n, err = ws.w.Write(p)
	if ws.s == nil {
		ws.k += int64(n)
	}
	return
}

func (ws *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	if offset != 0 || whence != io.SeekCurrent {
		return 0, errors.New("vio: writeSeeker only supports querying the current position")
	}
	if ws.s != nil {
		return ws.s.Seek(0, io.SeekCurrent)
	}
	return ws.k, nil
}

// WriteSeeker wraps w so callers can read back how many bytes have been
// written. If w already implements io.Seeker, its own position is used
// (queried once up front, in case w isn't positioned at its start);
// otherwise the position is tracked from zero as writes happen.
func WriteSeeker(w io.Writer) (io.WriteSeeker, error) {
	ws := new(writeSeeker)
	ws.w = w

	if s, ok := w.(io.Seeker); ok {
		ws.s = s
		k, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, err
		}
		ws.k = k
	}

	return ws, nil
}
