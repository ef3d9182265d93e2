package helpers

import (
	"expvar"
	"io"
)

// WriteAll loops until b is written completely or w returns error.
func WriteAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n == len(b) {
			return nil
		}
		b = b[n:]
	}
	return nil
}

// StatReader adds every successfully read byte count plus F to V.
type StatReader struct {
	R io.Reader
	V *expvar.Int
	F int64
}

var _ io.Reader = &StatReader{}

func NewStatReader(r io.Reader, v *expvar.Int, fix int64) io.Reader {
	return &StatReader{R: r, F: fix, V: v}
}

func (sr *StatReader) Read(p []byte) (n int, err error) {
	n, err = sr.R.Read(p)
	if n > 0 {
		sr.V.Add(int64(n) + sr.F)
	}
	return
}

// StatWriter adds every written byte count plus F to V.
type StatWriter struct {
	W io.Writer
	V *expvar.Int
	F int64
}

var _ io.Writer = &StatWriter{}

func NewStatWriter(w io.Writer, v *expvar.Int, fix int64) io.Writer {
	return &StatWriter{W: w, F: fix, V: v}
}

func (sw *StatWriter) Write(p []byte) (n int, err error) {
	n, err = sw.W.Write(p)
	if n > 0 {
		sw.V.Add(int64(n) + sw.F)
	}
	return
}
