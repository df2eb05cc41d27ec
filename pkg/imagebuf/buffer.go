// Package imagebuf validates encoded image payloads and turns them into
// request-scoped pixel buffers.
//
// A Buffer is owned by the call that decoded it. Release it with Close on
// every exit path:
//
//	buf, err := validator.Decode(payload)
//	if err != nil {
//	    return err
//	}
//	defer buf.Close()
package imagebuf

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Buffer is an immutable in-memory pixel grid backed by an OpenCV matrix.
type Buffer struct {
	mat    gocv.Mat
	closed bool
}

// FromMat takes ownership of m. An empty matrix is rejected with ErrInvalidImage
// and closed.
func FromMat(m gocv.Mat) (*Buffer, error) {
	if m.Empty() {
		m.Close()
		return nil, invalidImage("empty image")
	}
	return &Buffer{mat: m}, nil
}

// Width returns the number of pixel columns.
func (b *Buffer) Width() int { return b.mat.Cols() }

// Height returns the number of pixel rows.
func (b *Buffer) Height() int { return b.mat.Rows() }

// Channels returns the channel depth (1 gray, 3 BGR, 4 BGRA).
func (b *Buffer) Channels() int { return b.mat.Channels() }

// Mat exposes the underlying matrix for read-only use. Callers must not
// modify or close it.
func (b *Buffer) Mat() gocv.Mat { return b.mat }

// Gray returns a single-channel intensity copy. The caller owns the result
// and must Close it.
func (b *Buffer) Gray() gocv.Mat {
	gray := gocv.NewMat()
	switch b.mat.Channels() {
	case 1:
		b.mat.CopyTo(&gray)
	case 4:
		gocv.CvtColor(b.mat, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(b.mat, &gray, gocv.ColorBGRToGray)
	}
	return gray
}

// EncodeJPEG re-encodes the buffer for classifiers that need a file format.
func (b *Buffer) EncodeJPEG() ([]byte, error) {
	nb, err := gocv.IMEncode(gocv.JPEGFileExt, b.mat)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer nb.Close()

	// GetBytes aliases native memory that Close frees.
	out := make([]byte, nb.Len())
	copy(out, nb.GetBytes())
	return out, nil
}

// Close releases the pixel memory. It is safe to call more than once.
func (b *Buffer) Close() error {
	if b == nil || b.closed {
		return nil
	}
	b.closed = true
	return b.mat.Close()
}
