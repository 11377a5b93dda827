// Package protocol implements the length-prefixed JSON framing used on the
// agent-facing TCP socket, and the message shapes exchanged over it.
//
// Wire format per frame:
//
//	+----------+-----------------+
//	| Length   | JSON body       |
//	| 4 bytes  | Length bytes    |
//	| big-endian uint32          |
//	+----------+-----------------+
package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/prism-dns/prism/internal/pool"
)

// MaxFrameSize is the largest JSON body accepted in a single frame.
const MaxFrameSize = 65536

// lenBufPool reduces allocations for the 4-byte length prefix.
var lenBufPool = pool.New(func() *[]byte {
	buf := make([]byte, 4)
	return &buf
})

var (
	// ErrIncompleteInput indicates the reader returned EOF before a full frame arrived.
	ErrIncompleteInput = errors.New("protocol: incomplete input")
	// ErrOversizeFrame indicates the declared length exceeds MaxFrameSize.
	ErrOversizeFrame = errors.New("protocol: frame exceeds maximum size")
)

// DecodeNext consumes exactly one frame from r and returns its JSON body.
// It never reads past the frame boundary, so the same *bufio.Reader can be
// reused across calls on a connection.
func DecodeNext(r *bufio.Reader) ([]byte, error) {
	lenBufPtr := lenBufPool.Get()
	defer lenBufPool.Put(lenBufPtr)
	lenBuf := *lenBufPtr

	if _, err := io.ReadFull(r, lenBuf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrIncompleteInput
		}
		return nil, err
	}

	n := binary.BigEndian.Uint32(lenBuf)
	if n > MaxFrameSize {
		return nil, ErrOversizeFrame
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrIncompleteInput
		}
		return nil, err
	}
	return body, nil
}

// Encode prepends the 4-byte big-endian length prefix to body.
func Encode(body []byte) ([]byte, error) {
	if len(body) > MaxFrameSize {
		return nil, ErrOversizeFrame
	}
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

// WriteFrame encodes and writes body to w in one call, using net.Buffers-style
// separate writes would require a net.Conn; callers that have a plain
// io.Writer get the single-allocation path here.
func WriteFrame(w io.Writer, body []byte) error {
	framed, err := Encode(body)
	if err != nil {
		return err
	}
	_, err = w.Write(framed)
	return err
}
