package upload

import (
	"errors"
	"io"

	"geminikit/internal/core"
)

// DefaultChunkSize is the largest payload sent in one chunk request.
const DefaultChunkSize int64 = 10 * 1024 * 1024

// Chunk is a contiguous byte range of the source file and its payload.
type Chunk struct {
	Offset int64
	Data   []byte
}

// Len is the payload length.
func (c Chunk) Len() int64 {
	return int64(len(c.Data))
}

// End is the exclusive end offset.
func (c Chunk) End() int64 {
	return c.Offset + c.Len()
}

// Range returns [Offset, End).
func (c Chunk) Range() core.ByteRange {
	return core.ByteRange{Start: c.Offset, End: c.End()}
}

// ChunkReader produces the chunks of a reader of known size, in order, once.
// It stops exactly at total bytes even if the reader has more.
type ChunkReader struct {
	r         io.Reader
	total     int64
	chunkSize int64
	offset    int64
	done      bool
	buf       []byte
}

// NewChunkReader reads total bytes from r in chunks of at most chunkSize.
// A non-positive chunkSize selects DefaultChunkSize.
func NewChunkReader(r io.Reader, total, chunkSize int64) *ChunkReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ChunkReader{
		r:         r,
		total:     total,
		chunkSize: chunkSize,
	}
}

// Offset is the number of bytes handed out so far.
func (cr *ChunkReader) Offset() int64 {
	return cr.offset
}

// Next returns the next chunk, or io.EOF once the terminal chunk was returned.
// A zero-size input yields one empty terminal chunk.
// Data is only valid until the following call to Next.
func (cr *ChunkReader) Next() (Chunk, error) {
	if cr.done {
		return Chunk{}, io.EOF
	}

	remaining := cr.total - cr.offset
	if remaining <= 0 {
		cr.done = true
		return Chunk{Offset: cr.offset, Data: []byte{}}, nil
	}

	size := min(cr.chunkSize, remaining)
	if int64(cap(cr.buf)) < size {
		cr.buf = make([]byte, size)
	}
	buf := cr.buf[:size]

	// A short read is a valid chunk; only "nothing at all" is a failure.
	n, err := io.ReadAtLeast(cr.r, buf, 1)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		cr.done = true
		return Chunk{}, core.NewChunkReadError(cr.offset, err)
	}

	chunk := Chunk{Offset: cr.offset, Data: buf[:n]}
	cr.offset += int64(n)
	if cr.offset == cr.total {
		cr.done = true
	}
	return chunk, nil
}
