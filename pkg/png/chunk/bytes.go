package chunk

import (
	"bufio"
	"encoding/binary"
	"io"
)

// ByteReader walks a fully buffered byte slice. Slices it returns alias
// the underlying buffer.
type ByteReader struct {
	data []byte
	off  int
}

// NewByteReader creates a new byte reader
func NewByteReader(data []byte) *ByteReader {
	return &ByteReader{data: data}
}

// Offset is the number of bytes consumed so far.
func (b *ByteReader) Offset() int {
	return b.off
}

// Len is the number of bytes remaining.
func (b *ByteReader) Len() int {
	return len(b.data) - b.off
}

// ReadUint32 reads a big-endian uint32
func (b *ByteReader) ReadUint32() (uint32, error) {
	if b.Len() < 4 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint32(b.data[b.off:])
	b.off += 4
	return v, nil
}

// ReadBytes reads n bytes
func (b *ByteReader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || b.Len() < n {
		return nil, io.ErrUnexpectedEOF
	}
	p := b.data[b.off : b.off+n : b.off+n]
	b.off += n
	return p, nil
}

// ByteWriter provides raw byte access with buffering
type ByteWriter struct {
	w *bufio.Writer
}

// NewByteWriter creates a new byte writer
func NewByteWriter(w io.Writer) *ByteWriter {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	return &ByteWriter{w: bw}
}

// WriteUint32 writes a big-endian uint32
func (b *ByteWriter) WriteUint32(v uint32) error {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	_, err := b.w.Write(tmp[:])
	return err
}

// WriteBytes writes multiple bytes
func (b *ByteWriter) WriteBytes(data []byte) error {
	_, err := b.w.Write(data)
	return err
}

// Flush flushes the buffer
func (b *ByteWriter) Flush() error {
	return b.w.Flush()
}
