// File: core/buffer/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Growable byte container with independent read and write cursors.
// The invariant reader <= writer <= len(store) holds at all times.

package buffer

import "bytes"

// DefaultSize is the initial capacity of a fresh Buffer.
const DefaultSize = 1024

// Buffer manages a contiguous region of bytes between two cursors.
// Bytes in [reader, writer) are readable; bytes in [writer, len) are
// free tail space; bytes in [0, reader) are free head space reclaimed
// by compaction.
type Buffer struct {
	store  []byte
	reader int
	writer int
}

// New returns an empty Buffer with the default capacity.
func New() *Buffer {
	return &Buffer{store: make([]byte, DefaultSize)}
}

// Readable reports the number of bytes available for reading.
func (b *Buffer) Readable() int { return b.writer - b.reader }

// TailFree reports the free space after the write cursor.
func (b *Buffer) TailFree() int { return len(b.store) - b.writer }

// HeadFree reports the reclaimable space before the read cursor.
func (b *Buffer) HeadFree() int { return b.reader }

// ReadPosition returns the readable region as a slice view. The view is
// invalidated by any write or cursor move.
func (b *Buffer) ReadPosition() []byte { return b.store[b.reader:b.writer] }

// MoveReadOffset advances the read cursor by n bytes.
func (b *Buffer) MoveReadOffset(n int) {
	if n == 0 {
		return
	}
	if n > b.Readable() {
		panic("buffer: read offset past write cursor")
	}
	b.reader += n
}

// MoveWriteOffset advances the write cursor by n bytes.
func (b *Buffer) MoveWriteOffset(n int) {
	if n > b.TailFree() {
		panic("buffer: write offset past capacity")
	}
	b.writer += n
}

// EnsureWriteSpace guarantees at least n bytes of tail space, compacting
// the readable region to offset zero when head plus tail space suffices,
// growing the store to writer+n otherwise.
func (b *Buffer) EnsureWriteSpace(n int) {
	if b.TailFree() >= n {
		return
	}
	if b.TailFree()+b.HeadFree() >= n {
		readable := b.Readable()
		copy(b.store, b.store[b.reader:b.writer])
		b.reader = 0
		b.writer = readable
		return
	}
	grown := make([]byte, b.writer+n)
	copy(grown, b.store)
	b.store = grown
}

// Write copies data at the write cursor without advancing it.
func (b *Buffer) Write(data []byte) {
	if len(data) == 0 {
		return
	}
	b.EnsureWriteSpace(len(data))
	copy(b.store[b.writer:], data)
}

// WriteAndPush copies data at the write cursor and advances it.
func (b *Buffer) WriteAndPush(data []byte) {
	b.Write(data)
	b.MoveWriteOffset(len(data))
}

// WriteString copies a string at the write cursor without advancing it.
func (b *Buffer) WriteString(data string) {
	if len(data) == 0 {
		return
	}
	b.EnsureWriteSpace(len(data))
	copy(b.store[b.writer:], data)
}

// WriteStringAndPush copies a string and advances the write cursor.
func (b *Buffer) WriteStringAndPush(data string) {
	b.WriteString(data)
	b.MoveWriteOffset(len(data))
}

// WriteBufferAndPush appends the readable region of src and advances
// the write cursor. src cursors are untouched.
func (b *Buffer) WriteBufferAndPush(src *Buffer) {
	b.WriteAndPush(src.ReadPosition())
}

// Read copies n bytes from the read cursor without advancing it.
func (b *Buffer) Read(n int) []byte {
	if n > b.Readable() {
		panic("buffer: read past write cursor")
	}
	out := make([]byte, n)
	copy(out, b.store[b.reader:])
	return out
}

// ReadAndPop copies n bytes from the read cursor and advances it.
func (b *Buffer) ReadAndPop(n int) []byte {
	out := b.Read(n)
	b.MoveReadOffset(n)
	return out
}

// ReadStringAndPop is ReadAndPop returning a string.
func (b *Buffer) ReadStringAndPop(n int) string {
	return string(b.ReadAndPop(n))
}

// GetLine returns one line including its trailing '\n' without advancing
// the read cursor. An empty return means no complete line is buffered.
func (b *Buffer) GetLine() string {
	pos := bytes.IndexByte(b.ReadPosition(), '\n')
	if pos < 0 {
		return ""
	}
	return string(b.Read(pos + 1))
}

// GetLineAndPop returns one line including its trailing '\n' and advances
// the read cursor past it. An empty return means no complete line is
// buffered yet.
func (b *Buffer) GetLineAndPop() string {
	line := b.GetLine()
	b.MoveReadOffset(len(line))
	return line
}

// Clear resets both cursors, discarding all buffered data.
func (b *Buffer) Clear() {
	b.reader = 0
	b.writer = 0
}
