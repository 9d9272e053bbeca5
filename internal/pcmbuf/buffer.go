// Package pcmbuf implements the fixed-capacity linear frame buffer used by
// every I/O goroutine to stage PCM or encoded data between a FIFO and a
// Bluetooth socket. It is single-producer, single-consumer: one side fills
// the tail, the other drains the head, and neither end takes a lock.
package pcmbuf

import "fmt"

// Buffer is a typed linear buffer with a movable tail cursor. Data always
// starts at index 0; Shift compacts the remainder back to the front.
type Buffer[T any] struct {
	data []T
	tail int // number of elements written, i.e. the write cursor
}

// New allocates a buffer with capacity for n elements.
func New[T any](n int) *Buffer[T] {
	return &Buffer[T]{data: make([]T, n)}
}

// Init grows the buffer to hold at least n elements, preserving existing
// contents. It never shrinks.
func (b *Buffer[T]) Init(n int) {
	if n <= len(b.data) {
		return
	}
	grown := make([]T, n)
	copy(grown, b.data)
	b.data = grown
}

// Cap returns the total element capacity.
func (b *Buffer[T]) Cap() int { return len(b.data) }

// LenOut returns the number of filled elements available before the tail.
func (b *Buffer[T]) LenOut() int { return b.tail }

// LenIn returns the number of free elements remaining after the tail.
func (b *Buffer[T]) LenIn() int { return len(b.data) - b.tail }

// Data returns the filled prefix of the backing array, valid until the next
// mutating call.
func (b *Buffer[T]) Data() []T { return b.data[:b.tail] }

// Tail returns the writable suffix of the backing array, valid until the
// next mutating call.
func (b *Buffer[T]) Tail() []T { return b.data[b.tail:] }

// Seek advances the tail cursor by k elements, as if k elements had just
// been written into the slice returned by Tail. It fails if k exceeds the
// free space.
func (b *Buffer[T]) Seek(k int) error {
	if k < 0 || k > b.LenIn() {
		return fmt.Errorf("pcmbuf: seek %d exceeds free space %d", k, b.LenIn())
	}
	b.tail += k
	return nil
}

// Shift removes k elements from the head by moving the remainder down to
// index 0. It is a no-op if k <= 0 and clamps k to LenOut.
func (b *Buffer[T]) Shift(k int) {
	if k <= 0 {
		return
	}
	if k > b.tail {
		k = b.tail
	}
	copy(b.data, b.data[k:b.tail])
	b.tail -= k
}

// Rewind resets the tail cursor to zero without touching the backing array.
func (b *Buffer[T]) Rewind() { b.tail = 0 }

// Free releases the backing storage. The buffer must not be used afterward.
func (b *Buffer[T]) Free() {
	b.data = nil
	b.tail = 0
}

// ByteBuffer is the byte-element specialisation used for raw PCM/encoded
// staging, with byte-oriented convenience wrappers matching spec.md's
// "byte variants multiply by element size" wording for a fixed element size.
type ByteBuffer struct {
	*Buffer[byte]
	elemSize int
}

// NewBytes allocates a byte buffer sized for n elements of elemSize bytes
// each (elemSize == 1 for a plain byte stream, or e.g. 4 for interleaved
// 16-bit stereo PCM frames).
func NewBytes(n, elemSize int) *ByteBuffer {
	if elemSize < 1 {
		elemSize = 1
	}
	return &ByteBuffer{Buffer: New[byte](n * elemSize), elemSize: elemSize}
}

// LenOutFrames and LenInFrames report the filled and free space in whole
// elements of elemSize bytes; LenOut/LenIn on the embedded buffer count
// bytes.
func (b *ByteBuffer) LenOutFrames() int { return b.LenOut() / b.elemSize }
func (b *ByteBuffer) LenInFrames() int  { return b.LenIn() / b.elemSize }
