package pcmbuf

import "testing"

func TestSeekShiftRewind(t *testing.T) {
	b := New[int](8)
	if b.LenIn() != 8 || b.LenOut() != 0 {
		t.Fatalf("unexpected initial lengths: in=%d out=%d", b.LenIn(), b.LenOut())
	}

	copy(b.Tail(), []int{1, 2, 3})
	if err := b.Seek(3); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if b.LenOut() != 3 || b.LenIn() != 5 {
		t.Fatalf("unexpected lengths after seek: in=%d out=%d", b.LenIn(), b.LenOut())
	}

	if err := b.Seek(6); err == nil {
		t.Fatalf("expected seek past free space to fail")
	}

	b.Shift(1)
	if got := b.Data(); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("unexpected data after shift: %v", got)
	}

	b.Rewind()
	if b.LenOut() != 0 {
		t.Fatalf("expected zero length after rewind, got %d", b.LenOut())
	}
}

func TestByteBufferFrames(t *testing.T) {
	b := NewBytes(10, 4) // 10 stereo 16-bit frames
	if b.Cap() != 40 {
		t.Fatalf("expected 40 byte capacity, got %d", b.Cap())
	}
	if err := b.Seek(16); err != nil {
		t.Fatal(err)
	}
	if got := b.LenOutFrames(); got != 4 {
		t.Fatalf("expected 4 frames out, got %d", got)
	}
}
