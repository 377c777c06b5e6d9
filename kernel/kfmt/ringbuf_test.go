package kfmt

import "testing"

func TestRingBufferWriteRead(t *testing.T) {
	var rb ringBuffer

	rb.Write([]byte("hello"))

	buf := make([]byte, 5)
	n, err := rb.Read(buf)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("got n=%d err=%v buf=%q", n, err, buf)
	}
}

func TestRingBufferWrapsAndDropsOldest(t *testing.T) {
	var rb ringBuffer

	filler := make([]byte, ringBufferSize)
	for i := range filler {
		filler[i] = 'a'
	}
	rb.Write(filler)
	rb.Write([]byte("Z"))

	// A wrapped buffer drains in two contiguous runs, and one slot is
	// always kept free, so a full buffer holds ringBufferSize-1 bytes.
	buf := make([]byte, ringBufferSize)
	n := 0
	for {
		m, err := rb.Read(buf[n:])
		n += m
		if err != nil || m == 0 {
			break
		}
	}
	if n != ringBufferSize-1 {
		t.Fatalf("expected to read back the full buffer (%d bytes), got %d bytes", ringBufferSize-1, n)
	}
	if buf[n-1] != 'Z' {
		t.Fatalf("expected the most recent byte to survive the wraparound, got %q", buf[n-1])
	}
}

func TestRingBufferReadEmpty(t *testing.T) {
	var rb ringBuffer
	buf := make([]byte, 4)
	n, err := rb.Read(buf)
	if n != 0 || err == nil {
		t.Fatalf("expected EOF on empty buffer, got n=%d err=%v", n, err)
	}
}
