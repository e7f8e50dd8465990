package notify

import (
	"bytes"
	"testing"
)

func TestEncodeFrameFixedWidth(t *testing.T) {
	frame := EncodeFrame([]byte("apple"), []byte("red"), 8, 16)
	if len(frame) != FrameSize(8, 16) {
		t.Fatalf("frame length = %d; want %d", len(frame), FrameSize(8, 16))
	}
	if len(frame) != 8+1+16+1 {
		t.Fatalf("frame length = %d; want %d", len(frame), 8+1+16+1)
	}
}

func TestEncodeFrameKeyAndValuePadding(t *testing.T) {
	frame := EncodeFrame([]byte("ab"), []byte("cd"), 4, 4)
	// key section: "ab\x00\x00\x00" (maxKey+1 = 5 bytes)
	wantKeySection := []byte{'a', 'b', 0, 0, 0}
	if !bytes.Equal(frame[:5], wantKeySection) {
		t.Fatalf("key section = %v; want %v", frame[:5], wantKeySection)
	}
	wantValSection := []byte{'c', 'd', 0, 0, 0}
	if !bytes.Equal(frame[5:], wantValSection) {
		t.Fatalf("value section = %v; want %v", frame[5:], wantValSection)
	}
}

func TestEncodeDeletedCarriesSentinel(t *testing.T) {
	frame := EncodeDeleted([]byte("apple"), 8, 16)
	valueSection := frame[9:]
	trimmed := bytes.TrimRight(valueSection, "\x00")
	if string(trimmed) != "DELETED" {
		t.Fatalf("deleted value = %q; want DELETED", trimmed)
	}
}
