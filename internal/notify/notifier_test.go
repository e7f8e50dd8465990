package notify

import (
	"bytes"
	"errors"
	"testing"

	"github.com/adred-codev/kvnotify/internal/store"
	"github.com/rs/zerolog"
)

type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestNotifyUpdateDeliversToAllSinks(t *testing.T) {
	registry := NewRegistry()
	var bufA, bufB bytes.Buffer
	registry.Register(store.SinkID(1), &bufA)
	registry.Register(store.SinkID(2), &bufB)

	n := New(registry, 8, 16, zerolog.Nop())
	n.NotifyUpdate([]store.SinkID{1, 2}, []byte("apple"), []byte("red"))

	if bufA.Len() != FrameSize(8, 16) || bufB.Len() != FrameSize(8, 16) {
		t.Fatalf("expected both sinks to receive one frame each")
	}
}

func TestNotifyBestEffortSkipsBrokenSink(t *testing.T) {
	registry := NewRegistry()
	var good bytes.Buffer
	registry.Register(store.SinkID(1), errWriter{})
	registry.Register(store.SinkID(2), &good)

	n := New(registry, 8, 16, zerolog.Nop())
	// Must not panic despite sink 1 failing.
	n.NotifyUpdate([]store.SinkID{1, 2}, []byte("apple"), []byte("red"))

	if good.Len() != FrameSize(8, 16) {
		t.Fatalf("expected the good sink to still receive its frame despite sink 1 failing")
	}
}

func TestNotifyUnknownSinkIsSkipped(t *testing.T) {
	registry := NewRegistry()
	n := New(registry, 8, 16, zerolog.Nop())
	// sink 42 was never registered; must not panic.
	n.NotifyUpdate([]store.SinkID{42}, []byte("apple"), []byte("red"))
}

func TestNotifyDeletedWritesDeletedSentinel(t *testing.T) {
	registry := NewRegistry()
	var buf bytes.Buffer
	registry.Register(store.SinkID(1), &buf)

	n := New(registry, 8, 16, zerolog.Nop())
	n.NotifyDeleted([]store.SinkID{1}, []byte("apple"))

	trimmed := bytes.TrimRight(buf.Bytes()[9:], "\x00")
	if string(trimmed) != "DELETED" {
		t.Fatalf("value = %q; want DELETED", trimmed)
	}
}

func TestNotifyEmptySubscriberListIsNoop(t *testing.T) {
	registry := NewRegistry()
	n := New(registry, 8, 16, zerolog.Nop())
	n.NotifyUpdate(nil, []byte("apple"), []byte("red"))
	n.NotifyDeleted(nil, []byte("apple"))
}
