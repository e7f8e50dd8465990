package ops

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adred-codev/kvnotify/internal/backup"
	"github.com/adred-codev/kvnotify/internal/notify"
	"github.com/adred-codev/kvnotify/internal/store"
	"github.com/rs/zerolog"
)

func newTestOps() *Ops {
	s := store.New(8, 256, 1024)
	registry := notify.NewRegistry()
	n := notify.New(registry, 256, 1024, zerolog.Nop())
	b := backup.NewScheduler(2)
	return New(s, n, b, zerolog.Nop())
}

// Scenario 1 (spec.md §8): WRITE two keys, READ three including a
// missing one.
func TestScenarioReadWithMissingKey(t *testing.T) {
	o := newTestOps()
	o.Write([]Pair{
		{Key: []byte("apple"), Value: []byte("red")},
		{Key: []byte("banana"), Value: []byte("yellow")},
	})

	out := o.Read([][]byte{[]byte("apple"), []byte("banana"), []byte("grape")})
	want := "[(apple,red)(banana,yellow)(grape,KVSERROR)]\n"
	if string(out) != want {
		t.Fatalf("Read = %q; want %q", out, want)
	}
}

// Scenario 2: a subscriber receives a notification when the key it
// subscribed to is written.
func TestScenarioSubscribeThenWriteNotifies(t *testing.T) {
	o := newTestOps()
	o.Write([]Pair{{Key: []byte("apple"), Value: []byte("seed")}})

	r, w := io.Pipe()
	sink := store.SinkID(1)
	// The registry inside newTestOps's Notifier is not reachable, so build
	// a fresh registry and Notifier holding the sink, and a fresh Ops over
	// the same store, and subscribe and write through that Ops.
	registry := notify.NewRegistry()
	registry.Register(sink, w)
	n := notify.New(registry, 256, 1024, zerolog.Nop())
	oo := New(o.Store, n, o.Backups, zerolog.Nop())

	if existed := oo.Subscribe([]byte("apple"), sink); !existed {
		t.Fatalf("subscribe: expected apple to exist")
	}

	frame := make([]byte, 256+1+1024+1)
	done := make(chan struct{})
	go func() {
		io.ReadFull(r, frame)
		close(done)
	}()

	oo.Write([]Pair{{Key: []byte("apple"), Value: []byte("red")}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}

	key := bytes.TrimRight(frame[:257], "\x00")
	value := bytes.TrimRight(frame[257:], "\x00")
	if string(key) != "apple" || string(value) != "red" {
		t.Fatalf("notification = (%q,%q); want (apple,red)", key, value)
	}
}

// Scenario 3: DELETE notifies DELETED and the key then reads KVSERROR.
func TestScenarioDeleteNotifiesDeleted(t *testing.T) {
	o := newTestOps()
	o.Write([]Pair{{Key: []byte("apple"), Value: []byte("red")}})

	r, w := io.Pipe()
	sink := store.SinkID(1)
	registry := notify.NewRegistry()
	registry.Register(sink, w)
	n := notify.New(registry, 256, 1024, zerolog.Nop())
	oo := New(o.Store, n, o.Backups, zerolog.Nop())
	oo.Subscribe([]byte("apple"), sink)

	frame := make([]byte, 256+1+1024+1)
	done := make(chan struct{})
	go func() {
		io.ReadFull(r, frame)
		close(done)
	}()

	out := oo.Delete([][]byte{[]byte("apple")})
	if out != nil {
		t.Fatalf("Delete output = %q; want nil (all keys existed)", out)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for DELETED notification")
	}
	value := bytes.TrimRight(frame[257:], "\x00")
	if string(value) != "DELETED" {
		t.Fatalf("value = %q; want DELETED", value)
	}

	readOut := oo.Read([][]byte{[]byte("apple")})
	if string(readOut) != "[(apple,KVSERROR)]\n" {
		t.Fatalf("Read after delete = %q", readOut)
	}
}

// Scenario 4: concurrent SHOW and WRITE must never observe a torn state.
func TestScenarioConcurrentShowAndWrite(t *testing.T) {
	o := newTestOps()
	o.Write([]Pair{{Key: []byte("apple"), Value: []byte("red")}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			value := "red"
			if i%2 == 1 {
				value = "blue"
			}
			o.Write([]Pair{{Key: []byte("apple"), Value: []byte(value)}})
		}
	}()

	for i := 0; i < 200; i++ {
		out := o.Show()
		count := bytes.Count(out, []byte("apple,"))
		if count != 1 {
			t.Fatalf("Show contained %d apple entries; want exactly 1: %q", count, out)
		}
	}
	<-done
}

// Scenario 5: with MAX_BACKUPS=2, five BACKUPs in a row are all admitted
// and all five files are eventually written. The concurrency bound itself
// is checked by internal/backup's scheduler tests.
func TestScenarioBackupConcurrencyLimit(t *testing.T) {
	s := store.New(4, 256, 1024)
	registry := notify.NewRegistry()
	n := notify.New(registry, 256, 1024, zerolog.Nop())
	sched := backup.NewScheduler(2)
	o := New(s, n, sched, zerolog.Nop())
	o.Write([]Pair{{Key: []byte("apple"), Value: []byte("red")}})

	dir := t.TempDir()
	for i := 1; i <= 5; i++ {
		path := filepath.Join(dir, "job-"+string(rune('0'+i))+".bck")
		if err := o.Backup(path); err != nil {
			t.Fatalf("Backup #%d: %v", i, err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		entries, _ := os.ReadDir(dir)
		if len(entries) == 5 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	entries, _ := os.ReadDir(dir)
	t.Fatalf("only %d of 5 backup files present after deadline", len(entries))
}

func TestWriteRejectsOversizedPairButCommitsTheRest(t *testing.T) {
	s := store.New(4, 4, 4)
	registry := notify.NewRegistry()
	n := notify.New(registry, 4, 4, zerolog.Nop())
	b := backup.NewScheduler(2)
	o := New(s, n, b, zerolog.Nop())

	err := o.Write([]Pair{
		{Key: []byte("ok"), Value: []byte("1")},
		{Key: []byte("bad"), Value: []byte("toolongvalue")},
	})
	if err == nil {
		t.Fatalf("Write with an oversized pair: err = nil; want a non-nil error")
	}

	out := o.Read([][]byte{[]byte("ok"), []byte("bad")})
	if string(out) != "[(ok,1)(bad,KVSERROR)]\n" {
		t.Fatalf("Read after oversized Write = %q; want the valid pair committed and the oversized one rejected", out)
	}
}

func TestWriteDuplicateKeyKeepsLastValue(t *testing.T) {
	o := newTestOps()
	o.Write([]Pair{
		{Key: []byte("apple"), Value: []byte("red")},
		{Key: []byte("apple"), Value: []byte("green")},
	})
	out := o.Read([][]byte{[]byte("apple")})
	if string(out) != "[(apple,green)]\n" {
		t.Fatalf("Read = %q; want last value to win", out)
	}
}

func TestDeleteAllMissingEmitsNothing(t *testing.T) {
	o := newTestOps()
	out := o.Delete([][]byte{[]byte("ghost1"), []byte("ghost2")})
	if out != nil {
		t.Fatalf("Delete of all-missing keys = %q; want nil", out)
	}
}

func TestDeletePartialMissingBracketsOnlyMissing(t *testing.T) {
	o := newTestOps()
	o.Write([]Pair{{Key: []byte("apple"), Value: []byte("red")}})
	out := o.Delete([][]byte{[]byte("apple"), []byte("ghost")})
	if string(out) != "[(ghost,KVSMISSING)]\n" {
		t.Fatalf("Delete = %q; want only the missing key bracketed", out)
	}
}

func TestReadEmptyKeySetStillBrackets(t *testing.T) {
	o := newTestOps()
	out := o.Read(nil)
	if string(out) != "[]\n" {
		t.Fatalf("Read(nil) = %q; want \"[]\\n\" (closing bracket always written)", out)
	}
}

func TestShowFormat(t *testing.T) {
	o := newTestOps()
	o.Write([]Pair{{Key: []byte("apple"), Value: []byte("red")}})
	out := o.Show()
	if string(out) != "(apple, red)\n" {
		t.Fatalf("Show = %q", out)
	}
}
