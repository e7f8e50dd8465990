// Package ops implements the operation façade (spec.md §4.3): WRITE,
// READ, DELETE, SHOW, BACKUP, SUBSCRIBE, UNSUBSCRIBE, WAIT, built on top
// of store.Store and notify.Notifier, including the multi-key lock
// ordering spec.md §4.1 requires. Dispatch shape (one method per
// operation, each taking its locks and handing off to the Notifier) is
// grounded on the switch in the teacher's handleClientMessage
// (ws/server.go).
package ops

import (
	"bytes"
	"fmt"
	"time"

	"github.com/adred-codev/kvnotify/internal/backup"
	"github.com/adred-codev/kvnotify/internal/notify"
	"github.com/adred-codev/kvnotify/internal/obsmetrics"
	"github.com/adred-codev/kvnotify/internal/store"
	"github.com/rs/zerolog"
)

// KVSERROR and KVSMISSING are the sentinels spec.md §6 requires in READ
// and DELETE output for absent keys.
const (
	KVSERROR   = "KVSERROR"
	KVSMISSING = "KVSMISSING"
)

// Ops is the operations façade. One instance is shared by every job
// worker and session worker.
type Ops struct {
	Store    *store.Store
	Notifier *notify.Notifier
	Backups  *backup.Scheduler
	Logger   zerolog.Logger
}

// New builds an Ops façade over the given collaborators.
func New(s *store.Store, n *notify.Notifier, b *backup.Scheduler, logger zerolog.Logger) *Ops {
	return &Ops{Store: s, Notifier: n, Backups: b, Logger: logger}
}

// Pair is one (key, value) to write.
type Pair struct {
	Key   []byte
	Value []byte
}

// Write commits pairs and notifies each distinct key's subscribers once,
// with the value get(key) would return after the batch (spec.md §9's
// pinned interpretation of the duplicate-key open question): pairs are
// de-duplicated by key, keeping the last occurrence, before any lock is
// taken.
func (o *Ops) Write(pairs []Pair) error {
	deduped := make(map[string][]byte, len(pairs))
	order := make([][]byte, 0, len(pairs))
	for _, p := range pairs {
		k := string(p.Key)
		if _, seen := deduped[k]; !seen {
			order = append(order, p.Key)
		}
		deduped[k] = p.Value
	}

	keys := make([][]byte, len(order))
	copy(keys, order)

	batch := o.Store.LockBatch(keys, true)
	defer batch.Unlock()

	// batch.Put enforces MAX_KEY/MAX_VAL (spec.md §3); a pair that fails
	// is logged and skipped rather than reaching the Notifier's
	// fixed-width framing, which would otherwise silently truncate it.
	committed := make([][]byte, 0, len(order))
	var rejected int
	for _, key := range order {
		value := deduped[string(key)]
		if err := batch.Put(key, value); err != nil {
			rejected++
			o.Logger.Warn().Err(err).Bytes("key", key).Msg("WRITE rejected oversized pair")
			continue
		}
		committed = append(committed, key)
	}
	// Notify under the still-held locks (spec.md §4.3): a subscriber
	// added between Put and notify is a data race the bucket lock
	// already rules out.
	for _, key := range committed {
		value := deduped[string(key)]
		subs := batch.Subscribers(key)
		o.Notifier.NotifyUpdate(subs, key, value)
	}

	obsmetrics.WritesTotal.Add(float64(len(committed)))
	if rejected > 0 {
		return fmt.Errorf("write: %d of %d pairs exceeded size limits", rejected, len(order))
	}
	return nil
}

// Read emits "[(k1,v1)(k2,KVSERROR)...]\n" for the given keys, in the
// order given, using KVSERROR for any key not present.
func (o *Ops) Read(keys [][]byte) []byte {
	batch := o.Store.LockBatch(keys, false)
	defer batch.Unlock()

	var buf bytes.Buffer
	buf.WriteByte('[')
	for _, key := range keys {
		value, ok := batch.Get(key)
		buf.WriteByte('(')
		buf.Write(key)
		buf.WriteByte(',')
		if ok {
			buf.Write(value)
		} else {
			buf.WriteString(KVSERROR)
		}
		buf.WriteByte(')')
	}
	buf.WriteByte(']')
	buf.WriteByte('\n')

	obsmetrics.ReadsTotal.Add(float64(len(keys)))
	return buf.Bytes()
}

// Delete removes each key, notifying former subscribers DELETED after
// the bucket locks are released. Output is only non-empty if at least
// one key was missing (spec.md §4.3/§6).
func (o *Ops) Delete(keys [][]byte) []byte {
	batch := o.Store.LockBatch(keys, true)

	type removed struct {
		key  []byte
		subs []store.SinkID
	}
	var missing [][]byte
	var removals []removed

	for _, key := range keys {
		subs, existed := batch.Remove(key)
		if !existed {
			missing = append(missing, key)
			continue
		}
		removals = append(removals, removed{key: key, subs: subs})
	}
	batch.Unlock()

	for _, r := range removals {
		o.Notifier.NotifyDeleted(r.subs, r.key)
	}

	obsmetrics.DeletesTotal.Add(float64(len(keys) - len(missing)))

	if len(missing) == 0 {
		return nil
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for _, key := range missing {
		buf.WriteByte('(')
		buf.Write(key)
		buf.WriteByte(',')
		buf.WriteString(KVSMISSING)
		buf.WriteByte(')')
	}
	buf.WriteByte(']')
	buf.WriteByte('\n')
	return buf.Bytes()
}

// Show emits one "(key, value)\n" line per entry, observed as a single
// cross-bucket snapshot (spec.md §4.3/§6, enforced by Store.ForEach's
// exclusive mode gate).
func (o *Ops) Show() []byte {
	var buf bytes.Buffer
	o.Store.ForEach(func(kv store.KV) {
		buf.WriteByte('(')
		buf.Write(kv.Key)
		buf.WriteString(", ")
		buf.Write(kv.Value)
		buf.WriteByte(')')
		buf.WriteByte('\n')
	})
	obsmetrics.ShowsTotal.Inc()
	return buf.Bytes()
}

// Backup snapshots the table and writes it to path in SHOW's format.
// Admission is bounded by the backup scheduler (spec.md §4.4); the
// snapshot itself is taken synchronously (a consistent copy under the
// exclusive mode gate, spec.md invariant 4) but the file write happens
// in a detached goroutine so the caller — a job worker — is not blocked
// for the duration of the write (spec.md §1, "non-blocking on-disk
// backups").
func (o *Ops) Backup(path string) error {
	if err := o.Backups.Acquire(); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	obsmetrics.BackupsStarted.Inc()

	snapshot := o.Show()

	go func() {
		defer o.Backups.Release()
		if err := writeFileAtomically(path, snapshot); err != nil {
			obsmetrics.BackupsFailed.Inc()
			o.Logger.Error().Err(err).Str("path", path).Msg("backup write failed")
			return
		}
		obsmetrics.BackupsCompleted.Inc()
	}()

	return nil
}

// Subscribe adds sink to key's subscriber set. Returns whether key
// existed (spec.md §4.3/§6 — the session layer turns this into the
// subscribe-specific ack polarity).
func (o *Ops) Subscribe(key []byte, sink store.SinkID) bool {
	existed := o.Store.Subscribe(key, sink)
	if existed {
		obsmetrics.SubscribesTotal.Inc()
	}
	return existed
}

// Unsubscribe removes sink from key's subscriber set. Returns whether
// key existed.
func (o *Ops) Unsubscribe(key []byte, sink store.SinkID) bool {
	existed := o.Store.Unsubscribe(key, sink)
	if existed {
		obsmetrics.UnsubscribesTotal.Inc()
	}
	return existed
}

// Wait sleeps the calling job worker for the given duration. It never
// touches the store or the mode gate (spec.md §4.3).
func (o *Ops) Wait(d time.Duration) {
	time.Sleep(d)
}
