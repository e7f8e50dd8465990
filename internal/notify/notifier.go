package notify

import (
	"github.com/adred-codev/kvnotify/internal/obsmetrics"
	"github.com/adred-codev/kvnotify/internal/store"
	"github.com/rs/zerolog"
)

// Notifier writes fixed-width notification frames to subscriber sinks.
// Delivery is best-effort per spec.md §4.2/§7: a write failure (broken
// pipe) is logged and skipped, never returned to the caller, and never
// prunes the subscriber set — that pruning only happens wholesale via
// Store.DropSubscriberEverywhere on session end.
//
// Per-sink delivery is FIFO because the caller (Operations) always
// completes one mutation's whole fan-out, single-threaded, while still
// holding the entry's bucket lock for the write case (spec.md §4.2).
type Notifier struct {
	registry *Registry
	logger   zerolog.Logger
	maxKey   int
	maxVal   int
}

// New builds a Notifier that writes maxKey/maxVal-sized frames resolved
// through registry.
func New(registry *Registry, maxKey, maxVal int, logger zerolog.Logger) *Notifier {
	return &Notifier{registry: registry, logger: logger, maxKey: maxKey, maxVal: maxVal}
}

// NotifyUpdate fans out a frame carrying value to every sink in subs.
func (n *Notifier) NotifyUpdate(subs []store.SinkID, key, value []byte) {
	if len(subs) == 0 {
		return
	}
	frame := EncodeFrame(key, value, n.maxKey, n.maxVal)
	n.fanOut(subs, frame, key)
}

// NotifyDeleted fans out a DELETED frame to every sink in subs.
func (n *Notifier) NotifyDeleted(subs []store.SinkID, key []byte) {
	if len(subs) == 0 {
		return
	}
	frame := EncodeDeleted(key, n.maxKey, n.maxVal)
	n.fanOut(subs, frame, key)
}

func (n *Notifier) fanOut(subs []store.SinkID, frame []byte, key []byte) {
	for _, sink := range subs {
		w, ok := n.registry.Get(sink)
		if !ok {
			// Sink already torn down; nothing to deliver to.
			continue
		}
		if _, err := w.Write(frame); err != nil {
			obsmetrics.NotificationsDropped.Inc()
			n.logger.Warn().
				Err(err).
				Bytes("key", key).
				Int64("sink", int64(sink)).
				Msg("notification write failed, skipping")
			continue
		}
		obsmetrics.NotificationsSent.Inc()
	}
}
