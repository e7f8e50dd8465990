package session

import (
	"context"
	"io"
	"runtime/debug"
	"sync/atomic"

	"github.com/adred-codev/kvnotify/internal/fifo"
	"github.com/adred-codev/kvnotify/internal/notify"
	"github.com/adred-codev/kvnotify/internal/obsmetrics"
	"github.com/adred-codev/kvnotify/internal/ops"
	"github.com/adred-codev/kvnotify/internal/store"
	"github.com/rs/zerolog"
)

// worker is one of the S session workers. It owns slot for the process
// lifetime, looping: dequeue a connection frame, run one session end to
// end, return to the ring for the next one.
type worker struct {
	slot     *slot
	ring     *Ring
	registry *notify.Registry
	ops      *ops.Ops
	maxKey   int
	logger   zerolog.Logger
}

func (w *worker) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Interface("panic", r).
				Int("slot", w.slot.index).
				Bytes("stack", debug.Stack()).
				Msg("session worker panic recovered")
		}
	}()

	for {
		frame, ok := w.ring.Dequeue(ctx)
		if !ok {
			return
		}
		w.handleSession(frame)
	}
}

// handleSession opens the three per-client pipes in the fixed order
// spec.md §5 requires — response, then request, then notification — and
// runs the command loop until disconnect, EOF, or a broken pipe.
func (w *worker) handleSession(frame ConnectFrame) {
	resp, err := fifo.OpenWriter(frame.ResponsePath)
	if err != nil {
		w.logger.Error().Err(err).Str("path", frame.ResponsePath).Msg("open response pipe failed")
		return
	}

	req, err := fifo.OpenReader(frame.RequestPath)
	if err != nil {
		w.logger.Error().Err(err).Str("path", frame.RequestPath).Msg("open request pipe failed")
		resp.Write(EncodeConnectAck(false))
		resp.Close()
		return
	}

	notif, err := fifo.OpenWriter(frame.NotificationPath)
	if err != nil {
		w.logger.Error().Err(err).Str("path", frame.NotificationPath).Msg("open notification pipe failed")
		resp.Write(EncodeConnectAck(false))
		resp.Close()
		req.Close()
		return
	}

	sink := store.SinkID(atomic.AddInt64(&sinkSeq, 1))
	w.slot.open(req, resp, notif, sink)
	w.registry.Register(sink, notif)
	obsmetrics.ActiveSessions.Inc()

	if _, err := resp.Write(EncodeConnectAck(true)); err != nil {
		w.logger.Warn().Err(err).Int("slot", w.slot.index).Msg("connect ack write failed")
		w.endSession(sink)
		return
	}

	w.commandLoop(req, resp, sink)
	w.endSession(sink)
}

// commandLoop reads one opcode byte at a time and dispatches it until
// DISCONNECT, EOF, or a protocol/IO error — each of which transitions
// the slot to Draining (spec.md §4.6).
func (w *worker) commandLoop(req io.Reader, resp io.Writer, sink store.SinkID) {
	opcode := make([]byte, 1)
	key := make([]byte, w.maxKey)

	for {
		if _, err := io.ReadFull(req, opcode); err != nil {
			return
		}

		switch opcode[0] {
		case OpDisconnect:
			resp.Write(EncodeDisconnectAck(true))
			return

		case OpSubscribe:
			if _, err := io.ReadFull(req, key); err != nil {
				return
			}
			existed := w.ops.Subscribe(trimKey(key), sink)
			if _, err := resp.Write(EncodeSubscribeAck(existed)); err != nil {
				return
			}

		case OpUnsubscribe:
			if _, err := io.ReadFull(req, key); err != nil {
				return
			}
			existed := w.ops.Unsubscribe(trimKey(key), sink)
			if _, err := resp.Write(EncodeUnsubscribeAck(existed)); err != nil {
				return
			}

		default:
			w.logger.Warn().Int("slot", w.slot.index).Int("opcode", int(opcode[0])).Msg("unknown session opcode, closing")
			return
		}
	}
}

// endSession performs the cleanup spec.md §4.6 requires on any session
// end: drop the sink from every entry's subscriber set, unregister it
// from the notifier, close the three handles, and return the slot to
// Idle.
func (w *worker) endSession(sink store.SinkID) {
	w.slot.setState(StateDraining)
	w.ops.Store.DropSubscriberEverywhere(sink)
	w.registry.Unregister(sink)
	w.slot.closeHandles()
	obsmetrics.ActiveSessions.Dec()
	w.slot.setState(StateIdle)
}

func trimKey(key []byte) []byte {
	for i, b := range key {
		if b == 0 {
			return key[:i]
		}
	}
	return key
}

var sinkSeq int64
