package session

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

// watchAdminSignal implements spec.md §4.7: on SIGUSR1, emit a status
// line, force every open per-session handle triple closed (so its
// owning worker observes end-of-input on its next read and drains), and
// clear every entry's subscriber set.
//
// Each slot's own mutex (slot.closeHandles) is what makes this safe to
// run concurrently with a session worker mid-command — the handle close
// here and the worker's own cleanup close race safely and idempotently.
// Go signal delivery already runs on an ordinary goroutine, so unlike
// the source's async-signal-safety constraint (which forces the real
// signal handler to only set a flag), there is no correctness reason to
// defer this work to the acceptor's loop boundary; only the per-slot
// mutex needs to be held, and it already is.
func (m *Manager) watchAdminSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)

	for range ch {
		m.logger.Info().Msg("admin signal received: draining all sessions")

		for _, s := range m.slots {
			s.closeHandles()
		}
		m.ops.Store.ClearAllSubscribers()

		m.logger.Info().Msg("admin signal handled: subscribers cleared")
	}
}

// IgnoreSIGPIPE blocks the default SIGPIPE disposition so a write to a
// peer-closed pipe surfaces as an EPIPE error instead of terminating the
// process (spec.md §5's SIGPIPE policy). Go's runtime already ignores
// SIGPIPE for writes to non-stdout/stderr file descriptors, including
// named pipes opened via os.OpenFile; this call documents that reliance
// and makes it explicit rather than incidental.
func IgnoreSIGPIPE(logger zerolog.Logger) {
	signal.Ignore(syscall.SIGPIPE)
	logger.Debug().Msg("SIGPIPE ignored for pipe writes")
}
