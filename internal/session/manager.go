package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/adred-codev/kvnotify/internal/fifo"
	"github.com/adred-codev/kvnotify/internal/notify"
	"github.com/adred-codev/kvnotify/internal/ops"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Manager owns the intake pipe, the ring buffer, the fixed slot/worker
// pool, and the admin-signal watcher described across spec.md §4.6/§4.7.
type Manager struct {
	intakePath string
	maxPathLen int
	maxKeyLen  int

	ring     *Ring
	slots    []*slot
	registry *notify.Registry
	ops      *ops.Ops
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

// Config collects the sizing and path parameters a Manager needs.
type Config struct {
	IntakePath        string
	MaxSessions       int
	MaxPathLen        int
	MaxKeyLen         int
	MaxConnectsPerSec float64
	ConnectBurst      int
}

// NewManager builds a Manager with MaxSessions slots/workers and a ring
// buffer of the same capacity (spec.md §4.6: the ring and the worker
// pool are both sized S).
func NewManager(cfg Config, registry *notify.Registry, façade *ops.Ops, logger zerolog.Logger) *Manager {
	slots := make([]*slot, cfg.MaxSessions)
	for i := range slots {
		slots[i] = &slot{index: i}
	}

	return &Manager{
		intakePath: cfg.IntakePath,
		maxPathLen: cfg.MaxPathLen,
		maxKeyLen:  cfg.MaxKeyLen,
		ring:       NewRing(cfg.MaxSessions),
		slots:      slots,
		registry:   registry,
		ops:        façade,
		limiter:    rate.NewLimiter(rate.Limit(cfg.MaxConnectsPerSec), cfg.ConnectBurst),
		logger:     logger,
	}
}

// Run creates the intake FIFO if needed, opens it, and blocks running
// the acceptor, every session worker, and the admin-signal watcher until
// ctx is cancelled and every worker has drained its current session.
func (m *Manager) Run(ctx context.Context) error {
	if err := fifo.Ensure(m.intakePath, 0o600); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	intake, err := openIntakeForAccept(m.intakePath)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	defer intake.Close()

	// Closing the intake on cancellation unblocks the acceptor's read so
	// it can return.
	go func() {
		<-ctx.Done()
		intake.Close()
	}()

	go m.watchAdminSignal()

	a := &acceptor{intake: intake, ring: m.ring, maxPathLen: m.maxPathLen, limiter: m.limiter, logger: m.logger}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.run(ctx)
	}()

	for _, s := range m.slots {
		w := &worker{slot: s, ring: m.ring, registry: m.registry, ops: m.ops, maxKey: m.maxKeyLen, logger: m.logger}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
	}

	wg.Wait()
	return nil
}

// openIntakeForAccept opens the intake FIFO for reading in a mode that
// never blocks the server waiting for a first writer: O_RDWR keeps the
// read end alive across lulls between clients, matching the "EOF just
// means no writer right now" behavior the acceptor relies on.
func openIntakeForAccept(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open intake %s: %w", path, err)
	}
	return f, nil
}
