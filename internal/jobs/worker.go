package jobs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/adred-codev/kvnotify/internal/obsmetrics"
	"github.com/adred-codev/kvnotify/internal/ops"
	"github.com/rs/zerolog"
)

// Pool is the job worker pool of spec.md §4.5: N workers sharing one
// Queue, each processing a whole job file start to finish before pulling
// the next one. Structurally grounded on the teacher's WorkerPool
// (ws/worker_pool.go) — panic recovery per worker goroutine, and Run
// waiting for every worker to finish — but pull-based rather than fed through a task
// channel, since the unit of work here (a job file) is self-contained
// and workers are meant to own one at a time start to finish.
type Pool struct {
	n      int
	queue  *Queue
	ops    *ops.Ops
	logger zerolog.Logger
}

// NewPool builds a Pool of n workers draining queue against façade.
func NewPool(n int, queue *Queue, façade *ops.Ops, logger zerolog.Logger) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{n: n, queue: queue, ops: façade, logger: logger}
}

// Run starts n worker goroutines and blocks until every one has drained
// the queue or ctx is cancelled.
func (p *Pool) Run(ctx context.Context) {
	done := make(chan struct{}, p.n)
	for i := 0; i < p.n; i++ {
		go func(id int) {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error().
						Interface("panic", r).
						Int("worker", id).
						Bytes("stack", debug.Stack()).
						Msg("job worker panic recovered")
				}
				done <- struct{}{}
			}()
			p.worker(ctx, id)
		}(i)
	}
	for i := 0; i < p.n; i++ {
		<-done
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		path, ok := p.queue.Next()
		if !ok {
			return
		}
		p.processFile(path)
	}
}

// processFile executes one job file's commands sequentially against the
// operations façade, numbering BACKUP commands starting at 1 (spec.md
// §4.5), and writes the accumulated output to "<path>.out". A worker is
// the sole writer of that file.
func (p *Pool) processFile(path string) {
	start := time.Now()
	defer func() { obsmetrics.JobDuration.Observe(time.Since(start).Seconds()) }()

	f, err := os.Open(path)
	if err != nil {
		p.logger.Error().Err(err).Str("job", path).Msg("open job file failed")
		return
	}
	cmds, err := ParseLines(f)
	f.Close()
	if err != nil {
		p.logger.Error().Err(err).Str("job", path).Msg("parse job file failed")
		return
	}

	var out bytes.Buffer
	backupN := 0

	for _, cmd := range cmds {
		switch cmd.Op {
		case "WRITE":
			pairs, err := writePairs(cmd.Args)
			if err != nil {
				p.logger.Error().Err(err).Str("job", path).Int("line", cmd.Line).Msg("malformed WRITE")
				continue
			}
			wp := make([]ops.Pair, len(pairs))
			for i, kv := range pairs {
				wp[i] = ops.Pair{Key: []byte(kv[0]), Value: []byte(kv[1])}
			}
			if err := p.ops.Write(wp); err != nil {
				p.logger.Error().Err(err).Str("job", path).Int("line", cmd.Line).Msg("WRITE failed")
			}

		case "READ":
			keys := toKeyBytes(cmd.Args)
			out.Write(p.ops.Read(keys))

		case "DELETE":
			keys := toKeyBytes(cmd.Args)
			out.Write(p.ops.Delete(keys))

		case "SHOW":
			out.Write(p.ops.Show())

		case "BACKUP":
			backupN++
			backupPath := fmt.Sprintf("%s-%d.bck", path, backupN)
			if err := p.ops.Backup(backupPath); err != nil {
				p.logger.Error().Err(err).Str("job", path).Int("line", cmd.Line).Msg("BACKUP admission failed")
			}

		case "WAIT":
			ms, err := waitDuration(cmd.Args)
			if err != nil {
				p.logger.Error().Err(err).Str("job", path).Int("line", cmd.Line).Msg("malformed WAIT")
				continue
			}
			p.ops.Wait(time.Duration(ms) * time.Millisecond)

		case "HELP":
			out.WriteString(helpText)

		default:
			p.logger.Error().Str("job", path).Int("line", cmd.Line).Str("op", cmd.Op).Msg("unknown operation")
		}
	}

	outPath := path + outputSuffix
	if err := os.WriteFile(outPath, out.Bytes(), 0o644); err != nil {
		p.logger.Error().Err(err).Str("job", outPath).Msg("write job output failed")
	}
}

func toKeyBytes(args []string) [][]byte {
	keys := make([][]byte, len(args))
	for i, a := range args {
		keys[i] = []byte(a)
	}
	return keys
}
